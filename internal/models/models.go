// Package models defines the core data structures for Kiara.
//
// It includes step definitions for booking flows, reply directives, and the
// shared error taxonomy used across modules.
package models

import (
	"errors"
	"strings"
)

// StepType defines how a step's answer is validated.
type StepType string

const (
	// StepTypeText accepts any free text.
	StepTypeText StepType = "text"
	// StepTypePhone requires an 11-digit mobile number starting with 09.
	StepTypePhone StepType = "phone"
	// StepTypeDate requires a calendar date within the booking window.
	StepTypeDate StepType = "date"
	// StepTypeChoice requires one of the step's declared options.
	StepTypeChoice StepType = "choice"
)

// Error variables for the spec's failure taxonomy.
var (
	ErrInvalidPhone   = errors.New("invalid phone number format")
	ErrInvalidDate    = errors.New("invalid or out-of-range date")
	ErrInvalidChoice  = errors.New("answer does not match any declared option")
	ErrSessionMissing = errors.New("no active session for user")
	ErrConfigMissing  = errors.New("page is not provisioned")
	ErrDuplicateEvent = errors.New("event already processed")
	ErrNoStepSequence = errors.New("no step sequence configured")
)

// ChoiceOption is a single selectable option on a choice step.
type ChoiceOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// StepDefinition describes one question in a booking flow.
// FieldKey is unique within a step sequence and keys the stored answer.
type StepDefinition struct {
	FieldKey string         `json:"field_key"`
	Prompt   string         `json:"prompt"`
	Type     StepType       `json:"type"`
	Options  []ChoiceOption `json:"options,omitempty"`
}

// ParseChoiceOptions parses a comma-separated option spec into options.
// Each entry is either "Label-Value" or a bare token used as both.
func ParseChoiceOptions(spec string) []ChoiceOption {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	parts := strings.Split(spec, ",")
	options := make([]ChoiceOption, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if label, value, found := strings.Cut(part, "-"); found {
			options = append(options, ChoiceOption{Label: strings.TrimSpace(label), Value: strings.TrimSpace(value)})
		} else {
			options = append(options, ChoiceOption{Label: part, Value: part})
		}
	}
	return options
}

// DirectiveKind identifies the shape of a reply directive.
type DirectiveKind string

const (
	// DirectiveText sends a plain text message.
	DirectiveText DirectiveKind = "text"
	// DirectiveTemplate sends a structured template (buttons or carousel).
	DirectiveTemplate DirectiveKind = "template"
	// DirectiveAttachment sends an image attachment by URL.
	DirectiveAttachment DirectiveKind = "attachment"
)

// Button is a postback button inside a template.
type Button struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// Element is a single card in a generic (carousel) template.
type Element struct {
	Title   string   `json:"title"`
	Buttons []Button `json:"buttons"`
}

// TemplatePayload is the Messenger template attachment payload.
type TemplatePayload struct {
	TemplateType string    `json:"template_type"`
	Text         string    `json:"text,omitempty"`
	Buttons      []Button  `json:"buttons,omitempty"`
	Elements     []Element `json:"elements,omitempty"`
}

// Template is a Messenger template attachment.
type Template struct {
	Type    string          `json:"type"`
	Payload TemplatePayload `json:"payload"`
}

// ReplyDirective is a single, not-yet-sent outbound instruction. A reply may
// expand to a list of directives issued in strict order.
type ReplyDirective struct {
	Kind          DirectiveKind `json:"kind"`
	Text          string        `json:"text,omitempty"`
	Template      *Template     `json:"template,omitempty"`
	AttachmentURL string        `json:"attachment_url,omitempty"`
}

// TextDirective builds a plain-text reply directive.
func TextDirective(body string) ReplyDirective {
	return ReplyDirective{Kind: DirectiveText, Text: body}
}

// AttachmentDirective builds an image attachment directive.
func AttachmentDirective(url string) ReplyDirective {
	return ReplyDirective{Kind: DirectiveAttachment, AttachmentURL: url}
}

// ButtonTemplateDirective builds a button template directive.
func ButtonTemplateDirective(text string, buttons []Button) ReplyDirective {
	return ReplyDirective{
		Kind: DirectiveTemplate,
		Template: &Template{
			Type:    "template",
			Payload: TemplatePayload{TemplateType: "button", Text: text, Buttons: buttons},
		},
	}
}

// GenericTemplateDirective builds a generic (scrollable carousel) template directive.
func GenericTemplateDirective(elements []Element) ReplyDirective {
	return ReplyDirective{
		Kind: DirectiveTemplate,
		Template: &Template{
			Type:    "template",
			Payload: TemplatePayload{TemplateType: "generic", Elements: elements},
		},
	}
}

// PageConfig holds the provisioning record for one Facebook page.
type PageConfig struct {
	PageID           string `json:"page_id"`
	PageToken        string `json:"page_token"`
	KeywordsSourceID string `json:"keywords_source_id"`
	BookingSourceID  string `json:"booking_source_id"`
}

// KeywordEntry is one row of a page's keyword auto-reply table.
// Keywords is a comma-separated list; Reply may hold several variants
// separated by "|"; Extra carries either an action token or a
// "|"-separated image URL list.
type KeywordEntry struct {
	Keywords string `json:"keywords"`
	Reply    string `json:"reply"`
	Extra    string `json:"extra,omitempty"`
}
