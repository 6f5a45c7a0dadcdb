package conversation

import (
	"strings"
	"unicode"

	"github.com/kiara-bot/kiara/internal/models"
)

// maxTemplateButtons is the Messenger limit on buttons per template or card.
const maxTemplateButtons = 3

// StepPrompt renders the outbound directives that ask one step's question.
// Choice steps with up to three options fit a button template; larger option
// sets become a scrollable carousel with one card per option.
func StepPrompt(step models.StepDefinition) []models.ReplyDirective {
	switch step.Type {
	case models.StepTypePhone:
		return []models.ReplyDirective{models.TextDirective(step.Prompt + "\n(11 digits, starting with 09)")}
	case models.StepTypeDate:
		return []models.ReplyDirective{models.TextDirective(step.Prompt + "\n(e.g. 12/25/2026)")}
	case models.StepTypeChoice:
		return []models.ReplyDirective{choicePrompt(step)}
	default:
		return []models.ReplyDirective{models.TextDirective(step.Prompt)}
	}
}

func choicePrompt(step models.StepDefinition) models.ReplyDirective {
	if len(step.Options) <= maxTemplateButtons {
		buttons := make([]models.Button, 0, len(step.Options))
		for _, opt := range step.Options {
			buttons = append(buttons, models.Button{
				Type:    "postback",
				Title:   opt.Label,
				Payload: models.EncodeAnswerPayload(opt.Value),
			})
		}
		return models.ButtonTemplateDirective(step.Prompt, buttons)
	}

	elements := make([]models.Element, 0, len(step.Options))
	for _, opt := range step.Options {
		elements = append(elements, models.Element{
			Title: opt.Label,
			Buttons: []models.Button{{
				Type:    "postback",
				Title:   "Select",
				Payload: models.EncodeAnswerPayload(opt.Value),
			}},
		})
	}
	return models.GenericTemplateDirective(elements)
}

// ConfirmPrompt renders the yes/no confirmation that opens a booking.
func ConfirmPrompt() models.ReplyDirective {
	return models.ButtonTemplateDirective(MsgConfirmPrompt, []models.Button{
		{Type: "postback", Title: "Yes", Payload: models.PayloadConfirm},
		{Type: "postback", Title: "No", Payload: models.PayloadCancel},
	})
}

// promptLabel derives a short field label from a step's question, taking the
// last word of the prompt stripped of punctuation and emoji. "What is your
// name?" becomes "Name". Falls back to the field key.
func promptLabel(step models.StepDefinition) string {
	words := strings.Fields(step.Prompt)
	for i := len(words) - 1; i >= 0; i-- {
		cleaned := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, words[i])
		if cleaned == "" {
			continue
		}
		return strings.ToUpper(cleaned[:1]) + cleaned[1:]
	}
	if step.FieldKey != "" {
		return strings.ToUpper(step.FieldKey[:1]) + step.FieldKey[1:]
	}
	return ""
}
