// Package conversation drives the per-user booking state machine.
//
// The controller turns one inbound message, postback or start intent into a
// session transition plus the ordered reply directives to send. It never
// sends anything itself; the router hands the directives to the scheduler.
// Callers must hold the user's keyed lock across each call.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kiara-bot/kiara/internal/models"
	"github.com/kiara-bot/kiara/internal/session"
	"github.com/kiara-bot/kiara/internal/sms"
	"github.com/kiara-bot/kiara/internal/store"
	"github.com/kiara-bot/kiara/internal/validate"
)

// Opts holds configuration options for the controller.
type Opts struct {
	SMS sms.Sender
	Now func() time.Time
}

// Option defines a configuration option for the controller.
type Option func(*Opts)

// WithSMS sets the sender for booking confirmation texts. The destination is
// the mobile number the customer entered during the flow.
func WithSMS(sender sms.Sender) Option {
	return func(o *Opts) { o.SMS = sender }
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// Controller runs booking conversations over a session store.
type Controller struct {
	sessions *session.Store
	store    store.Store
	sms      sms.Sender
	now      func() time.Time
}

// NewController creates a conversation controller.
func NewController(sessions *session.Store, st store.Store, opts ...Option) *Controller {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{
		sessions: sessions,
		store:    st,
		sms:      cfg.SMS,
		now:      cfg.Now,
	}
}

// Active reports whether the user has a booking in progress.
func (c *Controller) Active(userID string) bool {
	return c.sessions.Exists(userID)
}

// Start opens a booking for the user: it loads the step sequence, replaces
// any existing session and returns the yes/no confirmation prompt.
func (c *Controller) Start(ctx context.Context, userID, sourceID string) ([]models.ReplyDirective, error) {
	slog.Debug("Conversation start", "userID", userID, "sourceID", sourceID)

	steps, err := c.store.GetStepSequence(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load step sequence %s: %w", sourceID, err)
	}
	if len(steps) == 0 {
		return nil, models.ErrNoStepSequence
	}

	c.sessions.Create(userID, steps, sourceID)
	return []models.ReplyDirective{ConfirmPrompt()}, nil
}

// HandleText feeds a free-text message into the user's session. It returns
// ErrSessionMissing when there is no session, so the router can fall back to
// keyword matching.
func (c *Controller) HandleText(ctx context.Context, userID, text string) ([]models.ReplyDirective, error) {
	sess, ok := c.sessions.Get(userID)
	if !ok {
		return nil, models.ErrSessionMissing
	}

	if sess.StepIndex == 0 {
		return c.handleConfirmText(sess, text), nil
	}
	return c.submitAnswer(ctx, sess, text)
}

// HandleAction feeds a decoded postback action into the user's session.
func (c *Controller) HandleAction(ctx context.Context, userID string, action models.InboundAction) ([]models.ReplyDirective, error) {
	sess, ok := c.sessions.Get(userID)
	if !ok {
		return nil, models.ErrSessionMissing
	}

	switch action.Kind {
	case models.ActionConfirm:
		if sess.StepIndex != 0 {
			// Stale button press mid-flow, ignore.
			return nil, nil
		}
		return c.beginSteps(sess), nil

	case models.ActionCancel:
		c.sessions.Delete(sess.UserID)
		slog.Info("Booking cancelled", "userID", sess.UserID)
		return []models.ReplyDirective{models.TextDirective(MsgCancelled)}, nil

	case models.ActionCustomOverrideStart:
		if _, ok := sess.CurrentStep(); !ok {
			return nil, nil
		}
		sess.AwaitingCustomDate = true
		c.sessions.Put(sess)
		return []models.ReplyDirective{models.TextDirective(MsgCustomDatePrompt)}, nil

	case models.ActionChoiceAnswer:
		if sess.StepIndex == 0 {
			return nil, nil
		}
		return c.submitAnswer(ctx, sess, action.Value)

	default:
		return nil, nil
	}
}

// handleConfirmText resolves a typed answer to the start confirmation.
// Matching is by whole word, so "yes po" confirms. Unrecognized answers are
// swallowed so stray chatter does not abort.
func (c *Controller) handleConfirmText(sess models.Session, text string) []models.ReplyDirective {
	switch {
	case containsToken(text, affirmativeTokens):
		return c.beginSteps(sess)
	case containsToken(text, negativeTokens):
		c.sessions.Delete(sess.UserID)
		slog.Info("Booking declined", "userID", sess.UserID)
		return []models.ReplyDirective{models.TextDirective(MsgCancelled)}
	default:
		return nil
	}
}

// containsToken reports whether any word of text, lowered and stripped of
// trailing punctuation, is in the token set.
func containsToken(text string, tokens map[string]bool) bool {
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if tokens[strings.Trim(word, ".,!?;:\"'()")] {
			return true
		}
	}
	return false
}

// beginSteps moves the session from the confirmation gate to the first step.
func (c *Controller) beginSteps(sess models.Session) []models.ReplyDirective {
	sess.StepIndex = 1
	c.sessions.Put(sess)
	slog.Debug("Booking confirmed", "userID", sess.UserID)
	return StepPrompt(sess.Steps[0])
}

// submitAnswer validates raw against the pending step, stores it and either
// advances to the next prompt or completes the booking.
func (c *Controller) submitAnswer(ctx context.Context, sess models.Session, raw string) ([]models.ReplyDirective, error) {
	step, ok := sess.CurrentStep()
	if !ok {
		slog.Error("Session index out of range", "userID", sess.UserID, "stepIndex", sess.StepIndex)
		c.sessions.Delete(sess.UserID)
		return []models.ReplyDirective{models.TextDirective(MsgRestart)}, nil
	}

	value, invalid := c.validateAnswer(sess, step, raw)
	if invalid != nil {
		slog.Debug("Answer rejected", "userID", sess.UserID, "field", step.FieldKey, "error", invalid)
		return invalid, nil
	}

	sess.Answers[step.FieldKey] = value
	sess.AwaitingCustomDate = false

	if sess.StepIndex >= len(sess.Steps) {
		return c.complete(ctx, sess)
	}

	sess.StepIndex++
	c.sessions.Put(sess)
	return StepPrompt(sess.Steps[sess.StepIndex-1]), nil
}

// validateAnswer returns the canonical answer value, or the re-prompt
// directives when the answer is rejected.
func (c *Controller) validateAnswer(sess models.Session, step models.StepDefinition, raw string) (string, []models.ReplyDirective) {
	if sess.AwaitingCustomDate {
		value, err := validate.Date(raw, c.now())
		if err != nil {
			return "", []models.ReplyDirective{models.TextDirective(MsgInvalidDate)}
		}
		return value, nil
	}

	switch step.Type {
	case models.StepTypePhone:
		value, err := validate.Phone(raw)
		if err != nil {
			return "", []models.ReplyDirective{models.TextDirective(MsgInvalidPhone)}
		}
		return value, nil

	case models.StepTypeDate:
		value, err := validate.Date(raw, c.now())
		if err != nil {
			return "", []models.ReplyDirective{models.TextDirective(MsgInvalidDate)}
		}
		return value, nil

	case models.StepTypeChoice:
		value, err := validate.Choice(raw, step.Options)
		if err != nil {
			return "", append([]models.ReplyDirective{models.TextDirective(MsgInvalidChoice)}, choicePrompt(step))
		}
		return value, nil

	default:
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return "", StepPrompt(step)
		}
		return trimmed, nil
	}
}

// complete persists the finished booking, texts the customer a confirmation
// on the number they entered and tears down the session. A storage failure is
// logged; the user still gets their summary.
func (c *Controller) complete(ctx context.Context, sess models.Session) ([]models.ReplyDirective, error) {
	order := models.Order{
		ID:          uuid.NewString(),
		UserID:      sess.UserID,
		SourceID:    sess.OrderSourceID,
		Answers:     sess.Answers,
		CompletedAt: c.now(),
	}

	if err := c.store.SaveOrder(ctx, order); err != nil {
		slog.Error("Failed to save order", "error", err, "userID", sess.UserID, "orderID", order.ID)
	}

	c.sessions.Delete(sess.UserID)
	slog.Info("Booking completed", "userID", sess.UserID, "orderID", order.ID)

	phone := phoneAnswer(sess)
	if c.sms != nil && phone != "" {
		confirmation := FormatBookingConfirmation(order, sess.Steps)
		if err := c.sms.SendSMS(ctx, phone, confirmation); err != nil {
			slog.Error("Failed to send confirmation SMS", "error", err, "orderID", order.ID)
		}
	}

	return c.summaryDirectives(sess, phone != ""), nil
}

// phoneAnswer returns the answer to the flow's phone-typed step, or "" when
// the flow asked for no number.
func phoneAnswer(sess models.Session) string {
	for _, step := range sess.Steps {
		if step.Type != models.StepTypePhone {
			continue
		}
		if answer, ok := sess.Answers[step.FieldKey]; ok {
			return answer
		}
	}
	return ""
}

// summaryDirectives renders the completion summary sent back to the user.
func (c *Controller) summaryDirectives(sess models.Session, smsSent bool) []models.ReplyDirective {
	var b strings.Builder
	b.WriteString(MsgSummaryHeader)
	for _, step := range sess.Steps {
		answer, ok := sess.Answers[step.FieldKey]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s", promptLabel(step), answer)
	}
	if smsSent {
		b.WriteString("\n\n")
		b.WriteString(MsgSMSNotice)
	}
	b.WriteString("\n\n")
	b.WriteString(MsgSummaryFooter)
	return []models.ReplyDirective{models.TextDirective(b.String())}
}
