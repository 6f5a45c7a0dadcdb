package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kiara-bot/kiara/internal/models"
	"github.com/kiara-bot/kiara/internal/session"
	"github.com/kiara-bot/kiara/internal/sms"
	"github.com/kiara-bot/kiara/internal/store"
)

func bookingSteps() []models.StepDefinition {
	return []models.StepDefinition{
		{FieldKey: "name", Prompt: "What is your name?", Type: models.StepTypeText},
		{FieldKey: "phone", Prompt: "What is your mobile number?", Type: models.StepTypePhone},
		{FieldKey: "date", Prompt: "What is your preferred date?", Type: models.StepTypeDate},
	}
}

func newTestController(t *testing.T, steps []models.StepDefinition) (*Controller, *store.MemoryStore, *sms.MockSender) {
	t.Helper()
	mem := store.NewMemoryStore()
	mem.SetStepSequence("src-1", steps)
	mockSMS := sms.NewMockSender()
	fixedNow := func() time.Time {
		return time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)
	}
	ctrl := NewController(session.NewStore(), mem, WithSMS(mockSMS), WithClock(fixedNow))
	return ctrl, mem, mockSMS
}

func onlyText(t *testing.T, directives []models.ReplyDirective) string {
	t.Helper()
	if len(directives) != 1 || directives[0].Kind != models.DirectiveText {
		t.Fatalf("expected a single text directive, got %+v", directives)
	}
	return directives[0].Text
}

func TestStartSendsConfirmation(t *testing.T) {
	ctrl, _, _ := newTestController(t, bookingSteps())
	ctx := context.Background()

	directives, err := ctrl.Start(ctx, "user-1", "src-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(directives) != 1 || directives[0].Kind != models.DirectiveTemplate {
		t.Fatalf("expected confirmation template, got %+v", directives)
	}
	buttons := directives[0].Template.Payload.Buttons
	if len(buttons) != 2 || buttons[0].Payload != models.PayloadConfirm || buttons[1].Payload != models.PayloadCancel {
		t.Errorf("confirmation buttons = %+v", buttons)
	}
	if !ctrl.Active("user-1") {
		t.Error("session should exist after Start")
	}
}

func TestStartWithoutSteps(t *testing.T) {
	ctrl, _, _ := newTestController(t, nil)
	if _, err := ctrl.Start(context.Background(), "user-1", "src-1"); err != models.ErrNoStepSequence {
		t.Fatalf("err = %v, want ErrNoStepSequence", err)
	}
}

func TestHandleTextWithoutSession(t *testing.T) {
	ctrl, _, _ := newTestController(t, bookingSteps())
	if _, err := ctrl.HandleText(context.Background(), "user-1", "hello"); err != models.ErrSessionMissing {
		t.Fatalf("err = %v, want ErrSessionMissing", err)
	}
}

func TestConfirmationGate(t *testing.T) {
	ctx := context.Background()

	t.Run("unrecognized answer is swallowed", func(t *testing.T) {
		ctrl, _, _ := newTestController(t, bookingSteps())
		ctrl.Start(ctx, "user-1", "src-1")
		directives, err := ctrl.HandleText(ctx, "user-1", "what is this")
		if err != nil || directives != nil {
			t.Fatalf("got %+v, %v; want nil, nil", directives, err)
		}
		if !ctrl.Active("user-1") {
			t.Error("session should survive an unrecognized answer")
		}
	})

	t.Run("negative answer cancels", func(t *testing.T) {
		ctrl, _, _ := newTestController(t, bookingSteps())
		ctrl.Start(ctx, "user-1", "src-1")
		directives, err := ctrl.HandleText(ctx, "user-1", "No")
		if err != nil {
			t.Fatalf("HandleText failed: %v", err)
		}
		if got := onlyText(t, directives); got != MsgCancelled {
			t.Errorf("reply = %q", got)
		}
		if ctrl.Active("user-1") {
			t.Error("session should be gone after decline")
		}
	})

	t.Run("affirmative word starts the steps", func(t *testing.T) {
		for _, answer := range []string{"sige", "Yes po!", "okay sure"} {
			ctrl, _, _ := newTestController(t, bookingSteps())
			ctrl.Start(ctx, "user-1", "src-1")
			directives, err := ctrl.HandleText(ctx, "user-1", answer)
			if err != nil {
				t.Fatalf("HandleText(%q) failed: %v", answer, err)
			}
			if got := onlyText(t, directives); got != "What is your name?" {
				t.Errorf("first prompt after %q = %q", answer, got)
			}
		}
	})
}

func TestInvalidAnswersReprompt(t *testing.T) {
	ctx := context.Background()
	ctrl, mem, _ := newTestController(t, bookingSteps())
	ctrl.Start(ctx, "user-1", "src-1")
	ctrl.HandleText(ctx, "user-1", "yes")
	ctrl.HandleText(ctx, "user-1", "Jane")

	directives, err := ctrl.HandleText(ctx, "user-1", "091234567")
	if err != nil {
		t.Fatalf("HandleText failed: %v", err)
	}
	if got := onlyText(t, directives); got != MsgInvalidPhone {
		t.Errorf("phone reprompt = %q", got)
	}

	ctrl.HandleText(ctx, "user-1", "09171112222")
	directives, err = ctrl.HandleText(ctx, "user-1", "not a date")
	if err != nil {
		t.Fatalf("HandleText failed: %v", err)
	}
	if got := onlyText(t, directives); got != MsgInvalidDate {
		t.Errorf("date reprompt = %q", got)
	}

	if len(mem.Orders()) != 0 {
		t.Error("no order should be saved before the flow completes")
	}
}

func TestEndToEndBooking(t *testing.T) {
	ctx := context.Background()
	ctrl, mem, mockSMS := newTestController(t, bookingSteps())

	if _, err := ctrl.Start(ctx, "user-1", "src-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, input := range []string{"yes", "Jane", "0917 111 2222"} {
		if _, err := ctrl.HandleText(ctx, "user-1", input); err != nil {
			t.Fatalf("HandleText(%q) failed: %v", input, err)
		}
	}
	directives, err := ctrl.HandleText(ctx, "user-1", "12/25/2026")
	if err != nil {
		t.Fatalf("final HandleText failed: %v", err)
	}

	summary := onlyText(t, directives)
	if !strings.Contains(summary, MsgSummaryHeader) || !strings.Contains(summary, "Jane") {
		t.Errorf("summary = %q", summary)
	}
	if !strings.Contains(summary, MsgSMSNotice) {
		t.Errorf("summary should announce the confirmation text: %q", summary)
	}

	orders := mem.Orders()
	if len(orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(orders))
	}
	want := map[string]string{"name": "Jane", "phone": "09171112222", "date": "December 25, 2026"}
	for k, v := range want {
		if orders[0].Answers[k] != v {
			t.Errorf("answer[%s] = %q, want %q", k, orders[0].Answers[k], v)
		}
	}
	if orders[0].ID == "" {
		t.Error("order id should be set")
	}

	texts := mockSMS.Sent()
	if len(texts) != 1 {
		t.Fatalf("got %d SMS, want 1", len(texts))
	}
	if texts[0].To != "09171112222" {
		t.Errorf("SMS went to %q, want the number the user entered", texts[0].To)
	}
	if !strings.Contains(texts[0].Body, "Jane") || !strings.Contains(texts[0].Body, "December 25, 2026") {
		t.Errorf("confirmation body = %q", texts[0].Body)
	}

	if ctrl.Active("user-1") {
		t.Error("session should be torn down after completion")
	}
	if _, err := ctrl.HandleText(ctx, "user-1", "hello again"); err != models.ErrSessionMissing {
		t.Errorf("post-completion err = %v, want ErrSessionMissing", err)
	}
}

func TestChoiceStepTemplates(t *testing.T) {
	ctx := context.Background()
	small := []models.StepDefinition{{
		FieldKey: "size",
		Prompt:   "What size?",
		Type:     models.StepTypeChoice,
		Options: []models.ChoiceOption{
			{Label: "Small", Value: "small"},
			{Label: "Large", Value: "large"},
		},
	}}
	ctrl, _, _ := newTestController(t, small)
	ctrl.Start(ctx, "user-1", "src-1")

	directives, _ := ctrl.HandleText(ctx, "user-1", "yes")
	if len(directives) != 1 || directives[0].Template == nil {
		t.Fatalf("expected template prompt, got %+v", directives)
	}
	if got := directives[0].Template.Payload.TemplateType; got != "button" {
		t.Errorf("template type = %q, want button for 2 options", got)
	}

	big := []models.StepDefinition{{
		FieldKey: "slot",
		Prompt:   "Pick a slot",
		Type:     models.StepTypeChoice,
		Options: []models.ChoiceOption{
			{Label: "9am", Value: "9am"}, {Label: "10am", Value: "10am"},
			{Label: "11am", Value: "11am"}, {Label: "1pm", Value: "1pm"},
			{Label: "2pm", Value: "2pm"},
		},
	}}
	ctrl2, _, _ := newTestController(t, big)
	ctrl2.Start(ctx, "user-2", "src-1")
	directives, _ = ctrl2.HandleText(ctx, "user-2", "yes")
	if len(directives) != 1 || directives[0].Template == nil {
		t.Fatalf("expected template prompt, got %+v", directives)
	}
	payload := directives[0].Template.Payload
	if payload.TemplateType != "generic" {
		t.Errorf("template type = %q, want generic for 5 options", payload.TemplateType)
	}
	if len(payload.Elements) != 5 {
		t.Fatalf("got %d carousel entries, want one per option", len(payload.Elements))
	}
	if payload.Elements[0].Title != "9am" || len(payload.Elements[0].Buttons) != 1 {
		t.Errorf("carousel entry = %+v", payload.Elements[0])
	}
}

func TestChoiceAnswerByPostback(t *testing.T) {
	ctx := context.Background()
	steps := []models.StepDefinition{{
		FieldKey: "size",
		Prompt:   "What size?",
		Type:     models.StepTypeChoice,
		Options: []models.ChoiceOption{
			{Label: "Small", Value: "small"},
			{Label: "Large", Value: "large"},
		},
	}}
	ctrl, mem, _ := newTestController(t, steps)
	ctrl.Start(ctx, "user-1", "src-1")
	ctrl.HandleAction(ctx, "user-1", models.InboundAction{Kind: models.ActionConfirm})

	if _, err := ctrl.HandleAction(ctx, "user-1", models.InboundAction{Kind: models.ActionChoiceAnswer, Value: "large"}); err != nil {
		t.Fatalf("HandleAction failed: %v", err)
	}
	orders := mem.Orders()
	if len(orders) != 1 || orders[0].Answers["size"] != "large" {
		t.Fatalf("orders = %+v", orders)
	}
}

func TestCustomDateOverride(t *testing.T) {
	ctx := context.Background()
	steps := []models.StepDefinition{{
		FieldKey: "date",
		Prompt:   "Pick a date",
		Type:     models.StepTypeChoice,
		Options: []models.ChoiceOption{
			{Label: "Dec 24", Value: "December 24, 2026"},
			{Label: "Dec 25", Value: "December 25, 2026"},
			{Label: "Other date", Value: models.CustomDateValue},
		},
	}}
	ctrl, mem, _ := newTestController(t, steps)
	ctrl.Start(ctx, "user-1", "src-1")
	ctrl.HandleAction(ctx, "user-1", models.InboundAction{Kind: models.ActionConfirm})

	directives, err := ctrl.HandleAction(ctx, "user-1", models.InboundAction{Kind: models.ActionCustomOverrideStart})
	if err != nil {
		t.Fatalf("override failed: %v", err)
	}
	if got := onlyText(t, directives); got != MsgCustomDatePrompt {
		t.Errorf("override prompt = %q", got)
	}

	// While the override is pending, free text is parsed as a date, not a choice.
	directives, err = ctrl.HandleText(ctx, "user-1", "1/10/2027")
	if err != nil {
		t.Fatalf("custom date failed: %v", err)
	}
	orders := mem.Orders()
	if len(orders) != 1 || orders[0].Answers["date"] != "January 10, 2027" {
		t.Fatalf("orders = %+v", orders)
	}
	if len(directives) == 0 {
		t.Error("completion should send a summary")
	}
}

func TestFormatBookingConfirmation(t *testing.T) {
	steps := append(bookingSteps(), models.StepDefinition{
		FieldKey: "notes", Prompt: "Any special requests?", Type: models.StepTypeText,
	})
	order := models.Order{
		Answers: map[string]string{
			"name":  "Jane",
			"phone": "09171112222",
			"date":  "December 25, 2026",
			"notes": "window seat",
		},
	}
	body := FormatBookingConfirmation(order, steps)
	if !strings.Contains(body, "Jane") || !strings.Contains(body, "December 25, 2026") {
		t.Errorf("confirmation = %q", body)
	}
	if strings.Contains(body, "09171112222") {
		t.Errorf("phone answers stay out of the confirmation: %q", body)
	}
	if !strings.Contains(body, "Requests: window seat") {
		t.Errorf("confirmation should list extra answers by prompt label: %q", body)
	}
}

func TestNoSMSWithoutPhoneField(t *testing.T) {
	ctx := context.Background()
	steps := []models.StepDefinition{
		{FieldKey: "name", Prompt: "What is your name?", Type: models.StepTypeText},
	}
	ctrl, mem, mockSMS := newTestController(t, steps)
	ctrl.Start(ctx, "user-1", "src-1")
	ctrl.HandleText(ctx, "user-1", "yes")
	if _, err := ctrl.HandleText(ctx, "user-1", "Jane"); err != nil {
		t.Fatalf("HandleText failed: %v", err)
	}

	if len(mem.Orders()) != 1 {
		t.Fatal("booking should persist without a phone field")
	}
	if got := mockSMS.Sent(); len(got) != 0 {
		t.Errorf("no SMS expected without a phone answer, got %+v", got)
	}
}

// failingStore simulates an order sink that is temporarily down.
type failingStore struct {
	*store.MemoryStore
}

func (f *failingStore) SaveOrder(ctx context.Context, order models.Order) error {
	return errors.New("order sink unavailable")
}

func TestSaveOrderFailureStillCompletes(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	mem.SetStepSequence("src-1", bookingSteps())
	mockSMS := sms.NewMockSender()
	fixedNow := func() time.Time {
		return time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)
	}
	ctrl := NewController(session.NewStore(), &failingStore{mem}, WithSMS(mockSMS), WithClock(fixedNow))

	ctrl.Start(ctx, "user-1", "src-1")
	for _, input := range []string{"yes", "Jane", "09171112222"} {
		if _, err := ctrl.HandleText(ctx, "user-1", input); err != nil {
			t.Fatalf("HandleText(%q) failed: %v", input, err)
		}
	}
	directives, err := ctrl.HandleText(ctx, "user-1", "12/25/2026")
	if err != nil {
		t.Fatalf("final HandleText failed: %v", err)
	}

	summary := onlyText(t, directives)
	if !strings.Contains(summary, MsgSummaryHeader) {
		t.Errorf("summary = %q, want the completion summary despite the storage failure", summary)
	}
	if strings.Contains(summary, MsgRestart) {
		t.Errorf("storage failure must not abort the flow: %q", summary)
	}
	if len(mockSMS.Sent()) != 1 {
		t.Errorf("got %d SMS, want the confirmation regardless of storage", len(mockSMS.Sent()))
	}
	if ctrl.Active("user-1") {
		t.Error("session should be torn down")
	}
}

func TestPromptLabel(t *testing.T) {
	cases := []struct {
		prompt string
		key    string
		want   string
	}{
		{"What is your name?", "name", "Name"},
		{"What is your preferred date? 📅", "date", "Date"},
		{"", "notes", "Notes"},
	}
	for _, tc := range cases {
		got := promptLabel(models.StepDefinition{Prompt: tc.prompt, FieldKey: tc.key})
		if got != tc.want {
			t.Errorf("promptLabel(%q) = %q, want %q", tc.prompt, got, tc.want)
		}
	}
}
