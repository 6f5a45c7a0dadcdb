package conversation

import (
	"fmt"
	"strings"

	"github.com/kiara-bot/kiara/internal/models"
)

// FormatBookingConfirmation renders the SMS sent to the customer's own number
// when a booking completes. The greeting names the customer and the booked
// date; every other answer follows as a labelled line, except phone answers
// since the text already arrives on that number.
func FormatBookingConfirmation(order models.Order, steps []models.StepDefinition) string {
	var name, date string
	inGreeting := make(map[string]bool)

	for _, step := range steps {
		answer, ok := order.Answers[step.FieldKey]
		if !ok {
			continue
		}
		prompt := strings.ToLower(step.Prompt)
		if name == "" && strings.Contains(prompt, "name") {
			name = answer
			inGreeting[step.FieldKey] = true
			continue
		}
		if date == "" && (step.Type == models.StepTypeDate || strings.Contains(prompt, "date")) {
			date = answer
			inGreeting[step.FieldKey] = true
		}
	}

	var b strings.Builder
	switch {
	case name != "" && date != "":
		fmt.Fprintf(&b, "Hi %s! Your booking for %s is confirmed.", name, date)
	case name != "":
		fmt.Fprintf(&b, "Hi %s! Your booking is confirmed.", name)
	case date != "":
		fmt.Fprintf(&b, "Your booking for %s is confirmed.", date)
	default:
		b.WriteString("Your booking is confirmed.")
	}

	for _, step := range steps {
		if inGreeting[step.FieldKey] || step.Type == models.StepTypePhone {
			continue
		}
		answer, ok := order.Answers[step.FieldKey]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s", promptLabel(step), answer)
	}
	return b.String()
}
