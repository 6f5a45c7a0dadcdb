package conversation

// Canned reply texts. The booking texts live here so the controller and the
// router send consistent copy.
const (
	// MsgFallback is sent when nothing matched a message.
	MsgFallback = "Sorry, I didn't understand that. Can you rephrase?"

	// MsgCommentReply is the DM sent to a commenter.
	MsgCommentReply = "Hi! Thanks for commenting on our post. How can I help you? 😊"

	// MsgRestart is sent when a booking cannot be completed.
	MsgRestart = "Something went wrong. Please type 'order' to start again."

	// MsgCancelled acknowledges an aborted booking.
	MsgCancelled = "No problem! Just message us again if you change your mind. 😊"

	// MsgConfirmPrompt asks the user to confirm before the questions start.
	MsgConfirmPrompt = "Great! Would you like to place a booking?"

	// MsgCustomDatePrompt asks for a free-text date after the override button.
	MsgCustomDatePrompt = "Sure! Please type your preferred date (e.g. 12/25/2026)."

	// MsgSummaryHeader opens the completion summary.
	MsgSummaryHeader = "You're all set! 🎉 Here's a summary of your booking:"

	// MsgSMSNotice tells the user a confirmation text is on the way.
	MsgSMSNotice = "A confirmation SMS will be sent to your number."

	// MsgSummaryFooter closes the completion summary.
	MsgSummaryFooter = "We'll message you shortly to confirm. Thank you!"

	// MsgInvalidPhone re-prompts after a rejected mobile number.
	MsgInvalidPhone = "That doesn't look like a valid mobile number. Please enter 11 digits starting with 09."

	// MsgInvalidDate re-prompts after a rejected date.
	MsgInvalidDate = "I couldn't read that date. Please use a format like 12/25/2026."

	// MsgInvalidChoice re-prompts after an answer that matched no option.
	MsgInvalidChoice = "Please pick one of the options below."
)

// affirmativeTokens are the start-confirmation words treated as yes when they
// appear anywhere in the answer.
var affirmativeTokens = map[string]bool{
	"yes": true, "y": true, "yup": true, "yeah": true,
	"oo": true, "opo": true, "sige": true, "sure": true, "ok": true, "okay": true,
}

// negativeTokens are the start-confirmation words treated as no.
var negativeTokens = map[string]bool{
	"no": true, "n": true, "nope": true, "hindi": true, "cancel": true,
}
