package flow

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jobinfo/wabot/core/conversation"
	"github.com/jobinfo/wabot/core/whatsapp"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// textPrompt renders a fixed text prompt addressed to the sender.
func textPrompt(body string) func(st *conversation.State) []whatsapp.Message {
	return func(st *conversation.State) []whatsapp.Message {
		return []whatsapp.Message{whatsapp.Text(st.SenderID, body)}
	}
}

// recordText validates a free-text answer against the rules and stores it
// under field. Validators are pure over (answers, payload); the state is
// only touched on success.
func recordText(st *conversation.State, field string, ev whatsapp.Event, rules string) Result {
	value := strings.TrimSpace(ev.Text)
	if err := validate.Var(value, rules); err != nil {
		return repeatInvalid(st, "Please send a short text answer.")
	}
	st.SetAnswer(field, value)
	return Result{Outcome: Advance}
}

// repeatInvalid re-prompts the current step with an error hint and leaves
// the state untouched.
func repeatInvalid(st *conversation.State, hint string) Result {
	return Result{Outcome: Repeat, Messages: []whatsapp.Message{
		whatsapp.Text(st.SenderID, "⚠️ "+strings.TrimPrefix(hint, "⚠️ ")),
	}}
}

// fieldHint names the first missing or invalid form field for the user.
func fieldHint(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return "The form is missing a valid *" + strings.ToLower(verrs[0].Field()) + "*. Please submit it again."
	}
	return "The form was incomplete. Please submit it again."
}

func answerOr(st *conversation.State, field string) string {
	v, _ := st.Answer(field)
	return v
}
