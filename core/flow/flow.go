// Package flow implements the per-role conversation state machines. Each
// flow is a fixed ordered sequence of named steps; a step declares the input
// kinds it accepts, applies a validator over the accumulated answers and the
// event payload, and names its successor implicitly through step order.
package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/jobinfo/wabot/core/conversation"
	"github.com/jobinfo/wabot/core/logger"
	"github.com/jobinfo/wabot/core/whatsapp"
)

// Outcome is the effect one step application has on the machine.
type Outcome int

const (
	// Advance moves to the successor step.
	Advance Outcome = iota
	// Repeat keeps the current step; answers are untouched.
	Repeat
	// Complete finishes the flow successfully.
	Complete
	// Fail terminates the flow permanently (e.g. OTP attempts exhausted).
	Fail
)

// Result carries a step's outcome and the messages it produced. On Advance
// the engine appends the successor's prompt; on Repeat the messages are
// expected to already contain the error hint and re-prompt. Goto names a
// non-linear successor for branching steps.
type Result struct {
	Outcome  Outcome
	Goto     string
	Messages []whatsapp.Message
}

// Step is one ordinal stage of a flow.
type Step struct {
	Name string
	// Kinds lists the accepted event kinds; anything else re-prompts.
	Kinds []whatsapp.Kind
	// Prompt renders the step's instruction for the sender.
	Prompt func(st *conversation.State) []whatsapp.Message
	// Apply validates the event and records answers. It must leave the
	// state unmodified on Repeat so invalid input stays idempotent.
	Apply func(ctx context.Context, st *conversation.State, ev whatsapp.Event) Result
}

func (s Step) accepts(kind whatsapp.Kind) bool {
	for _, k := range s.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Machine runs one flow's step sequence over a conversation state.
type Machine struct {
	flow  conversation.Flow
	steps []Step
	now   func() time.Time
}

// NewMachine assembles a machine from an ordered step list.
func NewMachine(flow conversation.Flow, steps []Step) *Machine {
	return &Machine{
		flow:  flow,
		steps: steps,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Flow returns the flow this machine drives.
func (m *Machine) Flow() conversation.Flow {
	return m.flow
}

// Start initializes the flow on the state and emits the first prompt.
func (m *Machine) Start(_ context.Context, st *conversation.State) []whatsapp.Message {
	st.Begin(m.flow, m.now())
	logger.FLOW.Info("flow started",
		slog.String("event", "flow.start"),
		slog.String("flow", string(m.flow)),
		slog.String("sender", st.SenderID),
	)
	return m.steps[0].Prompt(st)
}

// Advance validates the event against the current step and transitions the
// state. Invalid input re-emits the step prompt with a hint and leaves step
// and answers unchanged, so repeated invalid input never corrupts the flow.
func (m *Machine) Advance(ctx context.Context, st *conversation.State, ev whatsapp.Event) []whatsapp.Message {
	if st.Step < 0 || st.Step >= len(m.steps) {
		// Only possible when persisted state predates a step-table change.
		logger.FLOW.Error("step out of range",
			slog.String("event", "flow.step_invalid"),
			slog.String("flow", string(m.flow)),
			slog.Int("step", st.Step),
		)
		st.Abandon(m.now())
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgFlowFailed)}
	}

	step := m.steps[st.Step]
	if !step.accepts(ev.Kind) {
		return withHint(st, step, msgWrongInputHint)
	}

	res := step.Apply(ctx, st, ev)
	switch res.Outcome {
	case Advance:
		if res.Goto != "" {
			next := m.stepIndex(res.Goto)
			if next < 0 {
				logger.FLOW.Error("unknown goto step",
					slog.String("event", "flow.step_invalid"),
					slog.String("flow", string(m.flow)),
					slog.String("goto", res.Goto),
				)
				st.Abandon(m.now())
				return []whatsapp.Message{whatsapp.Text(st.SenderID, msgFlowFailed)}
			}
			st.Step = next
		} else {
			st.Step++
		}
		st.Touch(m.now())
		msgs := res.Messages
		msgs = append(msgs, m.steps[st.Step].Prompt(st)...)
		m.logTransition(st, step.Name, "advance")
		return msgs

	case Complete:
		st.Complete(m.now())
		m.logTransition(st, step.Name, "complete")
		return res.Messages

	case Fail:
		st.Abandon(m.now())
		m.logTransition(st, step.Name, "fail")
		if len(res.Messages) == 0 {
			return []whatsapp.Message{whatsapp.Text(st.SenderID, msgFlowFailed)}
		}
		return res.Messages

	default: // Repeat
		if len(res.Messages) == 0 {
			return withHint(st, step, msgWrongInputHint)
		}
		return append(res.Messages, step.Prompt(st)...)
	}
}

func (m *Machine) stepIndex(name string) int {
	for i, s := range m.steps {
		if s.Name == name {
			return i
		}
	}
	return -1
}

func (m *Machine) logTransition(st *conversation.State, stepName, action string) {
	logger.FLOW.Info("flow transition",
		slog.String("event", "flow."+action),
		slog.String("flow", string(m.flow)),
		slog.String("step", stepName),
		slog.String("sender", st.SenderID),
	)
}

func withHint(st *conversation.State, step Step, hint string) []whatsapp.Message {
	msgs := []whatsapp.Message{whatsapp.Text(st.SenderID, hint)}
	return append(msgs, step.Prompt(st)...)
}
