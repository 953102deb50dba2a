package conversation

import (
	"time"
)

// Flow names a multi-step conversational procedure.
type Flow string

const (
	// FlowNone means no flow is active for the sender.
	FlowNone Flow = ""
	// FlowRecruiterRegistration collects a recruiter profile.
	FlowRecruiterRegistration Flow = "recruiter_registration"
	// FlowPostVacancy collects a vacancy posting.
	FlowPostVacancy Flow = "post_vacancy"
	// FlowSeekerRegistration collects a seeker profile and CV.
	FlowSeekerRegistration Flow = "seeker_registration"
	// FlowCvUpdate replaces a seeker's stored CV.
	FlowCvUpdate Flow = "cv_update"
)

// Status describes the lifecycle of a conversation record.
type Status string

const (
	// StatusActive marks a live conversation.
	StatusActive Status = "active"
	// StatusCompleted marks a flow that ran to its final step.
	StatusCompleted Status = "completed"
	// StatusAbandoned marks a flow stalled past the staleness threshold.
	StatusAbandoned Status = "abandoned"
	// StatusCancelled marks a flow the user exited explicitly.
	StatusCancelled Status = "cancelled"
)

// State is the persisted per-sender conversation record. At most one exists
// per sender; the dispatcher owns creation and mutation.
//
// Invariant: Flow == FlowNone implies Step == 0 and Answers empty.
type State struct {
	SenderID  string            `db:"sender_id"`
	Flow      Flow              `db:"flow"`
	Step      int               `db:"step"`
	Answers   map[string]string `db:"-"`
	Status    Status            `db:"status"`
	StartedAt time.Time         `db:"started_at"`
	UpdatedAt time.Time         `db:"updated_at"`
}

// NewState returns a fresh idle record for a sender.
func NewState(senderID string, now time.Time) *State {
	return &State{
		SenderID:  senderID,
		Flow:      FlowNone,
		Answers:   map[string]string{},
		Status:    StatusActive,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// InFlow reports whether a flow is currently active.
func (s *State) InFlow() bool {
	return s.Flow != FlowNone
}

// Begin starts a flow at its first step with empty answers.
func (s *State) Begin(flow Flow, now time.Time) {
	s.Flow = flow
	s.Step = 0
	s.Answers = map[string]string{}
	s.Status = StatusActive
	s.StartedAt = now
	s.UpdatedAt = now
}

// SetAnswer records one collected field value.
func (s *State) SetAnswer(field, value string) {
	if s.Answers == nil {
		s.Answers = map[string]string{}
	}
	s.Answers[field] = value
}

// Answer returns a collected field value, if present.
func (s *State) Answer(field string) (string, bool) {
	v, ok := s.Answers[field]
	return v, ok
}

// Complete finishes the active flow and returns the record to idle so the
// next event starts fresh.
func (s *State) Complete(now time.Time) {
	s.Status = StatusCompleted
	s.clearFlow(now)
}

// Cancel exits the active flow at the user's request.
func (s *State) Cancel(now time.Time) {
	s.Status = StatusCancelled
	s.clearFlow(now)
}

// Abandon terminates the active flow due to staleness or a terminal failure.
func (s *State) Abandon(now time.Time) {
	s.Status = StatusAbandoned
	s.clearFlow(now)
}

// Touch bumps the activity timestamp.
func (s *State) Touch(now time.Time) {
	s.UpdatedAt = now
}

// StaleSince reports whether an active flow has been idle past threshold.
func (s *State) StaleSince(threshold time.Duration, now time.Time) bool {
	if !s.InFlow() || s.Status != StatusActive {
		return false
	}
	return now.Sub(s.UpdatedAt) > threshold
}

// Clone returns a deep copy so callers can mutate without aliasing stored data.
func (s *State) Clone() *State {
	dup := *s
	dup.Answers = make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		dup.Answers[k] = v
	}
	return &dup
}

func (s *State) clearFlow(now time.Time) {
	s.Flow = FlowNone
	s.Step = 0
	s.Answers = map[string]string{}
	s.UpdatedAt = now
}
