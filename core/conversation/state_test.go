package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBeginResetsStepAndAnswers(t *testing.T) {
	now := time.Now().UTC()
	st := NewState("15550001", now)
	st.Begin(FlowPostVacancy, now)
	st.Step = 3
	st.SetAnswer("title", "Driver")

	st.Begin(FlowRecruiterRegistration, now.Add(time.Minute))

	require.Equal(t, FlowRecruiterRegistration, st.Flow)
	require.Equal(t, 0, st.Step)
	require.Empty(t, st.Answers)
	require.Equal(t, StatusActive, st.Status)
}

func TestTerminalTransitionsClearFlow(t *testing.T) {
	now := time.Now().UTC()

	cases := []struct {
		name   string
		finish func(*State, time.Time)
		status Status
	}{
		{"complete", (*State).Complete, StatusCompleted},
		{"cancel", (*State).Cancel, StatusCancelled},
		{"abandon", (*State).Abandon, StatusAbandoned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := NewState("15550001", now)
			st.Begin(FlowPostVacancy, now)
			st.Step = 2
			st.SetAnswer("title", "Driver")

			tc.finish(st, now.Add(time.Minute))

			require.Equal(t, tc.status, st.Status)
			require.Equal(t, FlowNone, st.Flow)
			require.Equal(t, 0, st.Step)
			require.Empty(t, st.Answers)
			require.False(t, st.InFlow())
		})
	}
}

func TestStaleSince(t *testing.T) {
	now := time.Now().UTC()
	st := NewState("15550001", now)

	// Idle records never go stale.
	require.False(t, st.StaleSince(30*time.Minute, now.Add(2*time.Hour)))

	st.Begin(FlowSeekerRegistration, now)
	require.False(t, st.StaleSince(30*time.Minute, now.Add(29*time.Minute)))
	require.True(t, st.StaleSince(30*time.Minute, now.Add(31*time.Minute)))

	st.Complete(now)
	require.False(t, st.StaleSince(30*time.Minute, now.Add(2*time.Hour)))
}

func TestCloneIsIndependent(t *testing.T) {
	now := time.Now().UTC()
	st := NewState("15550001", now)
	st.Begin(FlowCvUpdate, now)
	st.SetAnswer("media_id", "m1")

	dup := st.Clone()
	dup.SetAnswer("media_id", "m2")
	dup.Step = 9

	require.Equal(t, "m1", st.Answers["media_id"])
	require.Equal(t, 0, st.Step)
}
