package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jobinfo/wabot/core/codec/otp"
	"github.com/jobinfo/wabot/core/conversation"
	"github.com/jobinfo/wabot/core/media"
	"github.com/jobinfo/wabot/core/storage"
	"github.com/jobinfo/wabot/core/whatsapp"
)

const testSender = "15550001"

type stubOTP struct {
	code      string
	verifyErr error
	left      int
	generated int
}

func (s *stubOTP) Generate(context.Context, string) (string, error) {
	s.generated++
	return s.code, nil
}

func (s *stubOTP) Verify(_ context.Context, _ string, submitted string) error {
	if s.verifyErr != nil {
		return s.verifyErr
	}
	if submitted != s.code {
		return otp.ErrMismatch
	}
	return nil
}

func (s *stubOTP) AttemptsLeft(context.Context, string) int { return s.left }

type stubCV struct {
	path  string
	err   error
	saved int
}

func (s *stubCV) SaveCV(context.Context, string, string, string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.saved++
	return s.path, nil
}

func testServices() (Services, *storage.MemoryRepository, *stubOTP, *stubCV) {
	repo := storage.NewMemoryRepository()
	o := &stubOTP{code: "123456", left: 2}
	cv := &stubCV{path: "uploads/cvs/15550001/cv.pdf"}
	return Services{Repo: repo, OTP: o, CV: cv, AdminNumber: "15559999"}, repo, o, cv
}

func textEvent(body string) whatsapp.Event {
	return whatsapp.Event{Sender: testSender, Kind: whatsapp.KindText, Text: body}
}

func formEvent(fields map[string]string) whatsapp.Event {
	return whatsapp.Event{Sender: testSender, Kind: whatsapp.KindFlowCompletion, Fields: fields}
}

func activeState() *conversation.State {
	return conversation.NewState(testSender, time.Now().UTC())
}

func TestRecruiterRegistrationStepByStep(t *testing.T) {
	svc, repo, otpSvc, _ := testServices()
	m := NewRecruiterRegistration(svc)
	ctx := context.Background()
	st := activeState()

	msgs := m.Start(ctx, st)
	require.Len(t, msgs, 1)
	require.Equal(t, conversation.FlowRecruiterRegistration, st.Flow)

	m.Advance(ctx, st, textEvent("Priya Sharma"))
	m.Advance(ctx, st, textEvent("Acme Staffing"))
	m.Advance(ctx, st, textEvent("Mumbai"))
	m.Advance(ctx, st, textEvent("priya@acme.example"))
	require.Equal(t, 1, otpSvc.generated)

	msgs = m.Advance(ctx, st, textEvent("123456"))
	require.Equal(t, conversation.StatusCompleted, st.Status)
	require.False(t, st.InFlow())
	require.Len(t, msgs, 2) // confirmation + next-step buttons

	rec, err := repo.RecruiterByNumber(ctx, testSender)
	require.NoError(t, err)
	require.Equal(t, "Priya Sharma", rec.Name)
	require.Equal(t, "priya@acme.example", rec.Email)
}

func TestRecruiterRegistrationFormPath(t *testing.T) {
	svc, repo, otpSvc, _ := testServices()
	m := NewRecruiterRegistration(svc)
	ctx := context.Background()
	st := activeState()

	m.Start(ctx, st)
	m.Advance(ctx, st, formEvent(map[string]string{
		"name":     "Priya Sharma",
		"company":  "Acme Staffing",
		"location": "Mumbai",
		"email":    "priya@acme.example",
	}))
	require.Equal(t, 1, otpSvc.generated)
	require.True(t, st.InFlow(), "form path still requires verification")

	m.Advance(ctx, st, textEvent("123456"))
	require.Equal(t, conversation.StatusCompleted, st.Status)

	_, err := repo.RecruiterByNumber(ctx, testSender)
	require.NoError(t, err)
}

func TestRecruiterRegistrationInvalidEmailIsIdempotent(t *testing.T) {
	svc, _, _, _ := testServices()
	m := NewRecruiterRegistration(svc)
	ctx := context.Background()
	st := activeState()

	m.Start(ctx, st)
	m.Advance(ctx, st, textEvent("Priya Sharma"))
	m.Advance(ctx, st, textEvent("Acme Staffing"))
	m.Advance(ctx, st, textEvent("Mumbai"))

	stepBefore := st.Step
	answersBefore := len(st.Answers)

	for i := 0; i < 3; i++ {
		msgs := m.Advance(ctx, st, textEvent("not-an-email"))
		require.NotEmpty(t, msgs)
		require.Equal(t, stepBefore, st.Step)
		require.Len(t, st.Answers, answersBefore)
		require.Equal(t, conversation.StatusActive, st.Status)
	}
}

func TestRecruiterRegistrationWrongKindReprompts(t *testing.T) {
	svc, _, _, _ := testServices()
	m := NewRecruiterRegistration(svc)
	ctx := context.Background()
	st := activeState()

	m.Start(ctx, st)
	m.Advance(ctx, st, textEvent("Priya Sharma"))

	msgs := m.Advance(ctx, st, whatsapp.Event{Sender: testSender, Kind: whatsapp.KindMedia, MediaID: "m1"})
	require.Len(t, msgs, 2) // hint + step prompt
	require.Equal(t, 1, st.Step)
}

func TestRecruiterRegistrationOTPExhaustionFails(t *testing.T) {
	svc, repo, otpSvc, _ := testServices()
	m := NewRecruiterRegistration(svc)
	ctx := context.Background()
	st := activeState()

	m.Start(ctx, st)
	m.Advance(ctx, st, formEvent(map[string]string{
		"name":     "Priya Sharma",
		"company":  "Acme Staffing",
		"location": "Mumbai",
		"email":    "priya@acme.example",
	}))

	otpSvc.verifyErr = otp.ErrAttemptsExhausted
	m.Advance(ctx, st, textEvent("000000"))

	require.Equal(t, conversation.StatusAbandoned, st.Status)
	require.False(t, st.InFlow())
	_, err := repo.RecruiterByNumber(ctx, testSender)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

type failingRepo struct {
	storage.Repository
}

func (failingRepo) CreateRecruiter(context.Context, *storage.Recruiter) (*storage.Recruiter, error) {
	return nil, errors.New("connection reset")
}

func TestRecruiterRegistrationStorageFailureReprompts(t *testing.T) {
	svc, repo, _, _ := testServices()
	svc.Repo = failingRepo{repo}
	m := NewRecruiterRegistration(svc)
	ctx := context.Background()
	st := activeState()

	m.Start(ctx, st)
	m.Advance(ctx, st, formEvent(map[string]string{
		"name":     "Priya Sharma",
		"company":  "Acme Staffing",
		"location": "Mumbai",
		"email":    "priya@acme.example",
	}))

	msgs := m.Advance(ctx, st, textEvent("123456"))
	require.NotEmpty(t, msgs)
	// Transient storage failure keeps the flow alive for a retry.
	require.Equal(t, conversation.StatusActive, st.Status)
	require.True(t, st.InFlow())
}

func TestRecruiterRegistrationDuplicateNumberFails(t *testing.T) {
	svc, repo, _, _ := testServices()
	ctx := context.Background()
	_, err := repo.CreateRecruiter(ctx, &storage.Recruiter{WaNumber: testSender, Name: "Existing"})
	require.NoError(t, err)

	m := NewRecruiterRegistration(svc)
	st := activeState()
	m.Start(ctx, st)
	m.Advance(ctx, st, formEvent(map[string]string{
		"name":     "Priya Sharma",
		"company":  "Acme Staffing",
		"location": "Mumbai",
		"email":    "priya@acme.example",
	}))
	m.Advance(ctx, st, textEvent("123456"))

	require.Equal(t, conversation.StatusAbandoned, st.Status)
}

func TestPostVacancyStepByStep(t *testing.T) {
	svc, repo, _, _ := testServices()
	ctx := context.Background()
	rec, err := repo.CreateRecruiter(ctx, &storage.Recruiter{
		WaNumber: testSender, Name: "Priya Sharma", Company: "Acme Staffing",
	})
	require.NoError(t, err)

	m := NewPostVacancy(svc)
	st := activeState()
	m.Start(ctx, st)

	for _, answer := range []string{
		"Delivery Driver", "Acme Logistics", "Pune",
		"Deliver parcels across the city.", "15k-18k/month", "1 year", "hr@acme.example",
	} {
		m.Advance(ctx, st, textEvent(answer))
	}

	require.Equal(t, conversation.StatusCompleted, st.Status)

	vacancies, err := repo.VacanciesByRecruiter(ctx, rec.ID, 10)
	require.NoError(t, err)
	require.Len(t, vacancies, 1)
	require.Equal(t, "Delivery Driver", vacancies[0].Title)
	require.Equal(t, storage.VacancyPending, vacancies[0].Status)
	require.NotEmpty(t, vacancies[0].JobCode)
}

func TestPostVacancyFormPathNotifiesAdmin(t *testing.T) {
	svc, repo, _, _ := testServices()
	ctx := context.Background()
	_, err := repo.CreateRecruiter(ctx, &storage.Recruiter{
		WaNumber: testSender, Name: "Priya Sharma", Company: "Acme Staffing",
	})
	require.NoError(t, err)

	m := NewPostVacancy(svc)
	st := activeState()
	m.Start(ctx, st)

	msgs := m.Advance(ctx, st, formEvent(map[string]string{
		"title":        "Delivery Driver",
		"location":     "Pune",
		"description":  "Deliver parcels across the city.",
		"contact_info": "hr@acme.example",
	}))

	require.Equal(t, conversation.StatusCompleted, st.Status)
	require.Len(t, msgs, 2)
	require.Equal(t, testSender, msgs[0].To)
	require.Equal(t, "15559999", msgs[1].To) // admin alert
}

func TestPostVacancyKeepsAnswersOnInvalidInput(t *testing.T) {
	svc, repo, _, _ := testServices()
	ctx := context.Background()
	_, err := repo.CreateRecruiter(ctx, &storage.Recruiter{
		WaNumber: testSender, Name: "Priya Sharma",
	})
	require.NoError(t, err)

	m := NewPostVacancy(svc)
	st := activeState()
	m.Start(ctx, st)

	m.Advance(ctx, st, textEvent("Delivery Driver"))
	m.Advance(ctx, st, textEvent("Acme Logistics"))

	// An empty answer is rejected without touching collected fields.
	m.Advance(ctx, st, textEvent("   "))
	require.Equal(t, 2, st.Step)
	require.Equal(t, "Delivery Driver", st.Answers["title"])
	require.Equal(t, "Acme Logistics", st.Answers["company"])
}

func TestPostVacancyUnregisteredRecruiterFails(t *testing.T) {
	svc, _, _, _ := testServices()
	ctx := context.Background()

	m := NewPostVacancy(svc)
	st := activeState()
	m.Start(ctx, st)

	m.Advance(ctx, st, formEvent(map[string]string{
		"title":        "Delivery Driver",
		"location":     "Pune",
		"description":  "Deliver parcels.",
		"contact_info": "hr@acme.example",
	}))
	require.Equal(t, conversation.StatusAbandoned, st.Status)
}

func TestSeekerRegistrationMissingMediaReprompts(t *testing.T) {
	svc, repo, _, cv := testServices()
	m := NewSeekerRegistration(svc)
	ctx := context.Background()
	st := activeState()

	m.Start(ctx, st)
	msgs := m.Advance(ctx, st, formEvent(map[string]string{
		"name":     "Arun Kumar",
		"location": "Chennai",
		"skills":   "driving, logistics",
		// media_id omitted
		"mime_type": "application/pdf",
	}))

	require.NotEmpty(t, msgs)
	require.Equal(t, conversation.StatusActive, st.Status)
	require.Equal(t, 0, st.Step)
	require.Zero(t, cv.saved)
	_, err := repo.SeekerByNumber(ctx, testSender)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSeekerRegistrationCompletes(t *testing.T) {
	svc, repo, _, cv := testServices()
	m := NewSeekerRegistration(svc)
	ctx := context.Background()
	st := activeState()

	m.Start(ctx, st)
	m.Advance(ctx, st, formEvent(map[string]string{
		"name":      "Arun Kumar",
		"location":  "Chennai",
		"skills":    "driving, logistics",
		"media_id":  "media-1",
		"mime_type": "application/pdf",
	}))

	require.Equal(t, conversation.StatusCompleted, st.Status)
	require.Equal(t, 1, cv.saved)

	seeker, err := repo.SeekerByNumber(ctx, testSender)
	require.NoError(t, err)
	require.Equal(t, "Arun Kumar", seeker.Name)
	require.Equal(t, cv.path, seeker.CVPath)
}

func TestSeekerRegistrationResumesPendingApplication(t *testing.T) {
	svc, repo, _, _ := testServices()
	ctx := context.Background()

	rec, err := repo.CreateRecruiter(ctx, &storage.Recruiter{WaNumber: "15550002", Name: "R"})
	require.NoError(t, err)
	vac, err := repo.CreateVacancy(ctx, &storage.Vacancy{
		RecruiterID: rec.ID, Title: "Driver", Location: "Pune",
	})
	require.NoError(t, err)
	require.NoError(t, repo.SetVacancyStatus(ctx, vac.ID, storage.VacancyApproved, ""))

	m := NewSeekerRegistration(svc)
	st := activeState()
	m.Start(ctx, st)
	st.SetAnswer(FieldPendingJobCode, vac.JobCode)

	msgs := m.Advance(ctx, st, formEvent(map[string]string{
		"name":      "Arun Kumar",
		"location":  "Chennai",
		"skills":    "driving",
		"media_id":  "media-1",
		"mime_type": "application/pdf",
	}))

	require.Equal(t, conversation.StatusCompleted, st.Status)
	require.Len(t, msgs, 2) // welcome + resumed job prompt
	require.Equal(t, whatsapp.MessageButtons, msgs[1].Kind)
}

func TestCvUpdateFromDirectDocument(t *testing.T) {
	svc, repo, _, cv := testServices()
	ctx := context.Background()
	_, err := repo.CreateSeeker(ctx, &storage.Seeker{
		WaNumber: testSender, Name: "Arun Kumar", CVPath: "uploads/cvs/old.pdf",
	})
	require.NoError(t, err)

	m := NewCvUpdate(svc)
	st := activeState()
	m.Start(ctx, st)

	m.Advance(ctx, st, whatsapp.Event{
		Sender: testSender, Kind: whatsapp.KindMedia,
		MediaID: "media-2", MimeType: "application/pdf",
	})

	require.Equal(t, conversation.StatusCompleted, st.Status)
	require.Equal(t, 1, cv.saved)

	seeker, err := repo.SeekerByNumber(ctx, testSender)
	require.NoError(t, err)
	require.Equal(t, cv.path, seeker.CVPath)
	require.Equal(t, 1, seeker.CVUpdatesUsed)
}

func TestCvUpdateRejectsBadFormat(t *testing.T) {
	svc, repo, _, cv := testServices()
	ctx := context.Background()
	_, err := repo.CreateSeeker(ctx, &storage.Seeker{
		WaNumber: testSender, Name: "Arun Kumar", CVPath: "uploads/cvs/old.pdf",
	})
	require.NoError(t, err)

	cv.err = media.ErrUnsupportedType
	m := NewCvUpdate(svc)
	st := activeState()
	m.Start(ctx, st)

	m.Advance(ctx, st, whatsapp.Event{
		Sender: testSender, Kind: whatsapp.KindMedia,
		MediaID: "media-2", MimeType: "image/png",
	})

	require.Equal(t, conversation.StatusActive, st.Status)
	seeker, err := repo.SeekerByNumber(ctx, testSender)
	require.NoError(t, err)
	require.Equal(t, "uploads/cvs/old.pdf", seeker.CVPath)
}

func TestAdvanceToUnknownStepAbandons(t *testing.T) {
	m := NewMachine(conversation.FlowRecruiterRegistration, []Step{
		{
			Name:   "first",
			Kinds:  []whatsapp.Kind{whatsapp.KindText},
			Prompt: textPrompt("go"),
			Apply: func(context.Context, *conversation.State, whatsapp.Event) Result {
				return Result{Outcome: Advance, Goto: "missing"}
			},
		},
	})
	ctx := context.Background()

	st := activeState()
	m.Start(ctx, st)
	msgs := m.Advance(ctx, st, textEvent("anything"))

	require.Equal(t, conversation.StatusAbandoned, st.Status)
	require.False(t, st.InFlow())
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0].Body, "closed")
}
