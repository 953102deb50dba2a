package flow

import (
	"context"
	"errors"
	"strings"

	"github.com/jobinfo/wabot/core/conversation"
	"github.com/jobinfo/wabot/core/media"
	"github.com/jobinfo/wabot/core/storage"
	"github.com/jobinfo/wabot/core/whatsapp"
)

// Seeker answer fields.
const (
	fieldSkills   = "skills"
	fieldMediaID  = "media_id"
	fieldMimeType = "mime_type"
	// FieldPendingJobCode carries the job code a seeker tapped before
	// registering, so the apply prompt resumes after completion.
	FieldPendingJobCode = "pending_job_code"
)

// seekerForm mirrors the seeker registration flow-builder payload.
type seekerForm struct {
	Name     string `validate:"required,max=120"`
	Location string `validate:"required,max=200"`
	Skills   string `validate:"required"`
	MediaID  string `validate:"required"`
	MimeType string `validate:"required"`
}

// NewSeekerRegistration builds the seeker onboarding machine. Registration
// arrives as one flow-builder payload carrying profile fields plus the CV
// media reference; every required field is shape-checked before any side
// effect runs.
func NewSeekerRegistration(svc Services) *Machine {
	steps := []Step{
		{
			Name:   "form",
			Kinds:  []whatsapp.Kind{whatsapp.KindFlowCompletion},
			Prompt: textPrompt(msgAskSeekerForm),
			Apply: func(ctx context.Context, st *conversation.State, ev whatsapp.Event) Result {
				form := seekerForm{
					Name:     strings.TrimSpace(ev.Fields[fieldName]),
					Location: strings.TrimSpace(ev.Fields[fieldLocation]),
					Skills:   strings.TrimSpace(ev.Fields[fieldSkills]),
					MediaID:  strings.TrimSpace(ev.Fields[fieldMediaID]),
					MimeType: strings.TrimSpace(ev.Fields[fieldMimeType]),
				}
				if err := validate.Struct(&form); err != nil {
					return repeatInvalid(st, fieldHint(err))
				}

				cvPath, err := svc.CV.SaveCV(ctx, st.SenderID, form.MediaID, form.MimeType)
				if err != nil {
					if errors.Is(err, media.ErrUnsupportedType) || errors.Is(err, media.ErrTooLarge) {
						return repeatInvalid(st, msgCvBadFormat)
					}
					return repeatInvalid(st, msgStorageRetryHint)
				}

				created, err := svc.Repo.CreateSeeker(ctx, &storage.Seeker{
					WaNumber: st.SenderID,
					Name:     form.Name,
					Location: form.Location,
					Skills:   form.Skills,
					CVPath:   cvPath,
				})
				if err != nil {
					var verr *storage.ValidationError
					if errors.As(err, &verr) {
						return repeatInvalid(st, verr.Reason+".")
					}
					return repeatInvalid(st, msgStorageRetryHint)
				}

				msgs := []whatsapp.Message{whatsapp.Text(st.SenderID, seekerRegisteredBody(created.Name))}
				msgs = append(msgs, resumePendingApply(ctx, svc, st)...)
				return Result{Outcome: Complete, Messages: msgs}
			},
		},
	}
	return NewMachine(conversation.FlowSeekerRegistration, steps)
}

// NewCvUpdate builds the CV replacement machine. It accepts either the
// update form payload or a document sent directly in chat.
func NewCvUpdate(svc Services) *Machine {
	steps := []Step{
		{
			Name:   "cv",
			Kinds:  []whatsapp.Kind{whatsapp.KindFlowCompletion, whatsapp.KindMedia},
			Prompt: textPrompt(msgAskCvUpdate),
			Apply: func(ctx context.Context, st *conversation.State, ev whatsapp.Event) Result {
				mediaID, mimeType := ev.MediaID, ev.MimeType
				if ev.Kind == whatsapp.KindFlowCompletion {
					mediaID = strings.TrimSpace(ev.Fields[fieldMediaID])
					mimeType = strings.TrimSpace(ev.Fields[fieldMimeType])
				}
				if mediaID == "" {
					return repeatInvalid(st, "The upload is missing the document.")
				}

				seeker, err := svc.Repo.SeekerByNumber(ctx, st.SenderID)
				if err != nil {
					return Result{Outcome: Fail, Messages: []whatsapp.Message{
						whatsapp.Text(st.SenderID, "⚠️ You are not registered yet. Tap an apply link first and we'll guide you through."),
					}}
				}

				cvPath, err := svc.CV.SaveCV(ctx, st.SenderID, mediaID, mimeType)
				if err != nil {
					if errors.Is(err, media.ErrUnsupportedType) || errors.Is(err, media.ErrTooLarge) {
						return repeatInvalid(st, msgCvBadFormat)
					}
					return repeatInvalid(st, msgStorageRetryHint)
				}

				if err := svc.Repo.UpdateCV(ctx, st.SenderID, cvPath); err != nil {
					return repeatInvalid(st, msgStorageRetryHint)
				}
				seeker.CVPath = cvPath

				return Result{Outcome: Complete, Messages: []whatsapp.Message{
					whatsapp.Text(st.SenderID, cvUpdatedBody(seeker)),
				}}
			},
		},
	}
	return NewMachine(conversation.FlowCvUpdate, steps)
}

// resumePendingApply re-issues the job prompt for the vacancy the seeker was
// applying to before registration, if any.
func resumePendingApply(ctx context.Context, svc Services, st *conversation.State) []whatsapp.Message {
	code, ok := st.Answer(FieldPendingJobCode)
	if !ok || code == "" {
		return nil
	}
	vac, err := svc.Repo.VacancyByCode(ctx, code)
	if err != nil || vac.Status != storage.VacancyApproved {
		return nil
	}
	return []whatsapp.Message{JobApplyPrompt(st.SenderID, vac)}
}

// JobApplyPrompt renders a vacancy's detail with apply and CV-update buttons.
func JobApplyPrompt(to string, vac *storage.Vacancy) whatsapp.Message {
	return whatsapp.Buttons(to, "JobInfo – Job Details", jobDetailBody(vac),
		whatsapp.Button{ID: "btn_apply_now_" + vac.JobCode, Title: "Apply Now"},
		whatsapp.Button{ID: "btn_update_cv", Title: "Update CV"},
	)
}

// ApplicationConfirmed renders the post-apply confirmation with a shortcut to
// the seeker's application history.
func ApplicationConfirmed(to string, vac *storage.Vacancy) whatsapp.Message {
	return whatsapp.Buttons(to, "JobInfo", applicationConfirmedBody(vac),
		whatsapp.Button{ID: "btn_view_applications", Title: "My Applications"},
	)
}

// ApplicationHistoryMessage renders a seeker's recent applications.
func ApplicationHistoryMessage(to string, items []storage.ApplicationItem) whatsapp.Message {
	if len(items) == 0 {
		return whatsapp.Text(to, "📭 You haven't applied to any vacancies yet. Send a job code like JC:10023 to apply.")
	}
	return whatsapp.Text(to, applicationHistoryBody(items))
}
