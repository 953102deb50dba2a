package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jobinfo/wabot/core/codec/otp"
	"github.com/jobinfo/wabot/core/conversation"
	"github.com/jobinfo/wabot/core/storage"
	"github.com/jobinfo/wabot/core/whatsapp"
)

// Recruiter registration answer fields.
const (
	fieldName     = "name"
	fieldCompany  = "company"
	fieldLocation = "location"
	fieldEmail    = "email"
)

// Vacancy answer fields.
const (
	fieldTitle      = "title"
	fieldDesc       = "description"
	fieldSalary     = "salary_range"
	fieldExperience = "experience_required"
	fieldContact    = "contact_info"
)

// recruiterForm mirrors the recruiter registration flow-builder payload.
type recruiterForm struct {
	Name     string `validate:"required,max=120"`
	Company  string `validate:"required,max=200"`
	Location string `validate:"required,max=200"`
	Email    string `validate:"required,email,max=200"`
}

// vacancyForm mirrors the post-vacancy flow-builder payload.
type vacancyForm struct {
	Title              string `validate:"required,max=200"`
	Company            string `validate:"max=200"`
	Location           string `validate:"required,max=200"`
	Description        string `validate:"required"`
	SalaryRange        string `validate:"max=100"`
	ExperienceRequired string `validate:"max=100"`
	ContactInfo        string `validate:"required,max=200"`
}

// NewRecruiterRegistration builds the recruiter onboarding machine:
// name -> company -> location -> email -> OTP verification -> profile
// creation. The first step also accepts the registration form payload, which
// fills everything but still requires OTP verification.
func NewRecruiterRegistration(svc Services) *Machine {
	steps := []Step{
		{
			Name:   fieldName,
			Kinds:  []whatsapp.Kind{whatsapp.KindText, whatsapp.KindFlowCompletion},
			Prompt: textPrompt(msgAskRecruiterName),
			Apply: func(ctx context.Context, st *conversation.State, ev whatsapp.Event) Result {
				if ev.Kind == whatsapp.KindFlowCompletion {
					form := recruiterForm{
						Name:     strings.TrimSpace(ev.Fields[fieldName]),
						Company:  strings.TrimSpace(ev.Fields[fieldCompany]),
						Location: strings.TrimSpace(ev.Fields[fieldLocation]),
						Email:    strings.TrimSpace(ev.Fields[fieldEmail]),
					}
					if err := validate.Struct(&form); err != nil {
						return repeatInvalid(st, fieldHint(err))
					}
					st.SetAnswer(fieldName, form.Name)
					st.SetAnswer(fieldCompany, form.Company)
					st.SetAnswer(fieldLocation, form.Location)
					st.SetAnswer(fieldEmail, form.Email)
					return sendOTP(ctx, svc, st, "otp")
				}
				return recordText(st, fieldName, ev, "required,max=120")
			},
		},
		{
			Name:   fieldCompany,
			Kinds:  []whatsapp.Kind{whatsapp.KindText},
			Prompt: textPrompt(msgAskRecruiterCompany),
			Apply: func(_ context.Context, st *conversation.State, ev whatsapp.Event) Result {
				return recordText(st, fieldCompany, ev, "required,max=200")
			},
		},
		{
			Name:   fieldLocation,
			Kinds:  []whatsapp.Kind{whatsapp.KindText},
			Prompt: textPrompt(msgAskRecruiterLocation),
			Apply: func(_ context.Context, st *conversation.State, ev whatsapp.Event) Result {
				return recordText(st, fieldLocation, ev, "required,max=200")
			},
		},
		{
			Name:   fieldEmail,
			Kinds:  []whatsapp.Kind{whatsapp.KindText},
			Prompt: textPrompt(msgAskRecruiterEmail),
			Apply: func(ctx context.Context, st *conversation.State, ev whatsapp.Event) Result {
				email := strings.TrimSpace(ev.Text)
				if err := validate.Var(email, "required,email,max=200"); err != nil {
					return repeatInvalid(st, "That doesn't look like a valid email address.")
				}
				st.SetAnswer(fieldEmail, email)
				return sendOTP(ctx, svc, st, "")
			},
		},
		{
			Name:   "otp",
			Kinds:  []whatsapp.Kind{whatsapp.KindText},
			Prompt: textPrompt(msgAskRecruiterOTP),
			Apply: func(ctx context.Context, st *conversation.State, ev whatsapp.Event) Result {
				return verifyAndCreateRecruiter(ctx, svc, st, strings.TrimSpace(ev.Text))
			},
		},
	}
	return NewMachine(conversation.FlowRecruiterRegistration, steps)
}

// NewPostVacancy builds the vacancy posting machine: seven field steps
// collected as text, with the first step also accepting the complete
// flow-builder payload.
func NewPostVacancy(svc Services) *Machine {
	textStep := func(field, prompt, rules string) Step {
		return Step{
			Name:   field,
			Kinds:  []whatsapp.Kind{whatsapp.KindText},
			Prompt: textPrompt(prompt),
			Apply: func(_ context.Context, st *conversation.State, ev whatsapp.Event) Result {
				return recordText(st, field, ev, rules)
			},
		}
	}

	steps := []Step{
		{
			Name:   fieldTitle,
			Kinds:  []whatsapp.Kind{whatsapp.KindText, whatsapp.KindFlowCompletion},
			Prompt: textPrompt(msgAskVacancyTitle),
			Apply: func(ctx context.Context, st *conversation.State, ev whatsapp.Event) Result {
				if ev.Kind == whatsapp.KindFlowCompletion {
					form := vacancyForm{
						Title:              strings.TrimSpace(ev.Fields[fieldTitle]),
						Company:            strings.TrimSpace(ev.Fields[fieldCompany]),
						Location:           strings.TrimSpace(ev.Fields[fieldLocation]),
						Description:        strings.TrimSpace(ev.Fields[fieldDesc]),
						SalaryRange:        strings.TrimSpace(ev.Fields[fieldSalary]),
						ExperienceRequired: strings.TrimSpace(ev.Fields[fieldExperience]),
						ContactInfo:        strings.TrimSpace(ev.Fields[fieldContact]),
					}
					if err := validate.Struct(&form); err != nil {
						return repeatInvalid(st, fieldHint(err))
					}
					st.SetAnswer(fieldTitle, form.Title)
					st.SetAnswer(fieldCompany, form.Company)
					st.SetAnswer(fieldLocation, form.Location)
					st.SetAnswer(fieldDesc, form.Description)
					st.SetAnswer(fieldSalary, form.SalaryRange)
					st.SetAnswer(fieldExperience, form.ExperienceRequired)
					st.SetAnswer(fieldContact, form.ContactInfo)
					return createVacancy(ctx, svc, st)
				}
				return recordText(st, fieldTitle, ev, "required,max=200")
			},
		},
		textStep(fieldCompany, msgAskVacancyCompany, "required,max=200"),
		textStep(fieldLocation, msgAskVacancyLocation, "required,max=200"),
		textStep(fieldDesc, msgAskVacancyDesc, "required"),
		textStep(fieldSalary, msgAskVacancySalary, "required,max=100"),
		textStep(fieldExperience, msgAskVacancyExperience, "required,max=100"),
		{
			Name:   fieldContact,
			Kinds:  []whatsapp.Kind{whatsapp.KindText},
			Prompt: textPrompt(msgAskVacancyContact),
			Apply: func(ctx context.Context, st *conversation.State, ev whatsapp.Event) Result {
				contact := strings.TrimSpace(ev.Text)
				if err := validate.Var(contact, "required,max=200"); err != nil {
					return repeatInvalid(st, "Please share a contact number or email.")
				}
				st.SetAnswer(fieldContact, contact)
				return createVacancy(ctx, svc, st)
			},
		},
	}
	return NewMachine(conversation.FlowPostVacancy, steps)
}

// sendOTP issues a verification code for the sender and advances to the OTP
// step. The code itself is delivered by the email collaborator, not over chat.
func sendOTP(ctx context.Context, svc Services, st *conversation.State, gotoStep string) Result {
	if _, err := svc.OTP.Generate(ctx, st.SenderID); err != nil {
		return Result{Outcome: Repeat, Messages: []whatsapp.Message{
			whatsapp.Text(st.SenderID, msgStorageRetryHint),
		}}
	}
	return Result{Outcome: Advance, Goto: gotoStep}
}

func verifyAndCreateRecruiter(ctx context.Context, svc Services, st *conversation.State, submitted string) Result {
	switch err := svc.OTP.Verify(ctx, st.SenderID, submitted); {
	case err == nil:
		// fall through to profile creation

	case errors.Is(err, otp.ErrMismatch):
		left := svc.OTP.AttemptsLeft(ctx, st.SenderID)
		return Result{Outcome: Repeat, Messages: []whatsapp.Message{
			whatsapp.Text(st.SenderID, fmt.Sprintf("❌ Wrong code. %d attempt(s) left.", left)),
		}}

	case errors.Is(err, otp.ErrExpired), errors.Is(err, otp.ErrNotFound):
		if _, genErr := svc.OTP.Generate(ctx, st.SenderID); genErr != nil {
			return Result{Outcome: Repeat, Messages: []whatsapp.Message{
				whatsapp.Text(st.SenderID, msgStorageRetryHint),
			}}
		}
		return Result{Outcome: Repeat, Messages: []whatsapp.Message{
			whatsapp.Text(st.SenderID, "⌛ That code expired. We sent a fresh one, please type it here."),
		}}

	case errors.Is(err, otp.ErrAttemptsExhausted):
		return Result{Outcome: Fail, Messages: []whatsapp.Message{
			whatsapp.Text(st.SenderID, "❌ Too many wrong codes. Registration was cancelled. Send *menu* to start over."),
		}}

	default:
		return Result{Outcome: Repeat, Messages: []whatsapp.Message{
			whatsapp.Text(st.SenderID, msgStorageRetryHint),
		}}
	}

	name, _ := st.Answer(fieldName)
	created, err := svc.Repo.CreateRecruiter(ctx, &storage.Recruiter{
		WaNumber: st.SenderID,
		Name:     name,
		Company:  answerOr(st, fieldCompany),
		Location: answerOr(st, fieldLocation),
		Email:    answerOr(st, fieldEmail),
	})
	if err != nil {
		var verr *storage.ValidationError
		if errors.As(err, &verr) {
			return Result{Outcome: Fail, Messages: []whatsapp.Message{
				whatsapp.Text(st.SenderID, "⚠️ "+verr.Reason+". Send *menu* if you need help."),
			}}
		}
		return Result{Outcome: Repeat, Messages: []whatsapp.Message{
			whatsapp.Text(st.SenderID, msgStorageRetryHint),
		}}
	}

	return Result{Outcome: Complete, Messages: []whatsapp.Message{
		whatsapp.Text(st.SenderID, recruiterRegisteredBody(created.Name)),
		whatsapp.Buttons(st.SenderID, "JobInfo", "What's next?",
			whatsapp.Button{ID: "btn_post_vacancy", Title: "Post Vacancy"},
			whatsapp.Button{ID: "btn_my_vacancies", Title: "My Vacancies"},
		),
	}}
}

// MyVacanciesMessage renders a recruiter's postings list.
func MyVacanciesMessage(to string, vacancies []storage.Vacancy) whatsapp.Message {
	if len(vacancies) == 0 {
		return whatsapp.Text(to, "📋 You haven't posted any vacancies yet. Send *post vacancy* to publish your first one.")
	}
	return whatsapp.Text(to, vacancySummaryLines(vacancies))
}

// VacancyApprovedMessage notifies the recruiter their posting went live.
func VacancyApprovedMessage(to string, vac *storage.Vacancy) whatsapp.Message {
	return whatsapp.Text(to, vacancyApprovedBody(vac))
}

// VacancyRejectedMessage notifies the recruiter of a declined posting,
// including the moderation reason when one was given.
func VacancyRejectedMessage(to string, vac *storage.Vacancy) whatsapp.Message {
	return whatsapp.Text(to, vacancyRejectedBody(vac))
}

// createVacancy persists the collected posting, notifies the admin, and
// returns the job code to the recruiter.
func createVacancy(ctx context.Context, svc Services, st *conversation.State) Result {
	recruiter, err := svc.Repo.RecruiterByNumber(ctx, st.SenderID)
	if err != nil {
		return Result{Outcome: Fail, Messages: []whatsapp.Message{
			whatsapp.Text(st.SenderID, "⚠️ You are not registered as a recruiter. Send *menu* to register first."),
		}}
	}

	company := answerOr(st, fieldCompany)
	if company == "" {
		company = recruiter.Company
	}

	created, err := svc.Repo.CreateVacancy(ctx, &storage.Vacancy{
		RecruiterID:        recruiter.ID,
		Title:              answerOr(st, fieldTitle),
		Company:            company,
		Location:           answerOr(st, fieldLocation),
		Description:        answerOr(st, fieldDesc),
		SalaryRange:        answerOr(st, fieldSalary),
		ExperienceRequired: answerOr(st, fieldExperience),
		ContactInfo:        answerOr(st, fieldContact),
	})
	if err != nil {
		var verr *storage.ValidationError
		if errors.As(err, &verr) {
			return repeatInvalid(st, "⚠️ "+verr.Reason+".")
		}
		return Result{Outcome: Repeat, Messages: []whatsapp.Message{
			whatsapp.Text(st.SenderID, msgStorageRetryHint),
		}}
	}

	msgs := []whatsapp.Message{whatsapp.Text(st.SenderID, vacancyPostedBody(created))}
	if svc.AdminNumber != "" {
		msgs = append(msgs, whatsapp.Text(svc.AdminNumber, adminVacancyAlertBody(created, recruiter)))
	}
	return Result{Outcome: Complete, Messages: msgs}
}
