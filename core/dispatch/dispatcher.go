// Package dispatch routes normalized inbound events to global interrupts,
// active flow machines, or idle entry triggers. All handling for one sender
// is serialized, and every handled event ends in exactly one state write.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jobinfo/wabot/core/codec/jobcode"
	"github.com/jobinfo/wabot/core/conversation"
	"github.com/jobinfo/wabot/core/flow"
	"github.com/jobinfo/wabot/core/logger"
	"github.com/jobinfo/wabot/core/storage"
	"github.com/jobinfo/wabot/core/whatsapp"
)

const (
	msgUnrecognized = "🤔 I didn't catch that. Send *menu* to see what I can do."
	msgSessionGone  = "⌛ That session has expired. Send *menu* to start again."
	msgTryLater     = "😓 Something went wrong on our side. Please try again in a moment."

	msgJobGone        = "❌ That vacancy is no longer available."
	msgJobNotOpen     = "⏳ That vacancy isn't open for applications yet."
	msgCodeMistyped   = "⚠️ That job code looks mistyped. Please check it and send it again."
	msgAlreadyApplied = "👍 You've already applied for this vacancy. The recruiter will contact you if shortlisted."

	msgCallbackNoted = "📞 Got it! Our team will call you back soon."
)

// Dispatcher is the conversation engine entry point.
type Dispatcher struct {
	store    conversation.Store
	reaper   *conversation.Reaper
	svc      flow.Services
	machines map[conversation.Flow]*flow.Machine
	locks    *senderLocks
	now      func() time.Time
}

// New wires the dispatcher with one machine per flow.
func New(store conversation.Store, reaper *conversation.Reaper, svc flow.Services) *Dispatcher {
	machines := map[conversation.Flow]*flow.Machine{
		conversation.FlowRecruiterRegistration: flow.NewRecruiterRegistration(svc),
		conversation.FlowPostVacancy:           flow.NewPostVacancy(svc),
		conversation.FlowSeekerRegistration:    flow.NewSeekerRegistration(svc),
		conversation.FlowCvUpdate:              flow.NewCvUpdate(svc),
	}
	return &Dispatcher{
		store:    store,
		reaper:   reaper,
		svc:      svc,
		machines: machines,
		locks:    newSenderLocks(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes one inbound event and returns the replies to send. It
// implements whatsapp.Dispatcher.
func (d *Dispatcher) Handle(ctx context.Context, ev whatsapp.Event) ([]whatsapp.Message, error) {
	release := d.locks.acquire(ev.Sender)
	defer release()

	now := d.now()
	st, err := d.store.Get(ctx, ev.Sender)
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		st = conversation.NewState(ev.Sender, now)
	case err != nil:
		return nil, fmt.Errorf("dispatch: load state: %w", err)
	}

	d.reaper.CheckStale(st, now)

	msgs := d.route(ctx, st, ev, now)

	if err := d.store.Put(ctx, st); err != nil {
		return nil, fmt.Errorf("dispatch: save state: %w", err)
	}

	logger.DISPATCH.Info("event handled",
		slog.String("event", "dispatch.handled"),
		slog.String("request_id", ev.RequestID),
		slog.String("sender", ev.Sender),
		slog.String("kind", string(ev.Kind)),
		slog.String("flow", string(st.Flow)),
		slog.Int("replies", len(msgs)),
	)
	return msgs, nil
}

func (d *Dispatcher) route(ctx context.Context, st *conversation.State, ev whatsapp.Event, now time.Time) []whatsapp.Message {
	if handled, msgs := handleGlobal(st, ev, now); handled {
		return msgs
	}

	if st.InFlow() {
		machine, ok := d.machines[st.Flow]
		if !ok {
			st.Abandon(now)
			return []whatsapp.Message{whatsapp.Text(st.SenderID, msgSessionGone)}
		}
		return machine.Advance(ctx, st, ev)
	}

	return d.routeIdle(ctx, st, ev)
}

// routeIdle maps entry triggers onto flow starts and one-shot actions.
func (d *Dispatcher) routeIdle(ctx context.Context, st *conversation.State, ev whatsapp.Event) []whatsapp.Message {
	switch ev.Kind {
	case whatsapp.KindButtonReply:
		return d.routeAction(ctx, st, ev.ButtonID)

	case whatsapp.KindListReply:
		return d.routeAction(ctx, st, strings.Replace(ev.ListRowID, "menu_", "btn_", 1))

	case whatsapp.KindText:
		lower := strings.ToLower(ev.Text)
		if code, ok := jobcode.Extract(ev.Text); ok {
			return d.applyByCode(ctx, st, code)
		}
		if strings.Contains(lower, "post") && strings.Contains(lower, "vacanc") {
			return d.routeAction(ctx, st, "btn_post_vacancy")
		}
		if strings.Contains(lower, "my vacanc") {
			return d.routeAction(ctx, st, "btn_my_vacancies")
		}
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgUnrecognized)}

	case whatsapp.KindFlowCompletion:
		// A form submitted after its session ended. The payload is dropped
		// rather than guessed at.
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgSessionGone)}

	case whatsapp.KindMedia:
		// A bare document from a registered seeker reads as a CV update.
		if _, err := d.svc.Repo.SeekerByNumber(ctx, st.SenderID); err == nil {
			return d.startAndAdvance(ctx, st, conversation.FlowCvUpdate, ev)
		}
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgUnrecognized)}
	}

	return []whatsapp.Message{whatsapp.Text(st.SenderID, msgUnrecognized)}
}

func (d *Dispatcher) routeAction(ctx context.Context, st *conversation.State, action string) []whatsapp.Message {
	switch {
	case action == "btn_post_vacancy":
		if _, err := d.svc.Repo.RecruiterByNumber(ctx, st.SenderID); errors.Is(err, storage.ErrNotFound) {
			return d.start(ctx, st, conversation.FlowRecruiterRegistration)
		} else if err != nil {
			return []whatsapp.Message{whatsapp.Text(st.SenderID, msgTryLater)}
		}
		return d.start(ctx, st, conversation.FlowPostVacancy)

	case action == "btn_my_vacancies":
		return d.myVacancies(ctx, st)

	case strings.HasPrefix(action, "btn_apply_now_"):
		return d.applyByCode(ctx, st, strings.TrimPrefix(action, "btn_apply_now_"))

	case action == "btn_update_cv":
		if _, err := d.svc.Repo.SeekerByNumber(ctx, st.SenderID); err != nil {
			return []whatsapp.Message{whatsapp.Text(st.SenderID,
				"⚠️ You don't have a profile yet. Tap an apply link from our channel to register first.")}
		}
		return d.start(ctx, st, conversation.FlowCvUpdate)

	case action == "btn_view_applications":
		return d.applicationHistory(ctx, st)

	case action == "btn_callback":
		if err := d.svc.Repo.CreateCallbackRequest(ctx, st.SenderID); err != nil {
			return []whatsapp.Message{whatsapp.Text(st.SenderID, msgTryLater)}
		}
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgCallbackNoted)}

	case action == "btn_how_it_works":
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgHowItWorks)}
	}

	return []whatsapp.Message{whatsapp.Text(st.SenderID, msgUnrecognized)}
}

func (d *Dispatcher) start(ctx context.Context, st *conversation.State, f conversation.Flow) []whatsapp.Message {
	return d.machines[f].Start(ctx, st)
}

func (d *Dispatcher) startAndAdvance(ctx context.Context, st *conversation.State, f conversation.Flow, ev whatsapp.Event) []whatsapp.Message {
	machine := d.machines[f]
	machine.Start(ctx, st) // prompt skipped, the event is already in hand
	return machine.Advance(ctx, st, ev)
}

func (d *Dispatcher) myVacancies(ctx context.Context, st *conversation.State) []whatsapp.Message {
	rec, err := d.svc.Repo.RecruiterByNumber(ctx, st.SenderID)
	if errors.Is(err, storage.ErrNotFound) {
		return []whatsapp.Message{whatsapp.Text(st.SenderID,
			"⚠️ You're not registered as a recruiter yet. Send *post vacancy* to register.")}
	} else if err != nil {
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgTryLater)}
	}

	vacancies, err := d.svc.Repo.VacanciesByRecruiter(ctx, rec.ID, 10)
	if err != nil {
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgTryLater)}
	}
	return []whatsapp.Message{flow.MyVacanciesMessage(st.SenderID, vacancies)}
}

func (d *Dispatcher) applicationHistory(ctx context.Context, st *conversation.State) []whatsapp.Message {
	seeker, err := d.svc.Repo.SeekerByNumber(ctx, st.SenderID)
	if errors.Is(err, storage.ErrNotFound) {
		return []whatsapp.Message{whatsapp.Text(st.SenderID,
			"⚠️ You don't have a profile yet. Tap an apply link from our channel to register first.")}
	} else if err != nil {
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgTryLater)}
	}

	items, err := d.svc.Repo.ApplicationsBySeeker(ctx, seeker.ID, 10)
	if err != nil {
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgTryLater)}
	}
	return []whatsapp.Message{flow.ApplicationHistoryMessage(st.SenderID, items)}
}

// applyByCode runs the seeker application path for a job code arriving via
// text or an apply button. Unregistered seekers are routed into registration
// with the code parked for resumption.
func (d *Dispatcher) applyByCode(ctx context.Context, st *conversation.State, code string) []whatsapp.Message {
	id, err := jobcode.Decode(code)
	if err != nil {
		logger.DISPATCH.Info("job code rejected",
			slog.String("event", "dispatch.jobcode"),
			slog.String("code", code),
			slog.String("err", err.Error()),
		)
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgCodeMistyped)}
	}

	vac, err := d.svc.Repo.VacancyByCode(ctx, jobcode.Encode(id))
	if errors.Is(err, storage.ErrNotFound) {
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgJobGone)}
	} else if err != nil {
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgTryLater)}
	}
	if vac.Status != storage.VacancyApproved {
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgJobNotOpen)}
	}

	seeker, err := d.svc.Repo.SeekerByNumber(ctx, st.SenderID)
	if errors.Is(err, storage.ErrNotFound) {
		msgs := d.start(ctx, st, conversation.FlowSeekerRegistration)
		st.SetAnswer(flow.FieldPendingJobCode, vac.JobCode)
		return msgs
	} else if err != nil {
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgTryLater)}
	}

	applied, err := d.svc.Repo.HasApplication(ctx, seeker.ID, vac.ID)
	if err != nil {
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgTryLater)}
	}
	if applied {
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgAlreadyApplied)}
	}

	if _, err := d.svc.Repo.CreateApplication(ctx, &storage.Application{
		SeekerID:  seeker.ID,
		VacancyID: vac.ID,
	}); err != nil {
		return []whatsapp.Message{whatsapp.Text(st.SenderID, msgTryLater)}
	}
	return []whatsapp.Message{flow.ApplicationConfirmed(st.SenderID, vac)}
}
