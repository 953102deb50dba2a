// Package admin exposes a small HTTP API for operators: conversation and
// vacancy inspection plus the approve/reject moderation actions. Everything
// sits behind HTTP basic auth.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobinfo/wabot/core/config"
	"github.com/jobinfo/wabot/core/conversation"
	"github.com/jobinfo/wabot/core/flow"
	"github.com/jobinfo/wabot/core/logger"
	"github.com/jobinfo/wabot/core/storage"
	"github.com/jobinfo/wabot/core/whatsapp"
)

// API serves the operator endpoints.
type API struct {
	cfg    config.AdminConfig
	states conversation.Store
	repo   storage.Repository
	sender whatsapp.Sender
}

// New builds the admin API. The sender delivers moderation outcomes to the
// posting recruiter; a nil sender disables the notifications.
func New(cfg config.AdminConfig, states conversation.Store, repo storage.Repository, sender whatsapp.Sender) *API {
	return &API{cfg: cfg, states: states, repo: repo, sender: sender}
}

// Register mounts the endpoints under /admin.
func (a *API) Register(r *mux.Router) {
	sub := r.PathPrefix("/admin").Subrouter()
	sub.Use(a.auth)
	sub.HandleFunc("/conversations", a.listConversations).Methods(http.MethodGet)
	sub.HandleFunc("/jobcodes", a.listJobCodes).Methods(http.MethodGet)
	sub.HandleFunc("/vacancies", a.listVacancies).Methods(http.MethodGet)
	sub.HandleFunc("/vacancies/{id}/approve", a.approveVacancy).Methods(http.MethodPost)
	sub.HandleFunc("/vacancies/{id}/reject", a.rejectVacancy).Methods(http.MethodPost)
}

func (a *API) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || a.cfg.Password == "" ||
			subtle.ConstantTimeCompare([]byte(user), []byte(a.cfg.Username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(a.cfg.Password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// listConversations returns records in one lifecycle status, default active.
func (a *API) listConversations(w http.ResponseWriter, r *http.Request) {
	status := conversation.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = conversation.StatusActive
	}
	states, err := a.states.ListByStatus(r.Context(), status)
	if err != nil {
		a.fail(w, "list conversations", err)
		return
	}
	a.respond(w, map[string]any{"status": status, "count": len(states), "conversations": states})
}

// listVacancies returns postings in one moderation status, default pending.
func (a *API) listVacancies(w http.ResponseWriter, r *http.Request) {
	status := storage.VacancyStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = storage.VacancyPending
	}
	vacancies, err := a.repo.VacanciesByStatus(r.Context(), status)
	if err != nil {
		a.fail(w, "list vacancies", err)
		return
	}
	a.respond(w, map[string]any{"status": status, "count": len(vacancies), "vacancies": vacancies})
}

// listJobCodes returns every issued code for live (approved) vacancies.
func (a *API) listJobCodes(w http.ResponseWriter, r *http.Request) {
	vacancies, err := a.repo.VacanciesByStatus(r.Context(), storage.VacancyApproved)
	if err != nil {
		a.fail(w, "list job codes", err)
		return
	}
	type issued struct {
		JobCode  string `json:"job_code"`
		Title    string `json:"title"`
		Location string `json:"location"`
	}
	codes := make([]issued, 0, len(vacancies))
	for _, vac := range vacancies {
		codes = append(codes, issued{JobCode: vac.JobCode, Title: vac.Title, Location: vac.Location})
	}
	a.respond(w, map[string]any{"count": len(codes), "job_codes": codes})
}

func (a *API) approveVacancy(w http.ResponseWriter, r *http.Request) {
	a.moderate(w, r, storage.VacancyApproved, "")
}

func (a *API) rejectVacancy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	a.moderate(w, r, storage.VacancyRejected, body.Reason)
}

func (a *API) moderate(w http.ResponseWriter, r *http.Request, status storage.VacancyStatus, reason string) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid vacancy id", http.StatusBadRequest)
		return
	}
	if err := a.repo.SetVacancyStatus(r.Context(), id, status, reason); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "vacancy not found", http.StatusNotFound)
			return
		}
		a.fail(w, "set vacancy status", err)
		return
	}
	a.notifyRecruiter(r.Context(), id, status)

	logger.ADMIN.Info("vacancy moderated",
		slog.String("event", "admin.moderate"),
		slog.Int64("vacancy_id", id),
		slog.String("status", string(status)),
	)
	a.respond(w, map[string]any{"id": id, "status": status, "updated_at": time.Now().UTC()})
}

// notifyRecruiter tells the poster about the moderation outcome. The status
// change has already committed, so delivery failures are logged, not surfaced.
func (a *API) notifyRecruiter(ctx context.Context, vacancyID int64, status storage.VacancyStatus) {
	if a.sender == nil {
		return
	}
	vac, err := a.repo.VacancyByID(ctx, vacancyID)
	if err != nil {
		a.logNotifyFailure(vacancyID, err)
		return
	}
	rec, err := a.repo.RecruiterByID(ctx, vac.RecruiterID)
	if err != nil {
		a.logNotifyFailure(vacancyID, err)
		return
	}

	var msg whatsapp.Message
	switch status {
	case storage.VacancyApproved:
		msg = flow.VacancyApprovedMessage(rec.WaNumber, vac)
	case storage.VacancyRejected:
		msg = flow.VacancyRejectedMessage(rec.WaNumber, vac)
	default:
		return
	}
	if err := a.sender.Send(ctx, msg); err != nil {
		a.logNotifyFailure(vacancyID, err)
	}
}

func (a *API) logNotifyFailure(vacancyID int64, err error) {
	logger.ADMIN.Error("moderation notification failed",
		slog.String("event", "admin.notify"),
		slog.Int64("vacancy_id", vacancyID),
		slog.String("err", err.Error()),
	)
}

func (a *API) respond(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (a *API) fail(w http.ResponseWriter, action string, err error) {
	logger.ADMIN.Error(action+" failed",
		slog.String("event", "admin.error"),
		slog.String("err", err.Error()),
	)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
