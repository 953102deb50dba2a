package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jobinfo/wabot/core/codec/jobcode"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("storage: not found")

// ValidationError marks a downstream create/update rejected on input grounds.
// Flows surface it as a user-facing re-prompt instead of failing hard.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("storage: invalid %s: %s", e.Field, e.Reason)
}

// Repository is the marketplace storage boundary consumed by flows and the
// admin API.
type Repository interface {
	CreateRecruiter(ctx context.Context, rec *Recruiter) (*Recruiter, error)
	RecruiterByNumber(ctx context.Context, waNumber string) (*Recruiter, error)
	RecruiterByID(ctx context.Context, id int64) (*Recruiter, error)

	CreateVacancy(ctx context.Context, vac *Vacancy) (*Vacancy, error)
	VacancyByCode(ctx context.Context, code string) (*Vacancy, error)
	VacancyByID(ctx context.Context, id int64) (*Vacancy, error)
	VacanciesByRecruiter(ctx context.Context, recruiterID int64, limit int) ([]Vacancy, error)
	VacanciesByStatus(ctx context.Context, status VacancyStatus) ([]Vacancy, error)
	SetVacancyStatus(ctx context.Context, vacancyID int64, status VacancyStatus, reason string) error

	CreateSeeker(ctx context.Context, s *Seeker) (*Seeker, error)
	SeekerByNumber(ctx context.Context, waNumber string) (*Seeker, error)
	UpdateCV(ctx context.Context, waNumber, cvPath string) error

	CreateApplication(ctx context.Context, app *Application) (*Application, error)
	HasApplication(ctx context.Context, seekerID, vacancyID int64) (bool, error)
	ApplicationsBySeeker(ctx context.Context, seekerID int64, limit int) ([]ApplicationItem, error)

	CreateCallbackRequest(ctx context.Context, waNumber string) error
}

func validateRecruiter(rec *Recruiter) error {
	if strings.TrimSpace(rec.WaNumber) == "" {
		return &ValidationError{Field: "wa_number", Reason: "required"}
	}
	if strings.TrimSpace(rec.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	return nil
}

func validateVacancy(vac *Vacancy) error {
	if strings.TrimSpace(vac.Title) == "" {
		return &ValidationError{Field: "title", Reason: "required"}
	}
	if strings.TrimSpace(vac.Location) == "" {
		return &ValidationError{Field: "location", Reason: "required"}
	}
	if vac.RecruiterID == 0 {
		return &ValidationError{Field: "recruiter_id", Reason: "required"}
	}
	return nil
}

func validateSeeker(s *Seeker) error {
	if strings.TrimSpace(s.WaNumber) == "" {
		return &ValidationError{Field: "wa_number", Reason: "required"}
	}
	if strings.TrimSpace(s.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	return nil
}

// MemoryRepository is an in-memory Repository for tests and development.
type MemoryRepository struct {
	mu         sync.Mutex
	nextID     int64
	recruiters map[string]*Recruiter
	vacancies  map[int64]*Vacancy
	seekers    map[string]*Seeker
	apps       []*Application
	callbacks  []*CallbackRequest
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID:     1000,
		recruiters: make(map[string]*Recruiter),
		vacancies:  make(map[int64]*Vacancy),
		seekers:    make(map[string]*Seeker),
	}
}

func (m *MemoryRepository) id() int64 {
	m.nextID++
	return m.nextID
}

// CreateRecruiter stores a recruiter profile keyed by WhatsApp number.
func (m *MemoryRepository) CreateRecruiter(_ context.Context, rec *Recruiter) (*Recruiter, error) {
	if err := validateRecruiter(rec); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.recruiters[rec.WaNumber]; exists {
		return nil, &ValidationError{Field: "wa_number", Reason: "already registered"}
	}
	stored := *rec
	stored.ID = m.id()
	stored.CreatedAt = time.Now().UTC()
	m.recruiters[rec.WaNumber] = &stored
	out := stored
	return &out, nil
}

// RecruiterByNumber looks a recruiter up by WhatsApp number.
func (m *MemoryRepository) RecruiterByNumber(_ context.Context, waNumber string) (*Recruiter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recruiters[waNumber]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

// RecruiterByID looks a recruiter up by row id.
func (m *MemoryRepository) RecruiterByID(_ context.Context, id int64) (*Recruiter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.recruiters {
		if rec.ID == id {
			out := *rec
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// CreateVacancy stores a vacancy and assigns its job code from the new id.
func (m *MemoryRepository) CreateVacancy(_ context.Context, vac *Vacancy) (*Vacancy, error) {
	if err := validateVacancy(vac); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *vac
	stored.ID = m.id()
	stored.JobCode = jobcode.Encode(stored.ID)
	if stored.Status == "" {
		stored.Status = VacancyPending
	}
	stored.CreatedAt = time.Now().UTC()
	m.vacancies[stored.ID] = &stored
	out := stored
	return &out, nil
}

// VacancyByCode finds a vacancy by its job code.
func (m *MemoryRepository) VacancyByCode(_ context.Context, code string) (*Vacancy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, vac := range m.vacancies {
		if vac.JobCode == code {
			out := *vac
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// VacancyByID finds a vacancy by its row id.
func (m *MemoryRepository) VacancyByID(_ context.Context, id int64) (*Vacancy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vac, ok := m.vacancies[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *vac
	return &out, nil
}

// VacanciesByRecruiter lists a recruiter's postings, newest first.
func (m *MemoryRepository) VacanciesByRecruiter(_ context.Context, recruiterID int64, limit int) ([]Vacancy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Vacancy
	for _, vac := range m.vacancies {
		if vac.RecruiterID == recruiterID {
			out = append(out, *vac)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// VacanciesByStatus lists postings in one moderation state.
func (m *MemoryRepository) VacanciesByStatus(_ context.Context, status VacancyStatus) ([]Vacancy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Vacancy
	for _, vac := range m.vacancies {
		if vac.Status == status {
			out = append(out, *vac)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SetVacancyStatus moves a posting through moderation.
func (m *MemoryRepository) SetVacancyStatus(_ context.Context, vacancyID int64, status VacancyStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vac, ok := m.vacancies[vacancyID]
	if !ok {
		return ErrNotFound
	}
	vac.Status = status
	vac.RejectionReason = reason
	if status == VacancyApproved {
		vac.ApprovedAt.Time = time.Now().UTC()
		vac.ApprovedAt.Valid = true
	}
	return nil
}

// CreateSeeker stores a seeker profile keyed by WhatsApp number.
func (m *MemoryRepository) CreateSeeker(_ context.Context, s *Seeker) (*Seeker, error) {
	if err := validateSeeker(s); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.seekers[s.WaNumber]; exists {
		return nil, &ValidationError{Field: "wa_number", Reason: "already registered"}
	}
	stored := *s
	stored.ID = m.id()
	stored.CreatedAt = time.Now().UTC()
	m.seekers[s.WaNumber] = &stored
	out := stored
	return &out, nil
}

// SeekerByNumber looks a seeker up by WhatsApp number.
func (m *MemoryRepository) SeekerByNumber(_ context.Context, waNumber string) (*Seeker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.seekers[waNumber]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s
	return &out, nil
}

// UpdateCV replaces the stored CV path for a seeker.
func (m *MemoryRepository) UpdateCV(_ context.Context, waNumber, cvPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.seekers[waNumber]
	if !ok {
		return ErrNotFound
	}
	s.CVPath = cvPath
	s.CVUpdatesUsed++
	return nil
}

// CreateApplication links a seeker to a vacancy.
func (m *MemoryRepository) CreateApplication(_ context.Context, app *Application) (*Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *app
	stored.ID = m.id()
	if stored.Status == "" {
		stored.Status = ApplicationApplied
	}
	stored.AppliedAt = time.Now().UTC()
	m.apps = append(m.apps, &stored)
	out := stored
	return &out, nil
}

// HasApplication reports whether the seeker already applied to the vacancy.
func (m *MemoryRepository) HasApplication(_ context.Context, seekerID, vacancyID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, app := range m.apps {
		if app.SeekerID == seekerID && app.VacancyID == vacancyID {
			return true, nil
		}
	}
	return false, nil
}

// ApplicationsBySeeker lists a seeker's applications with their vacancies,
// newest first.
func (m *MemoryRepository) ApplicationsBySeeker(_ context.Context, seekerID int64, limit int) ([]ApplicationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ApplicationItem
	for _, app := range m.apps {
		if app.SeekerID != seekerID {
			continue
		}
		item := ApplicationItem{Application: *app}
		if vac, ok := m.vacancies[app.VacancyID]; ok {
			item.Title = vac.Title
			item.JobCode = vac.JobCode
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.After(out[j].AppliedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateCallbackRequest records a callback ask.
func (m *MemoryRepository) CreateCallbackRequest(_ context.Context, waNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, &CallbackRequest{
		WaNumber:  waNumber,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}
