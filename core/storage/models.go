package storage

import (
	"database/sql"
	"time"
)

// VacancyStatus tracks the moderation state of a posting.
type VacancyStatus string

const (
	// VacancyPending awaits admin review.
	VacancyPending VacancyStatus = "pending"
	// VacancyApproved is live and accepting applications.
	VacancyApproved VacancyStatus = "approved"
	// VacancyRejected was declined with a reason.
	VacancyRejected VacancyStatus = "rejected"
)

// ApplicationStatus tracks a seeker's application.
type ApplicationStatus string

const (
	// ApplicationApplied is the initial state.
	ApplicationApplied ApplicationStatus = "applied"
	// ApplicationShortlisted was picked by the recruiter.
	ApplicationShortlisted ApplicationStatus = "shortlisted"
	// ApplicationRejected was declined.
	ApplicationRejected ApplicationStatus = "rejected"
)

// Recruiter is a registered vacancy poster.
type Recruiter struct {
	ID        int64     `db:"id"`
	WaNumber  string    `db:"wa_number"`
	Name      string    `db:"name"`
	Company   string    `db:"company"`
	Location  string    `db:"location"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}

// Vacancy is a job posting. JobCode is assigned on creation from the row id.
type Vacancy struct {
	ID                 int64         `db:"id"`
	JobCode            string        `db:"job_code"`
	RecruiterID        int64         `db:"recruiter_id"`
	Title              string        `db:"title"`
	Company            string        `db:"company"`
	Location           string        `db:"location"`
	Description        string        `db:"description"`
	SalaryRange        string        `db:"salary_range"`
	ExperienceRequired string        `db:"experience_required"`
	ContactInfo        string        `db:"contact_info"` // hidden from seekers, admin use only
	Status             VacancyStatus `db:"status"`
	RejectionReason    string        `db:"rejection_reason"`
	CreatedAt          time.Time     `db:"created_at"`
	ApprovedAt         sql.NullTime  `db:"approved_at"`
}

// Seeker is a registered job seeker with a stored CV.
type Seeker struct {
	ID            int64     `db:"id"`
	WaNumber      string    `db:"wa_number"`
	Name          string    `db:"name"`
	Location      string    `db:"location"`
	Skills        string    `db:"skills"`
	CVPath        string    `db:"cv_path"`
	CVUpdatesUsed int       `db:"cv_updates_used"`
	CreatedAt     time.Time `db:"created_at"`
}

// Application links a seeker to a vacancy.
type Application struct {
	ID        int64             `db:"id"`
	SeekerID  int64             `db:"seeker_id"`
	VacancyID int64             `db:"vacancy_id"`
	Status    ApplicationStatus `db:"status"`
	AppliedAt time.Time         `db:"applied_at"`
}

// ApplicationItem is one history row joined with its vacancy for display.
type ApplicationItem struct {
	Application
	Title   string `db:"title"`
	JobCode string `db:"job_code"`
}

// CallbackRequest records an unregistered seeker asking for a call.
type CallbackRequest struct {
	ID        int64     `db:"id"`
	WaNumber  string    `db:"wa_number"`
	Resolved  bool      `db:"resolved"`
	CreatedAt time.Time `db:"created_at"`
}
