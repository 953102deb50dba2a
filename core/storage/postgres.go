package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jobinfo/wabot/core/codec/jobcode"
)

// PostgresRepository is the sqlx-backed marketplace repository.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository wraps a connected database handle.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateRecruiter stores a recruiter profile keyed by WhatsApp number.
func (p *PostgresRepository) CreateRecruiter(ctx context.Context, rec *Recruiter) (*Recruiter, error) {
	if err := validateRecruiter(rec); err != nil {
		return nil, err
	}
	stored := *rec
	err := p.db.QueryRowxContext(ctx, `
		INSERT INTO recruiters (wa_number, name, company, location, email)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		rec.WaNumber, rec.Name, rec.Company, rec.Location, rec.Email,
	).Scan(&stored.ID, &stored.CreatedAt)
	if isUniqueViolation(err) {
		return nil, &ValidationError{Field: "wa_number", Reason: "already registered"}
	}
	if err != nil {
		return nil, fmt.Errorf("create recruiter: %w", err)
	}
	return &stored, nil
}

// RecruiterByNumber looks a recruiter up by WhatsApp number.
func (p *PostgresRepository) RecruiterByNumber(ctx context.Context, waNumber string) (*Recruiter, error) {
	var rec Recruiter
	err := p.db.GetContext(ctx, &rec,
		`SELECT * FROM recruiters WHERE wa_number = $1`, waNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("recruiter lookup: %w", err)
	}
	return &rec, nil
}

// RecruiterByID looks a recruiter up by row id.
func (p *PostgresRepository) RecruiterByID(ctx context.Context, id int64) (*Recruiter, error) {
	var rec Recruiter
	err := p.db.GetContext(ctx, &rec,
		`SELECT * FROM recruiters WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("recruiter lookup: %w", err)
	}
	return &rec, nil
}

// CreateVacancy stores a vacancy and assigns its job code from the new id.
func (p *PostgresRepository) CreateVacancy(ctx context.Context, vac *Vacancy) (*Vacancy, error) {
	if err := validateVacancy(vac); err != nil {
		return nil, err
	}
	stored := *vac
	if stored.Status == "" {
		stored.Status = VacancyPending
	}
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create vacancy: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO vacancies (recruiter_id, title, company, location, description,
			salary_range, experience_required, contact_info, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		stored.RecruiterID, stored.Title, stored.Company, stored.Location,
		stored.Description, stored.SalaryRange, stored.ExperienceRequired,
		stored.ContactInfo, string(stored.Status),
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create vacancy: %w", err)
	}

	stored.JobCode = jobcode.Encode(stored.ID)
	if _, err := tx.ExecContext(ctx,
		`UPDATE vacancies SET job_code = $1 WHERE id = $2`, stored.JobCode, stored.ID); err != nil {
		return nil, fmt.Errorf("create vacancy: assign code: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create vacancy: %w", err)
	}
	return &stored, nil
}

// VacancyByCode finds a vacancy by its job code.
func (p *PostgresRepository) VacancyByCode(ctx context.Context, code string) (*Vacancy, error) {
	var vac Vacancy
	err := p.db.GetContext(ctx, &vac,
		`SELECT * FROM vacancies WHERE job_code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("vacancy lookup: %w", err)
	}
	return &vac, nil
}

// VacancyByID finds a vacancy by its row id.
func (p *PostgresRepository) VacancyByID(ctx context.Context, id int64) (*Vacancy, error) {
	var vac Vacancy
	err := p.db.GetContext(ctx, &vac,
		`SELECT * FROM vacancies WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("vacancy lookup: %w", err)
	}
	return &vac, nil
}

// VacanciesByRecruiter lists a recruiter's postings, newest first.
func (p *PostgresRepository) VacanciesByRecruiter(ctx context.Context, recruiterID int64, limit int) ([]Vacancy, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []Vacancy
	err := p.db.SelectContext(ctx, &out, `
		SELECT * FROM vacancies
		WHERE recruiter_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, recruiterID, limit)
	if err != nil {
		return nil, fmt.Errorf("vacancies by recruiter: %w", err)
	}
	return out, nil
}

// VacanciesByStatus lists postings in one moderation state.
func (p *PostgresRepository) VacanciesByStatus(ctx context.Context, status VacancyStatus) ([]Vacancy, error) {
	var out []Vacancy
	err := p.db.SelectContext(ctx, &out, `
		SELECT * FROM vacancies
		WHERE status = $1
		ORDER BY created_at DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("vacancies by status: %w", err)
	}
	return out, nil
}

// SetVacancyStatus moves a posting through moderation.
func (p *PostgresRepository) SetVacancyStatus(ctx context.Context, vacancyID int64, status VacancyStatus, reason string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE vacancies
		SET status = $1,
			rejection_reason = $2,
			approved_at = CASE WHEN $1 = 'approved' THEN NOW() ELSE approved_at END
		WHERE id = $3`, string(status), reason, vacancyID)
	if err != nil {
		return fmt.Errorf("set vacancy status: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSeeker stores a seeker profile keyed by WhatsApp number.
func (p *PostgresRepository) CreateSeeker(ctx context.Context, s *Seeker) (*Seeker, error) {
	if err := validateSeeker(s); err != nil {
		return nil, err
	}
	stored := *s
	err := p.db.QueryRowxContext(ctx, `
		INSERT INTO seekers (wa_number, name, location, skills, cv_path)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		s.WaNumber, s.Name, s.Location, s.Skills, s.CVPath,
	).Scan(&stored.ID, &stored.CreatedAt)
	if isUniqueViolation(err) {
		return nil, &ValidationError{Field: "wa_number", Reason: "already registered"}
	}
	if err != nil {
		return nil, fmt.Errorf("create seeker: %w", err)
	}
	return &stored, nil
}

// SeekerByNumber looks a seeker up by WhatsApp number.
func (p *PostgresRepository) SeekerByNumber(ctx context.Context, waNumber string) (*Seeker, error) {
	var s Seeker
	err := p.db.GetContext(ctx, &s,
		`SELECT * FROM seekers WHERE wa_number = $1`, waNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("seeker lookup: %w", err)
	}
	return &s, nil
}

// UpdateCV replaces the stored CV path for a seeker.
func (p *PostgresRepository) UpdateCV(ctx context.Context, waNumber, cvPath string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE seekers
		SET cv_path = $1, cv_updates_used = cv_updates_used + 1
		WHERE wa_number = $2`, cvPath, waNumber)
	if err != nil {
		return fmt.Errorf("update cv: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateApplication links a seeker to a vacancy.
func (p *PostgresRepository) CreateApplication(ctx context.Context, app *Application) (*Application, error) {
	stored := *app
	if stored.Status == "" {
		stored.Status = ApplicationApplied
	}
	err := p.db.QueryRowxContext(ctx, `
		INSERT INTO applications (seeker_id, vacancy_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, applied_at`,
		stored.SeekerID, stored.VacancyID, string(stored.Status),
	).Scan(&stored.ID, &stored.AppliedAt)
	if err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}
	return &stored, nil
}

// HasApplication reports whether the seeker already applied to the vacancy.
func (p *PostgresRepository) HasApplication(ctx context.Context, seekerID, vacancyID int64) (bool, error) {
	var exists bool
	err := p.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM applications WHERE seeker_id = $1 AND vacancy_id = $2
		)`, seekerID, vacancyID)
	if err != nil {
		return false, fmt.Errorf("application lookup: %w", err)
	}
	return exists, nil
}

// ApplicationsBySeeker lists a seeker's applications with their vacancies,
// newest first.
func (p *PostgresRepository) ApplicationsBySeeker(ctx context.Context, seekerID int64, limit int) ([]ApplicationItem, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []ApplicationItem
	err := p.db.SelectContext(ctx, &out, `
		SELECT a.id, a.seeker_id, a.vacancy_id, a.status, a.applied_at,
			v.title, v.job_code
		FROM applications a
		JOIN vacancies v ON v.id = a.vacancy_id
		WHERE a.seeker_id = $1
		ORDER BY a.applied_at DESC
		LIMIT $2`, seekerID, limit)
	if err != nil {
		return nil, fmt.Errorf("applications by seeker: %w", err)
	}
	return out, nil
}

// CreateCallbackRequest records a callback ask.
func (p *PostgresRepository) CreateCallbackRequest(ctx context.Context, waNumber string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO callback_requests (wa_number) VALUES ($1)`, waNumber)
	if err != nil {
		return fmt.Errorf("create callback request: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
