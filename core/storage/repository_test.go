package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jobinfo/wabot/core/codec/jobcode"
)

func seedRecruiter(t *testing.T, repo *MemoryRepository) *Recruiter {
	t.Helper()
	rec, err := repo.CreateRecruiter(context.Background(), &Recruiter{
		WaNumber: "15550001", Name: "Priya Sharma", Company: "Acme Staffing",
	})
	require.NoError(t, err)
	return rec
}

func TestCreateRecruiterRejectsDuplicateNumber(t *testing.T) {
	repo := NewMemoryRepository()
	seedRecruiter(t, repo)

	_, err := repo.CreateRecruiter(context.Background(), &Recruiter{
		WaNumber: "15550001", Name: "Someone Else",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "wa_number", verr.Field)
}

func TestCreateVacancyAssignsDecodableJobCode(t *testing.T) {
	repo := NewMemoryRepository()
	rec := seedRecruiter(t, repo)
	ctx := context.Background()

	vac, err := repo.CreateVacancy(ctx, &Vacancy{
		RecruiterID: rec.ID, Title: "Driver", Location: "Pune",
	})
	require.NoError(t, err)
	require.Equal(t, VacancyPending, vac.Status)

	id, err := jobcode.Decode(vac.JobCode)
	require.NoError(t, err)
	require.Equal(t, vac.ID, id)

	found, err := repo.VacancyByCode(ctx, vac.JobCode)
	require.NoError(t, err)
	require.Equal(t, vac.ID, found.ID)
}

func TestCreateVacancyValidatesRequiredFields(t *testing.T) {
	repo := NewMemoryRepository()
	rec := seedRecruiter(t, repo)

	var verr *ValidationError
	_, err := repo.CreateVacancy(context.Background(), &Vacancy{RecruiterID: rec.ID, Location: "Pune"})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "title", verr.Field)

	_, err = repo.CreateVacancy(context.Background(), &Vacancy{RecruiterID: rec.ID, Title: "Driver"})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "location", verr.Field)
}

func TestSetVacancyStatusApprovalTimestamps(t *testing.T) {
	repo := NewMemoryRepository()
	rec := seedRecruiter(t, repo)
	ctx := context.Background()

	vac, err := repo.CreateVacancy(ctx, &Vacancy{RecruiterID: rec.ID, Title: "Driver", Location: "Pune"})
	require.NoError(t, err)

	require.NoError(t, repo.SetVacancyStatus(ctx, vac.ID, VacancyApproved, ""))
	approved, err := repo.VacancyByCode(ctx, vac.JobCode)
	require.NoError(t, err)
	require.Equal(t, VacancyApproved, approved.Status)
	require.True(t, approved.ApprovedAt.Valid)

	require.NoError(t, repo.SetVacancyStatus(ctx, vac.ID, VacancyRejected, "duplicate posting"))
	rejected, err := repo.VacancyByCode(ctx, vac.JobCode)
	require.NoError(t, err)
	require.Equal(t, "duplicate posting", rejected.RejectionReason)

	require.ErrorIs(t, repo.SetVacancyStatus(ctx, 999999, VacancyApproved, ""), ErrNotFound)
}

func TestUpdateCVTracksUsage(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.CreateSeeker(ctx, &Seeker{WaNumber: "15550001", Name: "Arun", CVPath: "a.pdf"})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateCV(ctx, "15550001", "b.pdf"))
	require.NoError(t, repo.UpdateCV(ctx, "15550001", "c.pdf"))

	seeker, err := repo.SeekerByNumber(ctx, "15550001")
	require.NoError(t, err)
	require.Equal(t, "c.pdf", seeker.CVPath)
	require.Equal(t, 2, seeker.CVUpdatesUsed)

	require.ErrorIs(t, repo.UpdateCV(ctx, "nobody", "x.pdf"), ErrNotFound)
}

func TestApplicationsLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	rec := seedRecruiter(t, repo)
	ctx := context.Background()

	vac, err := repo.CreateVacancy(ctx, &Vacancy{RecruiterID: rec.ID, Title: "Driver", Location: "Pune"})
	require.NoError(t, err)
	seeker, err := repo.CreateSeeker(ctx, &Seeker{WaNumber: "15550002", Name: "Arun"})
	require.NoError(t, err)

	has, err := repo.HasApplication(ctx, seeker.ID, vac.ID)
	require.NoError(t, err)
	require.False(t, has)

	app, err := repo.CreateApplication(ctx, &Application{SeekerID: seeker.ID, VacancyID: vac.ID})
	require.NoError(t, err)
	require.Equal(t, ApplicationApplied, app.Status)

	has, err = repo.HasApplication(ctx, seeker.ID, vac.ID)
	require.NoError(t, err)
	require.True(t, has)
}

func TestApplicationsBySeekerNewestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	rec := seedRecruiter(t, repo)
	ctx := context.Background()

	first, err := repo.CreateVacancy(ctx, &Vacancy{RecruiterID: rec.ID, Title: "Driver", Location: "Pune"})
	require.NoError(t, err)
	second, err := repo.CreateVacancy(ctx, &Vacancy{RecruiterID: rec.ID, Title: "Cook", Location: "Pune"})
	require.NoError(t, err)
	seeker, err := repo.CreateSeeker(ctx, &Seeker{WaNumber: "15550002", Name: "Arun"})
	require.NoError(t, err)

	_, err = repo.CreateApplication(ctx, &Application{SeekerID: seeker.ID, VacancyID: first.ID})
	require.NoError(t, err)
	_, err = repo.CreateApplication(ctx, &Application{SeekerID: seeker.ID, VacancyID: second.ID})
	require.NoError(t, err)
	repo.apps[0].AppliedAt = repo.apps[0].AppliedAt.Add(-time.Hour)

	items, err := repo.ApplicationsBySeeker(ctx, seeker.ID, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "Cook", items[0].Title)
	require.Equal(t, second.JobCode, items[0].JobCode)
	require.Equal(t, "Driver", items[1].Title)

	limited, err := repo.ApplicationsBySeeker(ctx, seeker.ID, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, "Cook", limited[0].Title)

	none, err := repo.ApplicationsBySeeker(ctx, 999999, 10)
	require.NoError(t, err)
	require.Empty(t, none)
}
