package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/tenantonboard/internal/domain"
)

var columns = []string{
	"id", "title", "slug", "subscription", "status", "is_active", "is_deleted",
	"requester_first_name", "requester_last_name", "requester_email",
	"phone_country_code", "phone_number", "designation", "created_at", "updated_at",
}

const testID = "7b0e4c1a-0000-4000-8000-000000000001"

var createdAt = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresProspectusRepository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewPostgresProspectusRepository(db, nil)
	repo.newID = func() string { return testID }
	return db, mock, repo
}

func acmeRow(stage domain.Stage) *sqlmock.Rows {
	return sqlmock.NewRows(columns).AddRow(
		testID, "Acme Corp", "acme", "TRIAL", string(stage), true, false,
		"Ada", "Lovelace", "a@acme.io", nil, nil, "CTO", createdAt, createdAt,
	)
}

func acmeInput() domain.NewProspectus {
	return domain.NewProspectus{
		Title:              "Acme Corp",
		Slug:               "acme",
		Subscription:       domain.SubscriptionTrial,
		RequesterFirstName: "Ada",
		RequesterLastName:  "Lovelace",
		RequesterEmail:     "a@acme.io",
		Designation:        "CTO",
	}
}

func TestCreate_Success(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO tenant_prospectus`).
		WithArgs(testID, "Acme Corp", "acme", "TRIAL", string(domain.StageOnboarding),
			"Ada", "Lovelace", "a@acme.io", nil, nil, "CTO").
		WillReturnRows(acmeRow(domain.StageOnboarding))

	p, err := repo.Create(context.Background(), acmeInput())

	require.NoError(t, err)
	assert.Equal(t, testID, p.ID)
	assert.Equal(t, domain.StageOnboarding, p.Stage)
	assert.Equal(t, domain.SubscriptionTrial, p.Subscription)
	assert.Empty(t, p.PhoneNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UniqueViolationMapsToDuplicate(t *testing.T) {
	cases := map[string]struct {
		constraint string
		want       error
	}{
		"slug":  {constraint: "tenant_prospectus_slug_uq", want: domain.ErrDuplicateSlug},
		"email": {constraint: "tenant_prospectus_email_uq", want: domain.ErrDuplicateEmail},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			db, mock, repo := setupMockDB(t)
			defer db.Close()

			mock.ExpectQuery(`INSERT INTO tenant_prospectus`).
				WillReturnError(&pq.Error{Code: "23505", Constraint: tc.constraint})

			_, err := repo.Create(context.Background(), acmeInput())

			assert.ErrorIs(t, err, tc.want)
			assert.True(t, domain.IsDuplicate(err))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreate_OtherErrorIsWrapped(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO tenant_prospectus`).WillReturnError(errors.New("conn reset"))

	_, err := repo.Create(context.Background(), acmeInput())

	require.Error(t, err)
	assert.False(t, domain.IsDuplicate(err))
	assert.Contains(t, err.Error(), "conn reset")
}

func TestGetByID_FoundAndMissing(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM tenant_prospectus\s+WHERE id = \$1 AND is_deleted = FALSE`).
		WithArgs(testID).
		WillReturnRows(acmeRow(domain.StageAdminEmailActivation))
	mock.ExpectQuery(`FROM tenant_prospectus`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	p, found, err := repo.GetByID(context.Background(), testID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.StageAdminEmailActivation, p.Stage)

	p, found, err = repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_EmptyIsNotNil(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at ASC, id ASC`)).
		WithArgs(20, 10).
		WillReturnRows(sqlmock.NewRows(columns))

	out, err := repo.List(context.Background(), 20, 10)

	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Len(t, out, 0)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_ScansPhoneFields(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows(columns).AddRow(
		testID, "Acme Corp", "acme", "STARTER", string(domain.StageOnboarding), true, false,
		"Ada", "Lovelace", "a@acme.io", "+44", "2071234567", "CTO", createdAt, createdAt,
	)
	mock.ExpectQuery(`SELECT`).WithArgs(0, 10).WillReturnRows(rows)

	out, err := repo.List(context.Background(), 0, 10)

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "+44", out[0].PhoneCountryCode)
	assert.Equal(t, "2071234567", out[0].PhoneNumber)
	assert.Equal(t, domain.SubscriptionStarter, out[0].Subscription)
}

func TestUpdateStage_ConditionalWrite(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	from, to := domain.StageOnboarding, domain.StageAdminEmailActivation
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1 AND status = $2 AND is_deleted = FALSE`)).
		WithArgs(testID, string(from), string(to)).
		WillReturnRows(acmeRow(to))
	mock.ExpectQuery(`UPDATE tenant_prospectus`).
		WithArgs(testID, string(from), string(to)).
		WillReturnError(sql.ErrNoRows)

	p, ok, err := repo.UpdateStage(context.Background(), testID, from, to)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, to, p.Stage)

	_, ok, err = repo.UpdateStage(context.Background(), testID, from, to)
	require.NoError(t, err)
	assert.False(t, ok, "second writer loses the compare-and-set")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByUniqueFields(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`slug = \$1\) OR \(\$2 <> '' AND requester_email = \$2`).
		WithArgs("acme", "").
		WillReturnRows(acmeRow(domain.StageOnboarding))
	mock.ExpectQuery(`SELECT`).
		WithArgs("", "nobody@acme.io").
		WillReturnError(sql.ErrNoRows)

	p, found, err := repo.FindByUniqueFields(context.Background(), "acme", "")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "acme", p.Slug)

	_, found, err = repo.FindByUniqueFields(context.Background(), "", "nobody@acme.io")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS tenant_prospectus`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
