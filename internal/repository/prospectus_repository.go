package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/yourorg/tenantonboard/internal/domain"
)

const (
	pqUniqueViolation   = "23505"
	pqInvalidTextRepr   = "22P02"
	emailConstraintName = "tenant_prospectus_email_uq"
)

// Schema creates the prospectus table and its partial unique indexes.
const Schema = `
CREATE TABLE IF NOT EXISTS tenant_prospectus (
	id                   UUID PRIMARY KEY,
	title                VARCHAR(25)  NOT NULL,
	slug                 VARCHAR(25)  NOT NULL,
	subscription         VARCHAR(25)  NOT NULL,
	status               VARCHAR(64)  NOT NULL,
	is_active            BOOLEAN      NOT NULL DEFAULT TRUE,
	is_deleted           BOOLEAN      NOT NULL DEFAULT FALSE,
	requester_first_name VARCHAR(50)  NOT NULL,
	requester_last_name  VARCHAR(50)  NOT NULL,
	requester_email      VARCHAR(50)  NOT NULL,
	phone_country_code   VARCHAR(5),
	phone_number         VARCHAR(15),
	designation          VARCHAR(50)  NOT NULL,
	created_at           TIMESTAMPTZ  NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ  NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS tenant_prospectus_slug_uq
	ON tenant_prospectus (slug) WHERE is_deleted = FALSE;
CREATE UNIQUE INDEX IF NOT EXISTS tenant_prospectus_email_uq
	ON tenant_prospectus (requester_email) WHERE is_deleted = FALSE;
CREATE INDEX IF NOT EXISTS tenant_prospectus_created_idx
	ON tenant_prospectus (created_at, id);
`

const prospectusColumns = `id, title, slug, subscription, status, is_active, is_deleted,
	requester_first_name, requester_last_name, requester_email,
	phone_country_code, phone_number, designation, created_at, updated_at`

// PostgresProspectusRepository implements domain.ProspectusRepository using PostgreSQL
type PostgresProspectusRepository struct {
	db     *sql.DB
	logger *slog.Logger
	newID  func() string
}

// NewPostgresProspectusRepository creates a new prospectus repository
func NewPostgresProspectusRepository(db *sql.DB, logger *slog.Logger) *PostgresProspectusRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProspectusRepository{
		db:     db,
		logger: logger,
		newID:  func() string { return uuid.NewString() },
	}
}

// Migrate applies the schema. It is safe to run on every start.
func (r *PostgresProspectusRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Create inserts a new prospectus in the onboarding stage
func (r *PostgresProspectusRepository) Create(ctx context.Context, in domain.NewProspectus) (*domain.Prospectus, error) {
	query := `
		INSERT INTO tenant_prospectus (
			id, title, slug, subscription, status,
			requester_first_name, requester_last_name, requester_email,
			phone_country_code, phone_number, designation
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + prospectusColumns

	p, err := scanProspectus(r.db.QueryRowContext(ctx, query,
		r.newID(), in.Title, in.Slug, string(in.Subscription), string(domain.StageOnboarding),
		in.RequesterFirstName, in.RequesterLastName, in.RequesterEmail,
		nullable(in.PhoneCountryCode), nullable(in.PhoneNumber), in.Designation,
	))
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("failed to create prospectus: %w", err)
	}

	r.logger.Info("prospectus created", slog.String("prospectus_id", p.ID), slog.String("slug", p.Slug))
	return p, nil
}

// GetByID retrieves a non-deleted prospectus by ID
func (r *PostgresProspectusRepository) GetByID(ctx context.Context, id string) (*domain.Prospectus, bool, error) {
	query := `SELECT ` + prospectusColumns + `
		FROM tenant_prospectus
		WHERE id = $1 AND is_deleted = FALSE`

	p, err := scanProspectus(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isPQCode(err, pqInvalidTextRepr) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get prospectus: %w", err)
	}
	return p, true, nil
}

// List returns a page of non-deleted prospectuses ordered by creation
func (r *PostgresProspectusRepository) List(ctx context.Context, offset, limit int) ([]*domain.Prospectus, error) {
	query := `SELECT ` + prospectusColumns + `
		FROM tenant_prospectus
		WHERE is_deleted = FALSE
		ORDER BY created_at ASC, id ASC
		OFFSET $1 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list prospectuses: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Prospectus, 0, limit)
	for rows.Next() {
		p, err := scanProspectus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prospectus: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prospectuses: %w", err)
	}
	return out, nil
}

// UpdateStage moves a prospectus from one stage to the next only if it still
// holds the expected stage
func (r *PostgresProspectusRepository) UpdateStage(ctx context.Context, id string, from, to domain.Stage) (*domain.Prospectus, bool, error) {
	query := `
		UPDATE tenant_prospectus
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2 AND is_deleted = FALSE
		RETURNING ` + prospectusColumns

	p, err := scanProspectus(r.db.QueryRowContext(ctx, query, id, string(from), string(to)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to update prospectus stage: %w", err)
	}
	return p, true, nil
}

// FindByUniqueFields returns a non-deleted prospectus whose slug or email
// matches. Empty arguments never match.
func (r *PostgresProspectusRepository) FindByUniqueFields(ctx context.Context, slug, email string) (*domain.Prospectus, bool, error) {
	query := `SELECT ` + prospectusColumns + `
		FROM tenant_prospectus
		WHERE is_deleted = FALSE
		  AND (($1 <> '' AND slug = $1) OR ($2 <> '' AND requester_email = $2))
		LIMIT 1`

	p, err := scanProspectus(r.db.QueryRowContext(ctx, query, slug, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to look up prospectus: %w", err)
	}
	return p, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProspectus(row rowScanner) (*domain.Prospectus, error) {
	var (
		p                 domain.Prospectus
		subscription      string
		stage             string
		phoneCountry, num sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &subscription, &stage, &p.IsActive, &p.IsDeleted,
		&p.RequesterFirstName, &p.RequesterLastName, &p.RequesterEmail,
		&phoneCountry, &num, &p.Designation, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Subscription = domain.Subscription(subscription)
	p.Stage = domain.Stage(stage)
	p.PhoneCountryCode = phoneCountry.String
	p.PhoneNumber = num.String
	return &p, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isPQCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

// duplicateError maps a unique violation to the matching domain error, or nil
// when err is not a unique violation.
func duplicateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return nil
	}
	if strings.Contains(pqErr.Constraint, emailConstraintName) {
		return domain.WrapError(domain.CodeDuplicateEmail, domain.ErrDuplicateEmail.Message, err)
	}
	return domain.WrapError(domain.CodeDuplicateSlug, domain.ErrDuplicateSlug.Message, err)
}
