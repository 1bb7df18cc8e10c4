package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

// Get fetches a lead by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Lead, error) {
	query := `
		SELECT id, name, email, phone, company, score, status, message_count, last_interaction_at, created_at
		FROM leads
		WHERE id = $1
	`
	row := r.db.QueryRow(ctx, query, id)
	var lead Lead
	if err := row.Scan(
		&lead.ID,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&lead.Company,
		&lead.Score,
		&lead.Status,
		&lead.MessageCount,
		&lead.LastInteractionAt,
		&lead.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return &lead, nil
}

// Create inserts a new row with a zero score and cold status.
func (r *PostgresRepository) Create(ctx context.Context, id string, profile *Profile) (*Lead, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO leads (id, name, email, phone, company, score, status, message_count)
		VALUES ($1, $2, $3, $4, $5, 0, $6, 0)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.db.QueryRow(ctx, query,
		id,
		profile.Name,
		profile.Email,
		profile.Phone,
		profile.Company,
		StatusCold,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}

	return &Lead{
		ID:        id,
		Name:      profile.Name,
		Email:     profile.Email,
		Phone:     profile.Phone,
		Company:   profile.Company,
		Score:     0,
		Status:    StatusCold,
		CreatedAt: createdAt,
	}, nil
}

// Update writes the post-exchange score, status, and counters.
func (r *PostgresRepository) Update(ctx context.Context, id string, update Update) error {
	query := `
		UPDATE leads
		SET score = $1, status = $2, message_count = $3, last_interaction_at = $4
		WHERE id = $5
	`
	tag, err := r.db.Exec(ctx, query,
		update.Score,
		update.Status,
		update.MessageCount,
		update.LastInteractionAt,
		id,
	)
	if err != nil {
		return fmt.Errorf("leads: update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// Convert marks a lead as converted and returns the updated row.
func (r *PostgresRepository) Convert(ctx context.Context, id string) (*Lead, error) {
	query := `
		UPDATE leads
		SET status = $1
		WHERE id = $2
		RETURNING id, name, email, phone, company, score, status, message_count, last_interaction_at, created_at
	`
	row := r.db.QueryRow(ctx, query, StatusConverted, id)
	var lead Lead
	if err := row.Scan(
		&lead.ID,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&lead.Company,
		&lead.Score,
		&lead.Status,
		&lead.MessageCount,
		&lead.LastInteractionAt,
		&lead.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: convert failed: %w", err)
	}
	return &lead, nil
}
