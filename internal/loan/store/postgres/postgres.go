package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kilimokredo/internal/loan/models"
	"kilimokredo/internal/loan/store"
	"kilimokredo/pkg/platform/sentinel"
)

//go:embed schema.sql
var schema string

const columns = `id, farmer_id, user_input, output, loan_amount_requested, loan_status, created_at, updated_at, decided_at`

// Store persists loan applications in PostgreSQL. The farmer input and model
// output snapshots are JSONB documents.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New constructs a PostgreSQL-backed store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the table and indexes if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply loan schema: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, app *models.LoanApplication) error {
	userJSON, err := json.Marshal(app.User)
	if err != nil {
		return fmt.Errorf("marshal farmer input: %w", err)
	}
	outputJSON, err := json.Marshal(app.Output)
	if err != nil {
		return fmt.Errorf("marshal model output: %w", err)
	}
	query := `INSERT INTO loan_applications (` + columns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = s.db.ExecContext(ctx, query,
		app.ID,
		app.FarmerID,
		userJSON,
		outputJSON,
		app.Others.LoanAmountRequested,
		string(app.Others.LoanStatus),
		app.CreatedAt,
		app.UpdatedAt,
		nullTime(app.DecidedAt),
	)
	if err != nil {
		return fmt.Errorf("insert loan application: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.LoanApplication, error) {
	query := `SELECT ` + columns + ` FROM loan_applications WHERE id = $1`
	app, err := scanApplication(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find loan application: %w", err)
	}
	return app, nil
}

func (s *Store) Find(ctx context.Context, filter store.Filter, limit int) ([]*models.LoanApplication, error) {
	var (
		where []string
		args  []any
	)
	if filter.FarmerID != "" {
		args = append(args, filter.FarmerID)
		where = append(where, "farmer_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, "loan_status = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + columns + ` FROM loan_applications`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find loan applications: %w", err)
	}
	defer rows.Close()

	var out []*models.LoanApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan application: %w", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loan applications: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateStatusIfPending(ctx context.Context, id string, status models.LoanStatus, now time.Time) (*models.LoanApplication, error) {
	query := `
		UPDATE loan_applications
		SET loan_status = $2, updated_at = $3, decided_at = $3
		WHERE id = $1 AND loan_status = 'Pending'
		RETURNING ` + columns
	app, err := scanApplication(s.db.QueryRowContext(ctx, query, id, string(status), now))
	if err == nil {
		return app, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update loan status: %w", err)
	}

	// Nothing updated: either the id is unknown or the guard failed.
	var current string
	err = s.db.QueryRowContext(ctx, `SELECT loan_status FROM loan_applications WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read loan status: %w", err)
	}
	return nil, fmt.Errorf("application is %s: %w", current, sentinel.ErrInvalidState)
}

func (s *Store) CountByStatus(ctx context.Context) (map[models.LoanStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT loan_status, COUNT(*) FROM loan_applications GROUP BY loan_status`)
	if err != nil {
		return nil, fmt.Errorf("count loan applications: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.LoanStatus]int, 3)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[models.LoanStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.LoanApplication, error) {
	var (
		app        models.LoanApplication
		userJSON   []byte
		outputJSON []byte
		status     string
		decidedAt  sql.NullTime
	)
	if err := row.Scan(
		&app.ID,
		&app.FarmerID,
		&userJSON,
		&outputJSON,
		&app.Others.LoanAmountRequested,
		&status,
		&app.CreatedAt,
		&app.UpdatedAt,
		&decidedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(userJSON, &app.User); err != nil {
		return nil, fmt.Errorf("decode farmer input: %w", err)
	}
	if err := json.Unmarshal(outputJSON, &app.Output); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	app.Others.LoanStatus = models.LoanStatus(status)
	if decidedAt.Valid {
		t := decidedAt.Time
		app.DecidedAt = &t
	}
	return &app, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
