package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

const EventTypePurchaseCompleted = "purchase_completed"

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

// PurchaseCompletedPayload is the outbox body for a run with at least one purchase.
type PurchaseCompletedPayload struct {
	RunID       string    `json:"run_id"`
	Session     string    `json:"session"`
	BookIDs     []string  `json:"book_ids"`
	TotalAmount float64   `json:"total_amount"`
	CompletedAt time.Time `json:"completed_at"`
}

type RunSummary struct {
	ID            string    `json:"id"`
	Session       string    `json:"session"`
	PaymentMethod string    `json:"paymentMethod"`
	Kind          string    `json:"kind"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	TotalAmount   float64   `json:"totalAmount"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// RecordRun stores the run with its attempts and, when anything was bought,
// the outbox event announcing it. All or nothing.
func (r *Repository) RecordRun(ctx context.Context, run domain.CheckoutRun) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	outcome := run.Outcome
	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkout_runs (id, session, payment_method, kind, succeeded, failed, total_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		outcome.RunID, run.Session, string(run.PaymentMethod), string(outcome.Kind),
		len(outcome.Succeeded), len(outcome.Failed), run.SucceededAmount(), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert checkout run: %w", err)
	}

	for i, a := range outcome.Attempts {
		var errMsg sql.NullString
		if !a.Succeeded {
			errMsg = sql.NullString{String: a.ErrorMessage, Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO checkout_attempts (run_id, position, book_id, title, quantity, succeeded, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			outcome.RunID, i, a.Item.ID, a.Item.Title, a.Item.Quantity, a.Succeeded, errMsg)
		if err != nil {
			return fmt.Errorf("failed to insert checkout attempt: %w", err)
		}
	}

	if outcome.AnySucceeded() {
		payload, errMarshal := json.Marshal(PurchaseCompletedPayload{
			RunID:       outcome.RunID,
			Session:     run.Session,
			BookIDs:     outcome.SucceededIDs(),
			TotalAmount: run.SucceededAmount(),
			CompletedAt: run.CreatedAt,
		})
		if errMarshal != nil {
			err = fmt.Errorf("failed to marshal outbox payload: %w", errMarshal)
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO outbox_events (aggregate_id, event_type, payload)
			VALUES ($1, $2, $3)`,
			outcome.RunID, EventTypePurchaseCompleted, string(payload))
		if err != nil {
			return fmt.Errorf("failed to insert outbox event: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkout run: %w", err)
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox events: %w", err)
	}
	defer rows.Close()

	var out []*OutboxEvent
	for rows.Next() {
		e := &OutboxEvent{}
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event %d: %w", id, err)
	}
	return nil
}

// ListRuns returns the latest runs of a session, newest first.
func (r *Repository) ListRuns(ctx context.Context, session string, limit int) ([]RunSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session, payment_method, kind, succeeded, failed, total_amount, created_at
		FROM checkout_runs
		WHERE session = $1
		ORDER BY created_at DESC
		LIMIT $2`, session, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkout runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.ID, &s.Session, &s.PaymentMethod, &s.Kind,
			&s.Succeeded, &s.Failed, &s.TotalAmount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkout run: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
