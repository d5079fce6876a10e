package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskdesk/internal/config"
	"taskdesk/internal/logger"
	"taskdesk/internal/models/task"
	"taskdesk/internal/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Storage is the postgres-backed task snapshot.
type Storage struct {
	pool       *pgxpool.Pool
	connString string
}

func New(ctx context.Context, cfg config.DatabaseConfig) (*Storage, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		logger.Error("Repository: parsing connection config", err)
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConnections
	poolConfig.MinConns = cfg.MinConnections
	poolConfig.MaxConnIdleTime = cfg.IdleTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("Repository: creating connection pool", err)
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		logger.Error("Repository: ping failed", err)
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("Repository: connected to PostgreSQL")
	return &Storage{pool: pool, connString: cfg.URL}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: closed all PostgreSQL connections")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: ping failed", err)
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(s.connString))
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	logger.Info("Repository: migrations applied")
	return nil
}

// migrateURL rewrites the pool connection string for golang-migrate's
// pgx/v5 driver, which registers the pgx5 scheme.
func migrateURL(connString string) string {
	if rest, ok := strings.CutPrefix(connString, "postgres://"); ok {
		return "pgx5://" + rest
	}
	if rest, ok := strings.CutPrefix(connString, "postgresql://"); ok {
		return "pgx5://" + rest
	}
	return connString
}

const taskColumns = `id, task_name, service_description, client_id, client_name,
	assignee_id, assignee_name, workflow_status, due_date,
	invoice_amount, gst_override_percentage, invoice_id, credit_note_id, invoice_pdf_url,
	require_clarification, clarification_from, clarification_from_name,
	clarification_to, clarification_to_name,
	comments, running_log, created_at, updated_at`

// ReplaceAll swaps the whole snapshot inside one transaction so readers
// never observe a half-replaced set.
func (s *Storage) ReplaceAll(ctx context.Context, tasks []*task.Task) error {
	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		logger.Error("Repository: starting snapshot transaction", err)
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM tasks`); err != nil {
		logger.Error("Repository: clearing snapshot", err)
		return fmt.Errorf("clearing snapshot: %w", err)
	}

	batch := &pgx.Batch{}
	for i, t := range tasks {
		args, err := insertArgs(t)
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO tasks (`+taskColumns+`, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
			append(args, i)...)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		logger.Error("Repository: writing snapshot", err)
		return fmt.Errorf("writing snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Error("Repository: committing snapshot", err)
		return fmt.Errorf("committing snapshot: %w", err)
	}

	if time.Since(start) > time.Second {
		logger.Warn("Repository: slow snapshot replace",
			zap.Int("tasks", len(tasks)),
			zap.Duration("ms", time.Since(start)))
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, t *task.Task) error {
	start := time.Now()

	args, err := insertArgs(t)
	if err != nil {
		return err
	}

	query := `INSERT INTO tasks (` + taskColumns + `, position)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,
			(SELECT COALESCE(MAX(position)+1, 0) FROM tasks))
		ON CONFLICT (id) DO UPDATE SET
			task_name = EXCLUDED.task_name,
			service_description = EXCLUDED.service_description,
			client_id = EXCLUDED.client_id,
			client_name = EXCLUDED.client_name,
			assignee_id = EXCLUDED.assignee_id,
			assignee_name = EXCLUDED.assignee_name,
			workflow_status = EXCLUDED.workflow_status,
			due_date = EXCLUDED.due_date,
			invoice_amount = EXCLUDED.invoice_amount,
			gst_override_percentage = EXCLUDED.gst_override_percentage,
			invoice_id = EXCLUDED.invoice_id,
			credit_note_id = EXCLUDED.credit_note_id,
			invoice_pdf_url = EXCLUDED.invoice_pdf_url,
			require_clarification = EXCLUDED.require_clarification,
			clarification_from = EXCLUDED.clarification_from,
			clarification_from_name = EXCLUDED.clarification_from_name,
			clarification_to = EXCLUDED.clarification_to,
			clarification_to_name = EXCLUDED.clarification_to_name,
			comments = EXCLUDED.comments,
			running_log = EXCLUDED.running_log,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			synced_at = NOW()`

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		logger.Error("Repository: upserting task", err, zap.String("task_id", t.ID))
		return fmt.Errorf("upserting task %s: %w", t.ID, err)
	}

	if time.Since(start) > 100*time.Millisecond {
		logger.Warn("Repository: slow upsert", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

func (s *Storage) GetByID(ctx context.Context, id string) (*task.Task, error) {
	start := time.Now()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := scanTask(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		logger.Error("Repository: fetching task", err, zap.String("task_id", id))
		return nil, fmt.Errorf("fetching task %s: %w", id, err)
	}

	if time.Since(start) > 100*time.Millisecond {
		logger.Warn("Repository: slow query", zap.Duration("ms", time.Since(start)))
	}
	return t, nil
}

func (s *Storage) GetAll(ctx context.Context) ([]*task.Task, error) {
	start := time.Now()

	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY position`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		logger.Error("Repository: fetching snapshot", err)
		return nil, fmt.Errorf("fetching snapshot: %w", err)
	}
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Warn("Repository: scanning task row", zap.Error(err))
			continue
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: iterating snapshot rows", err)
		return nil, fmt.Errorf("iterating snapshot rows: %w", err)
	}

	if time.Since(start) > time.Second {
		logger.Warn("Repository: slow query", zap.Duration("ms", time.Since(start)))
	}
	return tasks, nil
}

func insertArgs(t *task.Task) ([]any, error) {
	comments, err := json.Marshal(t.Comments)
	if err != nil {
		return nil, fmt.Errorf("encoding comments for task %s: %w", t.ID, err)
	}
	runningLog, err := json.Marshal(t.RunningLog)
	if err != nil {
		return nil, fmt.Errorf("encoding running log for task %s: %w", t.ID, err)
	}

	return []any{
		t.ID, t.Name, t.Description, t.ClientID, t.ClientName,
		t.AssigneeID, t.AssigneeName, t.Status, t.DueDate,
		t.InvoiceAmount, t.GSTOverride, t.InvoiceID, t.CreditNoteID, t.InvoicePDFURL,
		t.Clarification.Required, t.Clarification.FromID, t.Clarification.FromName,
		t.Clarification.ToID, t.Clarification.ToName,
		comments, runningLog, t.CreatedAt, t.UpdatedAt,
	}, nil
}

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{}
	var comments, runningLog []byte

	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.ClientID, &t.ClientName,
		&t.AssigneeID, &t.AssigneeName, &t.Status, &t.DueDate,
		&t.InvoiceAmount, &t.GSTOverride, &t.InvoiceID, &t.CreditNoteID, &t.InvoicePDFURL,
		&t.Clarification.Required, &t.Clarification.FromID, &t.Clarification.FromName,
		&t.Clarification.ToID, &t.Clarification.ToName,
		&comments, &runningLog, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if !t.Status.Valid() {
		return nil, fmt.Errorf("%w: %q stored for task %s", task.ErrInvalidStatus, string(t.Status), t.ID)
	}

	if err := json.Unmarshal(comments, &t.Comments); err != nil {
		return nil, fmt.Errorf("decoding comments: %w", err)
	}
	if err := json.Unmarshal(runningLog, &t.RunningLog); err != nil {
		return nil, fmt.Errorf("decoding running log: %w", err)
	}
	return t, nil
}
