// Package postgres stores transactions in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Repository struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

var _ storage.Repository = (*Repository)(nil)

// Connect opens a pool, checks connectivity and applies migrations.
func Connect(ctx context.Context, databaseURL string, logger *log.Logger) (*Repository, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	version, err := runMigrations(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	logger = logger.WithComponent(log.ComponentStorage)
	logger.Info("Connected to PostgreSQL", log.FieldBackend, "postgres", "schema_version", version)
	return &Repository{pool: pool, logger: logger}, nil
}

func runMigrations(pool *pgxpool.Pool) (uint, error) {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return 0, fmt.Errorf("create pgx migration driver: %w", err)
	}
	return storage.ApplyMigrations(migrationsFS, "migrations", "pgx5", driver)
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) Insert(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	id := uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transactions (id, owner_email, owner_name, type, category, amount, description, date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, tx.OwnerEmail, tx.OwnerName, tx.Type.String(), tx.Category,
		float64(tx.Amount), tx.Description, tx.Date.Time)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	tx.ID = id.String()
	return tx, nil
}

func (r *Repository) Get(ctx context.Context, id string) (core.Transaction, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return core.Transaction{}, storage.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		SELECT id::text, owner_email, owner_name, type, category, amount, description, date
		FROM transactions WHERE id = $1`, uid)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (r *Repository) Update(ctx context.Context, id string, u core.TransactionUpdate) (core.Transaction, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return core.Transaction{}, storage.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE transactions
		SET type = $1, category = $2, amount = $3, description = $4, date = $5, updated_at = now()
		WHERE id = $6
		RETURNING id::text, owner_email, owner_name, type, category, amount, description, date`,
		u.Type.String(), u.Category, float64(u.Amount), u.Description, u.Date.Time, uid)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	return tx, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return storage.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, uid)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repository) ListByOwner(ctx context.Context, email string) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, owner_email, owner_name, type, category, amount, description, date
		FROM transactions WHERE owner_email = $1 ORDER BY seq`, email)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx     core.Transaction
		typ    string
		amount float64
		date   time.Time
	)
	if err := row.Scan(&tx.ID, &tx.OwnerEmail, &tx.OwnerName, &typ, &tx.Category, &amount, &tx.Description, &date); err != nil {
		return core.Transaction{}, err
	}
	tx.Type, _ = core.ParseType(typ)
	tx.Amount = core.Amount(amount)
	tx.Date = core.NewDate(date.Year(), date.Month(), date.Day())
	return tx, nil
}
