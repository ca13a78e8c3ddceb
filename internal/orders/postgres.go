package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"grene-storefront/internal/modal"
)

type PostgresLedger struct {
	db  *sql.DB
	now func() time.Time
}

// OpenPostgres connects with the pgx stdlib driver and creates the table.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresLedger, error) {
	if dsn == "" {
		return nil, errors.New("missing DATABASE_URL")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	l := &PostgresLedger{db: db, now: time.Now}
	if err := l.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *PostgresLedger) Close() error { return l.db.Close() }

func (l *PostgresLedger) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS store_orders (
			commerce_order TEXT PRIMARY KEY,
			number TEXT,
			method TEXT,
			flow_order BIGINT,
			token TEXT,
			status TEXT NOT NULL CHECK (status IN ('PENDING','PAID','REJECTED','CANCELLED')),
			amount NUMERIC(18,2) NOT NULL DEFAULT 0,
			currency TEXT,
			email TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_store_orders_created ON store_orders (created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const orderColumns = `commerce_order, COALESCE(number,''), COALESCE(method,''), COALESCE(flow_order,0), COALESCE(token,''),
	status, amount, COALESCE(currency,''), COALESCE(email,''), created_at, updated_at`

func (l *PostgresLedger) Save(ctx context.Context, o Order) error {
	now := l.now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.Status == "" {
		o.Status = modal.PaymentPending
	}
	o.UpdatedAt = now
	return l.upsert(ctx, l.db, o)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (l *PostgresLedger) upsert(ctx context.Context, ex execer, o Order) error {
	q := `INSERT INTO store_orders (commerce_order, number, method, flow_order, token, status, amount, currency, email, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (commerce_order) DO UPDATE SET
			number = EXCLUDED.number, method = EXCLUDED.method, flow_order = EXCLUDED.flow_order,
			token = EXCLUDED.token, status = EXCLUDED.status, amount = EXCLUDED.amount,
			currency = EXCLUDED.currency, email = EXCLUDED.email, updated_at = EXCLUDED.updated_at`
	_, err := ex.ExecContext(ctx, q,
		o.CommerceOrder, o.Number, string(o.Method), o.FlowOrder, o.Token, string(o.Status),
		o.Amount, o.Currency, o.Email, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save order %s: %w", o.CommerceOrder, err)
	}
	return nil
}

func (l *PostgresLedger) Get(ctx context.Context, commerceOrder string) (Order, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM store_orders WHERE commerce_order = $1`, commerceOrder)
	return scanOrder(row)
}

func (l *PostgresLedger) ApplyStatus(ctx context.Context, u modal.StatusUpdate) (Order, bool, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, false, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM store_orders WHERE commerce_order = $1 FOR UPDATE`, u.CommerceOrder)
	cur, err := scanOrder(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Order{}, false, err
	}

	next, changed := apply(cur, u, l.now().UTC())
	if !changed {
		return cur, false, nil
	}
	if err := l.upsert(ctx, tx, next); err != nil {
		return Order{}, false, err
	}
	return next, true, tx.Commit()
}

func (l *PostgresLedger) List(ctx context.Context) ([]Order, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM store_orders ORDER BY created_at DESC LIMIT 500`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (Order, error) {
	var o Order
	var method, status string
	err := s.Scan(&o.CommerceOrder, &o.Number, &method, &o.FlowOrder, &o.Token,
		&status, &o.Amount, &o.Currency, &o.Email, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Method = modal.PaymentMethod(method)
	o.Status = modal.PaymentStatus(status)
	return o, nil
}
