package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed migrates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			pubkey TEXT NOT NULL,
			federation_id TEXT NOT NULL,
			dm_type TEXT NOT NULL,
			relays TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS invoices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			op_id TEXT NOT NULL UNIQUE,
			federation_id TEXT NOT NULL,
			user_id INTEGER NOT NULL REFERENCES users(id),
			amount_msat INTEGER NOT NULL,
			bolt11 TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'created',
			created_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS zaps (
			invoice_id INTEGER PRIMARY KEY REFERENCES invoices(id),
			request TEXT NOT NULL,
			event_id TEXT
		);
	`)
	return err
}

func (s *SQLiteStore) CreateInvoice(ctx context.Context, inv *Invoice) (int64, error) {
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (op_id, federation_id, user_id, amount_msat, bolt11, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, inv.OperationID, inv.FederationID, inv.UserID, inv.AmountMsat, inv.Bolt11,
		string(InvoiceStateCreated), inv.CreatedAt)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (s *SQLiteStore) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return s.scanInvoice(s.db.QueryRowContext(ctx, `
		SELECT id, op_id, federation_id, user_id, amount_msat, bolt11, state, created_at
		FROM invoices WHERE id = ?
	`, id))
}

func (s *SQLiteStore) GetInvoiceByOperationID(ctx context.Context, opID string) (*Invoice, error) {
	return s.scanInvoice(s.db.QueryRowContext(ctx, `
		SELECT id, op_id, federation_id, user_id, amount_msat, bolt11, state, created_at
		FROM invoices WHERE op_id = ?
	`, opID))
}

func (s *SQLiteStore) scanInvoice(row *sql.Row) (*Invoice, error) {
	var inv Invoice
	var state string
	err := row.Scan(&inv.ID, &inv.OperationID, &inv.FederationID, &inv.UserID,
		&inv.AmountMsat, &inv.Bolt11, &state, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	inv.State = InvoiceState(state)
	return &inv, nil
}

func (s *SQLiteStore) SetInvoiceState(ctx context.Context, id int64, state InvoiceState) (*Invoice, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE invoices SET state = ? WHERE id = ? AND state = ?
	`, string(state), id, string(InvoiceStateCreated))
	if err != nil {
		return nil, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// Either the row is missing or it already left Created.
		if _, err := s.GetInvoice(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyTerminal
	}

	return s.GetInvoice(ctx, id)
}

func (s *SQLiteStore) CreateZap(ctx context.Context, zap *Zap) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO zaps (invoice_id, request) VALUES (?, ?)
	`, zap.InvoiceID, zap.Request)
	return err
}

func (s *SQLiteStore) GetZap(ctx context.Context, invoiceID int64) (*Zap, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT invoice_id, request, COALESCE(event_id, '') FROM zaps WHERE invoice_id = ?
	`, invoiceID)

	var zap Zap
	err := row.Scan(&zap.InvoiceID, &zap.Request, &zap.EventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &zap, nil
}

func (s *SQLiteStore) SetZapEventID(ctx context.Context, invoiceID int64, eventID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE zaps SET event_id = ? WHERE invoice_id = ? AND event_id IS NULL
	`, eventID, invoiceID)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (name, pubkey, federation_id, dm_type, relays)
		VALUES (?, ?, ?, ?, ?)
	`, user.Name, user.Pubkey, user.FederationID, user.DMType,
		strings.Join(user.Relays, ","))
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (s *SQLiteStore) GetUserByName(ctx context.Context, name string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, pubkey, federation_id, dm_type, relays
		FROM users WHERE name = ?
	`, name)

	var user User
	var relays string
	err := row.Scan(&user.ID, &user.Name, &user.Pubkey, &user.FederationID,
		&user.DMType, &relays)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if relays != "" {
		user.Relays = strings.Split(relays, ",")
	}
	return &user, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
