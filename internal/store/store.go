package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrAlreadyTerminal is returned when a terminal state write races a
	// previous one; callers treat it as "someone else already finished".
	ErrAlreadyTerminal = errors.New("invoice already in a terminal state")
)

// InvoiceState is the persisted lifecycle of an invoice. Created is the
// only non-terminal state and an invoice leaves it exactly once.
type InvoiceState string

const (
	InvoiceStateCreated   InvoiceState = "created"
	InvoiceStateSettled   InvoiceState = "settled"
	InvoiceStateCancelled InvoiceState = "cancelled"
)

// Invoice is one issued bolt11 invoice tracked to settlement.
type Invoice struct {
	ID           int64
	OperationID  string
	FederationID string
	UserID       int64
	AmountMsat   uint64
	Bolt11       string
	State        InvoiceState
	CreatedAt    time.Time
}

// Zap links a nostr zap request to the invoice it accompanied. EventID is
// the id of the receipt event, set once after a successful broadcast.
type Zap struct {
	InvoiceID int64
	Request   string
	EventID   string
}

// User is a registered recipient.
type User struct {
	ID           int64
	Name         string
	Pubkey       string
	FederationID string
	DMType       string
	Relays       []string
}

// Store persists invoices, zap requests and users.
type Store interface {
	CreateInvoice(ctx context.Context, inv *Invoice) (int64, error)
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	GetInvoiceByOperationID(ctx context.Context, opID string) (*Invoice, error)
	// SetInvoiceState transitions an invoice out of Created and returns the
	// updated row. A second terminal write returns ErrAlreadyTerminal.
	SetInvoiceState(ctx context.Context, id int64, state InvoiceState) (*Invoice, error)

	CreateZap(ctx context.Context, zap *Zap) error
	GetZap(ctx context.Context, invoiceID int64) (*Zap, error)
	SetZapEventID(ctx context.Context, invoiceID int64, eventID string) error

	CreateUser(ctx context.Context, user *User) (int64, error)
	GetUserByName(ctx context.Context, name string) (*User, error)

	Close() error
}
