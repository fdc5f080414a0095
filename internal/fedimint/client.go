package fedimint

import (
	"context"
	"time"
)

// ReceiveState mirrors the lifecycle a federation reports for a receive
// operation. Claimed and Canceled are terminal; everything else is
// intermediate and may be skipped.
type ReceiveState int

const (
	ReceiveCreated ReceiveState = iota
	ReceiveWaitingForPayment
	ReceiveFunded
	ReceiveAwaitingFunds
	ReceiveClaimed
	ReceiveCanceled
)

var receiveStateToString = map[ReceiveState]string{
	ReceiveCreated:           "created",
	ReceiveWaitingForPayment: "waiting-for-payment",
	ReceiveFunded:            "funded",
	ReceiveAwaitingFunds:     "awaiting-funds",
	ReceiveClaimed:           "claimed",
	ReceiveCanceled:          "canceled",
}

func (s ReceiveState) String() string {
	return receiveStateToString[s]
}

// Terminal reports whether no further updates will follow this state.
func (s ReceiveState) Terminal() bool {
	return s == ReceiveClaimed || s == ReceiveCanceled
}

// ReceiveUpdate is one lifecycle event for a receive operation. Reason is
// only set for ReceiveCanceled.
type ReceiveUpdate struct {
	State  ReceiveState
	Reason string
}

// Client is the capability a single federation exposes to the pipeline:
// issue a Lightning invoice, follow its lifecycle, and spend e-cash notes
// out-of-band once it settles.
type Client interface {
	// CreateInvoice asks the federation gateway for a bolt11 invoice of
	// exactly amountMsat and returns the operation id assigned to it.
	CreateInvoice(ctx context.Context, amountMsat uint64, description string) (opID string, bolt11 string, err error)

	// SubscribeReceive returns the lifecycle stream for an operation. The
	// channel delivers at most one terminal update, after all intermediate
	// ones, and is closed afterwards. Exactly one consumer may read it.
	SubscribeReceive(ctx context.Context, opID string) (<-chan ReceiveUpdate, error)

	// SpendNotes withdraws bearer notes worth amountMsat, redeemable for
	// the given validity window.
	SpendNotes(ctx context.Context, amountMsat uint64, validity time.Duration) (opID string, notes string, err error)
}
