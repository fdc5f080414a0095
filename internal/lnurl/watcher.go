package lnurl

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fedipay/internal/fedimint"
	"fedipay/internal/store"
)

// Notifier is invoked once per settled invoice.
type Notifier interface {
	Notify(ctx context.Context, invoiceID int64, amountMsat uint64, user *store.User) error
}

const stateWriteAttempts = 3

// Supervisor owns the per-invoice watcher goroutines. Watchers have no
// cancellation; they run until their stream delivers a terminal update, and
// shutdown may abandon them because terminal state is persisted before any
// delivery is attempted.
type Supervisor struct {
	store    store.Store
	notifier Notifier
	log      *logrus.Logger

	mu       sync.Mutex
	watching map[int64]struct{}
	wg       sync.WaitGroup
}

func NewSupervisor(st store.Store, notifier Notifier, log *logrus.Logger) *Supervisor {
	return &Supervisor{
		store:    st,
		notifier: notifier,
		log:      log,
		watching: make(map[int64]struct{}),
	}
}

// Watch spawns the watcher for one invoice. The updates channel must be the
// invoice's own lifecycle stream and must not have any other consumer.
func (s *Supervisor) Watch(invoiceID int64, user *store.User, updates <-chan fedimint.ReceiveUpdate) {
	s.mu.Lock()
	s.watching[invoiceID] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.watching, invoiceID)
			s.mu.Unlock()
		}()

		s.run(invoiceID, user, updates)
	}()
}

// Watching reports how many invoices currently have a live watcher.
func (s *Supervisor) Watching() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watching)
}

// Wait blocks until every spawned watcher has finished.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) run(invoiceID int64, user *store.User, updates <-chan fedimint.ReceiveUpdate) {
	ctx := context.Background()

	for update := range updates {
		switch update.State {
		case fedimint.ReceiveCanceled:
			s.log.Infof("[watcher] invoice %d canceled: %s", invoiceID, update.Reason)
			if _, err := s.setStateWithRetry(ctx, invoiceID, store.InvoiceStateCancelled); err != nil &&
				!errors.Is(err, store.ErrAlreadyTerminal) {
				s.log.Errorf("[watcher] invoice %d: record cancellation: %v", invoiceID, err)
			}
			return

		case fedimint.ReceiveClaimed:
			invoice, err := s.setStateWithRetry(ctx, invoiceID, store.InvoiceStateSettled)
			if errors.Is(err, store.ErrAlreadyTerminal) {
				// A previous terminal update won; the recipient was
				// already notified (or never will be).
				return
			}
			if err != nil {
				// Settlement truth was never recorded, so notifying
				// would risk paying out against an unknown state.
				s.log.Errorf("[watcher] invoice %d: record settlement: %v", invoiceID, err)
				return
			}

			s.log.Infof("[watcher] invoice %d settled for %d msat", invoiceID, invoice.AmountMsat)

			if err := s.notifier.Notify(ctx, invoiceID, invoice.AmountMsat, user); err != nil {
				// The invoice stays Settled; delivery failures are a
				// reconciliation concern, not a state rollback.
				s.log.Errorf("[watcher] invoice %d: notify: %v", invoiceID, err)
			}
			return

		default:
			// Intermediate state, keep consuming.
		}
	}
}

func (s *Supervisor) setStateWithRetry(
	ctx context.Context,
	invoiceID int64,
	state store.InvoiceState,
) (*store.Invoice, error) {
	var lastErr error
	for attempt := 0; attempt < stateWriteAttempts; attempt++ {
		invoice, err := s.store.SetInvoiceState(ctx, invoiceID, state)
		if err == nil || errors.Is(err, store.ErrAlreadyTerminal) {
			return invoice, err
		}
		lastErr = err
		time.Sleep(time.Duration(attempt+1) * 250 * time.Millisecond)
	}
	return nil, lastErr
}
