package lnurl

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"fedipay/internal/fedimint"
	"fedipay/internal/store"
)

func newWatcherEnv(t *testing.T) (*Supervisor, *recordingNotifier, *store.SQLiteStore, *store.User, int64) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "fedipay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	user := &store.User{Name: "alice", Pubkey: "deadbeef", FederationID: "fed-1", DMType: "nostr"}
	user.ID, err = st.CreateUser(ctx, user)
	require.NoError(t, err)

	invoiceID, err := st.CreateInvoice(ctx, &store.Invoice{
		OperationID: "op-1", FederationID: "fed-1", UserID: user.ID,
		AmountMsat: 2000, Bolt11: "lnbc1fake",
	})
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	return NewSupervisor(st, notifier, testLogger()), notifier, st, user, invoiceID
}

func stream(updates ...fedimint.ReceiveUpdate) <-chan fedimint.ReceiveUpdate {
	ch := make(chan fedimint.ReceiveUpdate, len(updates))
	for _, u := range updates {
		ch <- u
	}
	close(ch)
	return ch
}

func TestWatcherSettles(t *testing.T) {
	sup, notifier, st, user, invoiceID := newWatcherEnv(t)

	sup.Watch(invoiceID, user, stream(
		fedimint.ReceiveUpdate{State: fedimint.ReceiveCreated},
		fedimint.ReceiveUpdate{State: fedimint.ReceiveFunded},
		fedimint.ReceiveUpdate{State: fedimint.ReceiveClaimed},
	))
	sup.Wait()

	inv, err := st.GetInvoice(context.Background(), invoiceID)
	require.NoError(t, err)
	require.Equal(t, store.InvoiceStateSettled, inv.State)
	require.Equal(t, 1, notifier.callCount())
	require.Zero(t, sup.Watching())
}

func TestWatcherCancels(t *testing.T) {
	sup, notifier, st, user, invoiceID := newWatcherEnv(t)

	sup.Watch(invoiceID, user, stream(
		fedimint.ReceiveUpdate{State: fedimint.ReceiveCanceled, Reason: "expired"},
	))
	sup.Wait()

	inv, err := st.GetInvoice(context.Background(), invoiceID)
	require.NoError(t, err)
	require.Equal(t, store.InvoiceStateCancelled, inv.State)
	require.Zero(t, notifier.callCount())
}

func TestWatcherStopsAfterFirstTerminal(t *testing.T) {
	sup, notifier, st, user, invoiceID := newWatcherEnv(t)

	// A second terminal update is buffered but must never be consumed.
	sup.Watch(invoiceID, user, stream(
		fedimint.ReceiveUpdate{State: fedimint.ReceiveClaimed},
		fedimint.ReceiveUpdate{State: fedimint.ReceiveCanceled, Reason: "late"},
	))
	sup.Wait()

	inv, err := st.GetInvoice(context.Background(), invoiceID)
	require.NoError(t, err)
	require.Equal(t, store.InvoiceStateSettled, inv.State)
	require.Equal(t, 1, notifier.callCount())
}

func TestWatcherTerminalReplayIsNoop(t *testing.T) {
	sup, notifier, st, user, invoiceID := newWatcherEnv(t)

	// The invoice already reached a terminal state through another path.
	_, err := st.SetInvoiceState(context.Background(), invoiceID, store.InvoiceStateSettled)
	require.NoError(t, err)

	sup.Watch(invoiceID, user, stream(
		fedimint.ReceiveUpdate{State: fedimint.ReceiveClaimed},
	))
	sup.Wait()

	// No second notification, no duplicate state write.
	require.Zero(t, notifier.callCount())

	inv, err := st.GetInvoice(context.Background(), invoiceID)
	require.NoError(t, err)
	require.Equal(t, store.InvoiceStateSettled, inv.State)
}

func TestWatcherStreamEndsWithoutTerminal(t *testing.T) {
	sup, notifier, st, user, invoiceID := newWatcherEnv(t)

	sup.Watch(invoiceID, user, stream(
		fedimint.ReceiveUpdate{State: fedimint.ReceiveWaitingForPayment},
	))
	sup.Wait()

	// The collaborator guarantees a terminal event; if the stream dies
	// early the invoice simply stays Created.
	inv, err := st.GetInvoice(context.Background(), invoiceID)
	require.NoError(t, err)
	require.Equal(t, store.InvoiceStateCreated, inv.State)
	require.Zero(t, notifier.callCount())
}
