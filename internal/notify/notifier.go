// Package notify turns a settled invoice into delivered e-cash: withdraw
// notes from the paying federation, hand them to the recipient over their
// registered channel, and best-effort publish a zap receipt.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"fedipay/internal/fedimint"
	"fedipay/internal/nostr"
	"fedipay/internal/store"
	"fedipay/internal/zap"
)

// NoteValidity bounds how long withdrawn notes stay redeemable before the
// federation reclaims them.
const NoteValidity = 7 * 24 * time.Hour

var ErrWithdrawalFailed = errors.New("note withdrawal failed")

type Notifier struct {
	registry  *fedimint.Registry
	store     store.Store
	publisher nostr.Publisher
	signer    *zap.ReceiptSigner
	channels  map[Channel]Deliverer
	log       *logrus.Logger
}

func NewNotifier(
	registry *fedimint.Registry,
	st store.Store,
	publisher nostr.Publisher,
	signer *zap.ReceiptSigner,
	xmppConfig XMPPConfig,
	log *logrus.Logger,
) *Notifier {
	return &Notifier{
		registry:  registry,
		store:     st,
		publisher: publisher,
		signer:    signer,
		channels: map[Channel]Deliverer{
			ChannelNostr: &NostrChannel{Publisher: publisher},
			ChannelXMPP:  &XMPPChannel{Config: xmppConfig},
		},
		log: log,
	}
}

// Notify runs after an invoice settles. The withdrawal must succeed before
// anything is sent; the receipt broadcast is best-effort and never fails the
// already-delivered funds.
func (n *Notifier) Notify(
	ctx context.Context,
	invoiceID int64,
	amountMsat uint64,
	user *store.User,
) error {
	// Resolve the channel before withdrawing so a misconfigured user
	// doesn't strand notes.
	channel, err := ParseChannel(user.DMType)
	if err != nil {
		return err
	}

	client, err := n.registry.Get(user.FederationID)
	if err != nil {
		return err
	}

	opID, notes, err := client.SpendNotes(ctx, amountMsat, NoteValidity)
	if err != nil {
		// Funds stay at the federation; the invoice remains Settled but
		// undelivered, so this must be loud enough for reconciliation.
		n.log.Errorf("[notify] invoice %d: withdrawal of %d msat failed: %v", invoiceID, amountMsat, err)
		return fmt.Errorf("%w: %v", ErrWithdrawalFailed, err)
	}

	payload := Payload{
		OperationID: opID,
		Amount:      amountMsat,
		Notes:       notes,
	}
	if err := n.channels[channel].Deliver(ctx, user, payload); err != nil {
		n.log.Errorf("[notify] invoice %d: delivery over %q failed, notes unredeemed: %v", invoiceID, user.DMType, err)
		return err
	}

	n.log.Infof("[notify] invoice %d: sent %d msat in notes to %s via %s", invoiceID, amountMsat, user.Name, user.DMType)

	n.broadcastReceipt(ctx, invoiceID, amountMsat)

	return nil
}

// broadcastReceipt publishes the zap receipt if the invoice carried a zap
// request. Failures are logged only.
func (n *Notifier) broadcastReceipt(ctx context.Context, invoiceID int64, amountMsat uint64) {
	row, err := n.store.GetZap(ctx, invoiceID)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		n.log.Errorf("[notify] invoice %d: read zap request: %v", invoiceID, err)
		return
	}

	request, err := zap.ParseRequest(row.Request)
	if err != nil {
		n.log.Errorf("[notify] invoice %d: stored zap request unparseable: %v", invoiceID, err)
		return
	}

	receipt, err := n.signer.Build(request, amountMsat)
	if err != nil {
		n.log.Errorf("[notify] invoice %d: build zap receipt: %v", invoiceID, err)
		return
	}

	if err := n.publisher.Publish(ctx, *receipt); err != nil {
		n.log.Errorf("[notify] invoice %d: broadcast zap receipt: %v", invoiceID, err)
		return
	}

	if err := n.store.SetZapEventID(ctx, invoiceID, receipt.ID); err != nil {
		n.log.Errorf("[notify] invoice %d: persist zap receipt id: %v", invoiceID, err)
		return
	}

	n.log.Infof("[notify] invoice %d: broadcasted zap receipt %s", invoiceID, receipt.ID)
}
