package zap

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
	goNostr "github.com/nbd-wtf/go-nostr"
)

// receiptCLTVDelta is the min-final-cltv-expiry-delta carried by the receipt
// invoice.
const receiptCLTVDelta = 144

// ReceiptSigner builds signed zap receipt events. The invoice embedded in a
// receipt is signed with a throwaway key and is never payable; nip-57 only
// requires an invoice-shaped payload bound to the request and amount.
type ReceiptSigner struct {
	sk string
	pk string
}

func NewReceiptSigner(sk string) (*ReceiptSigner, error) {
	pk, err := goNostr.GetPublicKey(sk)
	if err != nil {
		return nil, err
	}

	return &ReceiptSigner{sk: sk, pk: pk}, nil
}

// Build constructs the zap receipt for a settled amount. The receipt
// references a fake bolt11 invoice whose payment hash commits to a fresh
// preimage and whose description hash commits to the request serialization.
func (s *ReceiptSigner) Build(request *goNostr.Event, amountMsat uint64) (*goNostr.Event, error) {
	requestJSON, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("%w: serialize request: %v", ErrSigningFailed, err)
	}

	preimage, err := randomBytes32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	paymentSecret, err := randomBytes32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	ephemeralKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	paymentHash := sha256.Sum256(preimage[:])
	descHash := sha256.Sum256(requestJSON)

	invoice, err := zpay32.NewInvoice(
		&chaincfg.MainNetParams,
		paymentHash,
		time.Now(),
		zpay32.Amount(lnwire.MilliSatoshi(amountMsat)),
		zpay32.DescriptionHash(descHash),
		zpay32.PaymentAddr(paymentSecret),
		zpay32.CLTVExpiry(receiptCLTVDelta),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	bolt11, err := invoice.Encode(zpay32.MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			return ecdsa.SignCompact(ephemeralKey, chainhash.HashB(msg), true)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	receipt := &goNostr.Event{
		PubKey:    s.pk,
		CreatedAt: goNostr.Now(),
		Kind:      KindZapReceipt,
		Tags: goNostr.Tags{
			{"bolt11", bolt11},
			{"description", string(requestJSON)},
			{"preimage", hex.EncodeToString(preimage[:])},
		},
	}

	// The receipt points at whoever the request tagged, falling back to
	// the request author. Lookups pin the tag key exactly; GetFirst
	// prefix-matches its last element, so a bare "p" would also hit
	// "preimage"-style keys.
	if p := request.Tags.GetFirst([]string{"p", ""}); p != nil {
		receipt.Tags = append(receipt.Tags, goNostr.Tag{"p", p.Value()})
	} else {
		receipt.Tags = append(receipt.Tags, goNostr.Tag{"p", request.PubKey})
	}
	if e := request.Tags.GetFirst([]string{"e", ""}); e != nil {
		receipt.Tags = append(receipt.Tags, goNostr.Tag{"e", e.Value()})
	}
	if a := request.Tags.GetFirst([]string{"a", ""}); a != nil {
		receipt.Tags = append(receipt.Tags, goNostr.Tag{"a", a.Value()})
	}

	if err := receipt.Sign(s.sk); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	return receipt, nil
}

func randomBytes32() ([32]byte, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return b, err
	}
	return b, nil
}
