// Package nostr wraps the relay pool the service publishes through: receipt
// events and nip-04 direct messages, all signed with the service identity key.
package nostr

import (
	"context"
	"errors"

	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
	"github.com/sirupsen/logrus"
)

const kindEncryptedDirectMessage = 4

// Publisher is the surface the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, e goNostr.Event) error
	SendDirectMessage(ctx context.Context, recipientPubkey string, plaintext string) (string, error)
}

type Service struct {
	sk     string
	pk     string
	relays []*goNostr.Relay
	log    *logrus.Logger
}

// NewService connects to every relay URL. At least one connection must
// succeed.
func NewService(
	ctx context.Context,
	sk string,
	relayURLs []string,
	log *logrus.Logger,
) (*Service, error) {
	if len(relayURLs) == 0 {
		return nil, errors.New("must provide at least one relay")
	}

	pk, err := goNostr.GetPublicKey(sk)
	if err != nil {
		return nil, err
	}

	relays := make([]*goNostr.Relay, 0, len(relayURLs))
	for i := range relayURLs {
		relay, err := goNostr.RelayConnect(ctx, relayURLs[i])
		if err != nil {
			log.Errorf("[nostr] connect %s: %v", relayURLs[i], err)
			continue
		}
		relays = append(relays, relay)
	}
	if len(relays) == 0 {
		return nil, errors.New("could not connect to any relay")
	}

	return &Service{
		sk:     sk,
		pk:     pk,
		relays: relays,
		log:    log,
	}, nil
}

// Pubkey returns the service identity public key, hex encoded.
func (s *Service) Pubkey() string {
	return s.pk
}

// Publish sends the event to every relay. It succeeds if at least one relay
// accepted it; per-relay failures are logged.
func (s *Service) Publish(ctx context.Context, e goNostr.Event) error {
	var published bool
	for i := range s.relays {
		if err := s.relays[i].Publish(ctx, e); err != nil {
			s.log.Errorf("[nostr] publish to %s: %v", s.relays[i].URL, err)
			continue
		}
		published = true
	}

	if !published {
		return errors.New("event not accepted by any relay")
	}
	return nil
}

// SendDirectMessage nip04-encrypts plaintext to the recipient, signs a kind-4
// event with the service key and publishes it. Returns the event id.
func (s *Service) SendDirectMessage(
	ctx context.Context,
	recipientPubkey string,
	plaintext string,
) (string, error) {
	shared, err := nip04.ComputeSharedSecret(recipientPubkey, s.sk)
	if err != nil {
		return "", err
	}

	content, err := nip04.Encrypt(plaintext, shared)
	if err != nil {
		return "", err
	}

	dm := goNostr.Event{
		PubKey:    s.pk,
		CreatedAt: goNostr.Now(),
		Kind:      kindEncryptedDirectMessage,
		Tags: goNostr.Tags{
			{"p", recipientPubkey},
		},
		Content: content,
	}
	if err := dm.Sign(s.sk); err != nil {
		return "", err
	}

	if err := s.Publish(ctx, dm); err != nil {
		return "", err
	}

	return dm.ID, nil
}
