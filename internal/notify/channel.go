package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goXmpp "github.com/mattn/go-xmpp"

	"fedipay/internal/nostr"
	"fedipay/internal/store"
)

var ErrUnsupportedChannel = errors.New("unsupported dm type")

// Channel is the closed set of delivery transports a user can register.
type Channel int

const (
	ChannelNostr Channel = iota
	ChannelXMPP
)

// ParseChannel maps a stored dm_type to a Channel. Unknown values are a
// typed error, never a fallthrough.
func ParseChannel(dmType string) (Channel, error) {
	switch dmType {
	case "nostr":
		return ChannelNostr, nil
	case "xmpp":
		return ChannelXMPP, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedChannel, dmType)
	}
}

// Payload is the value-bearing message sent to the recipient on either
// channel: the spend operation id, the settled amount and the serialized
// e-cash notes.
type Payload struct {
	OperationID string `json:"operationId"`
	Amount      uint64 `json:"amount"`
	Notes       string `json:"notes"`
}

func (p Payload) encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Deliverer sends one payload to one recipient.
type Deliverer interface {
	Deliver(ctx context.Context, user *store.User, payload Payload) error
}

// NostrChannel delivers the payload as a nip-04 direct message to the
// recipient pubkey.
type NostrChannel struct {
	Publisher nostr.Publisher
}

func (c *NostrChannel) Deliver(ctx context.Context, user *store.User, payload Payload) error {
	text, err := payload.encode()
	if err != nil {
		return err
	}

	_, err = c.Publisher.SendDirectMessage(ctx, user.Pubkey, text)
	return err
}

// XMPPConfig holds the account the service sends chat messages from.
type XMPPConfig struct {
	Address    string
	User       string
	Password   string
	ChatServer string
}

// XMPPChannel delivers the payload as a chat message to the address derived
// from the username and the configured chat server. A fresh connection is
// dialed per message.
type XMPPChannel struct {
	Config XMPPConfig
}

func (c *XMPPChannel) Deliver(ctx context.Context, user *store.User, payload Payload) error {
	text, err := payload.encode()
	if err != nil {
		return err
	}

	options := goXmpp.Options{
		Host:     c.Config.Address,
		User:     c.Config.User,
		Password: c.Config.Password,
		NoTLS:    false,
		StartTLS: true,
		Session:  true,
	}

	talk, err := options.NewClient()
	if err != nil {
		return err
	}
	defer talk.Close()

	_, err = talk.Send(goXmpp.Chat{
		Remote: fmt.Sprintf("%s@%s", user.Name, c.Config.ChatServer),
		Type:   "chat",
		Text:   text,
	})
	return err
}
