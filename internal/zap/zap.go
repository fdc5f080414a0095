// Package zap implements the nip-57 side of the pipeline: validating
// incoming zap requests and building the signed zap receipt published after
// settlement.
package zap

import (
	"encoding/json"
	"errors"
	"fmt"

	goNostr "github.com/nbd-wtf/go-nostr"
)

const (
	KindZapRequest = 9734
	KindZapReceipt = 9735
)

var (
	ErrInvalidRequest = errors.New("invalid zap request")
	ErrSigningFailed  = errors.New("receipt signing failed")
)

// ParseRequest decodes raw as a signed zap request event. The event must be
// kind 9734 and carry a valid signature.
func ParseRequest(raw string) (*goNostr.Event, error) {
	var e goNostr.Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if e.Kind != KindZapRequest {
		return nil, fmt.Errorf("%w: kind %d", ErrInvalidRequest, e.Kind)
	}

	ok, err := e.CheckSignature()
	if err != nil || !ok {
		return nil, fmt.Errorf("%w: bad signature", ErrInvalidRequest)
	}

	return &e, nil
}
