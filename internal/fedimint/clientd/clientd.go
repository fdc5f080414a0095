// Package clientd implements fedimint.Client against the fedimint-clientd
// HTTP gateway.
package clientd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fedipay/internal/fedimint"
)

type client struct {
	baseURL      string
	password     string
	federationID string
	http         *http.Client
	log          *logrus.Logger
}

type createInvoiceRequest struct {
	AmountMsat   uint64 `json:"amountMsat"`
	Description  string `json:"description"`
	FederationID string `json:"federationId"`
	ExternalID   string `json:"externalId,omitempty"`
}

type createInvoiceResponse struct {
	OperationID string `json:"operationId"`
	Invoice     string `json:"invoice"`
}

type awaitInvoiceRequest struct {
	OperationID  string `json:"operationId"`
	FederationID string `json:"federationId"`
}

type awaitInvoiceResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type spendNotesRequest struct {
	AmountMsat   uint64 `json:"amountMsat"`
	Timeout      uint64 `json:"timeout"` // seconds
	AllowOverpay bool   `json:"allowOverpay"`
	FederationID string `json:"federationId"`
}

type spendNotesResponse struct {
	OperationID string `json:"operation"`
	Notes       string `json:"notes"`
}

func New(
	baseURL string,
	password string,
	federationID string,
	log *logrus.Logger,
) fedimint.Client {
	return &client{
		baseURL:      baseURL,
		password:     password,
		federationID: federationID,
		http:         &http.Client{Timeout: 30 * time.Second},
		log:          log,
	}
}

func (c *client) CreateInvoice(
	ctx context.Context,
	amountMsat uint64,
	description string,
) (string, string, error) {
	res := &createInvoiceResponse{}
	err := c.post(ctx, "/v2/ln/invoice", &createInvoiceRequest{
		AmountMsat:   amountMsat,
		Description:  description,
		FederationID: c.federationID,
		ExternalID:   uuid.NewString(),
	}, res)
	if err != nil {
		return "", "", err
	}

	return res.OperationID, res.Invoice, nil
}

func (c *client) SubscribeReceive(
	ctx context.Context,
	opID string,
) (<-chan fedimint.ReceiveUpdate, error) {
	updates := make(chan fedimint.ReceiveUpdate)

	go func() {
		defer close(updates)

		for {
			res := &awaitInvoiceResponse{}
			err := c.post(ctx, "/v2/ln/await-invoice", &awaitInvoiceRequest{
				OperationID:  opID,
				FederationID: c.federationID,
			}, res)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.log.Errorf("[clientd] await invoice %s: %v", opID, err)
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}

			update, terminal := updateFromStatus(res)
			select {
			case updates <- update:
			case <-ctx.Done():
				return
			}
			if terminal {
				return
			}
		}
	}()

	return updates, nil
}

func (c *client) SpendNotes(
	ctx context.Context,
	amountMsat uint64,
	validity time.Duration,
) (string, string, error) {
	res := &spendNotesResponse{}
	err := c.post(ctx, "/v2/mint/spend", &spendNotesRequest{
		AmountMsat:   amountMsat,
		Timeout:      uint64(validity.Seconds()),
		AllowOverpay: false,
		FederationID: c.federationID,
	}, res)
	if err != nil {
		return "", "", err
	}

	return res.OperationID, res.Notes, nil
}

func updateFromStatus(res *awaitInvoiceResponse) (fedimint.ReceiveUpdate, bool) {
	switch res.Status {
	case "claimed":
		return fedimint.ReceiveUpdate{State: fedimint.ReceiveClaimed}, true
	case "canceled":
		return fedimint.ReceiveUpdate{
			State:  fedimint.ReceiveCanceled,
			Reason: res.Reason,
		}, true
	case "funded":
		return fedimint.ReceiveUpdate{State: fedimint.ReceiveFunded}, false
	case "awaiting-funds":
		return fedimint.ReceiveUpdate{State: fedimint.ReceiveAwaitingFunds}, false
	case "waiting-for-payment":
		return fedimint.ReceiveUpdate{State: fedimint.ReceiveWaitingForPayment}, false
	default:
		return fedimint.ReceiveUpdate{State: fedimint.ReceiveCreated}, false
	}
}

func (c *client) post(ctx context.Context, path string, body any, target any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+path,
		bytes.NewReader(payload),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.password)

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("clientd %s: status %d: %s", path, res.StatusCode, b)
	}

	return json.NewDecoder(res.Body).Decode(target)
}
