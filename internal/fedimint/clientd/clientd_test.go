package clientd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"fedipay/internal/fedimint"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestCreateInvoice(t *testing.T) {
	var gotReq createInvoiceRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/ln/invoice", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(createInvoiceResponse{
			OperationID: "op-1",
			Invoice:     "lnbc20n1...",
		})
	}))
	defer server.Close()

	c := New(server.URL, "secret", "fed-1", testLogger())

	opID, bolt11, err := c.CreateInvoice(context.Background(), 2000, "lnurl-pay invoice")
	require.NoError(t, err)
	require.Equal(t, "op-1", opID)
	require.Equal(t, "lnbc20n1...", bolt11)

	require.EqualValues(t, 2000, gotReq.AmountMsat)
	require.Equal(t, "fed-1", gotReq.FederationID)
	require.NotEmpty(t, gotReq.ExternalID)
}

func TestCreateInvoiceGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no gateway available", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(server.URL, "secret", "fed-1", testLogger())

	_, _, err := c.CreateInvoice(context.Background(), 2000, "x")
	require.ErrorContains(t, err, "status 500")
}

func TestSubscribeReceiveClaimed(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/ln/await-invoice", r.URL.Path)
		// First poll reports an intermediate state, second the claim.
		if calls.Add(1) == 1 {
			json.NewEncoder(w).Encode(awaitInvoiceResponse{Status: "waiting-for-payment"})
			return
		}
		json.NewEncoder(w).Encode(awaitInvoiceResponse{Status: "claimed"})
	}))
	defer server.Close()

	c := New(server.URL, "secret", "fed-1", testLogger())

	updates, err := c.SubscribeReceive(context.Background(), "op-1")
	require.NoError(t, err)

	first := <-updates
	require.Equal(t, fedimint.ReceiveWaitingForPayment, first.State)

	second := <-updates
	require.Equal(t, fedimint.ReceiveClaimed, second.State)

	_, open := <-updates
	require.False(t, open)
}

func TestSubscribeReceiveCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(awaitInvoiceResponse{Status: "canceled", Reason: "expired"})
	}))
	defer server.Close()

	c := New(server.URL, "secret", "fed-1", testLogger())

	updates, err := c.SubscribeReceive(context.Background(), "op-1")
	require.NoError(t, err)

	update := <-updates
	require.Equal(t, fedimint.ReceiveCanceled, update.State)
	require.Equal(t, "expired", update.Reason)

	_, open := <-updates
	require.False(t, open)
}

func TestSpendNotes(t *testing.T) {
	var gotReq spendNotesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/mint/spend", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(spendNotesResponse{
			OperationID: "op-spend",
			Notes:       "notesAQID...",
		})
	}))
	defer server.Close()

	c := New(server.URL, "secret", "fed-1", testLogger())

	opID, notes, err := c.SpendNotes(context.Background(), 2000, 7*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, "op-spend", opID)
	require.Equal(t, "notesAQID...", notes)

	require.EqualValues(t, 2000, gotReq.AmountMsat)
	require.EqualValues(t, 604800, gotReq.Timeout)
	require.False(t, gotReq.AllowOverpay)
}
