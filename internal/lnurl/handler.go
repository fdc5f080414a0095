// Package lnurl serves the LNURL-pay surface: the well-known descriptor, the
// invoice-issuing callback and payment verification.
package lnurl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"fedipay/internal/fedimint"
	"fedipay/internal/store"
	"fedipay/internal/zap"
)

const invoiceDescription = "lnurl-pay invoice"

// Config is the handler's slice of the service configuration.
type Config struct {
	Domain          string
	Port            int
	MinSendableMsat uint64
	MaxSendableMsat uint64
	NostrPubkey     string
}

type Handler struct {
	cfg        Config
	store      store.Store
	registry   *fedimint.Registry
	supervisor *Supervisor
	log        *logrus.Logger
}

func NewHandler(
	cfg Config,
	st store.Store,
	registry *fedimint.Registry,
	supervisor *Supervisor,
	log *logrus.Logger,
) *Handler {
	return &Handler{
		cfg:        cfg,
		store:      st,
		registry:   registry,
		supervisor: supervisor,
		log:        log,
	}
}

// Routes mounts the LNURL endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/.well-known/lnurlp/{username}", h.handleWellKnown)
	r.Get("/lnurlp/{username}/callback", h.handleCallback)
	r.Get("/lnurlp/{username}/verify/{operationId}", h.handleVerify)
	return r
}

func (h *Handler) handleWellKnown(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.store.GetUserByName(r.Context(), username)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown user")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	metadata, _ := json.Marshal([][]string{
		{"text/identifier", fmt.Sprintf("%s@%s", user.Name, h.cfg.Domain)},
		{"text/plain", fmt.Sprintf("Sats for %s", user.Name)},
	})

	writeJSON(w, http.StatusOK, WellKnownResponse{
		Status:      StatusOK,
		Callback:    fmt.Sprintf("http://%s:%d/lnurlp/%s/callback", h.cfg.Domain, h.cfg.Port, user.Name),
		MinSendable: h.cfg.MinSendableMsat,
		MaxSendable: h.cfg.MaxSendableMsat,
		Metadata:    string(metadata),
		Tag:         "payRequest",
		NostrPubkey: h.cfg.NostrPubkey,
		AllowsNostr: h.cfg.NostrPubkey != "",
	})
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := chi.URLParam(r, "username")
	h.log.Infof("[lnurl] callback for %s", username)

	amount, err := strconv.ParseUint(r.URL.Query().Get("amount"), 10, 64)
	if err != nil || amount < MinAmountMsat {
		writeError(w, http.StatusBadRequest, "amount below minimum")
		return
	}

	// The zap request, if supplied, must be well formed before anything is
	// created for it.
	zapRequest := r.URL.Query().Get("nostr")
	if zapRequest != "" {
		if _, err := zap.ParseRequest(zapRequest); err != nil {
			writeError(w, http.StatusBadRequest, "invalid zap request")
			return
		}
	}

	user, err := h.store.GetUserByName(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "unknown user")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	client, err := h.registry.Get(user.FederationID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown federation")
		return
	}

	opID, bolt11, err := client.CreateInvoice(ctx, amount, invoiceDescription)
	if err != nil {
		h.log.Errorf("[lnurl] create invoice for %s: %v", username, err)
		writeError(w, http.StatusInternalServerError, "invoice creation failed")
		return
	}

	invoiceID, err := h.store.CreateInvoice(ctx, &store.Invoice{
		OperationID:  opID,
		FederationID: user.FederationID,
		UserID:       user.ID,
		AmountMsat:   amount,
		Bolt11:       bolt11,
	})
	if err != nil {
		h.log.Errorf("[lnurl] persist invoice %s: %v", opID, err)
		writeError(w, http.StatusInternalServerError, "invoice persistence failed")
		return
	}

	if zapRequest != "" {
		err := h.store.CreateZap(ctx, &store.Zap{
			InvoiceID: invoiceID,
			Request:   zapRequest,
		})
		if err != nil {
			h.log.Errorf("[lnurl] persist zap request for invoice %d: %v", invoiceID, err)
			writeError(w, http.StatusInternalServerError, "zap persistence failed")
			return
		}
	}

	// A just-created operation always has a lifecycle stream; losing it
	// here means the invoice could never be driven to a terminal state.
	updates, err := client.SubscribeReceive(context.Background(), opID)
	if err != nil {
		h.log.Errorf("[lnurl] subscribe to %s: %v", opID, err)
		writeError(w, http.StatusInternalServerError, "subscription failed")
		return
	}

	h.supervisor.Watch(invoiceID, user, updates)

	writeJSON(w, http.StatusOK, CallbackResponse{
		Status: StatusOK,
		Pr:     bolt11,
		Verify: fmt.Sprintf("http://%s:%d/lnurlp/%s/verify/%s", h.cfg.Domain, h.cfg.Port, username, opID),
		Routes: []string{},
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	opID := chi.URLParam(r, "operationId")

	invoice, err := h.store.GetInvoiceByOperationID(r.Context(), opID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown invoice")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, VerifyResponse{
		Status:   StatusOK,
		Settled:  invoice.State == store.InvoiceStateSettled,
		Preimage: "",
		Pr:       invoice.Bolt11,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, errorResponse{Status: StatusError, Reason: reason})
}
