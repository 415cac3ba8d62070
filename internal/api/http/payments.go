package http

import (
	"net/http"

	"library-lending/internal/payment"
	"library-lending/internal/service"
)

type PaymentHandler struct {
	payment        service.PaymentService
	lending        service.LendingService
	publishableKey string
}

func NewPaymentHandler(payment service.PaymentService, lending service.LendingService, publishableKey string) *PaymentHandler {
	return &PaymentHandler{payment: payment, lending: lending, publishableKey: publishableKey}
}

type intentResponse struct {
	*payment.Intent
	PublishableKey string `json:"publishable_key,omitempty"`
}

type confirmRequest struct {
	IntentRef string `json:"intent_ref"`
}

// ownsItem reports whether the caller may pay for the item
func (h *PaymentHandler) ownsItem(r *http.Request, itemID int32) (bool, error) {
	if isLibrarian(r.Context()) {
		return true, nil
	}
	details, err := h.lending.GetItemDetails(r.Context(), itemID)
	if err != nil {
		return false, err
	}
	holder := details.Item.HolderID
	return holder == nil || *holder == callerID(r.Context()), nil
}

func (h *PaymentHandler) CreateItemIntent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok, err := h.ownsItem(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeMessage(w, http.StatusForbidden, "item is held by another person")
		return
	}

	intent, err := h.payment.CreateIntent(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, intentResponse{Intent: intent, PublishableKey: h.publishableKey})
}

// ConfirmItem settles the caller's debt on one item
func (h *PaymentHandler) ConfirmItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req confirmRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.IntentRef == "" {
		writeMessage(w, http.StatusBadRequest, "intent_ref is required")
		return
	}

	entry, err := h.payment.Confirm(r.Context(), req.IntentRef, callerID(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *PaymentHandler) CreateBatchIntent(w http.ResponseWriter, r *http.Request) {
	intent, err := h.payment.CreateIntentForBatch(r.Context(), callerID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, intentResponse{Intent: intent, PublishableKey: h.publishableKey})
}

// ConfirmBatch settles every unsettled item the caller holds
func (h *PaymentHandler) ConfirmBatch(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.IntentRef == "" {
		writeMessage(w, http.StatusBadRequest, "intent_ref is required")
		return
	}

	entry, err := h.payment.ConfirmBatch(r.Context(), req.IntentRef, callerID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
