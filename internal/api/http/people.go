package http

import (
	"net/http"

	"library-lending/internal/domain"
	"library-lending/internal/service"
)

type PeopleHandler struct {
	people  service.PeopleService
	lending service.LendingService
	payment service.PaymentService
}

func NewPeopleHandler(people service.PeopleService, lending service.LendingService, payment service.PaymentService) *PeopleHandler {
	return &PeopleHandler{people: people, lending: lending, payment: payment}
}

type registerPersonRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

func (h *PeopleHandler) RegisterPerson(w http.ResponseWriter, r *http.Request) {
	var req registerPersonRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	person, err := h.people.Register(r.Context(), req.FullName, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, person)
}

func (h *PeopleHandler) GetPerson(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	person, err := h.people.GetPerson(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, person)
}

func (h *PeopleHandler) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req registerPersonRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	person, err := h.people.UpdatePerson(r.Context(), id, req.FullName, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, person)
}

func (h *PeopleHandler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.people.DeletePerson(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PeopleHandler) GetPersonDebt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeDebt(w, r, id)
}

func (h *PeopleHandler) GetMyDebt(w http.ResponseWriter, r *http.Request) {
	h.writeDebt(w, r, callerID(r.Context()))
}

func (h *PeopleHandler) writeDebt(w http.ResponseWriter, r *http.Request, personID int32) {
	total, err := h.lending.TotalDebt(r.Context(), personID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, debtResponse{Amount: total})
}

func (h *PeopleHandler) GetMyHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.people.Holdings(r.Context(), callerID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, holdings)
}

func (h *PeopleHandler) GetMyHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.people.History(r.Context(), callerID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []domain.BorrowRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *PeopleHandler) ListMySettlements(w http.ResponseWriter, r *http.Request) {
	entries, err := h.payment.ListSettlements(r.Context(), callerID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.SettlementEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
