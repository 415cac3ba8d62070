package http

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"library-lending/internal/domain"
	"library-lending/internal/service"
)

type ItemHandler struct {
	lending service.LendingService
}

func NewItemHandler(lending service.LendingService) *ItemHandler {
	return &ItemHandler{lending: lending}
}

type createItemRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Year   int32  `json:"year"`
}

type personRequest struct {
	PersonID int32 `json:"person_id"`
}

type listItemsResponse struct {
	Items []domain.Item `json:"items"`
	Total int32         `json:"total"`
	Page  int32         `json:"page"`
}

type debtResponse struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.lending.CreateItem(r.Context(), req.Title, req.Author, req.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *ItemHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	page := queryInt32(r, "page", 1)
	items, total, err := h.lending.ListAvailable(r.Context(), page, queryInt32(r, "page_size", 20))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Item{}
	}
	writeJSON(w, http.StatusOK, listItemsResponse{Items: items, Total: total, Page: page})
}

func (h *ItemHandler) SearchByTitle(w http.ResponseWriter, r *http.Request) {
	items, err := h.lending.SearchByTitle(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) GetItemDetails(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	details, err := h.lending.GetItemDetails(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *ItemHandler) GetItemDebt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	debt, err := h.lending.CurrentDebt(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, debtResponse{Amount: debt})
}

func (h *ItemHandler) GetItemHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, err := h.lending.ItemHistory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []domain.BorrowRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *ItemHandler) AssignItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req personRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.lending.Assign(r.Context(), id, req.PersonID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) ReleaseItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	record, err := h.lending.Release(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// ReserveItem reserves the item for the caller
func (h *ItemHandler) ReserveItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.lending.Reserve(r.Context(), id, callerID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// CancelReservation drops the reservation. Only the reserver or a librarian may do so.
func (h *ItemHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var reserver *int32
	if !isLibrarian(r.Context()) {
		caller := callerID(r.Context())
		reserver = &caller
	}

	item, err := h.lending.CancelReservation(r.Context(), id, reserver)
	if errors.Is(err, domain.ErrNotReserver) {
		writeMessage(w, http.StatusForbidden, "reservation belongs to another person")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.lending.UpdateItem(r.Context(), id, req.Title, req.Author, req.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.lending.DeleteItem(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
