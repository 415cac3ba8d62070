package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"library-lending/internal/security"
	"library-lending/internal/service"
)

// Services bundles the lending core used by the handlers
type Services struct {
	Lending service.LendingService
	Payment service.PaymentService
	People  service.PeopleService
}

// NewRouter registers every named route behind logging and auth middleware.
// publishableKey is returned with payment intents so clients can complete them.
func NewRouter(svc Services, tm security.TokenManager, publishableKey string) *mux.Router {
	items := NewItemHandler(svc.Lending)
	people := NewPeopleHandler(svc.People, svc.Lending, svc.Payment)
	payments := NewPaymentHandler(svc.Payment, svc.Lending, publishableKey)

	r := mux.NewRouter()
	r.Use(LoggingMiddleware, NewAuthMiddleware(tm).Handler)

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet).Name("Health")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/items", items.CreateItem).Methods(http.MethodPost).Name("CreateItem")
	api.HandleFunc("/items", items.ListAvailable).Methods(http.MethodGet).Name("ListAvailable")
	api.HandleFunc("/items/search", items.SearchByTitle).Methods(http.MethodGet).Name("SearchByTitle")
	api.HandleFunc("/items/{id:[0-9]+}", items.GetItemDetails).Methods(http.MethodGet).Name("GetItemDetails")
	api.HandleFunc("/items/{id:[0-9]+}", items.UpdateItem).Methods(http.MethodPut).Name("UpdateItem")
	api.HandleFunc("/items/{id:[0-9]+}", items.DeleteItem).Methods(http.MethodDelete).Name("DeleteItem")
	api.HandleFunc("/items/{id:[0-9]+}/debt", items.GetItemDebt).Methods(http.MethodGet).Name("GetItemDebt")
	api.HandleFunc("/items/{id:[0-9]+}/history", items.GetItemHistory).Methods(http.MethodGet).Name("GetItemHistory")
	api.HandleFunc("/items/{id:[0-9]+}/assign", items.AssignItem).Methods(http.MethodPost).Name("AssignItem")
	api.HandleFunc("/items/{id:[0-9]+}/release", items.ReleaseItem).Methods(http.MethodPost).Name("ReleaseItem")
	api.HandleFunc("/items/{id:[0-9]+}/reservation", items.ReserveItem).Methods(http.MethodPost).Name("ReserveItem")
	api.HandleFunc("/items/{id:[0-9]+}/reservation", items.CancelReservation).Methods(http.MethodDelete).Name("CancelReservation")

	api.HandleFunc("/items/{id:[0-9]+}/payment-intent", payments.CreateItemIntent).Methods(http.MethodPost).Name("CreateItemPaymentIntent")
	api.HandleFunc("/items/{id:[0-9]+}/payment", payments.ConfirmItem).Methods(http.MethodPost).Name("ConfirmItemPayment")
	api.HandleFunc("/me/payment-intent", payments.CreateBatchIntent).Methods(http.MethodPost).Name("CreateBatchPaymentIntent")
	api.HandleFunc("/me/payment", payments.ConfirmBatch).Methods(http.MethodPost).Name("ConfirmBatchPayment")

	api.HandleFunc("/me/holdings", people.GetMyHoldings).Methods(http.MethodGet).Name("GetMyHoldings")
	api.HandleFunc("/me/history", people.GetMyHistory).Methods(http.MethodGet).Name("GetMyHistory")
	api.HandleFunc("/me/debt", people.GetMyDebt).Methods(http.MethodGet).Name("GetMyDebt")
	api.HandleFunc("/me/settlements", people.ListMySettlements).Methods(http.MethodGet).Name("ListMySettlements")

	api.HandleFunc("/people", people.RegisterPerson).Methods(http.MethodPost).Name("RegisterPerson")
	api.HandleFunc("/people/{id:[0-9]+}", people.GetPerson).Methods(http.MethodGet).Name("GetPerson")
	api.HandleFunc("/people/{id:[0-9]+}", people.UpdatePerson).Methods(http.MethodPut).Name("UpdatePerson")
	api.HandleFunc("/people/{id:[0-9]+}", people.DeletePerson).Methods(http.MethodDelete).Name("DeletePerson")
	api.HandleFunc("/people/{id:[0-9]+}/debt", people.GetPersonDebt).Methods(http.MethodGet).Name("GetPersonDebt")

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
