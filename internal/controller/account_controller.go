// internal/controller/account_controller.go
package controller

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tgorbit/tgads-backend/internal/service"
)

type AccountController struct {
	AccountService *service.AccountService
}

func (c *AccountController) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OwnerCustomerID uuid.UUID `json:"owner_customer_id"`
		PhoneNumber     string    `json:"phone_number"`
		SessionName     string    `json:"session_name"`
		APIID           int       `json:"api_id"`
		APIHash         string    `json:"api_hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if customer := CustomerFrom(r.Context()); customer != nil {
		body.OwnerCustomerID = customer.ID
	}

	account, err := c.AccountService.CreateAccount(service.CreateAccountInput{
		OwnerCustomerID: body.OwnerCustomerID,
		PhoneNumber:     body.PhoneNumber,
		SessionName:     body.SessionName,
		APIID:           body.APIID,
		APIHash:         body.APIHash,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

func (c *AccountController) ListAccounts(w http.ResponseWriter, r *http.Request) {
	customer := CustomerFrom(r.Context())
	if customer == nil {
		http.Error(w, "customer API key required", http.StatusForbidden)
		return
	}

	accounts, err := c.AccountService.ListAccounts(customer.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (c *AccountController) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := c.AccountService.SetStatus(r.Context(), id, body.Status); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": id.String(), "status": body.Status})
}

func (c *AccountController) Health(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return
	}

	report, err := c.AccountService.AccountHealth(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
