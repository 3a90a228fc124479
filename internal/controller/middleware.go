// internal/controller/middleware.go

// Package controller holds the HTTP layer: static API-key auth and thin
// CRUD handlers over the service layer.
package controller

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tgorbit/tgads-backend/internal/apperr"
	"github.com/tgorbit/tgads-backend/internal/model"
	"github.com/tgorbit/tgads-backend/internal/repository"
)

type contextKey string

const customerKey contextKey = "customer"

// APIKeyAuth authenticates X-API-Key against the customer table. The
// admin key short-circuits the lookup and carries no customer identity.
func APIKeyAuth(customers repository.CustomerRepositoryInterface, adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				http.Error(w, "missing API key", http.StatusUnauthorized)
				return
			}

			if adminKey != "" && key == adminKey {
				next.ServeHTTP(w, r)
				return
			}

			customer, err := customers.GetByAPIKey(key)
			if err != nil {
				http.Error(w, "authentication failed", http.StatusInternalServerError)
				return
			}
			if customer == nil {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), customerKey, customer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CustomerFrom returns the authenticated customer, or nil for admin-key
// requests.
func CustomerFrom(ctx context.Context) *model.Customer {
	c, _ := ctx.Value(customerKey).(*model.Customer)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps business-rule violations to 422 and everything else to
// 500.
func writeError(w http.ResponseWriter, err error) {
	if apperr.IsBusinessRule(err) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
