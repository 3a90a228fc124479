// internal/controller/market_list_controller.go
package controller

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tgorbit/tgads-backend/internal/model"
	"github.com/tgorbit/tgads-backend/internal/repository"
)

type MarketListController struct {
	MarketListRepo repository.MarketListRepositoryInterface
	GroupRepo      repository.GroupRepositoryInterface
}

// loadOwnedList resolves the list and enforces customer scoping. Admin
// keys may touch any list.
func (c *MarketListController) loadOwnedList(w http.ResponseWriter, r *http.Request) *model.MarketList {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid market list id", http.StatusBadRequest)
		return nil
	}

	list, err := c.MarketListRepo.GetByID(id)
	if err != nil {
		writeError(w, err)
		return nil
	}
	if list == nil {
		http.Error(w, "market list not found", http.StatusNotFound)
		return nil
	}

	if customer := CustomerFrom(r.Context()); customer != nil && customer.ID != list.CustomerID {
		http.Error(w, "market list not found", http.StatusNotFound)
		return nil
	}
	return list
}

func (c *MarketListController) CreateMarketList(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CustomerID uuid.UUID `json:"customer_id"`
		Name       string    `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	// customer-key requests may only create lists for themselves
	if customer := CustomerFrom(r.Context()); customer != nil {
		body.CustomerID = customer.ID
	}

	list := &model.MarketList{
		CustomerID: body.CustomerID,
		Name:       body.Name,
	}
	if err := c.MarketListRepo.Create(list); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, list)
}

func (c *MarketListController) ListMarketLists(w http.ResponseWriter, r *http.Request) {
	customer := CustomerFrom(r.Context())
	if customer == nil {
		http.Error(w, "customer API key required", http.StatusForbidden)
		return
	}

	lists, err := c.MarketListRepo.ListByCustomer(customer.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"market_lists": lists})
}

func (c *MarketListController) AddGroup(w http.ResponseWriter, r *http.Request) {
	list := c.loadOwnedList(w, r)
	if list == nil {
		return
	}

	var body struct {
		GroupID uuid.UUID `json:"group_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	group, err := c.GroupRepo.GetByID(body.GroupID)
	if err != nil {
		writeError(w, err)
		return
	}
	if group == nil {
		http.Error(w, "group not found", http.StatusNotFound)
		return
	}

	if err := c.MarketListRepo.AddGroup(list.ID, group.ID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"market_list_id": list.ID.String(), "group_id": group.ID.String()})
}

func (c *MarketListController) RemoveGroup(w http.ResponseWriter, r *http.Request) {
	list := c.loadOwnedList(w, r)
	if list == nil {
		return
	}

	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		http.Error(w, "invalid group id", http.StatusBadRequest)
		return
	}

	if err := c.MarketListRepo.RemoveGroup(list.ID, groupID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *MarketListController) ListGroups(w http.ResponseWriter, r *http.Request) {
	list := c.loadOwnedList(w, r)
	if list == nil {
		return
	}

	groups, err := c.MarketListRepo.GroupsFor(list.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}
