// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tgorbit/tgads-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CustomerID      uuid.UUID   `json:"customer_id"`
		Name            string      `json:"name"`
		MessageTemplate string      `json:"message_template"`
		IntervalMinutes int         `json:"interval_minutes"`
		StartAt         *time.Time  `json:"start_at"`
		EndAt           *time.Time  `json:"end_at"`
		GroupIDs        []uuid.UUID `json:"group_ids"`
		AccountIDs      []uuid.UUID `json:"account_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	// customer-key requests may only create campaigns for themselves
	if customer := CustomerFrom(r.Context()); customer != nil {
		body.CustomerID = customer.ID
	}

	campaign, err := c.CampaignService.CreateCampaign(service.CreateCampaignInput{
		CustomerID:      body.CustomerID,
		Name:            body.Name,
		MessageTemplate: body.MessageTemplate,
		IntervalMinutes: body.IntervalMinutes,
		StartAt:         body.StartAt,
		EndAt:           body.EndAt,
		GroupIDs:        body.GroupIDs,
		AccountIDs:      body.AccountIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	customer := CustomerFrom(r.Context())
	if customer == nil {
		http.Error(w, "customer API key required", http.StatusForbidden)
		return
	}

	campaigns, err := c.CampaignService.ListCampaigns(customer.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"campaigns": campaigns})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.GetCampaign(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := c.CampaignService.SetStatus(id, body.Status); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": id.String(), "status": body.Status})
}

func (c *CampaignController) AttachMarketLists(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		MarketListIDs []uuid.UUID `json:"market_list_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.GetCampaign(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	// ownership scopes the lookup, so cross-customer lists are dropped
	if customer := CustomerFrom(r.Context()); customer != nil && customer.ID != campaign.CustomerID {
		http.Error(w, "campaign not found", http.StatusNotFound)
		return
	}

	if err := c.CampaignService.AttachMarketLists(campaign.ID, campaign.CustomerID, body.MarketListIDs); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"campaign_id":     campaign.ID.String(),
		"market_list_ids": body.MarketListIDs,
	})
}

func (c *CampaignController) Run(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.GetCampaign(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if customer := CustomerFrom(r.Context()); customer != nil && customer.ID != campaign.CustomerID {
		http.Error(w, "campaign not found", http.StatusNotFound)
		return
	}

	if err := c.CampaignService.TriggerRun(r.Context(), campaign.ID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "triggered"})
}

func (c *CampaignController) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	logs, total, err := c.CampaignService.CampaignHistory(id, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  logs,
		"total": total,
	})
}
