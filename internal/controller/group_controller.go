// internal/controller/group_controller.go
package controller

import (
	"encoding/json"
	"net/http"

	"github.com/tgorbit/tgads-backend/internal/model"
	"github.com/tgorbit/tgads-backend/internal/repository"
)

type GroupController struct {
	GroupRepo repository.GroupRepositoryInterface
}

func (c *GroupController) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TelegramID      int64  `json:"telegram_id"`
		Username        string `json:"username"`
		InviteLink      string `json:"invite_link"`
		Title           string `json:"title"`
		CooldownMinutes int    `json:"cooldown_minutes"`
		AllowAds        bool   `json:"allow_ads"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Username == "" && body.InviteLink == "" {
		http.Error(w, "username or invite_link is required", http.StatusBadRequest)
		return
	}

	group := &model.Group{
		TelegramID:      body.TelegramID,
		Username:        body.Username,
		InviteLink:      body.InviteLink,
		Title:           body.Title,
		CooldownMinutes: body.CooldownMinutes,
		AllowAds:        body.AllowAds,
		IsActive:        true,
	}
	if err := c.GroupRepo.Create(group); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, group)
}

func (c *GroupController) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := c.GroupRepo.ListActive()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}
