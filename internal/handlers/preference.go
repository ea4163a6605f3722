package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kestrelworks/orgvault/internal/requestdata"
	"github.com/kestrelworks/orgvault/internal/services"
)

type PreferenceHandler struct {
	preferenceService services.PreferenceService
}

func NewPreferenceHandler(preferenceService services.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{preferenceService: preferenceService}
}

func (ph *PreferenceHandler) GetMine(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	preferences, err := ph.preferenceService.GetForUser(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"preferences": preferences})
}

func (ph *PreferenceHandler) HistoryMine(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	history, err := ph.preferenceService.HistoryForUser(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"history": history})
}

func (ph *PreferenceHandler) UpdateMine(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	var req struct {
		Theme    *string         `json:"theme"`
		Locale   *string         `json:"locale"`
		Settings json.RawMessage `json:"settings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	preferences, receipt, err := ph.preferenceService.UpdateForUser(c.Request.Context(), rd.UserID, services.UpdatePreferenceInput{
		Theme:    req.Theme,
		Locale:   req.Locale,
		Settings: req.Settings,
	})
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"preferences": preferences, "receipt": receipt})
}
