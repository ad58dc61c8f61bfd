package handlers

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ankaboot-source/leadminer-engine/internal/api/response"
	"github.com/ankaboot-source/leadminer-engine/internal/models"
	"github.com/ankaboot-source/leadminer-engine/internal/repository"
)

// SourceHandler handles mining source HTTP requests
type SourceHandler struct {
	sources repository.SourceRepository
}

// NewSourceHandler creates a new SourceHandler
func NewSourceHandler(sources repository.SourceRepository) *SourceHandler {
	return &SourceHandler{sources: sources}
}

// CreateSourceRequest is the body for registering a mining source
type CreateSourceRequest struct {
	Email string `json:"email"`
	Type  string `json:"type"`

	// Password-based sources
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Password string `json:"password,omitempty"`

	// OAuth sources
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenExpiry  time.Time `json:"token_expiry,omitempty"`
}

// Create handles POST /api/users/:user_id/sources
func (h *SourceHandler) Create(c echo.Context) error {
	var req CreateSourceRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.Email == "" {
		return response.BadRequest(c, "email is required")
	}

	sourceType := models.SourceType(req.Type)
	switch sourceType {
	case models.SourceTypeIMAP:
		if req.Host == "" || req.Port == 0 || req.Password == "" {
			return response.BadRequest(c, "host, port and password are required for imap sources")
		}
	case models.SourceTypeGoogle, models.SourceTypeAzure:
		if req.RefreshToken == "" {
			return response.BadRequest(c, "refresh_token is required for oauth sources")
		}
	default:
		return response.BadRequest(c, "unknown source type")
	}

	source := &models.MiningSource{
		UserID:       c.Param("user_id"),
		Email:        req.Email,
		Type:         sourceType,
		Host:         req.Host,
		Port:         req.Port,
		Password:     req.Password,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenExpiry:  req.TokenExpiry,
	}
	if err := h.sources.Create(c.Request().Context(), source); err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, source)
}

// List handles GET /api/users/:user_id/sources
func (h *SourceHandler) List(c echo.Context) error {
	sources, err := h.sources.ListByUser(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, sources)
}

// Delete handles DELETE /api/users/:user_id/sources/:source_id
func (h *SourceHandler) Delete(c echo.Context) error {
	sourceID, err := strconv.ParseUint(c.Param("source_id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid source id")
	}

	if err := h.sources.Delete(c.Request().Context(), c.Param("user_id"), uint(sourceID)); err != nil {
		if err == repository.ErrNotFound {
			return response.NotFound(c, "mining source not found")
		}
		return response.Error(c, err)
	}

	return response.NoContent(c)
}
