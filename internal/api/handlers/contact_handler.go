package handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ankaboot-source/leadminer-engine/internal/api/response"
	"github.com/ankaboot-source/leadminer-engine/internal/repository"
)

const (
	defaultContactLimit = 50
	maxContactLimit     = 500
)

// ContactHandler handles contact aggregate HTTP requests
type ContactHandler struct {
	contacts repository.ContactRepository
}

// NewContactHandler creates a new ContactHandler
func NewContactHandler(contacts repository.ContactRepository) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

// List handles GET /api/users/:user_id/contacts
func (h *ContactHandler) List(c echo.Context) error {
	limit := defaultContactLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return response.BadRequest(c, "invalid limit")
		}
		limit = parsed
	}
	if limit > maxContactLimit {
		limit = maxContactLimit
	}

	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return response.BadRequest(c, "invalid offset")
		}
		offset = parsed
	}

	contacts, total, err := h.contacts.ListByUser(c.Request().Context(), c.Param("user_id"), limit, offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, contacts, total, limit, offset)
}
