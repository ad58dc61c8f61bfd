package handlers

import (
	"log/slog"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ankaboot-source/leadminer-engine/internal/api/response"
	"github.com/ankaboot-source/leadminer-engine/internal/miner"
	"github.com/ankaboot-source/leadminer-engine/internal/progress"
)

// MiningHandler handles mining task HTTP requests
type MiningHandler struct {
	engine   *miner.Engine
	hub      *progress.Hub
	upgrader func(c echo.Context) (*progress.Client, error)
	logger   *slog.Logger
}

// NewMiningHandler creates a new MiningHandler
func NewMiningHandler(engine *miner.Engine, hub *progress.Hub, upgrader func(c echo.Context) (*progress.Client, error), logger *slog.Logger) *MiningHandler {
	return &MiningHandler{
		engine:   engine,
		hub:      hub,
		upgrader: upgrader,
		logger:   logger,
	}
}

// StartMiningRequest is the body for starting a mining task
type StartMiningRequest struct {
	Folders []string `json:"folders"`
}

// Start handles POST /api/users/:user_id/sources/:source_id/mine
func (h *MiningHandler) Start(c echo.Context) error {
	userID := c.Param("user_id")
	sourceID, err := strconv.ParseUint(c.Param("source_id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid source id")
	}

	var req StartMiningRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if len(req.Folders) == 0 {
		return response.BadRequest(c, "folders is required")
	}

	task, err := h.engine.Start(c.Request().Context(), userID, uint(sourceID), req.Folders)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, task)
}

// Cancel handles DELETE /api/mining/:mining_id
func (h *MiningHandler) Cancel(c echo.Context) error {
	miningID := c.Param("mining_id")
	if err := h.engine.Cancel(miningID); err != nil {
		return response.Error(c, err)
	}
	return response.NoContent(c)
}

// Get handles GET /api/mining/:mining_id
func (h *MiningHandler) Get(c echo.Context) error {
	task, err := h.engine.GetTask(c.Request().Context(), c.Param("mining_id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, task)
}

// ListFolders handles GET /api/users/:user_id/sources/:source_id/folders
func (h *MiningHandler) ListFolders(c echo.Context) error {
	userID := c.Param("user_id")
	sourceID, err := strconv.ParseUint(c.Param("source_id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid source id")
	}

	tree, err := h.engine.ListFolders(c.Request().Context(), userID, uint(sourceID))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, tree)
}

// Stream handles GET /ws/mining/:mining_id, upgrading to a WebSocket
// subscribed to the task's progress events.
func (h *MiningHandler) Stream(c echo.Context) error {
	client, err := h.upgrader(c)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return err
	}

	h.hub.Register(client)
	if miningID := c.Param("mining_id"); miningID != "" {
		h.hub.Subscribe(client, miningID)
	}

	go client.WritePump()
	go client.ReadPump()

	return nil
}
