package handlers

import (
	"errors"
	"fmt"
	"log"
	"time"

	"forklift-backend/models"
	"forklift-backend/services"

	"github.com/gofiber/fiber/v2"
)

// Engine - 핸들러가 사용하는 배송 엔진 기능 (*services.DeliveryEngine 구현)
type Engine interface {
	AddItem(weight float64, target models.Position, aisle string) (models.Item, error)
	Items() []models.Item
	UndeliveredQueue() []models.Item
	CurrentPath() []models.PathNode
	CarrierPosition() models.Position
	History() []models.DeliveryRecord
	RunState() models.RunState
	Grid() *models.Grid
	Progress() models.Progress
	EnergySummary() models.EnergySummary
	Snapshot() models.EngineSnapshot
	TickInterval() time.Duration

	Start() error
	Pause()
	Stop()
	Reset()
	DeliverNext() (*models.DeliveryRecord, bool)
}

var errUnknownCommand = errors.New("unknown command")

// CommandResult - 명령 실행 결과
type CommandResult struct {
	Action    string                 `json:"action"`
	State     models.RunState        `json:"state"`
	Delivered *models.DeliveryRecord `json:"delivered,omitempty"`
}

// ExecuteCommand - REST 와 WebSocket 공통 명령 처리
func ExecuteCommand(engine Engine, action string) (CommandResult, error) {
	res := CommandResult{Action: action}

	switch action {
	case models.CommandStart:
		if err := engine.Start(); err != nil {
			return res, err
		}
	case models.CommandPause:
		engine.Pause()
	case models.CommandStop:
		engine.Stop()
	case models.CommandReset:
		engine.Reset()
	case models.CommandStep:
		if rec, ok := engine.DeliverNext(); ok {
			res.Delivered = rec
		}
	default:
		return res, fmt.Errorf("%w: %q", errUnknownCommand, action)
	}

	res.State = engine.RunState()
	return res, nil
}

// WarehouseHandler - 창고/배송 REST API
type WarehouseHandler struct {
	Engine Engine
	Hub    *ClientManager
}

// AddItemRequest - POST /api/items 본문
type AddItemRequest struct {
	Weight float64         `json:"weight"`
	Target models.Position `json:"target"`
	Aisle  string          `json:"aisle"`
}

// GridView - 격자 + 도크 목록
type GridView struct {
	*models.Grid
	Docks     []models.Position `json:"docks"`
	RackCells int               `json:"rack_cells"`
}

// HandleHealth - 서버 상태
func (h *WarehouseHandler) HandleHealth(c *fiber.Ctx) error {
	clients := map[string]int{"web": 0}
	if h.Hub != nil {
		clients = h.Hub.GetClientCount()
	}
	return c.JSON(fiber.Map{
		"status":  "OK",
		"state":   h.Engine.RunState(),
		"clients": clients,
		"time":    time.Now().Format(time.RFC3339),
	})
}

// HandleGetGrid - 창고 격자
func (h *WarehouseHandler) HandleGetGrid(c *fiber.Ctx) error {
	grid := h.Engine.Grid()
	return c.JSON(GridView{
		Grid:      grid,
		Docks:     grid.Docks(),
		RackCells: len(grid.Racks()),
	})
}

// HandleAddItem - 물품 추가
func (h *WarehouseHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	item, err := h.Engine.AddItem(req.Weight, req.Target, req.Aisle)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"item":    item,
	})
}

// HandleListItems - 전체 물품 (배송 완료 포함)
func (h *WarehouseHandler) HandleListItems(c *fiber.Ctx) error {
	items := h.Engine.Items()
	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(items),
		"items":   items,
	})
}

// HandleGetQueue - 에너지 최적화 배송 큐
func (h *WarehouseHandler) HandleGetQueue(c *fiber.Ctx) error {
	queue := h.Engine.UndeliveredQueue()
	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(queue),
		"queue":   queue,
	})
}

// HandleGetPath - 다음 목적지까지의 경로
func (h *WarehouseHandler) HandleGetPath(c *fiber.Ctx) error {
	path := h.Engine.CurrentPath()
	return c.JSON(fiber.Map{
		"success": true,
		"steps":   len(path),
		"path":    path,
	})
}

// HandleGetCarrier - 지게차 위치
func (h *WarehouseHandler) HandleGetCarrier(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":  true,
		"position": h.Engine.CarrierPosition(),
		"state":    h.Engine.RunState(),
	})
}

// HandleGetHistory - 배송 기록
func (h *WarehouseHandler) HandleGetHistory(c *fiber.Ctx) error {
	history := h.Engine.History()
	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(history),
		"history": history,
	})
}

// HandleGetProgress - 진행률
func (h *WarehouseHandler) HandleGetProgress(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":  true,
		"progress": h.Engine.Progress(),
	})
}

// HandleGetEnergy - 에너지 통계
func (h *WarehouseHandler) HandleGetEnergy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"energy":  h.Engine.EnergySummary(),
	})
}

// HandleGetState - 전체 스냅샷
func (h *WarehouseHandler) HandleGetState(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":       true,
		"snapshot":      h.Engine.Snapshot(),
		"tick_interval": h.Engine.TickInterval().Milliseconds(),
	})
}

// HandleCommand - POST /api/simulation/:action
func (h *WarehouseHandler) HandleCommand(c *fiber.Ctx) error {
	action := c.Params("action")

	res, err := ExecuteCommand(h.Engine, action)
	if err != nil {
		return writeError(c, err)
	}

	log.Printf("🎮 시뮬레이션 명령: %s → %s", action, res.State)
	return c.JSON(fiber.Map{
		"success": true,
		"result":  res,
	})
}

// writeError - 도메인 에러를 HTTP 상태로 변환
func writeError(c *fiber.Ctx, err error) error {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   verr.Error(),
			"field":   verr.Field,
		})
	case errors.Is(err, services.ErrEmptyQueue):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	case errors.Is(err, errUnknownCommand):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	case errors.Is(err, services.ErrLoggingDisabled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   "Event logging is disabled (database.driver=none)",
		})
	default:
		log.Printf("❌ 요청 처리 실패: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Internal server error",
		})
	}
}
