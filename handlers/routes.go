package handlers

import (
	"forklift-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// SetupRoutes - REST / WebSocket 라우트 등록
func SetupRoutes(app *fiber.App, engine Engine, hub *ClientManager, eventLogger *services.EventLogger) {
	wh := &WarehouseHandler{Engine: engine, Hub: hub}
	lh := &LogHandler{Logger: eventLogger}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Forklift 배송 시뮬레이션 서버가 실행 중입니다.")
	})

	api := app.Group("/api")
	api.Get("/health", wh.HandleHealth)
	api.Get("/grid", wh.HandleGetGrid)

	api.Post("/items", wh.HandleAddItem)
	api.Get("/items", wh.HandleListItems)
	api.Get("/queue", wh.HandleGetQueue)
	api.Get("/path", wh.HandleGetPath)
	api.Get("/carrier", wh.HandleGetCarrier)
	api.Get("/history", wh.HandleGetHistory)
	api.Get("/progress", wh.HandleGetProgress)
	api.Get("/energy", wh.HandleGetEnergy)
	api.Get("/state", wh.HandleGetState)

	// start / pause / stop / reset / step
	api.Post("/simulation/:action", wh.HandleCommand)

	// 로그 조회 API
	logsAPI := api.Group("/logs")
	logsAPI.Get("/recent", lh.HandleGetRecentLogs)     // 최근 로그
	logsAPI.Get("/range", lh.HandleGetLogsByTimeRange) // 시간 범위
	logsAPI.Get("/type", lh.HandleGetLogsByEventType)  // 이벤트 타입별
	logsAPI.Get("/stats", lh.HandleGetLogStats)        // 통계

	if hub == nil {
		return
	}

	// WebSocket
	app.Use("/websocket", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/websocket/web", websocket.New(hub.HandleWebClientWebSocket))
}
