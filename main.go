package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forklift-backend/config"
	"forklift-backend/handlers"
	"forklift-backend/models"
	"forklift-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ 설정 로드 실패: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 이벤트 로그 DB (driver=none 이면 nil)
	db, err := services.OpenDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("❌ DB 초기화 실패: %v", err)
	}

	// 로깅 시스템 초기화
	eventLogger := services.NewEventLogger(db, cfg.Logging.FlushSize, cfg.Logging.FlushInterval)
	defer eventLogger.Stop() // 종료 시 남은 로그 저장

	engine, err := services.NewDeliveryEngine(services.EngineOptions{
		Width:        cfg.Warehouse.Width,
		Height:       cfg.Warehouse.Height,
		Start:        models.Position{X: cfg.Warehouse.StartX, Y: cfg.Warehouse.StartY},
		TickInterval: cfg.Simulation.TickInterval,
	})
	if err != nil {
		log.Fatalf("❌ 배송 엔진 생성 실패: %v", err)
	}

	hub := handlers.NewClientManager(engine)
	go hub.Run(ctx)

	engine.AddSink(hub)
	engine.AddSink(eventLogger)

	if cfg.Archive.Dir != "" {
		archive := services.NewHistoryArchive(cfg.Archive.Dir)
		defer func() {
			if err := archive.Close(); err != nil {
				log.Printf("⚠️ 아카이브 닫기 실패: %v", err)
			}
		}()
		engine.AddSink(archive)
	}

	if cfg.Narrator.Enabled {
		narrator := services.NewNarrator(cfg.Narrator.Cooldown, hub.BroadcastMessage, eventLogger, engine.Snapshot)
		narrator.Start()
		defer narrator.Stop()
		engine.AddSink(narrator)
	}

	// defer 는 역순 실행: sink 정리 전에 엔진부터 멈춘다
	defer engine.Stop()

	if cfg.Simulation.SeedPath != "" {
		items, err := services.LoadSeedItems(cfg.Simulation.SeedPath)
		if err != nil {
			log.Fatalf("❌ 시드 파일 로드 실패: %v", err)
		}
		if _, err := services.ApplySeed(engine, items); err != nil {
			log.Fatalf("❌ 시드 적용 실패: %v", err)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:               "forklift-backend",
		DisableStartupMessage: true,
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	handlers.SetupRoutes(app, engine, hub, eventLogger)

	go func() {
		<-ctx.Done()
		log.Println("🛑 종료 신호 수신, 서버를 정리합니다...")
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Printf("⚠️ 서버 종료 오류: %v", err)
		}
	}()

	log.Printf("🚀 서버 시작: http://localhost%s", cfg.Server.Addr)
	log.Printf("📡 WebSocket: ws://localhost%s/websocket/web", cfg.Server.Addr)
	log.Printf("📦 창고 %dx%d, 시작 위치 (%d,%d), tick %v",
		cfg.Warehouse.Width, cfg.Warehouse.Height, cfg.Warehouse.StartX, cfg.Warehouse.StartY, cfg.Simulation.TickInterval)
	log.Printf("💾 로그 API: GET http://localhost%s/api/logs/* (driver=%s)", cfg.Server.Addr, cfg.Database.Driver)

	if err := app.Listen(cfg.Server.Addr); err != nil {
		log.Printf("❌ 서버 오류: %v", err)
	}
}
