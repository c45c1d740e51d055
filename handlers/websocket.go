package handlers

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"forklift-backend/models"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type Client struct {
	ID         string
	Conn       *websocket.Conn
	ClientType string // "web"

	writeMu sync.Mutex
}

// write - fasthttp websocket 은 동시 쓰기를 허용하지 않으므로 연결별로 직렬화
func (c *Client) write(msg models.WebSocketMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.Conn.WriteJSON(msg)
}

// 클라이언트 관리자
type ClientManager struct {
	engine     Engine
	clients    map[*websocket.Conn]*Client
	broadcast  chan models.WebSocketMessage
	register   chan *Client
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
}

// NewClientManager - engine 은 웹 클라이언트 명령 처리에 사용 (nil 이면 명령 거부)
func NewClientManager(engine Engine) *ClientManager {
	return &ClientManager{
		engine:     engine,
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan models.WebSocketMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
}

// Run - 클라이언트 관리 루프 (ctx 취소 시 모든 연결 종료)
func (manager *ClientManager) Run(ctx context.Context) {
	log.Println("✅ [Hub] 클라이언트 관리자 시작")
	defer close(manager.done)
	for {
		select {
		case client := <-manager.register:
			manager.mutex.Lock()
			manager.clients[client.Conn] = client
			manager.mutex.Unlock()
			log.Printf("[Hub] 클라이언트 등록: %s %s (%s)", client.ClientType, client.ID, client.Conn.RemoteAddr())

		case conn := <-manager.unregister:
			manager.remove(conn)

		case message := <-manager.broadcast:
			manager.handleBroadcast(message)

		case <-ctx.Done():
			manager.mutex.Lock()
			for conn := range manager.clients {
				_ = conn.Close()
				delete(manager.clients, conn)
			}
			manager.mutex.Unlock()
			log.Println("🛑 [Hub] 클라이언트 관리자 종료")
			return
		}
	}
}

func (manager *ClientManager) remove(conn *websocket.Conn) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	if client, ok := manager.clients[conn]; ok {
		delete(manager.clients, conn)
		_ = conn.Close()
		log.Printf("[Hub] 클라이언트 해제: %s %s", client.ClientType, client.ID)
	}
}

func (manager *ClientManager) handleBroadcast(message models.WebSocketMessage) {
	manager.mutex.RLock()
	targets := make([]*Client, 0, len(manager.clients))
	for _, client := range manager.clients {
		if client.ClientType == "web" {
			targets = append(targets, client)
		}
	}
	manager.mutex.RUnlock()

	for _, client := range targets {
		if err := client.write(message); err != nil {
			log.Printf("[Hub] 전송 실패 (%s): %v", client.ID, err)
			manager.remove(client.Conn)
		}
	}
}

// BroadcastMessage - 비차단 브로드캐스트 (채널이 가득 차면 버림)
func (manager *ClientManager) BroadcastMessage(msg models.WebSocketMessage) {
	select {
	case manager.broadcast <- msg:
	default:
		log.Printf("⚠️ [Hub] broadcast 채널 가득 참, 메시지 무시: %s", msg.Type)
	}
}

// HandleEvent - 엔진 이벤트를 웹 클라이언트용 메시지로 분해해 전송 (EventSink)
func (manager *ClientManager) HandleEvent(ev models.EngineEvent) {
	for _, msg := range eventMessages(ev) {
		manager.BroadcastMessage(msg)
	}
}

// eventMessages - engine_event 뒤에 queue / path / position 갱신을 붙인다
func eventMessages(ev models.EngineEvent) []models.WebSocketMessage {
	snap := ev.Snapshot
	return []models.WebSocketMessage{
		models.NewMessage(models.MessageTypeEngineEvent, ev),
		models.NewMessage(models.MessageTypeQueueUpdate, snap.Queue),
		models.NewMessage(models.MessageTypePathUpdate, snap.Path),
		models.NewMessage(models.MessageTypePosition, snap.Carrier),
	}
}

func (manager *ClientManager) GetClientCount() map[string]int {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	count := map[string]int{
		"web": 0,
	}
	for _, client := range manager.clients {
		count[client.ClientType]++
	}
	return count
}

// HandleWebClientWebSocket - 웹 클라이언트 WebSocket Handler (상태 피드 + 명령)
func (manager *ClientManager) HandleWebClientWebSocket(c *websocket.Conn) {
	client := &Client{
		ID:         "web-" + uuid.NewString(),
		Conn:       c,
		ClientType: "web",
	}

	select {
	case manager.register <- client:
	case <-manager.done:
		return
	}

	defer func() {
		select {
		case manager.unregister <- c:
		case <-manager.done:
		}
	}()

	// 연결 확인 메시지 + 현재 상태
	welcome := models.NewMessage(models.MessageTypeSystemInfo, models.SystemInfo{
		Message:          "웹 클라이언트 연결됨",
		ConnectedClients: manager.GetClientCount()["web"],
		ServerTime:       time.Now(),
	})
	if err := client.write(welcome); err != nil {
		return
	}
	if manager.engine != nil {
		if err := client.write(models.NewMessage(models.MessageTypeSnapshot, manager.engine.Snapshot())); err != nil {
			return
		}
	}

	for {
		var msg models.WebSocketMessage
		if err := c.ReadJSON(&msg); err != nil {
			log.Printf("[Hub] 웹 메시지 읽기 종료 (%s): %v", client.ID, err)
			break
		}

		switch msg.Type {
		case models.MessageTypeCommand:
			manager.handleCommand(client, msg)
		default:
			log.Printf("⚠️ [Hub] 알 수 없는 메시지 타입: %s", msg.Type)
			_ = client.write(models.NewMessage(models.MessageTypeError, map[string]string{
				"error": "unsupported message type: " + msg.Type,
			}))
		}
	}
}

// handleCommand - start / pause / stop / reset / step
func (manager *ClientManager) handleCommand(client *Client, msg models.WebSocketMessage) {
	var cmd models.CommandData
	raw, _ := json.Marshal(msg.Data)
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Action == "" {
		_ = client.write(models.NewMessage(models.MessageTypeError, map[string]string{
			"error": "command requires data.action",
		}))
		return
	}

	if manager.engine == nil {
		_ = client.write(models.NewMessage(models.MessageTypeError, map[string]string{
			"error": "engine unavailable",
		}))
		return
	}

	log.Printf("🎮 [Hub] 명령 수신: %s (%s)", cmd.Action, client.ID)
	if _, err := ExecuteCommand(manager.engine, cmd.Action); err != nil {
		_ = client.write(models.NewMessage(models.MessageTypeError, map[string]string{
			"action": cmd.Action,
			"error":  err.Error(),
		}))
	}
}
