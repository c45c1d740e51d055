package models

import "time"

// ========================================
// 메시지 타입 상수
// ========================================
const (
	// Server → Web
	MessageTypeSnapshot    = "snapshot"     // 전체 상태
	MessageTypeEngineEvent = "engine_event" // 엔진 이벤트
	MessageTypeQueueUpdate = "queue_update" // 최적화 큐 업데이트
	MessageTypePathUpdate  = "path_update"  // 경로 업데이트
	MessageTypePosition    = "position"     // 지게차 위치
	MessageTypeNarration   = "narration"    // 이벤트 해설

	// Web → Server
	MessageTypeCommand = "command" // start / pause / stop / reset / step

	// Server → All
	MessageTypeSystemInfo = "system_info" // 시스템 정보
	MessageTypeError      = "error"       // 명령 처리 실패
)

// 명령 액션
const (
	CommandStart = "start"
	CommandPause = "pause"
	CommandStop  = "stop"
	CommandReset = "reset"
	CommandStep  = "step"
)

// ========================================
// 공통 WebSocket 메시지 형식
// ========================================
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"` // Unix timestamp (ms)
}

// NewMessage - 현재 시각으로 메시지 생성
func NewMessage(msgType string, data interface{}) WebSocketMessage {
	return WebSocketMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// CommandData - 웹 클라이언트 명령
type CommandData struct {
	Action string `json:"action"`
}

// NarrationData - 이벤트 해설 데이터
type NarrationData struct {
	Text      string `json:"text"`
	EventType string `json:"event_type"`
	Timestamp int64  `json:"timestamp"`
}

// SystemInfo - 시스템 정보
type SystemInfo struct {
	Message          string    `json:"message"`
	ConnectedClients int       `json:"connected_clients"`
	ServerTime       time.Time `json:"server_time"`
}
