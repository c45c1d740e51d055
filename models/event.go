package models

import "time"

// 엔진 이벤트 타입
const (
	EventItemAdded         = "item_added"
	EventDeliveryCompleted = "delivery_completed"
	EventRunStarted        = "run_started"
	EventRunPaused         = "run_paused"
	EventQueueDrained      = "queue_drained"
	EventSimulationReset   = "simulation_reset"
)

// EngineSnapshot - 특정 시점의 엔진 상태 (읽기 전용 복사본)
type EngineSnapshot struct {
	Carrier  Position   `json:"carrier"`
	State    RunState   `json:"state"`
	Queue    []Item     `json:"queue"`
	Path     []PathNode `json:"path"`
	Progress Progress   `json:"progress"`
}

// EngineEvent is emitted once per engine mutation, after the engine lock has
// been released.
type EngineEvent struct {
	Seq       uint64          `json:"seq"`
	Type      string          `json:"type"`
	Item      *Item           `json:"item,omitempty"`
	Record    *DeliveryRecord `json:"record,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Snapshot  EngineSnapshot  `json:"snapshot"`
	Timestamp time.Time       `json:"timestamp"`
}
