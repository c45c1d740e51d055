package models

import (
	"time"
)

// DeliveryLog - 엔진 이벤트 감사 로그
type DeliveryLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	EventType string    `gorm:"index;size:64" json:"event_type"` // "item_added", "delivery_completed", "narration", ...
	Seq       uint64    `json:"seq"`

	// 지게차 상태
	CarrierX int    `json:"carrier_x"`
	CarrierY int    `json:"carrier_y"`
	RunState string `gorm:"size:16" json:"run_state"`
	QueueLen int    `json:"queue_len"`

	// 물품 정보
	ItemID      string  `gorm:"size:64" json:"item_id"`
	ItemAisle   string  `gorm:"size:64" json:"item_aisle"`
	ItemWeight  float64 `json:"item_weight"`
	TargetX     int     `json:"target_x"`
	TargetY     int     `json:"target_y"`
	EnergyScore float64 `json:"energy_score"`

	Reason    string `gorm:"size:64" json:"reason"`
	Narration string `json:"narration"`

	DataJSON string `json:"data_json"` // 원본 이벤트 JSON
}
