package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"forklift-backend/models"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"
)

// ErrLoggingDisabled - DB 드라이버가 none 일 때 조회 API가 반환
var ErrLoggingDisabled = errors.New("event logging is disabled")

// EventLogger - 엔진 이벤트 로그 버퍼 (비동기 일괄 처리)
type EventLogger struct {
	db        *gorm.DB
	logs      []models.DeliveryLog
	mu        sync.Mutex
	flushSize int           // 일괄 저장 크기
	flushTime time.Duration // 자동 플러시 시간
	stopChan  chan struct{}
	stopOnce  sync.Once
	stopped   bool // Stop 이후 AddLog 무시 (mu 보호)
	done      chan struct{}
}

// NewEventLogger - 로깅 시스템 초기화. db 가 nil 이면 모든 기록은 버려진다.
func NewEventLogger(db *gorm.DB, flushSize int, flushInterval time.Duration) *EventLogger {
	if flushSize <= 0 {
		flushSize = 50
	}
	if flushInterval <= 0 {
		flushInterval = 10 * time.Second
	}

	el := &EventLogger{
		db:        db,
		logs:      make([]models.DeliveryLog, 0, flushSize*2),
		flushSize: flushSize,
		flushTime: flushInterval,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}

	if db == nil {
		close(el.done)
		return el
	}

	// 자동 플러시 고루틴 시작
	go el.autoFlush()

	log.Printf("✅ 로깅 시스템 초기화 완료 (flushSize: %d, flushInterval: %v)", flushSize, flushInterval)
	return el
}

// Enabled - DB 가 연결되어 있는지
func (el *EventLogger) Enabled() bool {
	return el != nil && el.db != nil
}

// autoFlush - 주기적 로그 저장
func (el *EventLogger) autoFlush() {
	defer close(el.done)

	ticker := time.NewTicker(el.flushTime)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			el.Flush()
		case <-el.stopChan:
			el.Flush() // 종료 시 남은 로그 저장
			return
		}
	}
}

// AddLog - 로그 버퍼에 추가
func (el *EventLogger) AddLog(entry models.DeliveryLog) {
	if !el.Enabled() {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	el.mu.Lock()
	if el.stopped {
		el.mu.Unlock()
		return
	}
	el.logs = append(el.logs, entry)
	size := len(el.logs)
	el.mu.Unlock()

	// 버퍼 크기가 차면 즉시 플러시
	if size >= el.flushSize {
		go el.Flush()
	}
}

// Flush - 버퍼의 모든 로그를 DB에 저장
func (el *EventLogger) Flush() {
	if !el.Enabled() {
		return
	}

	el.mu.Lock()
	if len(el.logs) == 0 {
		el.mu.Unlock()
		return
	}

	// 로그 복사 및 버퍼 초기화
	logsToSave := make([]models.DeliveryLog, len(el.logs))
	copy(logsToSave, el.logs)
	el.logs = el.logs[:0]
	el.mu.Unlock()

	if err := el.db.CreateInBatches(logsToSave, 100).Error; err != nil {
		log.Printf("❌ 로그 저장 실패: %v", err)
		return
	}
	log.Printf("💾 로그 %d개 저장 완료", len(logsToSave))
}

// Pending - 아직 저장되지 않은 로그 수
func (el *EventLogger) Pending() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.logs)
}

// HandleEvent - 엔진 이벤트를 감사 로그로 변환 (EventSink)
func (el *EventLogger) HandleEvent(ev models.EngineEvent) {
	if !el.Enabled() {
		return
	}
	el.AddLog(logFromEvent(ev))
}

// LogNarration - 해설 문장 로그
func (el *EventLogger) LogNarration(eventType, text string) {
	el.AddLog(models.DeliveryLog{
		CreatedAt: time.Now(),
		EventType: "narration",
		Reason:    eventType,
		Narration: text,
	})
}

// logFromEvent - 이벤트에서 로그 필드 추출
func logFromEvent(ev models.EngineEvent) models.DeliveryLog {
	dataJSON, err := json.Marshal(ev)
	if err != nil {
		log.Printf("❌ 이벤트 직렬화 실패 (seq=%d, type=%s): %v", ev.Seq, ev.Type, err)
		dataJSON = nil
	}

	entry := models.DeliveryLog{
		CreatedAt: ev.Timestamp,
		EventType: ev.Type,
		Seq:       ev.Seq,
		CarrierX:  ev.Snapshot.Carrier.X,
		CarrierY:  ev.Snapshot.Carrier.Y,
		RunState:  string(ev.Snapshot.State),
		QueueLen:  len(ev.Snapshot.Queue),
		Reason:    ev.Reason,
		DataJSON:  string(dataJSON),
	}

	item := ev.Item
	if ev.Record != nil {
		item = &ev.Record.Item
		entry.EnergyScore = ev.Record.Energy
	}
	if item != nil {
		entry.ItemID = item.ID
		entry.ItemAisle = item.Aisle
		entry.ItemWeight = item.Weight
		entry.TargetX = item.Target.X
		entry.TargetY = item.Target.Y
		if ev.Record == nil && item.EnergyScore != nil {
			entry.EnergyScore = *item.EnergyScore
		}
	}
	return entry
}

// RecentLogs - 최근 로그 조회
func (el *EventLogger) RecentLogs(limit int) ([]models.DeliveryLog, error) {
	if !el.Enabled() {
		return nil, ErrLoggingDisabled
	}
	var logs []models.DeliveryLog
	err := el.db.Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// LogsByTimeRange - 시간 범위로 로그 조회
func (el *EventLogger) LogsByTimeRange(start, end time.Time, limit int) ([]models.DeliveryLog, error) {
	if !el.Enabled() {
		return nil, ErrLoggingDisabled
	}
	var logs []models.DeliveryLog
	query := el.db.Where("created_at BETWEEN ? AND ?", start, end)

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Order("created_at DESC").Order("id DESC").Find(&logs).Error
	return logs, err
}

// LogsByEventType - 이벤트 타입별 로그 조회
func (el *EventLogger) LogsByEventType(eventType string, limit int) ([]models.DeliveryLog, error) {
	if !el.Enabled() {
		return nil, ErrLoggingDisabled
	}
	var logs []models.DeliveryLog
	err := el.db.Where("event_type = ?", eventType).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// LogStats - 로그 통계
func (el *EventLogger) LogStats(hours int) (map[string]interface{}, error) {
	if !el.Enabled() {
		return nil, ErrLoggingDisabled
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	var totalLogs int64
	if err := el.db.Model(&models.DeliveryLog{}).
		Where("created_at >= ?", since).
		Count(&totalLogs).Error; err != nil {
		return nil, err
	}

	// 이벤트 타입별 카운트
	var eventCounts []struct {
		EventType string
		Count     int64
	}
	if err := el.db.Model(&models.DeliveryLog{}).
		Select("event_type, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("event_type").
		Scan(&eventCounts).Error; err != nil {
		return nil, err
	}

	eventMap := make(map[string]int64)
	for _, ec := range eventCounts {
		eventMap[ec.EventType] = ec.Count
	}

	// 배송 에너지 합계
	var totalEnergy struct{ Total float64 }
	if err := el.db.Model(&models.DeliveryLog{}).
		Select("COALESCE(SUM(energy_score), 0) as total").
		Where("created_at >= ? AND event_type = ?", since, models.EventDeliveryCompleted).
		Scan(&totalEnergy).Error; err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"total_logs":   totalLogs,
		"event_counts": eventMap,
		"total_energy": totalEnergy.Total,
		"time_range":   fmt.Sprintf("Last %d hours", hours),
	}, nil
}

// Stop - 로깅 시스템 종료 (남은 로그 저장 후 반환)
func (el *EventLogger) Stop() {
	if !el.Enabled() {
		return
	}
	el.stopOnce.Do(func() {
		el.mu.Lock()
		el.stopped = true
		el.mu.Unlock()

		close(el.stopChan)
		<-el.done
		log.Println("🛑 로깅 시스템 종료")
	})
}
