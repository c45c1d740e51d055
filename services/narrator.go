package services

import (
	"fmt"
	"forklift-backend/models"
	"log"
	"sync"
	"time"
)

// Narrator - 엔진 이벤트 실시간 해설 서비스 (템플릿 기반)
type Narrator struct {
	broadcastFunc func(models.WebSocketMessage)
	eventLogger   *EventLogger
	snapshotFunc  func() models.EngineSnapshot

	lastNarration time.Time
	cooldown      time.Duration // 해설 간격 (너무 자주 해설하지 않도록)
	summaryEvery  time.Duration
	enabled       bool
	now           func() time.Time
	mu            sync.RWMutex

	// 이벤트 큐
	eventQueue chan NarrationEvent
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NarrationEvent - 해설 대기 이벤트
type NarrationEvent struct {
	Priority int
	Event    models.EngineEvent
}

// EventPeriodicSummary - 주기적 진행 요약 (엔진 이벤트가 아닌 해설 전용)
const EventPeriodicSummary = "periodic_summary"

// 우선순위가 이 값 이상이면 쿨다운을 무시한다
const narrationUrgent = 80

// 이벤트 우선순위
var narrationPriority = map[string]int{
	models.EventQueueDrained:      100, // 최고 우선순위
	models.EventSimulationReset:   90,
	models.EventDeliveryCompleted: 80,
	models.EventRunStarted:        60,
	models.EventRunPaused:         50,
	models.EventItemAdded:         30,
	EventPeriodicSummary:          5, // 최저 우선순위
}

// NewNarrator - 해설 서비스 생성. broadcastFunc / eventLogger / snapshotFunc 는 nil 가능.
func NewNarrator(cooldown time.Duration, broadcastFunc func(models.WebSocketMessage), eventLogger *EventLogger, snapshotFunc func() models.EngineSnapshot) *Narrator {
	return &Narrator{
		broadcastFunc: broadcastFunc,
		eventLogger:   eventLogger,
		snapshotFunc:  snapshotFunc,
		cooldown:      cooldown,
		summaryEvery:  30 * time.Second,
		enabled:       true,
		now:           time.Now,
		eventQueue:    make(chan NarrationEvent, 50),
		stopChan:      make(chan struct{}),
	}
}

// Start - 해설 서비스 시작
func (n *Narrator) Start() {
	log.Println("🎙️ 이벤트 해설 서비스 시작")
	n.wg.Add(2)
	go n.processEvents()
	go n.periodicSummary()
}

// Stop - 해설 서비스 중지
func (n *Narrator) Stop() {
	n.stopOnce.Do(func() {
		close(n.stopChan)
		n.wg.Wait()
		log.Println("🎙️ 이벤트 해설 서비스 중지")
	})
}

// SetEnabled - 해설 활성화/비활성화
func (n *Narrator) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// HandleEvent - EventSink. 큐가 가득 차면 이벤트를 버린다.
func (n *Narrator) HandleEvent(ev models.EngineEvent) {
	n.mu.RLock()
	enabled := n.enabled
	n.mu.RUnlock()
	if !enabled {
		return
	}

	priority := narrationPriority[ev.Type]
	if priority == 0 {
		priority = 10
	}

	// 비차단 방식으로 큐에 추가
	select {
	case n.eventQueue <- NarrationEvent{Priority: priority, Event: ev}:
	default:
		log.Printf("⚠️ 해설 큐 가득 참, 이벤트 무시: %s", ev.Type)
	}
}

// processEvents - 이벤트 큐 처리
func (n *Narrator) processEvents() {
	defer n.wg.Done()
	for {
		select {
		case ne := <-n.eventQueue:
			n.narrate(ne)
		case <-n.stopChan:
			return
		}
	}
}

// periodicSummary - 운행 중일 때 주기적 진행 요약
func (n *Narrator) periodicSummary() {
	defer n.wg.Done()
	if n.snapshotFunc == nil {
		<-n.stopChan
		return
	}

	ticker := time.NewTicker(n.summaryEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap := n.snapshotFunc()
			if snap.State != models.RunRunning {
				continue
			}
			n.HandleEvent(models.EngineEvent{
				Type:      EventPeriodicSummary,
				Snapshot:  snap,
				Timestamp: n.now(),
			})
		case <-n.stopChan:
			return
		}
	}
}

// narrate - 쿨다운 확인 후 해설 생성 및 전송. 전송 여부를 반환.
func (n *Narrator) narrate(ne NarrationEvent) bool {
	text := buildNarration(ne.Event)
	if text == "" {
		return false // 빈 해설은 쿨다운을 소모하지 않음
	}

	n.mu.Lock()
	now := n.now()
	if ne.Priority < narrationUrgent && now.Sub(n.lastNarration) < n.cooldown {
		n.mu.Unlock()
		return false
	}
	n.lastNarration = now
	n.mu.Unlock()

	n.broadcastNarration(ne.Event.Type, text, now)
	if n.eventLogger != nil {
		n.eventLogger.LogNarration(ne.Event.Type, text)
	}
	return true
}

// buildNarration - 이벤트별 해설 문장
func buildNarration(ev models.EngineEvent) string {
	snap := ev.Snapshot

	switch ev.Type {
	case models.EventItemAdded:
		if ev.Item == nil {
			return ""
		}
		it := ev.Item
		return fmt.Sprintf("📦 새 물품 등록: 통로 %s, %.1fkg → (%d, %d). 대기 %d건",
			it.Aisle, it.Weight, it.Target.X, it.Target.Y, len(snap.Queue))

	case models.EventDeliveryCompleted:
		if ev.Record == nil {
			return ""
		}
		rec := ev.Record
		return fmt.Sprintf("✅ #%d 배송 완료: 통로 %s (%d, %d), 에너지 %.1f. 진행률 %.0f%%",
			rec.Sequence, rec.Item.Aisle, rec.Item.Target.X, rec.Item.Target.Y, rec.Energy, snap.Progress.Percent)

	case models.EventRunStarted:
		if len(snap.Queue) == 0 {
			return "▶️ 배송 시작"
		}
		next := snap.Queue[0]
		return fmt.Sprintf("▶️ 배송 시작! 대기 %d건, 첫 목적지 통로 %s (%d, %d)",
			len(snap.Queue), next.Aisle, next.Target.X, next.Target.Y)

	case models.EventRunPaused:
		if ev.Reason != "" {
			return fmt.Sprintf("⏸️ 배송 일시정지 (%s). 남은 물품 %d건", ev.Reason, len(snap.Queue))
		}
		return fmt.Sprintf("⏸️ 배송 일시정지. 남은 물품 %d건", len(snap.Queue))

	case models.EventQueueDrained:
		return fmt.Sprintf("🏁 모든 배송 완료! 총 %d건, 지게차 위치 (%d, %d)",
			snap.Progress.Delivered, snap.Carrier.X, snap.Carrier.Y)

	case models.EventSimulationReset:
		return fmt.Sprintf("🔄 시뮬레이션 초기화. 지게차가 (%d, %d)에서 대기합니다", snap.Carrier.X, snap.Carrier.Y)

	case EventPeriodicSummary:
		return fmt.Sprintf("📊 진행 상황: %d/%d 완료 (%.0f%%), 지게차 (%d, %d)",
			snap.Progress.Delivered, snap.Progress.Total, snap.Progress.Percent, snap.Carrier.X, snap.Carrier.Y)

	default:
		return ""
	}
}

// broadcastNarration - 해설 브로드캐스트
func (n *Narrator) broadcastNarration(eventType, text string, at time.Time) {
	if n.broadcastFunc == nil {
		return
	}

	n.broadcastFunc(models.NewMessage(models.MessageTypeNarration, models.NarrationData{
		Text:      text,
		EventType: eventType,
		Timestamp: at.UnixMilli(),
	}))
	log.Printf("🎙️ 해설 전송: [%s] %s", eventType, truncateString(text, 60))
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
