package services

import (
	"context"
	"errors"
	"fmt"
	"forklift-backend/algorithms"
	"forklift-backend/models"
	"log"
	"sync"
	"time"
)

// DefaultTickInterval - 자동 배송 주기
const DefaultTickInterval = 2 * time.Second

// ErrEmptyQueue is returned by Start when there is nothing to deliver.
var ErrEmptyQueue = errors.New("delivery queue is empty")

// EventSink receives engine events in Seq order. HandleEvent is called
// outside the engine lock but while later mutations wait for it, so it must
// not call back into the engine.
type EventSink interface {
	HandleEvent(ev models.EngineEvent)
}

// SinkFunc adapts a plain function to EventSink.
type SinkFunc func(ev models.EngineEvent)

func (f SinkFunc) HandleEvent(ev models.EngineEvent) { f(ev) }

// EngineOptions - 엔진 생성 옵션
type EngineOptions struct {
	Width        int
	Height       int
	Start        models.Position // 초기 지게차 위치 (도크 옆)
	TickInterval time.Duration
	Now          func() time.Time
}

// DeliveryEngine - 지게차 배송 스케줄링 엔진
//
// Owns the item store, the carrier position, the delivery history and the run
// state. Every mutation is followed by an explicit recompute of the optimized
// queue and the current path, so reads always see derived views consistent
// with the latest state.
type DeliveryEngine struct {
	grid  *models.Grid
	store *ItemStore
	start models.Position

	// 시뮬레이션 상태
	carrier models.Position
	history []models.DeliveryRecord
	state   models.RunState

	// 파생 상태 (recomputeLocked 에서만 갱신)
	queue []models.Item
	path  []models.PathNode

	// 타이머 제어
	tickInterval time.Duration
	runID        uint64
	cancelRun    context.CancelFunc

	seq uint64
	now func() time.Time
	mu  sync.Mutex

	sinks      []EventSink
	sinkMu     sync.RWMutex
	dispatchMu sync.Mutex // 이벤트 전달 순서 보장
}

// NewDeliveryEngine - 엔진 생성
func NewDeliveryEngine(opts EngineOptions) (*DeliveryEngine, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("new delivery engine: grid size must be positive, got %dx%d", opts.Width, opts.Height)
	}

	grid := InitializeWarehouse(opts.Width, opts.Height)
	if !grid.InBounds(opts.Start) {
		return nil, fmt.Errorf("new delivery engine: start position (%d,%d) is outside the %dx%d grid",
			opts.Start.X, opts.Start.Y, opts.Width, opts.Height)
	}

	tick := opts.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	store := NewItemStore(grid)
	store.now = now

	e := &DeliveryEngine{
		grid:         grid,
		store:        store,
		start:        opts.Start,
		carrier:      opts.Start,
		history:      make([]models.DeliveryRecord, 0),
		state:        models.RunStopped,
		tickInterval: tick,
		now:          now,
	}
	e.recomputeLocked()

	return e, nil
}

// AddSink registers an event sink.
func (e *DeliveryEngine) AddSink(s EventSink) {
	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()
	e.sinks = append(e.sinks, s)
}

// ========================================
// 물품 / 조회
// ========================================

// AddItem - 새 배송 요청 추가
func (e *DeliveryEngine) AddItem(weight float64, target models.Position, aisle string) (models.Item, error) {
	e.mu.Lock()
	item, err := e.store.Add(weight, target, aisle)
	if err != nil {
		e.mu.Unlock()
		return models.Item{}, err
	}
	e.recomputeLocked()
	ev := e.eventLocked(models.EventItemAdded, &item, nil, "")

	log.Printf("📦 [Engine] 물품 추가: %s (aisle=%s, weight=%.1f, target=(%d,%d))",
		item.ID, item.Aisle, item.Weight, item.Target.X, item.Target.Y)
	e.unlockAndDispatch(ev)
	return cloneItem(item), nil
}

// UndeliveredQueue - 최적화된 배송 큐 (energy score 포함)
func (e *DeliveryEngine) UndeliveredQueue() []models.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneItems(e.queue)
}

// CurrentPath - 다음 목적지까지의 경로
func (e *DeliveryEngine) CurrentPath() []models.PathNode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return clonePath(e.path)
}

// CarrierPosition - 현재 지게차 위치
func (e *DeliveryEngine) CarrierPosition() models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.carrier
}

// History - 배송 완료 기록
func (e *DeliveryEngine) History() []models.DeliveryRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.DeliveryRecord, len(e.history))
	for i, rec := range e.history {
		out[i] = cloneRecord(rec)
	}
	return out
}

// RunState - 현재 루프 상태
func (e *DeliveryEngine) RunState() models.RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Items - 전체 물품 (배송 완료 포함)
func (e *DeliveryEngine) Items() []models.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneItems(e.store.All())
}

// Grid returns the static layout. It is never mutated.
func (e *DeliveryEngine) Grid() *models.Grid {
	return e.grid
}

func (e *DeliveryEngine) TickInterval() time.Duration {
	return e.tickInterval
}

// Progress - 진행 현황
func (e *DeliveryEngine) Progress() models.Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progressLocked()
}

// EnergySummary - 배송별 에너지 통계
func (e *DeliveryEngine) EnergySummary() models.EnergySummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	summary := models.EnergySummary{
		TotalDeliveries: len(e.history),
		Series:          make([]models.EnergyPoint, 0, len(e.history)),
	}
	for i, rec := range e.history {
		summary.TotalEnergy += rec.Energy
		summary.Series = append(summary.Series, models.EnergyPoint{
			Label:  fmt.Sprintf("#%d", i+1),
			Energy: rec.Energy,
			Aisle:  rec.Item.Aisle,
			Weight: rec.Item.Weight,
		})
	}
	if summary.TotalDeliveries > 0 {
		summary.AverageEnergy = summary.TotalEnergy / float64(summary.TotalDeliveries)
	}
	return summary
}

// Snapshot - 현재 상태 스냅샷
func (e *DeliveryEngine) Snapshot() models.EngineSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// ========================================
// 루프 제어
// ========================================

// Start - 자동 배송 시작
//
// Rejected with ErrEmptyQueue when there is nothing to deliver; a no-op when
// the loop is already running.
func (e *DeliveryEngine) Start() error {
	e.mu.Lock()
	if e.state == models.RunRunning {
		e.mu.Unlock()
		return nil
	}
	if len(e.queue) == 0 {
		e.mu.Unlock()
		return ErrEmptyQueue
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.runID++
	runID := e.runID
	e.cancelRun = cancel
	e.state = models.RunRunning
	ev := e.eventLocked(models.EventRunStarted, nil, nil, "")

	log.Printf("🚀 [Engine] 자동 배송 시작 (interval: %v)", e.tickInterval)
	go e.runLoop(ctx, runID)
	e.unlockAndDispatch(ev)
	return nil
}

// Pause - 자동 배송 일시정지 (이미 정지 상태면 무시)
func (e *DeliveryEngine) Pause() {
	e.halt("paused")
}

// Stop - 자동 배송 중지
func (e *DeliveryEngine) Stop() {
	e.halt("stopped")
}

// halt stops the loop. It returns only after any in-flight dispatch has
// finished, so sinks can be closed right after Stop.
func (e *DeliveryEngine) halt(reason string) {
	e.mu.Lock()
	if !e.stopLocked() {
		e.unlockAndDispatch()
		return
	}
	ev := e.eventLocked(models.EventRunPaused, nil, nil, reason)

	log.Printf("🛑 [Engine] 자동 배송 중지 (%s)", reason)
	e.unlockAndDispatch(ev)
}

// Reset - 전체 초기화
//
// Stops the loop, clears every item and the history, and moves the carrier
// back to its start cell.
func (e *DeliveryEngine) Reset() {
	e.mu.Lock()
	e.stopLocked()
	e.store.Clear()
	e.carrier = e.start
	e.history = make([]models.DeliveryRecord, 0)
	e.recomputeLocked()
	ev := e.eventLocked(models.EventSimulationReset, nil, nil, "")

	log.Println("🔄 [Engine] 시뮬레이션 초기화")
	e.unlockAndDispatch(ev)
}

// DeliverNext delivers the head of the optimized queue.
// It returns false when the queue is empty.
func (e *DeliveryEngine) DeliverNext() (*models.DeliveryRecord, bool) {
	e.mu.Lock()
	rec, ok := e.deliverNextLocked()
	if !ok {
		e.mu.Unlock()
		return nil, false
	}
	events := []models.EngineEvent{e.eventLocked(models.EventDeliveryCompleted, &rec.Item, &rec, "manual")}
	if ev, drained := e.drainCheckLocked(); drained {
		events = append(events, ev)
	}
	e.unlockAndDispatch(events...)

	out := cloneRecord(rec)
	return &out, true
}

// runLoop - 타이머 루프 (Running 구간마다 하나)
func (e *DeliveryEngine) runLoop(ctx context.Context, runID uint64) {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.tick(runID) {
				return
			}
		}
	}
}

// tick runs one timer-driven delivery. A tick that belongs to an earlier run
// or fires after a pause does nothing. Returns whether the loop should keep
// going.
func (e *DeliveryEngine) tick(runID uint64) bool {
	e.mu.Lock()
	if e.state != models.RunRunning || e.runID != runID {
		e.mu.Unlock()
		return false
	}

	events := make([]models.EngineEvent, 0, 2)
	if rec, ok := e.deliverNextLocked(); ok {
		events = append(events, e.eventLocked(models.EventDeliveryCompleted, &rec.Item, &rec, "tick"))
	}
	if ev, drained := e.drainCheckLocked(); drained {
		events = append(events, ev)
	}
	running := e.state == models.RunRunning
	e.unlockAndDispatch(events...)
	return running
}

// drainCheckLocked stops a running loop once the queue is empty.
func (e *DeliveryEngine) drainCheckLocked() (models.EngineEvent, bool) {
	if e.state != models.RunRunning || len(e.queue) > 0 {
		return models.EngineEvent{}, false
	}
	e.stopLocked()
	log.Println("✅ [Engine] 모든 물품 배송 완료, 자동 배송 종료")
	return e.eventLocked(models.EventQueueDrained, nil, nil, "queue_drained"), true
}

// stopLocked cancels the running timer. Calling it while stopped is a no-op.
func (e *DeliveryEngine) stopLocked() bool {
	if e.state != models.RunRunning {
		return false
	}
	e.state = models.RunStopped
	e.runID++ // 이미 예약된 tick 무효화
	if e.cancelRun != nil {
		e.cancelRun()
		e.cancelRun = nil
	}
	return true
}

// deliverNextLocked moves the carrier to the queue head, marks it delivered,
// appends the record and recomputes.
func (e *DeliveryEngine) deliverNextLocked() (models.DeliveryRecord, bool) {
	if len(e.queue) == 0 {
		return models.DeliveryRecord{}, false
	}

	next := e.queue[0]
	if _, err := e.store.MarkDelivered(next.ID); err != nil {
		// 큐와 저장소가 어긋난 경우: 기록 없이 재계산만 한다
		log.Printf("❌ [Engine] 배송 처리 실패: %v", err)
		e.recomputeLocked()
		return models.DeliveryRecord{}, false
	}

	energy := 0.0
	if next.EnergyScore != nil {
		energy = *next.EnergyScore
	}
	score := energy
	next.EnergyScore = &score

	e.carrier = next.Target
	record := models.DeliveryRecord{
		Sequence:    len(e.history) + 1,
		Item:        next,
		Energy:      energy,
		DeliveredAt: e.now(),
	}
	e.history = append(e.history, record)
	e.recomputeLocked()

	log.Printf("🚚 [Engine] 배송 완료: %s (energy score: %.1f)", next.ID, energy)
	return record, true
}

// recomputeLocked rebuilds the optimized queue and the path to its head.
func (e *DeliveryEngine) recomputeLocked() {
	e.queue = algorithms.ComputeQueue(e.store.Undelivered(), e.carrier)

	if len(e.queue) == 0 {
		e.path = make([]models.PathNode, 0)
		return
	}

	next := e.queue[0]
	e.path = algorithms.ComputePath(e.carrier, next.Target)
	log.Printf("🧭 [Engine] Route calculated to %s - energy score %.1f", next.Aisle, *next.EnergyScore)
}

func (e *DeliveryEngine) progressLocked() models.Progress {
	total := e.store.Len()
	delivered := e.store.DeliveredCount()

	p := models.Progress{
		Total:     total,
		Delivered: delivered,
		Pending:   total - delivered,
	}
	if total > 0 {
		p.Percent = float64(delivered) / float64(total) * 100
	}
	return p
}

func (e *DeliveryEngine) snapshotLocked() models.EngineSnapshot {
	return models.EngineSnapshot{
		Carrier:  e.carrier,
		State:    e.state,
		Queue:    cloneItems(e.queue),
		Path:     clonePath(e.path),
		Progress: e.progressLocked(),
	}
}

func (e *DeliveryEngine) eventLocked(eventType string, item *models.Item, rec *models.DeliveryRecord, reason string) models.EngineEvent {
	e.seq++
	if item != nil {
		c := cloneItem(*item)
		item = &c
	}
	if rec != nil {
		c := cloneRecord(*rec)
		rec = &c
	}
	return models.EngineEvent{
		Seq:       e.seq,
		Type:      eventType,
		Item:      item,
		Record:    rec,
		Reason:    reason,
		Snapshot:  e.snapshotLocked(),
		Timestamp: e.now(),
	}
}

// unlockAndDispatch releases mu and hands events to the sinks. dispatchMu is
// taken before mu is released, so sinks see events in Seq order even when a
// manual step races a tick.
func (e *DeliveryEngine) unlockAndDispatch(events ...models.EngineEvent) {
	e.dispatchMu.Lock()
	e.mu.Unlock()
	defer e.dispatchMu.Unlock()
	e.dispatch(events...)
}

// dispatch - 등록된 sink 들에게 이벤트 전달 (dispatchMu 보유, mu 미보유)
func (e *DeliveryEngine) dispatch(events ...models.EngineEvent) {
	if len(events) == 0 {
		return
	}

	e.sinkMu.RLock()
	sinks := make([]EventSink, len(e.sinks))
	copy(sinks, e.sinks)
	e.sinkMu.RUnlock()

	for _, ev := range events {
		for _, s := range sinks {
			s.HandleEvent(ev)
		}
	}
}

// cloneItem copies an item including its energy score, so callers never
// share the engine's pointer.
func cloneItem(item models.Item) models.Item {
	if item.EnergyScore != nil {
		score := *item.EnergyScore
		item.EnergyScore = &score
	}
	return item
}

func cloneItems(items []models.Item) []models.Item {
	out := make([]models.Item, len(items))
	for i, item := range items {
		out[i] = cloneItem(item)
	}
	return out
}

func cloneRecord(rec models.DeliveryRecord) models.DeliveryRecord {
	rec.Item = cloneItem(rec.Item)
	return rec
}

func clonePath(path []models.PathNode) []models.PathNode {
	out := make([]models.PathNode, len(path))
	copy(out, path)
	return out
}
