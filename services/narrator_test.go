package services

import (
	"forklift-backend/models"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type messageRecorder struct {
	mu   sync.Mutex
	msgs []models.WebSocketMessage
}

func (r *messageRecorder) broadcast(msg models.WebSocketMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *messageRecorder) all() []models.WebSocketMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.WebSocketMessage(nil), r.msgs...)
}

func TestBuildNarration(t *testing.T) {
	item := models.Item{ID: "item-1", Weight: 5, Target: models.Position{X: 1, Y: 3}, Aisle: "A1"}
	snap := models.EngineSnapshot{
		Carrier:  models.Position{X: 1, Y: 3},
		Queue:    []models.Item{item},
		Progress: models.Progress{Total: 2, Delivered: 1, Pending: 1, Percent: 50},
	}

	cases := []struct {
		name string
		ev   models.EngineEvent
		want string
	}{
		{
			name: "item_added",
			ev:   models.EngineEvent{Type: models.EventItemAdded, Item: &item, Snapshot: snap},
			want: "📦 새 물품 등록: 통로 A1, 5.0kg → (1, 3). 대기 1건",
		},
		{
			name: "delivery_completed",
			ev: models.EngineEvent{
				Type:     models.EventDeliveryCompleted,
				Record:   &models.DeliveryRecord{Sequence: 1, Item: item, Energy: 10},
				Snapshot: snap,
			},
			want: "✅ #1 배송 완료: 통로 A1 (1, 3), 에너지 10.0. 진행률 50%",
		},
		{
			name: "run_started",
			ev:   models.EngineEvent{Type: models.EventRunStarted, Snapshot: snap},
			want: "▶️ 배송 시작! 대기 1건, 첫 목적지 통로 A1 (1, 3)",
		},
		{
			name: "run_paused_reason",
			ev:   models.EngineEvent{Type: models.EventRunPaused, Reason: "stop", Snapshot: snap},
			want: "⏸️ 배송 일시정지 (stop). 남은 물품 1건",
		},
		{
			name: "queue_drained",
			ev:   models.EngineEvent{Type: models.EventQueueDrained, Snapshot: snap},
			want: "🏁 모든 배송 완료! 총 1건, 지게차 위치 (1, 3)",
		},
		{
			name: "reset",
			ev:   models.EngineEvent{Type: models.EventSimulationReset, Snapshot: models.EngineSnapshot{Carrier: models.Position{X: 1, Y: 1}}},
			want: "🔄 시뮬레이션 초기화. 지게차가 (1, 1)에서 대기합니다",
		},
		{
			name: "unknown",
			ev:   models.EngineEvent{Type: "something_else"},
			want: "",
		},
		{
			name: "item_added_without_item",
			ev:   models.EngineEvent{Type: models.EventItemAdded},
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, buildNarration(tc.ev))
		})
	}
}

func TestNarrator_Cooldown(t *testing.T) {
	rec := &messageRecorder{}
	n := NewNarrator(5*time.Second, rec.broadcast, nil, nil)

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return clock }

	item := models.Item{ID: "item-1", Weight: 1, Aisle: "A"}
	added := NarrationEvent{Priority: narrationPriority[models.EventItemAdded], Event: models.EngineEvent{Type: models.EventItemAdded, Item: &item}}

	assert.True(t, n.narrate(added))
	assert.False(t, n.narrate(added), "low priority event inside cooldown is skipped")

	drained := NarrationEvent{Priority: narrationPriority[models.EventQueueDrained], Event: models.EngineEvent{Type: models.EventQueueDrained}}
	assert.True(t, n.narrate(drained), "urgent events ignore the cooldown")

	clock = clock.Add(6 * time.Second)
	assert.True(t, n.narrate(added))

	msgs := rec.all()
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.Equal(t, models.MessageTypeNarration, m.Type)
	}
	data := msgs[1].Data.(models.NarrationData)
	assert.Equal(t, models.EventQueueDrained, data.EventType)
}

func TestNarrator_EmptyNarrationKeepsCooldown(t *testing.T) {
	rec := &messageRecorder{}
	n := NewNarrator(5*time.Second, rec.broadcast, nil, nil)

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return clock }

	empty := NarrationEvent{Priority: narrationPriority[models.EventItemAdded], Event: models.EngineEvent{Type: models.EventItemAdded}}
	assert.False(t, n.narrate(empty))
	assert.True(t, n.lastNarration.IsZero())

	item := models.Item{ID: "item-1", Weight: 1, Aisle: "A"}
	added := NarrationEvent{Priority: narrationPriority[models.EventItemAdded], Event: models.EngineEvent{Type: models.EventItemAdded, Item: &item}}
	assert.True(t, n.narrate(added), "an empty narration does not start the cooldown")
	assert.Len(t, rec.all(), 1)
}

func TestNarrator_StartStopDeliversQueuedEvents(t *testing.T) {
	rec := &messageRecorder{}
	n := NewNarrator(0, rec.broadcast, nil, nil)
	n.Start()
	defer n.Stop()

	n.HandleEvent(models.EngineEvent{Type: models.EventSimulationReset})

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, 2*time.Second, 5*time.Millisecond)

	n.Stop()
	n.Stop()
}

func TestNarrator_Disabled(t *testing.T) {
	rec := &messageRecorder{}
	n := NewNarrator(0, rec.broadcast, nil, nil)
	n.SetEnabled(false)

	n.HandleEvent(models.EngineEvent{Type: models.EventSimulationReset})
	assert.Len(t, n.eventQueue, 0)
}

func TestNarrator_RecordsToEventLog(t *testing.T) {
	el := newTestLogger(t, 100)
	n := NewNarrator(0, nil, el, nil)

	ok := n.narrate(NarrationEvent{Priority: 100, Event: models.EngineEvent{Type: models.EventQueueDrained}})
	require.True(t, ok)
	el.Flush()

	logs, err := el.LogsByEventType("narration", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.EventQueueDrained, logs[0].Reason)
	assert.Contains(t, logs[0].Narration, "모든 배송 완료")
}
