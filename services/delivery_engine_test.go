package services

import (
	"forklift-backend/models"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink collects every event it sees.
type recordingSink struct {
	mu     sync.Mutex
	events []models.EngineEvent
}

func (s *recordingSink) HandleEvent(ev models.EngineEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

func newTestEngine(t *testing.T, tick time.Duration) *DeliveryEngine {
	t.Helper()
	e, err := NewDeliveryEngine(EngineOptions{
		Width:        20,
		Height:       15,
		Start:        models.Position{X: 1, Y: 1},
		TickInterval: tick,
	})
	require.NoError(t, err)
	t.Cleanup(e.Stop)
	return e
}

func TestNewDeliveryEngine_RejectsBadOptions(t *testing.T) {
	_, err := NewDeliveryEngine(EngineOptions{Width: 0, Height: 15})
	assert.Error(t, err)

	_, err = NewDeliveryEngine(EngineOptions{Width: 20, Height: 15, Start: models.Position{X: 20, Y: 1}})
	assert.Error(t, err)

	e, err := NewDeliveryEngine(EngineOptions{Width: 20, Height: 15, Start: models.Position{X: 1, Y: 1}})
	require.NoError(t, err)
	assert.Equal(t, DefaultTickInterval, e.TickInterval())
	assert.Equal(t, models.RunStopped, e.RunState())
	assert.Empty(t, e.UndeliveredQueue())
	assert.Empty(t, e.CurrentPath())
}

func TestDeliveryEngine_LighterNearItemFirst(t *testing.T) {
	e := newTestEngine(t, time.Hour)

	a, err := e.AddItem(10, models.Position{X: 3, Y: 1}, "A1")
	require.NoError(t, err)
	b, err := e.AddItem(5, models.Position{X: 1, Y: 3}, "A1")
	require.NoError(t, err)

	queue := e.UndeliveredQueue()
	require.Len(t, queue, 2)
	assert.Equal(t, b.ID, queue[0].ID)
	assert.Equal(t, a.ID, queue[1].ID)
	assert.Equal(t, 10.0, *queue[0].EnergyScore)
	assert.Equal(t, 20.0, *queue[1].EnergyScore)

	path := e.CurrentPath()
	require.Len(t, path, 2)
	assert.Equal(t, models.Position{X: 1, Y: 2}, path[0].Position)
	assert.Equal(t, models.Position{X: 1, Y: 3}, path[1].Position)
}

func TestDeliveryEngine_AddItemValidation(t *testing.T) {
	e := newTestEngine(t, time.Hour)

	_, err := e.AddItem(0, models.Position{X: 1, Y: 1}, "X")
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "weight", verr.Field)
	assert.Empty(t, e.Items())
	assert.Empty(t, e.UndeliveredQueue())
}

func TestDeliveryEngine_DeliverNext(t *testing.T) {
	e := newTestEngine(t, time.Hour)
	sink := &recordingSink{}
	e.AddSink(sink)

	a, _ := e.AddItem(10, models.Position{X: 3, Y: 1}, "A1")
	b, _ := e.AddItem(5, models.Position{X: 1, Y: 3}, "A1")

	rec, ok := e.DeliverNext()
	require.True(t, ok)
	assert.Equal(t, b.ID, rec.Item.ID)
	assert.Equal(t, 10.0, rec.Energy)
	assert.Equal(t, 1, rec.Sequence)
	assert.False(t, rec.Item.Delivered, "record keeps the pre-delivery snapshot")

	assert.Equal(t, b.Target, e.CarrierPosition())

	history := e.History()
	require.Len(t, history, 1)
	assert.Equal(t, b.ID, history[0].Item.ID)
	assert.Equal(t, 10.0, history[0].Energy)

	// queue and path recomputed from the new carrier position (1,3)
	queue := e.UndeliveredQueue()
	require.Len(t, queue, 1)
	assert.Equal(t, a.ID, queue[0].ID)
	assert.Equal(t, 40.0, *queue[0].EnergyScore) // 10 × (2 + 2)
	path := e.CurrentPath()
	require.Len(t, path, 4)
	assert.Equal(t, models.Position{X: 3, Y: 1}, path[3].Position)

	for _, it := range e.Items() {
		if it.ID == b.ID {
			assert.True(t, it.Delivered)
		}
	}

	rec, ok = e.DeliverNext()
	require.True(t, ok)
	assert.Equal(t, a.ID, rec.Item.ID)
	assert.Equal(t, 2, rec.Sequence)

	_, ok = e.DeliverNext()
	assert.False(t, ok, "empty queue is a no-op")
	assert.Len(t, e.History(), 2)
	assert.Empty(t, e.CurrentPath())

	assert.Equal(t, []string{
		models.EventItemAdded,
		models.EventItemAdded,
		models.EventDeliveryCompleted,
		models.EventDeliveryCompleted,
	}, sink.types())
}

func TestDeliveryEngine_StartRejectsEmptyQueue(t *testing.T) {
	e := newTestEngine(t, time.Hour)

	assert.ErrorIs(t, e.Start(), ErrEmptyQueue)
	assert.Equal(t, models.RunStopped, e.RunState())
}

func TestDeliveryEngine_StartPauseIdempotent(t *testing.T) {
	e := newTestEngine(t, time.Hour)
	sink := &recordingSink{}
	e.AddSink(sink)
	_, _ = e.AddItem(1, models.Position{X: 5, Y: 5}, "A")

	require.NoError(t, e.Start())
	require.NoError(t, e.Start())
	assert.Equal(t, models.RunRunning, e.RunState())

	e.Pause()
	e.Pause()
	e.Stop()
	assert.Equal(t, models.RunStopped, e.RunState())

	assert.Equal(t, []string{models.EventItemAdded, models.EventRunStarted, models.EventRunPaused}, sink.types())
}

func TestDeliveryEngine_TimerDeliversUntilDrained(t *testing.T) {
	e := newTestEngine(t, 10*time.Millisecond)
	sink := &recordingSink{}
	e.AddSink(sink)

	_, _ = e.AddItem(1, models.Position{X: 5, Y: 5}, "A")
	_, _ = e.AddItem(2, models.Position{X: 7, Y: 3}, "B")
	_, _ = e.AddItem(3, models.Position{X: 2, Y: 9}, "A")

	require.NoError(t, e.Start())

	require.Eventually(t, func() bool {
		return e.RunState() == models.RunStopped
	}, 2*time.Second, 5*time.Millisecond)

	assert.Len(t, e.History(), 3)
	assert.Empty(t, e.UndeliveredQueue())
	assert.Equal(t, models.Progress{Total: 3, Delivered: 3, Pending: 0, Percent: 100}, e.Progress())

	types := sink.types()
	require.NotEmpty(t, types)
	assert.Equal(t, models.EventQueueDrained, types[len(types)-1])
}

func TestDeliveryEngine_StaleTickIsIgnored(t *testing.T) {
	e := newTestEngine(t, time.Hour)
	_, _ = e.AddItem(1, models.Position{X: 5, Y: 5}, "A")

	require.NoError(t, e.Start())
	e.mu.Lock()
	staleRun := e.runID
	e.mu.Unlock()

	e.Pause()

	// a tick that was already scheduled before the pause must not deliver
	assert.False(t, e.tick(staleRun))
	assert.Empty(t, e.History())
	assert.Len(t, e.UndeliveredQueue(), 1)

	// neither may a tick from a previous run after a restart
	require.NoError(t, e.Start())
	assert.False(t, e.tick(staleRun))
	assert.Empty(t, e.History())
}

func TestDeliveryEngine_ManualStepDrainStopsLoop(t *testing.T) {
	e := newTestEngine(t, time.Hour)
	_, _ = e.AddItem(1, models.Position{X: 5, Y: 5}, "A")
	require.NoError(t, e.Start())

	_, ok := e.DeliverNext()
	require.True(t, ok)
	assert.Equal(t, models.RunStopped, e.RunState())
}

func TestDeliveryEngine_Reset(t *testing.T) {
	e := newTestEngine(t, time.Hour)
	_, _ = e.AddItem(1, models.Position{X: 5, Y: 5}, "A")
	_, _ = e.AddItem(2, models.Position{X: 6, Y: 6}, "A")
	_, _ = e.DeliverNext()
	require.NoError(t, e.Start())

	e.Reset()

	assert.Equal(t, models.RunStopped, e.RunState())
	assert.Equal(t, models.Position{X: 1, Y: 1}, e.CarrierPosition())
	assert.Empty(t, e.History())
	assert.Empty(t, e.Items())
	assert.Empty(t, e.UndeliveredQueue())
	assert.Empty(t, e.CurrentPath())
	assert.Equal(t, models.Progress{}, e.Progress())
}

func TestDeliveryEngine_HistoryIsAppendOnly(t *testing.T) {
	e := newTestEngine(t, time.Hour)
	for i := 0; i < 4; i++ {
		_, err := e.AddItem(float64(i+1), models.Position{X: i + 2, Y: 3}, "A")
		require.NoError(t, err)
	}

	prev := 0
	var first models.DeliveryRecord
	for i := 0; i < 6; i++ {
		_, _ = e.DeliverNext()
		history := e.History()
		assert.GreaterOrEqual(t, len(history), prev)
		if i == 0 {
			first = history[0]
		}
		assert.Equal(t, first, history[0], "earlier records never change")
		prev = len(history)
	}
	assert.Equal(t, 4, prev)
}

func TestDeliveryEngine_EnergySummary(t *testing.T) {
	e := newTestEngine(t, time.Hour)
	_, _ = e.AddItem(10, models.Position{X: 3, Y: 1}, "A1")
	_, _ = e.AddItem(5, models.Position{X: 1, Y: 3}, "A1")

	assert.Equal(t, models.EnergySummary{Series: []models.EnergyPoint{}}, e.EnergySummary())

	_, _ = e.DeliverNext() // B: 10
	_, _ = e.DeliverNext() // A from (1,3): 40

	summary := e.EnergySummary()
	assert.Equal(t, 2, summary.TotalDeliveries)
	assert.Equal(t, 50.0, summary.TotalEnergy)
	assert.Equal(t, 25.0, summary.AverageEnergy)
	require.Len(t, summary.Series, 2)
	assert.Equal(t, "#1", summary.Series[0].Label)
	assert.Equal(t, 5.0, summary.Series[0].Weight)
	assert.Equal(t, "#2", summary.Series[1].Label)
	assert.Equal(t, 40.0, summary.Series[1].Energy)
}

func TestDeliveryEngine_SnapshotIsACopy(t *testing.T) {
	e := newTestEngine(t, time.Hour)
	_, _ = e.AddItem(1, models.Position{X: 5, Y: 5}, "A")

	snap := e.Snapshot()
	require.Len(t, snap.Queue, 1)
	snap.Queue[0].Aisle = "mutated"
	snap.Path[0].Step = 99

	assert.Equal(t, "A", e.UndeliveredQueue()[0].Aisle)
	assert.Equal(t, 1, e.CurrentPath()[0].Step)
}

func TestDeliveryEngine_EnergyScoreNotShared(t *testing.T) {
	e := newTestEngine(t, time.Hour)
	_, err := e.AddItem(5, models.Position{X: 1, Y: 3}, "A1")
	require.NoError(t, err)

	q := e.UndeliveredQueue()
	require.NotNil(t, q[0].EnergyScore)
	*q[0].EnergyScore = 999

	snap := e.Snapshot()
	*snap.Queue[0].EnergyScore = 777

	assert.Equal(t, 10.0, *e.UndeliveredQueue()[0].EnergyScore)

	rec, ok := e.DeliverNext()
	require.True(t, ok)
	assert.Equal(t, 10.0, rec.Energy)
	*rec.Item.EnergyScore = 1

	history := e.History()
	require.Len(t, history, 1)
	assert.Equal(t, 10.0, history[0].Energy)
	assert.Equal(t, 10.0, *history[0].Item.EnergyScore)

	*history[0].Item.EnergyScore = 2
	assert.Equal(t, 10.0, *e.History()[0].Item.EnergyScore)
}

func TestDeliveryEngine_SinksSeeEventsInSeqOrder(t *testing.T) {
	e := newTestEngine(t, time.Hour)
	_, _ = e.AddItem(5, models.Position{X: 1, Y: 3}, "A1")
	_, _ = e.AddItem(10, models.Position{X: 3, Y: 1}, "A1")

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var seqs []uint64

	// 첫 이벤트에서 멈추는 sink
	e.AddSink(SinkFunc(func(ev models.EngineEvent) {
		once.Do(func() {
			close(entered)
			<-release
		})
		mu.Lock()
		seqs = append(seqs, ev.Seq)
		mu.Unlock()
	}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.DeliverNext()
	}()
	<-entered
	go func() {
		defer wg.Done()
		e.DeliverNext()
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seqs, 2)
	assert.Less(t, seqs[0], seqs[1])
	assert.Len(t, e.History(), 2)
}

func TestDeliveryEngine_StopWaitsForInFlightDispatch(t *testing.T) {
	e := newTestEngine(t, time.Hour)
	_, _ = e.AddItem(5, models.Position{X: 1, Y: 3}, "A1")

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	e.AddSink(SinkFunc(func(ev models.EngineEvent) {
		once.Do(func() {
			close(entered)
			<-release
		})
	}))

	go e.DeliverNext()
	<-entered

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a sink was still handling an event")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the dispatch finished")
	}
}
