package resource

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
	_ "github.com/ovmcloud/ocfs2-manager/pkg/testutil"
)

func TestEventBus_DeliversOnlySubscribedKinds(t *testing.T) {
	bus := NewEventBus()
	l := newRecordingListener("l1")

	require.NoError(t, bus.Register(l, EventDeleteHostAfter))

	ctx := context.Background()
	record := &host.Record{Id: 1}
	require.NoError(t, bus.Fire(ctx, NewDeleteHostEvent(EventDeleteHostBefore, record)))
	require.NoError(t, bus.Fire(ctx, NewDeleteHostEvent(EventDeleteHostAfter, record)))
	require.NoError(t, bus.Fire(ctx, NewMaintenanceEvent(EventPrepareMaintenanceAfter, 1)))

	assert.Equal(t, []EventKind{EventDeleteHostAfter}, l.getReceived())
}

func TestEventBus_AllHooksDispatched(t *testing.T) {
	bus := NewEventBus()
	l := newRecordingListener("l1")

	var all []EventKind
	for kind := range handlers {
		all = append(all, kind)
	}
	require.NoError(t, bus.Register(l, all...))

	ctx := context.Background()
	for _, e := range []*Event{
		NewDiscoverBeforeEvent(&DiscoverRequest{DataCenterId: 1}),
		NewDiscoverAfterEvent(nil),
		NewDeleteHostEvent(EventDeleteHostBefore, &host.Record{Id: 1}),
		NewDeleteHostEvent(EventDeleteHostAfter, &host.Record{Id: 1}),
		NewMaintenanceEvent(EventCancelMaintenanceBefore, 1),
		NewMaintenanceEvent(EventCancelMaintenanceAfter, 1),
		NewMaintenanceEvent(EventPrepareMaintenanceBefore, 1),
		NewMaintenanceEvent(EventPrepareMaintenanceAfter, 1),
	} {
		require.NoError(t, bus.Fire(ctx, e))
	}

	assert.Equal(t, []EventKind{
		EventDiscoverBefore,
		EventDiscoverAfter,
		EventDeleteHostBefore,
		EventDeleteHostAfter,
		EventCancelMaintenanceBefore,
		EventCancelMaintenanceAfter,
		EventPrepareMaintenanceBefore,
		EventPrepareMaintenanceAfter,
	}, l.getReceived())
}

func TestEventBus_RegisterIsIdempotent(t *testing.T) {
	bus := NewEventBus()
	l := newRecordingListener("l1")

	require.NoError(t, bus.Register(l, EventDeleteHostAfter))
	require.NoError(t, bus.Register(l, EventDeleteHostAfter))

	require.NoError(t, bus.Fire(context.Background(), NewDeleteHostEvent(EventDeleteHostAfter, &host.Record{Id: 1})))
	assert.Len(t, l.getReceived(), 1)
}

func TestEventBus_RegisterUnknownKind(t *testing.T) {
	bus := NewEventBus()
	assert.Error(t, bus.Register(newRecordingListener("l1"), EventUnknown))
	assert.Error(t, bus.Fire(context.Background(), &Event{Kind: EventUnknown}))
}

func TestEventBus_Unregister(t *testing.T) {
	bus := NewEventBus()
	l1 := newRecordingListener("l1")
	l2 := newRecordingListener("l2")

	require.NoError(t, bus.Register(l1, EventDeleteHostAfter, EventDiscoverAfter))
	require.NoError(t, bus.Register(l2, EventDeleteHostAfter))

	bus.Unregister(l1)

	ctx := context.Background()
	require.NoError(t, bus.Fire(ctx, NewDeleteHostEvent(EventDeleteHostAfter, &host.Record{Id: 1})))
	require.NoError(t, bus.Fire(ctx, NewDiscoverAfterEvent(nil)))

	assert.Empty(t, l1.getReceived())
	assert.Equal(t, []EventKind{EventDeleteHostAfter}, l2.getReceived())
}

func TestEventBus_ErrorsAndPanicsAreCollected(t *testing.T) {
	bus := NewEventBus()
	failing := newRecordingListener("failing")
	failing.err = errors.New("boom")
	panicking := newRecordingListener("panicking")
	panicking.panic = true
	healthy := newRecordingListener("healthy")

	for _, l := range []*recordingListener{failing, panicking, healthy} {
		require.NoError(t, bus.Register(l, EventDeleteHostAfter))
	}

	err := bus.Fire(context.Background(), NewDeleteHostEvent(EventDeleteHostAfter, &host.Record{Id: 1}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing: boom")
	assert.Contains(t, err.Error(), "panicking")

	// Delivery continues past failing listeners
	assert.Len(t, healthy.getReceived(), 1)
}

type recordingListener struct {
	name  string
	err   error
	panic bool

	mu       sync.Mutex
	received []EventKind
}

func newRecordingListener(name string) *recordingListener {
	return &recordingListener{name: name}
}

func (l *recordingListener) record(kind EventKind) error {
	l.mu.Lock()
	l.received = append(l.received, kind)
	l.mu.Unlock()

	if l.panic {
		panic("listener panic")
	}
	return l.err
}

func (l *recordingListener) getReceived() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()

	copied := make([]EventKind, len(l.received))
	copy(copied, l.received)
	return copied
}

func (l *recordingListener) Name() string {
	return l.name
}

func (l *recordingListener) ProcessDiscoverEventBefore(_ context.Context, _ *DiscoverRequest) error {
	return l.record(EventDiscoverBefore)
}

func (l *recordingListener) ProcessDiscoverEventAfter(_ context.Context, _ []*DiscoveredResource) error {
	return l.record(EventDiscoverAfter)
}

func (l *recordingListener) ProcessDeleteHostEventBefore(_ context.Context, _ *host.Record) error {
	return l.record(EventDeleteHostBefore)
}

func (l *recordingListener) ProcessDeleteHostEventAfter(_ context.Context, _ *host.Record) error {
	return l.record(EventDeleteHostAfter)
}

func (l *recordingListener) ProcessCancelMaintenanceEventBefore(_ context.Context, _ uint64) error {
	return l.record(EventCancelMaintenanceBefore)
}

func (l *recordingListener) ProcessCancelMaintenanceEventAfter(_ context.Context, _ uint64) error {
	return l.record(EventCancelMaintenanceAfter)
}

func (l *recordingListener) ProcessPrepareMaintenanceEventBefore(_ context.Context, _ uint64) error {
	return l.record(EventPrepareMaintenanceBefore)
}

func (l *recordingListener) ProcessPrepareMaintenanceEventAfter(_ context.Context, _ uint64) error {
	return l.record(EventPrepareMaintenanceAfter)
}
