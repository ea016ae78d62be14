package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/modal"
	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/worker"
)

type fakeSubscription struct {
	ch     chan model.ChangeEvent
	once   sync.Once
	closed chan struct{}
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{ch: make(chan model.ChangeEvent, 16), closed: make(chan struct{})}
}

func (s *fakeSubscription) Events() <-chan model.ChangeEvent { return s.ch }

func (s *fakeSubscription) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// MockStore mocks the writes; List blocks until release is closed so tests
// control when the initial load lands.
type MockStore struct {
	mock.Mock
	release chan struct{}

	mu         sync.Mutex
	sub        *fakeSubscription
	tasks      []model.Task
	listErr    error
	subscribes int
}

func newMockStore(tasks ...model.Task) *MockStore {
	release := make(chan struct{})
	close(release)
	return &MockStore{sub: newFakeSubscription(), tasks: tasks, release: release}
}

func (m *MockStore) List(ctx context.Context) ([]model.Task, error) {
	select {
	case <-m.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Task(nil), m.tasks...), m.listErr
}

func (m *MockStore) Subscribe(context.Context) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribes++
	return m.sub, nil
}

// endStream closes the current subscription the way the server does when it
// evicts a client, after swapping in the rows and subscription the next
// session will see.
func (m *MockStore) endStream(tasks ...model.Task) *fakeSubscription {
	m.mu.Lock()
	old := m.sub
	m.sub = newFakeSubscription()
	m.tasks = tasks
	m.mu.Unlock()
	close(old.ch)
	return old
}

func (m *MockStore) subscribeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribes
}

func (m *MockStore) InsertOnce(ctx context.Context, key string, fields model.TaskFields) (model.Task, error) {
	args := m.Called(ctx, key, fields)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockStore) Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	args := m.Called(ctx, id, patch)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type harness struct {
	board *Board
	store *MockStore
	pool  *worker.Pool
	stop  func()
}

func startBoard(t *testing.T, store *MockStore, onResult ...func(worker.Result)) *harness {
	t.Helper()
	logger := zap.NewNop()
	pool := worker.NewPool(logger, 2, 8)
	for _, fn := range onResult {
		pool.OnResult(fn)
	}
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	b := New(store, pool, logger)
	b.resync = 10 * time.Millisecond
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx)
	}()

	h := &harness{board: b, store: store, pool: pool}
	h.stop = func() {
		cancel()
		<-done
		pool.Stop()
	}
	t.Cleanup(h.stop)
	return h
}

func waitLoaded(t *testing.T, b *Board) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return !b.Snapshot().Loading }, 2*time.Second, 5*time.Millisecond)
	return b.Snapshot()
}

func TestBoard_InitialLoad(t *testing.T) {
	store := newMockStore(
		task("a", "A", model.StatusTodo),
		task("b", "B", model.StatusDone),
	)
	store.release = make(chan struct{})
	h := startBoard(t, store)

	snap := h.board.Snapshot()
	assert.True(t, snap.Loading)
	assert.Len(t, snap.Columns, 3)

	close(store.release)
	snap = waitLoaded(t, h.board)

	assert.NoError(t, snap.LoadErr)
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, []string{"a"}, ids(snap.Columns[0].Tasks))
	assert.Empty(t, snap.Columns[1].Tasks)
	assert.Equal(t, []string{"b"}, ids(snap.Columns[2].Tasks))
}

func TestBoard_LoadFailureLeavesBoardEmpty(t *testing.T) {
	store := newMockStore(task("a", "A", model.StatusTodo))
	store.listErr = errors.New("connection refused")
	h := startBoard(t, store)

	snap := waitLoaded(t, h.board)

	assert.EqualError(t, snap.LoadErr, "connection refused")
	assert.Zero(t, snap.Total)
	for _, col := range snap.Columns {
		assert.Empty(t, col.Tasks)
	}
}

func TestBoard_EventsDuringLoadAreReplayed(t *testing.T) {
	store := newMockStore(task("a", "A", model.StatusTodo))
	store.release = make(chan struct{})
	h := startBoard(t, store)

	store.sub.ch <- model.InsertEvent(task("b", "B", model.StatusTodo))
	store.sub.ch <- model.UpdateEvent(task("a", "A", model.StatusDone))
	require.Eventually(t, func() bool { return len(store.sub.ch) == 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, h.board.Snapshot().Loading)

	close(store.release)
	snap := waitLoaded(t, h.board)

	assert.Equal(t, []string{"b"}, ids(snap.Columns[0].Tasks))
	assert.Equal(t, []string{"a"}, ids(snap.Columns[2].Tasks))
}

func TestBoard_RealtimeReconciliation(t *testing.T) {
	store := newMockStore(
		task("a", "A", model.StatusTodo),
		task("b", "B", model.StatusTodo),
		task("c", "C", model.StatusTodo),
	)
	h := startBoard(t, store)
	waitLoaded(t, h.board)

	changes := make(chan struct{}, 16)
	h.board.OnChange(func() { changes <- struct{}{} })

	store.sub.ch <- model.UpdateEvent(task("b", "B edited", model.StatusTodo))
	<-changes
	snap := h.board.Snapshot()
	assert.Equal(t, []string{"a", "b", "c"}, ids(snap.Columns[0].Tasks), "positions preserved")
	assert.Equal(t, "B edited", snap.Columns[0].Tasks[1].Title)

	store.sub.ch <- model.InsertEvent(task("b", "B edited", model.StatusTodo))
	store.sub.ch <- model.DeleteEvent("ghost", time.Now())
	store.sub.ch <- model.InsertEvent(task("d", "D", model.StatusInProgress))
	<-changes

	snap = h.board.Snapshot()
	assert.Equal(t, 4, snap.Total, "duplicate insert and unknown delete change nothing")
	assert.Equal(t, []string{"d"}, ids(snap.Columns[1].Tasks))

	store.sub.ch <- model.DeleteEvent("a", time.Now())
	<-changes
	assert.Equal(t, []string{"b", "c"}, ids(h.board.Snapshot().Columns[0].Tasks))
}

func TestBoard_ReleasesSubscription(t *testing.T) {
	store := newMockStore()
	h := startBoard(t, store)
	waitLoaded(t, h.board)

	h.stop()

	select {
	case <-store.sub.closed:
	case <-time.After(time.Second):
		t.Fatal("subscription not released")
	}
}

func TestBoard_ReloadsAfterStreamEnds(t *testing.T) {
	store := newMockStore(task("a", "A", model.StatusTodo))
	h := startBoard(t, store)
	require.Equal(t, 1, waitLoaded(t, h.board).Total)

	old := store.endStream(
		task("a", "A", model.StatusDone),
		task("b", "B", model.StatusTodo),
	)

	require.Eventually(t, func() bool { return h.board.Snapshot().Total == 2 }, 2*time.Second, 5*time.Millisecond)
	snap := h.board.Snapshot()
	assert.NoError(t, snap.LoadErr)
	assert.Equal(t, []string{"b"}, ids(snap.Columns[0].Tasks))
	assert.Equal(t, []string{"a"}, ids(snap.Columns[2].Tasks))
	assert.Equal(t, 2, store.subscribeCount())

	select {
	case <-old.closed:
	case <-time.After(time.Second):
		t.Fatal("ended subscription not released")
	}

	// the new stream is live
	store.sub.ch <- model.DeleteEvent("b", time.Now())
	require.Eventually(t, func() bool { return h.board.Snapshot().Total == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestBoard_Drop(t *testing.T) {
	loc := func(s model.Status, i int) *Location { return &Location{Column: s, Index: i} }

	tests := []struct {
		name       string
		drop       DropResult
		wantStatus *model.Status
	}{
		{
			name: "outside any column",
			drop: DropResult{TaskID: "a", Source: Location{model.StatusTodo, 0}},
		},
		{
			name: "same column same index",
			drop: DropResult{TaskID: "a", Source: Location{model.StatusTodo, 0}, Destination: loc(model.StatusTodo, 0)},
		},
		{
			name: "unknown column",
			drop: DropResult{TaskID: "a", Source: Location{model.StatusTodo, 0}, Destination: loc("archived", 0)},
		},
		{
			name:       "another column",
			drop:       DropResult{TaskID: "a", Source: Location{model.StatusTodo, 0}, Destination: loc(model.StatusDone, 0)},
			wantStatus: ptr(model.StatusDone),
		},
		{
			name:       "same column other index",
			drop:       DropResult{TaskID: "a", Source: Location{model.StatusTodo, 0}, Destination: loc(model.StatusTodo, 1)},
			wantStatus: ptr(model.StatusTodo),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore(task("a", "A", model.StatusTodo), task("b", "B", model.StatusTodo))
			if tt.wantStatus != nil {
				store.On("Update", mock.Anything, "a", model.StatusPatch(*tt.wantStatus)).
					Return(task("a", "A", *tt.wantStatus), nil).Once()
			}
			h := startBoard(t, store)
			waitLoaded(t, h.board)

			dispatched, err := h.board.Drop(tt.drop)
			h.stop()

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus != nil, dispatched)
			if tt.wantStatus == nil {
				store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			store.AssertNumberOfCalls(t, "Update", 1)
			store.AssertExpectations(t)
		})
	}
}

func TestBoard_DropFailureIsNotRolledBack(t *testing.T) {
	store := newMockStore(task("a", "A", model.StatusTodo))
	store.On("Update", mock.Anything, "a", mock.Anything).Return(model.Task{}, errors.New("timeout")).Once()
	results := make(chan worker.Result, 1)
	h := startBoard(t, store, func(r worker.Result) { results <- r })
	waitLoaded(t, h.board)

	dispatched, err := h.board.Drop(DropResult{
		TaskID:      "a",
		Source:      Location{model.StatusTodo, 0},
		Destination: &Location{Column: model.StatusDone},
	})
	require.NoError(t, err)
	require.True(t, dispatched)

	select {
	case r := <-results:
		assert.EqualError(t, r.Err, "timeout")
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}
	snap := h.board.Snapshot()
	assert.Equal(t, []string{"a"}, ids(snap.Columns[0].Tasks), "board waits for the echo")
	store.AssertNumberOfCalls(t, "Update", 1)
}

func TestBoard_DropDoesNotBlockOnFullQueue(t *testing.T) {
	store := newMockStore(task("a", "A", model.StatusTodo))
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	store.On("Update", mock.Anything, "a", mock.Anything).
		Run(func(mock.Arguments) {
			started <- struct{}{}
			<-release
		}).
		Return(task("a", "A", model.StatusDone), nil)

	logger := zap.NewNop()
	pool := worker.NewPool(logger, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	b := New(store, pool, logger)
	t.Cleanup(func() {
		close(release)
		cancel()
		pool.Stop()
	})

	move := DropResult{
		TaskID:      "a",
		Source:      Location{model.StatusTodo, 0},
		Destination: &Location{Column: model.StatusDone},
	}

	// one write in flight, one queued
	_, err := b.Drop(move)
	require.NoError(t, err)
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first write never started")
	}
	_, err = b.Drop(move)
	require.NoError(t, err)

	returned := make(chan error, 1)
	go func() {
		_, err := b.Drop(move)
		returned <- err
	}()
	select {
	case err := <-returned:
		assert.ErrorIs(t, err, worker.ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("Drop blocked on a full queue")
	}
}

func TestBoard_Modals(t *testing.T) {
	store := newMockStore(model.Task{
		ID: "a", Title: "A", Description: "d", Priority: model.PriorityHigh, Status: model.StatusDone,
	})
	h := startBoard(t, store)
	waitLoaded(t, h.board)

	m := h.board.NewTask()
	assert.Equal(t, modal.ModeCreate, m.Mode())
	assert.Equal(t, modal.DefaultForm(), m.Form)

	m, ok := h.board.EditTask("a")
	require.True(t, ok)
	assert.Equal(t, modal.ModeEdit, m.Mode())
	assert.Equal(t, "a", m.TaskID())
	assert.Equal(t, model.TaskFields{Title: "A", Description: "d", Priority: model.PriorityHigh, Status: model.StatusDone}, m.Form)

	_, ok = h.board.EditTask("missing")
	assert.False(t, ok)
}

func ptr[T any](v T) *T { return &v }
