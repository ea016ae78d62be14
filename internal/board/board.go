package board

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/modal"
	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/worker"
)

// Store is the remote task table as the board sees it.
type Store interface {
	List(ctx context.Context) ([]model.Task, error)
	InsertOnce(ctx context.Context, key string, fields model.TaskFields) (model.Task, error)
	Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error)
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription delivers every change to the task table, including the ones
// this client made. Events is closed when the subscription ends.
type Subscription interface {
	Events() <-chan model.ChangeEvent
	Close() error
}

// Dispatcher runs writes the board does not wait for.
type Dispatcher interface {
	Submit(job worker.Job) error
}

type Location struct {
	Column model.Status
	Index  int
}

// DropResult describes a finished drag. Destination is nil when the card was
// dropped outside any column.
type DropResult struct {
	TaskID      string
	Source      Location
	Destination *Location
}

type Snapshot struct {
	Loading bool
	LoadErr error
	Columns []Column
	Total   int
}

type Board struct {
	store    Store
	dispatch Dispatcher
	logger   *zap.Logger
	resync   time.Duration

	mu       sync.RWMutex
	cache    *Cache
	loading  bool
	loadErr  error
	onChange func()
}

func New(store Store, dispatch Dispatcher, logger *zap.Logger) *Board {
	return &Board{
		store:    store,
		dispatch: dispatch,
		logger:   logger,
		resync:   time.Second,
		cache:    NewCache(),
		loading:  true,
	}
}

// OnChange sets a callback invoked after every state change. Set it before Run.
func (b *Board) OnChange(fn func()) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

type loadResult struct {
	tasks []model.Task
	err   error
}

// Run loads the task list and keeps it in sync until ctx is done. The
// subscription is opened before the fetch; events that arrive while the fetch
// is in flight are applied on top of its result. When the server ends the
// stream, Run subscribes again and reloads.
func (b *Board) Run(ctx context.Context) {
	for initial := true; ; initial = false {
		if !b.session(ctx, initial) {
			return
		}
		b.logger.Warn("realtime subscription closed, reloading")
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.resync):
		}
	}
}

// session runs one subscribe-load-follow cycle. It reports whether the cycle
// has to be repeated.
func (b *Board) session(ctx context.Context, initial bool) bool {
	var events <-chan model.ChangeEvent
	sub, err := b.store.Subscribe(ctx)
	switch {
	case err == nil:
		defer sub.Close()
		events = sub.Events()
	case initial:
		// the board still loads, just without live updates
		b.logger.Error("realtime subscription failed", zap.Error(err))
	default:
		b.logger.Error("realtime resubscribe failed", zap.Error(err))
		b.setLoadErr(err)
		return true
	}

	loaded := make(chan loadResult, 1)
	go func() {
		tasks, err := b.store.List(ctx)
		loaded <- loadResult{tasks: tasks, err: err}
	}()

	loading := true
	var pending []model.ChangeEvent
	for {
		select {
		case <-ctx.Done():
			return false
		case res := <-loaded:
			loaded = nil
			loading = false
			b.finishLoad(res, pending)
			pending = nil
		case ev, ok := <-events:
			if !ok {
				return ctx.Err() == nil
			}
			if loading {
				pending = append(pending, ev)
				continue
			}
			b.apply(ev)
		}
	}
}

func (b *Board) finishLoad(res loadResult, pending []model.ChangeEvent) {
	b.mu.Lock()
	b.loading = false
	if res.err != nil {
		b.loadErr = res.err
		b.mu.Unlock()
		b.logger.Error("failed to load tasks", zap.Error(res.err))
		b.notify()
		return
	}
	b.loadErr = nil
	b.cache.Reset(res.tasks)
	for _, ev := range pending {
		b.cache.Apply(ev)
	}
	b.mu.Unlock()
	b.logger.Debug("tasks loaded", zap.Int("count", len(res.tasks)), zap.Int("replayed", len(pending)))
	b.notify()
}

// setLoadErr marks the cached tasks as stale without dropping them.
func (b *Board) setLoadErr(err error) {
	b.mu.Lock()
	b.loadErr = err
	b.mu.Unlock()
	b.notify()
}

func (b *Board) apply(ev model.ChangeEvent) {
	b.mu.Lock()
	changed := b.cache.Apply(ev)
	b.mu.Unlock()
	if changed {
		b.notify()
	}
}

func (b *Board) notify() {
	b.mu.RLock()
	fn := b.onChange
	b.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{
		Loading: b.loading,
		LoadErr: b.loadErr,
		Columns: Partition(b.cache.Tasks()),
		Total:   b.cache.Len(),
	}
}

func (b *Board) Task(id string) (model.Task, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cache.Get(id)
}

// Drop handles the end of a drag. It reports whether a status write was
// dispatched; the board itself only changes once the write echoes back. The
// error is set when the write could not be queued.
func (b *Board) Drop(d DropResult) (bool, error) {
	if d.Destination == nil || !d.Destination.Column.Valid() {
		return false, nil
	}
	if d.Destination.Column == d.Source.Column && d.Destination.Index == d.Source.Index {
		return false, nil
	}

	id, status := d.TaskID, d.Destination.Column
	err := b.dispatch.Submit(worker.Job{
		Name:   "update_status",
		TaskID: id,
		Run: func(ctx context.Context) error {
			_, err := b.store.Update(ctx, id, model.StatusPatch(status))
			return err
		},
	})
	if err != nil {
		b.logger.Error("failed to dispatch status update", zap.String("task_id", id), zap.Error(err))
		return false, err
	}
	return true, nil
}

// NewTask opens the modal for a new task.
func (b *Board) NewTask() *modal.Modal {
	return modal.NewCreate(b.store, b.logger)
}

// EditTask opens the modal seeded from the cached task.
func (b *Board) EditTask(id string) (*modal.Modal, bool) {
	t, ok := b.Task(id)
	if !ok {
		return nil, false
	}
	return modal.NewEdit(b.store, b.logger, t), true
}
