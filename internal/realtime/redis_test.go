package realtime

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

func TestRedisRelay(t *testing.T) {
	m, err := miniredis.Run()
	require.NoError(t, err)
	defer m.Close()
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer rc.Close()

	hub := NewHub(zap.NewNop(), 16)
	sub := hub.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Relay(ctx, zap.NewNop(), rc, "tasks-channel", hub)
		close(done)
	}()

	// wait for the relay to subscribe
	require.Eventually(t, func() bool {
		return len(m.PubSubChannels("tasks-channel")) == 1
	}, time.Second, 10*time.Millisecond)

	publisher := NewRedisPublisher(rc, "tasks-channel")
	task := model.Task{ID: "t1", Title: "Review design", Priority: model.PriorityMedium, Status: model.StatusTodo}
	require.NoError(t, publisher.Publish(context.Background(), model.UpdateEvent(task)))

	ev := recv(t, sub.Events())
	assert.Equal(t, model.EventUpdate, ev.Type)
	require.NotNil(t, ev.New)
	assert.Equal(t, task.Title, ev.New.Title)
	assert.Equal(t, "t1", ev.Old.ID)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Relay did not exit")
	}
}

func TestRedisRelay_SkipsMalformedPayload(t *testing.T) {
	m, err := miniredis.Run()
	require.NoError(t, err)
	defer m.Close()
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer rc.Close()

	hub := NewHub(zap.NewNop(), 16)
	sub := hub.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Relay(ctx, zap.NewNop(), rc, "tasks-channel", hub)

	require.Eventually(t, func() bool {
		return len(m.PubSubChannels("tasks-channel")) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, rc.Publish(ctx, "tasks-channel", "not json").Err())
	require.NoError(t, NewRedisPublisher(rc, "tasks-channel").Publish(ctx, model.DeleteEvent("t9", time.Now())))

	ev := recv(t, sub.Events())
	assert.Equal(t, model.EventDelete, ev.Type)
	assert.Equal(t, "t9", ev.TaskID())
}
