package broadcast_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"proctor/internal/broadcast"
	"proctor/internal/config"
	"proctor/internal/logging"
)

type recorder struct {
	mu   sync.Mutex
	msgs []broadcast.Message
	err  error
}

func (r *recorder) Publish(_ context.Context, msg broadcast.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recorder) messages() []broadcast.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcast.Message(nil), r.msgs...)
}

func TestMessageWireShape(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	payload, err := json.Marshal(broadcast.ViolationMessage(7, "gaze_away", "warning", "left", at))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"violation","interview_id":7,"data":{"type":"gaze_away","severity":"warning","details":"left","timestamp":"2026-03-01T10:00:00Z"}}`, string(payload))

	payload, err = json.Marshal(broadcast.StatusChangeMessage(7, "suspended", nil, at))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"status_change","interview_id":7,"data":{"status":"suspended","metadata":{},"timestamp":"2026-03-01T10:00:00Z"}}`, string(payload))
}

func TestHubDeliversToListeners(t *testing.T) {
	hub := broadcast.NewHub()
	var got []string
	unsubscribe := hub.Subscribe(func(msg broadcast.Message) { got = append(got, msg.Type) })
	hub.Subscribe(func(broadcast.Message) { panic("listener bug") })

	err := hub.Publish(context.Background(), broadcast.Message{Type: broadcast.TypeViolation})
	require.Error(t, err)
	require.Equal(t, []string{broadcast.TypeViolation}, got)

	unsubscribe()
	unsubscribe()
	require.Equal(t, 1, hub.Len())
}

func TestMultiJoinsErrors(t *testing.T) {
	ok := &recorder{}
	failing := &recorder{err: errors.New("down")}
	err := broadcast.Multi{ok, nil, failing}.Publish(context.Background(), broadcast.Message{Type: "x"})
	require.ErrorContains(t, err, "down")
	require.Len(t, ok.messages(), 1)
	require.Len(t, failing.messages(), 1)
}

func TestAsyncDeliversWithoutBlocking(t *testing.T) {
	release := make(chan struct{})
	blocked := broadcastFunc(func(ctx context.Context, msg broadcast.Message) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	async := broadcast.NewAsync(blocked, time.Second, logging.NewNop())

	start := time.Now()
	async.Send(broadcast.Message{Type: broadcast.TypeStatusChange})
	require.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	async.Wait()
}

func TestAsyncSwallowsErrors(t *testing.T) {
	rec := &recorder{err: errors.New("unreachable")}
	async := broadcast.NewAsync(rec, 0, logging.NewNop())
	async.Send(broadcast.Message{Type: broadcast.TypeViolation, InterviewID: 1})
	async.Wait()
	require.Len(t, rec.messages(), 1)
}

func TestAsyncPreservesSendOrder(t *testing.T) {
	rec := &recorder{}
	var first sync.Once
	slowFirst := broadcastFunc(func(ctx context.Context, msg broadcast.Message) error {
		first.Do(func() { time.Sleep(20 * time.Millisecond) })
		return rec.Publish(ctx, msg)
	})
	async := broadcast.NewAsync(slowFirst, time.Second, logging.NewNop())

	at := time.Now()
	for i := int64(1); i <= 20; i++ {
		async.Send(broadcast.ViolationMessage(i, "gaze_away", "warning", "", at))
		async.Send(broadcast.StatusChangeMessage(i, "suspended", nil, at))
	}
	async.Wait()

	msgs := rec.messages()
	require.Len(t, msgs, 40)
	for i, msg := range msgs {
		require.Equal(t, int64(i/2+1), msg.InterviewID)
		if i%2 == 0 {
			require.Equal(t, broadcast.TypeViolation, msg.Type)
		} else {
			require.Equal(t, broadcast.TypeStatusChange, msg.Type)
		}
	}
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	defer mr.Close()

	ctx := context.Background()
	pub, err := broadcast.NewRedisPublisher(ctx, config.Broadcast{RedisAddr: mr.Addr(), RedisChannel: "proctor:test"})
	require.NoError(t, err)
	defer pub.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	sub := client.Subscribe(ctx, "proctor:test")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	msg := broadcast.StatusChangeMessage(3, "interview_active", map[string]any{"reason": "resumed"}, time.Now())
	require.NoError(t, pub.Publish(ctx, msg))

	select {
	case received := <-sub.Channel():
		var decoded broadcast.Message
		require.NoError(t, json.Unmarshal([]byte(received.Payload), &decoded))
		require.Equal(t, broadcast.TypeStatusChange, decoded.Type)
		require.Equal(t, int64(3), decoded.InterviewID)
		require.Equal(t, "interview_active", decoded.Data["status"])
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRedisPublisherRequiresAddress(t *testing.T) {
	_, err := broadcast.NewRedisPublisher(context.Background(), config.Broadcast{})
	require.Error(t, err)
}

type broadcastFunc func(context.Context, broadcast.Message) error

func (f broadcastFunc) Publish(ctx context.Context, msg broadcast.Message) error { return f(ctx, msg) }
