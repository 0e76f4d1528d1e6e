package bus

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/coursetree-backend/internal/modules/tree/workflow"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
	"github.com/yungbote/coursetree-backend/internal/realtime"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func TestObserver_PublishesSessionChannel(t *testing.T) {
	b := NewLocalBus()
	got := make(chan realtime.Message, 1)
	if err := b.StartForwarder(context.Background(), func(m realtime.Message) { got <- m }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}

	obs := Observer{Bus: b, Log: mustTestLogger(t)}
	obs.OnStage(context.Background(), workflow.Event{SessionID: "s1", Stage: "route", Result: map[string]any{"entry": "subject"}})

	select {
	case m := <-got:
		if m.Channel != "s1" || m.Event != "route" {
			t.Fatalf("unexpected message %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message")
	}
}

func TestLocalBus_ClosedRejectsPublish(t *testing.T) {
	b := NewLocalBus()
	_ = b.Close()
	if err := b.Publish(context.Background(), realtime.Message{Channel: "x"}); err == nil {
		t.Fatalf("expected error after close")
	}
}

func TestRedisBus_RoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis bus tests")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	b, err := NewRedisBus(mustTestLogger(t), rdb, "coursetree:test:"+t.Name())
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan realtime.Message, 1)
	if err := b.StartForwarder(ctx, func(m realtime.Message) { got <- m }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	if err := b.Publish(ctx, realtime.Message{Channel: "s2", Event: "done"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case m := <-got:
		if m.Channel != "s2" || m.Event != "done" {
			t.Fatalf("unexpected message %+v", m)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for redis message")
	}
}
