package ctxutil

import (
	"context"
	"reflect"
	"testing"
)

func TestRequestData(t *testing.T) {
	ctx := context.Background()
	if OwnerID(ctx) != "" {
		t.Fatalf("expected empty owner")
	}
	ctx = WithRequestData(ctx, &RequestData{OwnerID: "u1"})
	if OwnerID(ctx) != "u1" {
		t.Fatalf("expected owner u1, got %q", OwnerID(ctx))
	}
}

func TestLogFields(t *testing.T) {
	ctx := context.Background()
	if LogFields(ctx) != nil {
		t.Fatalf("expected no fields without trace data")
	}
	SetSessionID(ctx, "s1")

	ctx = WithTraceData(ctx, &TraceData{TraceID: "t", RequestID: "r"})
	if got := LogFields(ctx); !reflect.DeepEqual(got, []interface{}{"trace_id", "t", "request_id", "r"}) {
		t.Fatalf("unexpected fields %v", got)
	}
	SetSessionID(ctx, "s1")
	got := LogFields(ctx)
	if len(got) != 6 || got[4] != "session_id" || got[5] != "s1" {
		t.Fatalf("session id not recorded: %v", got)
	}
}
