package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"awful/internal/service"
)

func TestRunningGuard_TryLock(t *testing.T) {
	var g service.ExportedRunningGuard

	if !g.TryLock("sweep:1") {
		t.Fatal("expected first TryLock to succeed")
	}
	if g.TryLock("sweep:1") {
		t.Fatal("expected second TryLock for same job to fail")
	}
	if !g.TryLock("sweep:2") {
		t.Fatal("expected TryLock for different job to succeed")
	}
	if !g.Running("sweep:1") {
		t.Fatal("expected sweep:1 to be running")
	}
	g.Unlock("sweep:1")
	g.Unlock("sweep:2")

	if g.Running("sweep:1") {
		t.Fatal("expected sweep:1 to be released")
	}
	if !g.TryLock("sweep:1") {
		t.Fatal("expected TryLock to succeed after unlock")
	}
	g.Unlock("sweep:1")
}

func TestRunningGuard_WaitAll(t *testing.T) {
	var g service.ExportedRunningGuard

	if !g.TryLock("job-a") {
		t.Fatal("expected lock to succeed")
	}

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		g.WaitAll(ctx)
		close(done)
	}()

	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Unlock("job-a")
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("WaitAll timed out")
	}
}

func TestRunningGuard_WaitAllHonoursContext(t *testing.T) {
	var g service.ExportedRunningGuard
	g.TryLock("stuck")
	defer g.Unlock("stuck")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	g.WaitAll(ctx)
	if time.Since(start) > time.Second {
		t.Fatal("WaitAll ignored the context")
	}
}

func TestMockEmitter_RecordsEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, service.EventBlocksSaved, map[string]string{"foo": "bar"})
	m.Emit(ctx, service.EventBlocksRejected, nil)
	m.Emit(ctx, service.EventBlocksSaved, nil)

	if len(m.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(m.Events))
	}
	if m.Events[0].Event != service.EventBlocksSaved {
		t.Errorf("expected %q, got %q", service.EventBlocksSaved, m.Events[0].Event)
	}
	if n := len(m.Named(service.EventBlocksSaved)); n != 2 {
		t.Errorf("expected 2 saved events, got %d", n)
	}
}

func TestLogEmitter_DoesNotPanic(t *testing.T) {
	service.LogEmitter{Logger: zerolog.Nop()}.Emit(context.Background(), "x", struct{ A int }{1})
}
