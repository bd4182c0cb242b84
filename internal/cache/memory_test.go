package cache

import (
	"context"
	"testing"
	"time"

	"github.com/quickchess/server/internal/domain"
)

func testSession(id string, lifecycle domain.Lifecycle) *domain.GameSession {
	return &domain.GameSession{
		SessionID: id,
		Position:  "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		MoveLog:   []domain.Move{},
		Seats:     map[domain.Seat]string{domain.SeatFirst: "alice", domain.SeatSecond: ""},
		TurnSeat:  domain.SeatFirst,
		Lifecycle: lifecycle,
		CreatedAt: time.Now(),
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemory(time.Hour)
	ctx := context.Background()

	if err := c.Set(ctx, "s1", testSession("s1", domain.LifecyclePending)); err != nil {
		t.Fatalf("Expected set to succeed, got %v", err)
	}

	got, err := c.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Expected get to succeed, got %v", err)
	}
	if got == nil {
		t.Fatal("Expected cached session, got nil")
	}
	if got.SessionID != "s1" || got.Seats[domain.SeatFirst] != "alice" {
		t.Errorf("Expected stored session back, got %+v", got)
	}
}

func TestMemoryCacheMissIsNilNil(t *testing.T) {
	c := NewMemory(time.Hour)

	got, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Expected no error on miss, got %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil on miss, got %+v", got)
	}
}

func TestMemoryCacheNoPointerSharing(t *testing.T) {
	c := NewMemory(time.Hour)
	ctx := context.Background()

	original := testSession("s1", domain.LifecyclePending)
	if err := c.Set(ctx, "s1", original); err != nil {
		t.Fatalf("Expected set to succeed, got %v", err)
	}

	// Mutating the stored pointer must not alter the cached copy.
	original.Seats[domain.SeatFirst] = "mallory"

	got, err := c.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Expected get to succeed, got %v", err)
	}
	if got.Seats[domain.SeatFirst] != "alice" {
		t.Errorf("Expected cached copy isolated from caller, got %s", got.Seats[domain.SeatFirst])
	}

	// And mutating the returned copy must not alter the cache.
	got.Seats[domain.SeatFirst] = "eve"
	again, _ := c.Get(ctx, "s1")
	if again.Seats[domain.SeatFirst] != "alice" {
		t.Errorf("Expected cache isolated from readers, got %s", again.Seats[domain.SeatFirst])
	}
}

func TestMemoryCacheCompletedTTLExpiry(t *testing.T) {
	c := NewMemory(20 * time.Millisecond)
	ctx := context.Background()

	session := testSession("s1", domain.LifecycleCompleted)
	if err := c.Set(ctx, "s1", session); err != nil {
		t.Fatalf("Expected set to succeed, got %v", err)
	}

	if got, _ := c.Get(ctx, "s1"); got == nil {
		t.Fatal("Expected completed session to be readable before TTL")
	}

	time.Sleep(40 * time.Millisecond)

	got, err := c.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Expected no error after expiry, got %v", err)
	}
	if got != nil {
		t.Error("Expected completed session evicted after TTL")
	}
}

func TestMemoryCacheActiveSessionsNeverExpire(t *testing.T) {
	c := NewMemory(20 * time.Millisecond)
	ctx := context.Background()

	if err := c.Set(ctx, "s1", testSession("s1", domain.LifecycleActive)); err != nil {
		t.Fatalf("Expected set to succeed, got %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	if got, _ := c.Get(ctx, "s1"); got == nil {
		t.Error("Expected active session to survive the completed-session TTL")
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemory(time.Hour)
	ctx := context.Background()

	if err := c.Set(ctx, "s1", testSession("s1", domain.LifecyclePending)); err != nil {
		t.Fatalf("Expected set to succeed, got %v", err)
	}
	if err := c.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Expected delete to succeed, got %v", err)
	}
	if got, _ := c.Get(ctx, "s1"); got != nil {
		t.Error("Expected session gone after delete")
	}

	// Deleting an absent key is a no-op.
	if err := c.Delete(ctx, "absent"); err != nil {
		t.Errorf("Expected delete of absent key to succeed, got %v", err)
	}
}
