package ai

import (
	"context"
	"sync"
	"testing"
)

func TestInMemoryBudget_Unlimited(t *testing.T) {
	b := NewInMemoryBudget(0)
	ctx := context.Background()

	if err := b.Record(ctx, "u1", 1_000_000); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	ok, err := b.Check(ctx, "u1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !ok {
		t.Error("Check() = false, want true (zero limit means unlimited)")
	}
}

func TestInMemoryBudget_Check(t *testing.T) {
	tests := []struct {
		name  string
		limit int64
		used  int
		want  bool
	}{
		{name: "fresh caller", limit: 100, used: 0, want: true},
		{name: "within budget", limit: 100, used: 99, want: true},
		{name: "exactly spent", limit: 100, used: 100, want: false},
		{name: "over budget", limit: 100, used: 150, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			b := NewInMemoryBudget(tt.limit)
			if err := b.Record(ctx, "u1", tt.used); err != nil {
				t.Fatal(err)
			}
			got, err := b.Check(ctx, "u1")
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Check() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInMemoryBudget_SetBudget(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryBudget(100)
	b.SetBudget("vip", 0)

	b.Record(ctx, "vip", 500)
	b.Record(ctx, "u1", 500)

	if ok, _ := b.Check(ctx, "vip"); !ok {
		t.Error("caller with an unlimited override was refused")
	}
	if ok, _ := b.Check(ctx, "u1"); ok {
		t.Error("caller over the default limit was allowed")
	}

	used, limit, err := b.Usage(ctx, "u1")
	if err != nil || used != 500 || limit != 100 {
		t.Errorf("Usage() = %d, %d, %v; want 500, 100, nil", used, limit, err)
	}
}

func TestInMemoryBudget_NegativeTokens(t *testing.T) {
	b := NewInMemoryBudget(10)
	if err := b.Record(context.Background(), "u1", -1); err == nil {
		t.Fatal("Record() should reject negative tokens")
	}
}

func TestInMemoryBudget_Concurrent(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryBudget(0)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Record(ctx, "u1", 2)
			b.Check(ctx, "u1")
		}()
	}
	wg.Wait()

	if used, _, _ := b.Usage(ctx, "u1"); used != 100 {
		t.Errorf("used = %d, want 100", used)
	}
}
