package state

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStateSetGet(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryState[string]()

	if _, hit, _ := st.Get(ctx, "k"); hit {
		t.Fatal("empty state should miss")
	}
	if err := st.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	v, hit, err := st.Get(ctx, "k")
	if err != nil || !hit || v != "v" {
		t.Fatalf("get = (%q, %v, %v)", v, hit, err)
	}

	if err := st.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, hit, _ := st.Get(ctx, "k"); hit {
		t.Fatal("deleted key should miss")
	}
}

func TestMemoryStateTTL(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryState[int]()
	base := time.Now()
	st.SetClock(func() time.Time { return base })

	if err := st.Set(ctx, "k", 1, 5*time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, hit, _ := st.Get(ctx, "k"); !hit {
		t.Fatal("key should be alive before ttl")
	}

	st.SetClock(func() time.Time { return base.Add(6 * time.Second) })
	if _, hit, _ := st.Get(ctx, "k"); hit {
		t.Fatal("key should expire after ttl")
	}
}

func TestMemoryStateSetNX(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryState[string]()
	base := time.Now()
	st.SetClock(func() time.Time { return base })

	ok, err := st.SetNX(ctx, "k", "first", 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("first setnx = (%v, %v)", ok, err)
	}
	ok, _ = st.SetNX(ctx, "k", "second", 5*time.Second)
	if ok {
		t.Fatal("setnx on live key must fail")
	}
	v, _, _ := st.Get(ctx, "k")
	if v != "first" {
		t.Fatalf("value overwritten by failed setnx: %q", v)
	}

	// 过期后 SetNX 重新可用
	st.SetClock(func() time.Time { return base.Add(6 * time.Second) })
	if ok, _ = st.SetNX(ctx, "k", "second", 5*time.Second); !ok {
		t.Fatal("setnx should succeed after expiry")
	}
}
