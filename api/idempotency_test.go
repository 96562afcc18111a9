package api

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisDeduper(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	d := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()

	added, err := d.Add(ctx, "s1", "k1")
	if err != nil || !added {
		t.Fatalf("expected first add to succeed, got %v %v", added, err)
	}
	if ttl := mr.TTL("idem:s1:k1"); ttl != time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}
	added, err = d.Add(ctx, "s1", "k1")
	if err != nil || added {
		t.Fatalf("expected duplicate to be rejected, got %v %v", added, err)
	}
	if added, _ := d.Add(ctx, "s2", "k1"); !added {
		t.Fatalf("keys must be scoped per session")
	}

	if err := d.Remove(ctx, "s1", "k1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if added, _ := d.Add(ctx, "s1", "k1"); !added {
		t.Fatalf("expected add after remove to succeed")
	}

	mr.FastForward(2 * time.Minute)
	if added, _ := d.Add(ctx, "s2", "k1"); !added {
		t.Fatalf("expected key to expire")
	}
}

func TestMemoryDeduper(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewMemoryDeduper(time.Minute)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	if added, _ := d.Add(ctx, "s1", "k1"); !added {
		t.Fatalf("expected first add to succeed")
	}
	if added, _ := d.Add(ctx, "s1", "k1"); added {
		t.Fatalf("expected duplicate to be rejected")
	}
	if added, _ := d.Add(ctx, "s2", "k1"); !added {
		t.Fatalf("keys must be scoped per session")
	}

	now = now.Add(time.Minute)
	if added, _ := d.Add(ctx, "s1", "k1"); !added {
		t.Fatalf("expected key to expire")
	}
	_ = d.Remove(ctx, "s1", "k1")
	if added, _ := d.Add(ctx, "s1", "k1"); !added {
		t.Fatalf("expected add after remove to succeed")
	}
}

func TestMemoryDeduperSeparatorInKeys(t *testing.T) {
	d := NewMemoryDeduper(0)
	ctx := context.Background()

	if added, _ := d.Add(ctx, "auth0|a:b", "c"); !added {
		t.Fatalf("expected first add to succeed")
	}
	if added, _ := d.Add(ctx, "auth0|a", "b:c"); !added {
		t.Fatalf("a different session and key must not collide")
	}
	_ = d.Remove(ctx, "auth0|a", "b:c")
	if added, _ := d.Add(ctx, "auth0|a:b", "c"); added {
		t.Fatalf("removing one key must not release the other")
	}
}
