package locks

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, time.Minute, nil), srv
}

func TestRedisLocker_Exclusivity(t *testing.T) {
	l, _ := newTestLocker(t)
	if !l.TryAcquire("req-1") {
		t.Fatal("first acquire must succeed")
	}
	if l.TryAcquire("req-1") {
		t.Fatal("second acquire must fail while held")
	}
	if !l.TryAcquire("req-2") {
		t.Fatal("different requests lock independently")
	}
	l.Release("req-1")
	if !l.TryAcquire("req-1") {
		t.Fatal("acquire after release must succeed")
	}
}

func TestRedisLocker_ReleaseIgnoresForeignLock(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := NewRedisLocker(client, time.Minute, nil)
	b := NewRedisLocker(client, time.Minute, nil)
	if !a.TryAcquire("req-1") {
		t.Fatal("acquire failed")
	}
	b.Release("req-1")
	if b.TryAcquire("req-1") {
		t.Fatal("foreign release must not free the lock")
	}
}

func TestRedisLocker_TTLExpiry(t *testing.T) {
	l, srv := newTestLocker(t)
	if !l.TryAcquire("req-1") {
		t.Fatal("acquire failed")
	}
	srv.FastForward(2 * time.Minute)
	if !l.TryAcquire("req-1") {
		t.Fatal("lock should expire after its TTL")
	}
}
