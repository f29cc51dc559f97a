package mesh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shareterm/coordinatord/internal/session"
)

// fakeKV is an in-memory KV for exercising Mesh without a running Redis
// server; it supports the subset of behavior the mesh logic depends on,
// including pub/sub via plain Go channels carrying real *redis.Message
// values (whose fields are all exported, so no shim type is needed).
type fakeKV struct {
	mu   sync.Mutex
	data map[string]string

	subMu sync.Mutex
	subs  map[string][]chan *redis.Message
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string), subs: make(map[string][]chan *redis.Message)}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *fakeKV) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*string, len(keys))
	for i, k := range keys {
		if v, ok := f.data[k]; ok {
			vv := v
			out[i] = &vv
		}
	}
	return out, nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeKV) Publish(ctx context.Context, channel, message string) error {
	f.subMu.Lock()
	defer f.subMu.Unlock()
	for _, ch := range f.subs[channel] {
		ch <- &redis.Message{Channel: channel, Payload: message}
	}
	return nil
}

// fakeSubscription implements Subscription over a plain buffered channel.
type fakeSubscription struct {
	kv      *fakeKV
	channel string
	ch      chan *redis.Message
}

func (s *fakeSubscription) Channel() <-chan *redis.Message { return s.ch }

func (s *fakeSubscription) Close() error {
	s.kv.subMu.Lock()
	defer s.kv.subMu.Unlock()
	subs := s.kv.subs[s.channel]
	for i, ch := range subs {
		if ch == s.ch {
			s.kv.subs[s.channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	close(s.ch)
	return nil
}

func (f *fakeKV) Subscribe(ctx context.Context, channel string) Subscription {
	ch := make(chan *redis.Message, 8)
	f.subMu.Lock()
	f.subs[channel] = append(f.subs[channel], ch)
	f.subMu.Unlock()
	return &fakeSubscription{kv: f, channel: channel, ch: ch}
}

func TestGetOwnerReturnsAbsentWhenClosed(t *testing.T) {
	kv := newFakeKV()
	kv.Set(context.Background(), ownerKey("abc1234567"), "node-a", time.Minute)
	kv.Set(context.Background(), closedKey("abc1234567"), "1", time.Minute)

	m := New(kv, "node-a", nil)
	_, ok, err := m.GetOwner(context.Background(), "abc1234567")
	if err != nil {
		t.Fatalf("GetOwner: %v", err)
	}
	if ok {
		t.Fatal("expected closed session to report absent owner")
	}
}

func TestGetOwnerReturnsOwnerWhenPresent(t *testing.T) {
	kv := newFakeKV()
	kv.Set(context.Background(), ownerKey("abc1234567"), "node-a", time.Minute)

	m := New(kv, "node-b", nil)
	owner, ok, err := m.GetOwner(context.Background(), "abc1234567")
	if err != nil || !ok || owner != "node-a" {
		t.Fatalf("GetOwner = (%q,%v,%v), want (node-a,true,nil)", owner, ok, err)
	}
}

func TestMarkClosedNotifiesPreviousOwner(t *testing.T) {
	kv := newFakeKV()
	kv.Set(context.Background(), ownerKey("abc1234567"), "node-a", time.Minute)

	m := New(kv, "node-b", nil)
	sub := m.ListenForTransfers(context.Background())

	// node-b is the listener; MarkClosed should notify node-a's topic,
	// so publish directly through a second mesh acting as node-a's view
	// — simpler: reconfigure the listener to node-a to observe it.
	_ = sub

	listenerA := New(kv, "node-a", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	transfers := listenerA.ListenForTransfers(ctx)

	if err := m.MarkClosed(context.Background(), "abc1234567"); err != nil {
		t.Fatalf("MarkClosed: %v", err)
	}

	select {
	case name := <-transfers:
		if name != "abc1234567" {
			t.Fatalf("transfer notification name = %q, want abc1234567", name)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a transfer notification to node-a")
	}

	if _, ok, _ := m.GetOwner(context.Background(), "abc1234567"); ok {
		t.Fatal("expected owner cleared after MarkClosed")
	}
}

func TestListenForTransfersNoOpWhenUnnamed(t *testing.T) {
	kv := newFakeKV()
	m := New(kv, "", nil)
	ch := m.ListenForTransfers(context.Background())
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel for unnamed host")
		}
	case <-time.After(time.Second):
		t.Fatal("expected channel to be immediately closed")
	}
}

func TestBackgroundSyncWritesSnapshotOnPulse(t *testing.T) {
	kv := newFakeKV()
	m := New(kv, "node-a", nil)
	s := session.New(session.Metadata{Name: "abc1234567", EncryptedZeros: []byte("0123456789abcdef")})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.BackgroundSync(ctx, "abc1234567", s)

	s.PulseSync()
	deadline := time.After(2 * time.Second)
	for {
		if v, err := kv.Get(context.Background(), snapshotKey("abc1234567")); err == nil && v != "" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected background sync to write a snapshot after pulse")
		case <-time.After(10 * time.Millisecond):
		}
	}
	s.Shutdown.Trigger()
}
