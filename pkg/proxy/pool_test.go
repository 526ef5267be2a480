package proxy

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPool_SeedAndNext(t *testing.T) {
	pool, err := NewPool(Config{URLs: []string{"127.0.0.1:8080", "http://127.0.0.1:8081", "socks5://127.0.0.1:9050"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.Len() != 3 {
		t.Fatalf("expected 3 proxies, got %d", pool.Len())
	}

	want := []string{"http://127.0.0.1:8080", "http://127.0.0.1:8081", "socks5://127.0.0.1:9050", "http://127.0.0.1:8080"}
	for i, w := range want {
		u := pool.Next()
		if u == nil || u.String() != w {
			t.Errorf("pick %d: expected %s, got %v", i, w, u)
		}
	}
}

func TestPool_HealthTracking(t *testing.T) {
	pool, _ := NewPool(Config{
		URLs:        []string{"http://a", "http://b"},
		MaxFailures: 2,
		Cooldown:    10 * time.Millisecond,
	})

	uA := pool.Next()
	if uA.String() != "http://a" {
		t.Fatalf("expected http://a, got %v", uA)
	}
	_ = pool.MarkFailure(uA)
	_ = pool.MarkFailure(uA)

	for i := 0; i < 2; i++ {
		if u := pool.Next(); u.String() != "http://b" {
			t.Fatalf("expected http://b while a cools down, got %v", u)
		}
	}

	time.Sleep(15 * time.Millisecond)

	if u := pool.Next(); u.String() != "http://a" {
		t.Fatalf("expected http://a after cooldown, got %v", u)
	}
}

func TestPool_AllDisabled(t *testing.T) {
	pool, _ := NewPool(Config{URLs: []string{"http://a"}, MaxFailures: 1, Cooldown: time.Hour})

	_ = pool.MarkFailure(pool.Next())

	if u := pool.Next(); u != nil {
		t.Errorf("expected nil when all proxies disabled, got %v", u)
	}
}

func TestPool_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.txt")
	content := `
# residential exits
http://proxy1.com
proxy2.com:80

socks5://proxy3.com:1080
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write proxy file: %v", err)
	}

	pool, _ := NewPool(Config{})
	if err := pool.LoadFile(path); err != nil {
		t.Fatalf("failed to load file: %v", err)
	}

	expected := []string{"http://proxy1.com", "http://proxy2.com:80", "socks5://proxy3.com:1080"}
	for i, e := range expected {
		u := pool.Next()
		if u == nil || u.String() != e {
			t.Errorf("pick %d: expected %s, got %v", i, e, u)
		}
	}
}

func TestPool_MarkUnknown(t *testing.T) {
	pool, _ := NewPool(Config{URLs: []string{"http://a"}})
	unknown, _ := url.Parse("http://unknown")

	if err := pool.MarkSuccess(unknown); !errors.Is(err, ErrUnknownProxy) {
		t.Errorf("expected ErrUnknownProxy on success, got %v", err)
	}
	if err := pool.MarkFailure(unknown); !errors.Is(err, ErrUnknownProxy) {
		t.Errorf("expected ErrUnknownProxy on failure, got %v", err)
	}
}

func TestPool_Empty(t *testing.T) {
	pool, _ := NewPool(Config{})
	if u := pool.Next(); u != nil {
		t.Errorf("expected nil on empty pool, got %v", u)
	}
}
