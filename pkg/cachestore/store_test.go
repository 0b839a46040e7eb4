package cachestore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/wirecache/wirecache/internal/bytesize"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestStore creates a store in a temp directory, closed on cleanup.
func newTestStore(t testing.TB, opts Options) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testEntry(url, body string) *Entry {
	return &Entry{
		URL:    url,
		Status: 200,
		Body:   []byte(body),
	}
}

// ============================================================================
// Put / Match
// ============================================================================

func TestStore_PutMatch(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	ns := Namespace{Purpose: "static", Version: 1}

	if err := s.Put(ctx, ns, testEntry("https://example.com/style.css", "body{}")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, hit, err := s.Match(ctx, ns, "https://example.com/style.css")
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	if string(entry.Body) != "body{}" {
		t.Errorf("body mismatch: got %q", entry.Body)
	}
	if entry.Status != 200 {
		t.Errorf("status mismatch: got %d", entry.Status)
	}
}

func TestStore_MatchMiss(t *testing.T) {
	s := newTestStore(t, Options{})
	ns := Namespace{Purpose: "static", Version: 1}

	entry, hit, err := s.Match(context.Background(), ns, "https://example.com/missing")
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if hit || entry != nil {
		t.Error("expected miss on empty namespace")
	}
}

func TestStore_PutReplaces(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	ns := Namespace{Purpose: "api", Version: 2}
	url := "https://example.com/api/data"

	if err := s.Put(ctx, ns, testEntry(url, `{"version":4}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, ns, testEntry(url, `{"version":5}`)); err != nil {
		t.Fatalf("replacing Put failed: %v", err)
	}

	entry, hit, err := s.Match(ctx, ns, url)
	if err != nil || !hit {
		t.Fatalf("Match failed: hit=%v err=%v", hit, err)
	}
	if string(entry.Body) != `{"version":5}` {
		t.Errorf("expected replaced body, got %q", entry.Body)
	}

	count, _, err := s.Size(ctx, ns)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if count != 1 {
		t.Errorf("replace should not grow the namespace: got %d entries", count)
	}
}

func TestStore_CanonicalKeyMatch(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	ns := Namespace{Purpose: "static", Version: 1}

	if err := s.Put(ctx, ns, testEntry("https://Example.com:443/a#frag", "x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	_, hit, err := s.Match(ctx, ns, "https://example.com/a")
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if !hit {
		t.Error("canonically equal URLs should share one entry")
	}
}

func TestStore_QuotaExceeded(t *testing.T) {
	s := newTestStore(t, Options{MaxBodySize: 8 * bytesize.B})
	ctx := context.Background()
	ns := Namespace{Purpose: "images", Version: 1}

	err := s.Put(ctx, ns, testEntry("https://example.com/big.png", "way too large a body"))
	if err == nil {
		t.Fatal("expected quota error")
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("expected ErrQuotaExceeded, got %v", err)
	}

	// The failed write must not leave a partial entry behind.
	_, hit, _ := s.Match(ctx, ns, "https://example.com/big.png")
	if hit {
		t.Error("quota-failed write should not be stored")
	}
}

// ============================================================================
// Trim / EvictExpired
// ============================================================================

func TestStore_TrimKeepsNewest(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	ns := Namespace{Purpose: "images", Version: 1}

	for i := 0; i < 7; i++ {
		url := fmt.Sprintf("https://example.com/img/%d.png", i)
		if err := s.Put(ctx, ns, testEntry(url, "data")); err != nil {
			t.Fatalf("Put %d failed: %v", i, err)
		}
	}

	evicted, err := s.Trim(ctx, ns, 4)
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	if evicted != 3 {
		t.Errorf("expected 3 evictions, got %d", evicted)
	}

	// The 4 most-recently-inserted entries survive, oldest are gone.
	for i := 0; i < 7; i++ {
		url := fmt.Sprintf("https://example.com/img/%d.png", i)
		_, hit, err := s.Match(ctx, ns, url)
		if err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		wantHit := i >= 3
		if hit != wantHit {
			t.Errorf("entry %d: hit=%v, want %v", i, hit, wantHit)
		}
	}
}

func TestStore_TrimReplacedEntryCountsAsNew(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	ns := Namespace{Purpose: "api", Version: 1}

	for i := 0; i < 3; i++ {
		url := fmt.Sprintf("https://example.com/r/%d", i)
		if err := s.Put(ctx, ns, testEntry(url, "v1")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	// Rewrite the oldest entry; it becomes the newest.
	if err := s.Put(ctx, ns, testEntry("https://example.com/r/0", "v2")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, err := s.Trim(ctx, ns, 2); err != nil {
		t.Fatalf("Trim failed: %v", err)
	}

	_, hit, _ := s.Match(ctx, ns, "https://example.com/r/0")
	if !hit {
		t.Error("rewritten entry should survive trim as most recent")
	}
	_, hit, _ = s.Match(ctx, ns, "https://example.com/r/1")
	if hit {
		t.Error("entry 1 should have been evicted as oldest")
	}
}

func TestStore_TrimUnderLimitNoop(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	ns := Namespace{Purpose: "static", Version: 1}

	if err := s.Put(ctx, ns, testEntry("https://example.com/a", "x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	evicted, err := s.Trim(ctx, ns, 10)
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	if evicted != 0 {
		t.Errorf("expected no evictions, got %d", evicted)
	}
}

func TestStore_EvictExpired(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	ns := Namespace{Purpose: "api", Version: 1}

	old := testEntry("https://example.com/old", "x")
	old.InsertedAt = time.Now().UTC().Add(-2 * time.Hour)
	if err := s.Put(ctx, ns, old); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, ns, testEntry("https://example.com/fresh", "y")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	evicted, err := s.EvictExpired(ctx, ns, time.Hour)
	if err != nil {
		t.Fatalf("EvictExpired failed: %v", err)
	}
	if evicted != 1 {
		t.Errorf("expected 1 eviction, got %d", evicted)
	}

	_, hit, _ := s.Match(ctx, ns, "https://example.com/fresh")
	if !hit {
		t.Error("fresh entry should survive")
	}
}

func TestStore_ExpiredEntryIsMiss(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	ns := Namespace{Purpose: "api", Version: 1}

	e := testEntry("https://example.com/ttl", "x")
	e.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	if err := s.Put(ctx, ns, e); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	_, hit, err := s.Match(ctx, ns, "https://example.com/ttl")
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if hit {
		t.Error("expired entry should be a miss")
	}
}

// ============================================================================
// Namespaces
// ============================================================================

func TestStore_DeleteNamespace(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	stale := Namespace{Purpose: "static", Version: 1}
	live := Namespace{Purpose: "static", Version: 2}

	if err := s.Put(ctx, stale, testEntry("https://example.com/a", "x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, live, testEntry("https://example.com/a", "y")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := s.DeleteNamespace(ctx, stale); err != nil {
		t.Fatalf("DeleteNamespace failed: %v", err)
	}

	_, hit, _ := s.Match(ctx, stale, "https://example.com/a")
	if hit {
		t.Error("deleted namespace should be empty")
	}
	entry, hit, _ := s.Match(ctx, live, "https://example.com/a")
	if !hit || string(entry.Body) != "y" {
		t.Error("live namespace must be untouched by delete of another version")
	}

	namespaces, err := s.Namespaces(ctx)
	if err != nil {
		t.Fatalf("Namespaces failed: %v", err)
	}
	if len(namespaces) != 1 || namespaces[0] != live {
		t.Errorf("expected only live namespace registered, got %v", namespaces)
	}
}

func TestStore_DeleteMissingNamespaceNoop(t *testing.T) {
	s := newTestStore(t, Options{})
	ns := Namespace{Purpose: "ghost", Version: 9}
	if err := s.DeleteNamespace(context.Background(), ns); err != nil {
		t.Errorf("deleting a missing namespace should be a no-op, got %v", err)
	}
}

func TestStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	ns := Namespace{Purpose: "static", Version: 3}

	s, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Put(ctx, ns, testEntry("https://example.com/durable", "survives")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = s2.Close() }()

	entry, hit, err := s2.Match(ctx, ns, "https://example.com/durable")
	if err != nil || !hit {
		t.Fatalf("Match after reopen failed: hit=%v err=%v", hit, err)
	}
	if string(entry.Body) != "survives" {
		t.Errorf("body mismatch after reopen: %q", entry.Body)
	}
}

// ============================================================================
// Namespace type
// ============================================================================

func TestNamespace_StorageNameRoundTrip(t *testing.T) {
	ns := Namespace{Purpose: "offline-pages", Version: 12}
	name := ns.StorageName()
	if name != "offline-pages-v12" {
		t.Errorf("unexpected storage name %q", name)
	}

	parsed, err := ParseStorageName(name)
	if err != nil {
		t.Fatalf("ParseStorageName failed: %v", err)
	}
	if parsed != ns {
		t.Errorf("round trip mismatch: %v != %v", parsed, ns)
	}
}

func TestParseStorageNameInvalid(t *testing.T) {
	for _, name := range []string{"", "static", "static-vx", "-v1"} {
		if _, err := ParseStorageName(name); err == nil {
			t.Errorf("ParseStorageName(%q) should fail", name)
		}
	}
}
