package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/duplifind/duplifind/internal/model"
)

func openTestCache(t *testing.T, algo string) *Cache {
	t.Helper()
	dir := t.TempDir()
	c, err := Open(Options{Path: filepath.Join(dir, "cache.db"), HashAlgo: algo})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func fd(path string, size int64, mtime time.Time) model.FileDescriptor {
	return model.FileDescriptor{Path: path, Size: size, MTime: mtime}
}

func TestCacheMissThenHit(t *testing.T) {
	c := openTestCache(t, "sha256")
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	f := fd("/a/b.txt", 100, now)

	if _, ok, err := c.Get(ctx, f, now); err != nil || ok {
		t.Fatalf("expected a miss on an empty cache, got ok=%v err=%v", ok, err)
	}

	if err := c.PutQuick(ctx, f.Path, f.Size, f.MTime.Unix(), 0xdeadbeef, now); err != nil {
		t.Fatal(err)
	}

	h, ok, err := c.Get(ctx, f, now)
	if err != nil || !ok {
		t.Fatalf("expected a hit after PutQuick, got ok=%v err=%v", ok, err)
	}
	if !h.HasQuick || h.Quick != 0xdeadbeef {
		t.Errorf("got quick=%v hasQuick=%v, want 0xdeadbeef/true", h.Quick, h.HasQuick)
	}
	if h.HasFull {
		t.Error("expected no full hash yet")
	}
}

func TestCachePutQuickThenPutFullCoalesce(t *testing.T) {
	c := openTestCache(t, "sha256")
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	f := fd("/a/b.txt", 100, now)

	if err := c.PutQuick(ctx, f.Path, f.Size, f.MTime.Unix(), 42, now); err != nil {
		t.Fatal(err)
	}
	if err := c.PutFull(ctx, f.Path, f.Size, f.MTime.Unix(), []byte{1, 2, 3}, now); err != nil {
		t.Fatal(err)
	}

	h, ok, err := c.Get(ctx, f, now)
	if err != nil || !ok {
		t.Fatalf("expected a hit, got ok=%v err=%v", ok, err)
	}
	if !h.HasQuick || h.Quick != 42 {
		t.Errorf("PutFull must not clobber the earlier quick-hash, got %v", h)
	}
	if !h.HasFull {
		t.Error("expected a full hash after PutFull")
	}
}

func TestCacheStaleWitnessIsAMiss(t *testing.T) {
	c := openTestCache(t, "sha256")
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0)
	t1 := time.Unix(1700000100, 0)
	path := "/a/b.txt"

	if err := c.PutQuick(ctx, path, 100, t0.Unix(), 1, t0); err != nil {
		t.Fatal(err)
	}

	// Same path, different mtime: the witness no longer matches.
	changed := fd(path, 100, t1)
	_, ok, err := c.Get(ctx, changed, t1)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected a miss when mtime has changed since the cached entry was written")
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := openTestCache(t, "sha256")
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	f := fd("/a/b.txt", 100, now)

	_ = c.PutQuick(ctx, f.Path, f.Size, f.MTime.Unix(), 1, now)
	if err := c.Invalidate(ctx, f.Path); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, f, now); ok {
		t.Error("expected a miss after Invalidate")
	}
}

func TestCacheLookupBatch(t *testing.T) {
	c := openTestCache(t, "sha256")
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	var descs []model.FileDescriptor
	for i := 0; i < 5; i++ {
		f := fd(filepath.Join("/a", string(rune('a'+i))), int64(100+i), now)
		descs = append(descs, f)
		_ = c.PutQuick(ctx, f.Path, f.Size, f.MTime.Unix(), uint64(i), now)
	}
	// One candidate never cached, one cached but with a stale size.
	stale := fd(descs[0].Path, descs[0].Size+1, now)
	unseen := fd("/a/never-cached", 999, now)

	hits, err := c.Lookup(ctx, append([]model.FileDescriptor{stale, unseen}, descs[1:]...))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := hits[stale.Path]; ok {
		t.Error("stale-size candidate should not have been a hit")
	}
	if _, ok := hits[unseen.Path]; ok {
		t.Error("never-cached candidate should not have been a hit")
	}
	for _, f := range descs[1:] {
		if _, ok := hits[f.Path]; !ok {
			t.Errorf("expected a hit for %q", f.Path)
		}
	}
}

func TestCachePruneByAge(t *testing.T) {
	c := openTestCache(t, "sha256")
	ctx := context.Background()
	old := time.Unix(1000, 0)
	now := old.Add(200 * 24 * time.Hour)

	f := fd("/a/old.txt", 10, old)
	_ = c.PutQuick(ctx, f.Path, f.Size, f.MTime.Unix(), 1, old)

	c.opts.MaxAge = 90 * 24 * time.Hour
	evicted, err := c.Prune(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if evicted != 1 {
		t.Errorf("got %d evicted, want 1", evicted)
	}
	if _, ok, _ := c.Get(ctx, f, now); ok {
		t.Error("expected the aged-out entry to be gone")
	}
}

func TestCachePruneBySizeCap(t *testing.T) {
	c := openTestCache(t, "sha256")
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	for i := 0; i < 10; i++ {
		f := fd(filepath.Join("/a", string(rune('a'+i))), int64(i), now)
		// stagger last_access so eviction order is deterministic
		accessTime := now.Add(time.Duration(i) * time.Second)
		_ = c.PutQuick(ctx, f.Path, f.Size, f.MTime.Unix(), uint64(i), accessTime)
	}

	c.opts.MaxEntries = 4
	evicted, err := c.Prune(ctx, now.Add(20*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if evicted != 6 {
		t.Errorf("got %d evicted, want 6 (10 entries - cap of 4)", evicted)
	}
}

func TestCacheSchemaVersionMismatchRebuilds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.db")

	c, err := Open(Options{Path: path, HashAlgo: "sha256"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	f := fd("/a/b.txt", 100, now)
	_ = c.PutQuick(ctx, f.Path, f.Size, f.MTime.Unix(), 1, now)
	_ = c.setMeta(metaKeySchemaVersion, "0")
	c.Close()

	c2, err := Open(Options{Path: path, HashAlgo: "sha256"})
	if err != nil {
		t.Fatal(err)
	}
	defer c2.Close()

	if _, ok, _ := c2.Get(ctx, f, now); ok {
		t.Error("expected a schema-version mismatch to drop all prior entries")
	}
	v, _ := c2.getMeta(metaKeySchemaVersion)
	if v != SchemaVersion {
		t.Errorf("got schema_version=%q after rebuild, want %q", v, SchemaVersion)
	}
}

func TestCacheAlgorithmChangeClearsFullHashesOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.db")

	c, err := Open(Options{Path: path, HashAlgo: "sha256"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	f := fd("/a/b.txt", 100, now)
	_ = c.PutQuick(ctx, f.Path, f.Size, f.MTime.Unix(), 7, now)
	_ = c.PutFull(ctx, f.Path, f.Size, f.MTime.Unix(), []byte{9, 9, 9}, now)
	c.Close()

	c2, err := Open(Options{Path: path, HashAlgo: "sha512"})
	if err != nil {
		t.Fatal(err)
	}
	defer c2.Close()

	h, ok, err := c2.Get(ctx, f, now)
	if err != nil || !ok {
		t.Fatalf("expected the row to survive an algorithm change, got ok=%v err=%v", ok, err)
	}
	if h.HasFull {
		t.Error("expected the full hash to be cleared after a hash_algorithm change")
	}
	if !h.HasQuick || h.Quick != 7 {
		t.Error("expected the quick hash to survive a hash_algorithm change")
	}
}
