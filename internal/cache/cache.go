// Package cache implements the persistent Hash Cache: a schema-versioned
// SQLite store keyed by path, holding the quick- and full-hash of each
// file along with the (size, mtime) witness that validates a lookup.
//
// Writes go through a single-connection writer (WAL enforces one writer
// per process); lookups go through a separate read-only connection pool
// so a busy hasher worker pool never blocks on the writer.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/duplifind/duplifind/internal/errs"
	"github.com/duplifind/duplifind/internal/model"
)

// SchemaVersion is bumped whenever the entries/meta layout changes
// incompatibly. A stored version that doesn't match triggers a one-shot
// rebuild rather than a silent misread.
const SchemaVersion = "1"

const (
	metaKeySchemaVersion = "schema_version"
	metaKeyHashAlgorithm = "hash_algorithm"
)

// Options configures a Cache.
type Options struct {
	Path         string
	HashAlgo     string // e.g. "sha256"; a change invalidates all full-hash entries
	MaxEntries   int           // hard size cap before LRU eviction; default 100000
	MaxAge       time.Duration // time cap for non-access eviction; default 90 days
	ReadPoolSize int           // default 4
}

func (o Options) maxEntries() int {
	if o.MaxEntries > 0 {
		return o.MaxEntries
	}
	return 100000
}

func (o Options) maxAge() time.Duration {
	if o.MaxAge > 0 {
		return o.MaxAge
	}
	return 90 * 24 * time.Hour
}

func (o Options) readPoolSize() int {
	if o.ReadPoolSize > 0 {
		return o.ReadPoolSize
	}
	return 4
}

// Cache is the persistent Hash Cache. Safe for concurrent use: many
// goroutines may call Get concurrently; writes are serialized by the
// single writer connection.
type Cache struct {
	opts    Options
	writeDB *sql.DB
	readDB  *sql.DB
}

// Open opens (creating if necessary) the cache database at opts.Path,
// applies migrations, and reconciles the stored schema/algorithm
// metadata against opts. A schema-version mismatch drops and recreates
// the entries/meta tables; a hash-algorithm change clears every cached
// full-hash (quick-hashes are algorithm-independent and survive).
func Open(opts Options) (*Cache, error) {
	writeDB, err := openWriter(opts.Path)
	if err != nil {
		return nil, errs.Cache("open", err)
	}
	if err := runMigrations(writeDB); err != nil {
		writeDB.Close()
		return nil, errs.Cache("migrate", err)
	}

	c := &Cache{opts: opts, writeDB: writeDB}
	if err := c.reconcileMeta(); err != nil {
		writeDB.Close()
		return nil, errs.Cache("reconcile", err)
	}

	readDB, err := openReadPool(opts.Path, opts.readPoolSize())
	if err != nil {
		writeDB.Close()
		return nil, errs.Cache("open read pool", err)
	}
	c.readDB = readDB

	return c, nil
}

// Close closes both connections.
func (c *Cache) Close() error {
	rErr := c.readDB.Close()
	wErr := c.writeDB.Close()
	if wErr != nil {
		return wErr
	}
	return rErr
}

func (c *Cache) reconcileMeta() error {
	version, _ := c.getMeta(metaKeySchemaVersion)
	if version != "" && version != SchemaVersion {
		if err := c.rebuild(); err != nil {
			return fmt.Errorf("rebuild on schema mismatch: %w", err)
		}
		version = ""
	}
	if version == "" {
		if err := c.setMeta(metaKeySchemaVersion, SchemaVersion); err != nil {
			return err
		}
	}

	algo, _ := c.getMeta(metaKeyHashAlgorithm)
	if algo != "" && algo != c.opts.HashAlgo {
		if _, err := c.writeDB.Exec("UPDATE entries SET full = NULL"); err != nil {
			return fmt.Errorf("clear full hashes on algorithm change: %w", err)
		}
	}
	if algo != c.opts.HashAlgo {
		if err := c.setMeta(metaKeyHashAlgorithm, c.opts.HashAlgo); err != nil {
			return err
		}
	}
	return nil
}

// rebuild drops and recreates entries and meta, discarding all cached
// hashes. Triggered once, on a schema-version mismatch. goose's own
// version table is dropped too, so runMigrations re-applies the schema.
func (c *Cache) rebuild() error {
	stmts := []string{
		"DROP TABLE IF EXISTS entries",
		"DROP TABLE IF EXISTS meta",
		"DROP TABLE IF EXISTS goose_db_version",
	}
	for _, s := range stmts {
		if _, err := c.writeDB.Exec(s); err != nil {
			return err
		}
	}
	return runMigrations(c.writeDB)
}

func (c *Cache) getMeta(key string) (string, error) {
	var v string
	err := c.writeDB.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

func (c *Cache) setMeta(key, value string) error {
	_, err := c.writeDB.Exec("INSERT OR REPLACE INTO meta(key, value) VALUES(?, ?)", key, value)
	return err
}

// Get looks up path's cached hashes. The (size, mtime) witness must match
// the file's current values or the result is a miss and the stale row is
// invalidated. now stamps last_access on a hit.
func (c *Cache) Get(ctx context.Context, fd model.FileDescriptor, now time.Time) (model.FileHashes, bool, error) {
	var size, mtime int64
	var quick sql.NullInt64
	var full []byte

	row := c.readDB.QueryRowContext(ctx,
		"SELECT size, mtime, quick, full FROM entries WHERE path = ?", fd.Path)
	err := row.Scan(&size, &mtime, &quick, &full)
	if err == sql.ErrNoRows {
		return model.FileHashes{}, false, nil
	}
	if err != nil {
		return model.FileHashes{}, false, errs.Cache("get", err)
	}

	if size != fd.Size || mtime != fd.MTime.Unix() {
		_ = c.Invalidate(ctx, fd.Path)
		return model.FileHashes{}, false, nil
	}

	_, _ = c.writeDB.ExecContext(ctx, "UPDATE entries SET last_access = ? WHERE path = ?", now.Unix(), fd.Path)

	h := model.FileHashes{Size: size}
	if quick.Valid {
		h.Quick = uint64(quick.Int64)
		h.HasQuick = true
	}
	if full != nil {
		h.Full = full
		h.HasFull = true
		h.FullAlgo = c.opts.HashAlgo
	}
	return h, true, nil
}

// upsert inserts or updates path's row. While the stored (size, mtime)
// witness is unchanged, a nil quick/full leaves that column's existing
// value untouched, coalescing a PutQuick and a PutFull for the same key
// into a single logical write when called back-to-back within the same
// scan. A write under a different witness clears the column it does not
// set, so a hash of older content never survives under the new witness.
func (c *Cache) upsert(ctx context.Context, path string, size, mtime int64, quick *uint64, full []byte, now time.Time) error {
	var quickArg interface{}
	if quick != nil {
		quickArg = int64(*quick)
	}
	var fullArg interface{}
	if full != nil {
		fullArg = full
	}

	_, err := c.writeDB.ExecContext(ctx, `
		INSERT INTO entries(path, size, mtime, quick, full, last_access, created)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mtime = excluded.mtime,
			quick = CASE WHEN entries.size = excluded.size AND entries.mtime = excluded.mtime
				THEN COALESCE(excluded.quick, entries.quick) ELSE excluded.quick END,
			full = CASE WHEN entries.size = excluded.size AND entries.mtime = excluded.mtime
				THEN COALESCE(excluded.full, entries.full) ELSE excluded.full END,
			last_access = excluded.last_access
	`, path, size, mtime, quickArg, fullArg, now.Unix(), now.Unix())
	if err != nil {
		return errs.Cache("put", err)
	}
	return nil
}

// PutQuick upserts path's quick-hash, leaving any cached full-hash intact.
func (c *Cache) PutQuick(ctx context.Context, path string, size, mtime int64, quick uint64, now time.Time) error {
	return c.upsert(ctx, path, size, mtime, &quick, nil, now)
}

// PutFull upserts path's full-hash, leaving any cached quick-hash intact.
func (c *Cache) PutFull(ctx context.Context, path string, size, mtime int64, full []byte, now time.Time) error {
	return c.upsert(ctx, path, size, mtime, nil, full, now)
}

// Invalidate removes any cached entry for path.
func (c *Cache) Invalidate(ctx context.Context, path string) error {
	_, err := c.writeDB.ExecContext(ctx, "DELETE FROM entries WHERE path = ?", path)
	if err != nil {
		return errs.Cache("invalidate", err)
	}
	return nil
}

// Lookup batches a candidate set into a single SELECT ... WHERE path IN
// (...) query, returning cache hits keyed by path. Entries whose witness
// no longer matches are treated as misses and are not returned (callers
// should fall through to re-hashing; Invalidate is not called here since
// a fresh hash will overwrite the row via PutQuick/PutFull anyway).
func (c *Cache) Lookup(ctx context.Context, candidates []model.FileDescriptor) (map[string]model.FileHashes, error) {
	hits := make(map[string]model.FileHashes, len(candidates))
	if len(candidates) == 0 {
		return hits, nil
	}

	const batchSize = 500
	for start := 0; start < len(candidates); start += batchSize {
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		if err := c.lookupBatch(ctx, candidates[start:end], hits); err != nil {
			return nil, err
		}
	}
	return hits, nil
}

func (c *Cache) lookupBatch(ctx context.Context, batch []model.FileDescriptor, hits map[string]model.FileHashes) error {
	args := make([]interface{}, len(batch))
	byPath := make(map[string]model.FileDescriptor, len(batch))
	for i, fd := range batch {
		args[i] = fd.Path
		byPath[fd.Path] = fd
	}
	placeholders := strings.Repeat("?,", len(batch))
	placeholders = placeholders[:len(placeholders)-1]

	rows, err := c.readDB.QueryContext(ctx,
		"SELECT path, size, mtime, quick, full FROM entries WHERE path IN ("+placeholders+")", args...)
	if err != nil {
		return errs.Cache("lookup batch", err)
	}
	defer rows.Close()

	for rows.Next() {
		var path string
		var size, mtime int64
		var quick sql.NullInt64
		var full []byte
		if err := rows.Scan(&path, &size, &mtime, &quick, &full); err != nil {
			return errs.Cache("scan lookup row", err)
		}
		fd, ok := byPath[path]
		if !ok || fd.Size != size || fd.MTime.Unix() != mtime {
			continue
		}
		h := model.FileHashes{Size: size}
		if quick.Valid {
			h.Quick = uint64(quick.Int64)
			h.HasQuick = true
		}
		if full != nil {
			h.Full = full
			h.HasFull = true
			h.FullAlgo = c.opts.HashAlgo
		}
		hits[path] = h
	}
	return rows.Err()
}

// Prune evicts entries under the two configured policies: a hard count
// cap (LRU by last_access) and a time cap (last_access older than
// maxAge). Both run opportunistically and never block a concurrent Get,
// since eviction deletes by row rather than locking the whole table.
func (c *Cache) Prune(ctx context.Context, now time.Time) (evicted int64, err error) {
	cutoff := now.Add(-c.opts.maxAge()).Unix()
	res, err := c.writeDB.ExecContext(ctx, "DELETE FROM entries WHERE last_access < ?", cutoff)
	if err != nil {
		return 0, errs.Cache("prune by age", err)
	}
	n, _ := res.RowsAffected()
	evicted += n

	var count int64
	if err := c.writeDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&count); err != nil {
		return evicted, errs.Cache("count entries", err)
	}
	maxEntries := int64(c.opts.maxEntries())
	if count > maxEntries {
		over := count - maxEntries
		res, err := c.writeDB.ExecContext(ctx, `
			DELETE FROM entries WHERE path IN (
				SELECT path FROM entries ORDER BY last_access ASC LIMIT ?
			)`, over)
		if err != nil {
			return evicted, errs.Cache("prune by size", err)
		}
		n, _ := res.RowsAffected()
		evicted += n
	}
	return evicted, nil
}
