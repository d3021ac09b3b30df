package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	diskIndexFile = "caches.json"
	diskEntryExt  = ".zst"
)

// DiskStorage keeps each cache in its own directory beneath a base path.
// Entries are zstd-compressed JSON records named by the MD5 of their key,
// and a small index file records cache names in creation order.
//
// A DiskStorage assumes it is the only writer of its directory.
type DiskStorage struct {
	dir string

	mu    sync.RWMutex
	index []diskIndexEntry

	enc *zstd.Encoder
	dec *zstd.Decoder
}

type diskIndexEntry struct {
	Name    string    `json:"name"`
	Dir     string    `json:"dir"`
	Created time.Time `json:"created"`
}

type diskRecord struct {
	Key      string    `json:"key"`
	Response *Response `json:"response"`
}

// OpenDisk opens (creating if needed) a disk storage rooted at dir.
func OpenDisk(dir string) (*DiskStorage, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("cachestore: disk directory is required")
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cachestore: create base directory: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("cachestore: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("cachestore: zstd decoder: %w", err)
	}

	s := &DiskStorage{dir: dir, enc: enc, dec: dec}
	if err := s.loadIndex(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases compression resources.
func (s *DiskStorage) Close() error {
	if s.dec != nil {
		s.dec.Close()
	}
	if s.enc != nil {
		return s.enc.Close()
	}
	return nil
}

// Dir returns the base directory.
func (s *DiskStorage) Dir() string {
	return s.dir
}

// Open returns the named cache, creating its directory if absent.
func (s *DiskStorage) Open(ctx context.Context, name string) (Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.lookupLocked(name); ok {
		return &DiskCache{storage: s, name: name, dir: filepath.Join(s.dir, e.Dir)}, nil
	}

	entry := diskIndexEntry{
		Name:    name,
		Dir:     encodeKey("cache:" + name),
		Created: time.Now().UTC(),
	}
	path := filepath.Join(s.dir, entry.Dir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("cachestore: create cache directory: %w", err)
	}
	next := append(append([]diskIndexEntry(nil), s.index...), entry)
	if err := s.saveIndexLocked(next); err != nil {
		return nil, err
	}
	s.index = next
	return &DiskCache{storage: s, name: name, dir: path}, nil
}

// Lookup returns the named cache without creating it.
func (s *DiskStorage) Lookup(ctx context.Context, name string) (Cache, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.lookupLocked(name)
	if !ok {
		return nil, false, nil
	}
	return &DiskCache{storage: s, name: name, dir: filepath.Join(s.dir, e.Dir)}, true, nil
}

// Has reports whether the named cache exists.
func (s *DiskStorage) Has(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lookupLocked(name)
	return ok, nil
}

// Keys lists cache names in creation order.
func (s *DiskStorage) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.index))
	for i, e := range s.index {
		names[i] = e.Name
	}
	return names, nil
}

// Delete removes the named cache directory and its index entry.
func (s *DiskStorage) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := -1
	for i, e := range s.index {
		if e.Name == name {
			pos = i
			break
		}
	}
	if pos < 0 {
		return false, nil
	}
	entry := s.index[pos]

	next := append(s.index[:pos:pos], s.index[pos+1:]...)
	if err := s.saveIndexLocked(next); err != nil {
		return false, err
	}
	s.index = next
	if err := os.RemoveAll(filepath.Join(s.dir, entry.Dir)); err != nil {
		return true, fmt.Errorf("cachestore: remove cache directory: %w", err)
	}
	return true, nil
}

// Match looks url up across every cache in creation order.
func (s *DiskStorage) Match(ctx context.Context, url string) (*Response, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	key, err := Key(url)
	if err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	dirs := make([]string, len(s.index))
	for i, e := range s.index {
		dirs[i] = filepath.Join(s.dir, e.Dir)
	}
	s.mu.RUnlock()

	for _, dir := range dirs {
		resp, ok, err := s.readEntry(dir, key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return resp, true, nil
		}
	}
	return nil, false, nil
}

func (s *DiskStorage) lookupLocked(name string) (diskIndexEntry, bool) {
	for _, e := range s.index {
		if e.Name == name {
			return e, true
		}
	}
	return diskIndexEntry{}, false
}

func (s *DiskStorage) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.dir, diskIndexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cachestore: read index: %w", err)
	}
	if err := json.Unmarshal(data, &s.index); err != nil {
		return fmt.Errorf("cachestore: decode index: %w", err)
	}
	return nil
}

func (s *DiskStorage) saveIndexLocked(index []diskIndexEntry) error {
	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("cachestore: encode index: %w", err)
	}
	tmp, err := writeTemp(s.dir, data)
	if err != nil {
		return fmt.Errorf("cachestore: write index: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, diskIndexFile)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("cachestore: write index: %w", err)
	}
	return nil
}

func (s *DiskStorage) readEntry(dir, key string) (*Response, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, encodeKey(key)+diskEntryExt))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cachestore: read entry: %w", err)
	}
	rec, err := s.decodeRecord(data)
	if err != nil {
		return nil, false, err
	}
	return rec.Response, true, nil
}

func (s *DiskStorage) encodeRecord(rec diskRecord) ([]byte, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("cachestore: encode entry: %w", err)
	}
	return s.enc.EncodeAll(raw, nil), nil
}

func (s *DiskStorage) decodeRecord(data []byte) (diskRecord, error) {
	raw, err := s.dec.DecodeAll(data, nil)
	if err != nil {
		return diskRecord{}, fmt.Errorf("cachestore: decompress entry: %w", err)
	}
	var rec diskRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return diskRecord{}, fmt.Errorf("cachestore: decode entry: %w", err)
	}
	if rec.Response == nil {
		return diskRecord{}, ErrNilResponse
	}
	return rec, nil
}

// DiskCache is a single cache directory.
type DiskCache struct {
	storage *DiskStorage
	name    string
	dir     string
}

// Name returns the cache name.
func (c *DiskCache) Name() string {
	return c.name
}

// Put stores a single response.
func (c *DiskCache) Put(ctx context.Context, url string, resp *Response) error {
	return c.PutAll(ctx, []Entry{{URL: url, Response: resp}})
}

// PutAll writes every entry to a temporary file first and only renames them
// into place once all writes succeeded. If a rename fails, the entries
// already renamed are put back to what they held before the batch.
func (c *DiskCache) PutAll(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ok, _ := c.storage.Has(ctx, c.name); !ok {
		return fmt.Errorf("%w: %s", ErrCacheNotFound, c.name)
	}
	prepared, err := prepareEntries(entries, time.Now())
	if err != nil {
		return err
	}

	temps := make([]string, 0, len(prepared))
	cleanup := func() {
		for _, t := range temps {
			_ = os.Remove(t)
		}
	}
	for _, p := range prepared {
		data, err := c.storage.encodeRecord(diskRecord{Key: p.key, Response: p.resp})
		if err != nil {
			cleanup()
			return err
		}
		tmp, err := writeTemp(c.dir, data)
		if err != nil {
			cleanup()
			return fmt.Errorf("cachestore: write entry: %w", err)
		}
		temps = append(temps, tmp)
	}

	var committed []diskPrevious
	seen := make(map[string]bool, len(prepared))
	for i, p := range prepared {
		dst := filepath.Join(c.dir, encodeKey(p.key)+diskEntryExt)
		var prev diskPrevious
		if !seen[dst] {
			if prev, err = readPrevious(dst); err != nil {
				for _, t := range temps[i:] {
					_ = os.Remove(t)
				}
				return errors.Join(err, c.rollback(committed))
			}
		}
		if err := os.Rename(temps[i], dst); err != nil {
			for _, t := range temps[i:] {
				_ = os.Remove(t)
			}
			return errors.Join(fmt.Errorf("cachestore: commit entry: %w", err), c.rollback(committed))
		}
		if !seen[dst] {
			seen[dst] = true
			committed = append(committed, prev)
		}
	}
	return nil
}

// diskPrevious is what an entry file held before a batch touched it.
type diskPrevious struct {
	path    string
	data    []byte
	existed bool
}

// readPrevious records the current content of an entry file. Anything that
// is not a regular file counts as absent.
func readPrevious(path string) (diskPrevious, error) {
	prev := diskPrevious{path: path}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		return prev, nil
	}
	if err != nil {
		return prev, fmt.Errorf("cachestore: stat entry: %w", err)
	}
	if prev.data, err = os.ReadFile(path); err != nil {
		return prev, fmt.Errorf("cachestore: read entry: %w", err)
	}
	prev.existed = true
	return prev, nil
}

func (c *DiskCache) rollback(committed []diskPrevious) error {
	var errs []error
	for _, p := range committed {
		if !p.existed {
			if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("cachestore: remove entry: %w", err))
			}
			continue
		}
		tmp, err := writeTemp(c.dir, p.data)
		if err == nil {
			if err = os.Rename(tmp, p.path); err != nil {
				_ = os.Remove(tmp)
			}
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("cachestore: restore entry: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Match returns the stored response for url.
func (c *DiskCache) Match(ctx context.Context, url string) (*Response, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	key, err := Key(url)
	if err != nil {
		return nil, false, err
	}
	return c.storage.readEntry(c.dir, key)
}

// Delete removes the entry for url.
func (c *DiskCache) Delete(ctx context.Context, url string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key, err := Key(url)
	if err != nil {
		return false, err
	}
	err = os.Remove(filepath.Join(c.dir, encodeKey(key)+diskEntryExt))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cachestore: delete entry: %w", err)
	}
	return true, nil
}

// Keys lists canonical keys, sorted.
func (c *DiskCache) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cachestore: list entries: %w", err)
	}

	keys := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), diskEntryExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.dir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("cachestore: read entry: %w", err)
		}
		rec, err := c.storage.decodeRecord(data)
		if err != nil {
			return nil, err
		}
		keys = append(keys, rec.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

func writeTemp(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

// Ensure DiskStorage implements Storage
var _ Storage = (*DiskStorage)(nil)

// Ensure DiskCache implements Cache
var _ Cache = (*DiskCache)(nil)
