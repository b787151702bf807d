package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andybalholm/brotli"
)

// cache is the on-disk, content-addressed http(s) import cache:
// entries are keyed by the fetched URL, compressed at rest with
// brotli, and written via a temp-file-then-rename so concurrent runs
// never observe a partially written entry.
type cache struct {
	dir string
}

func newCache(dir string) (*cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &cache{dir: dir}, nil
}

func (c *cache) keyPath(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:]))
}

// get returns the cached, decompressed body for url, if present.
func (c *cache) get(url string) ([]byte, bool) {
	f, err := os.Open(c.keyPath(url))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	r := brotli.NewReader(f)
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// put writes raw to the cache under url's key, compressed with
// brotli, via a temp file in the same directory followed by an atomic
// rename, so concurrent runs never corrupt each other's entries.
func (c *cache) put(url string, raw []byte) error {
	tmp, err := os.CreateTemp(c.dir, "fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}
	tmpPath := tmp.Name()

	w := brotli.NewWriter(tmp)
	if _, err := w.Write(raw); err != nil {
		w.Close()
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("compressing cache entry: %w", err)
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("closing cache compressor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing cache temp file: %w", err)
	}

	if err := os.Rename(tmpPath, c.keyPath(url)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming cache entry into place: %w", err)
	}
	return nil
}
