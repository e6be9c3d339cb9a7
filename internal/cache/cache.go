// Package cache stores extracted text artifacts keyed by a hash of the
// source file's content and metadata. Artifacts are immutable: changed
// content produces a new key and the old artifact is simply orphaned.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Artifact pairs a derived text file with its metadata sidecar.
type Artifact struct {
	Key      string
	TextPath string
	MetaPath string
	Metadata Metadata
}

// Metadata describes the source file an artifact was derived from.
type Metadata struct {
	OriginalPath string `json:"original_path"`
	Size         int64  `json:"size"`
	ModTime      int64  `json:"mtime"`
	CacheKey     string `json:"cache_key"`
}

// Cache is a content-addressed artifact directory.
type Cache struct {
	dir string
}

// New creates the cache directory if needed and returns a Cache over it.
func New(dir string) (*Cache, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cache: resolve dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}
	return &Cache{dir: abs}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// BuildKey computes the cache key for a source file: sha256 over its
// byte content, then its size and modification time. Same bytes and
// metadata always map to the same key.
func (c *Cache) BuildKey(sourcePath string) (string, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return "", fmt.Errorf("cache: stat source: %w", err)
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("cache: open source: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("cache: hash source: %w", err)
	}
	h.Write([]byte(strconv.FormatInt(info.Size(), 10)))
	h.Write([]byte(strconv.FormatInt(info.ModTime().Unix(), 10)))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (c *Cache) pathsForKey(key string) (textPath, metaPath string) {
	return filepath.Join(c.dir, key+".md"), filepath.Join(c.dir, key+".json")
}

// Load returns the cached artifact for a source file, or ok=false on a
// cache miss. A corrupt metadata sidecar counts as a miss.
func (c *Cache) Load(sourcePath string) (Artifact, bool, error) {
	key, err := c.BuildKey(sourcePath)
	if err != nil {
		return Artifact{}, false, err
	}
	textPath, metaPath := c.pathsForKey(key)

	metaBytes, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		return Artifact{}, false, nil
	}
	if err != nil {
		return Artifact{}, false, fmt.Errorf("cache: read metadata: %w", err)
	}
	if _, err := os.Stat(textPath); err != nil {
		return Artifact{}, false, nil
	}

	var meta Metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return Artifact{}, false, nil
	}
	return Artifact{Key: key, TextPath: textPath, MetaPath: metaPath, Metadata: meta}, true, nil
}

// ReadText returns the artifact's derived text.
func (c *Cache) ReadText(a Artifact) (string, error) {
	data, err := os.ReadFile(a.TextPath)
	if err != nil {
		return "", fmt.Errorf("cache: read artifact: %w", err)
	}
	return string(data), nil
}

// Save writes the derived text and its metadata sidecar. Both writes go
// to a temporary file first and are renamed into place, so concurrent
// readers never observe a half-written artifact.
func (c *Cache) Save(sourcePath, text string) (Artifact, error) {
	key, err := c.BuildKey(sourcePath)
	if err != nil {
		return Artifact{}, err
	}
	info, err := os.Stat(sourcePath)
	if err != nil {
		return Artifact{}, fmt.Errorf("cache: stat source: %w", err)
	}

	textPath, metaPath := c.pathsForKey(key)

	if err := c.writeAtomic(textPath, []byte(text)); err != nil {
		return Artifact{}, err
	}

	meta := Metadata{
		OriginalPath: sourcePath,
		Size:         info.Size(),
		ModTime:      info.ModTime().Unix(),
		CacheKey:     key,
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return Artifact{}, fmt.Errorf("cache: encode metadata: %w", err)
	}
	if err := c.writeAtomic(metaPath, metaBytes); err != nil {
		return Artifact{}, err
	}

	return Artifact{Key: key, TextPath: textPath, MetaPath: metaPath, Metadata: meta}, nil
}

// Delete removes the artifact for a source file. Returns false when
// there was nothing to delete.
func (c *Cache) Delete(sourcePath string) (bool, error) {
	art, ok, err := c.Load(sourcePath)
	if err != nil || !ok {
		return false, err
	}
	if err := os.Remove(art.TextPath); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("cache: delete artifact: %w", err)
	}
	if err := os.Remove(art.MetaPath); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("cache: delete metadata: %w", err)
	}
	return true, nil
}

// Size returns the total bytes held by all artifacts and sidecars.
func (c *Cache) Size() (int64, error) {
	var total int64
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("cache: read dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

func (c *Cache) writeAtomic(dest string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cache: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: rename into place: %w", err)
	}
	return nil
}
