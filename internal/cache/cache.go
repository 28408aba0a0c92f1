// Package cache provides a content-addressed filesystem cache for
// synthesized narration audio.
//
// Entries are keyed by a stable hash of the processed text, so identical
// requests reuse prior synthesis output instead of hitting rate-limited,
// slow, or billed providers. The cache is purely an optimization: its absence
// changes latency and cost, never correctness.
package cache

import (
	"crypto/md5" // #nosec G501 -- content addressing, not security
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/clipforge/narration-service/internal/core"
)

const (
	audioFileExtension    = ".mp3"
	tempFilePattern       = "cache-put-*.tmp"
	dirPermissions        = 0o750
	filePermissions       = 0o600
	envCacheDir           = "NARRATION_CACHE_DIR"
	appName               = "narration-service"
	defaultCacheDirName   = "audio-cache"
	fallbackCacheDirName  = "/tmp"
	minEntryBytesDefault  = core.MinAudioFileBytes
	errFmtCreateCacheDir  = "failed to create cache directory %s: %w"
	errFmtRelocateSource  = "failed to relocate %s into cache: %w"
	errFmtCopyBackToInput = "failed to copy cache entry back to %s: %w"
)

// DefaultDir returns the cache directory, honoring the NARRATION_CACHE_DIR
// override and falling back to a conventional user cache location.
func DefaultDir() string {
	if dir := os.Getenv(envCacheDir); dir != "" {
		return dir
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(fallbackCacheDirName, appName, defaultCacheDirName)
	}

	return filepath.Join(homeDir, ".cache", appName, defaultCacheDirName)
}

// Cache is a content-addressed audio cache rooted at a single directory.
type Cache struct {
	dir           string
	minEntryBytes int64
}

// New creates a cache rooted at dir, creating the directory if needed.
func New(dir string) (*Cache, error) {
	if dir == "" {
		dir = DefaultDir()
	}

	mkdirErr := os.MkdirAll(dir, dirPermissions)
	if mkdirErr != nil {
		return nil, fmt.Errorf(errFmtCreateCacheDir, dir, mkdirErr)
	}

	return &Cache{
		dir:           dir,
		minEntryBytes: minEntryBytesDefault,
	}, nil
}

// Dir returns the cache root directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Key returns the stable content hash for processed text. The same text
// always yields the same key, across calls and across processes.
func Key(processedText string) string {
	sum := md5.Sum([]byte(processedText)) // #nosec G401 -- content addressing, not security

	return hex.EncodeToString(sum[:])
}

// PathFor returns the deterministic cache location for processed text.
func (c *Cache) PathFor(processedText string) string {
	return filepath.Join(c.dir, Key(processedText)+audioFileExtension)
}

// Get returns the cached audio path for processed text, if a usable entry
// exists. Files at or below the trivial-audio floor are treated as corrupt
// prior writes and reported as misses, not hits.
func (c *Cache) Get(processedText string) (string, bool) {
	path := c.PathFor(processedText)

	info, statErr := os.Stat(path)
	if statErr != nil {
		return "", false
	}

	if info.Size() <= c.minEntryBytes {
		return "", false
	}

	return path, true
}

// Put relocates sourcePath into the cache slot for processedText and then
// copies the entry back to sourcePath, so the caller's output file remains in
// place. The cache write itself is atomic: either a rename within the same
// filesystem, or a temp-file write followed by a rename. Concurrent writers
// for the same key race safely with last-writer-wins semantics.
func (c *Cache) Put(processedText, sourcePath string) (string, error) {
	cachePath := c.PathFor(processedText)

	renameErr := os.Rename(sourcePath, cachePath)
	if renameErr != nil {
		// Cross-device moves cannot rename; fall back to an atomic copy.
		copyErr := c.copyAtomic(sourcePath, cachePath)
		if copyErr != nil {
			return "", fmt.Errorf(errFmtRelocateSource, sourcePath, copyErr)
		}

		removeErr := os.Remove(sourcePath)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			return "", fmt.Errorf(errFmtRelocateSource, sourcePath, removeErr)
		}
	}

	copyBackErr := copyFile(cachePath, sourcePath)
	if copyBackErr != nil {
		return "", fmt.Errorf(errFmtCopyBackToInput, sourcePath, copyBackErr)
	}

	return cachePath, nil
}

// CopyTo copies the cache entry for processedText to destPath. Used to
// satisfy an explicit output-path request from a cache hit.
func (c *Cache) CopyTo(processedText, destPath string) error {
	cachePath, hit := c.Get(processedText)
	if !hit {
		return fmt.Errorf("no cache entry for key %s: %w", Key(processedText), os.ErrNotExist)
	}

	if cachePath == destPath {
		return nil
	}

	mkdirErr := os.MkdirAll(filepath.Dir(destPath), dirPermissions)
	if mkdirErr != nil {
		return fmt.Errorf(errFmtCreateCacheDir, filepath.Dir(destPath), mkdirErr)
	}

	return copyFile(cachePath, destPath)
}

// copyAtomic writes src's contents to a temp file in the cache directory and
// renames it into place, so a crash mid-write never leaves a partial entry at
// the final path.
func (c *Cache) copyAtomic(src, dest string) error {
	tempFile, tempErr := os.CreateTemp(c.dir, tempFilePattern)
	if tempErr != nil {
		return fmt.Errorf("failed to create temp file: %w", tempErr)
	}

	tempPath := tempFile.Name()

	writeErr := writeFromFile(tempFile, src)
	if writeErr != nil {
		_ = os.Remove(tempPath)

		return writeErr
	}

	renameErr := os.Rename(tempPath, dest)
	if renameErr != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to rename temp file into cache: %w", renameErr)
	}

	return nil
}

func writeFromFile(dest *os.File, srcPath string) error {
	src, openErr := os.Open(srcPath) // #nosec G304 -- path is produced by this service
	if openErr != nil {
		_ = dest.Close()

		return fmt.Errorf("failed to open source file: %w", openErr)
	}

	_, copyErr := io.Copy(dest, src)

	closeSrcErr := src.Close()
	closeDestErr := dest.Close()

	if copyErr != nil {
		return fmt.Errorf("failed to copy file contents: %w", copyErr)
	}

	if closeSrcErr != nil {
		return fmt.Errorf("failed to close source file: %w", closeSrcErr)
	}

	if closeDestErr != nil {
		return fmt.Errorf("failed to close destination file: %w", closeDestErr)
	}

	return nil
}

func copyFile(src, dest string) error {
	destFile, createErr := os.OpenFile(
		dest,
		os.O_WRONLY|os.O_CREATE|os.O_TRUNC,
		filePermissions,
	) // #nosec G304 -- path is produced by this service
	if createErr != nil {
		return fmt.Errorf("failed to create destination file: %w", createErr)
	}

	return writeFromFile(destFile, src)
}
