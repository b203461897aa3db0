package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vinothpandian/inkdash/internal/calendar"
)

// Cache is a JSON snapshot of the last successful event aggregation. It lets
// the dashboard keep rendering through provider outages and rate limits.
type Cache struct {
	Events   []calendar.Event `json:"events"`
	LastSync time.Time        `json:"last_sync"`
	cacheDir string
	filePath string
}

func New(cacheDir string) *Cache {
	if cacheDir == "" {
		if defaultDir, err := GetDefaultCacheDir(); err == nil {
			cacheDir = defaultDir
		} else {
			cacheDir = "/tmp/inkdash"
		}
	}

	return &Cache{
		Events:   []calendar.Event{},
		cacheDir: cacheDir,
		filePath: filepath.Join(cacheDir, "events.json"),
	}
}

func (c *Cache) Load() error {
	if err := os.MkdirAll(c.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Missing file just means a cold start
	if _, err := os.Stat(c.filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(c.filePath)
	if err != nil {
		return fmt.Errorf("failed to read cache file: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to unmarshal cache: %w", err)
	}

	return nil
}

func (c *Cache) Save() error {
	if err := os.MkdirAll(c.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	if err := os.WriteFile(c.filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	return nil
}

// Update replaces the snapshot with a fresh aggregation result.
func (c *Cache) Update(events []calendar.Event) {
	c.Events = events
	c.LastSync = time.Now()
}

// IsFresh reports whether the snapshot is younger than maxAge.
func (c *Cache) IsFresh(maxAge time.Duration) bool {
	if c.LastSync.IsZero() {
		return false
	}
	return time.Since(c.LastSync) < maxAge
}

func (c *Cache) EventCount() int {
	return len(c.Events)
}

func (c *Cache) GetCacheDir() string {
	return c.cacheDir
}

func (c *Cache) GetFilePath() string {
	return c.filePath
}

// GetDefaultCacheDir returns ~/.cache/inkdash (or the platform equivalent).
func GetDefaultCacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return filepath.Join(base, "inkdash"), nil
}
