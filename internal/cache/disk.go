package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/waypoint-labs/fuel-router/internal/logging"
)

// timestampField is injected into mapping-shaped payloads on write and is the
// basis for expiry checks on read.
const timestampField = "timestamp"

// Disk stores one JSON file per key under one directory per category.
// Files are human-readable UTF-8 with an injected timestamp field for
// mapping-shaped payloads. Concurrent writers to the same key race with
// last-writer-wins semantics; entries are derived data, so a lost write only
// costs a future miss.
type Disk struct {
	root string
	ttls map[string]time.Duration
	now  func() time.Time
}

// NewDisk creates a Disk store rooted at dir. ttls overrides the per-category
// expiry; categories absent from the map fall back to DefaultTTLs.
func NewDisk(dir string, ttls map[string]time.Duration) *Disk {
	merged := make(map[string]time.Duration, len(DefaultTTLs))
	for cat, ttl := range DefaultTTLs {
		merged[cat] = ttl
	}
	for cat, ttl := range ttls {
		merged[cat] = ttl
	}
	return &Disk{root: dir, ttls: merged, now: time.Now}
}

func (d *Disk) path(category, key string) string {
	return filepath.Join(d.root, category, key+".json")
}

// Get returns the stored payload for key, or false if the entry is missing,
// unreadable, unparseable, or past its category TTL. Read failures are
// logged and treated as misses, never surfaced.
func (d *Disk) Get(category, key string) ([]byte, bool) {
	data, err := os.ReadFile(d.path(category, key))
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Logger.Warn("cache read failed", "category", category, "key", key, "error", err)
		}
		return nil, false
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		// Non-mapping payloads (e.g. cached route lists) carry no injected
		// timestamp; their category TTL runs off the file's mtime.
		if !json.Valid(data) {
			logging.Logger.Warn("cache entry corrupt", "category", category, "key", key)
			return nil, false
		}
		if ttl := d.ttls[category]; ttl > 0 {
			info, err := os.Stat(d.path(category, key))
			if err != nil {
				logging.Logger.Warn("cache stat failed", "category", category, "key", key, "error", err)
				return nil, false
			}
			if d.now().Sub(info.ModTime()) > ttl {
				return nil, false
			}
		}
		return data, true
	}

	if ttl := d.ttls[category]; ttl > 0 {
		if raw, ok := payload[timestampField]; ok {
			var stored time.Time
			if err := json.Unmarshal(raw, &stored); err != nil {
				logging.Logger.Warn("cache timestamp corrupt", "category", category, "key", key)
				return nil, false
			}
			if d.now().Sub(stored) > ttl {
				return nil, false
			}
		}
	}
	return data, true
}

// Put serializes value into the category directory, creating it if absent.
// Mapping-shaped values get a timestamp field injected. The file is written
// to a temp name and renamed so readers never observe a partial entry.
// Failures are logged and reported as false.
func (d *Disk) Put(category, key string, value any) bool {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		logging.Logger.Warn("cache marshal failed", "category", category, "key", key, "error", err)
		return false
	}

	// Inject the timestamp only for mapping-shaped payloads.
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err == nil {
		ts, _ := json.Marshal(d.now())
		payload[timestampField] = ts
		if data, err = json.MarshalIndent(payload, "", "  "); err != nil {
			logging.Logger.Warn("cache marshal failed", "category", category, "key", key, "error", err)
			return false
		}
	}

	dir := filepath.Join(d.root, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.Logger.Warn("cache mkdir failed", "category", category, "error", err)
		return false
	}

	tmp, err := os.CreateTemp(dir, key+".*.tmp")
	if err != nil {
		logging.Logger.Warn("cache write failed", "category", category, "key", key, "error", err)
		return false
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		logging.Logger.Warn("cache write failed", "category", category, "key", key, "error", err)
		return false
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		logging.Logger.Warn("cache write failed", "category", category, "key", key, "error", err)
		return false
	}
	if err := os.Rename(tmp.Name(), d.path(category, key)); err != nil {
		_ = os.Remove(tmp.Name())
		logging.Logger.Warn("cache rename failed", "category", category, "key", key, "error", err)
		return false
	}
	return true
}

// Clear removes every entry in the category.
func (d *Disk) Clear(category string) bool {
	if err := os.RemoveAll(filepath.Join(d.root, category)); err != nil {
		logging.Logger.Warn("cache clear failed", "category", category, "error", err)
		return false
	}
	return true
}
