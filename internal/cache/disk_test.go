package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDisk_ImplementsStore(_ *testing.T) {
	var _ Store = (*Disk)(nil)
}

func TestDisk_PutAndGet(t *testing.T) {
	d := NewDisk(t.TempDir(), nil)

	if ok := d.Put(CategoryGeocode, "tel_aviv", map[string]any{"latitude": 32.08, "longitude": 34.78}); !ok {
		t.Fatal("Put failed")
	}
	data, ok := d.Get(CategoryGeocode, "tel_aviv")
	if !ok {
		t.Fatal("expected cache hit")
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("stored payload is not valid JSON: %v", err)
	}
	if got["latitude"] != 32.08 {
		t.Errorf("latitude = %v, want 32.08", got["latitude"])
	}
	if _, ok := got["timestamp"]; !ok {
		t.Error("expected injected timestamp field")
	}
}

func TestDisk_Miss(t *testing.T) {
	d := NewDisk(t.TempDir(), nil)
	if _, ok := d.Get(CategoryRoutes, "missing"); ok {
		t.Error("expected cache miss")
	}
}

func TestDisk_TTLExpiration(t *testing.T) {
	d := NewDisk(t.TempDir(), map[string]time.Duration{CategoryRoutes: time.Hour})

	d.Put(CategoryRoutes, "route1", map[string]any{"distance": 42.0})
	if _, ok := d.Get(CategoryRoutes, "route1"); !ok {
		t.Fatal("expected hit before expiry")
	}

	// Advance the clock past the TTL.
	d.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, ok := d.Get(CategoryRoutes, "route1"); ok {
		t.Error("expected miss after TTL elapsed")
	}
}

func TestDisk_ZeroTTLNeverExpires(t *testing.T) {
	d := NewDisk(t.TempDir(), nil)

	d.Put(CategoryVehicles, "toyota_corolla_2020", map[string]any{"fuel_consumption": 6.5})
	d.now = func() time.Time { return time.Now().Add(1000 * time.Hour) }
	if _, ok := d.Get(CategoryVehicles, "toyota_corolla_2020"); !ok {
		t.Error("vehicle entries must not expire")
	}
}

func TestDisk_CorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	d := NewDisk(dir, nil)

	if err := os.MkdirAll(filepath.Join(dir, CategoryGeocode), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, CategoryGeocode, "bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Get(CategoryGeocode, "bad"); ok {
		t.Error("corrupt entry must read as a miss, not an error")
	}
}

func TestDisk_ListPayloadRoundTrip(t *testing.T) {
	d := NewDisk(t.TempDir(), nil)

	routes := []map[string]any{{"distance": 12.5}, {"distance": 14.1}}
	if ok := d.Put(CategoryRoutes, "a_b_fastest", routes); !ok {
		t.Fatal("Put failed")
	}
	data, ok := d.Get(CategoryRoutes, "a_b_fastest")
	if !ok {
		t.Fatal("expected hit")
	}
	var got []map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got %d routes, want 2", len(got))
	}
}

func TestDisk_ListPayloadExpires(t *testing.T) {
	d := NewDisk(t.TempDir(), map[string]time.Duration{CategoryRoutes: time.Hour})

	routes := []map[string]any{{"distance": 12.5}}
	if ok := d.Put(CategoryRoutes, "a_b_fastest", routes); !ok {
		t.Fatal("Put failed")
	}
	if _, ok := d.Get(CategoryRoutes, "a_b_fastest"); !ok {
		t.Fatal("expected hit before expiry")
	}

	// Arrays carry no injected timestamp; expiry runs off the file mtime.
	d.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, ok := d.Get(CategoryRoutes, "a_b_fastest"); ok {
		t.Error("expected miss after TTL elapsed")
	}
}

func TestDisk_ListPayloadZeroTTLNeverExpires(t *testing.T) {
	d := NewDisk(t.TempDir(), map[string]time.Duration{CategoryRoutes: 0})

	d.Put(CategoryRoutes, "a_b_fastest", []map[string]any{{"distance": 12.5}})
	d.now = func() time.Time { return time.Now().Add(1000 * time.Hour) }
	if _, ok := d.Get(CategoryRoutes, "a_b_fastest"); !ok {
		t.Error("zero-TTL list entries must not expire")
	}
}

func TestDisk_Clear(t *testing.T) {
	d := NewDisk(t.TempDir(), nil)

	d.Put(CategoryCities, "search_haifa", map[string]any{"n": 1})
	if ok := d.Clear(CategoryCities); !ok {
		t.Fatal("Clear failed")
	}
	if _, ok := d.Get(CategoryCities, "search_haifa"); ok {
		t.Error("expected miss after Clear")
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{"lowercases", []string{"Toyota", "Corolla", "2020"}, "toyota_corolla_2020"},
		{"collapses whitespace", []string{"Tel  Aviv"}, "tel_aviv"},
		{"strips unsafe chars", []string{"a/b:c"}, "a_b_c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.parts...); got != tt.want {
				t.Errorf("Key(%v) = %q, want %q", tt.parts, got, tt.want)
			}
		})
	}
}
