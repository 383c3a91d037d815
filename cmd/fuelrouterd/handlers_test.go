package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	fuelrouter "github.com/waypoint-labs/fuel-router"
	"github.com/waypoint-labs/fuel-router/internal/cache"
)

func TestRouter_Healthz(t *testing.T) {
	store := cache.NewDisk(t.TempDir(), nil)
	router := newRouter(&fuelrouter.Estimator{}, store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", rec.Body.String())
	}
}

func TestRouter_Version(t *testing.T) {
	store := cache.NewDisk(t.TempDir(), nil)
	router := newRouter(&fuelrouter.Estimator{}, store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /version = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["version"] == "" {
		t.Error("expected a version field")
	}
}

func TestRouter_CacheClear(t *testing.T) {
	store := cache.NewDisk(t.TempDir(), nil)
	store.Put(cache.CategoryRoutes, "a_b_fastest", []map[string]any{{"distance": 1.0}})
	router := newRouter(&fuelrouter.Estimator{}, store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/cache/routes", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE /api/cache/routes = %d, want 200", rec.Code)
	}
	if _, ok := store.Get(cache.CategoryRoutes, "a_b_fastest"); ok {
		t.Error("expected routes cache to be empty after clear")
	}
}
