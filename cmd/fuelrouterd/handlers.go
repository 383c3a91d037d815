package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	fuelrouter "github.com/waypoint-labs/fuel-router"
	"github.com/waypoint-labs/fuel-router/geo"
	"github.com/waypoint-labs/fuel-router/internal/cache"
	"github.com/waypoint-labs/fuel-router/internal/logging"
	"github.com/waypoint-labs/fuel-router/internal/version"
	"github.com/waypoint-labs/fuel-router/providers"
	"github.com/waypoint-labs/fuel-router/routing"
	"github.com/waypoint-labs/fuel-router/vehicles"
)

// newRouter builds the HTTP router.
func newRouter(e *fuelrouter.Estimator, store cache.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": version.String()})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/cities/search", searchCitiesHandler(e))
		r.Get("/cities/info", cityInfoHandler(e))
		r.Get("/vehicles/specs", vehicleSpecsHandler(e))
		r.Get("/vehicles/models", vehicleModelsHandler(e))
		r.Post("/routes", routesHandler(e))
		r.Post("/estimate", estimateHandler(e))
		r.Delete("/cache/{category}", clearCacheHandler(store))
	})

	return r
}

func searchCitiesHandler(e *fuelrouter.Estimator) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		query := req.URL.Query().Get("q")
		matches, err := e.Geo.SearchCities(req.Context(), query)
		if err != nil {
			writeError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": matches})
	}
}

func cityInfoHandler(e *fuelrouter.Estimator) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		lat, err1 := strconv.ParseFloat(req.URL.Query().Get("lat"), 64)
		lon, err2 := strconv.ParseFloat(req.URL.Query().Get("lon"), 64)
		if err1 != nil || err2 != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lon query parameters are required"})
			return
		}
		info, err := e.Geo.ResolveCityInfo(req.Context(), lat, lon)
		if err != nil {
			writeError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func vehicleSpecsHandler(e *fuelrouter.Estimator) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		year, _ := strconv.Atoi(q.Get("year"))
		spec, err := e.Vehicles.Resolve(req.Context(), q.Get("brand"), q.Get("model"), year)
		if err != nil {
			writeError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, spec)
	}
}

func vehicleModelsHandler(e *fuelrouter.Estimator) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		models, err := e.Vehicles.ListModels(req.Context(), req.URL.Query().Get("brand"))
		if err != nil {
			writeError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"models": models})
	}
}

func routesHandler(e *fuelrouter.Estimator) http.HandlerFunc {
	type routesRequest struct {
		Origin      geo.Coordinate `json:"origin"`
		Destination geo.Coordinate `json:"destination"`
		Preference  string         `json:"preference,omitempty"`
	}
	return func(w http.ResponseWriter, req *http.Request) {
		var body routesRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		candidates, err := e.Routes.ResolveRoutes(req.Context(), body.Origin, body.Destination, body.Preference)
		if err != nil {
			writeError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"routes": candidates})
	}
}

func estimateHandler(e *fuelrouter.Estimator) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body fuelrouter.EstimateRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		estimate, err := e.Estimate(req.Context(), body)
		if err != nil {
			writeError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, estimate)
	}
}

func clearCacheHandler(store cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		category := chi.URLParam(req, "category")
		if !store.Clear(category) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache clear failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"cleared": category})
	}
}

// writeError maps resolution failures onto HTTP statuses.
func writeError(w http.ResponseWriter, req *http.Request, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, geo.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, geo.ErrNotFound), errors.Is(err, routing.ErrNoRoute):
		status = http.StatusNotFound
	case errors.Is(err, vehicles.ErrLookupFailed), errors.Is(err, providers.ErrUnavailable):
		status = http.StatusBadGateway
	}
	logging.FromContext(req.Context()).Error("request failed", "path", req.URL.Path, "status", status, "error", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
