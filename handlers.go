package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kwv/tablesight/sight"
)

// maxRequestBytes limits estimate request bodies
const maxRequestBytes = 1 << 20

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(svc *estimateService) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		writeJSON(w, http.StatusOK, struct {
			Status       string    `json:"status"`
			Timestamp    time.Time `json:"timestamp"`
			HasEstimates bool      `json:"hasEstimates"`
			Tables       int       `json:"tables"`
		}{
			Status:       "ok",
			Timestamp:    time.Now(),
			HasEstimates: svc.tracker.HasEstimates(),
			Tables:       len(svc.tracker.All()),
		})
	})

	// One-off estimate; nothing is recorded
	mux.HandleFunc("POST /estimate", func(w http.ResponseWriter, r *http.Request) {
		req, err := readEstimateRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		res, err := svc.estimator.Estimate(req.Observations, req.Strategy, req.IncludeInliers)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("GET /tables", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.tracker.All())
	})

	mux.HandleFunc("GET /tables/{id}", func(w http.ResponseWriter, r *http.Request) {
		est, ok := svc.tracker.Get(r.PathValue("id"))
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("no estimate for table %q", r.PathValue("id")))
			return
		}
		writeJSON(w, http.StatusOK, est)
	})

	mux.HandleFunc("POST /tables/{id}/estimate", func(w http.ResponseWriter, r *http.Request) {
		req, err := readEstimateRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		est, err := svc.estimate(r.PathValue("id"), req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, est)
	})

	mux.HandleFunc("GET /tables/{id}/geojson", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		est, ok := svc.tracker.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("no estimate for table %q", id))
			return
		}
		obs, _ := svc.tracker.Observations(id)

		var lineLength float64
		if v := r.URL.Query().Get("length"); v != "" {
			lineLength, _ = strconv.ParseFloat(v, 64)
		}

		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(sight.FeatureCollection(obs, est.Result, lineLength)); err != nil {
			log.Printf("[HTTP] Error encoding GeoJSON for %s: %v", id, err)
		}
	})

	return mux
}

func readEstimateRequest(r *http.Request) (*sight.EstimateRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	if len(body) > maxRequestBytes {
		return nil, errors.New("request body too large")
	}
	return sight.ParseEstimateRequest(body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
