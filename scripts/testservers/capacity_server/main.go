// Command capacity_server is a demo target with a fixed throughput ceiling.
// Requests beyond the ceiling are rejected with 503, so a search against it
// should settle near -capacity.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

func main() {
	port := flag.Int("port", 8080, "Listening port")
	capacity := flag.Float64("capacity", 500, "Requests per second served before rejecting")
	latency := flag.Duration("latency", 2*time.Millisecond, "Service time of each accepted request")
	flag.Parse()

	if *port <= 0 {
		log.Fatalf("port must be > 0")
	}
	if *capacity <= 0 {
		log.Fatalf("capacity must be > 0")
	}

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("capacity server listening on %s (%.0f req/s)", addr, *capacity)
	log.Fatal(http.ListenAndServe(addr, newHandler(*capacity, *latency)))
}

func newHandler(capacity float64, latency time.Duration) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(capacity), 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/work", func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			respondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "overloaded"})
			return
		}
		select {
		case <-time.After(latency):
		case <-r.Context().Done():
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	return mux
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
