// mock-insurer is a standalone fake of a portal-rail insurer endpoint, used
// to exercise the production-path HTTP connector locally. It speaks the same
// synthetic JSON shapes the connector expects.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

var requestCount atomic.Int64

type submission struct {
	ClaimID     string `json:"claim_id"`
	OrgID       string `json:"org_id"`
	ClaimType   string `json:"claim_type"`
	AmountCents int64  `json:"amount_cents"`
}

func main() {
	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}

	// Accepting endpoint — always adjudicates as paid
	http.HandleFunc("/edi/claims", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)

		var sub submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			logRequest(r, count, 400)
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid submission"})
			return
		}
		logRequest(r, count, 200)

		externalID := fmt.Sprintf("MOCK-CLM-%d-%04d", time.Now().UnixMilli(), rand.Intn(10000))
		allowed := sub.AmountCents * 80 / 100
		paid := allowed - allowed/10 - allowed/10

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"external_id":   externalID,
			"submission_id": externalID,
			"status":        "paid",
			"payment": map[string]interface{}{
				"approved_cents": allowed,
				"paid_cents":     paid,
				"payment_date":   time.Now().Add(14 * 24 * time.Hour).UTC(),
			},
			"generated_at": time.Now().UTC(),
		})
	})

	// Status endpoint — reports processing for any id
	http.HandleFunc("/edi/claims/", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		logRequest(r, count, 200)

		externalID := strings.TrimPrefix(r.URL.Path, "/edi/claims/")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"external_id": externalID,
			"status":      "processing",
			"processing": map[string]interface{}{
				"stage":            "in review",
				"percent_complete": rand.Intn(100),
			},
			"generated_at": time.Now().UTC(),
		})
	})

	// Slow endpoint — delays 3 seconds to trip the connector timeout
	http.HandleFunc("/slow/claims", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		time.Sleep(3 * time.Second)
		logRequest(r, count, 200)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "processing"})
	})

	// Failing endpoint — always returns 503 so retries kick in
	http.HandleFunc("/fail/claims", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		logRequest(r, count, 503)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "rail unavailable"})
	})

	// Stats endpoint — shows request count
	http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{"total_requests": requestCount.Load()})
	})

	log.Printf("Mock insurer starting on :%s", port)
	log.Printf("  POST /edi/claims        -> paid adjudication")
	log.Printf("  GET  /edi/claims/{id}   -> processing status")
	log.Printf("  POST /slow/claims       -> 200 OK (3s delay)")
	log.Printf("  POST /fail/claims       -> 503 Error")
	log.Printf("  GET  /stats             -> request count")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func logRequest(r *http.Request, count int64, status int) {
	fmt.Printf("[#%d] %s %s -> %d | insurer=%s\n",
		count,
		r.Method,
		r.URL.Path,
		status,
		r.Header.Get("X-Insurer"),
	)
}
