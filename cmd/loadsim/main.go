// loadsim drives concurrent search traffic against a running API and
// reports success, denial, and rate-limit counts at the end.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"coachscope.org/internal/loadsim"
)

func main() {
	var (
		baseURL  = flag.String("base-url", "http://localhost:8080", "API base URL")
		workers  = flag.Int("workers", 4, "Concurrent worker count")
		duration = flag.Duration("duration", 2*time.Minute, "Duration of the run")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	token := os.Getenv("COACHSCOPE_SMOKE_TOKEN")
	if token == "" {
		log.Fatal("COACHSCOPE_SMOKE_TOKEN is required (issue one via /v1/admin/credentials)")
	}

	log.Printf("Launching load run: base=%s workers=%d duration=%s", *baseURL, *workers, *duration)

	client := &http.Client{Timeout: 15 * time.Second}
	generator := loadsim.NewGenerator(time.Now().UnixNano())

	var (
		mu           sync.Mutex
		counter      loadsim.Counter
		failures     int64
		unauthorized int64
		rateLimited  int64
		serverErrors int64
	)

	var wg sync.WaitGroup
	deadline := time.Now().Add(*duration)

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id*9973)))
			for time.Now().Before(deadline) {
				select {
				case <-ctx.Done():
					return
				default:
				}
				q := generator.NextQuery()
				payload := map[string]any{
					"query": q.Text,
					"limit": q.Limit,
				}
				if len(q.Types) > 0 {
					payload["types"] = q.Types
				}
				body, _ := json.Marshal(payload)
				req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/v1/search", *baseURL), bytes.NewReader(body))
				if err != nil {
					log.Printf("worker %d request: %v", id, err)
					atomic.AddInt64(&failures, 1)
					continue
				}
				req.Header.Set("Authorization", "Bearer "+token)
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("X-Request-Id", uuid.NewString())
				resp, err := client.Do(req)
				if err != nil {
					log.Printf("worker %d do: %v", id, err)
					atomic.AddInt64(&failures, 1)
					continue
				}
				if resp.StatusCode != http.StatusOK {
					resp.Body.Close()
					atomic.AddInt64(&failures, 1)
					switch resp.StatusCode {
					case http.StatusUnauthorized:
						atomic.AddInt64(&unauthorized, 1)
					case http.StatusTooManyRequests:
						atomic.AddInt64(&rateLimited, 1)
						time.Sleep(250 * time.Millisecond)
					default:
						atomic.AddInt64(&serverErrors, 1)
						log.Printf("worker %d search failed: %s", id, resp.Status)
						time.Sleep(200 * time.Millisecond)
					}
					continue
				}
				var out struct {
					Count int `json:"count"`
				}
				err = json.NewDecoder(resp.Body).Decode(&out)
				resp.Body.Close()
				if err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				mu.Lock()
				counter.Add(out.Count)
				mu.Unlock()
				time.Sleep(time.Duration(50+rnd.Intn(120)) * time.Millisecond)
			}
		}(i)
	}

	wg.Wait()

	log.Printf("Run complete: %d searches (%d failed: unauthorized=%d rate_limited=%d server_errors=%d), %d results, hit rate %.0f%%",
		counter.Searches, failures, unauthorized, rateLimited, serverErrors,
		counter.TotalResults, counter.HitRate()*100)
}
