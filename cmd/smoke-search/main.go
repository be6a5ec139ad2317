// smoke-search exercises a running API end to end: one authenticated search
// plus one anonymous search, checking the response contract on both.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

type searchResult struct {
	Results []struct {
		ID         string  `json:"id"`
		Similarity float64 `json:"similarity"`
		Visibility string  `json:"visibility_level"`
	} `json:"results"`
	Count          int `json:"count"`
	FiltersApplied struct {
		Threshold float64 `json:"threshold"`
		Limit     int     `json:"limit"`
	} `json:"filters_applied"`
}

func main() {
	base := os.Getenv("COACHSCOPE_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	token := os.Getenv("COACHSCOPE_SMOKE_TOKEN")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	res, err := search(ctx, base, token, "progress since the last session", 5)
	if err != nil {
		log.Fatalf("authenticated search: %v", err)
	}
	check(res, 5)

	anon, err := search(ctx, base, "", "progress since the last session", 5)
	if err != nil {
		log.Fatalf("anonymous search: %v", err)
	}
	check(anon, 5)
	for _, m := range anon.Results {
		if m.Visibility != "public" {
			log.Fatalf("anonymous search returned non-public item %s (%s)", m.ID, m.Visibility)
		}
	}

	fmt.Printf("✅ search smoke test passed: authenticated=%d anonymous=%d\n", res.Count, anon.Count)
}

func search(ctx context.Context, base, token, query string, limit int) (searchResult, error) {
	body, _ := json.Marshal(map[string]any{
		"query": query,
		"limit": limit,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/search", bytes.NewReader(body))
	if err != nil {
		return searchResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return searchResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return searchResult{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out searchResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return searchResult{}, err
	}
	return out, nil
}

func check(res searchResult, limit int) {
	if res.Count != len(res.Results) {
		log.Fatalf("count mismatch: count=%d results=%d", res.Count, len(res.Results))
	}
	if res.Count > limit {
		log.Fatalf("limit exceeded: count=%d limit=%d", res.Count, limit)
	}
	if res.FiltersApplied.Limit != limit {
		log.Fatalf("filters_applied.limit=%d, want %d", res.FiltersApplied.Limit, limit)
	}
	for _, m := range res.Results {
		if m.Similarity < res.FiltersApplied.Threshold {
			log.Fatalf("result %s below threshold: %f < %f", m.ID, m.Similarity, res.FiltersApplied.Threshold)
		}
	}
}
