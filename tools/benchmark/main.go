// Command benchmark fires concurrent scan requests at a running checkpoint
// API and reports latency percentiles. It is a load-testing aid, not part of
// the deployed service; point it at a disposable database.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/alitto/pond/v2"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Scan        string
	OperatorID  int64
	Requests    int
	Concurrency int
	Timeout     time.Duration
}

type result struct {
	status  int
	outcome string
	latency time.Duration
	err     error
}

func parseFlags() Config {
	cfg := Config{}
	flag.StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "Base URL of the checkpoint API")
	flag.StringVar(&cfg.APIKey, "api-key", "", "API key for the scan endpoint")
	flag.StringVar(&cfg.Scan, "scan", `{"equipo_id": 1, "aprendiz_id": 1}`, "Raw scan content to submit")
	flag.Int64Var(&cfg.OperatorID, "operator", 1, "Operator ID to attribute scans to")
	flag.IntVar(&cfg.Requests, "n", 1000, "Total number of scan requests")
	flag.IntVar(&cfg.Concurrency, "c", 10, "Concurrent workers")
	flag.DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "Per-request timeout")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()
	if cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "missing -api-key")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	client := &http.Client{Timeout: cfg.Timeout}
	body, err := json.Marshal(map[string]interface{}{
		"content":     cfg.Scan,
		"operator_id": cfg.OperatorID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build request body: %v\n", err)
		os.Exit(1)
	}

	var mu sync.Mutex
	results := make([]result, 0, cfg.Requests)
	var completed atomic.Int64

	pool := pond.NewPool(cfg.Concurrency, pond.WithContext(ctx))
	start := time.Now()

	for i := 0; i < cfg.Requests; i++ {
		pool.Submit(func() {
			r := fireScan(ctx, client, cfg, body)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			if n := completed.Add(1); n%100 == 0 {
				fmt.Printf("  %d/%d\n", n, cfg.Requests)
			}
		})
	}

	pool.StopAndWait()
	elapsed := time.Since(start)

	report(results, elapsed, cfg)
}

func fireScan(ctx context.Context, client *http.Client, cfg Config, body []byte) result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		cfg.BaseURL+"/api/v1/checkpoint/scans", bytes.NewReader(body))
	if err != nil {
		return result{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "APIKey "+cfg.APIKey)

	begin := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(begin)
	if err != nil {
		return result{latency: latency, err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded struct {
		Result string `json:"result"`
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &decoded)

	return result{status: resp.StatusCode, outcome: decoded.Result, latency: latency}
}

func report(results []result, elapsed time.Duration, cfg Config) {
	latencies := make([]time.Duration, 0, len(results))
	outcomes := make(map[string]int)
	statuses := make(map[int]int)
	errors := 0

	for _, r := range results {
		if r.err != nil {
			errors++
			continue
		}
		latencies = append(latencies, r.latency)
		statuses[r.status]++
		if r.outcome != "" {
			outcomes[r.outcome]++
		}
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Printf("\n%d requests in %s (%.1f req/s), %d transport errors\n",
		len(results), elapsed.Round(time.Millisecond),
		float64(len(results))/elapsed.Seconds(), errors)

	fmt.Println("status codes:")
	for status, count := range statuses {
		fmt.Printf("  %d: %d\n", status, count)
	}
	fmt.Println("scan outcomes:")
	for outcome, count := range outcomes {
		fmt.Printf("  %s: %d\n", outcome, count)
	}

	if len(latencies) == 0 {
		return
	}
	fmt.Println("latency:")
	for _, p := range []struct {
		name string
		q    float64
	}{{"p50", 0.50}, {"p90", 0.90}, {"p99", 0.99}} {
		idx := int(float64(len(latencies)-1) * p.q)
		fmt.Printf("  %s: %s\n", p.name, latencies[idx].Round(time.Microsecond))
	}
	fmt.Printf("  max: %s\n", latencies[len(latencies)-1].Round(time.Microsecond))
}
