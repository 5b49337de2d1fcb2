package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ksred/klear-trade/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var sides = []types.Side{types.SideBuy, types.SideSell}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate returns min, max, mean, median, p95 and p99 durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// envelope mirrors the API response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.status, e.code, e.message)
}

type previewResult struct {
	PreviewID string          `json:"preview_id"`
	NetAmount decimal.Decimal `json:"net_amount"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type advanceResult struct {
	CurrentDate time.Time `json:"current_date"`
	Settlement  struct {
		Completed []string `json:"completed_order_ids"`
	} `json:"settlement"`
}

// simulationClient handles HTTP communication with the trading API
type simulationClient struct {
	baseURL string
	client  *http.Client

	mu    sync.Mutex
	stats map[string]*routeStats
}

func newSimulationClient(baseURL string) *simulationClient {
	return &simulationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		stats: map[string]*routeStats{
			"auth":    {name: "Authentication"},
			"stocks":  {name: "List Stocks"},
			"preview": {name: "Preview Order"},
			"commit":  {name: "Commit Order"},
			"cancel":  {name: "Cancel Order"},
			"get":     {name: "Get Order"},
			"advance": {name: "Advance Day"},
		},
	}
}

// do sends a request, records its latency under route and decodes the
// envelope's data into out
func (sc *simulationClient) do(route, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := sc.client.Do(req)
	elapsed := time.Since(start)

	sc.mu.Lock()
	stats := sc.stats[route]
	stats.addDuration(elapsed)
	sc.mu.Unlock()

	if err != nil {
		sc.fail(route)
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		sc.fail(route)
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !env.Success {
		sc.fail(route)
		apiErr := &apiError{status: resp.StatusCode}
		if env.Error != nil {
			apiErr.code = env.Error.Code
			apiErr.message = env.Error.Message
		}
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (sc *simulationClient) fail(route string) {
	sc.mu.Lock()
	sc.stats[route].failures++
	sc.mu.Unlock()
}

func (sc *simulationClient) authenticate(apiKey, apiSecret string) (string, error) {
	var result struct {
		Token string `json:"jwt_token"`
	}
	err := sc.do("auth", http.MethodPost, "/api/v1/auth/token", "", map[string]string{
		"api_key":    apiKey,
		"api_secret": apiSecret,
	}, &result)
	if err != nil {
		return "", fmt.Errorf("authentication failed: %w", err)
	}
	return result.Token, nil
}

func (sc *simulationClient) stocks(token string) ([]types.Stock, error) {
	var stocks []types.Stock
	err := sc.do("stocks", http.MethodGet, "/api/v1/stocks", token, nil, &stocks)
	return stocks, err
}

func (sc *simulationClient) preview(token string, req map[string]interface{}) (*previewResult, error) {
	var result previewResult
	if err := sc.do("preview", http.MethodPost, "/api/v1/orders/preview", token, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (sc *simulationClient) commit(token, previewID string) (*types.Order, error) {
	var order types.Order
	err := sc.do("commit", http.MethodPost, "/api/v1/orders/commit", token, map[string]string{
		"preview_id": previewID,
	}, &order)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (sc *simulationClient) cancel(token, orderID string) (*types.Order, error) {
	var order types.Order
	if err := sc.do("cancel", http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", token, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (sc *simulationClient) getOrder(token, orderID string) (*types.Order, error) {
	var order types.Order
	if err := sc.do("get", http.MethodGet, "/api/v1/orders/"+orderID, token, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (sc *simulationClient) advanceDay(token string) (*advanceResult, error) {
	var result advanceResult
	if err := sc.do("advance", http.MethodPost, "/api/v1/internal/simulation/advance", token, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// printPerformanceStats displays latency statistics per route
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n⚡ Performance Statistics")
	fmt.Println("----------------------")

	routes := []string{"auth", "stocks", "preview", "commit", "cancel", "get", "advance"}
	for _, route := range routes {
		stats := sc.stats[route]
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("\n%s (%d calls, %d failures)\n", stats.name, stats.totalCalls, stats.failures)
		fmt.Printf("  Min: %v  Max: %v  Mean: %v\n", min.Round(time.Microsecond), max.Round(time.Microsecond), mean.Round(time.Microsecond))
		fmt.Printf("  Median: %v  P95: %v  P99: %v\n", median.Round(time.Microsecond), p95.Round(time.Microsecond), p99.Round(time.Microsecond))
	}
}

type simStats struct {
	mu        sync.Mutex
	previewed int
	executed  int
	rejected  int
	failed    int
	value     decimal.Decimal
	symbols   map[string]int
	sides     map[types.Side]int
}

func (s *simStats) record(order *types.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch order.Status {
	case types.OrderStatusExecuted:
		s.executed++
		s.value = s.value.Add(order.NetAmount)
		s.symbols[order.Symbol]++
		s.sides[order.Side]++
	case types.OrderStatusRejected:
		s.rejected++
	}
}

func (s *simStats) failure() {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "API base URL")
	apiKey := flag.String("api-key", "test_api_key", "trading client API key")
	apiSecret := flag.String("api-secret", "test_api_secret", "trading client API secret")
	opsKey := flag.String("ops-key", "ops_api_key", "operations API key")
	opsSecret := flag.String("ops-secret", "ops_api_secret", "operations API secret")
	accountID := flag.String("account", "ACC_1", "account to trade from")
	orders := flag.Int("orders", 50, "number of market orders to place")
	workers := flag.Int("workers", 5, "concurrent workers")
	flag.Parse()

	sc := newSimulationClient(*addr)

	token, err := sc.authenticate(*apiKey, *apiSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to authenticate trading client")
	}
	opsToken, err := sc.authenticate(*opsKey, *opsSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to authenticate operations client")
	}

	stocks, err := sc.stocks(token)
	if err != nil || len(stocks) == 0 {
		log.Fatal().Err(err).Msg("No stocks available to trade")
	}

	stats := &simStats{
		symbols: make(map[string]int),
		sides:   make(map[types.Side]int),
	}
	start := time.Now()

	log.Info().Int("orders", *orders).Int("workers", *workers).Msg("Starting simulation")

	var (
		wg           sync.WaitGroup
		replayOnce   sync.Once
		firstPreview string
	)
	perWorker := *orders / *workers
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for n := 0; n < perWorker; n++ {
				stock := stocks[rand.Intn(len(stocks))]
				side := sides[rand.Intn(len(sides))]

				preview, err := sc.preview(token, map[string]interface{}{
					"account_id":     *accountID,
					"stock_id":       stock.StockID,
					"side":           side,
					"execution_type": types.ExecutionMarket,
					"quantity":       rand.Intn(20) + 1,
				})
				if err != nil {
					log.Warn().Err(err).Int("worker_id", workerID).Str("symbol", stock.Symbol).Msg("Preview failed")
					stats.failure()
					continue
				}
				stats.mu.Lock()
				stats.previewed++
				stats.mu.Unlock()

				order, err := sc.commit(token, preview.PreviewID)
				if err != nil {
					log.Warn().Err(err).Int("worker_id", workerID).Str("preview_id", preview.PreviewID).Msg("Commit failed")
					stats.failure()
					continue
				}
				replayOnce.Do(func() { firstPreview = preview.PreviewID })
				stats.record(order)

				log.Info().
					Int("worker_id", workerID).
					Str("order_id", order.OrderID).
					Str("symbol", order.Symbol).
					Str("side", string(order.Side)).
					Str("net_amount", order.NetAmount.StringFixed(2)).
					Msg("Order executed")

				time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
			}
		}(i)
	}
	wg.Wait()

	// A consumed preview must not execute twice
	if firstPreview != "" {
		_, err := sc.commit(token, firstPreview)
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.status == http.StatusGone {
			log.Info().Str("preview_id", firstPreview).Msg("Replay refused")
		} else {
			log.Error().Err(err).Str("preview_id", firstPreview).Msg("Replay was not refused")
		}
	}

	// A resting limit order can be cancelled
	stock := stocks[0]
	limitPrice := stock.CurrentPrice.Mul(decimal.NewFromFloat(0.5)).Round(2)
	if preview, err := sc.preview(token, map[string]interface{}{
		"account_id":     *accountID,
		"stock_id":       stock.StockID,
		"side":           types.SideBuy,
		"execution_type": types.ExecutionLimit,
		"quantity":       1,
		"price":          limitPrice,
	}); err == nil {
		if order, err := sc.commit(token, preview.PreviewID); err == nil {
			if _, err := sc.cancel(token, order.OrderID); err != nil {
				log.Error().Err(err).Str("order_id", order.OrderID).Msg("Cancel failed")
			} else if cancelled, err := sc.getOrder(token, order.OrderID); err == nil {
				log.Info().Str("order_id", cancelled.OrderID).Str("status", string(cancelled.Status)).Msg("Limit order cancelled")
			}
		}
	}

	// Walk the settlement cycle to completion
	var settled int
	for day := 0; day < 4; day++ {
		result, err := sc.advanceDay(opsToken)
		if err != nil {
			log.Error().Err(err).Msg("Failed to advance day")
			break
		}
		settled += len(result.Settlement.Completed)
		log.Info().
			Time("current_date", result.CurrentDate).
			Int("completed", len(result.Settlement.Completed)).
			Msg("Day advanced")
	}

	duration := time.Since(start)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🚀 TRADING SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
📊 Order Statistics
------------------
Previewed:        %d
Executed:         %d
Rejected:         %d
Failed:           %d
Settled:          %d
Total Value:      %s
Duration:         %v

📈 Symbol Distribution
--------------------
`, stats.previewed, stats.executed, stats.rejected, stats.failed, settled,
		stats.value.StringFixed(2), duration.Round(time.Millisecond))

	maxSymbolCount := 0
	for _, count := range stats.symbols {
		if count > maxSymbolCount {
			maxSymbolCount = count
		}
	}
	for symbol, count := range stats.symbols {
		barLength := int(float64(count) / float64(maxSymbolCount) * 20)
		fmt.Printf("%-6s: %s (%d)\n", symbol, strings.Repeat("█", barLength), count)
	}

	fmt.Println("\n📉 Side Distribution")
	fmt.Println("------------------")
	for side, count := range stats.sides {
		barLength := 0
		if stats.executed > 0 {
			barLength = int(float64(count) / float64(stats.executed) * 20)
		}
		fmt.Printf("%-4s: %s (%d)\n", side, strings.Repeat("█", barLength), count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	sc.printPerformanceStats()
}
