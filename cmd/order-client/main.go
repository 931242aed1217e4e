package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
	ordersv1 "github.com/vladislavdragonenkov/orderpipe/proto/orders/v1"
)

type runMode string

const (
	// modeDemo отправляет несколько заказов по одному с паузой и печатает ответы.
	modeDemo runMode = "demo"
	// modeLoad гоняет заказы параллельно и печатает сводку по задержкам.
	modeLoad runMode = "load"
)

var demoItems = []string{
	"Product A - Laptop",
	"Product B - Mouse",
	"Product C - Keyboard",
}

type config struct {
	addr        string
	mode        runMode
	total       int
	concurrency int
	connections int
	timeout     time.Duration
	interval    time.Duration
	customerTag string
	phonePrefix string
	emailDomain string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type report struct {
	StartedAt       time.Time        `json:"started_at"`
	DurationSeconds float64          `json:"duration_seconds"`
	Calls           int64            `json:"calls"`
	RPCErrors       int64            `json:"rpc_errors"`
	ErrorRate       float64          `json:"error_rate"`
	RPS             float64          `json:"rps"`
	Codes           map[string]int64 `json:"codes"`
	Outcomes        map[string]int64 `json:"outcomes"`
	LatencyMs       latencySummary   `json:"latency_ms"`
}

// collector собирает результаты вызовов CreateOrder из нескольких воркеров.
type collector struct {
	mu        sync.Mutex
	calls     int64
	rpcErrors int64
	codes     map[string]int64
	outcomes  map[string]int64
	latencies []float64
}

func newCollector() *collector {
	return &collector{
		codes:    make(map[string]int64),
		outcomes: make(map[string]int64),
	}
}

// record учитывает один вызов. outcome пустой, если RPC завершился ошибкой.
func (c *collector) record(latency time.Duration, code codes.Code, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	if code != codes.OK {
		c.rpcErrors++
	}
	c.codes[code.String()]++
	if outcome != "" {
		c.outcomes[outcome]++
	}
	c.latencies = append(c.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Calls:           c.calls,
		RPCErrors:       c.rpcErrors,
		ErrorRate:       ratio(c.rpcErrors, c.calls),
		Codes:           make(map[string]int64, len(c.codes)),
		Outcomes:        make(map[string]int64, len(c.outcomes)),
		LatencyMs:       buildLatencySummary(c.latencies),
	}
	for k, v := range c.codes {
		result.Codes[k] = v
	}
	for k, v := range c.outcomes {
		result.Outcomes[k] = v
	}
	if duration > 0 {
		result.RPS = float64(c.calls) / duration.Seconds()
	}
	return result
}

func parseConfig(args []string) (config, error) {
	var cfg config
	var modeValue string

	fs := flag.NewFlagSet("order-client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.addr, "addr", "localhost:9090", "gRPC target address")
	fs.StringVar(&modeValue, "mode", string(modeDemo), "run mode: demo | load")
	fs.IntVar(&cfg.total, "total", 3, "number of orders to send")
	fs.IntVar(&cfg.concurrency, "concurrency", 1, "number of concurrent workers in load mode")
	fs.IntVar(&cfg.connections, "connections", 1, "number of gRPC client connections")
	fs.DurationVar(&cfg.timeout, "timeout", 15*time.Second, "per-RPC timeout")
	fs.DurationVar(&cfg.interval, "interval", 2*time.Second, "pause between orders in demo mode")
	fs.StringVar(&cfg.customerTag, "customer-tag", "CUST", "customer id prefix")
	fs.StringVar(&cfg.phonePrefix, "phone-prefix", "+521234567", "customer phone number prefix")
	fs.StringVar(&cfg.emailDomain, "email-domain", "", "optional customer email domain, enables email notifications")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	switch {
	case strings.TrimSpace(cfg.addr) == "":
		return cfg, errors.New("addr is required")
	case cfg.total <= 0:
		return cfg, errors.New("total must be > 0")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.interval < 0:
		return cfg, errors.New("interval must be >= 0")
	case strings.TrimSpace(cfg.customerTag) == "":
		return cfg, errors.New("customer-tag is required")
	}
	return cfg, nil
}

func parseMode(value string) (runMode, error) {
	switch runMode(strings.TrimSpace(value)) {
	case modeDemo:
		return modeDemo, nil
	case modeLoad:
		return modeLoad, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

// newRequest строит заказ с номером n (нумерация с 1).
func newRequest(cfg config, n int) *ordersv1.CreateOrderRequest {
	req := &ordersv1.CreateOrderRequest{
		OrderId:             uuid.NewString(),
		CustomerId:          fmt.Sprintf("%s%03d", cfg.customerTag, n),
		CustomerPhoneNumber: fmt.Sprintf("%s%03d", cfg.phonePrefix, n%1000),
		Items:               append([]string(nil), demoItems...),
	}
	if cfg.emailDomain != "" {
		req.CustomerEmail = fmt.Sprintf("%s%03d@%s", strings.ToLower(cfg.customerTag), n, cfg.emailDomain)
	}
	return req
}

func callCreateOrder(
	client ordersv1.OrderServiceClient,
	timeout time.Duration,
	req *ordersv1.CreateOrderRequest,
	col *collector,
) (*ordersv1.CreateOrderResponse, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := client.CreateOrder(ctx, req)
	col.record(time.Since(start), grpcCode(err), resp.GetStatus())
	return resp, err
}

func runDemo(client ordersv1.OrderServiceClient, cfg config, col *collector, logger *log.Entry) {
	for n := 1; n <= cfg.total; n++ {
		req := newRequest(cfg, n)
		logger.WithFields(log.Fields{"n": n, "order_id": req.GetOrderId()}).Info("creating test order")

		resp, err := callCreateOrder(client, cfg.timeout, req, col)
		if err != nil {
			logger.WithError(err).WithField("n", n).Error("create order failed")
		} else {
			logger.WithFields(log.Fields{
				"n":        n,
				"order_id": resp.GetOrderId(),
				"status":   resp.GetStatus(),
			}).Info("order response")
		}

		if n < cfg.total && cfg.interval > 0 {
			time.Sleep(cfg.interval)
		}
	}
}

func runLoad(clients []ordersv1.OrderServiceClient, cfg config, col *collector) {
	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func(cli ordersv1.OrderServiceClient) {
			defer wg.Done()
			for n := range jobs {
				_, _ = callCreateOrder(cli, cfg.timeout, newRequest(cfg, n), col)
			}
		}(clients[workerID%len(clients)])
	}
	for n := 1; n <= cfg.total; n++ {
		jobs <- n
	}
	close(jobs)
	wg.Wait()
}

func run(cfg config, clients []ordersv1.OrderServiceClient, out io.Writer, logger *log.Entry) report {
	col := newCollector()
	startedAt := time.Now()
	if cfg.mode == modeDemo {
		runDemo(clients[0], cfg, col, logger)
	} else {
		runLoad(clients, cfg, col)
	}
	result := col.buildReport(startedAt, time.Since(startedAt))
	printReport(out, result, cfg)
	return result
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger := log.WithField("component", "order-client")

	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		logger.WithError(err).Fatal("invalid config")
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]ordersv1.OrderServiceClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			logger.WithError(dialErr).Fatal("failed to create grpc client connection")
		}
		conns = append(conns, conn)
		clients = append(clients, ordersv1.NewOrderServiceClient(conn))
	}

	result := run(cfg, clients, os.Stdout, logger)
	for _, conn := range conns {
		_ = conn.Close()
	}
	logger.Info("gRPC client shutdown completed")

	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			logger.WithError(err).Fatal("failed to write report")
		}
	}
	if result.RPCErrors > 0 {
		os.Exit(1)
	}
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(out io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(out, "Order client summary")
	_, _ = fmt.Fprintf(out, "mode=%s calls=%d rpc_errors=%d error_rate=%.4f\n",
		cfg.mode, result.Calls, result.RPCErrors, result.ErrorRate)
	_, _ = fmt.Fprintf(out, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(out, "latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.LatencyMs.Min,
		result.LatencyMs.Avg,
		result.LatencyMs.P50,
		result.LatencyMs.P95,
		result.LatencyMs.P99,
		result.LatencyMs.Max,
	)

	outcomes := []string{
		string(domain.OutcomeCompleted),
		string(domain.OutcomeFailed),
		string(domain.OutcomeInvalidRequest),
	}
	for _, name := range outcomes {
		_, _ = fmt.Fprintf(out, "%s=%d\n", name, result.Outcomes[name])
	}
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
