package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/catalog/api/catalogv1"
	grpcsvc "github.com/vladislavdragonenkov/catalog/internal/service/grpc"
)

const (
	defaultPrice       = "1000"
	durationModeSupply = uint64(1 << 40)
)

type loadMode string

const (
	modePurchase       loadMode = "purchase"
	modePurchaseReplay loadMode = "purchase-replay"
	modeRead           loadMode = "read"
)

// catalogClient — подмножество CatalogServiceClient, которое использует нагрузка.
type catalogClient interface {
	CreateShop(ctx context.Context, in *catalogv1.CreateShopRequest, opts ...grpc.CallOption) (*catalogv1.ShopResponse, error)
	CreateProduct(ctx context.Context, in *catalogv1.CreateProductRequest, opts ...grpc.CallOption) (*catalogv1.ProductResponse, error)
	GetProduct(ctx context.Context, in *catalogv1.GetProductRequest, opts ...grpc.CallOption) (*catalogv1.ProductResponse, error)
	ListListings(ctx context.Context, in *catalogv1.ListListingsRequest, opts ...grpc.CallOption) (*catalogv1.ListListingsResponse, error)
	Purchase(ctx context.Context, in *catalogv1.PurchaseRequest, opts ...grpc.CallOption) (*catalogv1.SettlementResponse, error)
	Deposit(ctx context.Context, in *catalogv1.DepositRequest, opts ...grpc.CallOption) (*catalogv1.DepositResponse, error)
}

type config struct {
	addr        string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	price       string
	sellerTag   string
	buyerTag    string
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

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
	}
}

func (c *collector) record(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{
			codes: make(map[string]int64),
		}
		c.methods[method] = stats
	}

	stats.calls++
	if code == codes.OK {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[code.String()]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) snapshot(name string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[name]
	if !ok {
		return methodReport{}, false
	}

	codesCopy := make(map[string]int64, len(stats.codes))
	for code, count := range stats.codes {
		codesCopy[code] = count
	}

	return methodReport{
		Calls:     stats.calls,
		Success:   stats.success,
		Failed:    stats.failed,
		ErrorRate: ratio(stats.failed, stats.calls),
		Codes:     codesCopy,
		LatencyMs: buildLatencySummary(stats.latencies),
	}, true
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	scenarioStats := c.methods["scenario"]
	if scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	return result
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string
	var timeoutValue string
	var durationValue string

	flag.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m, 15m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.IntVar(&cfg.connections, "connections", 20, "number of gRPC client connections")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-RPC timeout")
	flag.StringVar(&modeValue, "mode", string(modePurchase), "load mode: purchase | purchase-replay | read")
	flag.StringVar(&cfg.price, "price", defaultPrice, "product price in minimal units")
	flag.StringVar(&cfg.sellerTag, "seller-tag", "lt-seller", "seller account prefix")
	flag.StringVar(&cfg.buyerTag, "buyer-tag", "lt-buyer", "buyer account prefix")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode
	cfg.price = strings.TrimSpace(cfg.price)

	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.connections <= 0 {
		return cfg, errors.New("connections must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if cfg.price == "" || strings.Trim(cfg.price, "0123456789") != "" {
		return cfg, errors.New("price must be an unsigned decimal integer")
	}
	if strings.TrimSpace(cfg.sellerTag) == "" {
		return cfg, errors.New("seller-tag is required")
	}
	if strings.TrimSpace(cfg.buyerTag) == "" {
		return cfg, errors.New("buyer-tag is required")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modePurchase:
		return modePurchase, nil
	case modePurchaseReplay:
		return modePurchaseReplay, nil
	case modeRead:
		return modeRead, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]catalogClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, catalogv1.NewCatalogServiceClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	target, err := prepareCatalog(clients[0], cfg, runID, col)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to prepare catalog: %v\n", err)
		os.Exit(1)
	}

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		client := clients[workerID%len(clients)]
		go func(cli catalogClient) {
			defer wg.Done()
			for id := range jobs {
				if runErr := runScenario(cli, cfg, target, id, runID, col); runErr != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}(client)
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	duration := time.Since(startedAt)
	result := col.buildReport(startedAt, duration)
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// loadTarget — товар, созданный под прогон.
type loadTarget struct {
	seller    string
	productID string
	price     string
}

// prepareCatalog создаёт магазин и товар с запасом на весь прогон.
func prepareCatalog(client catalogClient, cfg config, runID string, col *collector) (loadTarget, error) {
	target := loadTarget{
		seller:    fmt.Sprintf("%s-%s", cfg.sellerTag, runID),
		productID: fmt.Sprintf("lt-%s", runID),
		price:     cfg.price,
	}
	if len(target.seller) > 64 {
		target.seller = target.seller[:64]
	}

	supply := uint64(cfg.total)
	if cfg.duration > 0 && !cfg.totalSet {
		supply = durationModeSupply
	}
	if cfg.mode == modeRead {
		supply = 1
	}

	start := time.Now()
	ctx, cancel := callContext(cfg.timeout, target.seller, "")
	_, err := client.CreateShop(ctx, &catalogv1.CreateShopRequest{Name: "load test", Desc: runID})
	cancel()
	col.record("CreateShop", time.Since(start), grpcCode(err))
	if err != nil {
		return target, fmt.Errorf("create shop: %w", err)
	}

	start = time.Now()
	ctx, cancel = callContext(cfg.timeout, target.seller, "")
	_, err = client.CreateProduct(ctx, &catalogv1.CreateProductRequest{
		ProductID:   target.productID,
		Name:        "load test product",
		TotalSupply: supply,
		Price:       target.price,
		Desc:        "load test",
	})
	cancel()
	col.record("CreateProduct", time.Since(start), grpcCode(err))
	if err != nil {
		return target, fmt.Errorf("create product: %w", err)
	}
	return target, nil
}

func runScenario(
	client catalogClient,
	cfg config,
	target loadTarget,
	index int,
	runID string,
	col *collector,
) error {
	scenarioStart := time.Now()
	scenarioCode := codes.OK
	defer func() {
		col.record("scenario", time.Since(scenarioStart), scenarioCode)
	}()

	if cfg.mode == modeRead {
		if err := callRead(client, cfg.timeout, target, col); err != nil {
			scenarioCode = grpcCode(err)
			return err
		}
		return nil
	}

	buyer := fmt.Sprintf("%s-%d", cfg.buyerTag, index)
	if err := callDeposit(client, cfg.timeout, buyer, target.price, col); err != nil {
		scenarioCode = grpcCode(err)
		return err
	}

	key := fmt.Sprintf("lt-purchase-%s-%d", runID, index)
	first, err := callPurchase(client, cfg.timeout, target, buyer, key, col)
	if err != nil {
		scenarioCode = grpcCode(err)
		return err
	}
	if first.Receipt == nil || first.Receipt.Seller != target.seller {
		scenarioCode = codes.Internal
		return errors.New("purchase response returned unexpected receipt")
	}

	if cfg.mode != modePurchaseReplay {
		return nil
	}

	// Повтор с тем же ключом обязан вернуть тот же receipt без повторного списания.
	replay, err := callPurchase(client, cfg.timeout, target, buyer, key, col)
	if err != nil {
		scenarioCode = grpcCode(err)
		return err
	}
	if replay.Receipt == nil || replay.Receipt.RemainingSupply != first.Receipt.RemainingSupply {
		scenarioCode = codes.Internal
		return errors.New("idempotent replay returned a different receipt")
	}
	return nil
}

func callContext(timeout time.Duration, caller, key string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	pairs := []string{grpcsvc.CallerHeader, caller}
	if key != "" {
		pairs = append(pairs, grpcsvc.IdempotencyKeyHeader, key)
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...), cancel
}

func callPurchase(
	client catalogClient,
	timeout time.Duration,
	target loadTarget,
	buyer, key string,
	col *collector,
) (*catalogv1.SettlementResponse, error) {
	start := time.Now()
	ctx, cancel := callContext(timeout, buyer, key)
	defer cancel()

	resp, err := client.Purchase(ctx, &catalogv1.PurchaseRequest{ProductID: target.productID, Attached: target.price})
	col.record("Purchase", time.Since(start), grpcCode(err))
	return resp, err
}

// callDeposit пополняет счёт покупателя; сервис должен работать с тестовым ledger.
func callDeposit(client catalogClient, timeout time.Duration, buyer, amount string, col *collector) error {
	start := time.Now()
	ctx, cancel := callContext(timeout, buyer, "")
	defer cancel()

	_, err := client.Deposit(ctx, &catalogv1.DepositRequest{Account: buyer, Amount: amount})
	col.record("Deposit", time.Since(start), grpcCode(err))
	return err
}

func callRead(client catalogClient, timeout time.Duration, target loadTarget, col *collector) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := client.GetProduct(ctx, &catalogv1.GetProductRequest{ProductID: target.productID})
	col.record("GetProduct", time.Since(start), grpcCode(err))
	if err != nil {
		return err
	}

	start = time.Now()
	_, err = client.ListListings(ctx, &catalogv1.ListListingsRequest{})
	col.record("ListListings", time.Since(start), grpcCode(err))
	return err
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

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Printf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == "scenario" {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		fmt.Printf(
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
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
