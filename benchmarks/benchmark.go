package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cursordb/pkg/config"
	"cursordb/pkg/database"
	"cursordb/pkg/execution/join"
	"cursordb/pkg/expr"
	"cursordb/pkg/iterator"
	"cursordb/pkg/logging"
	"cursordb/pkg/primitives"
	"cursordb/pkg/table"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// BenchmarkResult captures detailed performance metrics for a single benchmark test.
type BenchmarkResult struct {
	Workload          string        `json:"workload"`
	Iterations        int           `json:"iterations"`
	TotalDuration     time.Duration `json:"total_duration_ns"`
	AvgDuration       time.Duration `json:"avg_duration_ns"`
	MinDuration       time.Duration `json:"min_duration_ns"`
	MaxDuration       time.Duration `json:"max_duration_ns"`
	MedianDuration    time.Duration `json:"median_duration_ns"`
	P95Duration       time.Duration `json:"p95_duration_ns"`
	P99Duration       time.Duration `json:"p99_duration_ns"`
	OpsPerSecond      float64       `json:"ops_per_second"`
	ConcurrentWorkers int           `json:"concurrent_workers"`
	SuccessCount      int           `json:"success_count"`
	ErrorCount        int           `json:"error_count"`
	ErrorSamples      []string      `json:"error_samples"`
	Timestamp         time.Time     `json:"timestamp"`
}

// BenchmarkReport aggregates results from all benchmark tests into a single report.
type BenchmarkReport struct {
	StartTime     time.Time         `json:"start_time"`
	EndTime       time.Time         `json:"end_time"`
	TotalDuration time.Duration     `json:"total_duration"`
	Results       []BenchmarkResult `json:"results"`
	DataDir       string            `json:"data_dir"`
}

// workload is one operation run against a fresh connection.
type workload struct {
	name   string
	run    func(c *database.Connection) error
	writes bool // run sequentially only; parallel writers just collide on locks
}

// main runs every workload sequentially and, for reads, concurrently, then
// writes a JSON report.
//
// Environment variables:
//   - BENCHMARK_OUTPUT: Directory for output reports (default: ./benchmark-results)
//   - BENCHMARK_ITERATIONS: Number of iterations per benchmark (default: 1000)
//   - BENCHMARK_CONCURRENT_QUERIES: Number of concurrent workers (default: 10)
//   - DATA_DIR: Data directory path (default: ./benchmark-data)
func main() {
	outputDir := envOr("BENCHMARK_OUTPUT", "./benchmark-results")
	iterations := envInt("BENCHMARK_ITERATIONS", 1000)
	concurrent := envInt("BENCHMARK_CONCURRENT_QUERIES", 10)

	cfg := config.Default()
	cfg.DataDir = envOr("DATA_DIR", "./benchmark-data")
	if err := logging.Init(cfg.Logging); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logging.Close()
	log := logging.WithComponent("benchmark")

	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		log.Error("cannot create output directory", "error", err)
		return
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Error("failed to open database", "error", err)
		return
	}
	defer db.Close()

	log.Info("starting benchmark suite", "dir", cfg.DataDir, "iterations", iterations, "workers", concurrent)
	if err := setupBenchmarkData(db); err != nil {
		log.Error("failed to set up benchmark data", "error", err)
		return
	}

	report := BenchmarkReport{StartTime: time.Now(), DataDir: cfg.DataDir}
	for _, w := range workloads() {
		fmt.Printf("\n%s\nTEST: %s\n%s\n", strings.Repeat("=", 80), w.name, strings.Repeat("=", 80))

		seq := runBenchmark(db, w, iterations, 1)
		report.Results = append(report.Results, seq)
		printBenchmarkResult(seq)

		if !w.writes {
			conc := runBenchmark(db, w, iterations, concurrent)
			conc.Workload += " (Concurrent)"
			report.Results = append(report.Results, conc)
			printBenchmarkResult(conc)
		}
	}
	report.EndTime = time.Now()
	report.TotalDuration = report.EndTime.Sub(report.StartTime)

	jsonFile := filepath.Join(outputDir, fmt.Sprintf("benchmark_report_%s.json", time.Now().Format("20060102_150405")))
	if err := saveJSONReport(report, jsonFile); err != nil {
		log.Error("failed to save report", "error", err)
		return
	}
	log.Info("benchmark suite complete", "duration", formatDuration(report.TotalDuration), "report", jsonFile)
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(name)); err == nil && n > 0 {
		return n
	}
	return def
}

// setupBenchmarkData creates users(1000 rows) and orders(500 rows) unless
// they already exist.
func setupBenchmarkData(db *database.Database) error {
	if slices.Contains(db.GetTables(), "users") {
		return nil
	}
	c := db.Connect()
	defer c.Close()
	if err := c.SetAutoCommit(false); err != nil {
		return err
	}

	stmts := []database.Statement{
		database.CreateTable{Name: "users", PrimaryKey: []string{"id"}, Columns: []tuple.Column{
			{Name: "id", Type: types.IntType},
			{Name: "name", Type: types.StringType, Nullable: true},
			{Name: "age", Type: types.IntType, Nullable: true},
			{Name: "email", Type: types.StringType, Nullable: true},
		}},
		database.CreateTable{Name: "orders", PrimaryKey: []string{"id"}, Columns: []tuple.Column{
			{Name: "id", Type: types.IntType},
			{Name: "user_id", Type: types.IntType, Nullable: true},
			{Name: "amount", Type: types.FloatType, Nullable: true},
		}},
		database.CreateIndex{Table: "users", Index: table.IndexDef{Name: "users_by_age", Columns: []string{"age"}}},
	}

	users := make([][]expr.Expr, 0, 1000)
	orders := make([][]expr.Expr, 0, 500)
	for i := int64(1); i <= 1000; i++ {
		users = append(users, []expr.Expr{
			expr.Int(i), expr.Str(fmt.Sprintf("User%d", i)), expr.Int(20 + i%50), expr.Str(fmt.Sprintf("user%d@example.com", i)),
		})
		if i <= 500 {
			orders = append(orders, []expr.Expr{expr.Int(i), expr.Int(i), expr.Lit(types.NewFloatField(float64(100+i%900) + 0.99))})
		}
	}
	stmts = append(stmts,
		database.Insert{Table: "users", Values: users},
		database.Insert{Table: "orders", Values: orders},
	)

	for _, s := range stmts {
		if _, err := c.Exec(s); err != nil {
			return abort(c, s, err)
		}
	}
	return c.Commit()
}

// abort rolls back the setup transaction after s failed.
func abort(c *database.Connection, s database.Statement, err error) error {
	if rerr := c.Rollback(); rerr != nil {
		return fmt.Errorf("%s: %w (rollback: %v)", s.Kind(), err, rerr)
	}
	return fmt.Errorf("%s: %w", s.Kind(), err)
}

// drain reads every row of src.
func drain(c *database.Connection, src database.Source) error {
	rs, err := c.Query(src)
	if err != nil {
		return err
	}
	err = iterator.ForEach(rs, func() (bool, error) { return true, nil })
	if cerr := rs.Close(); err == nil {
		err = cerr
	}
	return err
}

func exec(stmt database.Statement) func(c *database.Connection) error {
	return func(c *database.Connection) error {
		_, err := c.Exec(stmt)
		return err
	}
}

func query(src database.Source) func(c *database.Connection) error {
	return func(c *database.Connection) error { return drain(c, src) }
}

func workloads() []workload {
	col := expr.Col
	byID := expr.Equal(col("", "id"), expr.Int(99999))
	return []workload{
		// Fast tests first to show failures quickly
		{name: "INSERT", writes: true, run: exec(database.Insert{Table: "users", Values: [][]expr.Expr{
			{expr.Int(99999), expr.Str("Bench User"), expr.Int(30), expr.Str("bench@test.com")},
		}})},
		{name: "UPDATE", writes: true, run: exec(database.Update{
			Table: "users",
			Set:   []database.Assignment{{Column: "age", Value: expr.Int(31)}},
			Where: byID,
		})},
		{name: "DELETE", writes: true, run: exec(database.Delete{Table: "users", Where: byID})},
		{name: "Full scan", run: query(database.Select{From: database.TableRef{Name: "users"}})},
		{name: "Scan with WHERE", run: query(database.Select{
			From:  database.TableRef{Name: "users"},
			Where: expr.Compare(primitives.GreaterThan, col("", "age"), expr.Int(25)),
		})},
		{name: "ORDER BY", run: query(database.Select{
			From:    database.TableRef{Name: "users"},
			Columns: []expr.Expr{col("", "name")},
			OrderBy: []expr.Expr{expr.Descending(col("", "age")), col("", "name")},
		})},
		// Slower tests at the end
		{name: "Aggregate COUNT", run: query(database.Select{
			From:    database.TableRef{Name: "users"},
			Columns: []expr.Expr{expr.CountAll()},
		})},
		{name: "Aggregate with GROUP BY", run: query(database.Select{
			From:    database.TableRef{Name: "users"},
			Columns: []expr.Expr{col("", "age"), expr.CountAll()},
			GroupBy: []expr.Expr{col("", "age")},
		})},
		{name: "Index JOIN", run: query(database.Select{
			From: database.JoinRef{
				Kind:  join.Inner,
				Left:  database.TableRef{Name: "users", Alias: "u"},
				Right: database.TableRef{Name: "orders", Alias: "o"},
				On:    expr.Equal(col("u", "id"), col("o", "user_id")),
			},
			Columns: []expr.Expr{col("u", "name"), col("o", "amount")},
		})},
	}
}

// runBenchmark executes w iterations times with at most concurrent
// workers, each iteration on its own connection.
func runBenchmark(db *database.Database, w workload, iterations, concurrent int) BenchmarkResult {
	durations := make([]time.Duration, 0, iterations)
	var mu sync.Mutex
	successCount, errorCount := 0, 0
	errorSamples := make([]string, 0, 5)

	var g errgroup.Group
	g.SetLimit(concurrent)
	start := time.Now()
	for range iterations {
		g.Go(func() error {
			c := db.Connect()
			defer c.Close()

			opStart := time.Now()
			err := w.run(c)
			d := time.Since(opStart)

			mu.Lock()
			defer mu.Unlock()
			durations = append(durations, d)
			if err != nil {
				errorCount++
				if len(errorSamples) < 5 {
					errorSamples = append(errorSamples, err.Error())
				}
			} else {
				successCount++
			}
			return nil
		})
	}
	_ = g.Wait()

	r := summarize(durations, time.Since(start))
	r.Workload = w.name
	r.ConcurrentWorkers = concurrent
	r.SuccessCount = successCount
	r.ErrorCount = errorCount
	r.ErrorSamples = errorSamples
	return r
}

// summarize computes the timing statistics of one run.
func summarize(durations []time.Duration, total time.Duration) BenchmarkResult {
	r := BenchmarkResult{Iterations: len(durations), TotalDuration: total, Timestamp: time.Now()}
	if len(durations) == 0 {
		return r
	}
	slices.Sort(durations)

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	n := len(durations)
	r.AvgDuration = sum / time.Duration(n)
	r.MinDuration = durations[0]
	r.MaxDuration = durations[n-1]
	r.MedianDuration = durations[n/2]
	r.P95Duration = durations[min(n-1, int(float64(n)*0.95))]
	r.P99Duration = durations[min(n-1, int(float64(n)*0.99))]
	if total > 0 {
		r.OpsPerSecond = float64(n) / total.Seconds()
	}
	return r
}

// formatDuration formats a duration in a human-readable way with appropriate units.
// Examples: 1.23ms, 456.78µs, 12.34s
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000.0)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1000.0)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

func printBenchmarkResult(r BenchmarkResult) {
	successRate := 0.0
	if r.Iterations > 0 {
		successRate = float64(r.SuccessCount) / float64(r.Iterations) * 100
	}

	fmt.Printf("  ┌─ Results (%d worker(s))\n", r.ConcurrentWorkers)
	fmt.Printf("  │  Total Time:        %s\n", formatDuration(r.TotalDuration))
	fmt.Printf("  │  Avg per Op:        %s\n", formatDuration(r.AvgDuration))
	fmt.Printf("  │  Min / Max:         %s / %s\n", formatDuration(r.MinDuration), formatDuration(r.MaxDuration))
	fmt.Printf("  │  Median (P50):      %s\n", formatDuration(r.MedianDuration))
	fmt.Printf("  │  P95 / P99:         %s / %s\n", formatDuration(r.P95Duration), formatDuration(r.P99Duration))
	fmt.Printf("  │  Throughput:        %.0f ops/sec\n", r.OpsPerSecond)
	fmt.Printf("  │  Success Rate:      %.1f%% (%d/%d)\n", successRate, r.SuccessCount, r.Iterations)
	for i, msg := range r.ErrorSamples {
		if i == 3 {
			fmt.Printf("  │     ... and %d more error(s)\n", len(r.ErrorSamples)-3)
			break
		}
		fmt.Printf("  │  ⚠ %s\n", strings.ReplaceAll(msg, "\n", " "))
	}
	fmt.Println("  └─")
}

// saveJSONReport serializes the benchmark report to a JSON file.
func saveJSONReport(report BenchmarkReport, filename string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(filename, data, 0o600)
}
