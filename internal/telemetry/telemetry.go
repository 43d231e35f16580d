package telemetry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zainabsaad99/EECE798S-Project/config"
)

// Telemetry provides monitoring and cost tracking for agent runs
type Telemetry struct {
	config      config.TelemetryConfig
	logger      *log.Logger
	metrics     *Metrics
	costTracker *CostTracker
	collectors  *collectors
	mu          sync.RWMutex
}

// Metrics holds various performance metrics
type Metrics struct {
	mu sync.RWMutex
	// Run metrics
	TotalRuns      int64
	SuccessfulRuns int64
	FailedRuns     int64
	AverageRunTime time.Duration

	// Tool metrics
	ToolExecutions   map[string]int64
	ToolSuccessRates map[string]float64
	ToolAverageTimes map[string]time.Duration

	// LLM metrics
	LLMRequests   map[string]int64
	LLMTokensUsed map[string]int64
}

// CostTracker tracks costs across models and operations
type CostTracker struct {
	mu sync.RWMutex

	ModelCosts     map[string]float64 // model -> cost
	OperationCosts map[string]float64 // operation -> cost

	TotalCost   float64
	TotalTokens int64
}

// RunEvent represents one complete agent run
type RunEvent struct {
	ID         string
	ProfileURL string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Steps      int
	Success    bool
	Error      string
	Cost       float64
	TokensUsed int64
	ToolsUsed  []string
}

// ToolEvent represents a single tool dispatch
type ToolEvent struct {
	RunID    string
	Tool     string
	Duration time.Duration
	Success  bool
	Error    string
}

// LLMEvent represents one completion or embedding request
type LLMEvent struct {
	Model        string
	Operation    string
	InputTokens  int64
	OutputTokens int64
	Cost         float64
	Duration     time.Duration
}

// collectors groups the prometheus instruments exposed on /metrics.
type collectors struct {
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	toolExecutions *prometheus.CounterVec
	llmTokens      *prometheus.CounterVec
	streamClients  prometheus.Gauge
}

func newCollectors() *collectors {
	c := &collectors{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contentagent_runs_total",
			Help: "Agent runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "contentagent_run_duration_seconds",
			Help:    "End-to-end agent run duration.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		toolExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contentagent_tool_executions_total",
			Help: "Tool dispatches by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contentagent_llm_tokens_total",
			Help: "LLM tokens consumed by model and direction.",
		}, []string{"model", "direction"}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "contentagent_stream_clients",
			Help: "Currently connected SSE clients.",
		}),
	}
	prometheus.MustRegister(c.runsTotal, c.runDuration, c.toolExecutions, c.llmTokens, c.streamClients)
	return c
}

var (
	collectorsOnce sync.Once
	sharedCols     *collectors
)

// NewTelemetry creates a new telemetry instance
func NewTelemetry(config config.TelemetryConfig) *Telemetry {
	collectorsOnce.Do(func() { sharedCols = newCollectors() })
	t := &Telemetry{
		config: config,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{
			ToolExecutions:   make(map[string]int64),
			ToolSuccessRates: make(map[string]float64),
			ToolAverageTimes: make(map[string]time.Duration),
			LLMRequests:      make(map[string]int64),
			LLMTokensUsed:    make(map[string]int64),
		},
		costTracker: &CostTracker{
			ModelCosts:     make(map[string]float64),
			OperationCosts: make(map[string]float64),
		},
		collectors: sharedCols,
	}

	// Periodic logs can be disabled via config
	if config.Enabled && config.PeriodicLogs {
		go t.startMetricsCollection()
		go t.startCostReporting()
	}

	return t
}

// RecordRunEvent records a complete agent run
func (t *Telemetry) RecordRunEvent(ctx context.Context, event RunEvent) {
	outcome := "succeeded"
	if !event.Success {
		outcome = "failed"
	}
	t.collectors.runsTotal.WithLabelValues(outcome).Inc()
	t.collectors.runDuration.Observe(event.Duration.Seconds())

	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.TotalRuns++
	if event.Success {
		t.metrics.SuccessfulRuns++
	} else {
		t.metrics.FailedRuns++
	}

	if t.metrics.TotalRuns == 1 {
		t.metrics.AverageRunTime = event.Duration
	} else {
		total := t.metrics.AverageRunTime * time.Duration(t.metrics.TotalRuns-1)
		t.metrics.AverageRunTime = (total + event.Duration) / time.Duration(t.metrics.TotalRuns)
	}

	t.costTracker.TotalCost += event.Cost
	t.costTracker.TotalTokens += event.TokensUsed

	t.logger.Printf("Run Event: ID=%s, Success=%t, Steps=%d, Duration=%v, Cost=$%.4f, Tokens=%d",
		event.ID, event.Success, event.Steps, event.Duration, event.Cost, event.TokensUsed)
}

// RecordToolEvent records a tool dispatch
func (t *Telemetry) RecordToolEvent(ctx context.Context, event ToolEvent) {
	outcome := "ok"
	if !event.Success {
		outcome = "error"
	}
	t.collectors.toolExecutions.WithLabelValues(event.Tool, outcome).Inc()

	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.ToolExecutions[event.Tool]++

	currentSuccess := t.metrics.ToolSuccessRates[event.Tool] * float64(t.metrics.ToolExecutions[event.Tool]-1)
	if event.Success {
		currentSuccess += 1.0
	}
	t.metrics.ToolSuccessRates[event.Tool] = currentSuccess / float64(t.metrics.ToolExecutions[event.Tool])

	currentAvg := t.metrics.ToolAverageTimes[event.Tool]
	executions := t.metrics.ToolExecutions[event.Tool]
	if executions == 1 {
		t.metrics.ToolAverageTimes[event.Tool] = event.Duration
	} else {
		total := currentAvg * time.Duration(executions-1)
		t.metrics.ToolAverageTimes[event.Tool] = (total + event.Duration) / time.Duration(executions)
	}

	t.logger.Printf("Tool Event: Tool=%s, Success=%t, Duration=%v", event.Tool, event.Success, event.Duration)
}

// RecordLLMEvent records a completion or embedding request
func (t *Telemetry) RecordLLMEvent(ctx context.Context, event LLMEvent) {
	t.collectors.llmTokens.WithLabelValues(event.Model, "input").Add(float64(event.InputTokens))
	t.collectors.llmTokens.WithLabelValues(event.Model, "output").Add(float64(event.OutputTokens))

	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.LLMRequests[event.Model]++
	t.metrics.LLMTokensUsed[event.Model] += event.InputTokens + event.OutputTokens

	t.costTracker.TotalCost += event.Cost
	t.costTracker.TotalTokens += event.InputTokens + event.OutputTokens
	t.costTracker.ModelCosts[event.Model] += event.Cost
	if event.Operation != "" {
		t.costTracker.OperationCosts[event.Operation] += event.Cost
	}
}

// StreamClientConnected marks one more live SSE client.
func (t *Telemetry) StreamClientConnected() {
	t.collectors.streamClients.Inc()
}

// StreamClientDisconnected marks one SSE client gone.
func (t *Telemetry) StreamClientDisconnected() {
	t.collectors.streamClients.Dec()
}

// GetMetrics returns current metrics snapshot
func (t *Telemetry) GetMetrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	// Deep copy to avoid race conditions
	metrics := *t.metrics
	metrics.ToolExecutions = make(map[string]int64)
	metrics.ToolSuccessRates = make(map[string]float64)
	metrics.ToolAverageTimes = make(map[string]time.Duration)
	metrics.LLMRequests = make(map[string]int64)
	metrics.LLMTokensUsed = make(map[string]int64)

	for k, v := range t.metrics.ToolExecutions {
		metrics.ToolExecutions[k] = v
	}
	for k, v := range t.metrics.ToolSuccessRates {
		metrics.ToolSuccessRates[k] = v
	}
	for k, v := range t.metrics.ToolAverageTimes {
		metrics.ToolAverageTimes[k] = v
	}
	for k, v := range t.metrics.LLMRequests {
		metrics.LLMRequests[k] = v
	}
	for k, v := range t.metrics.LLMTokensUsed {
		metrics.LLMTokensUsed[k] = v
	}

	return metrics
}

// GetCostSummary returns current cost summary
func (t *Telemetry) GetCostSummary() CostSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	summary := CostSummary{
		TotalCost:      t.costTracker.TotalCost,
		TotalTokens:    t.costTracker.TotalTokens,
		ModelCosts:     make(map[string]float64),
		OperationCosts: make(map[string]float64),
	}

	for k, v := range t.costTracker.ModelCosts {
		summary.ModelCosts[k] = v
	}
	for k, v := range t.costTracker.OperationCosts {
		summary.OperationCosts[k] = v
	}

	return summary
}

// CostSummary provides a summary of costs
type CostSummary struct {
	TotalCost      float64
	TotalTokens    int64
	ModelCosts     map[string]float64
	OperationCosts map[string]float64
}

// startMetricsCollection starts periodic metrics collection
func (t *Telemetry) startMetricsCollection() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		metrics := t.GetMetrics()
		costs := t.GetCostSummary()

		t.logger.Printf("Metrics Snapshot: Runs=%d/%d, AvgTime=%v, TotalCost=$%.4f, TotalTokens=%d",
			metrics.SuccessfulRuns, metrics.TotalRuns,
			metrics.AverageRunTime, costs.TotalCost, costs.TotalTokens)
	}
}

// startCostReporting starts periodic cost reporting
func (t *Telemetry) startCostReporting() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		costs := t.GetCostSummary()

		t.logger.Printf("Cost Report: Total=$%.4f, Tokens=%d", costs.TotalCost, costs.TotalTokens)

		for model, cost := range costs.ModelCosts {
			t.logger.Printf("  Model %s: $%.4f", model, cost)
		}
		for op, cost := range costs.OperationCosts {
			t.logger.Printf("  Operation %s: $%.4f", op, cost)
		}
	}
}

// Shutdown gracefully shuts down the telemetry system
func (t *Telemetry) Shutdown() {
	t.logger.Println("Shutting down telemetry system...")

	metrics := t.GetMetrics()
	costs := t.GetCostSummary()
	if metrics.TotalRuns == 0 {
		return
	}

	t.logger.Printf("Final Report:")
	t.logger.Printf("  Total Runs: %d", metrics.TotalRuns)
	t.logger.Printf("  Success Rate: %.2f%%", float64(metrics.SuccessfulRuns)/float64(metrics.TotalRuns)*100)
	t.logger.Printf("  Average Run Time: %v", metrics.AverageRunTime)
	t.logger.Printf("  Total Cost: $%.4f", costs.TotalCost)
	t.logger.Printf("  Total Tokens: %d", costs.TotalTokens)
}

// GetPerformanceReport returns a detailed performance report
func (t *Telemetry) GetPerformanceReport() string {
	metrics := t.GetMetrics()
	costs := t.GetCostSummary()
	if metrics.TotalRuns == 0 {
		return "no runs recorded"
	}

	report := fmt.Sprintf(`
=== PERFORMANCE REPORT ===
Overall Metrics:
  Total Runs: %d
  Successful: %d (%.2f%%)
  Failed: %d (%.2f%%)
  Average Run Time: %v
  Total Cost: $%.4f
  Total Tokens: %d

Tool Performance:
`, metrics.TotalRuns, metrics.SuccessfulRuns,
		float64(metrics.SuccessfulRuns)/float64(metrics.TotalRuns)*100,
		metrics.FailedRuns, float64(metrics.FailedRuns)/float64(metrics.TotalRuns)*100,
		metrics.AverageRunTime, costs.TotalCost, costs.TotalTokens)

	for tool, executions := range metrics.ToolExecutions {
		successRate := metrics.ToolSuccessRates[tool]
		avgTime := metrics.ToolAverageTimes[tool]
		report += fmt.Sprintf("  %s: %d executions, %.2f%% success, %v avg time\n",
			tool, executions, successRate*100, avgTime)
	}

	report += "\nLLM Usage:\n"
	for model, requests := range metrics.LLMRequests {
		tokens := metrics.LLMTokensUsed[model]
		cost := costs.ModelCosts[model]
		report += fmt.Sprintf("  %s: %d requests, %d tokens, $%.4f\n",
			model, requests, tokens, cost)
	}

	return report
}
