package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/smartcity/traffic-analyzer/internal/domain"
	"github.com/smartcity/traffic-analyzer/pkg/metrics"
)

// Delegation defaults
const (
	DefaultMaxAttempts = 2
	DefaultCallTimeout = 45 * time.Second
	DefaultRetryDelay  = 5 * time.Second

	healthTimeout      = 5 * time.Second
	maxResponseBytes   = 4 << 20
	summaryFallbackLen = 500
	promptAnomalyLimit = 10
)

// DelegationConfig configures the external analysis call
type DelegationConfig struct {
	ServiceURL       string
	UseLocalAnalyzer bool
	APIKey           string
	MaxAttempts      int
	Timeout          time.Duration
	RetryDelay       time.Duration
}

// DefaultDelegationConfig returns the stock settings with the external call disabled
func DefaultDelegationConfig() DelegationConfig {
	return DelegationConfig{
		ServiceURL:       "http://localhost:7860/api/v1/run",
		UseLocalAnalyzer: true,
		MaxAttempts:      DefaultMaxAttempts,
		Timeout:          DefaultCallTimeout,
		RetryDelay:       DefaultRetryDelay,
	}
}

// State is a step of the delegation protocol
type State int

const (
	StateDisabled State = iota
	StateAttempting
	StateRetryWait
	StateFallback
	StateDone
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateAttempting:
		return "attempting"
	case StateRetryWait:
		return "retry_wait"
	case StateFallback:
		return "fallback"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// requestVariant is one accepted request body shape
type requestVariant struct {
	name string
	body func(text string) any
}

var requestVariants = []requestVariant{
	{name: "chat", body: func(text string) any {
		return map[string]any{"input_value": text, "output_type": "chat", "input_type": "chat"}
	}},
	{name: "message", body: func(text string) any { return map[string]any{"message": text} }},
	{name: "input", body: func(text string) any { return map[string]any{"input": text} }},
	{name: "inputs", body: func(text string) any {
		return map[string]any{"inputs": map[string]any{"input": text}}
	}},
}

// DelegationClient hands analysis requests to an external service and falls
// back to the local analyzer whenever that service cannot produce a result.
type DelegationClient struct {
	cfg        DelegationConfig
	httpClient *http.Client
	extractors []OutputExtractor
	metrics    *metrics.Collector
}

// NewDelegationClient creates a new delegation client
func NewDelegationClient(cfg DelegationConfig, collector *metrics.Collector) *DelegationClient {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCallTimeout
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &DelegationClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		extractors: DefaultExtractors(),
		metrics:    collector,
	}
}

// Analyze always returns a usable result; service failures only show up as
// a local source.
func (c *DelegationClient) Analyze(ctx context.Context, req domain.AnalysisRequest) *domain.AnalysisResult {
	res, _ := c.Run(ctx, req)
	return res
}

// Run drives the delegation protocol and reports the terminal state reached
func (c *DelegationClient) Run(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, State) {
	local := AnalyzeLocally(req)

	if c.cfg.UseLocalAnalyzer {
		c.metrics.RecordDelegation(local.Source, StateDisabled.String())
		return local, StateDisabled
	}

	prompt := BuildPrompt(req, local)
	state := StateAttempting
	attempt := 0
	for {
		switch state {
		case StateAttempting:
			attempt++
			next, res := c.attempt(ctx, attempt, prompt, local)
			if next == StateDone {
				c.metrics.RecordDelegation(res.Source, StateDone.String())
				return res, StateDone
			}
			if next == StateRetryWait && attempt >= c.cfg.MaxAttempts {
				next = StateFallback
			}
			state = next

		case StateRetryWait:
			log.Printf("[delegation] attempt %d/%d failed, retrying in %s", attempt, c.cfg.MaxAttempts, c.cfg.RetryDelay)
			if !c.wait(ctx) {
				state = StateFallback
				continue
			}
			state = StateAttempting

		default:
			log.Printf("[delegation] falling back to local analyzer after %d attempt(s)", attempt)
			c.metrics.RecordDelegation(local.Source, StateFallback.String())
			return local, StateFallback
		}
	}
}

// attempt tries each request variant once and decides the next state
func (c *DelegationClient) attempt(ctx context.Context, n int, prompt string, local *domain.AnalysisResult) (State, *domain.AnalysisResult) {
	for _, v := range requestVariants {
		status, data, err := c.call(ctx, v, prompt)
		if err != nil {
			terr := &TransientServiceError{Variant: v.name, Timeout: isTimeout(err), Err: err}
			log.Printf("[delegation] attempt %d: %v", n, terr)
			if terr.Timeout {
				c.metrics.RecordExternalCall(v.name, "timeout")
				continue
			}
			c.metrics.RecordExternalCall(v.name, "connection_error")
			return StateRetryWait, nil
		}

		switch status {
		case http.StatusOK:
			res, perr := c.parseResponse(v.name, data, local)
			if perr != nil {
				log.Printf("[delegation] attempt %d: %v", n, perr)
				c.metrics.RecordExternalCall(v.name, "malformed")
				continue
			}
			c.metrics.RecordExternalCall(v.name, "ok")
			return StateDone, res

		case http.StatusForbidden, http.StatusNotFound:
			log.Printf("[delegation] attempt %d: analysis service returned status %d, not retrying", n, status)
			c.metrics.RecordExternalCall(v.name, fmt.Sprintf("status_%d", status))
			return StateFallback, nil

		default:
			log.Printf("[delegation] attempt %d: %v", n, &TransientServiceError{Variant: v.name, StatusCode: status})
			c.metrics.RecordExternalCall(v.name, fmt.Sprintf("status_%d", status))
		}
	}
	return StateRetryWait, nil
}

// call performs one outbound request under the per-call timeout
func (c *DelegationClient) call(ctx context.Context, v requestVariant, prompt string) (int, []byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(v.body(prompt))
	if err != nil {
		return 0, nil, fmt.Errorf("delegation: failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.ServiceURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("delegation: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("delegation: failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// parseResponse merges the service's insights with locally computed anomalies
func (c *DelegationClient) parseResponse(variant string, data []byte, local *domain.AnalysisResult) (*domain.AnalysisResult, error) {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, &MalformedResponseError{Variant: variant, Reason: "body is not a JSON object"}
	}

	text, strategy, ok := ExtractOutput(body, c.extractors)
	if !ok {
		return nil, &MalformedResponseError{Variant: variant, Reason: "no output text found"}
	}

	insights, ok := ExtractInsights(text)
	if !ok {
		return nil, &MalformedResponseError{Variant: variant, Reason: fmt.Sprintf("no JSON object in %q output", strategy)}
	}

	res := *local
	res.Source = domain.SourceExternal
	res.Confidence = domain.ConfidenceHigh
	if insights.Summary != nil && strings.TrimSpace(*insights.Summary) != "" {
		res.Summary = *insights.Summary
	} else {
		res.Summary = truncate(strings.TrimSpace(text), summaryFallbackLen)
	}
	if len(insights.Recommendations) > 0 {
		res.Recommendations = insights.Recommendations
	}
	return &res, nil
}

func (c *DelegationClient) wait(ctx context.Context) bool {
	timer := time.NewTimer(c.cfg.RetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Health reports the analysis service status for the health endpoint
func (c *DelegationClient) Health(ctx context.Context) string {
	if c.cfg.UseLocalAnalyzer {
		return "local_mode"
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serviceBaseURL(c.cfg.ServiceURL)+"/health", nil)
	if err != nil {
		return "unreachable"
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "unreachable"
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("unhealthy (status: %d)", resp.StatusCode)
	}
	return "healthy"
}

// serviceBaseURL strips the API path: http://host:7860/api/v1/run/flow -> http://host:7860
func serviceBaseURL(serviceURL string) string {
	if i := strings.Index(serviceURL, "/api/"); i >= 0 {
		return serviceURL[:i]
	}
	return strings.TrimRight(serviceURL, "/")
}

// BuildPrompt renders the text sent to the analysis service
func BuildPrompt(req domain.AnalysisRequest, local *domain.AnalysisResult) string {
	var b strings.Builder
	stats := req.SummaryStats

	b.WriteString("Analyze the following traffic sensor data and reply with a JSON object ")
	b.WriteString(`{"summary": string, "recommendations": [string]}.` + "\n")
	fmt.Fprintf(&b, "Dataset: %d records across %d locations (%s).\n",
		stats.TotalRecords, stats.UniqueLocations, strings.Join(req.Locations, ", "))
	fmt.Fprintf(&b, "Time range: %s to %s (%.1f hours).\n", req.TimeRange.Start, req.TimeRange.End, stats.TimeSpanHours)
	fmt.Fprintf(&b, "Average vehicle count: %.1f. Average speed: %.1f km/h.\n", stats.AvgVehicleCount, stats.AvgSpeed)
	fmt.Fprintf(&b, "Busiest hour: %d. Quietest hour: %d.\n", stats.PeakHourTraffic, stats.LowestHourTraffic)

	fmt.Fprintf(&b, "Detected anomalies: %d (high: %d, medium: %d).\n",
		local.TotalAnomalyCount, local.SeverityBreakdown.High, local.SeverityBreakdown.Medium)
	for i, a := range local.Anomalies {
		if i >= promptAnomalyLimit {
			break
		}
		fmt.Fprintf(&b, "%d. %s at %s: %s severity, %+.1f%% (observed %d vs baseline %.2f)\n",
			i+1, a.LocationID, a.Timestamp, a.Severity, a.DeviationPct, a.ObservedValue, a.BaselineMean)
	}
	return b.String()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
