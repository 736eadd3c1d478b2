package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vedaai/veda-backend/services/providers"
	"go.uber.org/zap"
)

var (
	// ErrAllProvidersFailed is matched by the error Route returns once every
	// candidate, the hard fallback included, has failed
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrEmptyRequest is returned when Route is called without messages
	ErrEmptyRequest = errors.New("chat request has no messages")
)

// RoutingConfig holds configuration for the routing service
type RoutingConfig struct {
	// AttemptTimeout bounds each provider call. Zero leaves only the caller's deadline.
	AttemptTimeout time.Duration

	// MaxTokens applied when the request does not set one
	MaxTokens int

	// Temperature applied when the request does not set one
	Temperature float32
}

// DefaultRoutingConfig returns a sensible default configuration
func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{
		AttemptTimeout: 30 * time.Second,
		MaxTokens:      2048,
		Temperature:    0.7,
	}
}

// Attempt records one failed candidate
type Attempt struct {
	Candidate Candidate     `json:"candidate"`
	Code      string        `json:"code"`
	Error     string        `json:"error"`
	Latency   time.Duration `json:"latency"`
	err       error
}

// Result is the outcome of a successful Route call
type Result struct {
	Task      TaskType                `json:"task"`
	Candidate Candidate               `json:"candidate"`
	Response  *providers.ChatResponse `json:"response"`
	// Failed lists the candidates tried before the one that answered
	Failed []Attempt `json:"failed,omitempty"`
}

// Fallback reports whether the answer came from anything but the first candidate
func (r *Result) Fallback() bool {
	return len(r.Failed) > 0
}

// ExhaustedError is returned when no candidate produced a response
type ExhaustedError struct {
	Task     TaskType
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Candidate, a.Error))
	}
	return fmt.Sprintf("%s for task %s [%s]", ErrAllProvidersFailed, e.Task, strings.Join(parts, "; "))
}

// Unwrap exposes ErrAllProvidersFailed and every attempt error
func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts)+1)
	errs = append(errs, ErrAllProvidersFailed)
	for _, a := range e.Attempts {
		if a.err != nil {
			errs = append(errs, a.err)
		}
	}
	return errs
}

// ProviderStats tracks call outcomes per provider
type ProviderStats struct {
	Successes   int64         `json:"successes"`
	Failures    int64         `json:"failures"`
	LastLatency time.Duration `json:"last_latency"`
	LastError   string        `json:"last_error,omitempty"`
}

// RoutingService walks the route table for a task, falling through to the
// next candidate on any provider failure
type RoutingService struct {
	config   RoutingConfig
	table    *Table
	registry *providers.Registry
	logger   *zap.Logger

	statsMu sync.Mutex
	stats   map[string]*ProviderStats
}

// NewRoutingService creates a new routing service
func NewRoutingService(config RoutingConfig, table *Table, registry *providers.Registry, logger *zap.Logger) *RoutingService {
	if table == nil {
		table = DefaultTable()
	}
	return &RoutingService{
		config:   config,
		table:    table,
		registry: registry,
		logger:   logger,
		stats:    make(map[string]*ProviderStats),
	}
}

// Table returns the route table
func (s *RoutingService) Table() *Table {
	return s.table
}

// Resolve returns the ordered candidates for task without calling anything
func (s *RoutingService) Resolve(task TaskType) []Candidate {
	return s.table.Candidates(task)
}

// Route sends req to the candidates for task in order and returns the first
// response. A failure moves on immediately: there is no retry and no backoff.
// Cancellation of ctx stops the walk and is returned as is.
func (s *RoutingService) Route(ctx context.Context, task TaskType, req *providers.ChatRequest) (*Result, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, ErrEmptyRequest
	}

	candidates := s.table.Candidates(task)
	failed := make([]Attempt, 0, len(candidates))

	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := s.attempt(ctx, candidate, req)
		latency := time.Since(start)

		if err == nil {
			s.record(candidate.Provider, latency, nil)
			if i > 0 {
				s.logger.Info("request served by fallback candidate",
					zap.String("task", string(task)),
					zap.String("candidate", candidate.String()),
					zap.Int("position", i),
				)
			}
			return &Result{Task: task, Candidate: candidate, Response: resp, Failed: failed}, nil
		}

		// The caller gave up; that says nothing about the provider.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		s.record(candidate.Provider, latency, err)
		failed = append(failed, Attempt{
			Candidate: candidate,
			Code:      providers.ErrorCode(err),
			Error:     err.Error(),
			Latency:   latency,
			err:       err,
		})

		s.logger.Warn("provider attempt failed",
			zap.String("task", string(task)),
			zap.String("candidate", candidate.String()),
			zap.String("code", providers.ErrorCode(err)),
			zap.Int("position", i),
			zap.Int("remaining", len(candidates)-i-1),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
	}

	s.logger.Error("all providers failed",
		zap.String("task", string(task)),
		zap.Int("attempts", len(failed)),
	)
	return nil, &ExhaustedError{Task: task, Attempts: failed}
}

func (s *RoutingService) attempt(ctx context.Context, candidate Candidate, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	provider, err := s.registry.GetProvider(candidate.Provider)
	if err != nil {
		return nil, providers.NewProviderError(candidate.Provider, providers.CodeNotConfigured, "provider not registered", 0, false, err)
	}
	if !provider.IsAvailable(ctx) {
		return nil, providers.NewProviderError(candidate.Provider, providers.CodeNotConfigured, "provider not available", 0, false, nil)
	}

	attemptReq := req.Clone()
	attemptReq.Model = candidate.Model
	attemptReq.JSONMode = req.JSONMode || candidate.JSONMode
	if attemptReq.MaxTokens == 0 {
		attemptReq.MaxTokens = s.config.MaxTokens
	}
	if attemptReq.Temperature == 0 {
		attemptReq.Temperature = s.config.Temperature
	}

	if s.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.AttemptTimeout)
		defer cancel()
	}

	resp, err := provider.ChatCompletion(ctx, attemptReq)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, providers.NewProviderError(candidate.Provider, providers.CodeEmptyResponse, "provider returned nil response", 0, true, nil)
	}
	return resp, nil
}

func (s *RoutingService) record(provider string, latency time.Duration, err error) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	st, ok := s.stats[provider]
	if !ok {
		st = &ProviderStats{}
		s.stats[provider] = st
	}
	st.LastLatency = latency
	if err != nil {
		st.Failures++
		st.LastError = providers.ErrorCode(err)
		if st.LastError == "" {
			st.LastError = err.Error()
		}
		return
	}
	st.Successes++
}

// Stats returns a copy of the per-provider counters
func (s *RoutingService) Stats() map[string]ProviderStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	out := make(map[string]ProviderStats, len(s.stats))
	for name, st := range s.stats {
		out[name] = *st
	}
	return out
}
