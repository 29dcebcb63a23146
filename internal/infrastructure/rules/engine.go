package rules

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/pkg/metrics"
	"fraud-risk-engine/internal/pkg/tracing"
)

// EngineOptions tunes failure handling
type EngineOptions struct {
	// IsolateFailures drops a failing analyzer's flags instead of failing
	// the whole run
	IsolateFailures bool
	Metrics         *metrics.Metrics
	Logger          *zap.Logger
	Tracer          trace.Tracer
}

// Engine runs the applicable analyzers concurrently and joins their flags
type Engine struct {
	analyzers []Analyzer
	isolate   bool
	metrics   *metrics.Metrics
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewEngine creates an engine over the given analyzers. Flag order in the
// result follows analyzer order.
func NewEngine(analyzers []Analyzer, opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.Tracer()
	}
	return &Engine{
		analyzers: analyzers,
		isolate:   opts.IsolateFailures,
		metrics:   opts.Metrics,
		logger:    logger,
		tracer:    tracer,
	}
}

// Run evaluates every applicable analyzer and returns the combined flags
func (e *Engine) Run(ctx context.Context, ev *Evaluation) ([]fraud.FraudFlag, error) {
	results := make([][]fraud.FraudFlag, len(e.analyzers))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range e.analyzers {
		if !a.Applies(ev) {
			continue
		}
		g.Go(func() error {
			actx, span := e.tracer.Start(gctx, "analyzer."+a.Name())
			defer span.End()

			flags, err := a.Analyze(actx, ev)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "analyzer failed")
				e.metrics.AnalyzerFailed(a.Name())
				if e.isolate {
					e.logger.Warn("analyzer failed, continuing without its flags",
						zap.String("analyzer", a.Name()),
						zap.String("user_id", ev.Input.UserID.String()),
						zap.Error(err))
					return nil
				}
				return fmt.Errorf("%s analyzer: %w", a.Name(), err)
			}
			span.SetAttributes(attribute.Int("fraud.flags", len(flags)))
			results[i] = flags
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var flags []fraud.FraudFlag
	for _, r := range results {
		flags = append(flags, r...)
	}
	return flags, nil
}
