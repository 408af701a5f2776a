// Package livemetrics simulates the dashboard's live readings by jittering
// a fixed set of baselines on a timer.
package livemetrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/retrofitforge/twin/internal/model"
	"github.com/retrofitforge/twin/internal/telemetry"
)

// DefaultInterval is the emission period used when Config.Interval is zero.
const DefaultInterval = 3 * time.Second

// ErrUnknownMetric is returned for names that are not in the catalogue.
var ErrUnknownMetric = errors.New("livemetrics: unknown metric")

// Rand is the random source used for jitter. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Sink receives every tick's samples, typically for persistence.
type Sink interface {
	RecordSamples(ctx context.Context, samples []model.MetricSample) error
}

// Config configures a Source. Zero fields take defaults.
type Config struct {
	Interval  time.Duration
	Catalogue []Spec
	Rand      Rand
	Sink      Sink
	// OnSample is called after each tick with that tick's samples.
	OnSample func([]model.MetricSample)
	Logger   *slog.Logger
	Now      func() time.Time
}

// Source emits jittered samples on a fixed interval. Readers never block on
// the emitter: the latest tick is published through an atomic pointer.
type Source struct {
	interval  time.Duration
	specs     []Spec
	index     map[model.MetricName]int
	sink      Sink
	onSample  func([]model.MetricSample)
	logger    *slog.Logger
	now       func() time.Time
	createdAt time.Time

	randMu sync.Mutex
	rand   Rand

	latest atomic.Pointer[[]model.MetricSample]
	ticks  atomic.Int64

	mu     sync.Mutex // guards cancel and done
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped Source.
func New(cfg Config) *Source {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if len(cfg.Catalogue) == 0 {
		cfg.Catalogue = DefaultCatalogue()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	specs := make([]Spec, len(cfg.Catalogue))
	copy(specs, cfg.Catalogue)
	index := make(map[model.MetricName]int, len(specs))
	for i, s := range specs {
		index[s.Name] = i
	}
	return &Source{
		interval:  cfg.Interval,
		specs:     specs,
		index:     index,
		sink:      cfg.Sink,
		onSample:  cfg.OnSample,
		logger:    cfg.Logger,
		now:       cfg.Now,
		createdAt: cfg.Now(),
		rand:      cfg.Rand,
	}
}

// Interval returns the emission period.
func (s *Source) Interval() time.Duration { return s.interval }

// Catalogue returns the tracked metric specs.
func (s *Source) Catalogue() []Spec {
	out := make([]Spec, len(s.specs))
	copy(out, s.specs)
	return out
}

// Running reports whether the emitter goroutine is active.
func (s *Source) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Ticks returns how many ticks have been emitted since creation.
func (s *Source) Ticks() int64 { return s.ticks.Load() }

// Start launches the emitter. Calling Start on a running source is a no-op.
// The first tick is emitted immediately.
func (s *Source) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go s.loop(ctx, done)
	s.logger.Info("live metrics started", "interval", s.interval, "metrics", len(s.specs))
}

// Stop halts the emitter and waits for it to exit. Safe to call repeatedly.
// A tick already in progress finishes before Stop returns.
func (s *Source) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("live metrics stopped", "ticks", s.ticks.Load())
}

func (s *Source) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick emits one round of samples. The loop calls it on every interval;
// it is exported so callers and tests can drive the source by hand.
func (s *Source) Tick(ctx context.Context) []model.MetricSample {
	now := s.now()
	samples := make([]model.MetricSample, len(s.specs))
	s.randMu.Lock()
	for i, spec := range s.specs {
		samples[i] = model.MetricSample{
			Name:      spec.Name,
			Value:     s.jitter(spec),
			Timestamp: now,
		}
	}
	s.randMu.Unlock()

	s.latest.Store(&samples)
	s.ticks.Add(1)

	if s.sink != nil {
		if err := s.sink.RecordSamples(ctx, samples); err != nil && ctx.Err() == nil {
			s.logger.Warn("live metrics: record samples failed", "error", err)
		}
	}
	if s.onSample != nil {
		out := make([]model.MetricSample, len(samples))
		copy(out, samples)
		s.onSample(out)
	}
	return samples
}

// jitter returns baseline + U(-spread, +spread). Caller holds randMu.
func (s *Source) jitter(spec Spec) float64 {
	if spec.Spread <= 0 {
		return spec.Baseline
	}
	u := s.rand.Float64()*2 - 1
	return spec.Baseline + u*spec.Spread
}

// CurrentValue returns the latest sample for name. Before the first tick the
// sample holds exactly the baseline, stamped with the source's creation time.
func (s *Source) CurrentValue(name model.MetricName) (model.MetricSample, error) {
	i, ok := s.index[name]
	if !ok {
		return model.MetricSample{}, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	if latest := s.latest.Load(); latest != nil {
		return (*latest)[i], nil
	}
	return model.MetricSample{Name: name, Value: s.specs[i].Baseline, Timestamp: s.createdAt}, nil
}

// Snapshot returns the latest sample of every tracked metric in catalogue
// order.
func (s *Source) Snapshot() []model.MetricSample {
	out := make([]model.MetricSample, len(s.specs))
	if latest := s.latest.Load(); latest != nil {
		copy(out, *latest)
		return out
	}
	for i, spec := range s.specs {
		out[i] = model.MetricSample{Name: spec.Name, Value: spec.Baseline, Timestamp: s.createdAt}
	}
	return out
}

// SnapshotMap is Snapshot keyed by metric name.
func (s *Source) SnapshotMap() map[model.MetricName]model.MetricSample {
	snap := s.Snapshot()
	m := make(map[model.MetricName]model.MetricSample, len(snap))
	for _, sample := range snap {
		m[sample.Name] = sample
	}
	return m
}

// RegisterGauges exports every tracked metric as an observable gauge named
// twin.live.<name>.
func (s *Source) RegisterGauges() error {
	meter := telemetry.Meter("twin/livemetrics")
	var errs []error
	for _, spec := range s.specs {
		name := spec.Name
		_, err := meter.Float64ObservableGauge("twin.live."+string(name),
			metric.WithDescription("Simulated live dashboard value for "+string(name)),
			metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
				sample, err := s.CurrentValue(name)
				if err != nil {
					return nil
				}
				o.Observe(sample.Value)
				return nil
			}),
		)
		if err != nil {
			errs = append(errs, fmt.Errorf("livemetrics: gauge %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
