package batch

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/AssetVal/HeatMap/internal/resolve"
	"github.com/AssetVal/HeatMap/pkg/verify"
)

// ErrAlreadyRunning indicates a start was attempted while a batch is in
// flight. At most one batch runs per processor instance.
var ErrAlreadyRunning = eris.New("batch: processor already running")

// Input is one item of a batch. When Latitude and Longitude are both set,
// provider resolution is skipped and the coordinate is used as-is.
type Input struct {
	Address   verify.Address
	Latitude  *float64
	Longitude *float64
}

// Point is one resolved, enriched output point. CountyDensity is nil when
// the coordinate falls outside every loaded region; outside-all-regions is
// unknown density, not zero.
type Point struct {
	Key           string
	Latitude      float64
	Longitude     float64
	CountyDensity *float64
	Resolved      *resolve.ResolvedAddress
}

// PointKey derives the map key for an address.
func PointKey(addr verify.Address) string {
	return strings.ToLower(strings.Join([]string{addr.Street, addr.City, addr.State, addr.Zip}, "|"))
}

// Resolver is the per-item resolution dependency.
type Resolver interface {
	Resolve(ctx context.Context, addr verify.Address) (*resolve.ResolvedAddress, error)
	FromCoordinates(addr verify.Address, lat, lng float64) *resolve.ResolvedAddress
}

// RegionLookup answers density queries for enrichment. A nil RegionLookup
// disables enrichment entirely.
type RegionLookup interface {
	DensityAt(lat, lng float64) (float64, bool)
}

// Result is the outcome of one completed batch run.
type Result struct {
	State  State
	Points map[string]Point
}

// Option configures the processor.
type Option func(*Processor)

// WithObserver registers a callback invoked after every state transition.
func WithObserver(fn func(State)) Option {
	return func(p *Processor) { p.observe = fn }
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithSuccessPolicy overrides how the terminal success flag is derived from
// the final state. The default treats any failure as overall failure.
func WithSuccessPolicy(fn func(State) bool) Option {
	return func(p *Processor) { p.isSuccess = fn }
}

// Processor runs batches strictly sequentially, pacing provider calls to
// stay under vendor rate limits.
type Processor struct {
	resolver  Resolver
	regions   RegionLookup
	limiter   *rate.Limiter
	observe   func(State)
	isSuccess func(State) bool
	now       func() time.Time
	running   atomic.Bool
}

// NewProcessor creates a processor. itemsPerSecond bounds the provider call
// rate; zero or negative disables pacing.
func NewProcessor(resolver Resolver, regions RegionLookup, itemsPerSecond float64, opts ...Option) *Processor {
	p := &Processor{
		resolver:  resolver,
		regions:   regions,
		isSuccess: func(s State) bool { return s.Failed == 0 },
		now:       time.Now,
	}
	if itemsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(itemsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes the inputs in order and returns the terminal state with the
// resolved point set. A second Run while one is in flight returns
// ErrAlreadyRunning. Item failures do not abort the run; they consume a
// progress slot and are reported in the final state.
func (p *Processor) Run(ctx context.Context, inputs []Input) (*Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer p.running.Store(false)

	state := State{}.StartProcessing(len(inputs), p.now())
	p.notify(state)

	points := make(map[string]Point, len(inputs))

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "batch: run canceled")
		}

		resolved, err := p.resolveItem(ctx, in)
		if err != nil {
			zap.L().Warn("address failed to resolve",
				zap.String("street", in.Address.Street),
				zap.String("zip", in.Address.Zip),
				zap.Error(err),
			)
			state = state.RecordFailure(in.Address, p.now())
			p.notify(state)
			continue
		}

		pt := Point{
			Key:       PointKey(in.Address),
			Latitude:  resolved.Geocode.Latitude,
			Longitude: resolved.Geocode.Longitude,
			Resolved:  resolved,
		}
		// Enrichment never aborts the batch; no match leaves density unknown.
		if p.regions != nil {
			if d, ok := p.regions.DensityAt(pt.Latitude, pt.Longitude); ok {
				pt.CountyDensity = &d
			}
		}
		points[pt.Key] = pt

		state = state.Advance(p.now())
		p.notify(state)
	}

	state = state.Finish(p.isSuccess(state))
	p.notify(state)

	zap.L().Info("batch complete",
		zap.Int("total", state.Total),
		zap.Int("failed", state.Failed),
		zap.Bool("success", state.IsSuccess),
	)
	return &Result{State: state, Points: points}, nil
}

// resolveItem resolves one input, skipping the providers (and the pacer)
// when a coordinate is already present.
func (p *Processor) resolveItem(ctx context.Context, in Input) (*resolve.ResolvedAddress, error) {
	if in.Latitude != nil && in.Longitude != nil {
		return p.resolver.FromCoordinates(in.Address, *in.Latitude, *in.Longitude), nil
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "batch: rate limit wait")
		}
	}
	return p.resolver.Resolve(ctx, in.Address)
}

func (p *Processor) notify(s State) {
	if p.observe != nil {
		p.observe(s)
	}
}
