// Package resolve orchestrates the two address validation providers into a
// single canonical resolution per input, with a ZIP-centroid rescue for
// results that carry no usable coordinate.
package resolve

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AssetVal/HeatMap/internal/resilience"
	"github.com/AssetVal/HeatMap/pkg/verify"
	"github.com/AssetVal/HeatMap/pkg/zipcentroid"
)

// Sentinel errors surfaced to callers.
var (
	// ErrInvalidInput indicates the structured address failed shape validation
	// before any network call.
	ErrInvalidInput = eris.New("resolve: invalid input address")
	// ErrResolutionFailed indicates both providers failed outright.
	ErrResolutionFailed = eris.New("resolve: both providers failed")
	// ErrGeoLocationUnresolvable indicates neither provider nor the ZIP
	// centroid rescue produced a usable coordinate.
	ErrGeoLocationUnresolvable = eris.New("resolve: no usable coordinate")
)

// ResolvedAddress is the canonical output of one resolution.
type ResolvedAddress struct {
	Original     verify.Address          `json:"originalAddress"`
	Validated    verify.ValidatedAddress `json:"validatedAddress"`
	Geocode      verify.Geocode          `json:"geocode"`
	AllValid     bool                    `json:"allValid"`
	Issues       []verify.Issue          `json:"issues"`
	Suggestions  verify.Suggestions      `json:"suggestions"`
	VerifiedWith string                  `json:"verifiedWith"`
}

// Centroids is the ZIP-centroid rescue lookup.
type Centroids interface {
	Lookup(ctx context.Context, zip string) (*zipcentroid.Location, error)
}

// Option configures the engine.
type Option func(*Engine)

// WithRetry overrides the retry configuration applied to provider calls.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(e *Engine) { e.retry = cfg }
}

// Engine resolves structured addresses through the provider fallback chain.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	primary   verify.Provider
	secondary verify.Provider
	centroids Centroids
	retry     resilience.RetryConfig
}

// NewEngine creates a resolution engine over a primary and secondary provider
// and the centroid rescue lookup.
func NewEngine(primary, secondary verify.Provider, centroids Centroids, opts ...Option) *Engine {
	e := &Engine{
		primary:   primary,
		secondary: secondary,
		centroids: centroids,
		retry:     providerRetryConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func providerRetryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.ShouldRetry = func(err error) bool {
		return eris.Is(err, verify.ErrUnavailable) || resilience.IsTransient(err)
	}
	return cfg
}

// Resolve produces exactly one ResolvedAddress for the given input.
//
// Policy: the primary provider's fully valid result wins outright; otherwise
// the secondary's; otherwise the two partial results are merged. A hard
// failure of the primary never skips the secondary. Whatever result is
// chosen, a missing or exactly-zero coordinate triggers the ZIP-centroid
// rescue before the call can be reported successful.
func (e *Engine) Resolve(ctx context.Context, addr verify.Address) (*ResolvedAddress, error) {
	if err := ValidateInput(addr); err != nil {
		return nil, err
	}

	primary, primaryErr := e.callProvider(ctx, e.primary, addr)
	if primaryErr == nil && primary.AllValid {
		return e.finish(ctx, addr, primary, e.primary.Name())
	}
	if primaryErr != nil {
		zap.L().Debug("primary provider failed, falling back",
			zap.String("street", addr.Street),
			zap.Error(primaryErr),
		)
	}

	secondary, secondaryErr := e.callProvider(ctx, e.secondary, addr)
	if secondaryErr == nil && secondary.AllValid {
		return e.finish(ctx, addr, secondary, e.secondary.Name())
	}

	if primaryErr != nil && secondaryErr != nil {
		return nil, eris.Wrapf(ErrResolutionFailed, "resolve: primary: %v; secondary: %v", primaryErr, secondaryErr)
	}

	merged := Merge(primary, secondary)
	verifiedWith := e.primary.Name()
	if primary == nil {
		verifiedWith = e.secondary.Name()
	}
	return e.finish(ctx, addr, merged, verifiedWith)
}

// FromCoordinates builds a ResolvedAddress directly from a known coordinate
// pair, skipping the providers entirely.
func (e *Engine) FromCoordinates(addr verify.Address, lat, lng float64) *ResolvedAddress {
	return &ResolvedAddress{
		Original: addr,
		Validated: verify.ValidatedAddress{
			Street:     addr.Street,
			UnitNumber: addr.UnitNumber,
			City:       addr.City,
			State:      addr.State,
			Zip:        addr.Zip,
		},
		Geocode:      verify.Geocode{Latitude: lat, Longitude: lng},
		AllValid:     true,
		VerifiedWith: "Coordinates",
	}
}

func (e *Engine) callProvider(ctx context.Context, p verify.Provider, addr verify.Address) (*verify.Result, error) {
	cfg := e.retry
	cfg.OnRetry = resilience.RetryLogger(p.Name(), "validate")
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*verify.Result, error) {
		return p.Validate(ctx, addr)
	})
}

// finish applies the zero-coordinate rescue and assembles the final record.
func (e *Engine) finish(ctx context.Context, addr verify.Address, res *verify.Result, verifiedWith string) (*ResolvedAddress, error) {
	geocode := res.Geocode

	if geocode.Latitude == 0 || geocode.Longitude == 0 {
		zip := res.Validated.Zip
		if zip == "" {
			zip = addr.Zip
		}
		loc, err := e.centroids.Lookup(ctx, zip)
		if err != nil {
			return nil, eris.Wrapf(ErrGeoLocationUnresolvable, "resolve: centroid lookup for zip %q: %v", zip, err)
		}
		if loc == nil || (loc.Latitude == 0 && loc.Longitude == 0) {
			return nil, eris.Wrapf(ErrGeoLocationUnresolvable, "resolve: no centroid for zip %q", zip)
		}
		zap.L().Debug("substituted zip centroid for missing geocode",
			zap.String("zip", zip),
			zap.Float64("latitude", loc.Latitude),
			zap.Float64("longitude", loc.Longitude),
		)
		geocode.Latitude = loc.Latitude
		geocode.Longitude = loc.Longitude
	}

	return &ResolvedAddress{
		Original:     addr,
		Validated:    res.Validated,
		Geocode:      geocode,
		AllValid:     res.AllValid,
		Issues:       res.Issues,
		Suggestions:  res.Suggestions,
		VerifiedWith: verifiedWith,
	}, nil
}
