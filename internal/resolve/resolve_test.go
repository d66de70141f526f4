package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AssetVal/HeatMap/internal/resilience"
	"github.com/AssetVal/HeatMap/pkg/verify"
	"github.com/AssetVal/HeatMap/pkg/zipcentroid"
)

type fakeProvider struct {
	name    string
	results []func() (*verify.Result, error)
	calls   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Validate(_ context.Context, _ verify.Address) (*verify.Result, error) {
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	return f.results[idx]()
}

func succeedWith(res *verify.Result) func() (*verify.Result, error) {
	return func() (*verify.Result, error) { return res, nil }
}

func failWith(err error) func() (*verify.Result, error) {
	return func() (*verify.Result, error) { return nil, err }
}

type fakeCentroids struct {
	loc   *zipcentroid.Location
	err   error
	calls int
}

func (f *fakeCentroids) Lookup(_ context.Context, _ string) (*zipcentroid.Location, error) {
	f.calls++
	return f.loc, f.err
}

func fastEngineRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1.0,
		ShouldRetry: func(err error) bool {
			return eris.Is(err, verify.ErrUnavailable)
		},
	}
}

func validInput() verify.Address {
	return verify.Address{Street: "1 Main St", City: "Springfield", State: "IL", Zip: "62701"}
}

func validResult() *verify.Result {
	return &verify.Result{
		AllValid: true,
		Validated: verify.ValidatedAddress{
			Street: "1 Main St", City: "Springfield", State: "IL", Zip: "62701",
		},
		Geocode: verify.Geocode{Latitude: 39.78, Longitude: -89.65},
	}
}

func TestResolve_PrimaryWins(t *testing.T) {
	primary := &fakeProvider{name: "Primary", results: []func() (*verify.Result, error){succeedWith(validResult())}}
	secondary := &fakeProvider{name: "Secondary", results: []func() (*verify.Result, error){failWith(eris.New("should not be called"))}}
	centroids := &fakeCentroids{}

	eng := NewEngine(primary, secondary, centroids, WithRetry(fastEngineRetry()))
	out, err := eng.Resolve(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, "Primary", out.VerifiedWith)
	assert.True(t, out.AllValid)
	assert.Equal(t, 39.78, out.Geocode.Latitude)
	assert.Zero(t, secondary.calls, "secondary must not run when primary is fully valid")
	assert.Zero(t, centroids.calls, "no rescue when a coordinate is present")
}

func TestResolve_FallsBackToSecondary(t *testing.T) {
	primary := &fakeProvider{name: "Primary", results: []func() (*verify.Result, error){failWith(verify.ErrRejected)}}
	secondary := &fakeProvider{name: "Secondary", results: []func() (*verify.Result, error){succeedWith(validResult())}}

	eng := NewEngine(primary, secondary, &fakeCentroids{}, WithRetry(fastEngineRetry()))
	out, err := eng.Resolve(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, "Secondary", out.VerifiedWith)
	assert.True(t, out.AllValid)
}

func TestResolve_MergesPartialResults(t *testing.T) {
	primaryRes := &verify.Result{
		Validated: verify.ValidatedAddress{Street: "1 Main St", City: "Springfield", State: "IL"},
		Geocode:   verify.Geocode{Latitude: 39.78, Longitude: -89.65},
		Issues:    []verify.Issue{{ComponentType: "postal_code", ConfirmationLevel: verify.UnconfirmedPlausible}},
	}
	secondaryRes := &verify.Result{
		Validated:   verify.ValidatedAddress{Zip: "62701", County: "Sangamon"},
		Issues:      []verify.Issue{{ComponentType: "deliverability"}},
		Suggestions: verify.Suggestions{Zip: "62701"},
	}
	primary := &fakeProvider{name: "Primary", results: []func() (*verify.Result, error){succeedWith(primaryRes)}}
	secondary := &fakeProvider{name: "Secondary", results: []func() (*verify.Result, error){succeedWith(secondaryRes)}}

	eng := NewEngine(primary, secondary, &fakeCentroids{}, WithRetry(fastEngineRetry()))
	out, err := eng.Resolve(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, "Primary", out.VerifiedWith)
	assert.False(t, out.AllValid)
	assert.Equal(t, "1 Main St", out.Validated.Street)
	assert.Equal(t, "62701", out.Validated.Zip)
	assert.Equal(t, "Sangamon", out.Validated.County)
	assert.Equal(t, "62701", out.Suggestions.Zip)
	assert.GreaterOrEqual(t, len(out.Issues), 2)
}

func TestResolve_MergedTaggedSecondaryWhenPrimaryFailed(t *testing.T) {
	secondaryRes := &verify.Result{
		Validated: verify.ValidatedAddress{Street: "1 Main St", Zip: "62701"},
		Geocode:   verify.Geocode{Latitude: 39.78, Longitude: -89.65},
		Issues:    []verify.Issue{{ComponentType: "deliverability"}},
	}
	primary := &fakeProvider{name: "Primary", results: []func() (*verify.Result, error){failWith(verify.ErrRejected)}}
	secondary := &fakeProvider{name: "Secondary", results: []func() (*verify.Result, error){succeedWith(secondaryRes)}}

	eng := NewEngine(primary, secondary, &fakeCentroids{}, WithRetry(fastEngineRetry()))
	out, err := eng.Resolve(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "Secondary", out.VerifiedWith)
	assert.False(t, out.AllValid)
}

func TestResolve_ZipCentroidRescue(t *testing.T) {
	res := validResult()
	res.Geocode = verify.Geocode{}
	primary := &fakeProvider{name: "Primary", results: []func() (*verify.Result, error){succeedWith(res)}}
	secondary := &fakeProvider{name: "Secondary", results: []func() (*verify.Result, error){failWith(verify.ErrRejected)}}
	centroids := &fakeCentroids{loc: &zipcentroid.Location{Latitude: 39.8, Longitude: -89.6}}

	eng := NewEngine(primary, secondary, centroids, WithRetry(fastEngineRetry()))
	out, err := eng.Resolve(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, 39.8, out.Geocode.Latitude)
	assert.Equal(t, -89.6, out.Geocode.Longitude)
	assert.Equal(t, 1, centroids.calls)
}

func TestResolve_UnresolvableWhenCentroidMissing(t *testing.T) {
	res := validResult()
	res.Geocode = verify.Geocode{}
	primary := &fakeProvider{name: "Primary", results: []func() (*verify.Result, error){succeedWith(res)}}
	secondary := &fakeProvider{name: "Secondary", results: []func() (*verify.Result, error){failWith(verify.ErrRejected)}}
	centroids := &fakeCentroids{loc: nil}

	eng := NewEngine(primary, secondary, centroids, WithRetry(fastEngineRetry()))
	_, err := eng.Resolve(context.Background(), validInput())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrGeoLocationUnresolvable))
}

func TestResolve_BothProvidersFail(t *testing.T) {
	primary := &fakeProvider{name: "Primary", results: []func() (*verify.Result, error){failWith(verify.ErrRejected)}}
	secondary := &fakeProvider{name: "Secondary", results: []func() (*verify.Result, error){failWith(verify.ErrDataInvalid)}}

	eng := NewEngine(primary, secondary, &fakeCentroids{}, WithRetry(fastEngineRetry()))
	_, err := eng.Resolve(context.Background(), validInput())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrResolutionFailed))
}

func TestResolve_RetriesUnavailablePrimary(t *testing.T) {
	primary := &fakeProvider{name: "Primary", results: []func() (*verify.Result, error){
		failWith(verify.ErrUnavailable),
		succeedWith(validResult()),
	}}
	secondary := &fakeProvider{name: "Secondary", results: []func() (*verify.Result, error){failWith(eris.New("unused"))}}

	eng := NewEngine(primary, secondary, &fakeCentroids{}, WithRetry(fastEngineRetry()))
	out, err := eng.Resolve(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "Primary", out.VerifiedWith)
	assert.Equal(t, 2, primary.calls)
	assert.Zero(t, secondary.calls)
}

func TestResolve_InvalidInput(t *testing.T) {
	primary := &fakeProvider{name: "Primary", results: []func() (*verify.Result, error){succeedWith(validResult())}}
	secondary := &fakeProvider{name: "Secondary", results: []func() (*verify.Result, error){succeedWith(validResult())}}
	eng := NewEngine(primary, secondary, &fakeCentroids{})

	cases := []verify.Address{
		{City: "Springfield", State: "IL", Zip: "62701"},
		{Street: "1 Main St", State: "IL", Zip: "62701"},
		{Street: "1 Main St", City: "Springfield", State: "ZZ", Zip: "62701"},
		{Street: "1 Main St", City: "Springfield", State: "IL", Zip: "6270"},
	}
	for _, addr := range cases {
		_, err := eng.Resolve(context.Background(), addr)
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrInvalidInput))
		assert.Zero(t, primary.calls, "no provider call on invalid input")
	}
}

func TestFromCoordinates(t *testing.T) {
	eng := NewEngine(nil, nil, nil)
	out := eng.FromCoordinates(validInput(), 39.78, -89.65)
	assert.True(t, out.AllValid)
	assert.Equal(t, "Coordinates", out.VerifiedWith)
	assert.Equal(t, 39.78, out.Geocode.Latitude)
	assert.Equal(t, "1 Main St", out.Validated.Street)
}

func TestValidateInput_Zip4Accepted(t *testing.T) {
	addr := validInput()
	addr.Zip = "62701-1234"
	assert.NoError(t, ValidateInput(addr))
}
