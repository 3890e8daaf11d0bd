// Package tracer runs the vessel centerline pipeline: cost map, shortest
// path, spline smoothing, radius estimation and mask rasterization.
//
// The pipeline stages run strictly in sequence and fail fast: the first
// failing stage aborts the trace with a typed *Error and no partial result
// is returned. A Tracer holds only immutable parameters, so independent
// traces may run concurrently on the same read-only volume.
package tracer

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"reflect"
	"runtime"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"vesseltrace/pkg/centerline"
	"vesseltrace/pkg/config"
	"vesseltrace/pkg/costmap"
	"vesseltrace/pkg/curve"
	"vesseltrace/pkg/mask"
	"vesseltrace/pkg/pathsearch"
	"vesseltrace/pkg/radius"
	"vesseltrace/pkg/volume"
)

// Params holds the tracing parameters.
type Params struct {
	// InitialRadiusMm is the expected vessel radius. The radius search window
	// is MaxRadiusFactor times this value. Must be > 0.
	InitialRadiusMm float64

	// BrightVessels selects bright-blood (true) or dark-blood (false) imaging.
	BrightVessels bool

	// CostExponent sharpens the preference for vessel-interior voxels. Must be > 0.
	CostExponent float64

	// IntensityRange fixes the normalization window. Nil uses the observed range.
	IntensityRange *costmap.IntensityRange

	// Subdivisions is the number of spline samples inserted per voxel step.
	Subdivisions int

	// MaxIterations caps the voxels settled by the path search. Zero disables the cap.
	MaxIterations int

	// SearchMarginMm confines the search to the endpoint bounding box grown
	// by this margin. Zero or negative searches the whole volume.
	SearchMarginMm float64

	// BarrierCost marks voxels whose cost reaches this value as impassable.
	// Costs lie in (0, 1], so 1 blocks every zero-affinity voxel. Zero
	// disables barriers.
	BarrierCost float64

	// RadiusDirections is the number of rays per radius estimate.
	RadiusDirections int

	// RadiusStepMm is the ray sampling step. Zero derives it from spacing.
	RadiusStepMm float64

	// MaxRadiusFactor scales InitialRadiusMm into the ray length. Must be > 0.
	MaxRadiusFactor float64

	// NumCores is the number of workers used for mask rasterization.
	NumCores int

	// Logger receives stage progress. Nil disables logging.
	Logger *slog.Logger
}

// DefaultParams returns the parameters of config.DefaultConfig.
func DefaultParams() *Params {
	return ParamsFromConfig(config.DefaultConfig())
}

// ParamsFromConfig maps a loaded configuration onto tracer parameters.
func ParamsFromConfig(cfg *config.Config) *Params {
	p := &Params{
		InitialRadiusMm:  cfg.Trace.InitialRadiusMm,
		BrightVessels:    cfg.Trace.BrightVessels,
		CostExponent:     cfg.Trace.CostExponent,
		Subdivisions:     cfg.Trace.Subdivisions,
		MaxIterations:    cfg.Trace.MaxIterations,
		SearchMarginMm:   cfg.Trace.SearchMarginMm,
		BarrierCost:      cfg.Trace.BarrierCost,
		RadiusDirections: cfg.Radius.Directions,
		RadiusStepMm:     cfg.Radius.StepMm,
		MaxRadiusFactor:  cfg.Radius.MaxRadiusFactor,
		NumCores:         cfg.Processing.NumCores,
	}
	if cfg.Trace.IntensityMin != 0 || cfg.Trace.IntensityMax != 0 {
		p.IntensityRange = &costmap.IntensityRange{Min: cfg.Trace.IntensityMin, Max: cfg.Trace.IntensityMax}
	}
	return p
}

// Tracer extracts vessel centerlines with a fixed set of parameters.
type Tracer struct {
	params Params
	log    *slog.Logger
}

// NewTracer creates a new tracer with a copy of the provided parameters.
func NewTracer(params *Params) *Tracer {
	t := &Tracer{params: *params, log: params.Logger}
	if t.log == nil {
		t.log = newNopLogger()
	}
	if t.params.NumCores <= 0 {
		t.params.NumCores = runtime.NumCPU()
	}
	return t
}

// Config is the minimal tracing configuration: initial radius, imaging
// convention and cost exponent. Remaining parameters take their defaults.
type Config struct {
	InitialRadiusMm float64
	BrightVessels   bool
	CostExponent    float64
}

// TraceCenterline traces vol between two physical points with default
// parameters overridden by cfg.
func TraceCenterline(ctx context.Context, vol volume.Scalar, startPoint, endPoint r3.Vec, cfg Config) (*centerline.Result, error) {
	params := DefaultParams()
	params.InitialRadiusMm = cfg.InitialRadiusMm
	params.BrightVessels = cfg.BrightVessels
	params.CostExponent = cfg.CostExponent
	return NewTracer(params).TraceCenterline(ctx, vol, startPoint, endPoint)
}

// GenerateMask rasterizes res over geom with default parameters.
func GenerateMask(ctx context.Context, res *centerline.Result, radiusOverrideMm float64, geom volume.Geometry) (*volume.Mask, error) {
	return NewTracer(DefaultParams()).GenerateMask(ctx, res, radiusOverrideMm, geom)
}

// TraceCenterline runs the full pipeline from startPoint to endPoint.
//
// The steps are:
//  1. Validate inputs and map endpoints to voxels
//  2. Build the cost map
//  3. Search the minimum-cost 26-connected voxel path
//  4. Smooth the voxel centres with a Catmull-Rom spline
//  5. Estimate the radius at every smoothed point
//
// Returns:
//   - the traced centerline, or an *Error whose Kind is one of the Err* sentinels
func (t *Tracer) TraceCenterline(ctx context.Context, vol volume.Scalar, startPoint, endPoint r3.Vec) (*centerline.Result, error) {
	traceStart := time.Now()

	// Step 1: Validate everything before any stage runs
	start, end, err := t.validate(vol, startPoint, endPoint)
	if err != nil {
		return nil, err
	}
	geom := volume.GeometryOf(vol)
	if err := ctx.Err(); err != nil {
		return nil, newError(ErrCanceled, "trace", err)
	}

	// Step 2: Build the cost map
	stepStart := time.Now()
	cost, err := costmap.Build(vol, costmap.Options{
		BrightVessels: t.params.BrightVessels,
		Exponent:      t.params.CostExponent,
		Range:         t.params.IntensityRange,
	})
	if err != nil {
		return nil, newError(ErrInternal, "cost map", err)
	}
	t.log.Debug("Step 2: cost map built",
		"dims", []int{geom.Nx, geom.Ny, geom.Nz}, "elapsed", time.Since(stepStart))

	// Step 3: Search the shortest path
	stepStart = time.Now()
	searchOpts := pathsearch.Options{
		MaxIterations: t.params.MaxIterations,
		Barrier:       t.params.BarrierCost,
	}
	if t.params.SearchMarginMm > 0 {
		region := pathsearch.RegionAround(geom, start, end, t.params.SearchMarginMm)
		searchOpts.Region = &region
	}
	voxels, err := pathsearch.FindPath(ctx, cost, start, end, searchOpts)
	if err != nil {
		return nil, t.searchError(err)
	}
	t.log.Debug("Step 3: shortest path found",
		"voxels", len(voxels), "elapsed", time.Since(stepStart))

	// Step 4: Convert to physical space and smooth
	raw := make([]r3.Vec, len(voxels))
	for i, v := range voxels {
		raw[i] = geom.ToPhysical(v)
	}
	smoothed := curve.Dedup(curve.Smooth(raw, t.params.Subdivisions))
	tangents := curve.Tangents(smoothed)
	for i := range tangents {
		// A single-voxel path has no direction; use the volume z axis
		if tangents[i] == (r3.Vec{}) {
			tangents[i] = r3.Vec{Z: 1}
		}
	}
	t.log.Debug("Step 4: path smoothed", "points", len(smoothed))

	// Step 5: Estimate the radius profile
	if err := ctx.Err(); err != nil {
		return nil, newError(ErrCanceled, "trace", err)
	}
	stepStart = time.Now()
	radii, err := radius.Profile(vol, smoothed, tangents, radius.Options{
		Directions:  t.params.RadiusDirections,
		StepMm:      t.params.RadiusStepMm,
		MaxRadiusMm: t.params.MaxRadiusFactor * t.params.InitialRadiusMm,
	})
	if err != nil {
		return nil, newError(ErrInternal, "radius estimation", err)
	}
	t.log.Debug("Step 5: radius profile estimated", "elapsed", time.Since(stepStart))

	if err := checkFinite(smoothed, radii); err != nil {
		return nil, err
	}
	res, err := centerline.New(smoothed, radii)
	if err != nil {
		return nil, newError(ErrInternal, "result", err)
	}

	t.log.Info("centerline traced",
		"points", res.Len(), "lengthMm", res.TotalLength(), "elapsed", time.Since(traceStart))
	return res, nil
}

// GenerateMask rasterizes res into a binary tube over geom. A positive
// radiusOverrideMm replaces the radius profile; zero keeps it.
func (t *Tracer) GenerateMask(ctx context.Context, res *centerline.Result, radiusOverrideMm float64, geom volume.Geometry) (*volume.Mask, error) {
	if res == nil || res.Len() == 0 {
		return nil, newError(ErrInvalidInput, "validate", errors.New("centerline result is empty"))
	}
	if radiusOverrideMm < 0 || math.IsNaN(radiusOverrideMm) || math.IsInf(radiusOverrideMm, 0) {
		return nil, invalidParameter("radius override must be a non-negative finite value, got %g", radiusOverrideMm)
	}
	if err := geom.Validate(); err != nil {
		return nil, newError(ErrInvalidParameters, "validate", err)
	}

	stepStart := time.Now()
	m, err := mask.Rasterize(ctx, res.Points(), res.Radii(), geom, mask.Options{
		OverrideRadius: radiusOverrideMm,
		Workers:        t.params.NumCores,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError(ErrCanceled, "mask", err)
		}
		return nil, newError(ErrInternal, "mask", err)
	}

	t.log.Info("mask generated",
		"voxels", m.Count(), "volumeMm3", m.Volume(), "elapsed", time.Since(stepStart))
	return m, nil
}

// validate checks the volume, endpoints and parameters and returns the
// endpoint voxels.
func (t *Tracer) validate(vol volume.Scalar, startPoint, endPoint r3.Vec) (start, end volume.Index, err error) {
	if isNil(vol) {
		return start, end, newError(ErrInvalidInput, "validate", errors.New("volume is nil"))
	}
	geom := volume.GeometryOf(vol)
	if verr := geom.Validate(); verr != nil {
		return start, end, newError(ErrInvalidInput, "validate", verr)
	}

	p := t.params
	switch {
	case !(p.InitialRadiusMm > 0) || math.IsInf(p.InitialRadiusMm, 0):
		return start, end, invalidParameter("initial radius must be positive, got %g", p.InitialRadiusMm)
	case !(p.CostExponent > 0) || math.IsInf(p.CostExponent, 0):
		return start, end, invalidParameter("cost exponent must be positive, got %g", p.CostExponent)
	case !(p.MaxRadiusFactor > 0):
		return start, end, invalidParameter("max radius factor must be positive, got %g", p.MaxRadiusFactor)
	case p.Subdivisions < 0:
		return start, end, invalidParameter("subdivisions must be non-negative, got %d", p.Subdivisions)
	case p.MaxIterations < 0:
		return start, end, invalidParameter("max iterations must be non-negative, got %d", p.MaxIterations)
	case p.RadiusDirections != 0 && p.RadiusDirections < radius.MinDirections:
		return start, end, invalidParameter("radius directions must be at least %d, got %d", radius.MinDirections, p.RadiusDirections)
	case p.BarrierCost < 0:
		return start, end, invalidParameter("barrier cost must be non-negative, got %g", p.BarrierCost)
	case p.RadiusStepMm < 0:
		return start, end, invalidParameter("radius step must be non-negative, got %g", p.RadiusStepMm)
	case p.IntensityRange != nil && !(p.IntensityRange.Max > p.IntensityRange.Min):
		return start, end, invalidParameter("intensity range max (%g) must exceed min (%g)", p.IntensityRange.Max, p.IntensityRange.Min)
	}

	var ok bool
	if start, ok = geom.ToIndex(startPoint); !ok {
		return start, end, invalidParameter("start point %v is outside the volume", startPoint)
	}
	if end, ok = geom.ToIndex(endPoint); !ok {
		return start, end, invalidParameter("end point %v is outside the volume", endPoint)
	}
	return start, end, nil
}

func (t *Tracer) searchError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newError(ErrCanceled, "path search", err)
	case errors.Is(err, pathsearch.ErrNoPath):
		return newError(ErrNoPathFound, "path search", err)
	case errors.Is(err, pathsearch.ErrOutOfBounds):
		return newError(ErrInvalidParameters, "path search", err)
	default:
		return newError(ErrInternal, "path search", err)
	}
}

// isNil reports whether vol is nil, including a nil pointer held in the
// interface.
func isNil(vol volume.Scalar) bool {
	if vol == nil {
		return true
	}
	v := reflect.ValueOf(vol)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func checkFinite(points []r3.Vec, radii []float64) error {
	for i, p := range points {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return newError(ErrInternal, "smoothing", errors.New("non-finite centerline point"))
		}
		if !finite(radii[i]) {
			return newError(ErrInternal, "radius estimation", errors.New("non-finite radius"))
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
