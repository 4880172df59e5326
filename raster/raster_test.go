package raster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructFromBounds(t *testing.T) {
	nd := -9999.0
	bounds := BoundingBox{Left: 0, Bottom: 0, Right: 10, Top: 5}
	r, err := Construct(make([]float64, 5*10), 5, 10, Float64, Options{
		NoData: &nd,
		Bounds: &bounds,
	})
	require.NoError(t, err)

	tr, ok := r.Transform()
	require.True(t, ok)
	assert.Equal(t, 1.0, tr.DX)
	assert.Equal(t, -1.0, tr.DY)
	assert.Equal(t, 0.0, tr.Left)
	assert.Equal(t, 5.0, tr.Top)
}

func TestConstructRejectsBothTransformAndBounds(t *testing.T) {
	bounds := BoundingBox{Left: 0, Bottom: 0, Right: 1, Top: 1}
	transform := Transform{DX: 1, DY: -1, Left: 0, Top: 1}
	_, err := Construct(make([]float64, 1), 1, 1, Float64, Options{
		Bounds:    &bounds,
		Transform: &transform,
	})
	require.Error(t, err)
}

func TestValueConvertsNoDataToNaN(t *testing.T) {
	nd := -1.0
	r, err := Construct([]float64{1, -1, 3, 4}, 2, 2, Float64, Options{NoData: &nd})
	require.NoError(t, err)

	assert.Equal(t, 1.0, r.Value(0, 0))
	assert.True(t, math.IsNaN(r.Value(0, 1)))
	assert.Equal(t, 3.0, r.Value(1, 0))
}

func TestSubsetShiftsTransform(t *testing.T) {
	transform := Transform{DX: 2, DY: -2, Left: 0, Top: 10}
	r, err := Construct(make([]float64, 5*5), 5, 5, Float64, Options{Transform: &transform})
	require.NoError(t, err)

	sub, err := r.Subset(1, 3, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Height())
	assert.Equal(t, 2, sub.Width())

	tr, _ := sub.Transform()
	x, y := tr.XY(0, 0)
	wantX, wantY := transform.XY(1, 1)
	assert.Equal(t, wantX, x)
	assert.Equal(t, wantY, y)
}

func TestBufferRequiresNoData(t *testing.T) {
	transform := Transform{DX: 1, DY: -1, Left: 0, Top: 0}
	r, err := Construct(make([]float64, 4), 2, 2, Float64, Options{Transform: &transform})
	require.NoError(t, err)

	_, err = r.Buffer(Sides{Left: 1, Right: 1, Top: 1, Bottom: 1}, UnitPixels)
	require.Error(t, err)
}

func TestBufferPadsWithNoData(t *testing.T) {
	nd := 0.0
	transform := Transform{DX: 1, DY: -1, Left: 0, Top: 2}
	r, err := Construct([]float64{1, 2, 3, 4}, 2, 2, Float64, Options{NoData: &nd, Transform: &transform})
	require.NoError(t, err)

	buffered, err := r.Buffer(Sides{Left: 1, Right: 1, Top: 1, Bottom: 1}, UnitPixels)
	require.NoError(t, err)
	assert.Equal(t, 4, buffered.Height())
	assert.Equal(t, 4, buffered.Width())
	assert.Equal(t, 1.0, buffered.At(1, 1))
	assert.Equal(t, 0.0, buffered.At(0, 0))
}

func TestCastingDefaultSafeRejectsOutOfRangeNoData(t *testing.T) {
	nd := 1000.0
	_, err := Construct(make([]float64, 4), 2, 2, Int8, Options{NoData: &nd})
	require.Error(t, err)
}

func TestCastingSafeAcceptsInRangeWholeNumber(t *testing.T) {
	nd := -1.0
	r, err := Construct(make([]float64, 4), 2, 2, Int8, Options{NoData: &nd})
	require.NoError(t, err)
	got, ok := r.NoData()
	require.True(t, ok)
	assert.Equal(t, -1.0, got)
}

func TestCastingSafeRejectsFractionalNoDataOnIntegerDType(t *testing.T) {
	nd := 1.5
	_, err := Construct(make([]float64, 4), 2, 2, Int32, Options{NoData: &nd})
	require.Error(t, err)
}

func TestCastingUnsafeAllowsAnyValue(t *testing.T) {
	nd := 1000.0
	_, err := Construct(make([]float64, 4), 2, 2, Int8, Options{NoData: &nd, Casting: CastUnsafe})
	require.NoError(t, err)
}

func TestOverrideEnforcesCastingToo(t *testing.T) {
	r, err := Construct(make([]float64, 4), 2, 2, Int8, Options{})
	require.NoError(t, err)
	nd := 1000.0
	err = r.Override(Options{NoData: &nd})
	require.Error(t, err)
}

func TestRequireMatchDetectsShapeMismatch(t *testing.T) {
	r, err := Construct(make([]float64, 4), 2, 2, Float64, Options{})
	require.NoError(t, err)
	other, err := Construct(make([]float64, 6), 2, 3, Float64, Options{})
	require.NoError(t, err)
	assert.Error(t, r.RequireMatch(other, "other"))
}

func TestRequireMatchAllowsNilOther(t *testing.T) {
	r, err := Construct(make([]float64, 4), 2, 2, Float64, Options{})
	require.NoError(t, err)
	assert.NoError(t, r.RequireMatch(nil, "other"))
}

func TestIsGeographicByEPSGCode(t *testing.T) {
	assert.True(t, CRS{EPSG: 4326}.IsGeographic())
	assert.False(t, CRS{EPSG: 3857}.IsGeographic())
}

func TestIsGeographicByWKT(t *testing.T) {
	assert.True(t, CRS{WKT: `GEOGCS["WGS 84"]`}.IsGeographic())
	assert.False(t, CRS{WKT: `PROJCS["WGS 84 / UTM zone 10N"]`}.IsGeographic())
}

func TestBoundsRoundTrip(t *testing.T) {
	bounds := BoundingBox{Left: 100, Bottom: 0, Right: 200, Top: 50}
	r, err := Construct(make([]float64, 5*10), 5, 10, Float64, Options{Bounds: &bounds})
	require.NoError(t, err)

	got, err := r.Bounds()
	require.NoError(t, err)
	assert.InDelta(t, bounds.Left, got.Left, 1e-9)
	assert.InDelta(t, bounds.Right, got.Right, 1e-9)
	assert.InDelta(t, bounds.Top, got.Top, 1e-9)
	assert.InDelta(t, bounds.Bottom, got.Bottom, 1e-9)
}
