package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manualsmap/internal/domain/entities"
)

func TestSegmentCoordinate(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		cellSize float64
		want     float64
	}{
		{
			name:     "segments to 0.05 degrees",
			value:    123.45678,
			cellSize: 0.05,
			want:     123.45,
		},
		{
			name:     "already segmented stays the same",
			value:    123.45,
			cellSize: 0.05,
			want:     123.45,
		},
		{
			name:     "slightly below a segment is truncated",
			value:    123.449999,
			cellSize: 0.05,
			want:     123.4,
		},
		{
			name:     "negative slightly below a segment truncates toward zero",
			value:    -123.449999,
			cellSize: 0.05,
			want:     -123.4,
		},
		{
			name:     "hundredth cells",
			value:    47.6249008,
			cellSize: 0.01,
			want:     47.62,
		},
		{
			name:     "negative hundredth cells",
			value:    -122.3469808,
			cellSize: 0.01,
			want:     -122.34,
		},
		{
			name:     "zero",
			value:    0,
			cellSize: 0.01,
			want:     0,
		},
		{
			name:     "small negative falls in the origin cell",
			value:    -0.004,
			cellSize: 0.01,
			want:     0,
		},
		{
			name:     "larger cells are truncated to two digits",
			value:    10.987,
			cellSize: 0.25,
			want:     10.75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SegmentCoordinate(tt.value, tt.cellSize)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSegmentCoordinate_Rejects(t *testing.T) {
	_, err := SegmentCoordinate(math.NaN(), 0.01)
	assert.ErrorIs(t, err, ErrNonFiniteCoordinate)

	_, err = SegmentCoordinate(math.Inf(-1), 0.01)
	assert.ErrorIs(t, err, ErrNonFiniteCoordinate)

	_, err = SegmentCoordinate(47.6, 0)
	assert.ErrorIs(t, err, ErrInvalidCellSize)

	_, err = SegmentCoordinate(47.6, -0.01)
	assert.ErrorIs(t, err, ErrInvalidCellSize)

	_, err = SegmentCoordinate(47.6, math.NaN())
	assert.ErrorIs(t, err, ErrInvalidCellSize)
}

func TestCheckCellSize(t *testing.T) {
	tests := []struct {
		size  float64
		valid bool
	}{
		{0.01, true},
		{0.05, true},
		{0.25, true},
		{1, true},
		{0.007, false},
		{0.003, false},
		{0.015, false},
		{0, false},
		{-0.05, false},
		{math.Inf(1), false},
	}
	for _, tt := range tests {
		err := CheckCellSize(tt.size)
		if tt.valid {
			assert.NoError(t, err, "size %v", tt.size)
		} else {
			assert.ErrorIs(t, err, ErrInvalidCellSize, "size %v", tt.size)
		}
	}

	// 0.007 would segment 0.015 to 0.01 and 0.01 again to 0.
	_, err := SegmentCoordinate(0.015, 0.007)
	assert.ErrorIs(t, err, ErrInvalidCellSize)
}

func sampleValues() []float64 {
	values := []float64{0, 0.004, -0.004, 0.01, -0.01, 1, -1, 89.999, -89.999, 179.9999, -179.9999}
	for i := 0; i < 200; i++ {
		// Deterministic spread over the whole coordinate range.
		v := math.Mod(float64(i)*7.31731, 360) - 180
		values = append(values, v, v/3)
	}
	return values
}

func TestSegmentCoordinate_Idempotent(t *testing.T) {
	for _, size := range []float64{0.01, 0.05, 0.25, 1} {
		for _, v := range sampleValues() {
			once, err := SegmentCoordinate(v, size)
			require.NoError(t, err)
			twice, err := SegmentCoordinate(once, size)
			require.NoError(t, err)
			assert.Equal(t, once, twice, "value %v size %v", v, size)
		}
	}
}

func TestSegmentCoordinate_RoundsTowardZero(t *testing.T) {
	for _, size := range []float64{0.01, 0.05, 0.25} {
		for _, v := range sampleValues() {
			got, err := SegmentCoordinate(v, size)
			require.NoError(t, err)
			assert.LessOrEqual(t, math.Abs(got), math.Abs(v), "value %v size %v", v, size)
			if got != 0 {
				assert.Equal(t, math.Signbit(v), math.Signbit(got), "value %v size %v", v, size)
			}
		}
	}
}

func TestCellKey(t *testing.T) {
	key, err := CellKey(entities.NewCoordinate(47.6249008, -122.3469808), 0.01)
	require.NoError(t, err)
	assert.Equal(t, "47.62,-122.34", key)

	key, err = CellKey(entities.NewCoordinate(-33.8688, 151.2093), 0.05)
	require.NoError(t, err)
	assert.Equal(t, "-33.85,151.20", key)

	_, err = CellKey(entities.NewCoordinate(math.NaN(), 0), 0.01)
	assert.ErrorIs(t, err, ErrNonFiniteCoordinate)
}

func TestCellPolygon(t *testing.T) {
	polygon, err := CellPolygon(entities.NewCoordinate(47.62, -122.34), 0.01)
	require.NoError(t, err)

	const delta = 1e-9
	assert.InDelta(t, 47.62, polygon[0].Latitude, delta)
	assert.InDelta(t, -122.34, polygon[0].Longitude, delta)
	assert.InDelta(t, 47.62, polygon[1].Latitude, delta)
	assert.InDelta(t, -122.34999, polygon[1].Longitude, delta)
	assert.InDelta(t, 47.62999, polygon[2].Latitude, delta)
	assert.InDelta(t, -122.34999, polygon[2].Longitude, delta)
	assert.InDelta(t, 47.62999, polygon[3].Latitude, delta)
	assert.InDelta(t, -122.34, polygon[3].Longitude, delta)
}

func TestCellPolygon_OffsetsFollowOriginSign(t *testing.T) {
	origins := []entities.Coordinate{
		entities.NewCoordinate(47.62, -122.34),
		entities.NewCoordinate(-33.85, 151.2),
		entities.NewCoordinate(-0.01, -0.01),
		entities.NewCoordinate(0, 0),
		entities.NewCoordinate(0, -17.5),
	}
	for _, origin := range origins {
		polygon, err := CellPolygon(origin, 0.01)
		require.NoError(t, err)

		for _, corner := range polygon {
			dLat := corner.Latitude - origin.Latitude
			dLon := corner.Longitude - origin.Longitude
			if dLat != 0 {
				assert.Equal(t, origin.Latitude < 0, dLat < 0, "origin %v corner %v", origin, corner)
			}
			if dLon != 0 {
				assert.Equal(t, origin.Longitude < 0, dLon < 0, "origin %v corner %v", origin, corner)
			}
		}
	}
}

func TestCellPolygon_CoversSegmentedCoordinate(t *testing.T) {
	for _, c := range []entities.Coordinate{
		entities.NewCoordinate(47.6249008, -122.3469808),
		entities.NewCoordinate(-33.8688, 151.2093),
		entities.NewCoordinate(-0.5051, 0.0049),
	} {
		origin, err := CellOrigin(c, 0.01)
		require.NoError(t, err)
		polygon, err := CellPolygon(origin, 0.01)
		require.NoError(t, err)
		assert.True(t, polygonBox(polygon).Contains(c), "cell of %v should contain it", c)
	}
}

func TestCellPolygon_Rejects(t *testing.T) {
	_, err := CellPolygon(entities.NewCoordinate(math.Inf(1), 0), 0.01)
	assert.ErrorIs(t, err, ErrNonFiniteCoordinate)

	_, err = CellPolygon(entities.NewCoordinate(1, 1), 0)
	assert.ErrorIs(t, err, ErrInvalidCellSize)
}
