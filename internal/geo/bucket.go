// Package geo implements the map-block bucketing scheme: coordinates are
// truncated toward zero onto a fixed-size grid, and every grid cell is drawn
// as a rectangle extending away from zero. It also converts viewports to
// bounding boxes and indexes rendered overlays for hit-testing.
//
// A cell is anchored at its origin, the corner closest to the equator and the
// prime meridian. Truncation toward zero always moves a coordinate onto that
// origin, so the cell polygon has to grow away from zero to cover it again:
//
//	origin (47.62, -122.34), size 0.01
//	  -> lat in [47.62, 47.62999], lon in [-122.34999, -122.34]
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"manualsmap/internal/domain/entities"
)

// CellEpsilon is subtracted from the cell size when drawing a cell so
// adjacent polygons do not overlap on screen.
const CellEpsilon = 0.00001

// keyDigits is the number of decimal digits kept on cell origins.
const keyDigits = 2

var (
	ErrNonFiniteCoordinate = errors.New("coordinate is NaN or infinite")
	ErrInvalidCellSize     = errors.New("cell size must be a positive multiple of 0.01")
)

// gridStep is the finest cell edge. Cell sizes must be whole multiples of it,
// otherwise truncating origins to keyDigits moves them off the cell grid and
// segmenting an origin again lands in a different cell.
var gridStep = decimal.New(1, -keyDigits)

// CheckCellSize reports whether cellSize can be used as a map block size.
func CheckCellSize(cellSize float64) error {
	if math.IsNaN(cellSize) || math.IsInf(cellSize, 0) || cellSize <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidCellSize, cellSize)
	}
	if !decimal.NewFromFloat(cellSize).Mod(gridStep).IsZero() {
		return fmt.Errorf("%w: %v", ErrInvalidCellSize, cellSize)
	}
	return nil
}

func checkFinite(values ...float64) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %v", ErrNonFiniteCoordinate, v)
		}
	}
	return nil
}

// SegmentCoordinate snaps value onto the cell grid: it divides by cellSize,
// truncates toward zero to a whole cell index, multiplies back and truncates
// the result to two decimal digits. The arithmetic is done in decimal so the
// result is free of binary floating-point drift.
//
// Go Learning Note — "github.com/shopspring/decimal":
// decimal.Decimal stores an arbitrary-precision integer plus an exponent, so
// 123.45 is represented exactly. float64 cannot represent 0.05 exactly, which
// makes float division land on 2468.9999999 instead of 2469 for some inputs.
func SegmentCoordinate(value, cellSize float64) (float64, error) {
	if err := checkFinite(value); err != nil {
		return 0, err
	}
	if err := CheckCellSize(cellSize); err != nil {
		return 0, err
	}

	size := decimal.NewFromFloat(cellSize)
	segmented := decimal.NewFromFloat(value).
		Div(size).
		Truncate(0).
		Mul(size).
		Truncate(keyDigits)
	return segmented.InexactFloat64(), nil
}

// CellOrigin returns the origin of the cell containing c.
func CellOrigin(c entities.Coordinate, cellSize float64) (entities.Coordinate, error) {
	lat, err := SegmentCoordinate(c.Latitude, cellSize)
	if err != nil {
		return entities.Coordinate{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := SegmentCoordinate(c.Longitude, cellSize)
	if err != nil {
		return entities.Coordinate{}, fmt.Errorf("longitude: %w", err)
	}
	return entities.NewCoordinate(lat, lon), nil
}

// CellKey returns the deterministic key of the cell containing c, formatted
// as "lat,lon" with two fixed decimals, e.g. "47.62,-122.34".
func CellKey(c entities.Coordinate, cellSize float64) (string, error) {
	origin, err := CellOrigin(c, cellSize)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%.*f,%.*f", keyDigits, origin.Latitude, keyDigits, origin.Longitude), nil
}

// awayFromZero returns +1 for zero and positive values and -1 otherwise.
func awayFromZero(v float64) float64 {
	if math.Signbit(v) && v != 0 {
		return -1
	}
	return 1
}

// CellPolygon returns the four corners of the cell anchored at origin:
//
//	(lat, lon) (lat, lon+dLon) (lat+dLat, lon+dLon) (lat+dLat, lon)
//
// where each offset is cellSize-CellEpsilon signed like its origin axis, zero
// counting as positive.
func CellPolygon(origin entities.Coordinate, cellSize float64) ([4]entities.Coordinate, error) {
	if err := checkFinite(origin.Latitude, origin.Longitude); err != nil {
		return [4]entities.Coordinate{}, err
	}
	if err := CheckCellSize(cellSize); err != nil {
		return [4]entities.Coordinate{}, err
	}

	extent := cellSize - CellEpsilon
	if extent <= 0 {
		extent = cellSize
	}
	lat, lon := origin.Latitude, origin.Longitude
	dLat := extent * awayFromZero(lat)
	dLon := extent * awayFromZero(lon)

	return [4]entities.Coordinate{
		entities.NewCoordinate(lat, lon),
		entities.NewCoordinate(lat, lon+dLon),
		entities.NewCoordinate(lat+dLat, lon+dLon),
		entities.NewCoordinate(lat+dLat, lon),
	}, nil
}

// BlockPolygon is CellPolygon for a backend map block.
func BlockPolygon(block entities.MapBlock, cellSize float64) ([4]entities.Coordinate, error) {
	return CellPolygon(block.Origin(), cellSize)
}
