// Package entities defines the domain models shared by the map controller:
// coordinates and viewports, map blocks and their rendered overlays, cars,
// and point annotations. They carry no dependencies on HTTP, the backend
// client, or the map widget.
package entities

import "fmt"

// Coordinate is a WGS84 latitude/longitude pair. Ranges are not enforced.
//
// Go Learning Note — Value Types:
// Coordinate is 16 bytes and never mutated in place, so it is passed and
// returned by value everywhere. Larger, shared objects such as Overlay are
// handled through pointers instead.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewCoordinate creates a Coordinate from latitude and longitude.
func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{
		Latitude:  lat,
		Longitude: lon,
	}
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Latitude, c.Longitude)
}

// Span is the angular size of a viewport.
type Span struct {
	LatitudeDelta  float64 `json:"latitudeDelta"`
	LongitudeDelta float64 `json:"longitudeDelta"`
}

// Region is the visible map area: a center plus a span. It is owned by the
// map widget and read-only to the controller.
type Region struct {
	Center Coordinate `json:"center"`
	Span   Span       `json:"span"`
}

// NewRegion creates a Region centered on (lat, lon).
func NewRegion(lat, lon, latDelta, lonDelta float64) Region {
	return Region{
		Center: NewCoordinate(lat, lon),
		Span: Span{
			LatitudeDelta:  latDelta,
			LongitudeDelta: lonDelta,
		},
	}
}

// ExceedsSpan reports whether either axis of the region is at least maxSpan.
func (r Region) ExceedsSpan(maxSpan float64) bool {
	return r.Span.LatitudeDelta >= maxSpan || r.Span.LongitudeDelta >= maxSpan
}

// BoundingBox is a region expressed as its south/west/north/east extents.
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Contains reports whether c lies inside the box, edges included.
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Latitude >= b.South && c.Latitude <= b.North &&
		c.Longitude >= b.West && c.Longitude <= b.East
}
