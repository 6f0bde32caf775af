package geo

import (
	"github.com/golang/geo/s2"

	"manualsmap/internal/domain/entities"
)

// BoundingRegion converts a center+span viewport into its bounding box.
// Latitudes are clamped to [-90, 90]; a longitude span of 360 degrees or more
// yields the full [-180, 180] range.
//
// Go Learning Note — "github.com/golang/geo/s2":
// s2.Rect is a latitude/longitude rectangle whose longitude interval may wrap
// across the antimeridian. s2.RectFromCenterSize builds it from a center and a
// full size, exactly the shape a map region is described in.
func BoundingRegion(r entities.Region) entities.BoundingBox {
	rect := RegionRect(r)
	lo, hi := rect.Lo(), rect.Hi()
	return entities.BoundingBox{
		South: lo.Lat.Degrees(),
		West:  lo.Lng.Degrees(),
		North: hi.Lat.Degrees(),
		East:  hi.Lng.Degrees(),
	}
}

// RegionRect returns the viewport as an s2.Rect.
func RegionRect(r entities.Region) s2.Rect {
	center := s2.LatLngFromDegrees(r.Center.Latitude, r.Center.Longitude)
	size := s2.LatLngFromDegrees(r.Span.LatitudeDelta, r.Span.LongitudeDelta)
	return s2.RectFromCenterSize(center, size)
}

// RegionContains reports whether the viewport contains c, taking
// antimeridian wrapping into account.
func RegionContains(r entities.Region, c entities.Coordinate) bool {
	return RegionRect(r).ContainsLatLng(s2.LatLngFromDegrees(c.Latitude, c.Longitude))
}
