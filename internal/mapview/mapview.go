// Package mapview is the server-side model of one browser map: the visible
// region and what is drawn on it. It implements the widget interfaces the
// services render into and exports the drawing as GeoJSON for the browser.
package mapview

import (
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"manualsmap/internal/callout"
	"manualsmap/internal/domain/entities"
)

var ErrInvalidRegion = errors.New("region must have a finite center and a positive span")

// OverlayStyle is the drawing style of map-block polygons.
var OverlayStyle = map[string]interface{}{
	"fillColor":     "#007bff",
	"fillOpacity":   0.3,
	"strokeColor":   "#ff0000",
	"strokeOpacity": 0.5,
	"lineWidth":     1,
	"lineJoin":      "round",
	"lineDash":      []int{2, 2, 6, 2, 6, 2},
}

// Stats counts widget calls. InvalidRemovals counts overlays removed while
// not rendered, which a correct caller never does.
type Stats struct {
	OverlaysAdded   int `json:"overlaysAdded"`
	OverlaysRemoved int `json:"overlaysRemoved"`
	InvalidRemovals int `json:"invalidRemovals"`
	Annotations     int `json:"annotations"`
}

type annotationEntry struct {
	annotation *entities.Annotation
	callout    callout.Callout
}

// AnnotationView is an annotation with its rendered callout.
type AnnotationView struct {
	Annotation entities.Annotation `json:"annotation"`
	Callout    *callout.Spec       `json:"callout,omitempty"`
}

// MapView holds the state of one map.
type MapView struct {
	mu          sync.RWMutex
	region      entities.Region
	overlays    []*entities.Overlay
	rendered    map[*entities.Overlay]int // overlay -> position in overlays
	annotations map[string]annotationEntry
	stats       Stats
}

// New creates a map showing region.
func New(region entities.Region) *MapView {
	return &MapView{
		region:      region,
		rendered:    make(map[*entities.Overlay]int),
		annotations: make(map[string]annotationEntry),
	}
}

// SetRegion moves the viewport. It does not refresh overlays by itself; the
// caller reports the region-change-end to the synchronizer.
func (m *MapView) SetRegion(r entities.Region) error {
	for _, v := range []float64{r.Center.Latitude, r.Center.Longitude, r.Span.LatitudeDelta, r.Span.LongitudeDelta} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidRegion
		}
	}
	if r.Span.LatitudeDelta <= 0 || r.Span.LongitudeDelta <= 0 {
		return ErrInvalidRegion
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.region = r
	return nil
}

func (m *MapView) Region() entities.Region {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.region
}

func (m *MapView) AddOverlays(overlays []*entities.Overlay) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range overlays {
		if _, exists := m.rendered[o]; exists {
			continue
		}
		m.rendered[o] = len(m.overlays)
		m.overlays = append(m.overlays, o)
		m.stats.OverlaysAdded++
	}
}

func (m *MapView) RemoveOverlays(overlays []*entities.Overlay) {
	m.mu.Lock()
	defer m.mu.Unlock()

	remove := make(map[*entities.Overlay]bool, len(overlays))
	for _, o := range overlays {
		if _, exists := m.rendered[o]; !exists || remove[o] {
			m.stats.InvalidRemovals++
			continue
		}
		remove[o] = true
		m.stats.OverlaysRemoved++
	}
	if len(remove) == 0 {
		return
	}

	kept := m.overlays[:0]
	for _, o := range m.overlays {
		if remove[o] {
			delete(m.rendered, o)
			continue
		}
		m.rendered[o] = len(kept)
		kept = append(kept, o)
	}
	// Clear the tail so removed overlays can be collected.
	for i := len(kept); i < len(m.overlays); i++ {
		m.overlays[i] = nil
	}
	m.overlays = kept
}

func (m *MapView) AddAnnotation(a *entities.Annotation, c callout.Callout) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.annotations[a.ID] = annotationEntry{annotation: a, callout: c}
	m.stats.Annotations = len(m.annotations)
}

func (m *MapView) RemoveAnnotation(a *entities.Annotation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.annotations, a.ID)
	m.stats.Annotations = len(m.annotations)
}

// Overlays returns the rendered overlays in drawing order.
func (m *MapView) Overlays() []*entities.Overlay {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*entities.Overlay(nil), m.overlays...)
}

// Annotations returns the annotations sorted by ID, with their callouts
// rendered.
func (m *MapView) Annotations() ([]AnnotationView, error) {
	m.mu.RLock()
	entries := make([]annotationEntry, 0, len(m.annotations))
	for _, e := range m.annotations {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].annotation.ID < entries[j].annotation.ID
	})
	views := make([]AnnotationView, 0, len(entries))
	for _, e := range entries {
		view := AnnotationView{Annotation: *e.annotation}
		if e.callout != nil {
			spec, err := callout.Render(e.callout, e.annotation)
			if err != nil {
				return nil, err
			}
			view.Callout = &spec
		}
		views = append(views, view)
	}
	return views, nil
}

func (m *MapView) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// FeatureCollection exports the rendered overlays as closed GeoJSON polygons
// and the annotations as points. Block overlays carry their block ID and
// generation; the add-car preview has block ID 0.
//
// Go Learning Note — "github.com/paulmach/orb":
// orb geometries are plain slices of [lon, lat] points, so a polygon ring is
// built by listing the corners and repeating the first one to close it.
func (m *MapView) FeatureCollection() *geojson.FeatureCollection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fc := geojson.NewFeatureCollection()
	for _, o := range m.overlays {
		ring := make(orb.Ring, 0, len(o.Polygon)+1)
		for _, c := range o.Polygon {
			ring = append(ring, orb.Point{c.Longitude, c.Latitude})
		}
		ring = append(ring, ring[0])

		f := geojson.NewFeature(orb.Polygon{ring})
		f.Properties["kind"] = "map_block"
		f.Properties["blockId"] = o.BlockID
		f.Properties["generation"] = o.Generation
		f.Properties["style"] = OverlayStyle
		fc.Append(f)
	}

	ids := make([]string, 0, len(m.annotations))
	for id := range m.annotations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a := m.annotations[id].annotation
		f := geojson.NewFeature(orb.Point{a.Coordinate.Longitude, a.Coordinate.Latitude})
		f.ID = a.ID
		f.Properties["kind"] = string(a.Kind)
		f.Properties["title"] = a.Title
		f.Properties["draggable"] = a.Draggable
		if a.Color != "" {
			f.Properties["color"] = a.Color
		}
		fc.Append(f)
	}
	return fc
}
