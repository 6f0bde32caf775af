package geo

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"

	"manualsmap/internal/domain/entities"
)

const (
	dimensions  = 2
	minChildren = 4
	maxChildren = 16
	// pointTolerance is the half-size of the rectangle a hit-test point is
	// expanded to, since rtreego rejects zero-length rectangles.
	pointTolerance = 1e-9
)

// indexedOverlay adapts an overlay polygon to rtreego.Spatial.
type indexedOverlay struct {
	blockID int
	box     entities.BoundingBox
	rect    rtreego.Rect
}

func (o *indexedOverlay) Bounds() rtreego.Rect {
	return o.rect
}

// OverlayIndex is an R-tree over the polygons of the rendered overlay set.
// It answers "which block did the user tap" without scanning every overlay.
// The index is rebuilt wholesale on every refresh, mirroring the full-replace
// semantics of the overlay set.
type OverlayIndex struct {
	mu     sync.RWMutex
	tree   *rtreego.Rtree
	blocks map[int]*indexedOverlay // blockID -> indexed polygon
}

// NewOverlayIndex creates an empty index.
func NewOverlayIndex() *OverlayIndex {
	return &OverlayIndex{
		tree:   rtreego.NewTree(dimensions, minChildren, maxChildren),
		blocks: make(map[int]*indexedOverlay),
	}
}

// polygonBox returns the axis-aligned extent of a cell polygon regardless of
// which direction its offsets point.
func polygonBox(polygon [4]entities.Coordinate) entities.BoundingBox {
	box := entities.BoundingBox{
		South: math.Inf(1),
		West:  math.Inf(1),
		North: math.Inf(-1),
		East:  math.Inf(-1),
	}
	for _, c := range polygon {
		box.South = math.Min(box.South, c.Latitude)
		box.North = math.Max(box.North, c.Latitude)
		box.West = math.Min(box.West, c.Longitude)
		box.East = math.Max(box.East, c.Longitude)
	}
	return box
}

// Reset replaces the whole index with the given overlays.
func (x *OverlayIndex) Reset(overlays []*entities.Overlay) error {
	tree := rtreego.NewTree(dimensions, minChildren, maxChildren)
	blocks := make(map[int]*indexedOverlay, len(overlays))

	for _, o := range overlays {
		item, err := newIndexedOverlay(o)
		if err != nil {
			return err
		}
		tree.Insert(item)
		blocks[o.BlockID] = item
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.tree = tree
	x.blocks = blocks
	return nil
}

// Insert adds one overlay, replacing any earlier entry for the same block.
func (x *OverlayIndex) Insert(o *entities.Overlay) error {
	item, err := newIndexedOverlay(o)
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if old, exists := x.blocks[o.BlockID]; exists {
		x.tree.Delete(old)
	}
	x.tree.Insert(item)
	x.blocks[o.BlockID] = item
	return nil
}

func newIndexedOverlay(o *entities.Overlay) (*indexedOverlay, error) {
	box := polygonBox(o.Polygon)
	rect, err := rtreego.NewRect(
		rtreego.Point{box.South, box.West},
		[]float64{
			math.Max(box.North-box.South, pointTolerance),
			math.Max(box.East-box.West, pointTolerance),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("index overlay for block %d: %w", o.BlockID, err)
	}
	return &indexedOverlay{blockID: o.BlockID, box: box, rect: rect}, nil
}

// At returns the IDs of the blocks whose polygon contains c, in ascending
// order. Polygons of adjacent cells never overlap, so at most one ID is
// expected in practice.
func (x *OverlayIndex) At(c entities.Coordinate) []int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	query := rtreego.Point{c.Latitude, c.Longitude}.ToRect(pointTolerance)
	var ids []int
	for _, result := range x.tree.SearchIntersect(query) {
		item, ok := result.(*indexedOverlay)
		if !ok {
			continue
		}
		if item.box.Contains(c) {
			ids = append(ids, item.blockID)
		}
	}
	sort.Ints(ids)
	return ids
}

// Count returns the number of indexed overlays.
func (x *OverlayIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.blocks)
}
