package entities

// MapBlock is a fixed-size cell of the lat/long grid. The ID is assigned by
// the backend; Latitude and Longitude are the cell origin, the corner nearest
// to zero on both axes.
type MapBlock struct {
	ID        int     `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Origin returns the block origin as a Coordinate.
func (b MapBlock) Origin() Coordinate {
	return NewCoordinate(b.Latitude, b.Longitude)
}

// SyncState is the state of the overlay synchronizer after the last
// region-change-end event.
type SyncState string

const (
	SyncStateIdle     SyncState = "idle"
	SyncStateFetching SyncState = "fetching"
	SyncStateSynced   SyncState = "synced"
	SyncStateCleared  SyncState = "cleared"
)

// Overlay is one rendered map-block polygon. Overlays are created once per
// refresh generation and never reused by a later generation, so the lazily
// loaded car list cached on an overlay dies with it.
type Overlay struct {
	BlockID    int           `json:"blockId"`
	Block      MapBlock      `json:"block"`
	Polygon    [4]Coordinate `json:"polygon"`
	Generation uint64        `json:"generation"`

	cars   []CarSummary
	loaded bool
}

// NewOverlay creates an overlay for block with a precomputed polygon.
func NewOverlay(block MapBlock, polygon [4]Coordinate, generation uint64) *Overlay {
	return &Overlay{
		BlockID:    block.ID,
		Block:      block,
		Polygon:    polygon,
		Generation: generation,
	}
}

// CachedCars returns the cached car list and whether it has been loaded.
func (o *Overlay) CachedCars() ([]CarSummary, bool) {
	return o.cars, o.loaded
}

// CacheCars stores the car list for later selections of this overlay.
func (o *Overlay) CacheCars(cars []CarSummary) {
	o.cars = cars
	o.loaded = true
}
