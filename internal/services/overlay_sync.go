package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/singleflight"

	"manualsmap/internal/config"
	"manualsmap/internal/domain/entities"
	"manualsmap/internal/geo"
)

var (
	ErrOverlayNotFound = errors.New("map block overlay not found")
)

// MapWidget is the part of the map the synchronizer renders into.
type MapWidget interface {
	Region() entities.Region
	AddOverlays(overlays []*entities.Overlay)
	RemoveOverlays(overlays []*entities.Overlay)
}

// MapBlockSource is the backend as seen by the synchronizer.
type MapBlockSource interface {
	MapBlocks(ctx context.Context, box entities.BoundingBox) ([]entities.MapBlock, error)
	BlockCars(ctx context.Context, blockID int) ([]entities.CarSummary, error)
}

// CarDisplay shows the cars of the selected block.
type CarDisplay interface {
	ShowCars(blockID int, cars []entities.CarSummary)
	ClearCars()
}

// SyncResult describes what a region-change-end event did.
type SyncResult struct {
	State      entities.SyncState `json:"state"`
	Generation uint64             `json:"generation"`
	Overlays   int                `json:"overlays"`
	// Stale is set when a newer event started while this one was fetching.
	// Its result was discarded.
	Stale bool `json:"stale"`
}

// SelectResult describes what selecting an overlay did.
type SelectResult struct {
	BlockID int                   `json:"blockId"`
	Cars    []entities.CarSummary `json:"cars"`
	// Cached is set when the list came from the overlay without a request.
	Cached bool `json:"cached"`
	// Displayed is false when the overlay was deselected, or another one
	// selected, while its cars were being fetched.
	Displayed bool `json:"displayed"`
}

// OverlaySynchronizer keeps the rendered map-block overlays consistent with
// the viewport of one map.
//
// Every region-change-end event starts a new generation. A fetch remembers the
// generation it was issued in and its result is dropped if another event has
// started since, so the newest viewport always wins regardless of the order
// responses arrive in.
//
// Selection works the same way with its own counter: a car list that arrives
// after its overlay was deselected is cached on the overlay but not shown.
//
// Go Learning Note — Locks and I/O:
// mu guards the overlay set and is never held across a network call. The
// widget and display calls are made while holding it so that two events
// cannot interleave their remove/add pairs.
type OverlaySynchronizer struct {
	widget  MapWidget
	source  MapBlockSource
	display CarDisplay
	cfg     config.MapConfig
	index   *geo.OverlayIndex

	// carFetches collapses concurrent first selections of one overlay into a
	// single request.
	carFetches singleflight.Group

	mu          sync.Mutex
	state       entities.SyncState
	// settled is the last state that was not Fetching. A failed fetch falls
	// back to it even when an earlier fetch is still outstanding.
	settled     entities.SyncState
	generation  uint64
	overlays    []*entities.Overlay
	byID        map[int]*entities.Overlay
	selectToken uint64
	selected    *entities.Overlay
}

// NewOverlaySynchronizer wires a synchronizer to its map, backend and display.
func NewOverlaySynchronizer(widget MapWidget, source MapBlockSource, display CarDisplay, cfg config.MapConfig) *OverlaySynchronizer {
	return &OverlaySynchronizer{
		widget:  widget,
		source:  source,
		display: display,
		cfg:     cfg,
		index:   geo.NewOverlayIndex(),
		state:   entities.SyncStateIdle,
		settled: entities.SyncStateIdle,
		byID:    make(map[int]*entities.Overlay),
	}
}

// RegionChangeEnd refreshes the overlays for the widget's current region.
//
// When the region spans MaxSpan or more on either axis every overlay is
// removed and no request is made. Otherwise the blocks inside the region are
// fetched and replace the rendered set in full. A failed fetch leaves the
// previous overlays in place.
func (s *OverlaySynchronizer) RegionChangeEnd(ctx context.Context) (SyncResult, error) {
	region := s.widget.Region()

	s.mu.Lock()
	s.generation++
	gen := s.generation

	if region.ExceedsSpan(s.cfg.MaxSpan) {
		s.replaceLocked(nil)
		s.state = entities.SyncStateCleared
		s.settled = s.state
		s.mu.Unlock()
		log.Printf("[SYNC] Generation %d: span %.4fx%.4f exceeds %.2f, overlays cleared",
			gen, region.Span.LatitudeDelta, region.Span.LongitudeDelta, s.cfg.MaxSpan)
		return SyncResult{State: entities.SyncStateCleared, Generation: gen}, nil
	}

	s.state = entities.SyncStateFetching
	s.mu.Unlock()

	box := geo.BoundingRegion(region)
	blocks, err := s.source.MapBlocks(ctx, box)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		log.Printf("[SYNC] Generation %d superseded by %d, result discarded", gen, s.generation)
		return SyncResult{State: s.state, Generation: gen, Overlays: len(s.overlays), Stale: true}, nil
	}
	if err != nil {
		s.state = s.settled
		log.Printf("[SYNC] Generation %d: fetching map blocks failed: %v", gen, err)
		return SyncResult{State: s.state, Generation: gen, Overlays: len(s.overlays)},
			fmt.Errorf("fetch map blocks: %w", err)
	}

	overlays := make([]*entities.Overlay, 0, len(blocks))
	for _, block := range blocks {
		polygon, err := geo.BlockPolygon(block, s.cfg.BlockSize)
		if err != nil {
			log.Printf("[SYNC] Skipping block %d: %v", block.ID, err)
			continue
		}
		overlays = append(overlays, entities.NewOverlay(block, polygon, gen))
	}
	s.replaceLocked(overlays)
	s.state = entities.SyncStateSynced
	s.settled = s.state

	log.Printf("[SYNC] Generation %d: rendered %d map blocks", gen, len(overlays))
	return SyncResult{State: s.state, Generation: gen, Overlays: len(overlays)}, nil
}

// replaceLocked swaps the rendered set for overlays. The previous set is
// removed from the widget exactly once. s.mu must be held.
func (s *OverlaySynchronizer) replaceLocked(overlays []*entities.Overlay) {
	if len(s.overlays) > 0 {
		s.widget.RemoveOverlays(s.overlays)
	}
	if s.selected != nil {
		s.selected = nil
		s.selectToken++
		s.display.ClearCars()
	}

	byID := make(map[int]*entities.Overlay, len(overlays))
	for _, o := range overlays {
		byID[o.BlockID] = o
	}
	if err := s.index.Reset(overlays); err != nil {
		// Polygons come from BlockPolygon and are always finite.
		log.Printf("[SYNC] Indexing overlays failed: %v", err)
	}
	s.overlays = overlays
	s.byID = byID

	if len(overlays) > 0 {
		s.widget.AddOverlays(overlays)
	}
}

// Select shows the cars of a rendered block, fetching them on the first
// selection of its overlay and serving later selections from the overlay.
func (s *OverlaySynchronizer) Select(ctx context.Context, blockID int) (SelectResult, error) {
	s.mu.Lock()
	overlay, ok := s.byID[blockID]
	if !ok {
		s.mu.Unlock()
		return SelectResult{}, fmt.Errorf("select block %d: %w", blockID, ErrOverlayNotFound)
	}
	s.selectToken++
	token := s.selectToken
	s.selected = overlay

	if cars, loaded := overlay.CachedCars(); loaded {
		s.display.ShowCars(blockID, cars)
		s.mu.Unlock()
		return SelectResult{BlockID: blockID, Cars: cars, Cached: true, Displayed: true}, nil
	}
	s.mu.Unlock()

	// The fetch is shared by every caller waiting on key, so it must not be
	// cancelled with whichever caller happened to start it. The client timeout
	// still bounds it.
	key := fmt.Sprintf("%d/%d", overlay.Generation, blockID)
	fetchCtx := context.WithoutCancel(ctx)
	v, err, _ := s.carFetches.Do(key, func() (interface{}, error) {
		return s.source.BlockCars(fetchCtx, blockID)
	})
	if err != nil {
		log.Printf("[SYNC] Fetching cars of block %d failed: %v", blockID, err)
		return SelectResult{BlockID: blockID}, fmt.Errorf("fetch cars of block %d: %w", blockID, err)
	}
	cars, _ := v.([]entities.CarSummary)

	s.mu.Lock()
	defer s.mu.Unlock()

	overlay.CacheCars(cars)
	result := SelectResult{BlockID: blockID, Cars: cars}
	if token == s.selectToken && s.selected == overlay {
		s.display.ShowCars(blockID, cars)
		result.Displayed = true
	} else {
		log.Printf("[SYNC] Cars of block %d arrived after it was deselected", blockID)
	}
	return result, nil
}

// Deselect hides the displayed cars. An in-flight fetch for the block is left
// to complete but its result will not be shown.
func (s *OverlaySynchronizer) Deselect(blockID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[blockID]; !ok {
		return fmt.Errorf("deselect block %d: %w", blockID, ErrOverlayNotFound)
	}
	s.selectToken++
	s.selected = nil
	s.display.ClearCars()
	return nil
}

// SelectAt selects the overlay containing c.
func (s *OverlaySynchronizer) SelectAt(ctx context.Context, c entities.Coordinate) (SelectResult, error) {
	ids := s.index.At(c)
	if len(ids) == 0 {
		return SelectResult{}, fmt.Errorf("select at %s: %w", c, ErrOverlayNotFound)
	}
	return s.Select(ctx, ids[0])
}

// Overlays returns the rendered overlay set.
func (s *OverlaySynchronizer) Overlays() []*entities.Overlay {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entities.Overlay(nil), s.overlays...)
}

// Selected returns the ID of the selected block, if any.
func (s *OverlaySynchronizer) Selected() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return 0, false
	}
	return s.selected.BlockID, true
}

// State returns the state after the last region-change-end event.
func (s *OverlaySynchronizer) State() entities.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Generation returns the number of region-change-end events handled.
func (s *OverlaySynchronizer) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}
