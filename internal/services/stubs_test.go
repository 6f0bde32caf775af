package services

import (
	"context"
	"sync"

	"manualsmap/internal/backend"
	"manualsmap/internal/callout"
	"manualsmap/internal/config"
	"manualsmap/internal/domain/entities"
)

// stubWidget records what was rendered and how often each overlay was removed.
type stubWidget struct {
	mu          sync.Mutex
	region      entities.Region
	rendered    map[*entities.Overlay]bool
	removed     map[*entities.Overlay]int
	annotations map[string]*entities.Annotation
	callouts    map[string]callout.Callout
}

func newStubWidget(region entities.Region) *stubWidget {
	return &stubWidget{
		region:      region,
		rendered:    make(map[*entities.Overlay]bool),
		removed:     make(map[*entities.Overlay]int),
		annotations: make(map[string]*entities.Annotation),
		callouts:    make(map[string]callout.Callout),
	}
}

func (w *stubWidget) SetRegion(r entities.Region) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.region = r
}

func (w *stubWidget) Region() entities.Region {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.region
}

func (w *stubWidget) AddOverlays(overlays []*entities.Overlay) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, o := range overlays {
		w.rendered[o] = true
	}
}

func (w *stubWidget) RemoveOverlays(overlays []*entities.Overlay) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, o := range overlays {
		w.removed[o]++
		delete(w.rendered, o)
	}
}

func (w *stubWidget) AddAnnotation(a *entities.Annotation, c callout.Callout) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.annotations[a.ID] = a
	w.callouts[a.ID] = c
}

func (w *stubWidget) RemoveAnnotation(a *entities.Annotation) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.annotations, a.ID)
}

func (w *stubWidget) Rendered() []*entities.Overlay {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*entities.Overlay, 0, len(w.rendered))
	for o := range w.rendered {
		out = append(out, o)
	}
	return out
}

func (w *stubWidget) RemovedCount(o *entities.Overlay) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.removed[o]
}

func (w *stubWidget) AnnotationCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.annotations)
}

// stubSource is a call-counting backend. The hooks, when set, replace the
// canned answers and may block to hold a request in flight.
type stubSource struct {
	mu             sync.Mutex
	blocks         []entities.MapBlock
	blockCars      map[int][]entities.CarSummary
	mapBlocksErr   error
	boxes          []entities.BoundingBox
	blockCarsCalls map[int]int

	mapBlocksHook func(call int, box entities.BoundingBox) ([]entities.MapBlock, error)
	blockCarsHook func(ctx context.Context, blockID int) ([]entities.CarSummary, error)
}

func newStubSource(blocks ...entities.MapBlock) *stubSource {
	return &stubSource{
		blocks:         blocks,
		blockCars:      make(map[int][]entities.CarSummary),
		blockCarsCalls: make(map[int]int),
	}
}

func (s *stubSource) MapBlocks(_ context.Context, box entities.BoundingBox) ([]entities.MapBlock, error) {
	s.mu.Lock()
	s.boxes = append(s.boxes, box)
	call := len(s.boxes)
	hook := s.mapBlocksHook
	blocks, err := s.blocks, s.mapBlocksErr
	s.mu.Unlock()

	if hook != nil {
		return hook(call, box)
	}
	return blocks, err
}

func (s *stubSource) BlockCars(ctx context.Context, blockID int) ([]entities.CarSummary, error) {
	s.mu.Lock()
	s.blockCarsCalls[blockID]++
	hook := s.blockCarsHook
	cars := s.blockCars[blockID]
	s.mu.Unlock()

	if hook != nil {
		return hook(ctx, blockID)
	}
	return cars, nil
}

func (s *stubSource) MapBlockCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.boxes)
}

func (s *stubSource) BlockCarCalls(blockID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockCarsCalls[blockID]
}

type stubDisplay struct {
	mu      sync.Mutex
	blockID int
	cars    []entities.CarSummary
	showing bool
	shows   int
	clears  int
}

func (d *stubDisplay) ShowCars(blockID int, cars []entities.CarSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blockID, d.cars, d.showing = blockID, cars, true
	d.shows++
}

func (d *stubDisplay) ClearCars() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blockID, d.cars, d.showing = 0, nil, false
	d.clears++
}

func (d *stubDisplay) Showing() (int, []entities.CarSummary, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blockID, d.cars, d.showing
}

type stubSubmitter struct {
	mu        sync.Mutex
	submitted []entities.CarSubmission
	err       error
}

func (s *stubSubmitter) SubmitCar(_ context.Context, car entities.CarSubmission) (backend.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, car)
	if s.err != nil {
		return backend.SubmitResult{}, s.err
	}
	return backend.SubmitResult{LicenseHash: "hash"}, nil
}

func (s *stubSubmitter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.submitted)
}

type stubRefresher struct {
	calls int
}

func (r *stubRefresher) RegionChangeEnd(context.Context) (SyncResult, error) {
	r.calls++
	return SyncResult{State: entities.SyncStateSynced}, nil
}

func testMapConfig() config.MapConfig {
	return config.NewDefaultConfig().Map
}

// seattle is the viewport of the end-to-end scenario: a 0.05 by 0.10 degree
// box from 47.60,-122.40 to 47.65,-122.30.
func seattle() entities.Region {
	return entities.NewRegion(47.625, -122.35, 0.05, 0.1)
}

func seattleBlocks() []entities.MapBlock {
	return []entities.MapBlock{
		{ID: 1, Latitude: 47.62, Longitude: -122.34},
		{ID: 2, Latitude: 47.62, Longitude: -122.35},
		{ID: 3, Latitude: 47.61, Longitude: -122.34},
	}
}
