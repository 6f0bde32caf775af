package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manualsmap/internal/domain/entities"
)

func setupSynchronizer(blocks ...entities.MapBlock) (*OverlaySynchronizer, *stubWidget, *stubSource, *stubDisplay) {
	widget := newStubWidget(seattle())
	source := newStubSource(blocks...)
	display := &stubDisplay{}
	return NewOverlaySynchronizer(widget, source, display, testMapConfig()), widget, source, display
}

func TestOverlaySynchronizer_EndToEnd(t *testing.T) {
	syncer, widget, source, _ := setupSynchronizer(seattleBlocks()...)

	result, err := syncer.RegionChangeEnd(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, source.MapBlockCalls())
	box := source.boxes[0]
	assert.InDelta(t, 47.60, box.South, 1e-9)
	assert.InDelta(t, -122.40, box.West, 1e-9)
	assert.InDelta(t, 47.65, box.North, 1e-9)
	assert.InDelta(t, -122.30, box.East, 1e-9)

	assert.Equal(t, entities.SyncStateSynced, result.State)
	assert.Equal(t, uint64(1), result.Generation)
	assert.Equal(t, 3, result.Overlays)
	assert.Len(t, widget.Rendered(), 3)
	assert.Equal(t, entities.SyncStateSynced, syncer.State())

	for _, o := range syncer.Overlays() {
		assert.Equal(t, o.Block.Latitude, o.Polygon[0].Latitude)
		assert.Equal(t, o.Block.Longitude, o.Polygon[0].Longitude)
		assert.Equal(t, uint64(1), o.Generation)
	}
}

func TestOverlaySynchronizer_ExceedsMaxSpan(t *testing.T) {
	tests := []struct {
		name   string
		region entities.Region
	}{
		{name: "latitude span", region: entities.NewRegion(47.6, -122.3, 0.7, 0.1)},
		{name: "longitude span", region: entities.NewRegion(47.6, -122.3, 0.1, 0.7)},
		{name: "both spans", region: entities.NewRegion(47.6, -122.3, 3, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer, widget, source, _ := setupSynchronizer(seattleBlocks()...)

			_, err := syncer.RegionChangeEnd(context.Background())
			require.NoError(t, err)
			previous := syncer.Overlays()
			require.Len(t, previous, 3)

			widget.SetRegion(tt.region)
			result, err := syncer.RegionChangeEnd(context.Background())
			require.NoError(t, err)

			assert.Equal(t, entities.SyncStateCleared, result.State)
			assert.Equal(t, 1, source.MapBlockCalls(), "no request once zoomed out")
			assert.Empty(t, syncer.Overlays())
			assert.Empty(t, widget.Rendered())
			for _, o := range previous {
				assert.Equal(t, 1, widget.RemovedCount(o))
			}
		})
	}
}

func TestOverlaySynchronizer_ExceedsMaxSpanWithoutOverlays(t *testing.T) {
	syncer, widget, source, _ := setupSynchronizer(seattleBlocks()...)
	widget.SetRegion(entities.NewRegion(0, 0, 10, 10))

	result, err := syncer.RegionChangeEnd(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStateCleared, result.State)
	assert.Equal(t, 0, source.MapBlockCalls())
}

func TestOverlaySynchronizer_FullReplace(t *testing.T) {
	syncer, widget, source, _ := setupSynchronizer(seattleBlocks()...)

	_, err := syncer.RegionChangeEnd(context.Background())
	require.NoError(t, err)
	first := syncer.Overlays()

	// The same blocks again still get fresh overlays.
	result, err := syncer.RegionChangeEnd(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Generation)
	second := syncer.Overlays()
	require.Len(t, second, 3)

	for _, o := range first {
		assert.Equal(t, 1, widget.RemovedCount(o), "generation 1 overlay removed exactly once")
		assert.NotContains(t, widget.Rendered(), o)
		assert.NotContains(t, second, o)
	}
	for _, o := range second {
		assert.Equal(t, uint64(2), o.Generation)
		assert.Equal(t, 0, widget.RemovedCount(o))
	}
	assert.Equal(t, 2, source.MapBlockCalls())
}

func TestOverlaySynchronizer_FailureKeepsOverlays(t *testing.T) {
	syncer, widget, source, _ := setupSynchronizer(seattleBlocks()...)

	_, err := syncer.RegionChangeEnd(context.Background())
	require.NoError(t, err)
	previous := syncer.Overlays()

	source.mapBlocksErr = errors.New("connection refused")
	result, err := syncer.RegionChangeEnd(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, entities.SyncStateSynced, result.State)
	assert.Equal(t, previous, syncer.Overlays())
	assert.Len(t, widget.Rendered(), 3)

	// The synchronizer keeps accepting events.
	source.mapBlocksErr = nil
	result, err = syncer.RegionChangeEnd(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), result.Generation)
	assert.Len(t, widget.Rendered(), 3)
}

func TestOverlaySynchronizer_StaleCompletionDiscarded(t *testing.T) {
	syncer, widget, source, _ := setupSynchronizer()

	started := make(chan struct{})
	release := make(chan struct{})
	oldBlocks := []entities.MapBlock{{ID: 10, Latitude: 47.62, Longitude: -122.34}}
	newBlocks := []entities.MapBlock{{ID: 20, Latitude: 40.71, Longitude: -74.0}}
	source.mapBlocksHook = func(call int, _ entities.BoundingBox) ([]entities.MapBlock, error) {
		if call == 1 {
			close(started)
			<-release
			return oldBlocks, nil
		}
		return newBlocks, nil
	}

	var (
		wg        sync.WaitGroup
		oldResult SyncResult
		oldErr    error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		oldResult, oldErr = syncer.RegionChangeEnd(context.Background())
	}()
	<-started

	widget.SetRegion(entities.NewRegion(40.71, -74.0, 0.05, 0.05))
	newResult, err := syncer.RegionChangeEnd(context.Background())
	require.NoError(t, err)
	assert.False(t, newResult.Stale)

	close(release)
	wg.Wait()
	require.NoError(t, oldErr)
	assert.True(t, oldResult.Stale)
	assert.Equal(t, uint64(1), oldResult.Generation)

	overlays := syncer.Overlays()
	require.Len(t, overlays, 1)
	assert.Equal(t, 20, overlays[0].BlockID)
	assert.Len(t, widget.Rendered(), 1)
	assert.Equal(t, uint64(2), syncer.Generation())
}

func TestOverlaySynchronizer_FailureAfterStaleFetchSettles(t *testing.T) {
	syncer, widget, source, _ := setupSynchronizer()

	started := make(chan struct{})
	release := make(chan struct{})
	source.mapBlocksHook = func(call int, _ entities.BoundingBox) ([]entities.MapBlock, error) {
		if call == 1 {
			close(started)
			<-release
			return seattleBlocks(), nil
		}
		return nil, errors.New("connection refused")
	}

	var (
		wg        sync.WaitGroup
		oldResult SyncResult
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		oldResult, _ = syncer.RegionChangeEnd(context.Background())
	}()
	<-started

	_, err := syncer.RegionChangeEnd(context.Background())
	require.Error(t, err)
	assert.Equal(t, entities.SyncStateIdle, syncer.State())

	close(release)
	wg.Wait()
	assert.True(t, oldResult.Stale)

	// Both events are done; nothing is left fetching.
	assert.Equal(t, entities.SyncStateIdle, syncer.State())
	assert.Empty(t, widget.Rendered())
}

func TestOverlaySynchronizer_SelectCachesCars(t *testing.T) {
	syncer, _, source, display := setupSynchronizer(seattleBlocks()...)
	source.blockCars[1] = []entities.CarSummary{{Year: 2006, Make: "Audi", Model: "A4"}}

	_, err := syncer.RegionChangeEnd(context.Background())
	require.NoError(t, err)

	first, err := syncer.Select(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.True(t, first.Displayed)

	second, err := syncer.Select(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Cars, second.Cars)

	assert.Equal(t, 1, source.BlockCarCalls(1), "second selection is served from the overlay")
	blockID, cars, showing := display.Showing()
	assert.True(t, showing)
	assert.Equal(t, 1, blockID)
	assert.Len(t, cars, 1)

	// A new generation starts with an empty cache.
	_, err = syncer.RegionChangeEnd(context.Background())
	require.NoError(t, err)
	_, err = syncer.Select(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, source.BlockCarCalls(1))
}

func TestOverlaySynchronizer_SelectUnknownBlock(t *testing.T) {
	syncer, _, source, _ := setupSynchronizer(seattleBlocks()...)

	_, err := syncer.Select(context.Background(), 1)
	assert.ErrorIs(t, err, ErrOverlayNotFound)
	assert.ErrorIs(t, syncer.Deselect(1), ErrOverlayNotFound)
	assert.Equal(t, 0, source.BlockCarCalls(1))
}

func TestOverlaySynchronizer_SelectFailureIsNotCached(t *testing.T) {
	syncer, _, source, display := setupSynchronizer(seattleBlocks()...)
	_, err := syncer.RegionChangeEnd(context.Background())
	require.NoError(t, err)

	source.blockCarsHook = func(context.Context, int) ([]entities.CarSummary, error) {
		return nil, errors.New("timeout")
	}
	_, err = syncer.Select(context.Background(), 2)
	require.Error(t, err)
	_, _, showing := display.Showing()
	assert.False(t, showing)

	source.blockCarsHook = nil
	result, err := syncer.Select(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Equal(t, 2, source.BlockCarCalls(2))
}

func TestOverlaySynchronizer_ConcurrentSelectionsShareFetch(t *testing.T) {
	syncer, _, source, _ := setupSynchronizer(seattleBlocks()...)
	_, err := syncer.RegionChangeEnd(context.Background())
	require.NoError(t, err)

	release := make(chan struct{})
	source.blockCarsHook = func(context.Context, int) ([]entities.CarSummary, error) {
		<-release
		return []entities.CarSummary{{Year: 1999, Make: "Honda", Model: "Civic"}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := syncer.Select(context.Background(), 3)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, source.BlockCarCalls(3))
}

func TestOverlaySynchronizer_SharedFetchOutlivesCancelledCaller(t *testing.T) {
	syncer, _, source, _ := setupSynchronizer(seattleBlocks()...)
	_, err := syncer.RegionChangeEnd(context.Background())
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	source.blockCarsHook = func(ctx context.Context, _ int) ([]entities.CarSummary, error) {
		close(started)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return []entities.CarSummary{{Year: 1999, Make: "Honda", Model: "Civic"}}, nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := syncer.Select(ctx, 3)
		first <- err
	}()
	<-started

	second := make(chan SelectResult, 1)
	go func() {
		result, err := syncer.Select(context.Background(), 3)
		assert.NoError(t, err)
		second <- result
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	time.Sleep(50 * time.Millisecond)
	close(release)

	assert.NoError(t, <-first)
	result := <-second
	require.Len(t, result.Cars, 1)
	assert.Equal(t, "Civic", result.Cars[0].Model)
	assert.Equal(t, 1, source.BlockCarCalls(3))
}

func TestOverlaySynchronizer_DeselectDuringFetch(t *testing.T) {
	syncer, _, source, display := setupSynchronizer(seattleBlocks()...)
	_, err := syncer.RegionChangeEnd(context.Background())
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	source.blockCarsHook = func(context.Context, int) ([]entities.CarSummary, error) {
		close(started)
		<-release
		return []entities.CarSummary{{Year: 2011, Make: "Mazda", Model: "MX-5"}}, nil
	}

	done := make(chan SelectResult, 1)
	go func() {
		result, err := syncer.Select(context.Background(), 1)
		assert.NoError(t, err)
		done <- result
	}()
	<-started

	require.NoError(t, syncer.Deselect(1))
	close(release)
	result := <-done

	assert.False(t, result.Displayed)
	_, _, showing := display.Showing()
	assert.False(t, showing, "late car list must stay hidden")
	_, selected := syncer.Selected()
	assert.False(t, selected)

	// The late list was still cached.
	source.blockCarsHook = nil
	again, err := syncer.Select(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.True(t, again.Displayed)
	assert.Equal(t, 1, source.BlockCarCalls(1))
}

func TestOverlaySynchronizer_SelectAt(t *testing.T) {
	syncer, _, source, display := setupSynchronizer(seattleBlocks()...)
	source.blockCars[2] = []entities.CarSummary{{Year: 2001, Make: "BMW", Model: "M3"}}
	_, err := syncer.RegionChangeEnd(context.Background())
	require.NoError(t, err)

	result, err := syncer.SelectAt(context.Background(), entities.NewCoordinate(47.6249, -122.3551))
	require.NoError(t, err)
	assert.Equal(t, 2, result.BlockID)
	blockID, _, _ := display.Showing()
	assert.Equal(t, 2, blockID)

	_, err = syncer.SelectAt(context.Background(), entities.NewCoordinate(0, 0))
	assert.ErrorIs(t, err, ErrOverlayNotFound)
}

func TestOverlaySynchronizer_RefreshHidesSelection(t *testing.T) {
	syncer, widget, _, display := setupSynchronizer(seattleBlocks()...)
	_, err := syncer.RegionChangeEnd(context.Background())
	require.NoError(t, err)
	_, err = syncer.Select(context.Background(), 1)
	require.NoError(t, err)

	widget.SetRegion(entities.NewRegion(47.6, -122.3, 1, 1))
	_, err = syncer.RegionChangeEnd(context.Background())
	require.NoError(t, err)

	_, _, showing := display.Showing()
	assert.False(t, showing)
	_, selected := syncer.Selected()
	assert.False(t, selected)
}
