// Package session bundles everything one browser map needs: its view, the
// car drawer, the overlay synchronizer and the add-car flow.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"manualsmap/internal/backend"
	"manualsmap/internal/callout"
	"manualsmap/internal/config"
	"manualsmap/internal/display"
	"manualsmap/internal/domain/entities"
	"manualsmap/internal/mapview"
	"manualsmap/internal/services"
	"manualsmap/pkg/utils"
)

// Backend is what a session needs from the backend client.
type Backend interface {
	services.MapBlockSource
	services.CarSubmitter
}

// Session is one map with its controllers. Sessions share nothing with each
// other except the backend client.
type Session struct {
	ID        string
	CreatedAt time.Time

	Map     *mapview.MapView
	Display *display.SessionDisplay
	Sync    *services.OverlaySynchronizer
	AddCar  *services.AddCarService

	mu        sync.Mutex
	landmarks []*entities.Annotation
}

// CarLister lists every car with its coordinate.
type CarLister interface {
	Cars(ctx context.Context) ([]entities.Car, error)
}

// Factory builds sessions against one backend.
type Factory struct {
	backend   Backend
	validator services.SubmissionValidator
	cfg       config.MapConfig
}

func NewFactory(b Backend, validator services.SubmissionValidator, cfg config.MapConfig) *Factory {
	return &Factory{backend: b, validator: validator, cfg: cfg}
}

// InitialRegion is the viewport of a session created without one.
func (f *Factory) InitialRegion() entities.Region {
	return entities.NewRegion(f.cfg.InitialLatitude, f.cfg.InitialLongitude, f.cfg.InitialSpan, f.cfg.InitialSpan)
}

// New creates a session showing region.
func (f *Factory) New(id string, region entities.Region) *Session {
	view := mapview.New(region)
	drawer := display.NewSessionDisplay(id)
	syncer := services.NewOverlaySynchronizer(view, f.backend, drawer, f.cfg)
	form := callout.AddCarFormCallout{
		Action: "/sessions/" + id + "/draft/submit",
		States: backend.LicenseStates(),
	}

	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		Map:       view,
		Display:   drawer,
		Sync:      syncer,
		AddCar:    services.NewAddCarService(view, syncer, f.backend, f.validator, form, f.cfg),
	}
}

// MoveTo sets the viewport and reports the end of the region change.
func (s *Session) MoveTo(ctx context.Context, region entities.Region) (services.SyncResult, error) {
	if err := s.Map.SetRegion(region); err != nil {
		return services.SyncResult{}, err
	}
	return s.Sync.RegionChangeEnd(ctx)
}

// ShowCarLandmarks marks every listed car on the map with a landmark callout,
// replacing the markers of an earlier call.
func (s *Session) ShowCarLandmarks(ctx context.Context, lister CarLister) (int, error) {
	cars, err := lister.Cars(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cars: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLandmarksLocked()
	for _, car := range cars {
		a := entities.NewCarAnnotation(utils.NewAnnotationID(string(entities.AnnotationKindCar)), car)
		s.Map.AddAnnotation(a, callout.LandmarkCallout{})
		s.landmarks = append(s.landmarks, a)
	}
	return len(cars), nil
}

func (s *Session) clearLandmarksLocked() {
	for _, a := range s.landmarks {
		s.Map.RemoveAnnotation(a)
	}
	s.landmarks = nil
}

// Close removes the session's drawing.
func (s *Session) Close() {
	s.AddCar.Cancel()
	s.Display.ClearCars()

	s.mu.Lock()
	s.clearLandmarksLocked()
	s.mu.Unlock()
}
