package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"manualsmap/internal/backend"
	"manualsmap/internal/callout"
	"manualsmap/internal/config"
	"manualsmap/internal/domain/entities"
	"manualsmap/internal/geo"
	"manualsmap/pkg/utils"
)

var ErrNoDraft = errors.New("no car is being added")

// AnnotationWidget is the part of the map the add-car flow draws on.
type AnnotationWidget interface {
	MapWidget
	AddAnnotation(a *entities.Annotation, c callout.Callout)
	RemoveAnnotation(a *entities.Annotation)
}

// CarSubmitter posts new cars to the backend.
type CarSubmitter interface {
	SubmitCar(ctx context.Context, car entities.CarSubmission) (backend.SubmitResult, error)
}

// SubmissionValidator checks a submission before it is sent.
type SubmissionValidator interface {
	Validate(car entities.CarSubmission) error
}

// OverlayRefresher refreshes the overlays after a car was added.
type OverlayRefresher interface {
	RegionChangeEnd(ctx context.Context) (SyncResult, error)
}

// Draft is the car being added: the draggable marker and the cell it is in.
type Draft struct {
	Annotation entities.Annotation    `json:"annotation"`
	CellKey    string                 `json:"cellKey"`
	Cell       [4]entities.Coordinate `json:"cell"`
}

// AddCarService drives the add-car flow: a draggable marker carrying the
// add-car form, a preview of the map block it will land in, and submission.
type AddCarService struct {
	widget    AnnotationWidget
	refresher OverlayRefresher
	submitter CarSubmitter
	validator SubmissionValidator
	form      callout.Callout
	cfg       config.MapConfig

	mu      sync.Mutex
	draft   *entities.Annotation
	preview *entities.Overlay
	cellKey string
}

// NewAddCarService creates the add-car flow for one map. form is the callout
// attached to the draft marker.
func NewAddCarService(
	widget AnnotationWidget,
	refresher OverlayRefresher,
	submitter CarSubmitter,
	validator SubmissionValidator,
	form callout.Callout,
	cfg config.MapConfig,
) *AddCarService {
	return &AddCarService{
		widget:    widget,
		refresher: refresher,
		submitter: submitter,
		validator: validator,
		form:      form,
		cfg:       cfg,
	}
}

// Begin places a new draft marker at center, replacing any existing draft.
func (s *AddCarService) Begin(center entities.Coordinate) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.discardLocked()
	s.draft = entities.NewNewCarAnnotation(utils.NewAnnotationID(string(entities.AnnotationKindNewCar)), center)
	s.widget.AddAnnotation(s.draft, s.form)

	if err := s.previewLocked(center); err != nil {
		s.discardLocked()
		return Draft{}, err
	}
	log.Printf("[ADDCAR] Draft %s placed at %s", s.draft.ID, center)
	return s.snapshotLocked(), nil
}

// Drag moves the draft marker and previews the map block under it.
func (s *AddCarService) Drag(to entities.Coordinate) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft == nil {
		return Draft{}, ErrNoDraft
	}
	if err := s.previewLocked(to); err != nil {
		return Draft{}, err
	}
	s.draft.Coordinate = to
	return s.snapshotLocked(), nil
}

// previewLocked replaces the preview overlay with the cell containing c.
func (s *AddCarService) previewLocked(c entities.Coordinate) error {
	origin, err := geo.CellOrigin(c, s.cfg.BlockSize)
	if err != nil {
		return fmt.Errorf("preview cell: %w", err)
	}
	polygon, err := geo.CellPolygon(origin, s.cfg.BlockSize)
	if err != nil {
		return fmt.Errorf("preview cell: %w", err)
	}
	key, err := geo.CellKey(c, s.cfg.BlockSize)
	if err != nil {
		return fmt.Errorf("preview cell: %w", err)
	}

	if s.preview != nil {
		s.widget.RemoveOverlays([]*entities.Overlay{s.preview})
	}
	block := entities.MapBlock{Latitude: origin.Latitude, Longitude: origin.Longitude}
	s.preview = entities.NewOverlay(block, polygon, 0)
	s.widget.AddOverlays([]*entities.Overlay{s.preview})
	s.cellKey = key
	return nil
}

// Submit validates the form, posts it with the draft coordinate and, on
// success, removes the draft and refreshes the overlays. An invalid form
// returns a *backend.ValidationError and is never sent; the draft stays so
// it can be corrected, as it does when the backend rejects the car.
func (s *AddCarService) Submit(ctx context.Context, form entities.CarForm) (backend.SubmitResult, error) {
	s.mu.Lock()
	draft := s.draft
	if draft == nil {
		s.mu.Unlock()
		return backend.SubmitResult{}, ErrNoDraft
	}
	car := form.Submission(draft.Coordinate)
	s.mu.Unlock()

	if err := s.validator.Validate(car); err != nil {
		log.Printf("[ADDCAR] Draft %s rejected: %v", draft.ID, err)
		return backend.SubmitResult{}, err
	}

	result, err := s.submitter.SubmitCar(ctx, car)
	if err != nil {
		log.Printf("[ADDCAR] Submitting draft %s failed: %v", draft.ID, err)
		return backend.SubmitResult{}, fmt.Errorf("submit car: %w", err)
	}

	s.mu.Lock()
	if s.draft == draft {
		s.discardLocked()
	}
	s.mu.Unlock()

	if _, err := s.refresher.RegionChangeEnd(ctx); err != nil {
		log.Printf("[ADDCAR] Refreshing overlays after submission failed: %v", err)
	}
	log.Printf("[ADDCAR] Car %d %s %s added", car.Year, car.Make, car.Model)
	return result, nil
}

// Cancel removes the draft and its preview. It is a no-op without a draft.
func (s *AddCarService) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
}

// Current returns the draft, if any.
func (s *AddCarService) Current() (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return Draft{}, false
	}
	return s.snapshotLocked(), true
}

func (s *AddCarService) discardLocked() {
	if s.preview != nil {
		s.widget.RemoveOverlays([]*entities.Overlay{s.preview})
		s.preview = nil
	}
	if s.draft != nil {
		s.widget.RemoveAnnotation(s.draft)
		s.draft = nil
	}
	s.cellKey = ""
}

func (s *AddCarService) snapshotLocked() Draft {
	d := Draft{Annotation: *s.draft, CellKey: s.cellKey}
	if s.preview != nil {
		d.Cell = s.preview.Polygon
	}
	return d
}
