package entities

// AnnotationKind distinguishes the point markers the controller places.
type AnnotationKind string

const (
	AnnotationKindCar      AnnotationKind = "car"
	AnnotationKindSearch   AnnotationKind = "search"
	AnnotationKindNewCar   AnnotationKind = "new_car"
	AnnotationKindLandmark AnnotationKind = "landmark"
)

// Default marker colors used by the drafts.
const (
	SearchResultColor = "#9B6134"
	LandmarkColor     = "#c969e0"
)

// Annotation is a point marker on the map.
type Annotation struct {
	ID         string         `json:"id"`
	Kind       AnnotationKind `json:"kind"`
	Coordinate Coordinate     `json:"coordinate"`
	Title      string         `json:"title"`
	Subtitle   string         `json:"subtitle,omitempty"`
	Color      string         `json:"color,omitempty"`
	Draggable  bool           `json:"draggable"`

	// Landmark data shown by the landmark callout.
	Phone string `json:"phone,omitempty"`
	URL   string `json:"url,omitempty"`
}

// NewNewCarAnnotation creates the draggable draft marker of the add-car flow.
func NewNewCarAnnotation(id string, at Coordinate) *Annotation {
	return &Annotation{
		ID:         id,
		Kind:       AnnotationKindNewCar,
		Coordinate: at,
		Title:      "Click and hold to drag",
		Draggable:  true,
	}
}

// NewCarAnnotation creates a landmark-style marker for a listed car.
func NewCarAnnotation(id string, car Car) *Annotation {
	return &Annotation{
		ID:         id,
		Kind:       AnnotationKindCar,
		Coordinate: car.Coordinate(),
		Title:      car.Title(),
		Color:      LandmarkColor,
	}
}
