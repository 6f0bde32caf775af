// Package callout renders the popups shown next to map annotations.
//
// A Callout produces the popup element for an annotation, the offset of the
// popup from the annotation anchor and the CSS animation it appears with.
// The set of variants is closed: LandmarkCallout and AddCarFormCallout.
package callout

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"

	"manualsmap/internal/domain/entities"
)

// DefaultAnimation is the appearance animation shared by every variant.
const DefaultAnimation = "scale-and-fadein .4s 0 1 normal cubic-bezier(0.4, 0, 0, 1.5)"

// DefaultOffset places the popup above and to the left of the anchor.
var DefaultOffset = Offset{X: -148, Y: -78}

// ErrNoAnnotation is returned when a callout is asked to render nothing.
var ErrNoAnnotation = errors.New("callout: nil annotation")

// Offset is a popup position relative to the annotation anchor, in pixels.
type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Callout is implemented by LandmarkCallout and AddCarFormCallout only.
type Callout interface {
	Element(a *entities.Annotation) (template.HTML, error)
	AnchorOffset() Offset
	AppearanceAnimation() string
	callout()
}

// Spec is the serializable description of a rendered callout.
type Spec struct {
	Element   template.HTML `json:"element"`
	Offset    Offset        `json:"offset"`
	Animation string        `json:"animation"`
}

// Render evaluates every capability of c for a.
func Render(c Callout, a *entities.Annotation) (Spec, error) {
	element, err := c.Element(a)
	if err != nil {
		return Spec{}, err
	}
	return Spec{
		Element:   element,
		Offset:    c.AnchorOffset(),
		Animation: c.AppearanceAnimation(),
	}, nil
}

var landmarkTemplate = template.Must(template.New("landmark").Parse(
	`<div class="landmark">` +
		`<h1>{{.Title}}</h1>` +
		`<section>` +
		`<p class="phone">{{.Phone}}</p>` +
		`<p class="homepage"><a href="{{.URL}}">website</a></p>` +
		`</section>` +
		`</div>`))

// LandmarkCallout shows a title, a phone line and a homepage link.
type LandmarkCallout struct{}

func (LandmarkCallout) callout() {}

// Element renders the landmark popup.
func (LandmarkCallout) Element(a *entities.Annotation) (template.HTML, error) {
	if a == nil {
		return "", ErrNoAnnotation
	}
	return execute(landmarkTemplate, a)
}

// AnchorOffset returns DefaultOffset.
func (LandmarkCallout) AnchorOffset() Offset { return DefaultOffset }

// AppearanceAnimation returns DefaultAnimation.
func (LandmarkCallout) AppearanceAnimation() string { return DefaultAnimation }

var addCarFormTemplate = template.Must(template.New("add-car").Parse(
	`<div class="add-car">` +
		`<form id="addCarForm" method="post" action="{{.Action}}">` +
		`<input type="hidden" name="latitude" value="{{printf "%.6f" .Annotation.Coordinate.Latitude}}">` +
		`<input type="hidden" name="longitude" value="{{printf "%.6f" .Annotation.Coordinate.Longitude}}">` +
		`<input type="number" name="year" min="1900" max="2100" placeholder="Year" required>` +
		`<input type="text" name="brand" minlength="2" placeholder="Brand" required>` +
		`<input type="text" name="model" minlength="1" placeholder="Model" required>` +
		`<input type="text" name="trim" placeholder="Trim">` +
		`<input type="text" name="color" placeholder="Color" required>` +
		`<select name="licenseState" required>` +
		`{{range .States}}<option value="{{.}}">{{.}}</option>{{end}}` +
		`</select>` +
		`<input type="text" name="licensePlate" minlength="3" placeholder="License plate" required>` +
		`<div id="recaptcha"></div>` +
		`<button id="cloudinary" type="button">Upload image</button>` +
		`<button type="submit">Add car</button>` +
		`</form>` +
		`</div>`))

// AddCarFormCallout shows the add-car form on the draft marker.
type AddCarFormCallout struct {
	// Action is the URL the form posts to.
	Action string
	// States fills the license state picker.
	States []string
}

func (AddCarFormCallout) callout() {}

// Element renders the form, carrying the marker coordinate in hidden fields.
func (c AddCarFormCallout) Element(a *entities.Annotation) (template.HTML, error) {
	if a == nil {
		return "", ErrNoAnnotation
	}
	return execute(addCarFormTemplate, struct {
		Action     string
		States     []string
		Annotation *entities.Annotation
	}{c.Action, c.States, a})
}

// AnchorOffset returns DefaultOffset.
func (AddCarFormCallout) AnchorOffset() Offset { return DefaultOffset }

// AppearanceAnimation returns DefaultAnimation.
func (AddCarFormCallout) AppearanceAnimation() string { return DefaultAnimation }

func execute(t *template.Template, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s callout: %w", t.Name(), err)
	}
	// The template escapes every interpolated value.
	return template.HTML(buf.String()), nil
}
