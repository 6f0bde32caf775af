// Package utils provides small helpers shared by the controller packages.
package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewSessionID creates the identifier of a map session.
//
// Go Learning Note — "github.com/google/uuid":
// uuid.New() creates a random (v4) UUID, so ids can be minted by any
// controller instance without coordination.
func NewSessionID() string {
	return uuid.New().String()
}

// NewAnnotationID creates an annotation identifier prefixed with its kind,
// e.g. "new_car-1b4e28ba". Only the first UUID group is used; annotation ids
// are unique within one session.
func NewAnnotationID(kind string) string {
	short, _, _ := strings.Cut(uuid.New().String(), "-")
	return kind + "-" + short
}

// ValidSessionID reports whether id looks like an id from NewSessionID.
func ValidSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
