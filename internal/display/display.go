// Package display holds the car drawer of a map session: the cars of the
// selected map block.
package display

import (
	"log"
	"sync"

	"manualsmap/internal/domain/entities"
)

// Contents is what the drawer currently shows.
type Contents struct {
	Open    bool                  `json:"open"`
	BlockID int                   `json:"blockId,omitempty"`
	Cars    []entities.CarSummary `json:"cars"`
}

// SessionDisplay is the drawer of one session. It is safe for concurrent use.
type SessionDisplay struct {
	sessionID string

	mu       sync.RWMutex
	contents Contents
}

// NewSessionDisplay creates a closed, empty drawer for sessionID.
func NewSessionDisplay(sessionID string) *SessionDisplay {
	return &SessionDisplay{
		sessionID: sessionID,
		contents:  Contents{Cars: []entities.CarSummary{}},
	}
}

// ShowCars opens the drawer with the cars of a block.
func (d *SessionDisplay) ShowCars(blockID int, cars []entities.CarSummary) {
	if cars == nil {
		cars = []entities.CarSummary{}
	}
	d.mu.Lock()
	d.contents = Contents{Open: true, BlockID: blockID, Cars: cars}
	d.mu.Unlock()

	log.Printf("[DISPLAY] Session %s: showing %d cars of block %d", d.sessionID, len(cars), blockID)
}

// ClearCars empties and closes the drawer.
func (d *SessionDisplay) ClearCars() {
	d.mu.Lock()
	wasOpen := d.contents.Open
	d.contents = Contents{Cars: []entities.CarSummary{}}
	d.mu.Unlock()

	if wasOpen {
		log.Printf("[DISPLAY] Session %s: car list hidden", d.sessionID)
	}
}

// Contents returns a copy of the drawer contents.
func (d *SessionDisplay) Contents() Contents {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c := d.contents
	c.Cars = append([]entities.CarSummary{}, c.Cars...)
	return c
}
