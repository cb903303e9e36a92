// README: Shared identifiers and value objects used across modules.
package types

import "github.com/google/uuid"

type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

// ParseID reports whether v is a well-formed entity id.
func ParseID(v string) (ID, bool) {
	u, err := uuid.Parse(v)
	if err != nil {
		return "", false
	}
	return ID(u.String()), true
}

type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
