package domain

// Location identifies the place a request is about. Coordinates are nil
// until geocoding resolves them, or when the caller did not supply any.
type Location struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Resolved reports whether both coordinates are known.
func (l Location) Resolved() bool {
	return l.Latitude != nil && l.Longitude != nil
}
