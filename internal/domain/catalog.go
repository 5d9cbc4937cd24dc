package domain

import "time"

// Venue is a bookable catalog entry (restaurant, beach club, lounge, villa).
type Venue struct {
	VenueID   string    `json:"venue_id"`
	Name      string    `json:"name"`
	Kind      VenueKind `json:"kind"`
	Vibe      string    `json:"vibe,omitempty"`
	Location  string    `json:"location,omitempty"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
}

// Booking is a confirmed table/slot reservation. IdempotencyKey guarantees a
// retried create applies at most once.
type Booking struct {
	BookingID      string        `json:"booking_id"`
	Reference      string        `json:"reference"`
	UserID         string        `json:"user_id"`
	VenueID        string        `json:"venue_id"`
	Date           string        `json:"date"` // YYYY-MM-DD
	Slot           string        `json:"slot"` // e.g. "20:00"
	PartySize      int           `json:"party_size"`
	Status         BookingStatus `json:"status"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// PointsTransaction is one entry in the member's loyalty ledger.
type PointsTransaction struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Points        int       `json:"points"`
	Reason        string    `json:"reason"`
	BookingID     string    `json:"booking_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Escalation is a request handed to the human concierge desk.
type Escalation struct {
	EscalationID   string           `json:"escalation_id"`
	UserID         string           `json:"user_id"`
	ConversationID string           `json:"conversation_id"`
	Category       string           `json:"category"`
	Summary        string           `json:"summary"`
	Status         EscalationStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
}
