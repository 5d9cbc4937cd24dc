// Package domain defines the core domain models for the concierge service.
package domain

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// BookingStatus represents the status of a booking.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// EscalationStatus represents the status of a concierge escalation.
type EscalationStatus string

const (
	EscalationStatusPending EscalationStatus = "PENDING"
	EscalationStatusClaimed EscalationStatus = "CLAIMED"
	EscalationStatusClosed  EscalationStatus = "CLOSED"
)

// VenueKind represents the category of a venue in the catalog.
type VenueKind string

const (
	VenueKindRestaurant VenueKind = "restaurant"
	VenueKindBeachClub  VenueKind = "beach_club"
	VenueKindLounge     VenueKind = "lounge"
	VenueKindVilla      VenueKind = "villa"
)

// PolicyDecision is the outcome of the tool policy check.
type PolicyDecision string

const (
	PolicyAllow    PolicyDecision = "allow"
	PolicyEscalate PolicyDecision = "escalate"
	PolicyBlock    PolicyDecision = "block"
)
