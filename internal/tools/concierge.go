package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/velvetlist/concierge/internal/domain"
	store "github.com/velvetlist/concierge/internal/repository"
)

// NewConciergeRegistry builds the registry with the club's tool set bound to
// the data gateway.
func NewConciergeRegistry(db store.Store) *Registry {
	r := NewRegistry()
	r.MustRegister(&searchVenuesTool{db: db})
	r.MustRegister(&checkAvailabilityTool{db: db})
	r.MustRegister(&createBookingTool{db: db})
	r.MustRegister(&pointsBalanceTool{db: db})
	r.MustRegister(&escalateTool{db: db})
	return r
}

type searchVenuesTool struct {
	db store.Store
}

func (t *searchVenuesTool) Name() string { return "search_venues" }

func (t *searchVenuesTool) Description() string {
	return "Search the club's venue catalog by kind (restaurant, beach_club, lounge, villa), vibe, location, or free-text query. Use this to resolve a venue name the member mentions."
}

func (t *searchVenuesTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"kind":     map[string]interface{}{"type": "string", "enum": []string{"restaurant", "beach_club", "lounge", "villa"}},
			"vibe":     map[string]interface{}{"type": "string"},
			"location": map[string]interface{}{"type": "string"},
			"query":    map[string]interface{}{"type": "string"},
		},
	}
}

func (t *searchVenuesTool) Call(ctx context.Context, tctx ToolContext, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Kind     string `json:"kind"`
		Vibe     string `json:"vibe"`
		Location string `json:"location"`
		Query    string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}
	venues, err := t.db.SearchVenues(ctx, in.Kind, in.Vibe, in.Location, in.Query)
	if err != nil {
		return nil, fmt.Errorf("venue search failed: %w", err)
	}
	return json.Marshal(map[string]interface{}{"venues": venues, "count": len(venues)})
}

type checkAvailabilityTool struct {
	db store.Store
}

func (t *checkAvailabilityTool) Name() string { return "check_availability" }

func (t *checkAvailabilityTool) Description() string {
	return "Check whether a venue can seat a party at a date (YYYY-MM-DD) and slot (HH:MM, 24h). Returns remaining seats."
}

func (t *checkAvailabilityTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"venue_id":   map[string]interface{}{"type": "string"},
			"date":       map[string]interface{}{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
			"slot":       map[string]interface{}{"type": "string", "pattern": `^\d{2}:\d{2}$`},
			"party_size": map[string]interface{}{"type": "integer", "minimum": 1},
		},
		"required": []string{"venue_id", "date", "slot", "party_size"},
	}
}

func (t *checkAvailabilityTool) Call(ctx context.Context, tctx ToolContext, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		VenueID   string `json:"venue_id"`
		Date      string `json:"date"`
		Slot      string `json:"slot"`
		PartySize int    `json:"party_size"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}
	venue, err := t.db.GetVenue(ctx, in.VenueID)
	if err != nil {
		return nil, fmt.Errorf("venue lookup failed: %w", err)
	}
	if venue == nil {
		return nil, domain.NewError(domain.ErrKindToolExecution, "venue not found: "+in.VenueID, nil)
	}
	booked, err := t.db.CountBookedSeats(ctx, in.VenueID, in.Date, in.Slot)
	if err != nil {
		return nil, fmt.Errorf("availability check failed: %w", err)
	}
	remaining := venue.Capacity - booked
	return json.Marshal(map[string]interface{}{
		"venue_id":        in.VenueID,
		"date":            in.Date,
		"slot":            in.Slot,
		"available":       remaining >= in.PartySize,
		"remaining_seats": remaining,
	})
}

type createBookingTool struct {
	db store.Store
}

func (t *createBookingTool) Name() string { return "create_booking" }

func (t *createBookingTool) Description() string {
	return "Create a confirmed booking for the member. Always check availability first. Pass the same idempotency_key when retrying so a booking is never duplicated."
}

func (t *createBookingTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"venue_id":        map[string]interface{}{"type": "string"},
			"date":            map[string]interface{}{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
			"slot":            map[string]interface{}{"type": "string", "pattern": `^\d{2}:\d{2}$`},
			"party_size":      map[string]interface{}{"type": "integer", "minimum": 1},
			"idempotency_key": map[string]interface{}{"type": "string"},
		},
		"required": []string{"venue_id", "date", "slot", "party_size"},
	}
}

func (t *createBookingTool) Call(ctx context.Context, tctx ToolContext, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		VenueID        string `json:"venue_id"`
		Date           string `json:"date"`
		Slot           string `json:"slot"`
		PartySize      int    `json:"party_size"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}

	venue, err := t.db.GetVenue(ctx, in.VenueID)
	if err != nil {
		return nil, fmt.Errorf("venue lookup failed: %w", err)
	}
	if venue == nil {
		return nil, domain.NewError(domain.ErrKindToolExecution, "venue not found: "+in.VenueID, nil)
	}
	booked, err := t.db.CountBookedSeats(ctx, in.VenueID, in.Date, in.Slot)
	if err != nil {
		return nil, fmt.Errorf("availability check failed: %w", err)
	}
	if venue.Capacity-booked < in.PartySize {
		return nil, domain.NewError(domain.ErrKindToolExecution,
			fmt.Sprintf("%s has no availability for %d on %s at %s", venue.Name, in.PartySize, in.Date, in.Slot), nil)
	}

	// A missing key still gets at-most-once semantics within this request:
	// the orchestrator seeds RequestID per tool call id upstream.
	key := in.IdempotencyKey
	if key == "" {
		key = tctx.RequestID
	}

	booking := &domain.Booking{
		BookingID:      "bk_" + uuid.New().String()[:8],
		Reference:      newBookingReference(),
		UserID:         tctx.UserID,
		VenueID:        in.VenueID,
		Date:           in.Date,
		Slot:           in.Slot,
		PartySize:      in.PartySize,
		Status:         domain.BookingStatusConfirmed,
		IdempotencyKey: key,
		CreatedAt:      time.Now(),
	}
	saved, created, err := t.db.CreateBooking(ctx, booking)
	if err != nil {
		return nil, fmt.Errorf("booking creation failed: %w", err)
	}
	return json.Marshal(map[string]interface{}{
		"booking_id": saved.BookingID,
		"reference":  saved.Reference,
		"venue":      venue.Name,
		"date":       saved.Date,
		"slot":       saved.Slot,
		"party_size": saved.PartySize,
		"status":     saved.Status,
		"duplicate":  !created,
	})
}

func newBookingReference() string {
	return "VL-" + strings.ToUpper(uuid.New().String()[:6])
}

type pointsBalanceTool struct {
	db store.Store
}

func (t *pointsBalanceTool) Name() string { return "get_points_balance" }

func (t *pointsBalanceTool) Description() string {
	return "Get the member's current loyalty points balance."
}

func (t *pointsBalanceTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *pointsBalanceTool) Call(ctx context.Context, tctx ToolContext, args json.RawMessage) (json.RawMessage, error) {
	balance, err := t.db.GetPointsBalance(ctx, tctx.UserID)
	if err != nil {
		return nil, fmt.Errorf("points lookup failed: %w", err)
	}
	return json.Marshal(map[string]interface{}{"user_id": tctx.UserID, "points": balance})
}

type escalateTool struct {
	db store.Store
}

func (t *escalateTool) Name() string { return "escalate_to_concierge" }

func (t *escalateTool) Description() string {
	return "Hand the request to the human concierge team. Use for anything outside the venue catalog: yachts, jets, villas, large group events, or special arrangements."
}

func (t *escalateTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"category": map[string]interface{}{"type": "string"},
			"summary":  map[string]interface{}{"type": "string"},
		},
		"required": []string{"category", "summary"},
	}
}

func (t *escalateTool) Call(ctx context.Context, tctx ToolContext, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Category string `json:"category"`
		Summary  string `json:"summary"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}
	esc := &domain.Escalation{
		UserID:         tctx.UserID,
		ConversationID: tctx.ConversationID,
		Category:       in.Category,
		Summary:        in.Summary,
	}
	if err := t.db.CreateEscalation(ctx, esc); err != nil {
		return nil, fmt.Errorf("escalation failed: %w", err)
	}
	return json.Marshal(map[string]interface{}{
		"escalation_id": esc.EscalationID,
		"status":        esc.Status,
		"note":          "a concierge team member will follow up shortly",
	})
}
