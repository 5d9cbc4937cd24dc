package store

import (
	"context"
	"testing"
	"time"

	"github.com/velvetlist/concierge/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetConversationNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv, err := s.GetConversation(ctx, "conv_missing")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if conv != nil {
		t.Fatalf("expected nil for missing conversation, got %+v", conv)
	}
}

func TestAppendMessageAssignsMonotonicSeq(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv, err := s.CreateConversation(ctx, "u1")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	for i, content := range []string{"first", "second", "third"} {
		msg := &domain.Message{
			ConversationID: conv.ConversationID,
			Role:           domain.RoleUser,
			Content:        content,
		}
		if err := s.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("AppendMessage %d: %v", i, err)
		}
		if msg.Seq != i+1 {
			t.Fatalf("expected seq %d, got %d", i+1, msg.Seq)
		}
	}

	messages, err := s.GetMessages(ctx, conv.ConversationID, 0, 0)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, msg := range messages {
		if msg.Seq != i+1 {
			t.Fatalf("stored order broken at %d: seq %d", i, msg.Seq)
		}
	}
}

func TestGetMessagesBeforePaging(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv, err := s.CreateConversation(ctx, "u1")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	for _, content := range []string{"a", "b", "c", "d"} {
		if err := s.AppendMessage(ctx, &domain.Message{
			ConversationID: conv.ConversationID,
			Role:           domain.RoleUser,
			Content:        content,
		}); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	messages, err := s.GetMessages(ctx, conv.ConversationID, 2, 4)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Content != "a" || messages[1].Content != "b" {
		t.Fatalf("unexpected page: %+v", messages)
	}
}

func TestSearchVenuesByQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	venues, err := s.SearchVenues(ctx, "", "", "", "Nobu")
	if err != nil {
		t.Fatalf("SearchVenues: %v", err)
	}
	if len(venues) != 1 || venues[0].Name != "Nobu" {
		t.Fatalf("expected Nobu, got %+v", venues)
	}

	venues, err = s.SearchVenues(ctx, string(domain.VenueKindBeachClub), "", "", "")
	if err != nil {
		t.Fatalf("SearchVenues: %v", err)
	}
	if len(venues) != 1 || venues[0].Kind != domain.VenueKindBeachClub {
		t.Fatalf("expected one beach club, got %+v", venues)
	}
}

func TestCreateBookingIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	booking := &domain.Booking{
		BookingID:      "bk_1",
		Reference:      "VL-AAAAAA",
		UserID:         "u1",
		VenueID:        "ven_nobu",
		Date:           "2026-09-01",
		Slot:           "20:00",
		PartySize:      4,
		Status:         domain.BookingStatusConfirmed,
		IdempotencyKey: "idem-1",
		CreatedAt:      time.Now(),
	}

	first, created, err := s.CreateBooking(ctx, booking)
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if !created {
		t.Fatalf("expected first insert to create")
	}

	retry := *booking
	retry.BookingID = "bk_2"
	retry.Reference = "VL-BBBBBB"
	second, created, err := s.CreateBooking(ctx, &retry)
	if err != nil {
		t.Fatalf("CreateBooking retry: %v", err)
	}
	if created {
		t.Fatalf("expected retry to return existing booking")
	}
	if second.BookingID != first.BookingID || second.Reference != first.Reference {
		t.Fatalf("retry returned a different booking: %+v vs %+v", second, first)
	}

	seats, err := s.CountBookedSeats(ctx, "ven_nobu", "2026-09-01", "20:00")
	if err != nil {
		t.Fatalf("CountBookedSeats: %v", err)
	}
	if seats != 4 {
		t.Fatalf("expected 4 booked seats, got %d", seats)
	}

	// Points accrue exactly once.
	balance, err := s.GetPointsBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("GetPointsBalance: %v", err)
	}
	if balance != 4 {
		t.Fatalf("expected 4 points, got %d", balance)
	}
}

func TestCreateEscalationDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	esc := &domain.Escalation{
		UserID:   "u1",
		Category: "yacht_charter",
		Summary:  "charter a yacht for saturday",
	}
	if err := s.CreateEscalation(ctx, esc); err != nil {
		t.Fatalf("CreateEscalation: %v", err)
	}
	if esc.EscalationID == "" {
		t.Fatalf("expected generated escalation id")
	}
	if esc.Status != domain.EscalationStatusPending {
		t.Fatalf("expected PENDING, got %s", esc.Status)
	}
}
