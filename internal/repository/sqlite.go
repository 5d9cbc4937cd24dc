package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/velvetlist/concierge/internal/domain"
)

// Store is the persistence boundary used by the service layer. It covers both
// the conversation log and the club catalog (venues, bookings, points,
// escalations) — tools never reach past it with raw queries.
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, userID string) (*domain.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)
	AppendMessage(ctx context.Context, msg *domain.Message) error
	GetMessages(ctx context.Context, conversationID string, limit int, before int) ([]domain.Message, error)

	// Catalog / bookings
	SearchVenues(ctx context.Context, kind, vibe, location, query string) ([]domain.Venue, error)
	GetVenue(ctx context.Context, venueID string) (*domain.Venue, error)
	CountBookedSeats(ctx context.Context, venueID, date, slot string) (int, error)
	CreateBooking(ctx context.Context, booking *domain.Booking) (*domain.Booking, bool, error)

	// Loyalty
	GetPointsBalance(ctx context.Context, userID string) (int, error)

	// Escalations
	CreateEscalation(ctx context.Context, esc *domain.Escalation) error
	ListEscalations(ctx context.Context, status domain.EscalationStatus) ([]domain.Escalation, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := store.seedVenues(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed venues: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			tool_calls TEXT,
			tool_call_id TEXT,
			tool_name TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (conversation_id, seq),
			FOREIGN KEY (conversation_id) REFERENCES conversations(conversation_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq)`,
		`CREATE TABLE IF NOT EXISTS venues (
			venue_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			vibe TEXT,
			location TEXT,
			capacity INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			booking_id TEXT PRIMARY KEY,
			reference TEXT NOT NULL,
			user_id TEXT NOT NULL,
			venue_id TEXT NOT NULL,
			date TEXT NOT NULL,
			slot TEXT NOT NULL,
			party_size INTEGER NOT NULL,
			status TEXT NOT NULL,
			idempotency_key TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (venue_id) REFERENCES venues(venue_id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_idempotency
			ON bookings(idempotency_key) WHERE idempotency_key IS NOT NULL AND idempotency_key != ''`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_venue_slot ON bookings(venue_id, date, slot, status)`,
		`CREATE TABLE IF NOT EXISTS points_transactions (
			transaction_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			points INTEGER NOT NULL,
			reason TEXT NOT NULL,
			booking_id TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_points_user ON points_transactions(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS escalations (
			escalation_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			conversation_id TEXT,
			category TEXT NOT NULL,
			summary TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_escalations_status ON escalations(status, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

func (s *SQLiteStore) seedVenues() error {
	venues := []domain.Venue{
		{VenueID: "ven_nobu", Name: "Nobu", Kind: domain.VenueKindRestaurant, Vibe: "japanese fine dining", Location: "Golden Mile", Capacity: 60},
		{VenueID: "ven_cala", Name: "Cala Bianca", Kind: domain.VenueKindBeachClub, Vibe: "daybeds and DJs", Location: "Puente Romano", Capacity: 120},
		{VenueID: "ven_sky", Name: "Sky Lounge", Kind: domain.VenueKindLounge, Vibe: "rooftop cocktails", Location: "Old Town", Capacity: 40},
		{VenueID: "ven_armonia", Name: "Villa Armonia", Kind: domain.VenueKindVilla, Vibe: "private events", Location: "La Zagaleta", Capacity: 24},
	}

	for _, v := range venues {
		_, err := s.db.Exec(
			`INSERT OR IGNORE INTO venues (venue_id, name, kind, vibe, location, capacity) VALUES (?, ?, ?, ?, ?, ?)`,
			v.VenueID, v.Name, string(v.Kind), v.Vibe, v.Location, v.Capacity)
		if err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateConversation creates a new conversation for the user.
func (s *SQLiteStore) CreateConversation(ctx context.Context, userID string) (*domain.Conversation, error) {
	conv := &domain.Conversation{
		ConversationID: "conv_" + uuid.New().String()[:8],
		UserID:         userID,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		conv.ConversationID, conv.UserID, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation retrieves a conversation by ID. Returns nil, nil when not found.
func (s *SQLiteStore) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, user_id, created_at, updated_at FROM conversations WHERE conversation_id = ?`,
		conversationID).Scan(&conv.ConversationID, &conv.UserID, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// appendRetries bounds the optimistic-seq retry loop when two requests race
// on the same conversation.
const appendRetries = 5

// AppendMessage appends a message to a conversation, assigning the next seq.
// The UNIQUE (conversation_id, seq) constraint rejects interleaved appends
// from concurrent requests; losers recompute and retry.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	if msg.MessageID == "" {
		msg.MessageID = "msg_" + uuid.New().String()[:8]
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	var toolCalls interface{}
	if len(msg.ToolCalls) > 0 {
		toolCalls = string(msg.ToolCalls)
	}

	var lastErr error
	for i := 0; i < appendRetries; i++ {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO messages (message_id, conversation_id, seq, role, content, tool_calls, tool_call_id, tool_name, created_at)
			 SELECT ?, ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?, ? FROM messages WHERE conversation_id = ?`,
			msg.MessageID, msg.ConversationID, string(msg.Role), msg.Content, toolCalls,
			msg.ToolCallID, msg.ToolName, msg.CreatedAt, msg.ConversationID)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				lastErr = err
				continue
			}
			return err
		}
		// Read back the assigned seq so callers see the final ordering.
		if err := s.db.QueryRowContext(ctx,
			`SELECT seq FROM messages WHERE message_id = ?`, msg.MessageID).Scan(&msg.Seq); err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx,
			`UPDATE conversations SET updated_at = ? WHERE conversation_id = ?`,
			time.Now(), msg.ConversationID)
		return err
	}
	return fmt.Errorf("failed to append message after %d retries: %w", appendRetries, lastErr)
}

// GetMessages retrieves messages for a conversation in seq order. A non-zero
// before returns only messages with seq < before.
func (s *SQLiteStore) GetMessages(ctx context.Context, conversationID string, limit int, before int) ([]domain.Message, error) {
	query := `SELECT message_id, conversation_id, seq, role, content, tool_calls, tool_call_id, tool_name, created_at
		FROM messages WHERE conversation_id = ?`
	args := []interface{}{conversationID}
	if before > 0 {
		query += ` AND seq < ?`
		args = append(args, before)
	}
	query += ` ORDER BY seq ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var role string
		var toolCalls, toolCallID, toolName sql.NullString
		if err := rows.Scan(&msg.MessageID, &msg.ConversationID, &msg.Seq, &role, &msg.Content,
			&toolCalls, &toolCallID, &toolName, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Role = domain.Role(role)
		if toolCalls.Valid {
			msg.ToolCalls = []byte(toolCalls.String)
		}
		msg.ToolCallID = toolCallID.String
		msg.ToolName = toolName.String
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// SearchVenues filters the venue catalog. Empty filters match everything;
// query matches name or vibe case-insensitively.
func (s *SQLiteStore) SearchVenues(ctx context.Context, kind, vibe, location, query string) ([]domain.Venue, error) {
	q := `SELECT venue_id, name, kind, vibe, location, capacity, created_at FROM venues WHERE 1=1`
	var args []interface{}
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, kind)
	}
	if vibe != "" {
		q += ` AND vibe LIKE ?`
		args = append(args, "%"+vibe+"%")
	}
	if location != "" {
		q += ` AND location LIKE ?`
		args = append(args, "%"+location+"%")
	}
	if query != "" {
		q += ` AND (name LIKE ? OR vibe LIKE ?)`
		args = append(args, "%"+query+"%", "%"+query+"%")
	}
	q += ` ORDER BY name LIMIT 20`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var venues []domain.Venue
	for rows.Next() {
		var v domain.Venue
		var kindStr string
		var vb, loc sql.NullString
		if err := rows.Scan(&v.VenueID, &v.Name, &kindStr, &vb, &loc, &v.Capacity, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Kind = domain.VenueKind(kindStr)
		v.Vibe = vb.String
		v.Location = loc.String
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

// GetVenue retrieves a venue by ID. Returns nil, nil when not found.
func (s *SQLiteStore) GetVenue(ctx context.Context, venueID string) (*domain.Venue, error) {
	var v domain.Venue
	var kindStr string
	var vb, loc sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT venue_id, name, kind, vibe, location, capacity, created_at FROM venues WHERE venue_id = ?`,
		venueID).Scan(&v.VenueID, &v.Name, &kindStr, &vb, &loc, &v.Capacity, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v.Kind = domain.VenueKind(kindStr)
	v.Vibe = vb.String
	v.Location = loc.String
	return &v, nil
}

// CountBookedSeats sums confirmed party sizes for a venue slot.
func (s *SQLiteStore) CountBookedSeats(ctx context.Context, venueID, date, slot string) (int, error) {
	var seats int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(party_size), 0) FROM bookings WHERE venue_id = ? AND date = ? AND slot = ? AND status = ?`,
		venueID, date, slot, string(domain.BookingStatusConfirmed)).Scan(&seats)
	return seats, err
}

// CreateBooking inserts a booking and its points accrual atomically. When the
// idempotency key already exists the original booking is returned with
// created=false — the conditional write is the concurrency control, there is
// no application-level lock.
func (s *SQLiteStore) CreateBooking(ctx context.Context, booking *domain.Booking) (*domain.Booking, bool, error) {
	if booking.IdempotencyKey != "" {
		existing, err := s.getBookingByIdempotencyKey(ctx, booking.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bookings (booking_id, reference, user_id, venue_id, date, slot, party_size, status, idempotency_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.BookingID, booking.Reference, booking.UserID, booking.VenueID, booking.Date,
		booking.Slot, booking.PartySize, string(booking.Status), booking.IdempotencyKey, booking.CreatedAt)
	if err != nil {
		// A concurrent request with the same key won the race; hand back its
		// row. Release the transaction first so the re-select can run on the
		// single connection an in-memory store is pinned to.
		tx.Rollback()
		if strings.Contains(err.Error(), "UNIQUE constraint failed") && booking.IdempotencyKey != "" {
			existing, gerr := s.getBookingByIdempotencyKey(ctx, booking.IdempotencyKey)
			if gerr != nil {
				return nil, false, gerr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	// Confirmed bookings earn one point per seat.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO points_transactions (transaction_id, user_id, points, reason, booking_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		"pt_"+uuid.New().String()[:8], booking.UserID, booking.PartySize,
		"booking "+booking.Reference, booking.BookingID, booking.CreatedAt)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return booking, true, nil
}

func (s *SQLiteStore) getBookingByIdempotencyKey(ctx context.Context, key string) (*domain.Booking, error) {
	var b domain.Booking
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT booking_id, reference, user_id, venue_id, date, slot, party_size, status, idempotency_key, created_at
		 FROM bookings WHERE idempotency_key = ?`, key).
		Scan(&b.BookingID, &b.Reference, &b.UserID, &b.VenueID, &b.Date, &b.Slot,
			&b.PartySize, &status, &b.IdempotencyKey, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.Status = domain.BookingStatus(status)
	return &b, nil
}

// GetPointsBalance sums the member's loyalty ledger.
func (s *SQLiteStore) GetPointsBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM points_transactions WHERE user_id = ?`,
		userID).Scan(&balance)
	return balance, err
}

// CreateEscalation records a request for the human concierge desk.
func (s *SQLiteStore) CreateEscalation(ctx context.Context, esc *domain.Escalation) error {
	if esc.EscalationID == "" {
		esc.EscalationID = "esc_" + uuid.New().String()[:8]
	}
	if esc.CreatedAt.IsZero() {
		esc.CreatedAt = time.Now()
	}
	if esc.Status == "" {
		esc.Status = domain.EscalationStatusPending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO escalations (escalation_id, user_id, conversation_id, category, summary, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		esc.EscalationID, esc.UserID, esc.ConversationID, esc.Category, esc.Summary, string(esc.Status), esc.CreatedAt)
	return err
}

// ListEscalations returns escalations in a status, oldest first, for the
// concierge desk.
func (s *SQLiteStore) ListEscalations(ctx context.Context, status domain.EscalationStatus) ([]domain.Escalation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT escalation_id, user_id, conversation_id, category, summary, status, created_at
		 FROM escalations WHERE status = ? ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var escalations []domain.Escalation
	for rows.Next() {
		var e domain.Escalation
		var st string
		var convID sql.NullString
		if err := rows.Scan(&e.EscalationID, &e.UserID, &convID, &e.Category, &e.Summary, &st, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ConversationID = convID.String
		e.Status = domain.EscalationStatus(st)
		escalations = append(escalations, e)
	}
	return escalations, rows.Err()
}
