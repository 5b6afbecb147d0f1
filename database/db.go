package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"ticketchat/models"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// Store persists tickets' messages and contacts for the reference server
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and creates tables.
// driver is "sqlite3" or "postgres".
func Open(driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == "sqlite3" {
		// one writer keeps sqlite from returning SQLITE_BUSY and keeps :memory: a single db
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(1 * time.Minute)
	}

	s := &Store{db: db, driver: driver}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) createTables() error {
	seq := "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == "postgres" {
		seq = "seq BIGSERIAL PRIMARY KEY"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS contacts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			number TEXT NOT NULL DEFAULT '',
			presence TEXT NOT NULL DEFAULT 'available'
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			` + seq + `,
			id TEXT UNIQUE NOT NULL,
			ticket_id TEXT NOT NULL,
			from_me BOOLEAN NOT NULL DEFAULT FALSE,
			body TEXT NOT NULL DEFAULT '',
			media_type TEXT NOT NULL DEFAULT '',
			media_url TEXT NOT NULL DEFAULT '',
			ack INTEGER NOT NULL DEFAULT 0,
			is_edited BOOLEAN NOT NULL DEFAULT FALSE,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			is_forwarded BOOLEAN NOT NULL DEFAULT FALSE,
			quoted_msg_id TEXT NOT NULL DEFAULT '',
			contact_id TEXT NOT NULL DEFAULT '',
			queue_id TEXT NOT NULL DEFAULT '',
			queue_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_ticket ON messages(ticket_id, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Contact queries

// UpsertContact inserts or renames a contact
func (s *Store) UpsertContact(ctx context.Context, c models.Contact) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO contacts (id, name, number, presence) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, number = excluded.number`),
		c.ID, c.Name, c.Number, string(c.Presence.Normalize()),
	)
	return err
}

// GetContact retrieves a contact by id
func (s *Store) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	c := &models.Contact{}
	var presence string
	err := s.db.QueryRowContext(ctx, s.rebind(
		"SELECT id, name, number, presence FROM contacts WHERE id = ?"), id,
	).Scan(&c.ID, &c.Name, &c.Number, &presence)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Presence = models.Presence(presence)
	return c, nil
}

// SetPresence records a contact's presence, creating the contact if needed
func (s *Store) SetPresence(ctx context.Context, contactID string, presence models.Presence) (*models.Contact, error) {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO contacts (id, presence) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET presence = excluded.presence`),
		contactID, string(presence.Normalize()),
	)
	if err != nil {
		return nil, err
	}
	return s.GetContact(ctx, contactID)
}

// Message queries

const messageColumns = `m.id, m.ticket_id, m.from_me, m.body, m.media_type, m.media_url, m.ack,
	m.is_edited, m.is_deleted, m.is_forwarded, m.quoted_msg_id, m.contact_id,
	COALESCE(c.name, ''), COALESCE(c.number, ''), m.queue_id, m.queue_name, m.created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanned carries the foreign keys resolved after the scan
type scanned struct {
	msg      models.Message
	quotedID string
}

func scanMessage(row rowScanner) (scanned, error) {
	var out scanned
	var mediaType, contactID, name, num, queueID, queueName string
	var ack int
	m := &out.msg
	err := row.Scan(&m.ID, &m.TicketID, &m.FromMe, &m.Body, &mediaType, &m.MediaURL, &ack,
		&m.IsEdited, &m.IsDeleted, &m.IsForwarded, &out.quotedID, &contactID,
		&name, &num, &queueID, &queueName, &m.CreatedAt)
	if err != nil {
		return out, err
	}
	m.MediaType = models.MediaType(mediaType)
	m.Ack = models.Ack(ack)
	if contactID != "" {
		m.Contact = &models.Contact{ID: contactID, Name: name, Number: num}
	}
	if queueID != "" {
		m.Queue = &models.Queue{ID: queueID, Name: queueName}
	}
	return out, nil
}

// CreateMessage inserts m, assigning an id and timestamp when missing
func (s *Store) CreateMessage(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.CreatedAt = m.CreatedAt.UTC()
	if m.Contact != nil && m.Contact.ID != "" {
		if err := s.UpsertContact(ctx, *m.Contact); err != nil {
			return err
		}
	}

	var quotedID, contactID, queueID, queueName string
	if m.QuotedMsg != nil {
		quotedID = m.QuotedMsg.ID
	}
	if m.Contact != nil {
		contactID = m.Contact.ID
	}
	if m.Queue != nil {
		queueID, queueName = m.Queue.ID, m.Queue.Name
	}

	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO messages (id, ticket_id, from_me, body, media_type, media_url, ack,
			is_edited, is_deleted, is_forwarded, quoted_msg_id, contact_id, queue_id, queue_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.TicketID, m.FromMe, m.Body, string(m.MediaType), m.MediaURL, int(m.Ack),
		m.IsEdited, m.IsDeleted, m.IsForwarded, quotedID, contactID, queueID, queueName, m.CreatedAt,
	)
	return err
}

// GetMessage retrieves a message and its quoted message
func (s *Store) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+messageColumns+` FROM messages m
		LEFT JOIN contacts c ON c.id = m.contact_id
		WHERE m.id = ?`), id)
	sc, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.resolveQuoted(ctx, &sc); err != nil {
		return nil, err
	}
	return &sc.msg, nil
}

// MessagePatch lists the fields an update may change
type MessagePatch struct {
	Body      *string     `json:"body,omitempty"`
	Ack       *models.Ack `json:"ack,omitempty"`
	IsDeleted *bool       `json:"isDeleted,omitempty"`
}

// UpdateMessage applies patch and returns the whole updated message.
// Changing the body marks the message as edited.
func (s *Store) UpdateMessage(ctx context.Context, id string, patch MessagePatch) (*models.Message, error) {
	current, err := s.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Body != nil && *patch.Body != current.Body {
		current.Body = *patch.Body
		current.IsEdited = true
	}
	if patch.Ack != nil && *patch.Ack > current.Ack {
		current.Ack = *patch.Ack
	}
	if patch.IsDeleted != nil {
		current.IsDeleted = *patch.IsDeleted
	}

	_, err = s.db.ExecContext(ctx, s.rebind(
		"UPDATE messages SET body = ?, is_edited = ?, ack = ?, is_deleted = ? WHERE id = ?"),
		current.Body, current.IsEdited, int(current.Ack), current.IsDeleted, id,
	)
	if err != nil {
		return nil, err
	}
	return current, nil
}

// ListMessages returns page (1-based) of a ticket's history, oldest first within the page.
// Page 1 holds the newest messages.
func (s *Store) ListMessages(ctx context.Context, ticketID string, page, size int) (models.Page, error) {
	if page < 1 {
		page = 1
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+messageColumns+` FROM messages m
		LEFT JOIN contacts c ON c.id = m.contact_id
		WHERE m.ticket_id = ?
		ORDER BY m.created_at DESC, m.seq DESC
		LIMIT ? OFFSET ?`),
		ticketID, size+1, (page-1)*size,
	)
	if err != nil {
		return models.Page{}, err
	}
	defer rows.Close()

	var list []scanned
	for rows.Next() {
		sc, err := scanMessage(rows)
		if err != nil {
			return models.Page{}, err
		}
		list = append(list, sc)
	}
	if err := rows.Err(); err != nil {
		return models.Page{}, err
	}
	rows.Close()

	out := models.Page{Messages: []models.Message{}}
	if len(list) > size {
		out.HasMore = true
		list = list[:size]
	}

	// Reverse to get chronological order
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	for i := range list {
		if err := s.resolveQuoted(ctx, &list[i]); err != nil {
			return models.Page{}, err
		}
		out.Messages = append(out.Messages, list[i].msg)
	}
	return out, nil
}

func (s *Store) resolveQuoted(ctx context.Context, sc *scanned) error {
	if sc.quotedID == "" {
		return nil
	}
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+messageColumns+` FROM messages m
		LEFT JOIN contacts c ON c.id = m.contact_id
		WHERE m.id = ?`), sc.quotedID)
	q, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	sc.msg.QuotedMsg = &q.msg
	return nil
}
