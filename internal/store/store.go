// Package store is the Postgres persistence layer: users, admin
// credentials, chat sessions/messages, documents and usage events.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

type Store struct {
	DB *sql.DB
}

// Message roles persisted for chat history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// New constructs the Store from DATABASE_URL or POSTGRES_* env vars.
func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// User operations

func (s *Store) CreateUser(ctx context.Context, email, hash string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2) RETURNING id`, email, hash).Scan(&id)
	return id, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, blocked bool, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash, is_blocked FROM users WHERE email=$1`, email).Scan(&id, &hash, &blocked)
	return
}

func (s *Store) IsUserBlocked(ctx context.Context, userID string) (bool, error) {
	var blocked bool
	err := s.DB.QueryRowContext(ctx, `SELECT is_blocked FROM users WHERE id=$1`, userID).Scan(&blocked)
	return blocked, err
}

func (s *Store) SetUserBlocked(ctx context.Context, userID string, blocked bool) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE users SET is_blocked=$2 WHERE id=$1`, userID, blocked)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return err
}

// UserRecord is the admin view of one user.
type UserRecord struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	IsBlocked bool      `json:"is_blocked"`
	CreatedAt time.Time `json:"created_at"`
	Sessions  int64     `json:"sessions"`
	Messages  int64     `json:"messages"`
	Documents int64     `json:"documents"`
	Tokens    int64     `json:"tokens"`
}

func (s *Store) ListUsers(ctx context.Context) ([]UserRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT u.id, u.email, u.is_blocked, u.created_at,
  (SELECT COUNT(*) FROM chat_sessions cs WHERE cs.user_id=u.id),
  (SELECT COUNT(*) FROM chat_messages m JOIN chat_sessions cs ON m.session_id=cs.id WHERE cs.user_id=u.id),
  (SELECT COUNT(*) FROM documents d WHERE d.user_id=u.id),
  COALESCE((SELECT SUM(e.tokens) FROM usage_events e WHERE e.user_id=u.id), 0)
FROM users u ORDER BY u.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UserRecord
	for rows.Next() {
		var u UserRecord
		if err := rows.Scan(&u.ID, &u.Email, &u.IsBlocked, &u.CreatedAt, &u.Sessions, &u.Messages, &u.Documents, &u.Tokens); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ProfileRecord is the user's own profile view.
type ProfileRecord struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Sessions  int64     `json:"sessions"`
	Messages  int64     `json:"messages"`
	Documents int64     `json:"documents"`
	Tokens    int64     `json:"tokens"`
}

func (s *Store) UserProfile(ctx context.Context, userID string) (ProfileRecord, error) {
	var p ProfileRecord
	err := s.DB.QueryRowContext(ctx, `
SELECT u.id, u.email, u.created_at,
  (SELECT COUNT(*) FROM chat_sessions cs WHERE cs.user_id=u.id),
  (SELECT COUNT(*) FROM chat_messages m JOIN chat_sessions cs ON m.session_id=cs.id WHERE cs.user_id=u.id),
  (SELECT COUNT(*) FROM documents d WHERE d.user_id=u.id),
  COALESCE((SELECT SUM(e.tokens) FROM usage_events e WHERE e.user_id=u.id), 0)
FROM users u WHERE u.id=$1`, userID).
		Scan(&p.ID, &p.Email, &p.CreatedAt, &p.Sessions, &p.Messages, &p.Documents, &p.Tokens)
	return p, err
}

// Admin credential operations

func (s *Store) SeedAdmin(ctx context.Context, username, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO admin_credentials (username, password_hash) VALUES ($1,$2) ON CONFLICT (username) DO NOTHING`, username, hash)
	return err
}

func (s *Store) GetAdminByUsername(ctx context.Context, username string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM admin_credentials WHERE username=$1`, username).Scan(&id, &hash)
	return
}

func (s *Store) UpdateAdminPassword(ctx context.Context, username, hash string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE admin_credentials SET password_hash=$2, updated_at=NOW() WHERE username=$1`, username, hash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return err
}

// Session operations

type SessionRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	HasDocument  bool      `json:"has_document"`
	DocumentName string    `json:"document_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *Store) CreateSession(ctx context.Context, userID, title string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO chat_sessions (user_id, title) VALUES ($1,$2) RETURNING id`, userID, title).Scan(&id)
	return id, err
}

func (s *Store) ListSessions(ctx context.Context, userID string) ([]SessionRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, user_id, title, has_document, document_name, created_at, updated_at FROM chat_sessions WHERE user_id=$1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionRecord
	for rows.Next() {
		var r SessionRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.HasDocument, &r.DocumentName, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetSession(ctx context.Context, id, userID string) (SessionRecord, error) {
	var r SessionRecord
	err := s.DB.QueryRowContext(ctx, `SELECT id, user_id, title, has_document, document_name, created_at, updated_at FROM chat_sessions WHERE id=$1 AND user_id=$2`, id, userID).
		Scan(&r.ID, &r.UserID, &r.Title, &r.HasDocument, &r.DocumentName, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *Store) UpdateSessionTitle(ctx context.Context, id, userID, title string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE chat_sessions SET title=$3, updated_at=NOW() WHERE id=$1 AND user_id=$2`, id, userID, title)
	return err
}

func (s *Store) SetSessionDocument(ctx context.Context, id string, hasDoc bool, name string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE chat_sessions SET has_document=$2, document_name=$3, updated_at=NOW() WHERE id=$1`, id, hasDoc, name)
	return err
}

func (s *Store) DeleteSession(ctx context.Context, id, userID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return err
}

// Message operations

type MessageRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) AddMessage(ctx context.Context, sessionID, role, content string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO chat_messages (session_id, role, content) VALUES ($1,$2,$3) RETURNING id`, sessionID, role, content).Scan(&id)
	if err != nil {
		return "", err
	}
	_, _ = s.DB.ExecContext(ctx, `UPDATE chat_sessions SET updated_at=NOW() WHERE id=$1`, sessionID)
	return id, nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]MessageRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, session_id, role, content, created_at FROM chat_messages WHERE session_id=$1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MessageRecord
	for rows.Next() {
		var m MessageRecord
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListRecentMessages returns up to limit most recent messages in
// chronological order, for conversation-history context.
func (s *Store) ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]MessageRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, session_id, role, content, created_at FROM (
  SELECT id, session_id, role, content, created_at FROM chat_messages
  WHERE session_id=$1 ORDER BY created_at DESC LIMIT $2
) sub ORDER BY created_at ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MessageRecord
	for rows.Next() {
		var m MessageRecord
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Document operations

type DocumentRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	UserEmail   string    `json:"user_email,omitempty"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Subject     string    `json:"subject"`
	Category    string    `json:"category"`
	Emoji       string    `json:"emoji"`
	Confidence  float64   `json:"confidence"`
	Text        string    `json:"-"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// UpsertDocument replaces a session's document wholesale on re-upload.
func (s *Store) UpsertDocument(ctx context.Context, rec DocumentRecord) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO documents (session_id, user_id, filename, content_type, size_bytes, subject, category, emoji, confidence, extracted_text, data)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (session_id) DO UPDATE SET
  filename = EXCLUDED.filename,
  content_type = EXCLUDED.content_type,
  size_bytes = EXCLUDED.size_bytes,
  subject = EXCLUDED.subject,
  category = EXCLUDED.category,
  emoji = EXCLUDED.emoji,
  confidence = EXCLUDED.confidence,
  extracted_text = EXCLUDED.extracted_text,
  data = EXCLUDED.data,
  created_at = NOW()
RETURNING id`,
		rec.SessionID, rec.UserID, rec.Filename, rec.ContentType, rec.SizeBytes,
		rec.Subject, rec.Category, rec.Emoji, rec.Confidence, rec.Text, rec.Data).Scan(&id)
	return id, err
}

// GetSessionDocument returns a session's document without its raw
// bytes.
func (s *Store) GetSessionDocument(ctx context.Context, sessionID string) (DocumentRecord, bool, error) {
	var d DocumentRecord
	err := s.DB.QueryRowContext(ctx, `
SELECT id, session_id, user_id, filename, content_type, size_bytes, subject, category, emoji, confidence, extracted_text, created_at
FROM documents WHERE session_id=$1`, sessionID).
		Scan(&d.ID, &d.SessionID, &d.UserID, &d.Filename, &d.ContentType, &d.SizeBytes, &d.Subject, &d.Category, &d.Emoji, &d.Confidence, &d.Text, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return DocumentRecord{}, false, nil
	}
	if err != nil {
		return DocumentRecord{}, false, err
	}
	return d, true, nil
}

// DeleteSessionDocument removes a session's document, if any.
func (s *Store) DeleteSessionDocument(ctx context.Context, sessionID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM documents WHERE session_id=$1`, sessionID)
	return err
}

// GetDocumentByID returns one document including its raw bytes, for
// admin download.
func (s *Store) GetDocumentByID(ctx context.Context, id string) (DocumentRecord, error) {
	var d DocumentRecord
	err := s.DB.QueryRowContext(ctx, `
SELECT id, session_id, user_id, filename, content_type, size_bytes, subject, category, emoji, confidence, extracted_text, data, created_at
FROM documents WHERE id=$1`, id).
		Scan(&d.ID, &d.SessionID, &d.UserID, &d.Filename, &d.ContentType, &d.SizeBytes, &d.Subject, &d.Category, &d.Emoji, &d.Confidence, &d.Text, &d.Data, &d.CreatedAt)
	return d, err
}

// ListDocuments is the admin view across all users, without raw bytes
// or extracted text.
func (s *Store) ListDocuments(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT d.id, d.session_id, d.user_id, u.email, d.filename, d.content_type, d.size_bytes, d.subject, d.category, d.emoji, d.confidence, d.created_at
FROM documents d JOIN users u ON u.id=d.user_id ORDER BY d.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DocumentRecord
	for rows.Next() {
		var d DocumentRecord
		if err := rows.Scan(&d.ID, &d.SessionID, &d.UserID, &d.UserEmail, &d.Filename, &d.ContentType, &d.SizeBytes, &d.Subject, &d.Category, &d.Emoji, &d.Confidence, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SearchableDocuments returns every document with its extracted text,
// for rebuilding the in-memory search index on startup.
func (s *Store) SearchableDocuments(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT d.id, d.filename, d.subject, d.category, u.email, d.extracted_text, d.created_at
FROM documents d JOIN users u ON u.id=d.user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DocumentRecord
	for rows.Next() {
		var d DocumentRecord
		if err := rows.Scan(&d.ID, &d.Filename, &d.Subject, &d.Category, &d.UserEmail, &d.Text, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Usage tracking

func (s *Store) RecordUsage(ctx context.Context, userID string, tokens int64) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO usage_events (user_id, tokens) VALUES ($1,$2)`, userID, tokens)
	return err
}

// StatsRecord aggregates platform totals for the admin dashboard.
type StatsRecord struct {
	Users     int64 `json:"users"`
	Sessions  int64 `json:"sessions"`
	Messages  int64 `json:"messages"`
	Documents int64 `json:"documents"`
	Tokens    int64 `json:"tokens"`
}

func (s *Store) Stats(ctx context.Context) (StatsRecord, error) {
	var st StatsRecord
	err := s.DB.QueryRowContext(ctx, `
SELECT
  (SELECT COUNT(*) FROM users),
  (SELECT COUNT(*) FROM chat_sessions),
  (SELECT COUNT(*) FROM chat_messages),
  (SELECT COUNT(*) FROM documents),
  COALESCE((SELECT SUM(tokens) FROM usage_events), 0)`).
		Scan(&st.Users, &st.Sessions, &st.Messages, &st.Documents, &st.Tokens)
	return st, err
}

// ClearChats removes all chat sessions (messages and documents cascade).
func (s *Store) ClearChats(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM chat_sessions`)
	return err
}

// DeleteSessionsBefore prunes sessions idle since before cutoff.
// Returns the number of sessions removed.
func (s *Store) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM chat_sessions WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
