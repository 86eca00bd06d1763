package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/parleychat/parley-server/internal/store"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	firstname     TEXT NOT NULL,
	lastname      TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS group_messages (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	from_user TEXT NOT NULL,
	room      TEXT NOT NULL,
	body      TEXT NOT NULL,
	sent_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS private_messages (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	from_user TEXT NOT NULL,
	to_user   TEXT NOT NULL,
	body      TEXT NOT NULL,
	sent_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_group_messages_room ON group_messages(room, sent_at DESC);
CREATE INDEX IF NOT EXISTS idx_private_messages_pair ON private_messages(from_user, to_user, sent_at DESC);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply an alternative schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, firstname, lastname, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, firstname, lastname, password_hash)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, firstname, lastname, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.getUserByID(ctx, id)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, firstname, lastname, password_hash, created_at
		FROM users
		WHERE username = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.Firstname,
		&user.Lastname,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ListUsers returns all users sorted by username.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*store.User, error) {
	query := `
		SELECT id, username, firstname, lastname, password_hash, created_at
		FROM users
		ORDER BY username ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		var user store.User
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Firstname,
			&user.Lastname,
			&user.PasswordHash,
			&user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &user)
	}

	return users, rows.Err()
}

func (s *SQLiteStore) getUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, firstname, lastname, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Firstname,
		&user.Lastname,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user id %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ==== MessageStore implementation ====

// AppendGroupMessage persists a group message and assigns its ID.
func (s *SQLiteStore) AppendGroupMessage(ctx context.Context, msg *store.GroupMessage) error {
	query := `
		INSERT INTO group_messages (from_user, room, body, sent_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.FromUser, msg.Room, msg.Body, msg.SentAt)
	if err != nil {
		return fmt.Errorf("insert group message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id

	return nil
}

// AppendPrivateMessage persists a private message and assigns its ID.
func (s *SQLiteStore) AppendPrivateMessage(ctx context.Context, msg *store.PrivateMessage) error {
	query := `
		INSERT INTO private_messages (from_user, to_user, body, sent_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.FromUser, msg.ToUser, msg.Body, msg.SentAt)
	if err != nil {
		return fmt.Errorf("insert private message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id

	return nil
}

// RecentGroupMessages returns the newest room messages in chronological
// ascending order.
func (s *SQLiteStore) RecentGroupMessages(ctx context.Context, room string, limit int) ([]*store.GroupMessage, error) {
	limit = store.ClampHistoryLimit(limit)

	// Select newest first to apply the limit, then reverse so callers
	// always see ascending chronological order.
	query := `
		SELECT id, from_user, room, body, sent_at
		FROM group_messages
		WHERE room = ?
		ORDER BY sent_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("query group messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*store.GroupMessage, 0, limit)
	for rows.Next() {
		var msg store.GroupMessage
		if err := rows.Scan(&msg.ID, &msg.FromUser, &msg.Room, &msg.Body, &msg.SentAt); err != nil {
			return nil, fmt.Errorf("scan group message: %w", err)
		}
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverseGroup(msgs)
	return msgs, nil
}

// RecentPrivateMessages returns the newest messages between two users, in
// either direction, in chronological ascending order.
func (s *SQLiteStore) RecentPrivateMessages(ctx context.Context, userA, userB string, limit int) ([]*store.PrivateMessage, error) {
	limit = store.ClampHistoryLimit(limit)

	query := `
		SELECT id, from_user, to_user, body, sent_at
		FROM private_messages
		WHERE (from_user = ? AND to_user = ?) OR (from_user = ? AND to_user = ?)
		ORDER BY sent_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, userA, userB, userB, userA, limit)
	if err != nil {
		return nil, fmt.Errorf("query private messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*store.PrivateMessage, 0, limit)
	for rows.Next() {
		var msg store.PrivateMessage
		if err := rows.Scan(&msg.ID, &msg.FromUser, &msg.ToUser, &msg.Body, &msg.SentAt); err != nil {
			return nil, fmt.Errorf("scan private message: %w", err)
		}
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reversePrivate(msgs)
	return msgs, nil
}

func reverseGroup(msgs []*store.GroupMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

func reversePrivate(msgs []*store.PrivateMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
