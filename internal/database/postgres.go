package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hotpot-chat/internal/config"
	"hotpot-chat/internal/models"
	apperrors "hotpot-chat/pkg/errors"
	"hotpot-chat/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const sessionColumns = `id, customer_id, manager_id, topic, status, created_at, ended_at`
const messageColumns = `id, session_id, sender_id, receiver_id, body, created_at, is_read, read_at`

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(ctx context.Context, cfg config.DatabaseConfig) (*PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().Msg("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// User Repository Implementation
func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, username, email, password_hash, role, created_at FROM users WHERE LOWER(email) = LOWER($1)`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt,
	)
	if err != nil {
		return nil, translate(err, "user not found")
	}

	return user, nil
}

func (db *PostgresDB) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at`

	user := *u
	err := db.pool.QueryRow(ctx, query, u.Username, u.Email, u.PasswordHash, u.Role).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, apperrors.Conflict("email already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT id, username, email, role, created_at FROM users WHERE id = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.Email, &user.Role, &user.CreatedAt,
	)
	if err != nil {
		return nil, translate(err, "user not found")
	}

	return user, nil
}

// Session Store Implementation
func (db *PostgresDB) CreateSession(ctx context.Context, customerID int, topic string) (*models.ChatSession, error) {
	query := `
		INSERT INTO chat_sessions (customer_id, topic, status, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING ` + sessionColumns

	session, err := scanSession(db.pool.QueryRow(ctx, query, customerID, topic, models.SessionUnassigned))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return nil, apperrors.NotFound("customer not found")
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func (db *PostgresDB) GetSession(ctx context.Context, id int) (*models.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE id = $1`

	session, err := scanSession(db.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err, "chat session not found")
	}
	return session, nil
}

func (db *PostgresDB) UpdateSessionAssignment(ctx context.Context, sessionID, managerID int) (*models.ChatSession, error) {
	query := `
		UPDATE chat_sessions SET manager_id = $2, status = $3
		WHERE id = $1 AND status = $4 AND manager_id IS NULL
		RETURNING ` + sessionColumns

	session, err := scanSession(db.pool.QueryRow(ctx, query, sessionID, managerID, models.SessionAssigned, models.SessionUnassigned))
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to assign session: %w", err)
	}

	current, err := db.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return nil, assignmentConflict(current)
}

func (db *PostgresDB) EndSession(ctx context.Context, sessionID int, endedAt time.Time) (*models.ChatSession, bool, error) {
	query := `
		UPDATE chat_sessions SET status = $2, ended_at = $3
		WHERE id = $1 AND status <> $2
		RETURNING ` + sessionColumns

	session, err := scanSession(db.pool.QueryRow(ctx, query, sessionID, models.SessionEnded, endedAt))
	if err == nil {
		return session, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to end session: %w", err)
	}

	current, err := db.GetSession(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (db *PostgresDB) QuerySessions(ctx context.Context, filter models.SessionFilter) ([]*models.ChatSession, error) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID > 0 {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("(customer_id = $%d OR manager_id = $%d)", len(args), len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ActiveOnly {
		args = append(args, models.SessionEnded)
		conds = append(conds, fmt.Sprintf("status <> $%d", len(args)))
	}

	query := `SELECT ` + sessionColumns + ` FROM chat_sessions`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.PageSize > 0 {
		args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.ChatSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (db *PostgresDB) LatestSharedSession(ctx context.Context, userA, userB int) (*models.ChatSession, error) {
	query := `
		SELECT ` + sessionColumns + ` FROM chat_sessions
		WHERE status <> $3
		  AND ((customer_id = $1 AND manager_id = $2) OR (customer_id = $2 AND manager_id = $1))
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	session, err := scanSession(db.pool.QueryRow(ctx, query, userA, userB, models.SessionEnded))
	if err != nil {
		return nil, translate(err, "no active chat session between these users")
	}
	return session, nil
}

// Message Store Implementation
func (db *PostgresDB) InsertMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	// The share lock orders this insert against a concurrent EndSession.
	query := `
		WITH s AS (
			SELECT id FROM chat_sessions WHERE id = $1 AND status <> $5 FOR SHARE
		)
		INSERT INTO chat_messages (session_id, sender_id, receiver_id, body, created_at, is_read)
		SELECT s.id, $2, $3, $4, NOW(), false FROM s
		RETURNING ` + messageColumns

	stored, err := scanMessage(db.pool.QueryRow(ctx, query, msg.SessionID, msg.SenderID, msg.ReceiverID, msg.Body, models.SessionEnded))
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	if _, err := db.GetSession(ctx, msg.SessionID); err != nil {
		return nil, err
	}
	return nil, apperrors.Conflict("chat session has ended")
}

func (db *PostgresDB) MarkMessageRead(ctx context.Context, messageID, receiverID int, readAt time.Time) (*models.ChatMessage, bool, error) {
	query := `
		UPDATE chat_messages SET is_read = true, read_at = $2
		WHERE id = $1 AND receiver_id = $3 AND NOT is_read
		RETURNING ` + messageColumns

	msg, err := scanMessage(db.pool.QueryRow(ctx, query, messageID, readAt, receiverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to mark message read: %w", err)
	}
	return msg, true, nil
}

func (db *PostgresDB) QueryMessages(ctx context.Context, sessionID, limit, offset int) ([]*models.ChatMessage, int, error) {
	var total int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chat_messages WHERE session_id = $1`, sessionID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	query := `
		SELECT ` + messageColumns + ` FROM chat_messages
		WHERE session_id = $1
		ORDER BY id ASC
		LIMIT $2 OFFSET $3`

	messages, err := db.queryMessages(ctx, query, sessionID, limit, offset)
	return messages, total, err
}

func (db *PostgresDB) QueryUnread(ctx context.Context, receiverID int) ([]*models.ChatMessage, error) {
	query := `
		SELECT ` + messageColumns + ` FROM chat_messages
		WHERE receiver_id = $1 AND NOT is_read
		ORDER BY id ASC`

	return db.queryMessages(ctx, query, receiverID)
}

func (db *PostgresDB) queryMessages(ctx context.Context, query string, args ...any) ([]*models.ChatMessage, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func scanSession(row pgx.Row) (*models.ChatSession, error) {
	s := &models.ChatSession{}
	if err := row.Scan(&s.ID, &s.CustomerID, &s.ManagerID, &s.Topic, &s.Status, &s.CreatedAt, &s.EndedAt); err != nil {
		return nil, err
	}
	return s, nil
}

func scanMessage(row pgx.Row) (*models.ChatMessage, error) {
	m := &models.ChatMessage{}
	if err := row.Scan(&m.ID, &m.SessionID, &m.SenderID, &m.ReceiverID, &m.Body, &m.CreatedAt, &m.IsRead, &m.ReadAt); err != nil {
		return nil, err
	}
	return m, nil
}

func translate(err error, notFound string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound(notFound)
	}
	return err
}

func assignmentConflict(s *models.ChatSession) error {
	if s.Status == models.SessionEnded {
		return apperrors.Conflict("chat session has ended")
	}
	return apperrors.Conflict("chat session already assigned to another manager")
}
