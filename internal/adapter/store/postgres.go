package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/utc2/chat-delivery-service/internal/domain/model"
)

// Interface guard
var _ Store = (*Postgres)(nil)

// Postgres is the production Store backed by the portal database.
//
// Ownership model: Postgres does NOT own the pgx pool; the fx lifecycle that
// created the pool closes it.
type Postgres struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures Postgres behavior.
type PostgresOption func(*Postgres) error

// WithSchema sets the DB schema used by this store (default: "portal"). The
// schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *Postgres) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("store: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("store: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgres constructs the Postgres-backed Store.
func NewPostgres(pool *pgxpool.Pool, opts ...PostgresOption) (*Postgres, error) {
	s := &Postgres{
		pool:   pool,
		schema: "portal",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.pool == nil {
		return nil, errors.New("store: nil pool")
	}
	return s, nil
}

func (s *Postgres) Persist(ctx context.Context, in PersistInput) (*model.Message, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	msg := &model.Message{
		ID:         uuid.New(),
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		RoomID:     in.RoomID,
		Body:       in.Body,
		CreatedAt:  now,
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	messages := pgIdent(s.schema, "messages")
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+messages+` (id, sender_id, receiver_id, room_id, body, created_at, read)
		 VALUES ($1, $2, $3, $4, $5, $6, FALSE)`,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.RoomID, msg.Body, msg.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	return msg, nil
}

func (s *Postgres) ListRoomMembers(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	members := pgIdent(s.schema, "room_members")
	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM `+members+` WHERE room_id = $1`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list room members: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Postgres) MarkRead(ctx context.Context, reader, peer uuid.UUID) (int64, error) {
	messages := pgIdent(s.schema, "messages")
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+messages+`
		    SET read = TRUE
		  WHERE sender_id = $1
		    AND receiver_id = $2
		    AND read = FALSE`,
		peer, reader,
	)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Postgres) MarkRoomRead(ctx context.Context, reader, roomID uuid.UUID) (int64, error) {
	messages := pgIdent(s.schema, "messages")
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+messages+`
		    SET read = TRUE
		  WHERE room_id = $1
		    AND sender_id <> $2
		    AND read = FALSE`,
		roomID, reader,
	)
	if err != nil {
		return 0, fmt.Errorf("mark room read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Postgres) UnreadCount(ctx context.Context, reader, peer uuid.UUID) (int, error) {
	messages := pgIdent(s.schema, "messages")
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM `+messages+`
		  WHERE sender_id = $1 AND receiver_id = $2 AND read = FALSE`,
		peer, reader,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}

func (s *Postgres) UnreadCounts(ctx context.Context, reader uuid.UUID) (map[uuid.UUID]int, error) {
	messages := pgIdent(s.schema, "messages")
	rows, err := s.pool.Query(ctx,
		`SELECT sender_id, count(*) FROM `+messages+`
		  WHERE receiver_id = $1 AND read = FALSE
		  GROUP BY sender_id`,
		reader,
	)
	if err != nil {
		return nil, fmt.Errorf("unread counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var peer uuid.UUID
		var count int
		if err := rows.Scan(&peer, &count); err != nil {
			return nil, err
		}
		counts[peer] = count
	}
	return counts, rows.Err()
}

func (s *Postgres) UnreadRoomCount(ctx context.Context, reader, roomID uuid.UUID) (int, error) {
	messages := pgIdent(s.schema, "messages")
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM `+messages+`
		  WHERE room_id = $1 AND sender_id <> $2 AND read = FALSE`,
		roomID, reader,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread room count: %w", err)
	}
	return count, nil
}

// List queries page newest-first, then flip to ascending for the caller. The
// subquery alias must stay a non-reserved identifier; see the alias test.
const (
	listConversationSQL = `SELECT id, sender_id, receiver_id, room_id, body, created_at, read
	   FROM (
	     SELECT * FROM %s
	      WHERE (sender_id = $1 AND receiver_id = $2)
	         OR (sender_id = $2 AND receiver_id = $1)
	      ORDER BY created_at DESC
	      LIMIT $3
	   ) page
	  ORDER BY created_at ASC`

	listRoomMessagesSQL = `SELECT id, sender_id, receiver_id, room_id, body, created_at, read
	   FROM (
	     SELECT * FROM %s
	      WHERE room_id = $1
	      ORDER BY created_at DESC
	      LIMIT $2
	   ) page
	  ORDER BY created_at ASC`
)

func (s *Postgres) ListConversation(ctx context.Context, reader, peer uuid.UUID, limit int) ([]*model.Message, error) {
	messages := pgIdent(s.schema, "messages")
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(listConversationSQL, messages),
		reader, peer, normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *Postgres) ListRoomMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]*model.Message, error) {
	messages := pgIdent(s.schema, "messages")
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(listRoomMessagesSQL, messages),
		roomID, normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list room messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *Postgres) DisplayName(ctx context.Context, id uuid.UUID) (string, error) {
	users := pgIdent(s.schema, "users")
	var name string
	err := s.pool.QueryRow(ctx,
		`SELECT display_name FROM `+users+` WHERE id = $1`, id,
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("display name: %w", err)
	}
	return name, nil
}

func (s *Postgres) ResolveSession(ctx context.Context, token string) (uuid.UUID, error) {
	sessions := pgIdent(s.schema, "sessions")
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT user_id FROM `+sessions+`
		  WHERE token = $1 AND expires_at > now()`,
		token,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrSessionNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve session: %w", err)
	}
	return id, nil
}

func scanMessages(rows pgx.Rows) ([]*model.Message, error) {
	var out []*model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.RoomID, &m.Body, &m.CreatedAt, &m.Read); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func normalizeLimit(limit int) int {
	const defaultLimit = 100
	if limit <= 0 || limit > 500 {
		return defaultLimit
	}
	return limit
}

var pgIdentRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func isValidPGIdent(s string) bool { return pgIdentRe.MatchString(s) }

// pgIdent quotes schema-qualified identifiers that were validated upfront.
func pgIdent(schema, table string) string {
	return fmt.Sprintf("%q.%q", schema, table)
}
