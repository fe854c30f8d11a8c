package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/utc2/chat-delivery-service/internal/adapter/store"
)

// ReadReconciler flips unread messages to read and recomputes unread
// counters. It is fully decoupled from delivery: nothing in the push path
// ever touches read state, so the two subsystems never need to agree.
type ReadReconciler interface {
	// MarkRead marks every unread message from peer to reader as read.
	// Idempotent: a repeat call flips zero rows.
	MarkRead(ctx context.Context, reader, peer uuid.UUID) (int64, error)

	// MarkRoomRead marks every unread room message not authored by the
	// reader as read. Idempotent.
	MarkRoomRead(ctx context.Context, reader, roomID uuid.UUID) (int64, error)

	// UnreadCount recomputes the (reader, peer) counter by query.
	UnreadCount(ctx context.Context, reader, peer uuid.UUID) (int, error)

	// UnreadRoomCount recomputes the (reader, room) counter by query.
	UnreadRoomCount(ctx context.Context, reader, roomID uuid.UUID) (int, error)

	// UnreadCounts recomputes all of the reader's per-peer counters at
	// once, for the conversation list.
	UnreadCounts(ctx context.Context, reader uuid.UUID) (map[uuid.UUID]int, error)
}

// Interface guard
var _ ReadReconciler = (*ReadStateService)(nil)

type ReadStateService struct {
	store  store.MessageStore
	logger *slog.Logger
}

func NewReadStateService(st store.MessageStore, logger *slog.Logger) *ReadStateService {
	return &ReadStateService{store: st, logger: logger}
}

func (s *ReadStateService) MarkRead(ctx context.Context, reader, peer uuid.UUID) (int64, error) {
	if reader == uuid.Nil || peer == uuid.Nil {
		return 0, errors.New("readstate: reader and peer are required")
	}

	flipped, err := s.store.MarkRead(ctx, reader, peer)
	if err != nil {
		// Surfaced to the caller: mark-read is request/response and safe to
		// retry because it is idempotent.
		return 0, err
	}
	if flipped > 0 {
		s.logger.Debug("conversation marked read", "reader", reader, "peer", peer, "flipped", flipped)
	}
	return flipped, nil
}

func (s *ReadStateService) MarkRoomRead(ctx context.Context, reader, roomID uuid.UUID) (int64, error) {
	if reader == uuid.Nil || roomID == uuid.Nil {
		return 0, errors.New("readstate: reader and room are required")
	}

	flipped, err := s.store.MarkRoomRead(ctx, reader, roomID)
	if err != nil {
		return 0, err
	}
	if flipped > 0 {
		s.logger.Debug("room marked read", "reader", reader, "room", roomID, "flipped", flipped)
	}
	return flipped, nil
}

func (s *ReadStateService) UnreadCount(ctx context.Context, reader, peer uuid.UUID) (int, error) {
	return s.store.UnreadCount(ctx, reader, peer)
}

func (s *ReadStateService) UnreadRoomCount(ctx context.Context, reader, roomID uuid.UUID) (int, error) {
	return s.store.UnreadRoomCount(ctx, reader, roomID)
}

func (s *ReadStateService) UnreadCounts(ctx context.Context, reader uuid.UUID) (map[uuid.UUID]int, error) {
	return s.store.UnreadCounts(ctx, reader)
}
