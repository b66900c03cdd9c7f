package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"healthsync/internal/domain/session"
)

// GetStatus возвращает страницу сессий пользователя
func (s *Service) GetStatus(ctx context.Context, principal session.Principal, q StatusQuery) (*StatusResponse, error) {
	page, limit := s.page(q.Page, q.Limit)

	sessions, total, err := s.ledger.List(ctx, principal.UserID, SessionFilter{
		Status:   q.Status,
		SyncType: q.SyncType,
		From:     q.From,
		To:       q.To,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list sync sessions: %w", err)
	}
	if sessions == nil {
		sessions = []*Session{}
	}

	resp := &StatusResponse{
		Sessions:   sessions,
		Pagination: pagination(page, limit, total),
	}

	latest, err := s.ledger.LatestCompleted(ctx, principal.UserID)
	switch {
	case err == nil:
		resp.LastSync = summarize(latest)
	case errors.Is(err, ErrSessionNotFound):
	default:
		return nil, fmt.Errorf("get latest completed session: %w", err)
	}

	return resp, nil
}

// GetSession возвращает одну сессию пользователя
func (s *Service) GetSession(ctx context.Context, principal session.Principal, syncID string) (*Session, error) {
	sess, err := s.ledger.Get(ctx, principal.UserID, syncID)
	if err != nil {
		return nil, fmt.Errorf("get sync session: %w", err)
	}
	return sess, nil
}

// GetConflicts возвращает конфликты устройства, ожидающие ручного разбора
func (s *Service) GetConflicts(ctx context.Context, principal session.Principal, q ConflictsQuery) (*ConflictsResponse, error) {
	page, limit := s.page(q.Page, q.Limit)

	views, total, err := s.ledger.ListUnresolvedConflicts(ctx, principal.UserID, principal.DeviceID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list unresolved conflicts: %w", err)
	}

	items := make([]ConflictItem, 0, len(views))
	for _, v := range views {
		items = append(items, ConflictItem{
			SyncID:        v.SyncID,
			SyncTimestamp: v.SyncTimestamp,
			ItemID:        v.ItemID,
			DataType:      v.DataType,
			ConflictType:  v.ConflictType,
			LocalVersion:  v.LocalVersion,
			ServerVersion: v.ServerVersion,
		})
	}

	return &ConflictsResponse{
		Conflicts:  items,
		Pagination: pagination(page, limit, total),
	}, nil
}

// ResolveConflict переводит конфликт из manual_review в финальное решение.
// Хранилище записей не изменяется.
func (s *Service) ResolveConflict(ctx context.Context, principal session.Principal, req ResolveConflictRequest) (*ResolveConflictResponse, error) {
	switch req.Resolution {
	case ResolutionServerWins, ResolutionClientWins, ResolutionSkip:
	case ResolutionMerge:
		if len(req.MergedData) == 0 || string(req.MergedData) == "null" {
			return nil, fmt.Errorf("%w: merge requires mergedData", ErrInvalidResolution)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidResolution, req.Resolution)
	}

	r := ConflictResolution{
		Resolution: req.Resolution,
		ResolvedBy: strconv.Itoa(principal.UserID),
		ResolvedAt: s.now().UTC(),
	}
	if req.Resolution == ResolutionMerge {
		r.MergedVersion = req.MergedData
	}

	if err := s.ledger.ResolveConflict(ctx, principal.UserID, req.SyncID, req.ConflictItemID, r); err != nil {
		return nil, fmt.Errorf("resolve conflict: %w", err)
	}

	s.log.Info("conflict resolved",
		"sync_id", req.SyncID,
		"item_id", req.ConflictItemID,
		"resolution", req.Resolution,
		"user_id", principal.UserID,
	)

	return &ResolveConflictResponse{
		SyncID:     req.SyncID,
		ItemID:     req.ConflictItemID,
		Resolution: req.Resolution,
		ResolvedAt: r.ResolvedAt,
	}, nil
}

func (s *Service) page(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.config.DefaultPageLimit
	}
	if limit > s.config.MaxPageLimit {
		limit = s.config.MaxPageLimit
	}
	return page, limit
}

func pagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

func summarize(sess *Session) *SessionSummary {
	return &SessionSummary{
		SyncID:      sess.ID,
		SyncType:    sess.SyncType,
		Status:      sess.Status,
		StartedAt:   sess.StartedAt,
		CompletedAt: sess.CompletedAt,
		DurationMs:  sess.Duration().Milliseconds(),
		Progress:    sess.Progress,
		Percentage:  sess.Progress.Percentage(),
	}
}
