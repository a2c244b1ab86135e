package store

import (
	"context"

	"github.com/dmitrijs2005/boardkeeper/internal/models"
)

const (
	firstLaunchKey  = "app.first_launch_done"
	defaultBoardKey = "app.default_board"
	cursorKeyPrefix = "history.cursor."
	tokenKeyPrefix  = "cloud.change_token."
	pushKey         = "cloud.push_cursor"
	shareKeyPrefix  = "share.token."
)

// IsFirstLaunch reports true until MarkLaunched has been called.
func (s *Store) IsFirstLaunch(ctx context.Context) (bool, error) {
	v, err := s.read().meta.Get(ctx, firstLaunchKey)
	if err != nil {
		return false, err
	}
	return v == nil, nil
}

func (s *Store) MarkLaunched(ctx context.Context) error {
	return s.read().meta.Set(ctx, firstLaunchKey, []byte("1"))
}

// ResetFirstLaunch makes the next start run first-launch setup again.
func (s *Store) ResetFirstLaunch(ctx context.Context) error {
	return s.read().meta.Delete(ctx, firstLaunchKey)
}

// DefaultBoard returns "" when unset.
func (s *Store) DefaultBoard(ctx context.Context) (string, error) {
	v, err := s.read().meta.Get(ctx, defaultBoardKey)
	return string(v), err
}

func (s *Store) SetDefaultBoard(ctx context.Context, boardID string) error {
	if _, err := s.Board(ctx, boardID); err != nil {
		return err
	}
	return s.read().meta.Set(ctx, defaultBoardKey, []byte(boardID))
}

// Cursor is the last history timestamp processed on behalf of actor.
func (s *Store) Cursor(ctx context.Context, actor models.Actor) (int64, error) {
	v, _, err := s.read().meta.GetInt64(ctx, cursorKeyPrefix+string(actor))
	return v, err
}

func (s *Store) SetCursor(ctx context.Context, actor models.Actor, ts int64) error {
	return s.read().meta.SetInt64(ctx, cursorKeyPrefix+string(actor), ts)
}

// PushCursor is the timestamp of the last local transaction sent to the cloud.
func (s *Store) PushCursor(ctx context.Context) (int64, error) {
	v, _, err := s.read().meta.GetInt64(ctx, pushKey)
	return v, err
}

func (s *Store) SetPushCursor(ctx context.Context, ts int64) error {
	return s.read().meta.SetInt64(ctx, pushKey, ts)
}

// ChangeToken is the server's opaque position for pulls into this store.
func (s *Store) ChangeToken(ctx context.Context) (int64, error) {
	v, _, err := s.read().meta.GetInt64(ctx, tokenKeyPrefix+string(s.scope))
	return v, err
}

func (s *Store) SetChangeToken(ctx context.Context, token int64) error {
	return s.read().meta.SetInt64(ctx, tokenKeyPrefix+string(s.scope), token)
}

// ShareToken returns the token minted for a board's share, or "".
func (s *Store) ShareToken(ctx context.Context, boardID string) (string, error) {
	v, err := s.read().meta.Get(ctx, shareKeyPrefix+boardID)
	return string(v), err
}

func (s *Store) SetShareToken(ctx context.Context, boardID, token string) error {
	return s.read().meta.Set(ctx, shareKeyPrefix+boardID, []byte(token))
}
