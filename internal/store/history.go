package store

import (
	"context"
	"time"

	"github.com/dmitrijs2005/boardkeeper/internal/models"
)

// TransactionsAfter returns every transaction with a timestamp strictly after
// after whose author is not exclude, oldest first.
func (s *Store) TransactionsAfter(ctx context.Context, after int64, exclude models.Actor) ([]models.Transaction, error) {
	txs, err := s.read().history.After(ctx, after, exclude)
	if err != nil {
		return nil, err
	}
	for i := range txs {
		txs[i].StoreID = s.id
	}
	return txs, nil
}

// LastTimestamp is the timestamp of the newest transaction, or 0.
func (s *Store) LastTimestamp(ctx context.Context) (int64, error) {
	return s.read().history.LastTimestamp(ctx)
}

// PurgeHistory drops transactions and tombstones older than before. Callers
// must make sure every cursor has moved past before.
func (s *Store) PurgeHistory(ctx context.Context, before time.Time) (int64, error) {
	r := s.read()
	n, err := r.history.Purge(ctx, before.UnixMicro())
	if err != nil {
		return 0, err
	}
	if err := r.tombstones.Purge(ctx, before.UnixMicro()); err != nil {
		return n, err
	}
	if n > 0 {
		s.logger.Info(ctx, "history purged", "transactions", n, "before", before)
	}
	return n, nil
}
