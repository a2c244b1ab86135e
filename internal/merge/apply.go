package merge

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/boardkeeper/internal/models"
)

// ObjectProviding resolves object ids to their current snapshot. Deleted
// objects are returned as records with Deleted set; unknown ids are omitted.
type ObjectProviding interface {
	Records(ctx context.Context, ids []string) ([]models.Record, error)
}

// HistoryMergeable absorbs snapshots written elsewhere. Merging the same
// records twice must leave the same state as merging them once.
type HistoryMergeable interface {
	MergeRecords(ctx context.Context, records []models.Record) error
}

// ChangedIDs lists the objects touched by batch in first-seen order.
func ChangedIDs(batch []models.Transaction) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, tx := range batch {
		for _, c := range tx.Changes {
			if _, ok := seen[c.ObjectID]; ok {
				continue
			}
			seen[c.ObjectID] = struct{}{}
			ids = append(ids, c.ObjectID)
		}
	}
	return ids
}

// ApplyBatch loads every object touched by batch from source and merges the
// snapshots into target.
func ApplyBatch(ctx context.Context, target HistoryMergeable, source ObjectProviding, batch []models.Transaction) error {
	ids := ChangedIDs(batch)
	if len(ids) == 0 {
		return nil
	}
	records, err := source.Records(ctx, ids)
	if err != nil {
		return fmt.Errorf("load changed objects: %w", err)
	}
	if len(records) == 0 {
		return nil
	}
	if err := target.MergeRecords(ctx, records); err != nil {
		return fmt.Errorf("merge changed objects: %w", err)
	}
	return nil
}
