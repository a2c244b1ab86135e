package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/merge"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
)

func boardRecord(b *models.Board) models.Record {
	return models.Record{
		ID:     b.ID,
		Entity: models.EntityBoard,
		Fields: map[string]any{
			models.FieldName:      b.Name,
			models.FieldSortOrder: b.SortOrder,
			models.FieldShareID:   b.ShareID,
			models.FieldCreatedAt: float64(b.CreatedAt.UnixMicro()),
		},
		Clock: b.Clock.Clone(),
	}
}

func tagRecord(t *models.Tag) models.Record {
	return models.Record{
		ID:     t.ID,
		Entity: models.EntityTag,
		Fields: map[string]any{
			models.FieldBoard:     t.BoardID,
			models.FieldName:      t.Name,
			models.FieldColor:     float64(t.Color),
			models.FieldSortOrder: float64(t.SortOrder),
			models.FieldCreatedAt: float64(t.CreatedAt.UnixMicro()),
		},
		Clock: t.Clock.Clone(),
	}
}

func itemRecord(it *models.Item, data, thumb []byte) models.Record {
	return models.Record{
		ID:     it.ID,
		Entity: models.EntityItem,
		Fields: map[string]any{
			models.FieldBoard:       it.BoardID,
			models.FieldUUID:        it.UUID,
			models.FieldName:        optional(it.Name),
			models.FieldNote:        optional(it.Note),
			models.FieldDisplayType: string(it.DisplayType),
			models.FieldContentType: it.ContentType,
			models.FieldTags:        models.StringSet(it.TagIDs),
			models.FieldData:        models.EncodeBlob(data),
			models.FieldThumbnail:   models.EncodeBlob(thumb),
			models.FieldCreatedAt:   float64(it.CreatedAt.UnixMicro()),
		},
		Clock: it.Clock.Clone(),
	}
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Records returns the current snapshot of each id. Deleted objects come back
// as tombstone records and unknown ids are skipped.
func (s *Store) Records(ctx context.Context, ids []string) ([]models.Record, error) {
	r := s.read()
	out := make([]models.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.localRecord(ctx, r, id, "")
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// localRecord loads id as entity, or probes every entity when entity is empty.
func (s *Store) localRecord(ctx context.Context, r repos, id string, entity models.Entity) (*models.Record, error) {
	if entity == "" || entity == models.EntityBoard {
		b, err := r.boards.Get(ctx, id)
		if err == nil {
			rec := boardRecord(b)
			return &rec, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}
	if entity == "" || entity == models.EntityTag {
		t, err := r.tags.Get(ctx, id)
		if err == nil {
			rec := tagRecord(t)
			return &rec, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}
	if entity == "" || entity == models.EntityItem {
		it, err := r.items.Get(ctx, id)
		if err == nil {
			data, err := r.payloads.Data(ctx, id)
			if err != nil {
				return nil, err
			}
			thumb, err := r.payloads.Thumbnail(ctx, id)
			if err != nil {
				return nil, err
			}
			rec := itemRecord(it, data, thumb)
			return &rec, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}

	buried, _, ok, err := r.tombstones.Get(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	return &models.Record{ID: id, Entity: buried, Deleted: true}, nil
}

// MergeRecords folds snapshots written elsewhere into this store under its
// merge policy, as one transaction authored by the cloud importer. Records
// that reference a board or tag unknown here are left out.
func (s *Store) MergeRecords(ctx context.Context, records []models.Record) error {
	return s.MergeRecordsAs(ctx, models.ActorCloudImport, records)
}

func (s *Store) MergeRecordsAs(ctx context.Context, author models.Actor, records []models.Record) error {
	pending, err := s.mergeRecords(ctx, author, records)
	if len(pending) > 0 {
		s.logger.Debug(ctx, "records left unresolved", "count", len(pending))
	}
	return err
}

// MergeAvailable merges records like MergeRecords and returns the ones that
// still wait for an owner: items and tags whose board is unknown here, and
// items naming tags not seen yet. Items of the last kind are stored without
// those tags and keep their local tag clock, so merging them again after
// the tags arrive completes them.
func (s *Store) MergeAvailable(ctx context.Context, records []models.Record) ([]models.Record, error) {
	return s.mergeRecords(ctx, models.ActorCloudImport, records)
}

func (s *Store) mergeRecords(ctx context.Context, author models.Actor, records []models.Record) ([]models.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	sorted := append([]models.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Entity.Rank() < sorted[j].Entity.Rank()
	})

	var pending []models.Record
	err := s.write(ctx, author, func(ctx context.Context, w *writeTx) error {
		for _, rec := range sorted {
			switch rec.Entity {
			case models.EntityBoard, models.EntityTag, models.EntityItem:
			default:
				s.logger.Warn(ctx, "skipping record of unknown entity", "id", rec.ID, "entity", string(rec.Entity))
				continue
			}

			local, err := s.localRecord(ctx, w.repos, rec.ID, rec.Entity)
			if err != nil {
				return err
			}
			merged, changed := s.policy.Merge(local, rec)
			if !changed {
				continue
			}
			waiting, err := s.applyRecord(ctx, w, local, merged)
			if err != nil {
				return fmt.Errorf("apply %s %s: %w", rec.Entity, rec.ID, err)
			}
			if waiting {
				pending = append(pending, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// applyRecord writes rec. waiting reports that rec references objects this
// store has not seen yet.
func (s *Store) applyRecord(ctx context.Context, w *writeTx, local *models.Record, rec models.Record) (waiting bool, err error) {
	if rec.Deleted {
		if local == nil {
			return false, w.tombstones.Put(ctx, rec.ID, rec.Entity, w.ts)
		}
		switch rec.Entity {
		case models.EntityBoard:
			return false, s.deleteBoard(ctx, w, rec.ID)
		case models.EntityTag:
			if err := w.tags.Delete(ctx, rec.ID); err != nil {
				return false, err
			}
		default:
			if err := w.items.Delete(ctx, rec.ID); err != nil {
				return false, err
			}
		}
		return false, s.bury(ctx, w, rec.ID, rec.Entity)
	}

	switch rec.Entity {
	case models.EntityBoard:
		return false, s.applyBoard(ctx, w, local != nil, rec)
	case models.EntityTag:
		return s.applyTag(ctx, w, local != nil, rec)
	default:
		return s.applyItem(ctx, w, local, rec)
	}
}

func createdAt(rec models.Record, fallback time.Time) time.Time {
	if v, ok := rec.Float(models.FieldCreatedAt); ok && v > 0 {
		return time.UnixMicro(int64(v))
	}
	return fallback
}

func (s *Store) applyBoard(ctx context.Context, w *writeTx, exists bool, rec models.Record) error {
	name, _ := rec.String(models.FieldName)
	if name == "" {
		s.logger.Warn(ctx, "skipping board without name", "id", rec.ID)
		return nil
	}
	b := &models.Board{ID: rec.ID, Name: name, Clock: rec.Clock.Clone(), UpdatedAt: w.now}
	b.SortOrder, _ = rec.Float(models.FieldSortOrder)
	b.ShareID, _ = rec.String(models.FieldShareID)

	if exists {
		if err := w.boards.Update(ctx, b); err != nil {
			return err
		}
		w.touch(b.ID, models.EntityBoard, models.OpUpdate)
		return nil
	}
	b.CreatedAt = createdAt(rec, w.now)
	if err := w.boards.Insert(ctx, b); err != nil {
		return err
	}
	w.touch(b.ID, models.EntityBoard, models.OpInsert)
	return nil
}

// ownerState tells where a referenced board stands in this store.
type ownerState int

const (
	ownerKnown ownerState = iota
	ownerBuried
	ownerUnseen
)

func (s *Store) boardOf(ctx context.Context, w *writeTx, rec models.Record) (string, ownerState, error) {
	boardID, _ := rec.String(models.FieldBoard)
	if boardID == "" {
		return "", ownerBuried, nil
	}
	_, err := w.boards.Get(ctx, boardID)
	if err == nil {
		return boardID, ownerKnown, nil
	}
	if !isNotFound(err) {
		return "", 0, err
	}
	s.logger.Debug(ctx, "skipping record for unknown board", "id", rec.ID, "board", boardID)
	_, _, buried, err := w.tombstones.Get(ctx, boardID)
	if err != nil {
		return "", 0, err
	}
	if buried {
		return boardID, ownerBuried, nil
	}
	return boardID, ownerUnseen, nil
}

func (s *Store) applyTag(ctx context.Context, w *writeTx, exists bool, rec models.Record) (bool, error) {
	boardID, state, err := s.boardOf(ctx, w, rec)
	if err != nil || state != ownerKnown {
		return state == ownerUnseen, err
	}
	t := &models.Tag{ID: rec.ID, BoardID: boardID, Clock: rec.Clock.Clone(), UpdatedAt: w.now}
	t.Name, _ = rec.String(models.FieldName)
	if c, ok := rec.Float(models.FieldColor); ok && models.TagColor(c).Valid() {
		t.Color = models.TagColor(c)
	}
	if o, ok := rec.Float(models.FieldSortOrder); ok {
		t.SortOrder = int(o)
	}

	if exists {
		if err := w.tags.Update(ctx, t); err != nil {
			return false, err
		}
		w.touch(t.ID, models.EntityTag, models.OpUpdate)
		return false, nil
	}
	t.CreatedAt = createdAt(rec, w.now)
	if err := w.tags.Insert(ctx, t); err != nil {
		return false, err
	}
	w.touch(t.ID, models.EntityTag, models.OpInsert)
	return false, nil
}

func (s *Store) applyItem(ctx context.Context, w *writeTx, local *models.Record, rec models.Record) (bool, error) {
	boardID, state, err := s.boardOf(ctx, w, rec)
	if err != nil || state != ownerKnown {
		return state == ownerUnseen, err
	}

	it := &models.Item{
		ID:          rec.ID,
		BoardID:     boardID,
		Name:        rec.OptionalString(models.FieldName),
		Note:        rec.OptionalString(models.FieldNote),
		Clock:       rec.Clock.Clone(),
		UpdatedAt:   w.now,
		DisplayType: models.DisplayType(fieldOr(rec, models.FieldDisplayType, string(models.DisplayFile))),
	}
	it.UUID = fieldOr(rec, models.FieldUUID, rec.ID)
	it.ContentType, _ = rec.String(models.FieldContentType)
	if !it.DisplayType.Valid() {
		it.DisplayType = models.DisplayFile
	}

	tags, unseen, err := s.itemTags(ctx, w, boardID, rec.Strings(models.FieldTags))
	if err != nil {
		return false, err
	}
	if unseen {
		// The tag set is incomplete; keep the local clock so the full set
		// wins once it can be applied, and so a push cannot overwrite it.
		delete(it.Clock, models.FieldTags)
		if local != nil {
			if lc := local.Clock[models.FieldTags]; lc > 0 {
				it.Clock[models.FieldTags] = lc
			}
		}
	}

	op := models.OpUpdate
	if local == nil {
		op = models.OpInsert
		it.CreatedAt = createdAt(rec, w.now)
		err = w.items.Insert(ctx, it)
	} else {
		err = w.items.Update(ctx, it)
	}
	if err != nil {
		return false, err
	}
	if err := w.items.SetTags(ctx, it.ID, tags); err != nil {
		return false, err
	}

	for _, field := range []string{models.FieldData, models.FieldThumbnail} {
		v, present := rec.Fields[field]
		if !present || (local != nil && merge.Equal(local.Fields[field], v)) {
			continue
		}
		blob, err := models.DecodeBlob(v)
		if err != nil {
			return false, common.Wrap(common.ErrDataValidation, err)
		}
		if field == models.FieldData {
			err = w.payloads.SetData(ctx, it.ID, blob)
		} else {
			err = w.payloads.SetThumbnail(ctx, it.ID, blob)
		}
		if err != nil {
			return false, err
		}
	}
	w.touch(it.ID, models.EntityItem, op)
	return unseen, nil
}

// itemTags keeps the tags that live on boardID. unseen reports tags that are
// neither present nor deleted here.
func (s *Store) itemTags(ctx context.Context, w *writeTx, boardID string, ids []string) (keep []string, unseen bool, err error) {
	keep = make([]string, 0, len(ids))
	for _, id := range ids {
		t, err := w.tags.Get(ctx, id)
		if err == nil {
			if t.BoardID == boardID {
				keep = append(keep, id)
			}
			continue
		}
		if !isNotFound(err) {
			return nil, false, err
		}
		_, _, buried, err := w.tombstones.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if !buried {
			unseen = true
		}
	}
	return keep, unseen, nil
}

func fieldOr(rec models.Record, field, fallback string) string {
	if v, ok := rec.String(field); ok && v != "" {
		return v
	}
	return fallback
}
