package store

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/dmitrijs2005/boardkeeper/internal/merge"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type itemState struct {
	Board, Name, Note, Type string
	Tags                    []string
	Data                    string
}

type graphState struct {
	Boards map[string]string
	Tags   map[string]string
	Items  map[string]itemState
}

func snapshot(t *testing.T, s *Store) graphState {
	t.Helper()
	ctx := context.Background()
	st := graphState{Boards: map[string]string{}, Tags: map[string]string{}, Items: map[string]itemState{}}

	boards, err := s.Boards(ctx)
	require.NoError(t, err)
	for _, b := range boards {
		st.Boards[b.ID] = b.Name
		tags, err := s.Tags(ctx, b.ID)
		require.NoError(t, err)
		for _, tg := range tags {
			st.Tags[tg.ID] = tg.Name
		}
		items, err := s.Items(ctx, b.ID)
		require.NoError(t, err)
		for _, it := range items {
			data, err := s.ItemData(ctx, it.ID)
			require.NoError(t, err)
			tags := append([]string(nil), it.TagIDs...)
			sort.Strings(tags)
			st.Items[it.ID] = itemState{
				Board: it.BoardID, Name: deref(it.Name), Note: deref(it.Note),
				Type: string(it.DisplayType), Tags: tags, Data: string(data),
			}
		}
	}
	return st
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func seedSource(t *testing.T, src *Store) {
	t.Helper()
	ctx := context.Background()
	board, err := src.CreateBoard(ctx, "Trip")
	require.NoError(t, err)
	tag, err := src.CreateTag(ctx, board, "best", models.TagYellow)
	require.NoError(t, err)
	item, err := src.CreateItem(ctx, models.ItemSpec{
		Name: models.Ptr("Photo"), DisplayType: models.DisplayImage, ContentType: "public.png", Data: []byte("png"),
	}, board)
	require.NoError(t, err)
	_, err = src.ToggleTag(ctx, item, tag)
	require.NoError(t, err)
	gone, err := src.CreateItem(ctx, models.ItemSpec{DisplayType: models.DisplayNote, Note: models.Ptr("tmp")}, board)
	require.NoError(t, err)
	require.NoError(t, src.DeleteItem(ctx, gone))
}

func TestApplyBatch_ReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	src := newStore(t)
	dst := openAt(t, filepath.Join(t.TempDir(), "replica.db"), models.ActorMainApp)
	seedSource(t, src)

	batch, err := src.TransactionsAfter(ctx, 0, "")
	require.NoError(t, err)

	require.NoError(t, merge.ApplyBatch(ctx, dst, src, batch))
	once := snapshot(t, dst)
	last, err := dst.LastTimestamp(ctx)
	require.NoError(t, err)

	require.NoError(t, merge.ApplyBatch(ctx, dst, src, batch))
	twice := snapshot(t, dst)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("replay changed state (-once +twice):\n%s", diff)
	}
	if diff := cmp.Diff(snapshot(t, src), once); diff != "" {
		t.Fatalf("replica differs from source (-src +dst):\n%s", diff)
	}

	again, err := dst.LastTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, last, again, "second replay must not write")

	imported, err := dst.TransactionsAfter(ctx, 0, "")
	require.NoError(t, err)
	require.NotEmpty(t, imported)
	assert.Equal(t, models.ActorCloudImport, imported[0].Author)
}

func TestMergeRecords_DeleteWinsAndNoResurrection(t *testing.T) {
	ctx := context.Background()
	a := newStore(t)
	b := openAt(t, filepath.Join(t.TempDir(), "b.db"), models.ActorMainApp)

	board, err := a.CreateBoard(ctx, "Trip")
	require.NoError(t, err)
	item, err := a.CreateItem(ctx, models.ItemSpec{DisplayType: models.DisplayNote, Note: models.Ptr("v1")}, board)
	require.NoError(t, err)

	recs, err := a.Records(ctx, []string{board, item})
	require.NoError(t, err)
	require.NoError(t, b.MergeRecords(ctx, recs))

	// a edits while b deletes
	require.NoError(t, a.UpdateItem(ctx, item, models.ItemPatch{Note: models.Ptr("v2")}))
	require.NoError(t, b.DeleteItem(ctx, item))

	edited, err := a.Records(ctx, []string{item})
	require.NoError(t, err)
	require.NoError(t, b.MergeRecords(ctx, edited))
	_, err = b.Item(ctx, item)
	require.Error(t, err, "late edit must not resurrect the item")

	deleted, err := b.Records(ctx, []string{item})
	require.NoError(t, err)
	require.True(t, deleted[0].Deleted)
	require.NoError(t, a.MergeRecords(ctx, deleted))
	_, err = a.Item(ctx, item)
	require.Error(t, err)
}

func TestMergeRecords_PropertyLevelConvergence(t *testing.T) {
	ctx := context.Background()
	a := newStore(t)
	b := openAt(t, filepath.Join(t.TempDir(), "b.db"), models.ActorMainApp)

	board, err := a.CreateBoard(ctx, "Trip")
	require.NoError(t, err)
	item, err := a.CreateItem(ctx, models.ItemSpec{Name: models.Ptr("n0"), DisplayType: models.DisplayNote, Note: models.Ptr("v0")}, board)
	require.NoError(t, err)
	recs, err := a.Records(ctx, []string{board, item})
	require.NoError(t, err)
	require.NoError(t, b.MergeRecords(ctx, recs))

	require.NoError(t, a.UpdateItem(ctx, item, models.ItemPatch{Name: models.Ptr("from a")}))
	require.NoError(t, b.UpdateItem(ctx, item, models.ItemPatch{Note: models.Ptr("from b")}))

	ra, err := a.Records(ctx, []string{item})
	require.NoError(t, err)
	rb, err := b.Records(ctx, []string{item})
	require.NoError(t, err)
	require.NoError(t, a.MergeRecords(ctx, rb))
	require.NoError(t, b.MergeRecords(ctx, ra))

	ia, err := a.Item(ctx, item)
	require.NoError(t, err)
	ib, err := b.Item(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, "from a", *ia.Name)
	assert.Equal(t, "from b", *ia.Note)
	assert.Equal(t, *ia.Name, *ib.Name)
	assert.Equal(t, *ia.Note, *ib.Note)
	assert.Equal(t, models.DisplayNote, ib.DisplayType)
}

func TestMergeRecords_SkipsOrphansAndUnknownEntities(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.MergeRecords(ctx, []models.Record{
		{ID: "i1", Entity: models.EntityItem, Fields: map[string]any{models.FieldBoard: "nowhere"}, Clock: models.Clock{models.FieldBoard: 1}},
		{ID: "x1", Entity: "sticker"},
	})
	require.NoError(t, err)

	_, err = s.Item(ctx, "i1")
	require.Error(t, err)
	last, err := s.LastTimestamp(ctx)
	require.NoError(t, err)
	assert.Zero(t, last)
}

func remoteNote(id, boardID string, tags ...string) models.Record {
	return models.Record{
		ID:     id,
		Entity: models.EntityItem,
		Fields: map[string]any{
			models.FieldBoard:       boardID,
			models.FieldDisplayType: string(models.DisplayNote),
			models.FieldNote:        "remote",
			models.FieldTags:        models.StringSet(tags),
		},
		Clock: models.Clock{models.FieldBoard: 10, models.FieldDisplayType: 10, models.FieldNote: 10, models.FieldTags: 10},
	}
}

func TestMergeAvailable_ReturnsRecordsWaitingForOwners(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	gone, err := s.CreateBoard(ctx, "Gone")
	require.NoError(t, err)
	require.NoError(t, s.DeleteBoard(ctx, gone))

	pending, err := s.MergeAvailable(ctx, []models.Record{
		remoteNote("i1", "later"),
		remoteNote("i2", gone),
		{ID: "t1", Entity: models.EntityTag, Fields: map[string]any{models.FieldBoard: "later", models.FieldName: "todo"}, Clock: models.Clock{models.FieldName: 10}},
	})
	require.NoError(t, err)

	ids := make([]string, 0, len(pending))
	for _, r := range pending {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"i1", "t1"}, ids, "records of a deleted board are not waited for")
	_, err = s.Item(ctx, "i1")
	require.Error(t, err)
}

func TestMergeAvailable_ItemCompletedOnceTagArrives(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	board, err := s.CreateBoard(ctx, "Trip")
	require.NoError(t, err)

	pending, err := s.MergeAvailable(ctx, []models.Record{remoteNote("i1", board, "t1")})
	require.NoError(t, err)
	require.Len(t, pending, 1)

	it, err := s.Item(ctx, "i1")
	require.NoError(t, err)
	assert.Empty(t, it.TagIDs)
	assert.Zero(t, it.Clock[models.FieldTags], "an incomplete tag set keeps the local clock")

	tag := models.Record{
		ID: "t1", Entity: models.EntityTag,
		Fields: map[string]any{models.FieldBoard: board, models.FieldName: "todo", models.FieldColor: float64(models.TagGreen)},
		Clock:  models.Clock{models.FieldBoard: 10, models.FieldName: 10, models.FieldColor: 10},
	}
	pending, err = s.MergeAvailable(ctx, append(pending, tag))
	require.NoError(t, err)
	assert.Empty(t, pending)

	it, err = s.Item(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, it.TagIDs)
	assert.Equal(t, int64(10), it.Clock[models.FieldTags])
}

func TestMergeRecords_UnresolvedAssetFails(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	board, err := s.CreateBoard(ctx, "Trip")
	require.NoError(t, err)

	err = s.MergeRecords(ctx, []models.Record{{
		ID: "i1", Entity: models.EntityItem,
		Fields: map[string]any{models.FieldBoard: board, models.FieldDisplayType: "file", models.FieldData: models.AssetRef("k")},
		Clock:  models.Clock{models.FieldBoard: 1, models.FieldData: 1},
	}})
	require.Error(t, err)

	_, err = s.Item(ctx, "i1")
	require.Error(t, err, "failed merge must roll back")
}

func TestReadContext_RefreshAndEvict(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	board, err := s.CreateBoard(ctx, "Trip")
	require.NoError(t, err)
	item, err := s.CreateItem(ctx, models.ItemSpec{DisplayType: models.DisplayNote, Note: models.Ptr("v1")}, board)
	require.NoError(t, err)

	view := s.NewReadContext()
	it, err := view.Item(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, "v1", *it.Note)

	require.NoError(t, s.UpdateItem(ctx, item, models.ItemPatch{Note: models.Ptr("v2")}))
	it, err = view.Item(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, "v1", *it.Note, "cached until merged")

	batch, err := s.TransactionsAfter(ctx, 0, "")
	require.NoError(t, err)
	require.NoError(t, merge.ApplyBatch(ctx, view, s, batch))
	it, err = view.Item(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, "v2", *it.Note)
	assert.Equal(t, uint64(1), view.Generation())

	_, err = view.Board(ctx, board)
	require.NoError(t, err)
	require.NoError(t, s.RenameBoard(ctx, board, "Holiday"))
	require.NoError(t, s.DeleteItem(ctx, item))
	batch, err = s.TransactionsAfter(ctx, batch[len(batch)-1].Timestamp, "")
	require.NoError(t, err)
	require.NoError(t, merge.ApplyBatch(ctx, view, s, batch))

	b, err := view.Board(ctx, board)
	require.NoError(t, err)
	assert.Equal(t, "Holiday", b.Name)
	_, err = view.Item(ctx, item)
	require.Error(t, err)
}
