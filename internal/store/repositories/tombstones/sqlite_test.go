package tombstones

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetPurge(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	_, _, ok, err := r.Get(ctx, "i1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Put(ctx, "i1", models.EntityItem, 100))
	require.NoError(t, r.Put(ctx, "i1", models.EntityItem, 200))

	entity, ts, ok, err := r.Get(ctx, "i1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.EntityItem, entity)
	assert.Equal(t, int64(100), ts)

	require.NoError(t, r.Purge(ctx, 150))
	_, _, ok, err = r.Get(ctx, "i1")
	require.NoError(t, err)
	assert.False(t, ok)
}
