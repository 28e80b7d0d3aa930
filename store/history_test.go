package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-dbscan/dbscan"
)

func TestFitLogTriggers(t *testing.T) {
	trigs := fitLogTriggers("main.dbscan_fits")
	require.Len(t, trigs, 3)
	assert.Contains(t, trigs[0], "CREATE TRIGGER IF NOT EXISTS main_dbscan_fits_ai AFTER INSERT ON main.dbscan_fits")
	assert.Contains(t, trigs[1], "'update'")
	assert.Contains(t, trigs[2], "OLD.dataset_id")
	assert.True(t, strings.Contains(trigs[0], "ON CONFLICT(dataset_id) DO UPDATE SET next_seq = next_seq + 1"))
}

func TestSQLiteStore_FitHistory(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.PutDataset(ctx, "train", scenario))

	events, err := s.FitHistory(ctx, "train")
	require.NoError(t, err)
	assert.Empty(t, events)

	first, err := dbscan.New(0.5, 2)
	require.NoError(t, err)
	_, err = s.Cluster(ctx, "train", first)
	require.NoError(t, err)
	second, err := dbscan.New(0.5, 1)
	require.NoError(t, err)
	_, err = s.Cluster(ctx, "train", second)
	require.NoError(t, err)
	require.NoError(t, s.DeleteDataset(ctx, "train"))

	events, err = s.FitHistory(ctx, "train")
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, "fit", events[0].Op)
	assert.Equal(t, 2, events[0].MinPts)
	assert.Equal(t, 2, events[0].Clusters)

	assert.Equal(t, "fit", events[1].Op)
	assert.Equal(t, 1, events[1].MinPts)
	assert.Equal(t, 3, events[1].Clusters)

	assert.Equal(t, int64(3), events[2].Seq)
	assert.Equal(t, "delete", events[2].Op)
	assert.Equal(t, "euclidean", string(events[2].Metric))
}
