package reliability

import (
	"context"
	"testing"
	"time"

	testingpkg "github.com/aristath/llamaforge/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchive_FullRunVersion(t *testing.T) {
	store := newMemObjectStore()
	svc := newTestService(store, time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))

	v := testingpkg.NewVersionFixture("full-run", 150)
	_, err := svc.Archive(context.Background(), v)
	require.NoError(t, err)

	archives, err := svc.ListArchives(context.Background())
	require.NoError(t, err)
	require.Len(t, archives, 1)

	got, metadata, err := svc.Fetch(context.Background(), archives[0].Key)
	require.NoError(t, err)
	assert.Equal(t, 150, metadata.Steps)
	assert.Equal(t, v.Metrics, got.Metrics)
	assert.Equal(t, v.Config, got.Config)
	assert.Equal(t, v.CreatedAt, got.CreatedAt.UTC())
}
