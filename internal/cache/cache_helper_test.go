package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	server := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: server.Addr()})
}

type cachedVolunteer struct {
	ID       string `json:"id"`
	Selected bool   `json:"selected"`
}

func TestCacheHelper_GetSet(t *testing.T) {
	ctx := context.Background()
	helper := NewCacheHelper(testClient(t), "volunteer:")

	in := cachedVolunteer{ID: "vol-1", Selected: true}
	require.NoError(t, helper.Set(ctx, "vol-1", in, time.Minute))

	var out cachedVolunteer
	require.NoError(t, helper.Get(ctx, "vol-1", &out))
	assert.Equal(t, in, out)

	err := helper.Get(ctx, "vol-missing", &out)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCacheHelper_Delete(t *testing.T) {
	ctx := context.Background()
	helper := NewCacheHelper(testClient(t), "volunteer:")

	require.NoError(t, helper.Set(ctx, "vol-1", cachedVolunteer{ID: "vol-1"}, time.Minute))
	require.NoError(t, helper.Delete(ctx, "vol-1"))

	exists, err := helper.Exists(ctx, "vol-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCacheHelper_InvalidatePattern(t *testing.T) {
	ctx := context.Background()
	helper := NewCacheHelper(testClient(t), "directory:")

	require.NoError(t, helper.Set(ctx, "available", []string{"vol-1"}, time.Minute))
	require.NoError(t, helper.Set(ctx, "all:page1", []string{"vol-1", "vol-2"}, time.Minute))

	require.NoError(t, helper.InvalidatePattern(ctx, "*"))

	exists, err := helper.Exists(ctx, "available")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCacheHelper_CacheOrExecute(t *testing.T) {
	ctx := context.Background()
	helper := NewCacheHelper(testClient(t), "task:")

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return cachedVolunteer{ID: "vol-1"}, nil
	}

	var out cachedVolunteer
	require.NoError(t, helper.CacheOrExecute(ctx, "k", &out, time.Minute, fetch))

	// The cache write happens asynchronously; wait for it before the
	// second read.
	require.Eventually(t, func() bool {
		exists, err := helper.Exists(ctx, "k")
		return err == nil && exists
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, helper.CacheOrExecute(ctx, "k", &out, time.Minute, fetch))

	// Second call was served from cache.
	assert.Equal(t, 1, calls)
	assert.Equal(t, "vol-1", out.ID)
}

func TestCacheHelper_NilClientDegradesGracefully(t *testing.T) {
	ctx := context.Background()
	helper := NewCacheHelper(nil, "task:")

	assert.NoError(t, helper.Set(ctx, "k", "v", time.Minute))

	var out string
	assert.ErrorIs(t, helper.Get(ctx, "k", &out), ErrCacheNotAvailable)
}

func TestCacheManager_InvalidateVolunteer(t *testing.T) {
	ctx := context.Background()
	client := testClient(t)
	manager := NewCacheManager(client)

	require.NoError(t, manager.Volunteer.Set(ctx, "id:vol-1", cachedVolunteer{ID: "vol-1"}, time.Minute))
	require.NoError(t, manager.Directory.Set(ctx, "available", []string{"vol-1"}, time.Minute))

	require.NoError(t, manager.InvalidateVolunteer(ctx, "vol-1"))

	exists, err := manager.Volunteer.Exists(ctx, "id:vol-1")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = manager.Directory.Exists(ctx, "available")
	require.NoError(t, err)
	assert.False(t, exists)
}
