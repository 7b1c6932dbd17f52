package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"medibook/internal/config"
)

// lazyClient builds a client without contacting a server; the v1 driver
// only dials on the first operation.
func lazyClient(t *testing.T) *mongo.Client {
	t.Helper()
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return client
}

func TestHolderDialsOnceForConcurrentCallers(t *testing.T) {
	client := lazyClient(t)
	var dials atomic.Int32
	release := make(chan struct{})

	holder := NewHolderWithDialer("test", func(ctx context.Context) (*mongo.Client, error) {
		dials.Add(1)
		<-release
		return client, nil
	})

	var wg sync.WaitGroup
	results := make([]*mongo.Database, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			db, err := holder.Database(context.Background())
			assert.NoError(t, err)
			results[i] = db
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), dials.Load())
	for _, db := range results {
		require.NotNil(t, db)
		assert.Equal(t, "test", db.Name())
		assert.Same(t, client, db.Client())
	}
}

func TestHolderDoesNotDialUntilUsed(t *testing.T) {
	var dials atomic.Int32
	holder := NewHolderWithDialer("test", func(ctx context.Context) (*mongo.Client, error) {
		dials.Add(1)
		return nil, errors.New("unreachable")
	})
	require.NoError(t, holder.Close(context.Background()))
	assert.Equal(t, int32(0), dials.Load())
}

func TestHolderRetriesAfterFailedConnect(t *testing.T) {
	client := lazyClient(t)
	var dials atomic.Int32
	holder := NewHolderWithDialer("test", func(ctx context.Context) (*mongo.Client, error) {
		if dials.Add(1) == 1 {
			return nil, errors.New("connection refused")
		}
		return client, nil
	})

	_, err := holder.Database(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	coll, err := holder.Collection(context.Background(), "appointments")
	require.NoError(t, err)
	assert.Equal(t, "appointments", coll.Name())
	assert.Equal(t, int32(2), dials.Load())
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := OpenRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestOpenRedisFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := OpenRedis(context.Background(), config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}
