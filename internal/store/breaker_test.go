package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
	"github.com/TMG-TheMoneyGame/AShareData/internal/store/memory"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/logger"
)

// flakyStore fails reads while down is set
type flakyStore struct {
	*memory.Store
	down  bool
	calls int
}

func (f *flakyStore) Read(ctx context.Context, q contracts.Query) (*contracts.Frame, error) {
	f.calls++
	if f.down {
		return nil, errors.New("connection reset")
	}
	return f.Store.Read(ctx, q)
}

func obs(id string) []contracts.Observation {
	return []contracts.Observation{
		contracts.NewObservation(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), id, contracts.FieldLimitFlag, 1),
	}
}

func TestBreaker_PassesThrough(t *testing.T) {
	b := NewBreaker(memory.NewStore(), BreakerConfig{Timeout: time.Minute}, logger.Nop())
	ctx := context.Background()

	require.NoError(t, b.Insert(ctx, contracts.TableConstLimit, obs("A")))

	f, err := b.Read(ctx, contracts.Query{Table: contracts.TableConstLimit})
	require.NoError(t, err)
	assert.Equal(t, 1, f.Len())

	at, ok, err := b.LatestTimestamp(ctx, contracts.TableConstLimit, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2024, at.Year())
}

func TestBreaker_DuplicateKeyDoesNotTrip(t *testing.T) {
	b := NewBreaker(memory.NewStore(), BreakerConfig{ConsecutiveFailures: 1, Timeout: time.Minute}, logger.Nop())
	ctx := context.Background()

	require.NoError(t, b.Insert(ctx, contracts.TableConstLimit, obs("A")))
	err := b.Insert(ctx, contracts.TableConstLimit, obs("A"))
	assert.ErrorIs(t, err, contracts.ErrDuplicateKey)

	var sue *contracts.StoreUnavailableError
	assert.False(t, errors.As(err, &sue))
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	flaky := &flakyStore{Store: memory.NewStore(), down: true}
	b := NewBreaker(flaky, BreakerConfig{ConsecutiveFailures: 2, Timeout: time.Minute}, logger.Nop())
	ctx := context.Background()
	q := contracts.Query{Table: contracts.TableStockDaily}

	for i := 0; i < 2; i++ {
		_, err := b.Read(ctx, q)
		var sue *contracts.StoreUnavailableError
		require.True(t, errors.As(err, &sue))
		assert.Equal(t, "read", sue.Op)
		assert.Equal(t, contracts.TableStockDaily, sue.Table)
	}
	assert.Equal(t, "open", b.State())

	// open circuit fails fast without reaching the store
	flaky.down = false
	_, err := b.Read(ctx, q)
	var sue *contracts.StoreUnavailableError
	require.True(t, errors.As(err, &sue))
	assert.Equal(t, 2, flaky.calls)
}
