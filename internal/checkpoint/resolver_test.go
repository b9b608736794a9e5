package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
	"github.com/TMG-TheMoneyGame/AShareData/internal/store/memory"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type failingStore struct {
	contracts.Store
	err error
}

func (f failingStore) LatestTimestamp(context.Context, string, *contracts.EntityFilter) (time.Time, bool, error) {
	return time.Time{}, false, f.err
}

func TestResolve_MissingTableUsesDefault(t *testing.T) {
	r := NewResolver(memory.NewStore())

	got, err := r.Resolve(context.Background(), contracts.TableConstLimit, day("1999-05-04"), nil)
	require.NoError(t, err)
	assert.Equal(t, day("1999-05-04"), got)
}

func TestResolve_LatestDate(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, contracts.TableConstLimit, []contracts.Observation{
		contracts.NewObservation(day("2024-01-02"), "600000.SH", contracts.FieldLimitFlag, 1),
		contracts.NewObservation(day("2024-01-04"), "000001.SZ", contracts.FieldLimitFlag, -1),
	}))

	r := NewResolver(store)
	got, err := r.Resolve(ctx, contracts.TableConstLimit, day("1999-05-04"), nil)
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-04"), got)
}

func TestResolve_EntityFilter(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, contracts.TableCustomIndex, []contracts.Observation{
		contracts.NewObservation(day("2024-01-03"), "IDX_A", contracts.FieldReturn, 0.01),
		contracts.NewObservation(day("2024-01-05"), "IDX_B", contracts.FieldReturn, -0.02),
	}))

	r := NewResolver(store)

	got, err := r.Resolve(ctx, contracts.TableCustomIndex, day("2010-01-04"), &contracts.EntityFilter{ID: "IDX_A"})
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-03"), got)

	got, err = r.Resolve(ctx, contracts.TableCustomIndex, day("2010-01-04"), &contracts.EntityFilter{ID: "IDX_NEW"})
	require.NoError(t, err)
	assert.Equal(t, day("2010-01-04"), got, "unseen entity resolves to its own default")
}

func TestResolve_StoreFailure(t *testing.T) {
	r := NewResolver(failingStore{err: errors.New("connection refused")})

	_, err := r.Resolve(context.Background(), contracts.TableAdjFactor, day("2000-01-01"), nil)
	require.Error(t, err)

	var sue *contracts.StoreUnavailableError
	require.True(t, errors.As(err, &sue))
	assert.Equal(t, contracts.TableAdjFactor, sue.Table)
	assert.Equal(t, "latest", sue.Op)
}
