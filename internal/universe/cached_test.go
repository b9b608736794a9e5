package universe

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/logger"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/redis"
)

type countingSelector struct {
	policy contracts.SelectionPolicy
	ids    []string
	calls  int
}

func (c *countingSelector) Policy() contracts.SelectionPolicy { return c.policy }

func (c *countingSelector) Eligible(context.Context, time.Time) ([]string, error) {
	c.calls++
	return c.ids, nil
}

func TestCachedSelector_MissThenStore(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cache := redis.NewCache(redis.NewFromRedis(rdb), "ashare")
	next := &countingSelector{policy: contracts.SelectionPolicy{Name: "main"}, ids: []string{"000001.SZ", "600000.SH"}}

	key := "ashare:cache:" + redis.EligibleKey("main", next.policy.Fingerprint(), day("2024-01-04"))
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, []byte(`["000001.SZ","600000.SH"]`), time.Hour).SetVal("OK")

	sel := NewCachedSelector(next, cache, time.Hour, logger.Nop())
	got, err := sel.Eligible(context.Background(), day("2024-01-04"))
	require.NoError(t, err)
	assert.Equal(t, []string{"000001.SZ", "600000.SH"}, got)
	assert.Equal(t, 1, next.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedSelector_Hit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cache := redis.NewCache(redis.NewFromRedis(rdb), "ashare")
	next := &countingSelector{policy: contracts.SuspendedPolicy()}

	mock.ExpectGet("ashare:cache:" + redis.EligibleKey("suspended", next.policy.Fingerprint(), day("2024-01-04"))).
		SetVal(`["000001.SZ"]`)

	sel := NewCachedSelector(next, cache, time.Hour, logger.Nop())
	got, err := sel.Eligible(context.Background(), day("2024-01-04"))
	require.NoError(t, err)
	assert.Equal(t, []string{"000001.SZ"}, got)
	assert.Equal(t, 0, next.calls)
	assert.Equal(t, "suspended", sel.Policy().Name)
}

func TestCachedSelector_DisabledRedis(t *testing.T) {
	cache := redis.NewCache(redis.NewFromRedis(nil), "ashare")
	next := &countingSelector{policy: contracts.SelectionPolicy{Name: "all"}, ids: []string{"600000.SH"}}

	sel := NewCachedSelector(next, cache, time.Hour, logger.Nop())
	for i := 0; i < 2; i++ {
		got, err := sel.Eligible(context.Background(), day("2024-01-04"))
		require.NoError(t, err)
		assert.Equal(t, []string{"600000.SH"}, got)
	}
	assert.Equal(t, 2, next.calls)
}
