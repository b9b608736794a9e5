package checkpoint

import (
	"context"
	"time"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
)

// Resolver finds the resume point of a derived table.
// ⭐ SSOT: 체크포인트는 저장하지 않고 항상 테이블에서 계산
type Resolver struct {
	store contracts.Store
}

// NewResolver creates a resolver over store
func NewResolver(store contracts.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the latest date in table, restricted to filter when it is
// non-nil. An empty or missing table resolves to def.
func (r *Resolver) Resolve(ctx context.Context, table string, def time.Time, filter *contracts.EntityFilter) (time.Time, error) {
	latest, ok, err := r.store.LatestTimestamp(ctx, table, filter)
	if err != nil {
		return time.Time{}, contracts.Unavailable("latest", table, err)
	}
	if !ok {
		return contracts.Day(def), nil
	}
	return contracts.Day(latest), nil
}
