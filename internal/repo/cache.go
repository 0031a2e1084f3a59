package repo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const balanceTTL = 5 * time.Minute

// Entries are "<version>:<balance>". The script replaces an entry only with a
// strictly newer row version.
const cacheBalanceScript = `local cur = redis.call("get", KEYS[1])
if cur then
  local v = tonumber(string.match(cur, "^(%d+):"))
  if v and v >= tonumber(ARGV[1]) then return 0 end
end
redis.call("set", KEYS[1], ARGV[2], "px", ARGV[3])
return 1`

func balanceKey(userID uuid.UUID) string { return fmt.Sprintf("balance:%s", userID) }

// CacheBalance stores a committed balance read at the given row version. A
// write carrying an older or equal version than the cached one is dropped.
func (r *Repository) CacheBalance(ctx context.Context, userID uuid.UUID, bal decimal.Decimal, version uint64) error {
	if r.rdb == nil {
		return nil
	}
	v := strconv.FormatUint(version, 10)
	return r.rdb.Eval(ctx, cacheBalanceScript, []string{balanceKey(userID)},
		v, v+":"+bal.String(), strconv.FormatInt(balanceTTL.Milliseconds(), 10)).Err()
}

// GetCachedBalance reads Redis. A miss or a disabled cache returns redis.Nil.
func (r *Repository) GetCachedBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	if r.rdb == nil {
		return decimal.Zero, redis.Nil
	}
	str, err := r.rdb.Get(ctx, balanceKey(userID)).Result()
	if err != nil {
		return decimal.Zero, err
	}
	_, bal, ok := strings.Cut(str, ":")
	if !ok {
		return decimal.Zero, fmt.Errorf("malformed cache entry %q", str)
	}
	return decimal.NewFromString(bal)
}
