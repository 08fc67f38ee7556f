package vault

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrUnavailable wraps Redis transport failures.
	ErrUnavailable = errors.New("backup code store unavailable")
	// ErrMalformed is returned before any storage lookup for codes of the wrong length.
	ErrMalformed = errors.New("malformed backup code")
)

// consumeScript moves a code hash from the unused map to the spent map in
// one step. Whichever concurrent caller runs first wins; the loser sees
// a miss.
const consumeScript = `
local id = redis.call("HGET", KEYS[1], ARGV[1])
if not id then
  return {0, ""}
end
redis.call("HDEL", KEYS[1], ARGV[1])
redis.call("HSET", KEYS[2], ARGV[1], id .. "|" .. ARGV[2])
return {1, id}
`

var consumeLua = redis.NewScript(consumeScript)

// regenerateScript drops both maps and installs the new batch as one
// atomic unit.
const regenerateScript = `
redis.call("DEL", KEYS[1])
redis.call("DEL", KEYS[2])
for i = 1, #ARGV, 2 do
  redis.call("HSET", KEYS[1], ARGV[i], ARGV[i + 1])
end
return #ARGV / 2
`

var regenerateLua = redis.NewScript(regenerateScript)

// ConsumeResult is the outcome of a verify-and-consume attempt.
type ConsumeResult struct {
	Valid  bool
	CodeID string
}

// Vault is the Redis-backed backup code store.
type Vault struct {
	redis  *redis.Client
	prefix string
}

// New creates a vault with the given key prefix.
func New(client *redis.Client, prefix string) *Vault {
	if prefix == "" {
		prefix = "bcv"
	}
	return &Vault{redis: client, prefix: prefix}
}

func (v *Vault) unusedKey(identityID string) string {
	return v.prefix + ":u:" + identityID
}

func (v *Vault) spentKey(identityID string) string {
	return v.prefix + ":s:" + identityID
}

// Store persists the batch additively. Callers wanting replacement
// semantics use Regenerate.
func (v *Vault) Store(ctx context.Context, identityID string, codes []Code) error {
	if len(codes) == 0 {
		return nil
	}
	fields := make(map[string]string, len(codes))
	for _, code := range codes {
		fields[HashCode(identityID, Canonicalize(code.Plaintext))] = code.ID
	}
	if err := v.redis.HSet(ctx, v.unusedKey(identityID), fields).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Regenerate atomically replaces every stored code for the identity with
// the new batch. On error the previous batch is untouched.
func (v *Vault) Regenerate(ctx context.Context, identityID string, codes []Code) error {
	argv := make([]interface{}, 0, len(codes)*2)
	for _, code := range codes {
		argv = append(argv, HashCode(identityID, Canonicalize(code.Plaintext)), code.ID)
	}
	keys := []string{v.unusedKey(identityID), v.spentKey(identityID)}
	if err := regenerateLua.Run(ctx, v.redis, keys, argv...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// VerifyAndConsume checks the code and marks it used in a single atomic
// step. A spent, unknown, or wrong-length code yields Valid=false; the
// wrong-length case is decided locally without touching storage.
func (v *Vault) VerifyAndConsume(ctx context.Context, identityID, code string) (ConsumeResult, error) {
	canonical := Canonicalize(code)
	if len(canonical) != CodeLength {
		return ConsumeResult{}, ErrMalformed
	}

	keys := []string{v.unusedKey(identityID), v.spentKey(identityID)}
	usedAt := strconv.FormatInt(time.Now().Unix(), 10)
	raw, err := consumeLua.Run(ctx, v.redis, keys, HashCode(identityID, canonical), usedAt).Slice()
	if err != nil {
		return ConsumeResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(raw) < 2 {
		return ConsumeResult{}, fmt.Errorf("%w: malformed script reply", ErrUnavailable)
	}

	hit, _ := raw[0].(int64)
	if hit != 1 {
		return ConsumeResult{Valid: false}, nil
	}
	codeID, _ := raw[1].(string)
	return ConsumeResult{Valid: true, CodeID: codeID}, nil
}

// CountUnused returns how many codes remain spendable for the identity.
func (v *Vault) CountUnused(ctx context.Context, identityID string) (int, error) {
	n, err := v.redis.HLen(ctx, v.unusedKey(identityID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(n), nil
}

// DeleteAll removes every code, spent or not, for the identity.
func (v *Vault) DeleteAll(ctx context.Context, identityID string) error {
	if err := v.redis.Del(ctx, v.unusedKey(identityID), v.spentKey(identityID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
