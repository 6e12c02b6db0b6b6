package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"cvoptimizer/internal/config"
	"cvoptimizer/internal/errors"
)

// walletScript reads or mutates one wallet hash atomically, creating it
// with the initial balance first.
//
// KEYS[1] wallet hash
// ARGV[1] op: get | login | logout | add | spend
// ARGV[2] amount
// ARGV[3] initial tokens
// ARGV[4] ttl in milliseconds, 0 for none
//
// Returns {tokens, logged_in, ok}.
var walletScript = redis.NewScript(`
local key = KEYS[1]
local op = ARGV[1]
local amount = tonumber(ARGV[2])
local ttl = tonumber(ARGV[4])

if redis.call('EXISTS', key) == 0 then
  redis.call('HSET', key, 'tokens', tonumber(ARGV[3]), 'logged_in', 0)
end

local ok = 1
if op == 'login' then
  redis.call('HSET', key, 'logged_in', 1)
elseif op == 'logout' then
  redis.call('HSET', key, 'logged_in', 0)
elseif op == 'add' then
  redis.call('HINCRBY', key, 'tokens', amount)
elseif op == 'spend' then
  local tokens = tonumber(redis.call('HGET', key, 'tokens'))
  if amount > 0 and tokens >= amount then
    redis.call('HINCRBY', key, 'tokens', -amount)
  else
    ok = 0
  end
end

if ttl > 0 then
  redis.call('PEXPIRE', key, ttl)
end

return {tonumber(redis.call('HGET', key, 'tokens')), tonumber(redis.call('HGET', key, 'logged_in')), ok}
`)

// RedisStore keeps wallets in Redis hashes so several server instances
// share balances.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	initial   int
	logger    *errors.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis, instruments the client with OpenTelemetry
// and checks the connection.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig, initial int, logger *errors.Logger) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "Redis address is required", nil)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to instrument Redis tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to instrument Redis metrics: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.NewNetworkError(errors.ErrCodeStoreFailed,
			fmt.Sprintf("Failed to connect to Redis at %s", cfg.Addr), err)
	}

	if logger != nil {
		logger.Info("Connected to Redis wallet store", "addr", cfg.Addr, "db", cfg.DB)
	}

	return newRedisStore(client, cfg, initial, logger), nil
}

func newRedisStore(client *redis.Client, cfg config.RedisConfig, initial int, logger *errors.Logger) *RedisStore {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &RedisStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
		initial:   initial,
		logger:    logger,
	}
}

func (r *RedisStore) key(sessionID string) string {
	return r.keyPrefix + sessionID
}

func (r *RedisStore) run(ctx context.Context, sessionID, op string, amount int) (State, bool, error) {
	if err := validSession(sessionID); err != nil {
		return State{}, false, err
	}

	values, err := walletScript.Run(ctx, r.client, []string{r.key(sessionID)},
		op, amount, r.initial, r.ttl.Milliseconds()).Int64Slice()
	if err != nil {
		r.logger.LogError(err, "Wallet script failed", "session_id", sessionID, "op", op)
		return State{}, false, errors.NewNetworkError(errors.ErrCodeStoreFailed, "Wallet store operation failed", err)
	}
	if len(values) != 3 {
		return State{}, false, errors.NewInternalError(errors.ErrCodeStoreFailed,
			fmt.Sprintf("Unexpected wallet script reply of length %d", len(values)), nil)
	}

	state := State{Tokens: int(values[0]), LoggedIn: values[1] == 1}
	return state, values[2] == 1, nil
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (State, error) {
	state, _, err := r.run(ctx, sessionID, "get", 0)
	return state, err
}

func (r *RedisStore) Login(ctx context.Context, sessionID string) (State, error) {
	state, _, err := r.run(ctx, sessionID, "login", 0)
	return state, err
}

func (r *RedisStore) Logout(ctx context.Context, sessionID string) (State, error) {
	state, _, err := r.run(ctx, sessionID, "logout", 0)
	return state, err
}

func (r *RedisStore) Spend(ctx context.Context, sessionID string, n int) (State, bool, error) {
	return r.run(ctx, sessionID, "spend", n)
}

func (r *RedisStore) Add(ctx context.Context, sessionID string, n int) (State, error) {
	if n <= 0 {
		return State{}, invalidAmount(n)
	}
	state, _, err := r.run(ctx, sessionID, "add", n)
	return state, err
}

// Ping checks the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
