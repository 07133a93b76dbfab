package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// WithdrawalBook keeps balances owed to recipients whose push payout failed.
// Balances survive engine restarts; Take is atomic so a recipient cannot
// withdraw the same balance twice.
type WithdrawalBook struct {
	client *redis.Client
}

func NewWithdrawalBook(client *redis.Client) *WithdrawalBook {
	return &WithdrawalBook{client: client}
}

func balanceKey(account string) string {
	return fmt.Sprintf("withdrawal:%s", account)
}

func (b *WithdrawalBook) Credit(ctx context.Context, account string, amount uint64) error {
	return b.client.IncrBy(ctx, balanceKey(account), int64(amount)).Err()
}

func (b *WithdrawalBook) Take(ctx context.Context, account string) (uint64, error) {
	luaScript := `
        local balance = redis.call('GET', KEYS[1])
        if balance == false then
            return 0
        end
        redis.call('DEL', KEYS[1])
        return balance
    `

	result, err := b.client.Eval(ctx, luaScript, []string{balanceKey(account)}).Result()
	if err != nil {
		return 0, err
	}

	switch v := result.(type) {
	case int64:
		return uint64(v), nil
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, err
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unexpected balance type %T", result)
	}
}

func (b *WithdrawalBook) Balance(ctx context.Context, account string) (uint64, error) {
	result, err := b.client.Get(ctx, balanceKey(account)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseUint(result, 10, 64)
}
