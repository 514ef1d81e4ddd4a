package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kibook/order-engine/internal/redisx"
)

// RedisPhoneSessions looks phone-session tokens up in the time-boxed store
// the identity provider writes them to.
type RedisPhoneSessions struct {
	Client *redis.Client
}

func (s *RedisPhoneSessions) Lookup(ctx context.Context, token string) (string, error) {
	userID, err := s.Client.Get(ctx, fmt.Sprintf(redisx.KeyPhoneSession, token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}
