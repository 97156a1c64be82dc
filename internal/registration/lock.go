package registration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const approvalLockTTL = 30 * time.Second

// RedisLocker implementa Locker com SETNX por cadastro, complementando o
// guard condicional do banco com uma rejeição antecipada de revisões
// simultâneas.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker cria o serializador de revisões.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire tenta reservar o cadastro para este revisor.
func (l *RedisLocker) Acquire(ctx context.Context, registrationID uuid.UUID) (bool, error) {
	return l.client.SetNX(ctx, lockKey(registrationID), "locked", approvalLockTTL).Result()
}

// Release libera a reserva; falhas apenas encurtam o TTL natural.
func (l *RedisLocker) Release(ctx context.Context, registrationID uuid.UUID) {
	if err := l.client.Del(ctx, lockKey(registrationID)).Err(); err != nil {
		log.Warn().Err(err).Str("registration_id", registrationID.String()).Msg("registration: falha ao liberar lock")
	}
}

func lockKey(registrationID uuid.UUID) string {
	return "registration:review:" + registrationID.String()
}
