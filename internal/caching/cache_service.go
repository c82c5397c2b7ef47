package caching

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type CacheService interface {
	// Tenant stats caching
	GetTenantMemberCount(ctx context.Context, tenantID uuid.UUID) (int, bool, error)
	SetTenantMemberCount(ctx context.Context, tenantID uuid.UUID, count int, ttl time.Duration) error
	DeleteTenantMemberCount(ctx context.Context, tenantID uuid.UUID) error

	// Rate limiting
	IsRateLimited(ctx context.Context, key string, limit int) (bool, error)
	IncrementRateLimit(ctx context.Context, key string, window time.Duration) error

	// Generic string operations
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Accept redis://host:port style addresses as well as bare host:port.
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	}

	return &redisCacheService{client: client}
}

func memberCountKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("kompello:tenant_members:%s", tenantID.String())
}

func (r *redisCacheService) GetTenantMemberCount(ctx context.Context, tenantID uuid.UUID) (int, bool, error) {
	val, err := r.client.Get(ctx, memberCountKey(tenantID)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil // cache miss
		}
		return 0, false, err
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, nil
	}
	return count, true, nil
}

func (r *redisCacheService) SetTenantMemberCount(ctx context.Context, tenantID uuid.UUID, count int, ttl time.Duration) error {
	return r.client.Set(ctx, memberCountKey(tenantID), strconv.Itoa(count), ttl).Err()
}

func (r *redisCacheService) DeleteTenantMemberCount(ctx context.Context, tenantID uuid.UUID) error {
	return r.client.Del(ctx, memberCountKey(tenantID)).Err()
}

func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int) (bool, error) {
	val, err := r.client.Get(ctx, "kompello:ratelimit:"+key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return false, nil
	}
	return count >= limit, nil
}

func (r *redisCacheService) IncrementRateLimit(ctx context.Context, key string, window time.Duration) error {
	fullKey := "kompello:ratelimit:" + key
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	_ = incr
	return nil
}

func (r *redisCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, "kompello:"+key, value, ttl).Err()
}

func (r *redisCacheService) GetString(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, "kompello:"+key).Result()
}

func (r *redisCacheService) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, "kompello:"+key).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
