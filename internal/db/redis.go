package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/airenas/chapter-transcriber/internal/domain"
	"github.com/airenas/chapter-transcriber/internal/secure"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/redis/go-redis/v9"
)

// RedisStore mirrors the state cache to Redis, one encrypted record per key.
type RedisStore struct {
	client  *redis.Client
	crypter *secure.Crypter
	ttl     time.Duration
}

// NewRedisStore connects to connStr and encrypts records with encryptionKey.
func NewRedisStore(connStr string, encryptionKey string) (*RedisStore, error) {
	opt, err := redis.ParseURL(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	goapp.Log.Info().Str("redis", opt.Addr).Int("db", opt.DB).Msg("state store")
	crypter, err := secure.NewCrypter(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("create crypter: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opt), crypter: crypter}, nil
}

func (s *RedisStore) key(cacheKey string) string {
	return fmt.Sprintf("state:%s", cacheKey)
}

// Save writes one state record. TTL 0: cached transcripts are kept until
// their audio disappears.
func (s *RedisStore) Save(ctx context.Context, key string, state *domain.TranscriptionState) error {
	bs, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	encrypted, err := s.crypter.Encrypt(bs)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	return s.client.Set(ctx, s.key(key), encrypted, s.ttl).Err()
}

// LoadAll scans the state prefix and returns decrypted raw records.
func (s *RedisStore) LoadAll(ctx context.Context) (map[string][]byte, error) {
	res := map[string][]byte{}
	iter := s.client.Scan(ctx, 0, s.key("*"), 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		bs, err := s.client.Get(ctx, full).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, fmt.Errorf("get '%s': %w", full, err)
		}
		decrypted, err := s.crypter.Decrypt(bs)
		if err != nil {
			goapp.Log.Warn().Err(err).Str("key", full).Msg("skip undecryptable state entry")
			continue
		}
		res[full[len("state:"):]] = decrypted
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan states: %w", err)
	}
	return res, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
