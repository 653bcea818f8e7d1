package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound reports that a validation token id is unknown, already
// consumed, or expired.
var ErrTokenNotFound = errors.New("validation token unknown or expired")

// TokenStorage tracks outstanding validation tokens between the document
// check and the registration call. Should be safe to use concurrently.
type TokenStorage interface {
	// StoreToken records the token id with the identity number it was
	// issued for. Storing an id that already exists just overwrites it.
	StoreToken(tokenId string, identityNumber string) error

	// ConsumeToken retrieves and removes the identity number for the given
	// token id in one step, so a token registers at most once even when
	// two calls race. Returns ErrTokenNotFound for unknown, consumed or
	// expired ids.
	ConsumeToken(tokenId string) (string, error)
}

// ------------------------------------------------------------------------------

type RedisTokenStorage struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

func NewRedisTokenStorage(client *redis.Client, namespace string, ttl time.Duration) *RedisTokenStorage {
	return &RedisTokenStorage{client: client, namespace: namespace, ttl: ttl}
}

func createKey(namespace, tokenId string) string {
	return fmt.Sprintf("%s:validation:%s", namespace, tokenId)
}

func (s *RedisTokenStorage) StoreToken(tokenId string, identityNumber string) error {
	ctx := context.Background()
	return s.client.Set(ctx, createKey(s.namespace, tokenId), identityNumber, s.ttl).Err()
}

func (s *RedisTokenStorage) ConsumeToken(tokenId string) (string, error) {
	ctx := context.Background()
	// GETDEL keeps retrieve-and-remove atomic on the server side.
	value, err := s.client.GetDel(ctx, createKey(s.namespace, tokenId)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consume validation token: %w", err)
	}
	return value, nil
}

// ------------------------------------------------------------------------------

type storedToken struct {
	identityNumber string
	expiresAt      time.Time
}

type InMemoryTokenStorage struct {
	mutex  sync.Mutex
	tokens map[string]storedToken
	ttl    time.Duration
	clock  func() time.Time
}

// InMemoryTokenStorageOption configures an InMemoryTokenStorage.
type InMemoryTokenStorageOption func(*InMemoryTokenStorage)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) InMemoryTokenStorageOption {
	return func(s *InMemoryTokenStorage) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewInMemoryTokenStorage(ttl time.Duration, opts ...InMemoryTokenStorageOption) *InMemoryTokenStorage {
	s := &InMemoryTokenStorage{
		tokens: make(map[string]storedToken),
		ttl:    ttl,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *InMemoryTokenStorage) StoreToken(tokenId string, identityNumber string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.tokens[tokenId] = storedToken{
		identityNumber: identityNumber,
		expiresAt:      s.clock().Add(s.ttl),
	}
	return nil
}

func (s *InMemoryTokenStorage) ConsumeToken(tokenId string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	token, ok := s.tokens[tokenId]
	if !ok {
		return "", ErrTokenNotFound
	}
	delete(s.tokens, tokenId)
	if s.clock().After(token.expiresAt) {
		return "", ErrTokenNotFound
	}
	return token.identityNumber, nil
}
