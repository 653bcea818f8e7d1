package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-id-register/models"
)

func newTestRegistration(identityNumber string) models.Registration {
	return models.Registration{
		FullName:       "A",
		ContactNo:      "9999999999",
		DateOfBirth:    time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		Age:            25,
		IdentityNumber: identityNumber,
	}
}

func TestInMemoryStore_AssignsMonotonicIds(t *testing.T) {
	store := NewInMemoryRegistrationStore()
	ctx := context.Background()

	id1, err := store.Register(ctx, newTestRegistration("111122223333"))
	require.NoError(t, err)
	id2, err := store.Register(ctx, newTestRegistration("444455556666"))
	require.NoError(t, err)

	require.Equal(t, int64(1), id1)
	require.Equal(t, int64(2), id2)
	require.Equal(t, 2, store.Count())
}

func TestInMemoryStore_DuplicateIdentityNumber(t *testing.T) {
	store := NewInMemoryRegistrationStore()
	ctx := context.Background()

	_, err := store.Register(ctx, newTestRegistration("111122223333"))
	require.NoError(t, err)

	// Different personal details, same number.
	reg := newTestRegistration("111122223333")
	reg.FullName = "B"
	reg.Age = 42
	_, err = store.Register(ctx, reg)
	require.ErrorIs(t, err, ErrDuplicateIdentityNumber)
	require.Equal(t, 1, store.Count())
}

func TestInMemoryStore_CountsRegisterCalls(t *testing.T) {
	store := NewInMemoryRegistrationStore()
	require.Equal(t, 0, store.RegisterCalls())

	_, _ = store.Register(context.Background(), newTestRegistration("111122223333"))
	_, _ = store.Register(context.Background(), newTestRegistration("111122223333"))
	require.Equal(t, 2, store.RegisterCalls())
}

func TestInMemoryStore_ForcedFailure(t *testing.T) {
	store := NewInMemoryRegistrationStore()
	store.FailWith = errors.New("backend down")

	_, err := store.Register(context.Background(), newTestRegistration("111122223333"))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDuplicateIdentityNumber)
	require.Equal(t, 0, store.Count())
}

// TestInMemoryStore_ConcurrentDuplicateInserts verifies that concurrent
// registrations with the same identity number result in exactly one success.
func TestInMemoryStore_ConcurrentDuplicateInserts(t *testing.T) {
	store := NewInMemoryRegistrationStore()
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := store.Register(ctx, newTestRegistration("111122223333"))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, ErrDuplicateIdentityNumber) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), successCount.Load())
	require.Equal(t, int32(goroutines-1), conflictCount.Load())
	require.Equal(t, 1, store.Count())
}
