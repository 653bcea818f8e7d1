package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHmacTokenCreator_RoundTrip(t *testing.T) {
	creator, err := NewHmacTokenCreator("secret", time.Minute)
	require.NoError(t, err)

	token, tokenId, err := creator.CreateValidationToken("111122223333")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotEmpty(t, tokenId)

	gotId, gotNumber, err := creator.VerifyValidationToken(token)
	require.NoError(t, err)
	require.Equal(t, tokenId, gotId)
	require.Equal(t, "111122223333", gotNumber)
}

func TestHmacTokenCreator_UniqueTokenIds(t *testing.T) {
	creator, err := NewHmacTokenCreator("secret", time.Minute)
	require.NoError(t, err)

	_, id1, err := creator.CreateValidationToken("111122223333")
	require.NoError(t, err)
	_, id2, err := creator.CreateValidationToken("111122223333")
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
}

func TestHmacTokenCreator_RejectsWrongSecret(t *testing.T) {
	creator, err := NewHmacTokenCreator("secret", time.Minute)
	require.NoError(t, err)
	other, err := NewHmacTokenCreator("different-secret", time.Minute)
	require.NoError(t, err)

	token, _, err := creator.CreateValidationToken("111122223333")
	require.NoError(t, err)

	_, _, err = other.VerifyValidationToken(token)
	require.Error(t, err)
}

func TestHmacTokenCreator_RejectsExpiredToken(t *testing.T) {
	creator, err := NewHmacTokenCreator("secret", time.Nanosecond)
	require.NoError(t, err)

	token, _, err := creator.CreateValidationToken("111122223333")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, _, err = creator.VerifyValidationToken(token)
	require.Error(t, err)
}

func TestHmacTokenCreator_RejectsGarbage(t *testing.T) {
	creator, err := NewHmacTokenCreator("secret", time.Minute)
	require.NoError(t, err)

	_, _, err = creator.VerifyValidationToken("not.a.jwt")
	require.Error(t, err)

	_, _, err = creator.VerifyValidationToken("")
	require.Error(t, err)
}

func TestNewHmacTokenCreator_Validation(t *testing.T) {
	_, err := NewHmacTokenCreator("", time.Minute)
	require.Error(t, err)

	_, err = NewHmacTokenCreator("secret", 0)
	require.Error(t, err)

	_, err = NewHmacTokenCreator("secret", -time.Minute)
	require.Error(t, err)
}
