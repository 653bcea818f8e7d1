package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-id-register/metrics"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestReadConfigFile(t *testing.T) {
	path := writeTempConfig(t, `{
		"server_config": {"host": "0.0.0.0", "port": 8080},
		"postgres_dsn": "postgres://localhost/registrations",
		"token_signing_secret": "secret",
		"token_ttl_minutes": 5,
		"storage_type": "memory",
		"ocr": {
			"mode": "real",
			"endpoint": "https://ocr.example.com/extract",
			"field_map": {"name_field": "name", "identity_number_field": "aadhar"}
		}
	}`)

	config, err := readConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, 8080, config.ServerConfig.Port)
	require.Equal(t, "memory", config.StorageType)
	require.Equal(t, 5, config.TokenTtlMinutes)
	require.Equal(t, "real", config.Ocr.Mode)
	require.Equal(t, "aadhar", config.Ocr.FieldMap.IdentityNumberField)
}

func TestReadConfigFile_MissingFile(t *testing.T) {
	_, err := readConfigFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestReadConfigFile_InvalidJson(t *testing.T) {
	path := writeTempConfig(t, "{not json")
	_, err := readConfigFile(path)
	require.Error(t, err)
}

func TestCreateTokenStorage(t *testing.T) {
	storage, err := createTokenStorage(&Config{StorageType: "memory"}, time.Minute)
	require.NoError(t, err)
	require.IsType(t, &InMemoryTokenStorage{}, storage)

	_, err = createTokenStorage(&Config{StorageType: "carrier-pigeon"}, time.Minute)
	require.Error(t, err)
}

func TestCreateOcrClient(t *testing.T) {
	m := (*metrics.Metrics)(nil)

	base := OcrConfig{
		Endpoint: "https://ocr.example.com/extract",
		FieldMap: OcrFieldMap{NameField: "name", IdentityNumberField: "aadhar"},
	}

	real := base
	real.Mode = "real"
	client, err := createOcrClient(&real, m)
	require.NoError(t, err)
	require.IsType(t, &RestOcrClient{}, client)

	simulated := base
	simulated.Mode = "simulated"
	simulated.PlaceholderName = "Test User Name"
	simulated.PlaceholderNumber = "987654321098"
	client, err = createOcrClient(&simulated, m)
	require.NoError(t, err)
	require.IsType(t, &SimulatedOcrClient{}, client)

	invalid := base
	invalid.Mode = "guess"
	_, err = createOcrClient(&invalid, m)
	require.Error(t, err)

	noEndpoint := OcrConfig{Mode: "real"}
	_, err = createOcrClient(&noEndpoint, m)
	require.Error(t, err)
}
