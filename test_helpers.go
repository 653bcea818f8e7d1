package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-id-register/models"
)

var testConfig = ServerConfig{
	Host:           "localhost",
	Port:           8081,
	UseTls:         false,
	TlsCertPath:    "",
	TlsPrivKeyPath: "",
}

const testBaseURL = "http://localhost:8081"
const testSigningSecret = "test-signing-secret"

// newTestState builds a ServerState with working in-memory collaborators.
// Individual tests swap in their own fakes before starting the server.
func newTestState(t *testing.T) (*ServerState, *fakeOcrClient, *InMemoryRegistrationStore, *InMemoryTokenStorage) {
	t.Helper()

	ocr := &fakeOcrClient{doc: models.ExtractedDocument{
		Name:           "Test User Name",
		IdentityNumber: "111122223333",
	}}
	store := NewInMemoryRegistrationStore()
	tokens := NewInMemoryTokenStorage(time.Minute)

	creator, err := NewHmacTokenCreator(testSigningSecret, time.Minute)
	require.NoError(t, err)

	state := &ServerState{
		ocrClient:         ocr,
		crossValidator:    CrossValidator{},
		registrationStore: store,
		tokenStorage:      tokens,
		tokenCreator:      creator,
		metrics:           nil, // promauto registers globally, keep tests off it
	}
	return state, ocr, store, tokens
}

func startTestServer(t *testing.T, state *ServerState) *Server {
	t.Helper()

	srv, err := NewServer(state, testConfig)
	require.NoError(t, err)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("server error: %v", err)
		}
	}()

	waitUntilHealthy(t, testBaseURL+"/api/health")
	t.Cleanup(func() {
		if err := srv.Stop(); err != nil {
			t.Logf("error shutting down server: %v", err)
		}
	})
	return srv
}

func waitUntilHealthy(t *testing.T, url string) {
	t.Helper()
	const maxAttempts = 50
	for i := 0; i < maxAttempts; i++ {
		if resp, err := http.Get(url); err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server did not start in time")
}

func postJSON[T any](t *testing.T, url string, payload any) (*http.Response, []byte, *T) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(b)
	}
	resp, err := http.Post(url, "application/json", body)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var v T
	_ = json.Unmarshal(respBody, &v)

	return resp, respBody, &v
}

// postMultipart submits a validate-document style form. A nil fileBytes
// omits the file part entirely.
func postMultipart[T any](t *testing.T, url string, fields map[string]string, fileBytes []byte) (*http.Response, []byte, *T) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileBytes != nil {
		part, err := writer.CreateFormFile("id_proof", "id_proof.png")
		require.NoError(t, err)
		_, err = part.Write(fileBytes)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	resp, err := http.Post(url, writer.FormDataContentType(), &buf)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var v T
	_ = json.Unmarshal(respBody, &v)

	return resp, respBody, &v
}

func mustStatus(t *testing.T, resp *http.Response, want int, body []byte) {
	t.Helper()
	require.Equalf(t, want, resp.StatusCode, "body: %s", body)
}

// validateDocument runs the document check bootstrap and returns the token.
func validateDocument(t *testing.T, identityNumber string) string {
	t.Helper()
	fields := map[string]string{"identity_number": identityNumber}
	resp, body, vr := postMultipart[ValidateDocumentResponse](t, testBaseURL+"/api/validate-document", fields, pngImage())
	mustStatus(t, resp, http.StatusOK, body)
	require.True(t, vr.Accepted, "body: %s", body)
	require.NotEmpty(t, vr.ValidationToken)
	return vr.ValidationToken
}

// Request builders

type regOpt func(*models.RegistrationRequest)

func withAge(age int) regOpt {
	return func(r *models.RegistrationRequest) { r.Age = &age }
}

func withoutField(field string) regOpt {
	return func(r *models.RegistrationRequest) {
		switch field {
		case "full_name":
			r.FullName = ""
		case "contact_no":
			r.ContactNo = ""
		case "date_of_birth":
			r.DateOfBirth = ""
		case "age":
			r.Age = nil
		case "identity_number":
			r.IdentityNumber = ""
		}
	}
}

func newRegistrationRequest(identityNumber, token string, opts ...regOpt) models.RegistrationRequest {
	age := 25
	r := models.RegistrationRequest{
		FullName:        "A",
		ContactNo:       "9999999999",
		DateOfBirth:     "2000-01-01",
		Age:             &age,
		IdentityNumber:  identityNumber,
		ValidationToken: token,
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}

// pngImage returns bytes that sniff as image/png.
func pngImage() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
}

// jpegImage returns bytes that sniff as image/jpeg.
func jpegImage() []byte {
	return append([]byte("\xff\xd8\xff\xe0"), make([]byte, 64)...)
}

// test doubles

type fakeOcrClient struct {
	doc   models.ExtractedDocument
	err   error
	calls atomic.Int32
}

func (c *fakeOcrClient) Extract(_ context.Context, _ []byte, _ string) (models.ExtractedDocument, error) {
	c.calls.Add(1)
	if c.err != nil {
		return models.ExtractedDocument{}, c.err
	}
	return c.doc, nil
}
