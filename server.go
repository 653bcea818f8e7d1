package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-id-register/metrics"
	"go-id-register/models"
)

const ERR_MARSHAL = "failed to marshal response message"

const (
	MsgNoFile             = "no file uploaded"
	MsgUnsupportedImage   = "unsupported image type, expected png or jpeg"
	MsgBadIdentityNumber  = "identity number must be exactly 12 digits"
	MsgExtractionFailed   = "failed to process image with OCR"
	MsgValidationOk       = "validation successful"
	MsgValidationRejected = "validation failed"
	MsgInvalidBody        = "invalid request body"
	MsgFieldsRequired     = "all fields are required"
	MsgBadDateOfBirth     = "date of birth must be formatted as 2006-01-02"
	MsgNegativeAge        = "age must not be negative"
	MsgInvalidToken       = "invalid or expired validation token"
	MsgDuplicate          = "this identity number is already registered"
	MsgStoreFailure       = "server error during registration"
	MsgRegistered         = "user registered successfully"
)

// maxUploadBytes bounds the multipart form held in memory per request.
const maxUploadBytes = 10 << 20

const DATE_FORMAT_CYMD = "2006-01-02"

type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	UseTls         bool   `json:"use_tls,omitempty"`
	TlsPrivKeyPath string `json:"tls_priv_key_path,omitempty"`
	TlsCertPath    string `json:"tls_cert_path,omitempty"`
}

// ServerState carries the pipeline collaborators. The handlers own no
// durable state themselves; the only shared mutable resource is the
// registration store, coordinated by its uniqueness constraint.
type ServerState struct {
	ocrClient         OcrClient
	crossValidator    CrossValidator
	registrationStore RegistrationStore
	tokenStorage      TokenStorage
	tokenCreator      TokenCreator
	metrics           *metrics.Metrics
}

type Server struct {
	server *http.Server
	config ServerConfig
}

func (s *Server) ListenAndServe() error {
	if s.config.UseTls {
		slog.Info("Starting server with TLS", "host", s.config.Host, "port", s.config.Port, "cert", s.config.TlsCertPath, "key", s.config.TlsPrivKeyPath)
		return s.server.ListenAndServeTLS(s.config.TlsCertPath, s.config.TlsPrivKeyPath)
	} else {
		slog.Info("Starting server without TLS", "host", s.config.Host, "port", s.config.Port)
		return s.server.ListenAndServe()
	}
}

func (s *Server) Stop() error {
	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		slog.Error("Error during server shutdown", "error", err)
	} else {
		slog.Info("Server shut down successfully")
	}
	return err
}

func NewServer(state *ServerState, config ServerConfig) (*Server, error) {
	slog.Info("Creating new server", "host", config.Host, "port", config.Port, "tls", config.UseTls)
	router := mux.NewRouter()

	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("Health check request received")
		err := json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		if err != nil {
			slog.Error("failed to write body to http response", "error", err)
		}
	})

	router.HandleFunc("/api/validate-document", func(w http.ResponseWriter, r *http.Request) {
		handleValidateDocument(state, w, r)
	})
	router.HandleFunc("/api/register", func(w http.ResponseWriter, r *http.Request) {
		handleRegister(state, w, r)
	})
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	slog.Debug("Registered all API routes")

	addr := fmt.Sprintf("%v:%v", config.Host, config.Port)
	srv := &http.Server{
		Handler: router,
		Addr:    addr,
		// Good practice: enforce timeouts for servers you create!
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	slog.Info("Server created successfully", "address", addr)
	return &Server{
		server: srv,
		config: config,
	}, nil
}

type ValidateDocumentResponse struct {
	Message         string                    `json:"message"`
	Accepted        bool                      `json:"accepted"`
	NameMatches     bool                      `json:"name_matches"`
	Data            *models.ExtractedDocument `json:"data,omitempty"`
	Reason          string                    `json:"reason,omitempty"`
	ValidationToken string                    `json:"validation_token,omitempty"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	Id      int64  `json:"id,omitempty"`
}

// handleValidateDocument runs the document check: extract the printed
// fields through the OCR client, cross-validate them against the claimed
// values, and hand out a single-use validation token on acceptance. It has
// no durable side effect.
func handleValidateDocument(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	slog.Info("Received request to validate a document")

	imageBytes, claimedNumber, claimedName, ok := decodeValidateDocumentRequest(w, r)
	if !ok {
		return
	}

	mimeType := http.DetectContentType(imageBytes)
	if mimeType != "image/png" && mimeType != "image/jpeg" {
		respondWithMessage(w, http.StatusBadRequest, MsgUnsupportedImage, "rejected unsupported image type", fmt.Errorf("detected %s", mimeType))
		return
	}

	slog.Debug("Extracting document fields", "image_bytes", len(imageBytes), "mime_type", mimeType)
	extracted, err := state.ocrClient.Extract(r.Context(), imageBytes, mimeType)
	if err != nil {
		respondWithMessage(w, http.StatusBadGateway, MsgExtractionFailed, "OCR extraction failed", err)
		return
	}

	verdict := state.crossValidator.Validate(claimedNumber, claimedName, extracted)
	if !verdict.Accepted {
		slog.Info("Document validation rejected", "reason", verdict.Reason, "name_matches", verdict.NameMatches)
		response := ValidateDocumentResponse{
			Message:     MsgValidationRejected,
			Accepted:    false,
			NameMatches: verdict.NameMatches,
			Data:        verdict.Extracted,
			Reason:      verdict.Reason,
		}
		if err := writeJSON(w, http.StatusOK, response); err != nil {
			respondWithMessage(w, http.StatusInternalServerError, ERR_MARSHAL, ERR_MARSHAL, err)
		}
		return
	}

	token, tokenId, err := state.tokenCreator.CreateValidationToken(claimedNumber)
	if err != nil {
		respondWithMessage(w, http.StatusInternalServerError, MsgStoreFailure, "failed to create validation token", err)
		return
	}
	if err := state.tokenStorage.StoreToken(tokenId, claimedNumber); err != nil {
		respondWithMessage(w, http.StatusInternalServerError, MsgStoreFailure, "failed to store validation token", err)
		return
	}

	response := ValidateDocumentResponse{
		Message:         MsgValidationOk,
		Accepted:        true,
		NameMatches:     verdict.NameMatches,
		Data:            verdict.Extracted,
		ValidationToken: token,
	}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithMessage(w, http.StatusInternalServerError, ERR_MARSHAL, ERR_MARSHAL, err)
		return
	}

	slog.Info("Document validation accepted", "name_matches", verdict.NameMatches)
}

// handleRegister persists a registration. Input shape is checked before the
// token, and the token before the store, so invalid submissions consume no
// store resources. The store call is never retried: a duplicate insert
// cannot succeed on retry and anything else is surfaced to the caller.
func handleRegister(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	slog.Info("Received request to register")

	var request models.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithMessage(w, http.StatusBadRequest, MsgInvalidBody, "failed to decode registration request", err)
		return
	}

	if request.FullName == "" || request.ContactNo == "" || request.DateOfBirth == "" || request.Age == nil || request.IdentityNumber == "" {
		respondWithMessage(w, http.StatusBadRequest, MsgFieldsRequired, "registration request with missing fields", nil)
		state.metrics.RecordRegistration("shape_error")
		return
	}
	if !IsValidIdentityNumber(request.IdentityNumber) {
		respondWithMessage(w, http.StatusBadRequest, MsgBadIdentityNumber, "registration request with malformed identity number", nil)
		state.metrics.RecordRegistration("shape_error")
		return
	}
	dateOfBirth, err := time.Parse(DATE_FORMAT_CYMD, request.DateOfBirth)
	if err != nil {
		respondWithMessage(w, http.StatusBadRequest, MsgBadDateOfBirth, "registration request with malformed date of birth", err)
		state.metrics.RecordRegistration("shape_error")
		return
	}
	if *request.Age < 0 {
		respondWithMessage(w, http.StatusBadRequest, MsgNegativeAge, "registration request with negative age", nil)
		state.metrics.RecordRegistration("shape_error")
		return
	}

	if err := consumeValidationToken(state, request.ValidationToken, request.IdentityNumber); err != nil {
		respondWithMessage(w, http.StatusUnauthorized, MsgInvalidToken, "registration request with rejected validation token", err)
		state.metrics.RecordRegistration("token_rejected")
		return
	}

	id, err := state.registrationStore.Register(r.Context(), models.Registration{
		FullName:       request.FullName,
		ContactNo:      request.ContactNo,
		DateOfBirth:    dateOfBirth,
		Age:            *request.Age,
		IdentityNumber: request.IdentityNumber,
	})
	if errors.Is(err, ErrDuplicateIdentityNumber) {
		respondWithMessage(w, http.StatusConflict, MsgDuplicate, "registration rejected as duplicate", err)
		state.metrics.RecordRegistration("duplicate")
		return
	}
	if err != nil {
		// Deliberately generic: storage internals stay out of responses.
		respondWithMessage(w, http.StatusInternalServerError, MsgStoreFailure, "registration store failure", err)
		state.metrics.RecordRegistration("store_error")
		return
	}

	response := RegisterResponse{
		Message: MsgRegistered,
		Id:      id,
	}
	if err := writeJSON(w, http.StatusCreated, response); err != nil {
		respondWithMessage(w, http.StatusInternalServerError, ERR_MARSHAL, ERR_MARSHAL, err)
		return
	}

	state.metrics.RecordRegistration("registered")
	slog.Info("Registration completed", "id", id)
}

// consumeValidationToken verifies the token and burns it. The bound number
// is checked before consuming so a mismatched pairing does not waste a
// still-valid token; the consume step is the atomic single-use gate.
func consumeValidationToken(state *ServerState, token string, identityNumber string) error {
	if token == "" {
		return fmt.Errorf("no validation token supplied")
	}

	tokenId, boundNumber, err := state.tokenCreator.VerifyValidationToken(token)
	if err != nil {
		return err
	}
	if boundNumber != identityNumber {
		return fmt.Errorf("validation token was issued for a different identity number")
	}

	storedNumber, err := state.tokenStorage.ConsumeToken(tokenId)
	if err != nil {
		return err
	}
	if storedNumber != identityNumber {
		return fmt.Errorf("stored validation token does not match the identity number")
	}
	return nil
}

// decodeValidateDocumentRequest pulls the image and the claimed fields out
// of the multipart form. It writes the error response itself when the input
// is unusable.
func decodeValidateDocumentRequest(w http.ResponseWriter, r *http.Request) (imageBytes []byte, claimedNumber string, claimedName string, ok bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondWithMessage(w, http.StatusBadRequest, MsgNoFile, "failed to parse multipart form", err)
		return nil, "", "", false
	}

	file, _, err := r.FormFile("id_proof")
	if err != nil {
		respondWithMessage(w, http.StatusBadRequest, MsgNoFile, "validate-document request without a file", err)
		return nil, "", "", false
	}
	defer file.Close()

	imageBytes, err = io.ReadAll(file)
	if err != nil {
		respondWithMessage(w, http.StatusBadRequest, MsgNoFile, "failed to read uploaded file", err)
		return nil, "", "", false
	}
	if len(imageBytes) == 0 {
		respondWithMessage(w, http.StatusBadRequest, MsgNoFile, "validate-document request with an empty file", nil)
		return nil, "", "", false
	}

	claimedNumber = r.FormValue("identity_number")
	if !IsValidIdentityNumber(claimedNumber) {
		respondWithMessage(w, http.StatusBadRequest, MsgBadIdentityNumber, "validate-document request with malformed identity number", nil)
		return nil, "", "", false
	}

	return imageBytes, claimedNumber, r.FormValue("full_name"), true
}

// helpers ------------

func respondWithMessage(w http.ResponseWriter, code int, message string, logMsg string, e error) {
	if code >= http.StatusInternalServerError {
		slog.Error(logMsg, "error", e, "status_code", code)
	} else {
		slog.Warn(logMsg, "error", e, "status_code", code)
	}
	if err := writeJSON(w, code, RegisterResponse{Message: message}); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}

func closeRequestBody(r *http.Request) {
	if err := r.Body.Close(); err != nil {
		slog.Error("failed to close request body", "error", err)
	}
}

func requirePOST(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		slog.Debug("Non-POST request rejected", "method", r.Method, "path", r.URL.Path)
		respondWithMessage(w, http.StatusMethodNotAllowed, "method not allowed", "invalid method", nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	slog.Debug("Writing JSON response", "status_code", status)
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal JSON payload", "error", err)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(payload)
	if err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
	return nil
}
