package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sundayezeilo/bookmarker/internal/errx"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		data       any
		wantStatus int
		wantJSON   string
	}{
		{
			name:       "simple map",
			status:     http.StatusOK,
			data:       map[string]string{"access_token": "abc"},
			wantStatus: http.StatusOK,
			wantJSON:   `{"access_token":"abc"}`,
		},
		{
			name:   "nested user envelope",
			status: http.StatusCreated,
			data: map[string]any{
				"message": "User successfully created",
				"user":    map[string]string{"username": "alice", "email": "alice@example.com"},
			},
			wantStatus: http.StatusCreated,
			wantJSON:   `{"message":"User successfully created","user":{"email":"alice@example.com","username":"alice"}}`,
		},
		{
			name:       "empty list",
			status:     http.StatusOK,
			data:       []string{},
			wantStatus: http.StatusOK,
			wantJSON:   `[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()

			WriteJSON(rr, tt.status, tt.data)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type application/json, got %q", ct)
			}

			var got, want any
			if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if err := json.Unmarshal([]byte(tt.wantJSON), &want); err != nil {
				t.Fatalf("failed to unmarshal expected JSON: %v", err)
			}
			gotJSON, _ := json.Marshal(got)
			wantJSON, _ := json.Marshal(want)
			if string(gotJSON) != string(wantJSON) {
				t.Errorf("expected JSON %s, got %s", wantJSON, gotJSON)
			}
		})
	}
}

func TestWriteErr(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "validation",
			err:         errx.M("auth.service.Register", errx.Invalid, "username too short"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    "invalid_input",
			wantMessage: "username too short",
		},
		{
			name:        "conflict",
			err:         errx.M("bookmark.service.Create", errx.Conflict, "URL already exists"),
			wantStatus:  http.StatusConflict,
			wantCode:    "conflict",
			wantMessage: "URL already exists",
		},
		{
			name:        "unexpected",
			err:         errors.New("connection reset"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "internal_error",
			wantMessage: ServerErrorMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()

			WriteErr(rr, tt.err)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}

			var resp ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Error != tt.wantCode {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantCode)
			}
			if resp.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", resp.Message, tt.wantMessage)
			}
		})
	}
}

func TestWriteError_OmitsEmptyFields(t *testing.T) {
	rr := httptest.NewRecorder()

	WriteError(rr, http.StatusNotFound, "not_found", "", nil)

	var raw map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if _, ok := raw["message"]; ok {
		t.Error("expected message to be omitted")
	}
	if _, ok := raw["details"]; ok {
		t.Error("expected details to be omitted")
	}
}

func TestNoContent(t *testing.T) {
	rr := httptest.NewRecorder()

	NoContent(rr)

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rr.Body.String())
	}
}

func TestFail_LogsByKindAndWritesError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantLevel  string
		wantStatus int
	}{
		{"client error", errx.M("op", errx.Conflict, "URL already exists"), `"level":"WARN"`, http.StatusConflict},
		{"server error", errx.E("op", errx.Unavailable, errors.New("pool closed")), `"level":"ERROR"`, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			base := slog.New(slog.NewJSONHandler(&buf, nil))

			req := httptest.NewRequest(http.MethodPost, "/bookmarks", nil)
			req = req.WithContext(WithRequestID(req.Context(), "req-1"))
			rec := httptest.NewRecorder()

			Fail(req.Context(), rec, RequestLogger(base, req), "create failed", tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			logged := buf.String()
			for _, want := range []string{tt.wantLevel, `"request_id":"req-1"`, `"path":"/bookmarks"`, `"operation":"op"`} {
				if !strings.Contains(logged, want) {
					t.Errorf("log %q missing %s", logged, want)
				}
			}
		})
	}
}
