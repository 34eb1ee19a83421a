package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSONSetsStatusAndContentType(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Accepted", http.StatusAccepted},
		{"Conflict", http.StatusConflict},
		{"BadGateway", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()

			WriteJSON(recorder, tt.statusCode, map[string]string{"page": "home"})

			if recorder.Code != tt.statusCode {
				t.Errorf("expected status %d, got %d", tt.statusCode, recorder.Code)
			}
			if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type application/json, got %s", ct)
			}
		})
	}
}

func TestWriteJSONEncodesStructBody(t *testing.T) {
	type video struct {
		VideoID string `json:"video_id"`
	}
	recorder := httptest.NewRecorder()

	WriteJSON(recorder, http.StatusOK, []video{{VideoID: "v1"}})

	var decoded []video
	if err := json.NewDecoder(recorder.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if len(decoded) != 1 || decoded[0].VideoID != "v1" {
		t.Errorf("unexpected body: %+v", decoded)
	}
}

func TestWriteErrorUsesErrorBody(t *testing.T) {
	recorder := httptest.NewRecorder()

	WriteError(recorder, http.StatusUnsupportedMediaType, "only video files can be uploaded")

	var body ErrorBody
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if recorder.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", recorder.Code)
	}
	if body.Error != "only video files can be uploaded" {
		t.Errorf("unexpected error message %q", body.Error)
	}
}

func TestDecodeJSON(t *testing.T) {
	type query struct {
		Query string `json:"query"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"query":"dog"}`, false},
		{"unknown field", `{"query":"dog","extra":1}`, true},
		{"trailing data", `{"query":"dog"}{"query":"cat"}`, true},
		{"not json", `dog`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var q query
			err := DecodeJSON(httptest.NewRecorder(), req, &q)
			if tt.wantErr {
				if !errors.Is(err, ErrBadBody) {
					t.Errorf("expected ErrBadBody, got %v", err)
				}
				return
			}
			if err != nil || q.Query != "dog" {
				t.Errorf("unexpected result %+v (%v)", q, err)
			}
		})
	}
}

func TestDecodeJSONRejectsOversizedBody(t *testing.T) {
	body := `{"query":"` + strings.Repeat("a", maxJSONBody) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var q struct {
		Query string `json:"query"`
	}
	if err := DecodeJSON(httptest.NewRecorder(), req, &q); !errors.Is(err, ErrBadBody) {
		t.Errorf("expected ErrBadBody, got %v", err)
	}
}
