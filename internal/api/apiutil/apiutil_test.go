package apiutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"Court 1"}`, false},
		{"unknown field", `{"name":"Court 1","extra":true}`, true},
		{"trailing data", `{"name":"a"}{"name":"b"}`, true},
		{"empty", ``, true},
		{"malformed", `{"name":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst payload
			err := DecodeJSON(r, &dst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantError string
		wantField string
	}{
		{
			name:      "handler error",
			err:       HandlerError{Status: http.StatusConflict, Message: "taken", Err: errors.New("x")},
			wantCode:  http.StatusConflict,
			wantError: "taken",
		},
		{
			name:      "field error",
			err:       FieldError{Field: "date", Reason: "is required"},
			wantCode:  http.StatusBadRequest,
			wantError: "date is required",
			wantField: "date",
		},
		{
			name:      "unknown error hides detail",
			err:       errors.New("disk I/O error"),
			wantCode:  http.StatusInternalServerError,
			wantError: "Internal Server Error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var body ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tt.wantError || body.Field != tt.wantField {
				t.Fatalf("body = %+v", body)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("PHT", 8*3600)
	got, err := ParseDate(" 2026-02-01 ", "date", loc)
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if !got.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, loc)) {
		t.Fatalf("date = %v", got)
	}
	for _, raw := range []string{"", "02/01/2026", "2026-13-01"} {
		var fieldErr FieldError
		if _, err := ParseDate(raw, "date", loc); !errors.As(err, &fieldErr) || fieldErr.Field != "date" {
			t.Errorf("ParseDate(%q) err = %v, want date FieldError", raw, err)
		}
	}
}

func TestParseBoundedInt(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 7, false},
		{"14", 14, false},
		{"0", 0, true},
		{"63", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseBoundedInt(tt.raw, "days", 7, 1, 62)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseBoundedInt(%q) = %d, %v", tt.raw, got, err)
		}
	}
}

func TestParsePositiveInt64Field(t *testing.T) {
	if got, err := ParsePositiveInt64Field("42", "id"); err != nil || got != 42 {
		t.Fatalf("got %d, %v", got, err)
	}
	for _, raw := range []string{"", "0", "-1", "x"} {
		if _, err := ParsePositiveInt64Field(raw, "id"); err == nil {
			t.Errorf("ParsePositiveInt64Field(%q) should fail", raw)
		}
	}
}
