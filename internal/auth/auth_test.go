package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	password := "testpassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if hash == password {
		t.Error("Hash should not equal plaintext password")
	}
	if !CheckPassword(password, hash) {
		t.Error("CheckPassword should return true for correct password")
	}
	if CheckPassword("wrongpassword", hash) {
		t.Error("CheckPassword should return false for incorrect password")
	}

	hash2, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password second time: %v", err)
	}
	if hash == hash2 {
		t.Error("Same password should produce different hashes due to salt")
	}
}

func TestGenerateToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		tok, err := GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken failed: %v", err)
		}
		if len(tok) != 44 {
			t.Errorf("Expected 44 character token, got %d", len(tok))
		}
		if seen[tok] {
			t.Fatalf("Duplicate token generated: %s", tok)
		}
		seen[tok] = true
	}
}

type staticValidator map[string]string

func (v staticValidator) ValidateToken(_ context.Context, token string) (string, bool) {
	id, ok := v[token]
	return id, ok
}

func TestMiddleware(t *testing.T) {
	mw := Middleware(staticValidator{"good": "user-1"}, "/api/login")

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := UserID(r.Context())
		w.Write([]byte(id))
	}))

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"public path skips auth", "/api/login", "", http.StatusOK, ""},
		{"missing token", "/api/sessions", "", http.StatusUnauthorized, ""},
		{"invalid token", "/api/sessions", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid token", "/api/sessions", "Bearer good", http.StatusOK, "user-1"},
		{"query token", "/ws?token=good", "", http.StatusOK, "user-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("Expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}
