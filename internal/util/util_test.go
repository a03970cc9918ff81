package util

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func TestHandleServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", NewValidationError("questions[0]", "bad"), http.StatusBadRequest},
		{"not found", &NotFoundError{Resource: "quiz", ID: 1, Err: gorm.ErrRecordNotFound}, http.StatusNotFound},
		{"conflict", &ConflictError{Message: "busy", Err: ErrEditInProgress}, http.StatusConflict},
		{"permission", ErrPermissionDenied, http.StatusForbidden},
		{"wrapped permission", fmt.Errorf("delete comment: %w", ErrPermissionDenied), http.StatusForbidden},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			HandleServiceError(c, tt.err)
			if w.Code != tt.code {
				t.Errorf("status = %d, want %d", w.Code, tt.code)
			}
		})
	}
}

func TestJWTRoundTrip(t *testing.T) {
	tok, err := GenerateJWT(Claims{UserID: 42, Username: "ada", IsSuperuser: true}, "s3cret", time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ParseJWT(tok, "s3cret")
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "ada" || !claims.IsSuperuser {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := ParseJWT(tok, "other"); err == nil {
		t.Error("token accepted with wrong secret")
	}

	expired, _ := GenerateJWT(Claims{UserID: 1, Username: "old"}, "s3cret", -time.Minute)
	if _, err := ParseJWT(expired, "s3cret"); err == nil {
		t.Error("expired token accepted")
	}
}

func TestParseIDAndPaging(t *testing.T) {
	for in, want := range map[string]bool{"1": true, "0": false, "-3": false, "x": false, "": false} {
		if _, ok := ParseID(in); ok != want {
			t.Errorf("ParseID(%q) ok = %v, want %v", in, ok, want)
		}
	}

	if p, l := Paging(0, 500); p != 1 || l != 20 {
		t.Errorf("Paging(0, 500) = %d, %d", p, l)
	}
	if p, l := Paging(3, 50); p != 3 || l != 50 {
		t.Errorf("Paging(3, 50) = %d, %d", p, l)
	}
}

func TestValidateMimeType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if mime, err := ValidateMimeType(bytes.NewReader(png), []string{MimeImage}); err != nil || mime != "image/png" {
		t.Errorf("png: %q %v", mime, err)
	}
	if _, err := ValidateMimeType(bytes.NewReader([]byte("hello")), []string{MimeImage}); err == nil {
		t.Error("text accepted as image")
	}

	if !HasAllowedExtension("Photo.JPG", AllowedImageExtensions) {
		t.Error("upper-case extension rejected")
	}
	if HasAllowedExtension("script.svg", AllowedImageExtensions) {
		t.Error("svg accepted")
	}
}
