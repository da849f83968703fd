package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"settlement/internal/domain"
	"settlement/internal/http/middleware"
)

func TestRespondDomainError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ValidationError{Field: "amount", Msg: "bad"}, http.StatusBadRequest, "validation_error"},
		{domain.NotFoundError{Resource: "booking", ID: "b1"}, http.StatusNotFound, "not_found"},
		{domain.ConflictError{Resource: "booking"}, http.StatusConflict, "conflict"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		r := gin.New()
		r.Use(middleware.RequestID())
		r.GET("/", func(c *gin.Context) { RespondDomainError(c, tc.err) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, w.Code)
		}
		var body ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Code != tc.code || body.RequestID == "" {
			t.Fatalf("unexpected body %+v", body)
		}
		if tc.status == http.StatusInternalServerError && body.Error != "internal server error" {
			t.Fatalf("internal details leaked: %q", body.Error)
		}
	}
}

func TestQueryTimeEndOfDay(t *testing.T) {
	to, err := queryTime("2026-03-14", true)
	if err != nil || to.Format("15:04:05") != "23:59:59" {
		t.Fatalf("expected end of day, got %v (%v)", to, err)
	}
	from, err := queryTime("2026-03-14T10:00:00Z", false)
	if err != nil || from.Hour() != 10 {
		t.Fatalf("rfc3339: %v (%v)", from, err)
	}
	if v, err := queryTime("", false); v != nil || err != nil {
		t.Fatalf("empty should be nil")
	}
}
