package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"grading_backend/internal/config"
	"grading_backend/internal/model"
	"grading_backend/internal/util"

	"github.com/gin-gonic/gin"
)

func newRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api", AuthMiddleware(cfg))
	api.GET("/me", func(c *gin.Context) {
		util.Success(c, util.GetUserFromContext(c).UserID)
	})
	api.GET("/staff", RoleMiddleware(model.Faculty, model.TA), func(c *gin.Context) {
		util.Success(c, nil)
	})
	return r
}

func token(t *testing.T, role model.UserRole) string {
	t.Helper()
	tok, err := util.GenerateJWT(&model.Account{UUIDBase: model.UUIDBase{ID: "acc"}, UserID: "u1", Role: role}, "secret", time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func TestAuthAndRoleMiddleware(t *testing.T) {
	r := newRouter(&config.Config{JWT: config.JWTConfig{Secret: "secret"}})
	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{name: "missing token", path: "/api/me", want: http.StatusUnauthorized},
		{name: "garbage token", path: "/api/me", token: "nope", want: http.StatusUnauthorized},
		{name: "valid token", path: "/api/me", token: token(t, model.Student), want: http.StatusOK},
		{name: "student on staff route", path: "/api/staff", token: token(t, model.Student), want: http.StatusForbidden},
		{name: "ta on staff route", path: "/api/staff", token: token(t, model.TA), want: http.StatusOK},
		{name: "admin on staff route", path: "/api/staff", token: token(t, model.Admin), want: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("status %d, want %d", w.Code, tc.want)
			}
		})
	}
}
