package middleware

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/marketplace/internal/domain/model"
	pkgAuth "github.com/polkiloo/marketplace/internal/pkg/auth"
	testhelpers "github.com/polkiloo/marketplace/internal/test"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func protectedRouter(parser TokenParser) *gin.Engine {
	router := gin.New()
	router.Use(AuthRequired(parser))
	router.GET("/secure", func(c *gin.Context) {
		id, _ := c.Get(UserIDContextKey)
		role, _ := c.Get(RoleContextKey)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role})
	})
	return router
}

func TestAuthRequiredRejectsMissingToken(t *testing.T) {
	router := protectedRouter(testhelpers.TokenParserStub{ID: 1})
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthRequiredRejectsInvalidToken(t *testing.T) {
	router := protectedRouter(testhelpers.TokenParserStub{Err: pkgAuth.ErrInvalidToken})
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthRequiredParserFailure(t *testing.T) {
	router := protectedRouter(testhelpers.TokenParserStub{Err: errors.New("backend down")})
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestAuthRequiredAcceptsBearerHeader(t *testing.T) {
	router := protectedRouter(testhelpers.TokenParserStub{ID: 42, Role: model.RoleSeller})
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("42")) || !bytes.Contains(w.Body.Bytes(), []byte("seller")) {
		t.Fatalf("identity not propagated: %s", w.Body.String())
	}
}

func TestAuthRequiredAcceptsCookie(t *testing.T) {
	router := protectedRouter(testhelpers.TokenParserStub{ID: 7})
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.AddCookie(&http.Cookie{Name: authCookieName, Value: "token"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestSetAuthCookie(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	SetAuthCookie(c, "issued")
	if got := w.Header().Get("Authorization"); got != "Bearer issued" {
		t.Fatalf("unexpected header %q", got)
	}
	if cookies := w.Header().Values("Set-Cookie"); len(cookies) == 0 {
		t.Fatal("expected auth cookie to be set")
	}
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	router := gin.New()
	router.Use(RequestLogger(logger))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(buf.Bytes(), []byte("/ping")) {
		t.Fatalf("request not logged: %s", buf.String())
	}
}

func TestDecompressRequest(t *testing.T) {
	router := gin.New()
	router.Use(DecompressRequest())
	router.POST("/echo", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.String(http.StatusOK, string(body))
	})

	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	if _, err := zw.Write([]byte("hello")); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/echo", &compressed)
	req.Header.Set("Content-Encoding", "gzip")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "hello" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}
