package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newGateRouter(a *Authority) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(a.Gate(PublicPrefixes))
	router.GET("/auth", func(c *gin.Context) { c.String(http.StatusOK, "auth") })
	router.POST("/api/chat", func(c *gin.Context) { c.String(http.StatusOK, "chat") })
	router.GET("/dashboard", func(c *gin.Context) { c.String(http.StatusOK, "dashboard") })
	return router
}

func TestGatePublicPathPassesWithoutCookie(t *testing.T) {
	router := newGateRouter(NewAuthority("test-secret", time.Hour))

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/api/chat", nil),
		httptest.NewRequest(http.MethodGet, "/auth", nil),
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", req.URL.Path, w.Code)
		}
	}
}

func TestGateProtectedRedirectsWithoutCookie(t *testing.T) {
	router := newGateRouter(NewAuthority("test-secret", time.Hour))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != AuthEntryPath {
		t.Fatalf("expected redirect to %s, got %s", AuthEntryPath, loc)
	}
}

func TestGateProtectedPassesWithValidCookie(t *testing.T) {
	a := NewAuthority("test-secret", time.Hour)
	router := newGateRouter(a)

	token, err := a.Issue("1", "a@b.com", "A")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestGateInvalidCookieDeletedAndRedirected(t *testing.T) {
	router := newGateRouter(NewAuthority("test-secret", time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "not-a-token"})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	setCookie := w.Header().Get("Set-Cookie")
	if !strings.Contains(setCookie, CookieName+"=") || !strings.Contains(setCookie, "Max-Age=0") {
		t.Fatalf("expected session cookie deletion, got %q", setCookie)
	}
}
