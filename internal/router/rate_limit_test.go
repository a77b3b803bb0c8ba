package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	handlershared "github.com/beanstamp/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func TestKeyByStaffAndIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/staff/verifications/resolve", strings.NewReader(`{"token":"123456"}`))
	c.Request.RemoteAddr = "1.2.3.4:5678"

	if key := KeyByStaffAndIP(c); key != "1.2.3.4" {
		t.Fatalf("anonymous key want 1.2.3.4 got %s", key)
	}

	c.Set(handlershared.ContextStaffID, "staff-7")
	if key := KeyByStaffAndIP(c); key != "staff-7|1.2.3.4" {
		t.Fatalf("staff key want staff-7|1.2.3.4 got %s", key)
	}
}

func TestRateLimitMiddlewareWithoutClient(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(nil, RateLimitRule{WindowSeconds: 60, MaxRequests: 1}, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("expected handler response body, got %s", w.Body.String())
	}
}

func TestRateLimitRuleDisabledWithoutWindow(t *testing.T) {
	cases := []struct {
		rule RateLimitRule
		want bool
	}{
		{RateLimitRule{WindowSeconds: 60, MaxRequests: 5}, true},
		{RateLimitRule{WindowSeconds: 0, MaxRequests: 5}, false},
		{RateLimitRule{WindowSeconds: 60, MaxRequests: 0}, false},
	}
	for _, tc := range cases {
		if got := tc.rule.enabled(); got != tc.want {
			t.Fatalf("rule %+v: want enabled=%v got %v", tc.rule, tc.want, got)
		}
	}
	if (RateLimitRule{}).label() != "default" {
		t.Fatalf("expected default label for unnamed rule")
	}
	if (RateLimitRule{Name: "verify"}).label() != "verify" {
		t.Fatalf("expected rule name as label")
	}
}
