package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRateLimiter(rdb), mr
}

// hit runs one request with the given client IP through the limited handler
// and returns the response status.
func hit(t *testing.T, limiter echo.MiddlewareFunc, ip string) int {
	t.Helper()
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/user/login", nil)
	req.RemoteAddr = ip + ":51234"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := limiter(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	return rec.Code
}

func TestLimit_AllowsUpToMax(t *testing.T) {
	rl, _ := newTestLimiter(t)
	limited := rl.Limit("login", 3, time.Minute)

	for i := 0; i < 3; i++ {
		if code := hit(t, limited, "203.0.113.7"); code != http.StatusOK {
			t.Fatalf("request %d got %d, want 200", i+1, code)
		}
	}
	if code := hit(t, limited, "203.0.113.7"); code != http.StatusTooManyRequests {
		t.Errorf("request over limit got %d, want 429", code)
	}
}

func TestLimit_PerIPIsolation(t *testing.T) {
	rl, _ := newTestLimiter(t)
	limited := rl.Limit("login", 1, time.Minute)

	if code := hit(t, limited, "203.0.113.7"); code != http.StatusOK {
		t.Fatalf("first IP got %d", code)
	}
	if code := hit(t, limited, "203.0.113.7"); code != http.StatusTooManyRequests {
		t.Fatalf("first IP second hit got %d, want 429", code)
	}
	// A different client is a different counter.
	if code := hit(t, limited, "198.51.100.9"); code != http.StatusOK {
		t.Errorf("second IP got %d, want 200", code)
	}
}

func TestLimit_ScopeIsolation(t *testing.T) {
	rl, _ := newTestLimiter(t)
	login := rl.Limit("login", 1, time.Minute)
	signup := rl.Limit("signup", 1, time.Minute)

	if code := hit(t, login, "203.0.113.7"); code != http.StatusOK {
		t.Fatalf("login got %d", code)
	}
	// Exhausting one scope leaves the other untouched.
	if code := hit(t, signup, "203.0.113.7"); code != http.StatusOK {
		t.Errorf("signup got %d, want 200", code)
	}
}

func TestLimit_WindowExpiry(t *testing.T) {
	rl, mr := newTestLimiter(t)
	limited := rl.Limit("login", 1, time.Minute)

	if code := hit(t, limited, "203.0.113.7"); code != http.StatusOK {
		t.Fatalf("first hit got %d", code)
	}
	if code := hit(t, limited, "203.0.113.7"); code != http.StatusTooManyRequests {
		t.Fatalf("second hit got %d, want 429", code)
	}

	mr.FastForward(time.Minute + time.Second)

	if code := hit(t, limited, "203.0.113.7"); code != http.StatusOK {
		t.Errorf("hit after window got %d, want 200", code)
	}
}

func TestLimit_FailsOpenWhenRedisDown(t *testing.T) {
	rl, mr := newTestLimiter(t)
	limited := rl.Limit("login", 1, time.Minute)
	mr.Close()

	// No Redis means no limiting, not an outage.
	for i := 0; i < 3; i++ {
		if code := hit(t, limited, "203.0.113.7"); code != http.StatusOK {
			t.Fatalf("request %d got %d, want 200", i+1, code)
		}
	}
}
