package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// mockClock is a controllable clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCheckReservation_CustomerLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		MaxPerIP:       100,
		MaxPerCustomer: 3,
		Window:         time.Minute,
		Clock:          clock,
	})
	defer limiter.Close()

	phone := "+639171234567"
	ip := "203.0.113.10"

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		result := limiter.CheckReservation(phone, ip)
		if !result.Allowed {
			t.Fatalf("Attempt %d should be allowed, got blocked: %s", i+1, result.Reason)
		}
		limiter.RecordReservation(phone, ip)
	}

	clock.Advance(time.Second)
	result := limiter.CheckReservation(phone, ip)
	if result.Allowed {
		t.Fatal("4th attempt should be blocked")
	}
	if result.Reason != "customer_limit" {
		t.Errorf("Expected reason 'customer_limit', got '%s'", result.Reason)
	}
	// Window opened at the first attempt, 3s ago.
	if result.RetryAfter != 57*time.Second {
		t.Errorf("Expected RetryAfter 57s, got %v", result.RetryAfter)
	}

	// Another customer on the same address is unaffected.
	if result := limiter.CheckReservation("+639175550101", ip); !result.Allowed {
		t.Errorf("Other customer should be allowed, got blocked: %s", result.Reason)
	}

	clock.Advance(time.Minute)
	if result := limiter.CheckReservation(phone, ip); !result.Allowed {
		t.Errorf("Attempt after window should be allowed, got blocked: %s", result.Reason)
	}
}

func TestCheckReservation_IPLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		MaxPerIP:       2,
		MaxPerCustomer: 100,
		Window:         time.Minute,
		Clock:          clock,
	})
	defer limiter.Close()

	ip := "203.0.113.11"
	for _, phone := range []string{"+639170000001", "+639170000002"} {
		if result := limiter.CheckReservation(phone, ip); !result.Allowed {
			t.Fatalf("%s should be allowed, got blocked: %s", phone, result.Reason)
		}
		limiter.RecordReservation(phone, ip)
	}

	result := limiter.CheckReservation("+639170000003", ip)
	if result.Allowed {
		t.Fatal("3rd attempt from same IP should be blocked")
	}
	if result.Reason != "ip_limit" {
		t.Errorf("Expected reason 'ip_limit', got '%s'", result.Reason)
	}
}

func TestCheckReservation_IdentifierNormalization(t *testing.T) {
	limiter := New(&Config{MaxPerIP: 100, MaxPerCustomer: 1, Window: time.Minute, Clock: newMockClock()})
	defer limiter.Close()

	limiter.RecordReservation("ana@example.com", "203.0.113.12")
	for _, id := range []string{"ANA@EXAMPLE.COM", "  Ana@Example.com "} {
		if result := limiter.CheckReservation(id, "203.0.113.13"); result.Allowed {
			t.Errorf("%q should share the limit of ana@example.com", id)
		}
	}
}

func TestCheckAndRecord_SeparateOps(t *testing.T) {
	limiter := New(&Config{MaxPerIP: 1, MaxPerCustomer: 1, Window: time.Minute, Clock: newMockClock()})
	defer limiter.Close()

	for i := 0; i < 10; i++ {
		if result := limiter.CheckReservation("+639171234567", "203.0.113.14"); !result.Allowed {
			t.Fatalf("Check %d should be allowed without prior Record", i+1)
		}
	}
	limiter.RecordReservation("+639171234567", "203.0.113.14")
	if result := limiter.CheckReservation("+639171234567", "203.0.113.14"); result.Allowed {
		t.Error("Check after Record should be blocked")
	}
}

func TestCleanupDropsExpiredEntries(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{MaxPerIP: 5, MaxPerCustomer: 5, Window: time.Minute, Clock: clock})
	defer limiter.Close()

	limiter.RecordReservation("+639171234567", "203.0.113.15")
	clock.Advance(2 * time.Minute)
	limiter.cleanup()

	limiter.mu.RLock()
	defer limiter.mu.RUnlock()
	if len(limiter.byIP) != 0 || len(limiter.byID) != 0 {
		t.Fatalf("entries left after cleanup: ip=%d id=%d", len(limiter.byIP), len(limiter.byID))
	}
}

func TestMiddleware(t *testing.T) {
	limiter := New(&Config{MaxPerIP: 1, MaxPerCustomer: 1, Window: time.Minute, Clock: newMockClock()})
	defer limiter.Close()

	calls := 0
	handler := limiter.Middleware(false, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i, want := range []int{http.StatusCreated, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
		req.RemoteAddr = "203.0.113.16:40000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d status = %d, want %d", i+1, rec.Code, want)
		}
		if want == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "60" {
			t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
		}
	}
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
}

func TestGetClientIP_TrustProxy(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trustProxy bool
		expected   string
	}{
		{
			name:       "TrustProxy=true, XFF rightmost public IP",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50, 10.0.0.1"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "203.0.113.50",
		},
		{
			name:       "TrustProxy=true, XFF all private",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1, 10.0.0.1"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "10.0.0.1",
		},
		{
			name:       "TrustProxy=true, X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "203.0.113.51"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "203.0.113.51",
		},
		{
			name:       "TrustProxy=false, ignores XFF",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50"},
			remoteAddr: "192.168.1.100:54321",
			trustProxy: false,
			expected:   "192.168.1.100",
		},
		{
			name:       "RemoteAddr without port",
			headers:    map[string]string{},
			remoteAddr: "192.168.1.100",
			trustProxy: false,
			expected:   "192.168.1.100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := http.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r, tt.trustProxy); got != tt.expected {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip       string
		expected bool
	}{
		{"10.0.0.1", true},
		{"172.31.255.255", true},
		{"192.168.1.1", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"fe80::1", true},
		{"::ffff:10.0.0.1", true},
		{"::ffff:8.8.8.8", false},
		{"203.0.113.50", false},
		{"2001:4860:4860::8888", false},
		{"invalid", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := isPrivateIP(tt.ip); got != tt.expected {
				t.Errorf("isPrivateIP(%q) = %v, want %v", tt.ip, got, tt.expected)
			}
		})
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ana.reyes@example.com", "an***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"+639171234567", "***4567"},
		{"123", "***"},
		{"", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SanitizeIdentifier(tt.input); got != tt.expected {
				t.Errorf("SanitizeIdentifier(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNew_NilConfig(t *testing.T) {
	limiter := New(nil)
	defer limiter.Close()

	if limiter.config.MaxPerIP != 10 || limiter.config.MaxPerCustomer != 5 || limiter.config.Window != time.Minute {
		t.Errorf("New(nil) config = %+v, want defaults", limiter.config)
	}
}

func TestLimiter_Close(t *testing.T) {
	limiter := New(nil)
	limiter.CheckReservation("+639171234567", "1.2.3.4")

	done := make(chan struct{})
	go func() {
		limiter.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Close() should not hang")
	}
}

func TestConcurrentAccess(t *testing.T) {
	limiter := New(&Config{MaxPerIP: 1000, MaxPerCustomer: 1000, Window: time.Minute, Clock: newMockClock()})
	defer limiter.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if limiter.CheckReservation("+639171234567", "192.168.1.1").Allowed {
					limiter.RecordReservation("+639171234567", "192.168.1.1")
				}
			}
		}()
	}
	wg.Wait()
}
