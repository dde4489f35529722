package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"legacy-portal/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	handler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"account": AccountID(c)})
	}
	r.GET("/", handler)
	r.POST("/", handler)
	return r
}

func do(r http.Handler, method string, header map[string]string, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	if remote != "" {
		req.RemoteAddr = remote
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAndRequireAdmin(t *testing.T) {
	m := auth.NewManager("secret", "legacy-portal")
	player, _ := m.IssueToken(5, "player", 0, time.Hour)
	admin, _ := m.IssueToken(6, "admin", 3, time.Hour)

	r := newEngine(JWT(m))
	if w := do(r, http.MethodGet, nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status %d", w.Code)
	}
	if w := do(r, http.MethodGet, map[string]string{"Authorization": "Basic abc"}, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong scheme: status %d", w.Code)
	}
	if w := do(r, http.MethodGet, map[string]string{"Authorization": "Bearer " + player}, ""); w.Code != http.StatusOK {
		t.Errorf("valid token: status %d", w.Code)
	}

	ra := newEngine(JWT(m), RequireAdmin())
	if w := do(ra, http.MethodGet, map[string]string{"Authorization": "Bearer " + player}, ""); w.Code != http.StatusForbidden {
		t.Errorf("player on admin route: status %d", w.Code)
	}
	if w := do(ra, http.MethodGet, map[string]string{"Authorization": "Bearer " + admin}, ""); w.Code != http.StatusOK {
		t.Errorf("admin on admin route: status %d", w.Code)
	}
}

func TestAdminIPWhitelist(t *testing.T) {
	r := newEngine(AdminIPWhitelist([]string{"10.1.2.3", "192.168.0.0/24", "bogus"}))
	cases := map[string]int{
		"10.1.2.3:5000":     http.StatusOK,
		"192.168.0.77:5000": http.StatusOK,
		"192.168.1.1:5000":  http.StatusForbidden,
		"8.8.8.8:5000":      http.StatusForbidden,
	}
	for remote, want := range cases {
		if w := do(r, http.MethodGet, nil, remote); w.Code != want {
			t.Errorf("%s: status %d, want %d", remote, w.Code, want)
		}
	}
	if w := do(newEngine(AdminIPWhitelist(nil)), http.MethodGet, nil, "8.8.8.8:1"); w.Code != http.StatusOK {
		t.Errorf("empty list should admit all, got %d", w.Code)
	}
}

func TestRequireTOTP(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "legacy-portal", AccountName: "admin"})
	if err != nil {
		t.Fatal(err)
	}
	r := newEngine(RequireTOTP(key.Secret()))

	if w := do(r, http.MethodGet, nil, ""); w.Code != http.StatusOK {
		t.Errorf("read without code: status %d", w.Code)
	}
	if w := do(r, http.MethodPost, map[string]string{TOTPHeader: "12ab56"}, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong code: status %d", w.Code)
	}
	code, _ := totp.GenerateCode(key.Secret(), time.Now())
	if w := do(r, http.MethodPost, map[string]string{TOTPHeader: code}, ""); w.Code != http.StatusOK {
		t.Errorf("valid code: status %d", w.Code)
	}
	if w := do(newEngine(RequireTOTP("")), http.MethodPost, nil, ""); w.Code != http.StatusOK {
		t.Errorf("disabled check: status %d", w.Code)
	}
}

func TestRequestIDAndLogger(t *testing.T) {
	r := newEngine(RequestID(), Logger(slog.New(slog.NewTextHandler(io.Discard, nil))), Tracing(noop.NewTracerProvider(), "test"))
	w := do(r, http.MethodGet, nil, "")
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("expected generated request id")
	}
	w = do(r, http.MethodGet, map[string]string{RequestIDHeader: "abc-123"}, "")
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q", got)
	}
}

func TestTracingRecordsServerSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	r := gin.New()
	r.Use(Tracing(tp, "test"))
	var recording bool
	r.GET("/items/:id", func(c *gin.Context) {
		recording = trace.SpanFromContext(c.Request.Context()).IsRecording()
		c.Status(http.StatusOK)
	})
	r.GET("/boom", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/7", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	if !recording {
		t.Fatal("handler context carries no recording span")
	}
	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(spans))
	}
	if spans[0].Name() != "GET /items/:id" || spans[0].SpanKind() != trace.SpanKindServer {
		t.Errorf("span = %s kind %v", spans[0].Name(), spans[0].SpanKind())
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("5xx span status = %v, want error", spans[1].Status())
	}
}
