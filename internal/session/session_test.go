package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/vidquery/vidquery/internal/backend"
	"github.com/vidquery/vidquery/internal/geoip"
	"github.com/vidquery/vidquery/internal/navigation"
	"github.com/vidquery/vidquery/internal/overlay"
	"github.com/vidquery/vidquery/internal/timecode"
)

const testSecret = "test-secret"

type stubBackend struct{}

func (stubBackend) Search(ctx context.Context, q backend.Query) ([]backend.SearchResult, error) {
	return []backend.SearchResult{{VideoID: "v1", Timestamp: timecode.Text("00:30"), Score: 0.8}}, nil
}

func (stubBackend) Upload(ctx context.Context, filename, contentType string, r io.Reader) (backend.VideoDescriptor, error) {
	return backend.VideoDescriptor{VideoID: "v9"}, nil
}

func (stubBackend) ListVideos(ctx context.Context) ([]backend.VideoDescriptor, error) {
	return []backend.VideoDescriptor{{VideoID: "v1"}}, nil
}

func (stubBackend) DeleteVideo(ctx context.Context, videoID string) error { return nil }

func (stubBackend) StreamURL(videoID string) string { return "http://backend/videos/" + videoID + "/stream" }

func newRegistry(t *testing.T, clock clockwork.Clock) *Registry {
	t.Helper()
	reg := NewRegistry(Config{
		Backend: stubBackend{},
		Secret:  testSecret,
		TTL:     time.Hour,
		Clock:   clock,
	})
	t.Cleanup(reg.Close)
	return reg
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestTokenRoundTrip(t *testing.T) {
	id := uuid.New()
	now := time.Now()
	token, err := IssueToken(testSecret, id, now, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, issued, err := ParseToken(testSecret, token, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != id {
		t.Errorf("expected %s, got %s", id, got)
	}
	if issued.Unix() != now.Unix() {
		t.Errorf("expected issued at %v, got %v", now, issued)
	}
}

func TestTokenRejections(t *testing.T) {
	id := uuid.New()
	now := time.Now()
	token, _ := IssueToken(testSecret, id, now, time.Hour)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{SessionID: id.String()})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	badID := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		SessionID:        "not-a-uuid",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	})
	badIDToken, _ := badID.SignedString([]byte(testSecret))

	tests := []struct {
		name   string
		secret string
		token  string
		at     time.Time
	}{
		{"wrong secret", "other", token, now},
		{"expired", testSecret, token, now.Add(2 * time.Hour)},
		{"garbage", testSecret, "abc.def.ghi", now},
		{"alg none", testSecret, unsigned, now},
		{"bad session id", testSecret, badIDToken, now},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseToken(tt.secret, tt.token, tt.at); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestCreateThenResolve(t *testing.T) {
	reg := newRegistry(t, clockwork.NewFakeClock())

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	rec := httptest.NewRecorder()
	sess, err := reg.Create(rec, req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	cookie := sessionCookie(t, rec)
	if !cookie.HttpOnly || cookie.Path != "/" {
		t.Errorf("unexpected cookie attributes: %+v", cookie)
	}
	if !strings.Contains(sess.Client, "Chrome") {
		t.Errorf("expected browser in client description, got %q", sess.Client)
	}

	next := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	next.AddCookie(cookie)
	got, err := reg.Resolve(httptest.NewRecorder(), next)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != sess {
		t.Error("expected the same session back")
	}
	if got.Controller.Snapshot().Page != navigation.Home {
		t.Errorf("new session should start at Home")
	}
}

func TestResolveWithoutCookie(t *testing.T) {
	reg := newRegistry(t, clockwork.NewFakeClock())
	_, err := reg.Resolve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !errors.Is(err, http.ErrNoCookie) {
		t.Errorf("expected ErrNoCookie, got %v", err)
	}
}

func TestResolveUnknownSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := newRegistry(t, clock)
	token, _ := IssueToken(testSecret, uuid.New(), clock.Now(), time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	if _, err := reg.Resolve(httptest.NewRecorder(), req); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("expected ErrUnknownSession, got %v", err)
	}

	tampered := httptest.NewRequest(http.MethodGet, "/", nil)
	tampered.AddCookie(&http.Cookie{Name: CookieName, Value: token + "x"})
	if _, err := reg.Resolve(httptest.NewRecorder(), tampered); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("expected ErrUnknownSession for tampered cookie, got %v", err)
	}
}

func TestResolveKeepsActiveSessionsAlive(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := NewRegistry(Config{Backend: stubBackend{}, Secret: testSecret, TTL: 2 * time.Hour, Clock: clock})
	t.Cleanup(reg.Close)

	rec := httptest.NewRecorder()
	if _, err := reg.Create(rec, httptest.NewRequest(http.MethodGet, "/", nil)); err != nil {
		t.Fatalf("create: %v", err)
	}
	cookie := sessionCookie(t, rec)

	clock.Advance(90 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	renewed := httptest.NewRecorder()
	if _, err := reg.Resolve(renewed, req); err != nil {
		t.Fatalf("resolve within ttl: %v", err)
	}
	if fresh := sessionCookie(t, renewed); fresh.Value == cookie.Value {
		t.Error("expected cookie renewed after half its lifetime")
	}

	clock.Advance(time.Minute)
	if n := reg.Sweep(); n != 0 {
		t.Errorf("expected no sweep for a recently used session, got %d", n)
	}
}

func TestSweepEndsIdleSessions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := newRegistry(t, clock)

	for i := 0; i < 3; i++ {
		if _, err := reg.Create(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	clock.Advance(2 * time.Hour)
	if n := reg.Sweep(); n != 3 {
		t.Errorf("expected 3 sessions swept, got %d", n)
	}
	if reg.Len() != 0 {
		t.Errorf("expected empty registry, got %d", reg.Len())
	}
}

func TestRunClosesOnCancel(t *testing.T) {
	reg := newRegistry(t, clockwork.NewFakeClock())
	if _, err := reg.Create(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)); err != nil {
		t.Fatalf("create: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, time.Minute)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if reg.Len() != 0 {
		t.Errorf("expected sessions closed, got %d", reg.Len())
	}
}

func TestJumpPushesSeekToListeners(t *testing.T) {
	reg := newRegistry(t, clockwork.NewFakeClock())
	sess, err := reg.Create(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var seeks []overlay.Seek
	stop := sess.Player.OnSeek(func(s overlay.Seek) { seeks = append(seeks, s) })
	defer stop()

	if err := sess.Controller.Search(context.Background(), backend.Query{Text: "dog"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if _, err := sess.Controller.JumpTo(0); err != nil {
		t.Fatalf("jump: %v", err)
	}
	if len(seeks) != 1 || seeks[0] != (overlay.Seek{VideoID: "v1", Seconds: 30}) {
		t.Errorf("unexpected seeks: %+v", seeks)
	}
	if last, ok := sess.Player.LastSeek(); !ok || last.Seconds != 30 {
		t.Errorf("expected last seek recorded, got %+v", last)
	}
	if view := sess.Controller.View(); view.StreamURL != "http://backend/videos/v1/stream" {
		t.Errorf("unexpected stream url %q", view.StreamURL)
	}
}

func TestPlayerRemovesListener(t *testing.T) {
	p := newPlayer()
	calls := 0
	stop := p.OnSeek(func(overlay.Seek) { calls++ })
	p.Seek(overlay.Seek{VideoID: "v1"})
	stop()
	p.Seek(overlay.Seek{VideoID: "v1"})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

type stubLocator struct{ seen []string }

func (l *stubLocator) Lookup(ip string) geoip.Location {
	l.seen = append(l.seen, ip)
	return geoip.Location{Country: "DE", City: "Berlin"}
}

func TestCreateLocatesClient(t *testing.T) {
	locator := &stubLocator{}
	reg := NewRegistry(Config{Backend: stubBackend{}, Secret: testSecret, Locator: locator, Clock: clockwork.NewFakeClock()})
	t.Cleanup(reg.Close)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	if _, err := reg.Create(httptest.NewRecorder(), req); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(locator.seen) != 1 || locator.seen[0] != "203.0.113.7" {
		t.Errorf("expected lookup of forwarded address, got %v", locator.seen)
	}
}

func TestDescribeClient(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", "unknown"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1", "(mobile)"},
		{"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "bot"},
	}
	for _, tt := range tests {
		if got := describeClient(tt.header); !strings.Contains(got, tt.want) {
			t.Errorf("describeClient(%q) = %q, want it to contain %q", tt.header, got, tt.want)
		}
	}
}
