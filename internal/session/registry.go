// Package session keeps one navigation engine per browser. A session is
// identified by a signed cookie that carries a random session id; sessions
// idle for longer than their TTL are swept.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mssola/useragent"

	"github.com/vidquery/vidquery/internal/catalog"
	"github.com/vidquery/vidquery/internal/geoip"
	"github.com/vidquery/vidquery/internal/navigation"
	"github.com/vidquery/vidquery/internal/ratelimit"
	"github.com/vidquery/vidquery/internal/search"
	"github.com/vidquery/vidquery/internal/upload"
)

const DefaultTTL = 12 * time.Hour

var ErrUnknownSession = errors.New("unknown or expired session")

// Backend is everything a session needs from the video backend.
type Backend interface {
	search.Backend
	upload.Backend
	catalog.Backend
	StreamURL(videoID string) string
}

// Locator resolves a client address for the session log.
type Locator interface {
	Lookup(ip string) geoip.Location
}

type Config struct {
	Backend        Backend
	Locator        Locator
	Secret         string
	TTL            time.Duration
	SearchTopK     int
	BannerDuration time.Duration
	SecureCookies  bool
	Clock          clockwork.Clock
}

type Session struct {
	ID         uuid.UUID
	Controller *navigation.Controller
	Player     *Player
	Client     string

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

type Registry struct {
	cfg   Config
	clock clockwork.Clock

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewRegistry(cfg Config) *Registry {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Registry{
		cfg:      cfg,
		clock:    cfg.Clock,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create starts a session for the requesting browser and sets its cookie.
func (reg *Registry) Create(w http.ResponseWriter, r *http.Request) (*Session, error) {
	id := uuid.New()
	now := reg.clock.Now()
	if err := reg.setCookie(w, id, now); err != nil {
		return nil, err
	}

	player := newPlayer()
	sess := &Session{
		ID:     id,
		Player: player,
		Client: describeClient(r.UserAgent()),
		Controller: navigation.New(navigation.Config{
			Searcher:       search.New(reg.cfg.Backend, reg.cfg.SearchTopK),
			Uploader:       upload.New(reg.cfg.Backend),
			Catalog:        catalog.New(reg.cfg.Backend),
			Player:         player,
			StreamURL:      reg.cfg.Backend.StreamURL,
			Clock:          reg.clock,
			BannerDuration: reg.cfg.BannerDuration,
		}),
		lastSeen: now,
	}

	reg.mu.Lock()
	reg.sessions[id] = sess
	reg.mu.Unlock()

	location := geoip.Location{}
	if reg.cfg.Locator != nil {
		location = reg.cfg.Locator.Lookup(ratelimit.ClientIP(r))
	}
	slog.Info("session: started", "session_id", id, "client", sess.Client, "location", location.String())
	return sess, nil
}

func (reg *Registry) setCookie(w http.ResponseWriter, id uuid.UUID, now time.Time) error {
	token, err := IssueToken(reg.cfg.Secret, id, now, reg.cfg.TTL)
	if err != nil {
		return fmt.Errorf("issue session token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(reg.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   reg.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Resolve finds the session named by the request's cookie. A request
// without a cookie yields http.ErrNoCookie. Once half of the cookie's
// lifetime has passed a fresh cookie is written to w, so sessions in use
// outlive their first token.
func (reg *Registry) Resolve(w http.ResponseWriter, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, err
	}
	now := reg.clock.Now()
	id, issued, err := ParseToken(reg.cfg.Secret, cookie.Value, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownSession, err)
	}

	reg.mu.RLock()
	sess, ok := reg.sessions[id]
	reg.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownSession
	}
	if now.Sub(sess.idleSince()) > reg.cfg.TTL {
		reg.drop(id, "expired")
		return nil, ErrUnknownSession
	}
	sess.touch(now)
	if now.Sub(issued) > reg.cfg.TTL/2 {
		if err := reg.setCookie(w, id, now); err != nil {
			slog.Warn("session: cookie renewal failed", "session_id", id, "error", err)
		}
	}
	return sess, nil
}

// ClearCookie tells the browser to forget its session cookie.
func (reg *Registry) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   reg.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.sessions)
}

// Sweep ends every session idle for longer than the TTL.
func (reg *Registry) Sweep() int {
	now := reg.clock.Now()
	var expired []uuid.UUID
	reg.mu.RLock()
	for id, sess := range reg.sessions {
		if now.Sub(sess.idleSince()) > reg.cfg.TTL {
			expired = append(expired, id)
		}
	}
	reg.mu.RUnlock()

	for _, id := range expired {
		reg.drop(id, "expired")
	}
	return len(expired)
}

// Run sweeps expired sessions until ctx is done, then ends the rest.
func (reg *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := reg.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			reg.Close()
			return
		case <-ticker.Chan():
			if n := reg.Sweep(); n > 0 {
				slog.Info("session: swept idle sessions", "count", n, "remaining", reg.Len())
			}
		}
	}
}

func (reg *Registry) Close() {
	reg.mu.Lock()
	sessions := reg.sessions
	reg.sessions = make(map[uuid.UUID]*Session)
	reg.mu.Unlock()
	for _, sess := range sessions {
		sess.Controller.Close()
	}
}

func (reg *Registry) drop(id uuid.UUID, reason string) {
	reg.mu.Lock()
	sess, ok := reg.sessions[id]
	delete(reg.sessions, id)
	reg.mu.Unlock()
	if ok {
		sess.Controller.Close()
		slog.Debug("session: ended", "session_id", id, "reason", reason)
	}
}

func describeClient(header string) string {
	if header == "" {
		return "unknown"
	}
	ua := useragent.New(header)
	if ua.Bot() {
		name, _ := ua.Browser()
		return "bot " + name
	}
	name, version := ua.Browser()
	desc := name
	if version != "" {
		desc += " " + version
	}
	if platform := ua.OS(); platform != "" {
		desc += " on " + platform
	}
	if ua.Mobile() {
		desc += " (mobile)"
	}
	return desc
}
