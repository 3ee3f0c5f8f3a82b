// Package notice queues user-facing notices per dashboard session and keeps
// the one-time "service unavailable" flag.
package notice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Kind string

const (
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

type Notice struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Dismissible bool      `json:"dismissible"`
	CreatedAt   time.Time `json:"created_at"`
}

// FlagStore records per-session flags that may only be raised once.
type FlagStore interface {
	// SetOnce raises key and reports whether this call was the one that did it.
	SetOnce(ctx context.Context, key string) (bool, error)
}

// MemoryFlags is the FlagStore used when Redis is not configured.
type MemoryFlags struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryFlags() *MemoryFlags {
	return &MemoryFlags{seen: make(map[string]struct{})}
}

func (m *MemoryFlags) SetOnce(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[key]; ok {
		return false, nil
	}
	m.seen[key] = struct{}{}
	return true, nil
}

// Clear forgets key. Redis flags expire on their own and need no equivalent.
func (m *MemoryFlags) Clear(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, key)
}

// RedisFlags keeps flags for as long as a dashboard session is plausibly alive.
type RedisFlags struct {
	client *redis.Client
	ttl    time.Duration
}

const defaultFlagTTL = 7 * 24 * time.Hour

func NewRedisFlags(client *redis.Client) *RedisFlags {
	return &RedisFlags{client: client, ttl: defaultFlagTTL}
}

func (r *RedisFlags) SetOnce(ctx context.Context, key string) (bool, error) {
	return r.client.SetNX(ctx, key, 1, r.ttl).Result()
}

const serviceUnavailableKey = "notice:service-unavailable:"

// Center holds pending notices per dashboard session until the client
// drains them.
type Center struct {
	mu      sync.Mutex
	pending map[string][]Notice
	flags   FlagStore
	logger  zerolog.Logger
}

func NewCenter(flags FlagStore, logger zerolog.Logger) *Center {
	return &Center{
		pending: make(map[string][]Notice),
		flags:   flags,
		logger:  logger.With().Str("component", "notice").Logger(),
	}
}

// Post queues n for the session and returns it with id and timestamp set.
func (c *Center) Post(sessionID string, n Notice) Notice {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	c.mu.Lock()
	c.pending[sessionID] = append(c.pending[sessionID], n)
	c.mu.Unlock()
	return n
}

// Drain returns and clears the session's pending notices, oldest first.
func (c *Center) Drain(sessionID string) []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending[sessionID]
	delete(c.pending, sessionID)
	if out == nil {
		out = []Notice{}
	}
	return out
}

// Forget drops everything held for an expired dashboard session.
func (c *Center) Forget(sessionID string) {
	c.mu.Lock()
	delete(c.pending, sessionID)
	c.mu.Unlock()
	if m, ok := c.flags.(interface{ Clear(key string) }); ok {
		m.Clear(serviceUnavailableKey + sessionID)
	}
}

// ServiceUnavailable posts the dismissible "<service> Service Unavailable"
// warning the first time it is called for a session and reports whether it
// did. A failing flag store suppresses the notice rather than repeating it.
func (c *Center) ServiceUnavailable(ctx context.Context, sessionID, service, limited string) (bool, error) {
	first, err := c.flags.SetOnce(ctx, serviceUnavailableKey+sessionID)
	if err != nil {
		c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("notice flag store unavailable")
		return false, fmt.Errorf("set notice flag: %w", err)
	}
	if !first {
		return false, nil
	}
	c.Post(sessionID, Notice{
		Kind:  KindWarning,
		Title: service + " Service Unavailable",
		Message: fmt.Sprintf("The %s service is currently unavailable. You can continue using the app, "+
			"but %s functionality will be limited. Please check your internet connection and try again later.",
			service, limited),
		Dismissible: true,
	})
	return true, nil
}

type coder interface {
	Code() string
}

var friendlyMessages = map[string]string{
	"auth/user-not-found":       "No account found with this email address. Please check your email or sign up for a new account.",
	"auth/wrong-password":       "Incorrect password. Please try again.",
	"auth/email-already-in-use": "An account with this email already exists. Please sign in instead.",
	"auth/weak-password":        "Password is too weak. Please choose a stronger password.",
	"auth/invalid-email":        "Please enter a valid email address.",
	"auth/unavailable":          "Authentication service is currently unavailable. Please check your internet connection and try again.",
}

// FriendlyMessage maps an error carrying a Code() to the text shown to users.
// Other errors fall back to "Failed to <operation>. <err>".
func FriendlyMessage(operation string, err error) string {
	var ce coder
	if errors.As(err, &ce) {
		if msg, ok := friendlyMessages[ce.Code()]; ok {
			return msg
		}
	}
	if err == nil {
		return fmt.Sprintf("Failed to %s. Unknown error occurred", operation)
	}
	return fmt.Sprintf("Failed to %s. %s", operation, err.Error())
}

// title upper-cases the first letter: "sign in" -> "Sign in".
func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// OperationFailed posts a "<operation> Failed" error notice for err.
func (c *Center) OperationFailed(sessionID, operation string, err error) Notice {
	return c.Post(sessionID, Notice{
		Kind:        KindError,
		Title:       title(operation) + " Failed",
		Message:     FriendlyMessage(operation, err),
		Dismissible: true,
	})
}
