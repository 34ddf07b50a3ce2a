// Package flash carries one-shot user messages ("toasts") across redirects
// in a signed gorilla/sessions cookie.
package flash

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	sessionName = "grouphub-flash"
	flashKey    = "toast"
)

// Message is a single toast.
type Message struct {
	Level string `json:"level"` // "error" | "info"
	Text  string `json:"text"`
}

type Store struct {
	cs  *sessions.CookieStore
	log *zap.Logger
}

// New creates a flash store keyed by key. In production (secure=true) the
// cookie is Secure.
func New(key string, secure bool, logger *zap.Logger) (*Store, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("flash key must be at least 32 characters, got %d", len(key))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cs := sessions.NewCookieStore([]byte(key))
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Store{cs: cs, log: logger}, nil
}

// Error queues an error toast.
func (s *Store) Error(w http.ResponseWriter, r *http.Request, text string) {
	s.add(w, r, Message{Level: "error", Text: text})
}

// Info queues an informational toast.
func (s *Store) Info(w http.ResponseWriter, r *http.Request, text string) {
	s.add(w, r, Message{Level: "info", Text: text})
}

func (s *Store) add(w http.ResponseWriter, r *http.Request, m Message) {
	sess, err := s.cs.Get(r, sessionName)
	if err != nil {
		// A bad cookie yields a fresh session; keep going with it.
		s.log.Debug("flash cookie reset", zap.Error(err))
	}
	sess.AddFlash(m.Level+"|"+m.Text, flashKey)
	if err := sess.Save(r, w); err != nil {
		s.log.Warn("flash save failed", zap.Error(err))
	}
}

// Pop returns and clears pending toasts.
func (s *Store) Pop(w http.ResponseWriter, r *http.Request) []Message {
	sess, err := s.cs.Get(r, sessionName)
	if err != nil {
		return nil
	}
	raw := sess.Flashes(flashKey)
	if len(raw) == 0 {
		return nil
	}
	if err := sess.Save(r, w); err != nil {
		s.log.Warn("flash save failed", zap.Error(err))
	}

	out := make([]Message, 0, len(raw))
	for _, v := range raw {
		str, ok := v.(string)
		if !ok {
			continue
		}
		level, text, found := strings.Cut(str, "|")
		if !found {
			level, text = "info", str
		}
		out = append(out, Message{Level: level, Text: text})
	}
	return out
}
