package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/sublayer/sublayer/internal/errs"
	"github.com/sublayer/sublayer/pkg/log"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

// writeAppError maps an application error to its HTTP status through the
// error kind.
func writeAppError(w http.ResponseWriter, err error) {
	status := errs.StatusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed: %v", err)
	} else {
		log.Warn("Request rejected: %v", err)
	}
	writeError(w, status, err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Wrap(errs.BadInput, "invalid JSON body", err)
	}
	return nil
}

// tokenStore holds the opaque tokens issued by the proxy login endpoint.
type tokenStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newTokenStore() *tokenStore {
	return &tokenStore{tokens: make(map[string]string)}
}

func (t *tokenStore) issue(token, username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens[token] = username
}

func (t *tokenStore) revoke(token string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	username := t.tokens[token]
	delete(t.tokens, token)
	return username
}

// maskKey hides the middle of an API key for display.
func maskKey(key string) string {
	if len(key) < 8 {
		return key
	}
	return key[:4] + "***" + key[len(key)-4:]
}
