package settings

import (
	"errors"
	"strings"
	"sync"
)

// ErrMissingCredential is returned when a provider credential has not been set
var ErrMissingCredential = errors.New("credential not set")

// Credentials holds provider API keys in memory only. Keys are never written to
// the database or logs and are handed to clients explicitly per call.
type Credentials struct {
	mu   sync.RWMutex
	keys map[string]string
}

// NewCredentials creates an empty credential holder
func NewCredentials() *Credentials {
	return &Credentials{keys: make(map[string]string)}
}

// Set stores key for provider. An empty key clears it.
func (c *Credentials) Set(provider, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key = strings.TrimSpace(key)
	if key == "" {
		delete(c.keys, provider)
		return
	}
	c.keys[provider] = key
}

// Get returns the key for provider or ErrMissingCredential
func (c *Credentials) Get(provider string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key, ok := c.keys[provider]
	if !ok {
		return "", ErrMissingCredential
	}
	return key, nil
}

// Status reports, per known provider, whether a key is set together with a masked hint
func (c *Credentials) Status() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]string, len(c.keys))
	for provider, key := range c.keys {
		out[provider] = Mask(key)
	}
	return out
}

// Mask hides all but the last four characters of key
func Mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
