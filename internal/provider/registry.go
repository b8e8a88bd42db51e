package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nhle/mail-integration/internal/mailerr"
)

// Factory builds a provider instance for one set of credentials.
type Factory func(creds Credentials) (Provider, error)

// Registry maps lowercased provider names to factories. It is owned by the
// composition root and is not safe for registration after it is shared.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. Registering the same name twice
// is a programming error and panics.
func (r *Registry) Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		panic("provider: Register requires a name and a factory")
	}
	if _, dup := r.factories[key]; dup {
		panic(fmt.Sprintf("provider: %q registered twice", key))
	}
	r.factories[key] = factory
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New resolves name and builds a provider for creds. An unknown name fails
// with an unsupported-provider error before creds are looked at.
func (r *Registry) New(name string, creds Credentials) (Provider, error) {
	factory, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, mailerr.UnsupportedProvider(name)
	}
	return factory(creds)
}

// RequireToken is a helper for factories: it rejects empty tokens with
// an invalid-access-token error.
func RequireToken(providerName string, creds Credentials) error {
	if strings.TrimSpace(creds.AccessToken) == "" {
		return mailerr.InvalidAccessToken(
			providerName, "access token must be a non-empty string",
		)
	}
	return nil
}
