// Package syncx moves the serialized vault container to and from remote
// storage. Providers only ever see the encrypted container bytes.
//
// Each provider receives its configuration as an opaque JSON string at call
// time, so one provider instance can serve any number of targets.
package syncx

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrijs2005/keevault/internal/common"
)

// ErrRemoteNotFound means the remote object does not exist yet. It wraps
// common.ErrNotFound.
var ErrRemoteNotFound = fmt.Errorf("remote object: %w", common.ErrNotFound)

// ErrUnsupportedProvider is returned for an unknown object storage family.
var ErrUnsupportedProvider = errors.New("unsupported object storage provider")

// Result describes a finished upload.
type Result struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Version   int64  `json:"version,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Provider is a remote storage backend.
type Provider interface {
	Name() string
	TestConnection(ctx context.Context, config string) error
	Upload(ctx context.Context, data []byte, config string) (*Result, error)
	Download(ctx context.Context, config string) ([]byte, error)
	// RemoteVersion returns ok=false when nothing has been uploaded yet.
	RemoteVersion(ctx context.Context, config string) (version int64, ok bool, err error)
	// CheckUpdate reports whether the remote version is newer than local.
	CheckUpdate(ctx context.Context, localVersion int64, config string) (bool, error)
}

// CheckUpdate implements Provider.CheckUpdate on top of RemoteVersion.
func CheckUpdate(ctx context.Context, p Provider, localVersion int64, config string) (bool, error) {
	remote, ok, err := p.RemoteVersion(ctx, config)
	if err != nil {
		return false, err
	}
	return ok && remote > localVersion, nil
}

// Manager is a registry of providers keyed by name.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewManager() *Manager {
	return &Manager{providers: make(map[string]Provider)}
}

// Register adds p, replacing any provider with the same name.
func (m *Manager) Register(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.Name()] = p
}

// Get returns the provider registered under name.
func (m *Manager) Get(name string) (Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", name, common.ErrNotFound)
	}
	return p, nil
}

// Names lists registered provider names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for n := range m.providers {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
