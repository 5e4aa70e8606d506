// Package plugins provides a registry of the ingestion sources and egress sinks
// the daemon can be configured with.
package plugins

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/config"
	"github.com/ArionMiles/txnwatch/pkg/metrics"
)

// Env is what a plugin may use to build its reader or writer.
type Env struct {
	// HTTPClient is an OAuth client carrying every scope the selected plugins
	// asked for. It is nil when no plugin needs Google APIs.
	HTTPClient *http.Client
	Config     config.Config
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// ReaderPlugin builds an ingestion source.
type ReaderPlugin interface {
	// Name returns the plugin name used in TXNWATCH_READERS.
	Name() string
	// Description returns a human-readable description.
	Description() string
	// RequiredScopes returns the OAuth scopes needed by this plugin.
	RequiredScopes() []string
	// NewReader creates a new reader instance.
	NewReader(env Env) (api.Reader, error)
}

// WriterPlugin builds an egress sink.
type WriterPlugin interface {
	// Name returns the plugin name used in TXNWATCH_WRITERS.
	Name() string
	// Description returns a human-readable description.
	Description() string
	// RequiredScopes returns the OAuth scopes needed by this plugin.
	RequiredScopes() []string
	// NewWriter creates a new writer instance.
	NewWriter(env Env) (api.Writer, error)
}

// Registry manages available reader and writer plugins.
type Registry struct {
	readers map[string]ReaderPlugin
	writers map[string]WriterPlugin
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		readers: make(map[string]ReaderPlugin),
		writers: make(map[string]WriterPlugin),
	}
}

// RegisterReader registers a reader plugin.
func (r *Registry) RegisterReader(plugin ReaderPlugin) error {
	name := plugin.Name()
	if _, exists := r.readers[name]; exists {
		return fmt.Errorf("reader plugin %q already registered", name)
	}
	r.readers[name] = plugin
	return nil
}

// RegisterWriter registers a writer plugin.
func (r *Registry) RegisterWriter(plugin WriterPlugin) error {
	name := plugin.Name()
	if _, exists := r.writers[name]; exists {
		return fmt.Errorf("writer plugin %q already registered", name)
	}
	r.writers[name] = plugin
	return nil
}

// GetReader returns a reader plugin by name.
func (r *Registry) GetReader(name string) (ReaderPlugin, error) {
	plugin, exists := r.readers[name]
	if !exists {
		return nil, fmt.Errorf("reader plugin %q not found (available: %s)", name, strings.Join(sortedKeys(r.readers), ", "))
	}
	return plugin, nil
}

// GetWriter returns a writer plugin by name.
func (r *Registry) GetWriter(name string) (WriterPlugin, error) {
	plugin, exists := r.writers[name]
	if !exists {
		return nil, fmt.Errorf("writer plugin %q not found (available: %s)", name, strings.Join(sortedKeys(r.writers), ", "))
	}
	return plugin, nil
}

// ListReaders returns all registered reader plugins sorted by name.
func (r *Registry) ListReaders() []ReaderPlugin {
	plugins := make([]ReaderPlugin, 0, len(r.readers))
	for _, name := range sortedKeys(r.readers) {
		plugins = append(plugins, r.readers[name])
	}
	return plugins
}

// ListWriters returns all registered writer plugins sorted by name.
func (r *Registry) ListWriters() []WriterPlugin {
	plugins := make([]WriterPlugin, 0, len(r.writers))
	for _, name := range sortedKeys(r.writers) {
		plugins = append(plugins, r.writers[name])
	}
	return plugins
}

// Scopes returns the sorted, deduplicated OAuth scopes required by the named
// readers and writers.
func (r *Registry) Scopes(readers, writers []string) ([]string, error) {
	var scopes []string
	for _, name := range readers {
		plugin, err := r.GetReader(name)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, plugin.RequiredScopes()...)
	}
	for _, name := range writers {
		plugin, err := r.GetWriter(name)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, plugin.RequiredScopes()...)
	}

	slices.Sort(scopes)
	return slices.Compact(scopes), nil
}

// CreateReader creates a reader instance from a plugin.
func (r *Registry) CreateReader(name string, env Env) (api.Reader, error) {
	plugin, err := r.GetReader(name)
	if err != nil {
		return nil, err
	}
	env.Logger = env.logger().With("component", "reader", "plugin", name)
	return plugin.NewReader(env)
}

// CreateWriter creates a writer instance from a plugin.
func (r *Registry) CreateWriter(name string, env Env) (api.Writer, error) {
	plugin, err := r.GetWriter(name)
	if err != nil {
		return nil, err
	}
	env.Logger = env.logger().With("component", "writer", "plugin", name)
	return plugin.NewWriter(env)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
