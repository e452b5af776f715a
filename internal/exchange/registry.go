package exchange

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/irfndi/funding-monitor-go/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrUnknownExchange is returned when a configured name has no adapter.
var ErrUnknownExchange = errors.New("unknown exchange")

// Registry is a read-only name to adapter lookup built at startup.
type Registry struct {
	adapters map[string]Adapter
	names    []string
}

// NewRegistry rejects empty and duplicate names.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			return nil, errors.New("nil adapter")
		}
		name := a.Name()
		if strings.TrimSpace(name) == "" {
			return nil, errors.New("adapter with empty name")
		}
		if _, exists := r.adapters[name]; exists {
			return nil, fmt.Errorf("duplicate adapter %q", name)
		}
		r.adapters[name] = a
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// DefaultAdapters returns every built-in adapter sharing one fetcher.
func DefaultAdapters(f Fetcher, logger *slog.Logger, opts ...Option) []Adapter {
	if logger != nil {
		opts = append([]Option{WithLogger(logger)}, opts...)
	}
	return []Adapter{
		NewBybitAdapter(f, opts...),
		NewHTXAdapter(f, opts...),
		NewGateAdapter(f, opts...),
		NewBitgetAdapter(f, opts...),
		NewMEXCAdapter(f, opts...),
		NewBingXAdapter(f, opts...),
		NewBitmartAdapter(f, opts...),
		NewKuCoinAdapter(f, opts...),
		NewBinanceAdapter(f, opts...),
		NewOKXAdapter(f, opts...),
	}
}

func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// All returns adapters sorted by name.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.adapters[name])
	}
	return out
}

func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

func (r *Registry) Len() int {
	return len(r.names)
}

// Enabled narrows the registry to names. An empty list keeps everything.
func (r *Registry) Enabled(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	selected := make([]Adapter, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		a, ok := r.adapters[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownExchange, name)
		}
		selected = append(selected, a)
	}
	return NewRegistry(selected...)
}

// DisplayName falls back to a title-cased adapter name.
func DisplayName(a Adapter) string {
	if d := strings.TrimSpace(a.DisplayName()); d != "" {
		return d
	}
	return cases.Title(language.English).String(a.Name())
}

// ToNewExchange is the exchanges-table row for an adapter.
func ToNewExchange(a Adapter) models.NewExchange {
	ne := models.NewExchange{
		Name:        a.Name(),
		DisplayName: DisplayName(a),
		APIURL:      a.APIURL(),
		Color:       a.Color(),
		IsActive:    true,
	}
	if ws := a.WSURL(); ws != "" {
		ne.WSURL = &ws
	}
	return ne
}
