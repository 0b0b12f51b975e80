// Package querytypes holds the registry of extraction query types.
//
// The registry is loaded once at startup, either from the embedded default
// file or from a user-supplied YAML file, and is never mutated afterwards.
package querytypes

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed querytypes.yaml
var defaultFS embed.FS

// Names of the built-in query types.
const (
	StockName   = "stock_name"
	CompanyName = "company_name"
	PersonName  = "person_name"
	Number      = "number"
	BookTitle   = "book_title"
	Proposal    = "proposal"
)

// QueryType describes one kind of information the extractor can be asked for.
type QueryType struct {
	// Name is the stable identifier used in requests and results
	// (e.g. "stock_name").
	Name string `yaml:"name" json:"name"`

	// Label is the human-readable name shown in results.
	Label string `yaml:"label" json:"label"`

	// Description tells the model what to look for. It is inserted
	// verbatim into extraction prompts.
	Description string `yaml:"description" json:"description"`
}

// Registry is an immutable set of query types keyed by name.
type Registry struct {
	types  []QueryType
	byName map[string]QueryType
}

type registryFile struct {
	QueryTypes []QueryType `yaml:"query_types"`
}

// Default returns the registry built from the embedded querytypes.yaml.
func Default() (*Registry, error) {
	data, err := defaultFS.ReadFile("querytypes.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded query types: %w", err)
	}
	return parse(data)
}

// Load reads a registry from a YAML file on disk.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query types file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse query types: %w", err)
	}
	if len(file.QueryTypes) == 0 {
		return nil, fmt.Errorf("query types file defines no types")
	}

	r := &Registry{byName: make(map[string]QueryType, len(file.QueryTypes))}
	for _, qt := range file.QueryTypes {
		name := strings.TrimSpace(qt.Name)
		if name == "" {
			return nil, fmt.Errorf("query type with empty name")
		}
		if _, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("duplicate query type: %s", name)
		}
		if qt.Label == "" {
			qt.Label = name
		}
		qt.Name = name
		r.byName[name] = qt
		r.types = append(r.types, qt)
	}
	return r, nil
}

// Get returns the query type with the given name.
func (r *Registry) Get(name string) (QueryType, bool) {
	qt, ok := r.byName[name]
	return qt, ok
}

// Has reports whether a query type is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// All returns every registered query type in declaration order.
func (r *Registry) All() []QueryType {
	out := make([]QueryType, len(r.types))
	copy(out, r.types)
	return out
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for _, qt := range r.types {
		names = append(names, qt.Name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps request names to query types, failing on unknown names.
func (r *Registry) Resolve(names []string) ([]QueryType, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no query types requested")
	}
	seen := make(map[string]bool, len(names))
	out := make([]QueryType, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if seen[name] {
			continue
		}
		seen[name] = true
		qt, ok := r.byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown query type: %s", name)
		}
		out = append(out, qt)
	}
	return out, nil
}
