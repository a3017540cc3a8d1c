// Package desc describes attribute computations declaratively. A Desc names an
// attribute type, carries its typed parameters and points at the descriptors it
// takes input from; a Set groups descriptors and resolves those references.
// Descriptors are read-only once a provider graph has been built from them.
package desc

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"seisattrib/geom"
)

// ParamKind selects how a parameter value is parsed and compared.
type ParamKind int

const (
	KindFloat ParamKind = iota
	KindInterval
	KindInt
	KindBool
	KindBinID
	KindEnum
	KindString
)

func (k ParamKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInterval:
		return "interval"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindBinID:
		return "binid"
	case KindEnum:
		return "enum"
	case KindString:
		return "string"
	}
	return "unknown"
}

// ParamSpec is one entry of an attribute's parameter schema.
type ParamSpec struct {
	Key      string
	Kind     ParamKind
	Default  string
	Limits   *geom.Interval // floats and intervals only
	Enums    []string       // ordering is the enum numbering
	Disabled bool           // initial enabled state is !Disabled
}

// InputSpec describes one input slot of an attribute.
type InputSpec struct {
	Desc       string
	Required   bool
	IsSteering bool
}

// Template is the schema of one attribute type.
type Template struct {
	Name        string
	Params      []ParamSpec
	NrOutputs   int
	OutputNames []string
	Inputs      []InputSpec

	// Outputs overrides NrOutputs when the count depends on parameters.
	Outputs func(d *Desc) int
	// Update runs after every parameter change, typically to enable or
	// disable dependent parameters.
	Update func(d *Desc)
}

func (t *Template) spec(key string) (*ParamSpec, int) {
	for i := range t.Params {
		if t.Params[i].Key == key {
			return &t.Params[i], i
		}
	}
	return nil, -1
}

var (
	ErrUnknownType  = errors.New("desc: unknown attribute type")
	ErrUnknownParam = errors.New("desc: unknown parameter")
	ErrBadValue     = errors.New("desc: invalid parameter value")
)

var registry = struct {
	mu        sync.RWMutex
	templates map[string]*Template
}{templates: make(map[string]*Template)}

// RegisterTemplate makes an attribute type known. Registering the same name
// twice panics.
func RegisterTemplate(t *Template) {
	if t == nil || strings.TrimSpace(t.Name) == "" {
		panic("desc: RegisterTemplate with empty template")
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, dup := registry.templates[t.Name]; dup {
		panic("desc: RegisterTemplate called twice for " + t.Name)
	}
	registry.templates[t.Name] = t
}

// LookupTemplate returns the template registered under name. Unknown names
// produce an error suggesting the closest registered type.
func LookupTemplate(name string) (*Template, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	if t, ok := registry.templates[name]; ok {
		return t, nil
	}
	names := make([]string, 0, len(registry.templates))
	for n := range registry.templates {
		names = append(names, n)
	}
	if hint := closest(name, names); hint != "" {
		return nil, fmt.Errorf("%w %q (did you mean %q?)", ErrUnknownType, name, hint)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownType, name)
}

// Templates returns the registered type names in sorted order.
func Templates() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	names := make([]string, 0, len(registry.templates))
	for n := range registry.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// closest returns the candidate within a small edit distance of name, or "".
func closest(name string, candidates []string) string {
	best := ""
	bestDist := 4
	lower := strings.ToLower(name)
	sort.Strings(candidates)
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(lower, strings.ToLower(c))
		if d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}
