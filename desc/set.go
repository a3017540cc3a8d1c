package desc

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Set groups descriptors and owns the numeric IDs their inputs refer to.
type Set struct {
	descs []*Desc
	is2D  bool
}

// NewSet returns an empty descriptor set.
func NewSet(is2D bool) *Set {
	return &Set{is2D: is2D}
}

// Is2D reports whether the set describes 2D line attributes.
func (s *Set) Is2D() bool {
	return s.is2D
}

// Add takes ownership of d, assigning the next free ID when d.ID is zero.
func (s *Set) Add(d *Desc) (int, error) {
	if d == nil {
		return 0, errors.New("desc: cannot add nil descriptor")
	}
	if d.ID == 0 {
		d.ID = s.nextID()
	} else if s.Get(d.ID) != nil {
		return 0, fmt.Errorf("desc: duplicate descriptor id %d", d.ID)
	}
	d.set = s
	s.descs = append(s.descs, d)
	return d.ID, nil
}

// Get returns the descriptor with the given ID, or nil.
func (s *Set) Get(id int) *Desc {
	for _, d := range s.descs {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// ByUserRef returns the first descriptor with the given user reference, or nil.
func (s *Set) ByUserRef(ref string) *Desc {
	for _, d := range s.descs {
		if d.UserRef == ref {
			return d
		}
	}
	return nil
}

// Len returns the number of descriptors.
func (s *Set) Len() int {
	return len(s.descs)
}

// Descs returns the descriptors in insertion order.
func (s *Set) Descs() []*Desc {
	return append([]*Desc(nil), s.descs...)
}

// StoredIDs returns the IDs of descriptors reading stored cubes.
func (s *Set) StoredIDs() []int {
	var ids []int
	for _, d := range s.descs {
		if d.IsStored() {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Validate checks that required inputs are wired, inputs belong to the set and
// the input graph has no cycles.
func (s *Set) Validate() error {
	for _, d := range s.descs {
		for i := 0; i < d.NrInputs(); i++ {
			in := d.Input(i)
			if in == nil {
				if d.InputSpec(i).Required {
					return fmt.Errorf("desc: %s: required input %d (%s) missing", d, i, d.InputSpec(i).Desc)
				}
				continue
			}
			if in.set != s {
				return fmt.Errorf("desc: %s: input %d belongs to another set", d, i)
			}
			if sel := in.SelectedOutput; sel < -1 || sel >= in.NrOutputs() {
				return fmt.Errorf("desc: %s: selected output %d out of range", in, sel)
			}
		}
	}
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*Desc]int, len(s.descs))
	var visit func(d *Desc) error
	visit = func(d *Desc) error {
		switch state[d] {
		case visiting:
			return fmt.Errorf("desc: input cycle through %s", d)
		case done:
			return nil
		}
		state[d] = visiting
		for _, in := range d.inputs {
			if in == nil {
				continue
			}
			if err := visit(in); err != nil {
				return err
			}
		}
		state[d] = done
		return nil
	}
	for _, d := range s.descs {
		if err := visit(d); err != nil {
			return err
		}
	}
	return nil
}

func (s *Set) nextID() int {
	highest := 0
	for _, d := range s.descs {
		highest = max(highest, d.ID)
	}
	return highest + 1
}

type setFile struct {
	TwoD       bool       `yaml:"two_d"`
	Attributes []descFile `yaml:"attributes"`
}

type descFile struct {
	ID     int            `yaml:"id"`
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`
	Params map[string]any `yaml:"params"`
	Inputs []int          `yaml:"inputs"`
	Output *int           `yaml:"output"`
	Hidden bool           `yaml:"hidden"`
}

// LoadSet reads a descriptor set from a YAML file.
func LoadSet(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("desc: failed to read descriptor set: %w", err)
	}
	set, err := ParseSet(data)
	if err != nil {
		return nil, fmt.Errorf("desc: %s: %w", path, err)
	}
	return set, nil
}

// ParseSet decodes a YAML descriptor set, resolving numeric input references.
// An input reference of 0 leaves the slot unresolved.
func ParseSet(data []byte) (*Set, error) {
	var file setFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor set: %w", err)
	}
	set := NewSet(file.TwoD)
	for i, entry := range file.Attributes {
		if entry.ID <= 0 {
			return nil, fmt.Errorf("attribute #%d: id must be positive", i+1)
		}
		d, err := New(strings.TrimSpace(entry.Type))
		if err != nil {
			return nil, fmt.Errorf("attribute %d: %w", entry.ID, err)
		}
		d.ID = entry.ID
		d.UserRef = strings.TrimSpace(entry.Name)
		d.Hidden = entry.Hidden
		d.SelectedOutput = 0
		if entry.Output != nil {
			d.SelectedOutput = *entry.Output
		}
		keys := make([]string, 0, len(entry.Params))
		for k := range entry.Params {
			keys = append(keys, k)
		}
		// Update hooks may depend on earlier values; apply in a stable order.
		sort.Strings(keys)
		for _, k := range keys {
			if err := d.SetValue(k, paramText(entry.Params[k])); err != nil {
				return nil, fmt.Errorf("attribute %d: %w", entry.ID, err)
			}
		}
		if len(entry.Inputs) > d.NrInputs() {
			return nil, fmt.Errorf("attribute %d: %s takes %d inputs, got %d", entry.ID, d.AttribName(), d.NrInputs(), len(entry.Inputs))
		}
		if _, err := set.Add(d); err != nil {
			return nil, err
		}
	}
	for _, entry := range file.Attributes {
		d := set.Get(entry.ID)
		for slot, ref := range entry.Inputs {
			if ref == 0 {
				continue
			}
			in := set.Get(ref)
			if in == nil {
				return nil, fmt.Errorf("attribute %d: input %d refers to unknown id %d", entry.ID, slot, ref)
			}
			if err := d.SetInput(slot, in); err != nil {
				return nil, err
			}
		}
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// paramText turns a decoded YAML scalar or flow sequence back into the text
// form SetValue parses.
func paramText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = paramText(p)
		}
		return strings.Join(parts, ",")
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}
