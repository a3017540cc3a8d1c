package desc

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"seisattrib/geom"
)

// StorageType is the attribute type of descriptors backed by stored cubes.
const StorageType = "Storage"

type param struct {
	spec    *ParamSpec
	value   any
	enabled bool
}

// Desc is one attribute computation: a type, typed parameter values, input
// descriptors and the output a consumer selects from it.
type Desc struct {
	ID             int
	UserRef        string
	SelectedOutput int
	Hidden         bool

	tmpl   *Template
	params []param
	inputs []*Desc
	set    *Set
}

// New creates a descriptor of the registered attribute type with default
// parameter values and no inputs resolved.
func New(attribType string) (*Desc, error) {
	t, err := LookupTemplate(attribType)
	if err != nil {
		return nil, err
	}
	return NewFromTemplate(t)
}

// NewFromTemplate creates a descriptor from t with default parameter values.
func NewFromTemplate(t *Template) (*Desc, error) {
	d := &Desc{
		tmpl:   t,
		params: make([]param, len(t.Params)),
		inputs: make([]*Desc, len(t.Inputs)),
	}
	for i := range t.Params {
		spec := &t.Params[i]
		d.params[i] = param{spec: spec, enabled: !spec.Disabled}
		if spec.Default == "" && spec.Kind != KindString {
			d.params[i].value = zeroValue(spec.Kind)
			continue
		}
		v, err := parseValue(spec, spec.Default)
		if err != nil {
			return nil, fmt.Errorf("desc: %s default for %s: %w", t.Name, spec.Key, err)
		}
		d.params[i].value = v
	}
	if t.Update != nil {
		t.Update(d)
	}
	return d, nil
}

// AttribName returns the attribute type name.
func (d *Desc) AttribName() string {
	return d.tmpl.Name
}

// Template returns the schema the descriptor was created from.
func (d *Desc) Template() *Template {
	return d.tmpl
}

// IsStored reports whether the descriptor reads a stored cube.
func (d *Desc) IsStored() bool {
	return d.tmpl.Name == StorageType
}

// DescSet returns the set owning this descriptor, or nil.
func (d *Desc) DescSet() *Set {
	return d.set
}

// NrInputs returns the number of input slots.
func (d *Desc) NrInputs() int {
	return len(d.inputs)
}

// Input returns the descriptor wired to slot idx, or nil.
func (d *Desc) Input(idx int) *Desc {
	if idx < 0 || idx >= len(d.inputs) {
		return nil
	}
	return d.inputs[idx]
}

// SetInput wires in to slot idx.
func (d *Desc) SetInput(idx int, in *Desc) error {
	if idx < 0 || idx >= len(d.inputs) {
		return fmt.Errorf("desc: %s has no input %d", d.tmpl.Name, idx)
	}
	d.inputs[idx] = in
	return nil
}

// InputSpec returns the schema of input slot idx.
func (d *Desc) InputSpec(idx int) InputSpec {
	if idx < 0 || idx >= len(d.tmpl.Inputs) {
		return InputSpec{}
	}
	return d.tmpl.Inputs[idx]
}

// NrOutputs returns the number of outputs the attribute produces.
func (d *Desc) NrOutputs() int {
	if d.tmpl.Outputs != nil {
		return d.tmpl.Outputs(d)
	}
	return d.tmpl.NrOutputs
}

// OutputName returns a display name for output idx.
func (d *Desc) OutputName(idx int) string {
	if idx >= 0 && idx < len(d.tmpl.OutputNames) {
		return d.tmpl.OutputNames[idx]
	}
	return strconv.Itoa(idx)
}

// SetValue parses text into parameter key and re-runs the template's update hook.
func (d *Desc) SetValue(key, text string) error {
	spec, idx := d.tmpl.spec(key)
	if spec == nil {
		keys := make([]string, 0, len(d.tmpl.Params))
		for _, p := range d.tmpl.Params {
			keys = append(keys, p.Key)
		}
		if hint := closest(key, keys); hint != "" {
			return fmt.Errorf("%w %q for %s (did you mean %q?)", ErrUnknownParam, key, d.tmpl.Name, hint)
		}
		return fmt.Errorf("%w %q for %s", ErrUnknownParam, key, d.tmpl.Name)
	}
	v, err := parseValue(spec, text)
	if err != nil {
		return fmt.Errorf("desc: %s.%s: %w", d.tmpl.Name, key, err)
	}
	d.params[idx].value = v
	if d.tmpl.Update != nil {
		d.tmpl.Update(d)
	}
	return nil
}

// SetParamEnabled toggles whether parameter key takes part in the definition.
func (d *Desc) SetParamEnabled(key string, yn bool) {
	if _, idx := d.tmpl.spec(key); idx >= 0 {
		d.params[idx].enabled = yn
	}
}

// IsParamEnabled reports whether parameter key is enabled.
func (d *Desc) IsParamEnabled(key string) bool {
	_, idx := d.tmpl.spec(key)
	return idx >= 0 && d.params[idx].enabled
}

func (d *Desc) value(key string) any {
	if _, idx := d.tmpl.spec(key); idx >= 0 {
		return d.params[idx].value
	}
	return nil
}

// Float returns a float parameter.
func (d *Desc) Float(key string) float64 {
	v, _ := d.value(key).(float64)
	return v
}

// FloatInterval returns an interval (gate) parameter.
func (d *Desc) FloatInterval(key string) geom.Interval {
	v, _ := d.value(key).(geom.Interval)
	return v
}

// Int returns an integer parameter.
func (d *Desc) Int(key string) int {
	v, _ := d.value(key).(int)
	return v
}

// Bool returns a boolean parameter.
func (d *Desc) Bool(key string) bool {
	v, _ := d.value(key).(bool)
	return v
}

// BinID returns a bin offset parameter.
func (d *Desc) BinID(key string) geom.BinID {
	v, _ := d.value(key).(geom.BinID)
	return v
}

// Enum returns the index of an enum parameter.
func (d *Desc) Enum(key string) int {
	v, _ := d.value(key).(enumValue)
	return int(v)
}

// EnumName returns the selected name of an enum parameter.
func (d *Desc) EnumName(key string) string {
	spec, _ := d.tmpl.spec(key)
	if spec == nil {
		return ""
	}
	idx := d.Enum(key)
	if idx < 0 || idx >= len(spec.Enums) {
		return ""
	}
	return spec.Enums[idx]
}

// Text returns a string parameter.
func (d *Desc) Text(key string) string {
	v, _ := d.value(key).(string)
	return v
}

// Definition returns the canonical text of the type and its enabled parameters.
func (d *Desc) Definition() string {
	var b strings.Builder
	b.WriteString(d.tmpl.Name)
	for _, p := range d.params {
		if !p.enabled {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(p.spec.Key)
		b.WriteByte('=')
		b.WriteString(formatValue(p.spec, p.value))
	}
	return b.String()
}

// Fingerprint hashes the definition together with every input's fingerprint
// and selected output. The descriptor's own selected output is left out so
// that consumers of different outputs still share one computation.
func (d *Desc) Fingerprint() uint64 {
	var b strings.Builder
	b.WriteString(d.Definition())
	for i, in := range d.inputs {
		fmt.Fprintf(&b, "|%d=", i)
		if in == nil {
			b.WriteByte('-')
			continue
		}
		fmt.Fprintf(&b, "%016x:%d", in.Fingerprint(), in.SelectedOutput)
	}
	return xxh3.HashString(b.String())
}

// IsIdenticalTo reports whether d and o describe the same computation. With
// cmpOutput the selected outputs must match too. Inputs always compare their
// selected outputs since they feed different data.
func (d *Desc) IsIdenticalTo(o *Desc, cmpOutput bool) bool {
	if d == o {
		return true
	}
	if o == nil || d.tmpl != o.tmpl {
		return false
	}
	if cmpOutput && d.SelectedOutput != o.SelectedOutput {
		return false
	}
	if d.Fingerprint() != o.Fingerprint() {
		return false
	}
	for i := range d.params {
		p, q := d.params[i], o.params[i]
		if p.enabled != q.enabled {
			return false
		}
		if p.enabled && !valuesEqual(p.value, q.value) {
			return false
		}
	}
	if len(d.inputs) != len(o.inputs) {
		return false
	}
	for i := range d.inputs {
		a, b := d.inputs[i], o.inputs[i]
		if (a == nil) != (b == nil) {
			return false
		}
		if a != nil && !a.IsIdenticalTo(b, true) {
			return false
		}
	}
	return true
}

// Clone copies d without its set membership. Inputs are shared.
func (d *Desc) Clone() *Desc {
	c := *d
	c.params = append([]param(nil), d.params...)
	c.inputs = append([]*Desc(nil), d.inputs...)
	c.set = nil
	return &c
}

func (d *Desc) String() string {
	if d.UserRef != "" {
		return fmt.Sprintf("%s (%s)", d.UserRef, d.tmpl.Name)
	}
	return d.tmpl.Name
}

type enumValue int

func zeroValue(kind ParamKind) any {
	switch kind {
	case KindFloat:
		return 0.0
	case KindInterval:
		return geom.Interval{}
	case KindInt:
		return 0
	case KindBool:
		return false
	case KindBinID:
		return geom.BinID{}
	case KindEnum:
		return enumValue(0)
	}
	return ""
}

func parseValue(spec *ParamSpec, text string) (any, error) {
	text = strings.TrimSpace(text)
	switch spec.Kind {
	case KindFloat:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrBadValue, text)
		}
		if spec.Limits != nil && (v < spec.Limits.Start || v > spec.Limits.Stop) {
			return nil, fmt.Errorf("%w: %g outside %s", ErrBadValue, v, spec.Limits)
		}
		return v, nil
	case KindInterval:
		parts := splitPair(strings.Trim(text, "[]() "))
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: %q is not an interval", ErrBadValue, text)
		}
		start, err1 := strconv.ParseFloat(parts[0], 64)
		stop, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: %q is not an interval", ErrBadValue, text)
		}
		if stop < start {
			return nil, fmt.Errorf("%w: interval %q is reversed", ErrBadValue, text)
		}
		if spec.Limits != nil && (start < spec.Limits.Start || stop > spec.Limits.Stop) {
			return nil, fmt.Errorf("%w: %q outside %s", ErrBadValue, text, spec.Limits)
		}
		return geom.Interval{Start: start, Stop: stop}, nil
	case KindInt:
		v, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrBadValue, text)
		}
		return v, nil
	case KindBool:
		switch strings.ToLower(text) {
		case "yes", "y":
			return true, nil
		case "no", "n":
			return false, nil
		}
		v, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean", ErrBadValue, text)
		}
		return v, nil
	case KindBinID:
		parts := splitPair(text)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: %q is not a bin offset", ErrBadValue, text)
		}
		inl, err1 := strconv.Atoi(parts[0])
		crl, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: %q is not a bin offset", ErrBadValue, text)
		}
		return geom.BinID{Inl: inl, Crl: crl}, nil
	case KindEnum:
		for i, name := range spec.Enums {
			if strings.EqualFold(name, text) {
				return enumValue(i), nil
			}
		}
		if idx, err := strconv.Atoi(text); err == nil && idx >= 0 && idx < len(spec.Enums) {
			return enumValue(idx), nil
		}
		return nil, fmt.Errorf("%w: %q not one of %s", ErrBadValue, text, strings.Join(spec.Enums, ", "))
	}
	return text, nil
}

func formatValue(spec *ParamSpec, v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case geom.Interval:
		return val.String()
	case geom.BinID:
		return fmt.Sprintf("%d,%d", val.Inl, val.Crl)
	case enumValue:
		if int(val) < len(spec.Enums) {
			return spec.Enums[val]
		}
		return strconv.Itoa(int(val))
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case string:
		return strconv.Quote(val)
	}
	return fmt.Sprint(v)
}

func valuesEqual(a, b any) bool {
	if fa, ok := a.(float64); ok {
		fb, ok := b.(float64)
		return ok && math.Abs(fa-fb) <= 1e-9*math.Max(1, math.Abs(fa))
	}
	return a == b
}

func splitPair(text string) []string {
	sep := ","
	if !strings.Contains(text, sep) {
		sep = "/"
	}
	parts := strings.Split(text, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
