// Package features maps backend feature keys to human-readable labels.
//
// The backend reports model attributions and chart indicators under opaque
// keys such as "rsi" or "price_pct_change_4h". A [Dictionary] resolves them
// in two independent namespaces, [Model] and [Chart]. Entries are either
// [Exact] keys or [Templated] patterns with one captured integer; templates
// apply only in the model namespace.
//
// Unknown keys are not an error: they resolve to the key itself with
// [NoDescription].
package features

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

// NoDescription is the description returned for keys with no entry.
const NoDescription = "No description available."

// Namespace selects which dictionary a key is looked up in.
type Namespace string

const (
	// Model holds model-explanation features (SHAP inputs).
	Model Namespace = "model"

	// Chart holds chart indicators.
	Chart Namespace = "chart"
)

// ParseNamespace validates s as a [Namespace].
func ParseNamespace(s string) (Namespace, error) {
	switch ns := Namespace(strings.ToLower(s)); ns {
	case Model, Chart:
		return ns, nil
	}
	return "", fmt.Errorf("unknown feature namespace %q (want model or chart)", s)
}

// Label is a resolved feature key.
type Label struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Entry is one dictionary row: an [Exact] or a [Templated].
type Entry interface {
	entry()
}

// Exact maps a single key.
type Exact struct {
	Key         string
	Name        string
	Description string
}

// Templated maps every key matching Pattern, a regular expression with
// exactly one capture group that must match digits only. Name and
// Description are text/template strings; the captured value is available
// as {{.N}} and is substituted at every occurrence.
type Templated struct {
	Pattern     string
	Name        string
	Description string
}

func (Exact) entry()     {}
func (Templated) entry() {}

type compiledTemplate struct {
	pattern     *regexp.Regexp
	name        *template.Template
	description *template.Template
}

// Dictionary resolves feature keys. It is immutable after [New] and safe for
// concurrent use.
type Dictionary struct {
	exact     map[Namespace]map[string]Label
	templates []compiledTemplate // model namespace only, in declaration order
}

// New builds a [Dictionary]. Templates are compiled once here.
//
// Returns an error for duplicate exact keys, templates outside the model
// namespace, patterns that do not compile or do not have exactly one capture
// group, and invalid label templates.
func New(entries map[Namespace][]Entry) (*Dictionary, error) {
	d := &Dictionary{exact: make(map[Namespace]map[string]Label)}

	for _, ns := range []Namespace{Model, Chart} {
		d.exact[ns] = make(map[string]Label)
	}

	for ns, list := range entries {
		if _, err := ParseNamespace(string(ns)); err != nil {
			return nil, err
		}
		for i, e := range list {
			switch e := e.(type) {
			case Exact:
				if e.Key == "" {
					return nil, fmt.Errorf("%s[%d]: exact key cannot be empty", ns, i)
				}
				if _, dup := d.exact[ns][e.Key]; dup {
					return nil, fmt.Errorf("%s[%d]: duplicate key %q", ns, i, e.Key)
				}
				d.exact[ns][e.Key] = Label{Name: e.Name, Description: e.Description}
			case Templated:
				if ns != Model {
					return nil, fmt.Errorf("%s[%d]: templated entries are only supported in the model namespace", ns, i)
				}
				ct, err := compile(e)
				if err != nil {
					return nil, fmt.Errorf("%s[%d] (%s): %w", ns, i, e.Pattern, err)
				}
				d.templates = append(d.templates, ct)
			default:
				return nil, fmt.Errorf("%s[%d]: unsupported entry type %T", ns, i, e)
			}
		}
	}

	return d, nil
}

// MustNew is like [New] but panics on error.
func MustNew(entries map[Namespace][]Entry) *Dictionary {
	d, err := New(entries)
	if err != nil {
		panic("features: invalid dictionary: " + err.Error())
	}
	return d
}

func compile(t Templated) (compiledTemplate, error) {
	re, err := regexp.Compile(`^(?:` + t.Pattern + `)$`)
	if err != nil {
		return compiledTemplate{}, fmt.Errorf("invalid pattern: %w", err)
	}
	if re.NumSubexp() != 1 {
		return compiledTemplate{}, errors.New("pattern must have exactly one capture group")
	}

	name, err := template.New("name").Option("missingkey=error").Parse(t.Name)
	if err != nil {
		return compiledTemplate{}, fmt.Errorf("invalid name template: %w", err)
	}
	desc, err := template.New("description").Option("missingkey=error").Parse(t.Description)
	if err != nil {
		return compiledTemplate{}, fmt.Errorf("invalid description template: %w", err)
	}

	return compiledTemplate{pattern: re, name: name, description: desc}, nil
}

// Resolve returns the label for key in ns.
//
// Exact keys are checked first; then, in the model namespace only, templates
// in declaration order. Anything else resolves to {key, NoDescription}.
func (d *Dictionary) Resolve(key string, ns Namespace) Label {
	if l, ok := d.exact[ns][key]; ok {
		return l
	}

	if ns == Model {
		for _, t := range d.templates {
			m := t.pattern.FindStringSubmatch(key)
			if m == nil || !isDigits(m[1]) {
				continue
			}
			name, err1 := execute(t.name, m[1])
			desc, err2 := execute(t.description, m[1])
			if err1 != nil || err2 != nil {
				continue
			}
			return Label{Name: name, Description: desc}
		}
	}

	return Label{Name: key, Description: NoDescription}
}

func execute(t *template.Template, n string) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, struct{ N string }{n}); err != nil {
		return "", err
	}
	return b.String(), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Resolve looks key up in the [Default] dictionary.
func Resolve(key string, ns Namespace) Label {
	return Default.Resolve(key, ns)
}
