package matcher

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tavgar/endpointfinder/internal/resolve"
	"github.com/tavgar/endpointfinder/internal/symbolic"
)

// Definition describes a matcher without code. With verbs set it matches
// object.verb(...) calls whose object is named in Objects; without verbs it
// matches plain calls of the functions named in Functions.
type Definition struct {
	Name        string   `yaml:"name"`
	Objects     []string `yaml:"objects"`
	Functions   []string `yaml:"functions"`
	Verbs       []string `yaml:"verbs"`
	Argument    int      `yaml:"argument"`
	SettingsKey string   `yaml:"settings_key"`
}

type definitionFile struct {
	Matchers []Definition `yaml:"matchers"`
}

// Validate checks that d describes a usable matcher.
func (d Definition) Validate() error {
	switch {
	case d.Name == "":
		return errors.New("matcher definition without a name")
	case d.Argument < 0:
		return fmt.Errorf("matcher %q: negative argument index", d.Name)
	case len(d.Verbs) > 0 && len(d.Objects) == 0:
		return fmt.Errorf("matcher %q: verbs need at least one object", d.Name)
	case len(d.Verbs) == 0 && len(d.Functions) == 0:
		return fmt.Errorf("matcher %q: needs verbs and objects or functions", d.Name)
	}
	return nil
}

// Matcher builds the matcher d describes.
func (d Definition) Matcher() Matcher {
	return Funcs{
		Label: d.Name,
		May: func(c Call) bool {
			if len(d.Verbs) == 0 {
				return len(c.Callee) == 1
			}
			verb, ok := c.Verb()
			return ok && oneOf(verb, d.Verbs)
		},
		Get: func(c Call, r *resolve.Resolver) []Endpoint {
			if !d.accepts(c.Head()) {
				return nil
			}
			return extract(c, r, d.Argument, d.SettingsKey)
		},
	}
}

func (d Definition) accepts(head symbolic.Value) bool {
	names := d.Objects
	if len(d.Verbs) == 0 {
		names = d.Functions
		// Plain calls must reach an undeclared global, not a local function
		// that happens to share the name.
		ref, ok := head.(*symbolic.Reference)
		if !ok || symbolic.ScopeOf(ref.Name) != symbolic.GlobalScope {
			return false
		}
	}
	name, ok := surface(head)
	return ok && oneOf(name, names)
}

// Parse decodes a YAML document of the form
//
//	matchers:
//	  - name: axios
//	    objects: [axios]
//	    verbs: [get, post]
//	    argument: 0
//	    settings_key: url
func Parse(data []byte) ([]Matcher, error) {
	var file definitionFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode matcher definitions: %w", err)
	}
	out := make([]Matcher, 0, len(file.Matchers))
	for _, d := range file.Matchers {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		out = append(out, d.Matcher())
	}
	return out, nil
}

// LoadFile reads matcher definitions from path.
func LoadFile(path string) ([]Matcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ms, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ms, nil
}
