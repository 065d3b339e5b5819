package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk form of a policy set.
//
//	policies:
//	  - key: downloads.binary
//	    retry:
//	      extra_attempts: 3
//	      initial_backoff: 20ms
//	    race:
//	      timeout: 2s
type Document struct {
	Default  *EffectivePolicy  `yaml:"default,omitempty"`
	Policies []EffectivePolicy `yaml:"policies"`
}

// UnmarshalYAML accepts either "namespace.name" or a namespace/name mapping.
func (k *PolicyKey) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*k = ParseKey(value.Value)
		return nil
	}

	type plain PolicyKey
	var out plain
	if err := value.Decode(&out); err != nil {
		return err
	}
	*k = PolicyKey(out)
	return nil
}

// ParseYAML decodes and normalizes a policy document.
func ParseYAML(r io.Reader) (Document, error) {
	var doc Document

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, nil
		}
		return Document{}, fmt.Errorf("firstof: decode policy document: %w", err)
	}

	seen := make(map[PolicyKey]struct{}, len(doc.Policies))
	for i, p := range doc.Policies {
		if p.Key == (PolicyKey{}) {
			return Document{}, &NormalizeError{Field: fmt.Sprintf("policies[%d].key", i), Value: ""}
		}
		if _, dup := seen[p.Key]; dup {
			return Document{}, &NormalizeError{Field: fmt.Sprintf("policies[%d].key", i), Value: p.Key.String()}
		}
		seen[p.Key] = struct{}{}

		normalized, err := p.Normalize()
		if err != nil {
			return Document{}, err
		}
		normalized.Meta.Source = PolicySourceFile
		doc.Policies[i] = normalized
	}

	if doc.Default != nil {
		normalized, err := doc.Default.Normalize()
		if err != nil {
			return Document{}, err
		}
		normalized.Meta.Source = PolicySourceFile
		doc.Default = &normalized
	}

	return doc, nil
}

// ParseYAMLBytes is ParseYAML over an in-memory document.
func ParseYAMLBytes(b []byte) (Document, error) {
	return ParseYAML(bytes.NewReader(b))
}

// Lookup returns the policy for key, falling back to the document default.
func (d Document) Lookup(key PolicyKey) (EffectivePolicy, bool) {
	for _, p := range d.Policies {
		if p.Key == key {
			return p, true
		}
	}
	if d.Default != nil {
		p := *d.Default
		p.Key = key
		return p, true
	}
	return EffectivePolicy{}, false
}
