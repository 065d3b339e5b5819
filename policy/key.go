package policy

import "strings"

// PolicyKey names a race. Policies are resolved by key and every
// observability record carries it.
type PolicyKey struct {
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Name      string `json:"name" yaml:"name"`
}

// ParseKey parses "namespace.name" into a PolicyKey.
// Everything after the first dot belongs to Name.
func ParseKey(s string) PolicyKey {
	s = strings.TrimSpace(s)
	if s == "" {
		return PolicyKey{}
	}

	ns, name, ok := strings.Cut(s, ".")
	if !ok {
		return PolicyKey{Name: s}
	}

	ns = strings.TrimSpace(ns)
	name = strings.TrimSpace(name)
	if ns == "" {
		return PolicyKey{Name: name}
	}
	if name == "" {
		return PolicyKey{Name: s}
	}
	return PolicyKey{Namespace: ns, Name: name}
}

func (k PolicyKey) String() string {
	switch {
	case k.Namespace == "":
		return k.Name
	case k.Name == "":
		return k.Namespace
	default:
		return k.Namespace + "." + k.Name
	}
}
