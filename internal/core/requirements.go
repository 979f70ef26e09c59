package core

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// requirementsFile is the YAML shape of a requirements specification:
//
//	collections:
//	  - namespace.name
//	  - namespace.name:>=1.0.0
//	  - name: namespace.name
//	    version: ">=1.0.0,<2.0.0"
//	    source: https://other-galaxy.example/api/
type requirementsFile struct {
	Collections []requirementsEntry `yaml:"collections"`
}

type requirementsEntry struct {
	Name    string
	Version string
	Source  string
}

func (e *requirementsEntry) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		e.Name, e.Version, _ = strings.Cut(s, ":")
		return nil
	case yaml.MappingNode:
		var m struct {
			Name    string `yaml:"name"`
			Version string `yaml:"version"`
			Source  string `yaml:"source"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		e.Name, e.Version, e.Source = m.Name, m.Version, m.Source
		return nil
	default:
		return fmt.Errorf("line %d: collection entry must be a string or a mapping", node.Line)
	}
}

// ParseRequirements parses a requirements specification into an ordered
// requirement list. Order is preserved: it seeds the resolver's tie-break
// order. Blank input yields a nil list, meaning "sync everything available
// from the remote, unconstrained".
func ParseRequirements(spec string) ([]Requirement, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}

	var file requirementsFile
	if err := yaml.Unmarshal([]byte(spec), &file); err != nil {
		return nil, &MalformedRequirementError{Entry: "requirements file", Reason: err.Error()}
	}

	reqs := make([]Requirement, 0, len(file.Collections))
	for _, entry := range file.Collections {
		id, err := ParseIdentity(entry.Name)
		if err != nil {
			return nil, err
		}
		constraint, err := ParseConstraint(entry.Version)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, Requirement{
			Identity:   id,
			Constraint: constraint,
			Source:     entry.Source,
			Explicit:   true,
		})
	}
	return reqs, nil
}
