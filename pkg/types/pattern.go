package types

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// StringList is a configuration field that may be written either as a single
// string or as a sequence of strings.
type StringList []string

// UnmarshalYAML accepts a scalar or a sequence node.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*l = nil
			return nil
		}
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*l = Normalize[string](s)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = Normalize[string](items)
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

// Pattern is a single copy instruction read from configuration.
// Patterns are never mutated once loaded.
type Pattern struct {
	From    StringList `yaml:"from"`              // Source files or directories, resolved against the working directory.
	To      StringList `yaml:"to"`                // Destination directories; each receives the same filtered content.
	Include StringList `yaml:"include,omitempty"` // Keep only top-level entries whose name matches one of these globs.
	Exclude StringList `yaml:"exclude,omitempty"` // Drop top-level entries whose name matches one of these globs.
	Watch   bool       `yaml:"watch,omitempty"`   // Re-copy on change when watching is enabled globally.
}

// Filter returns the name filter described by the pattern.
func (p Pattern) Filter() Filter {
	return Filter{
		Include: append([]string(nil), p.Include...),
		Exclude: append([]string(nil), p.Exclude...),
	}
}

// Filter selects which top-level entries of a source survive in a destination.
// A name is kept when Include is empty or matches it, and Exclude does not match it.
type Filter struct {
	Include []string
	Exclude []string
}

// IsEmpty reports whether the filter keeps everything.
func (f Filter) IsEmpty() bool {
	return len(f.Include) == 0 && len(f.Exclude) == 0
}

// WithInclude returns a copy of the filter with extra include patterns appended.
func (f Filter) WithInclude(patterns ...string) Filter {
	include := make([]string, 0, len(f.Include)+len(patterns))
	include = append(include, f.Include...)
	include = append(include, patterns...)
	return Filter{
		Include: include,
		Exclude: append([]string(nil), f.Exclude...),
	}
}
