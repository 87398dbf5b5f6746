// Package options models build options: their declared type, allowed
// values, and the ranked source that last set their current value, plus
// a pflag-backed surface for applying commandline overrides.
package options

import "fmt"

// Type is an option's declared value kind.
type Type int

const (
	TypeString Type = iota
	TypeBool
	TypeCombo
	TypeInteger
	TypeArray
	TypeFeature
	TypeShellArray
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeBool:
		return "boolean"
	case TypeCombo:
		return "combo"
	case TypeInteger:
		return "integer"
	case TypeArray:
		return "array"
	case TypeFeature:
		return "feature"
	case TypeShellArray:
		return "shell_array"
	default:
		return "unknown"
	}
}

// Source ranks where an option's current value came from. A later set
// call only takes effect when its Source is ranked >= the value
// currently recorded; this is what lets a default_options: entry be
// silently overridden by an explicit -Dfoo=bar without the reverse
// happening.
type Source int

const (
	SourceUnset Source = iota
	SourceDefault
	SourceEnvironment
	SourceYield
	SourceDefaultOptions
	SourceSubprojectDefaultOptions
	SourceOverrideOptions
	SourceDeprecatedRename
	SourceCommandline
)

func (s Source) String() string {
	names := [...]string{
		"unset", "default", "environment", "yield", "default_options",
		"subproject_default_options", "override_options", "deprecated_rename",
		"commandline",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// Option is one declared build option together with its current value
// and the provenance of that value.
type Option struct {
	Name    string
	Type    Type
	Choices []string
	Min     *int64
	Max     *int64
	Default any
	Current any
	Source  Source
}

// Set overwrites o's current value if src outranks (or ties) the
// source that set the value currently held, validating v against the
// option's declared type and constraints first.
func (o *Option) Set(v any, src Source) error {
	if src < o.Source {
		return nil
	}
	cv, err := o.coerce(v)
	if err != nil {
		return err
	}
	o.Current = cv
	o.Source = src
	return nil
}

func (o *Option) coerce(v any) (any, error) {
	switch o.Type {
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("option %s: want bool, got %T", o.Name, v)
			}
			switch s {
			case "true", "enabled":
				return true, nil
			case "false", "disabled":
				return false, nil
			default:
				return nil, fmt.Errorf("option %s: invalid boolean %q", o.Name, s)
			}
		}
		return b, nil
	case TypeInteger:
		i, ok := toInt64(v)
		if !ok {
			return nil, fmt.Errorf("option %s: want integer, got %T", o.Name, v)
		}
		if o.Min != nil && i < *o.Min {
			return nil, fmt.Errorf("option %s: %d below minimum %d", o.Name, i, *o.Min)
		}
		if o.Max != nil && i > *o.Max {
			return nil, fmt.Errorf("option %s: %d above maximum %d", o.Name, i, *o.Max)
		}
		return i, nil
	case TypeCombo:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("option %s: want string, got %T", o.Name, v)
		}
		for _, c := range o.Choices {
			if c == s {
				return s, nil
			}
		}
		return nil, fmt.Errorf("option %s: %q is not one of %v", o.Name, s, o.Choices)
	case TypeFeature:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("option %s: want string, got %T", o.Name, v)
		}
		switch s {
		case "enabled", "disabled", "auto":
			return s, nil
		default:
			return nil, fmt.Errorf("option %s: invalid feature value %q", o.Name, s)
		}
	case TypeArray, TypeShellArray:
		switch vv := v.(type) {
		case []string:
			return vv, nil
		case string:
			return []string{vv}, nil
		default:
			return nil, fmt.Errorf("option %s: want array, got %T", o.Name, v)
		}
	default:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("option %s: want string, got %T", o.Name, v)
		}
		return s, nil
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
