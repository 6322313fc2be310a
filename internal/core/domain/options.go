package domain

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

// OptionType enumerates the supported option value types.
type OptionType string

const (
	// OptionBool is a true/false switch.
	OptionBool OptionType = "bool"
	// OptionString is free-form text, optionally constrained by a regex pattern.
	OptionString OptionType = "string"
	// OptionChoice is one value out of a fixed set.
	OptionChoice OptionType = "choice"
	// OptionNumber is a numeric value, optionally bounded by Min/Max.
	OptionNumber OptionType = "number"
)

// OptionDefinition declares a configurable package option.
type OptionDefinition struct {
	Type        OptionType
	Default     string
	Description string

	// Choices is the allowed value set for choice options.
	Choices []string

	// Pattern constrains string options when non-empty.
	Pattern string

	Min *float64
	Max *float64
}

// Validate checks the definition itself for well-formedness.
func (o *OptionDefinition) Validate(name string) error {
	switch o.Type {
	case OptionBool, OptionString, OptionNumber:
	case OptionChoice:
		if len(o.Choices) == 0 {
			return zerr.With(zerr.With(ErrInvalidOption, "option", name), "reason", "choice option without choices")
		}
	default:
		err := zerr.With(ErrInvalidOption, "option", name)
		return zerr.With(err, "reason", "unknown type "+strconv.Quote(string(o.Type)))
	}

	if o.Pattern != "" {
		if _, err := regexp.Compile(o.Pattern); err != nil {
			return zerr.With(zerr.With(zerr.Wrap(err, "invalid option pattern"), "option", name), "pattern", o.Pattern)
		}
	}

	if o.Default != "" {
		if err := o.CheckValue(name, o.Default); err != nil {
			return zerr.Wrap(err, "default value violates option definition")
		}
	}

	return nil
}

// CheckValue validates a concrete value against the definition.
func (o *OptionDefinition) CheckValue(name, value string) error {
	switch o.Type {
	case OptionBool:
		if value != "true" && value != "false" {
			return o.valueErr(name, value, "expected true or false")
		}
	case OptionString:
		if o.Pattern != "" {
			re, err := regexp.Compile(o.Pattern)
			if err != nil {
				return zerr.With(zerr.Wrap(err, "invalid option pattern"), "option", name)
			}
			if !re.MatchString(value) {
				return o.valueErr(name, value, "does not match pattern "+o.Pattern)
			}
		}
	case OptionChoice:
		if !slices.Contains(o.Choices, value) {
			return o.valueErr(name, value, "not one of "+strings.Join(o.Choices, ", "))
		}
	case OptionNumber:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return o.valueErr(name, value, "not a number")
		}
		if o.Min != nil && n < *o.Min {
			return o.valueErr(name, value, "below minimum")
		}
		if o.Max != nil && n > *o.Max {
			return o.valueErr(name, value, "above maximum")
		}
	}
	return nil
}

func (o *OptionDefinition) valueErr(name, value, reason string) error {
	err := zerr.With(ErrInvalidOption, "option", name)
	err = zerr.With(err, "value", value)
	return zerr.With(err, "reason", reason)
}

// MergeOptions resolves the effective option values for a package: declared
// defaults overlaid with overrides. Overrides naming undeclared options and
// values violating their definition are configuration errors.
func MergeOptions(defs map[string]OptionDefinition, overrides map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(defs))
	for name, def := range defs {
		out[name] = def.Default
	}
	for name, value := range overrides {
		def, ok := defs[name]
		if !ok {
			return nil, zerr.With(ErrUnknownOption, "option", name)
		}
		if err := def.CheckValue(name, value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, nil
}
