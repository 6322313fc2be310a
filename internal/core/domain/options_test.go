package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestMergeOptions(t *testing.T) {
	t.Parallel()

	defs := map[string]domain.OptionDefinition{
		"shared":   {Type: domain.OptionBool, Default: "true"},
		"loglevel": {Type: domain.OptionChoice, Default: "info", Choices: []string{"debug", "info", "warn"}},
	}

	t.Run("defaults apply", func(t *testing.T) {
		t.Parallel()

		got, err := domain.MergeOptions(defs, nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"shared": "true", "loglevel": "info"}, got)
	})

	t.Run("override replaces default", func(t *testing.T) {
		t.Parallel()

		got, err := domain.MergeOptions(defs, map[string]string{"shared": "false"})
		require.NoError(t, err)
		assert.Equal(t, "false", got["shared"])
		assert.Equal(t, "info", got["loglevel"])
	})

	t.Run("unknown option rejected", func(t *testing.T) {
		t.Parallel()

		_, err := domain.MergeOptions(defs, map[string]string{"static": "true"})
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrUnknownOption.Error())

		var zErr *zerr.Error
		require.ErrorAs(t, err, &zErr)
		assert.Equal(t, "static", zErr.Metadata()["option"])
	})

	t.Run("invalid value rejected", func(t *testing.T) {
		t.Parallel()

		_, err := domain.MergeOptions(defs, map[string]string{"loglevel": "trace"})
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrInvalidOption.Error())
	})
}

func TestOptionDefinition_CheckValue(t *testing.T) {
	t.Parallel()

	minVal, maxVal := 1.0, 64.0

	tests := []struct {
		name    string
		def     domain.OptionDefinition
		value   string
		wantErr bool
	}{
		{"bool true", domain.OptionDefinition{Type: domain.OptionBool}, "true", false},
		{"bool junk", domain.OptionDefinition{Type: domain.OptionBool}, "yes", true},
		{"string free-form", domain.OptionDefinition{Type: domain.OptionString}, "anything", false},
		{"string pattern match", domain.OptionDefinition{Type: domain.OptionString, Pattern: `^v\d+$`}, "v12", false},
		{"string pattern miss", domain.OptionDefinition{Type: domain.OptionString, Pattern: `^v\d+$`}, "12", true},
		{"choice hit", domain.OptionDefinition{Type: domain.OptionChoice, Choices: []string{"a", "b"}}, "b", false},
		{"choice miss", domain.OptionDefinition{Type: domain.OptionChoice, Choices: []string{"a", "b"}}, "c", true},
		{"number in range", domain.OptionDefinition{Type: domain.OptionNumber, Min: &minVal, Max: &maxVal}, "8", false},
		{"number below min", domain.OptionDefinition{Type: domain.OptionNumber, Min: &minVal}, "0", true},
		{"number above max", domain.OptionDefinition{Type: domain.OptionNumber, Max: &maxVal}, "128", true},
		{"number junk", domain.OptionDefinition{Type: domain.OptionNumber}, "eight", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.def.CheckValue("opt", tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOptionDefinition_Validate(t *testing.T) {
	t.Parallel()

	t.Run("unknown type", func(t *testing.T) {
		t.Parallel()

		def := domain.OptionDefinition{Type: "enum"}
		err := def.Validate("mode")
		require.Error(t, err)

		var zErr *zerr.Error
		require.ErrorAs(t, err, &zErr)
		assert.Equal(t, "mode", zErr.Metadata()["option"])
	})

	t.Run("bad pattern", func(t *testing.T) {
		t.Parallel()

		def := domain.OptionDefinition{Type: domain.OptionString, Pattern: "("}
		assert.Error(t, def.Validate("prefix"))
	})

	t.Run("default violates definition", func(t *testing.T) {
		t.Parallel()

		def := domain.OptionDefinition{Type: domain.OptionBool, Default: "maybe"}
		assert.Error(t, def.Validate("shared"))
	})
}
