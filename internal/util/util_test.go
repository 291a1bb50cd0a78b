package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type forecastArgs struct {
	Location string  `json:"location" description:"City name"`
	Days     int     `json:"days,omitempty"`
	Units    *string `json:"units" enum:"metric|imperial"`
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(forecastArgs{})

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "location")
	assert.Contains(t, props, "days")
	assert.Equal(t, []string{"metric", "imperial"}, props["units"].(map[string]any)["enum"])
	assert.Equal(t, []string{"location"}, RequiredFields(schema))
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x":     map[string]any{"type": "integer"},
			"units": map[string]any{"type": "string", "enum": []string{"metric", "imperial"}},
		},
		"required": []string{"x"},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"x": float64(5)}, schema))

	err := ValidateParameters(map[string]any{}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "x", vErr.Field)

	err = ValidateParameters(map[string]any{"x": "nope"}, schema)
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "expected type integer")

	err = ValidateParameters(map[string]any{"x": 1, "units": "kelvin"}, schema)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "units", vErr.Field)
}

func TestValidateParameters_DecodedRequired(t *testing.T) {
	schema := map[string]any{"required": []any{"q"}}
	assert.Error(t, ValidateParameters(map[string]any{}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"q": "go"}, schema))
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Hello {{.name | upper}}, findings: {{default 0 .findings}}", map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello ADA, findings: 0", out)

	plain, err := RenderTemplate("no markers", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers", plain)
}
