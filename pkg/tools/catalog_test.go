package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopEffect(ctx context.Context, input map[string]interface{}, inv InvocationContext) (interface{}, error) {
	return nil, nil
}

func testDescriptor(name string) Descriptor {
	return Descriptor{
		Name:        name,
		Description: "A test tool",
		Risk:        RiskLow,
		Parameters: []Parameter{
			{Name: "input", Type: "string", Description: "Input parameter", Required: true},
		},
		Effect: noopEffect,
	}
}

func TestCatalog_Register(t *testing.T) {
	c := NewCatalog()

	err := c.Register(testDescriptor("test_tool"))
	assert.NoError(t, err)

	d, err := c.Get("test_tool")
	require.NoError(t, err)
	assert.Equal(t, "test_tool", d.Name)
	assert.Equal(t, 1, c.Count())
}

func TestCatalog_Register_Duplicate(t *testing.T) {
	c := NewCatalog()

	require.NoError(t, c.Register(testDescriptor("test_tool")))

	err := c.Register(testDescriptor("test_tool"))
	require.Error(t, err)

	var dup *ErrDuplicateTool
	assert.ErrorAs(t, err, &dup)
	assert.Equal(t, "test_tool", dup.Name)

	// The original registration is untouched
	assert.Equal(t, 1, c.Count())
}

func TestCatalog_Register_InvalidDescriptor(t *testing.T) {
	c := NewCatalog()

	tests := []struct {
		name string
		def  Descriptor
	}{
		{
			name: "empty name",
			def:  Descriptor{Description: "Test", Risk: RiskLow, Effect: noopEffect},
		},
		{
			name: "empty description",
			def:  Descriptor{Name: "test", Risk: RiskLow, Effect: noopEffect},
		},
		{
			name: "nil effect",
			def:  Descriptor{Name: "test", Description: "Test", Risk: RiskLow},
		},
		{
			name: "missing risk level",
			def:  Descriptor{Name: "test", Description: "Test", Effect: noopEffect},
		},
		{
			name: "invalid risk level",
			def:  Descriptor{Name: "test", Description: "Test", Risk: "extreme", Effect: noopEffect},
		},
		{
			name: "invalid scope",
			def: Descriptor{
				Name: "test", Description: "Test", Risk: RiskLow,
				Scopes: []Scope{"galaxy"}, Effect: noopEffect,
			},
		},
		{
			name: "invalid parameter type",
			def: Descriptor{
				Name: "test", Description: "Test", Risk: RiskLow,
				Parameters: []Parameter{{Name: "p", Type: "uuid", Description: "P"}},
				Effect:     noopEffect,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Register(tt.def)
			assert.Error(t, err)
		})
	}
}

func TestCatalog_Get_NotFound(t *testing.T) {
	c := NewCatalog()

	_, err := c.Get("nonexistent")
	require.Error(t, err)

	var nf *ErrToolNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestCatalog_List_RegistrationOrder(t *testing.T) {
	c := NewCatalog()

	names := []string{"zeta", "alpha", "mid"}
	for _, name := range names {
		require.NoError(t, c.Register(testDescriptor(name)))
	}

	listed := c.List(nil)
	require.Len(t, listed, 3)
	for i, d := range listed {
		assert.Equal(t, names[i], d.Name)
	}
}

func TestCatalog_List_Filter(t *testing.T) {
	c := NewCatalog()

	low := testDescriptor("low_tool")
	low.Risk = RiskLow

	high := testDescriptor("high_tool")
	high.Risk = RiskHigh

	project := testDescriptor("project_tool")
	project.Scopes = []Scope{ScopeProject}

	require.NoError(t, c.Register(low))
	require.NoError(t, c.Register(high))
	require.NoError(t, c.Register(project))

	t.Run("by risk", func(t *testing.T) {
		listed := c.List(&Filter{Risk: RiskHigh})
		require.Len(t, listed, 1)
		assert.Equal(t, "high_tool", listed[0].Name)
	})

	t.Run("by scope", func(t *testing.T) {
		listed := c.List(&Filter{Scope: ScopeProject})
		require.Len(t, listed, 1)
		assert.Equal(t, "project_tool", listed[0].Name)
	})

	t.Run("unscoped tools are workspace-wide", func(t *testing.T) {
		listed := c.List(&Filter{Scope: ScopeWorkspace})
		assert.Len(t, listed, 2)
	})
}

func TestCatalog_Contract_Validation(t *testing.T) {
	c := NewCatalog()

	def := Descriptor{
		Name:        "multi_param",
		Description: "Tool with multiple parameter types",
		Risk:        RiskLow,
		Parameters: []Parameter{
			{Name: "str", Type: "string", Description: "String param", Required: true},
			{Name: "num", Type: "number", Description: "Number param", Required: true},
			{Name: "flag", Type: "boolean", Description: "Boolean param", Required: false},
		},
		Effect: noopEffect,
	}
	require.NoError(t, c.Register(def))

	contract, err := c.Contract("multi_param")
	require.NoError(t, err)

	t.Run("valid input", func(t *testing.T) {
		err := contract.Validate(map[string]interface{}{
			"str": "test", "num": 42.5, "flag": true,
		})
		assert.NoError(t, err)
	})

	t.Run("missing required parameter", func(t *testing.T) {
		err := contract.Validate(map[string]interface{}{"str": "test"})
		assert.Error(t, err)
	})

	t.Run("wrong type", func(t *testing.T) {
		err := contract.Validate(map[string]interface{}{"str": 1, "num": 42.5})
		assert.Error(t, err)
	})

	t.Run("unknown property", func(t *testing.T) {
		err := contract.Validate(map[string]interface{}{
			"str": "test", "num": 1.0, "extra": "nope",
		})
		assert.Error(t, err)
	})
}

func TestCatalog_Names(t *testing.T) {
	c := NewCatalog()

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Register(testDescriptor(fmt.Sprintf("tool%d", i))))
	}

	names := c.Names()
	assert.Equal(t, []string{"tool0", "tool1", "tool2", "tool3", "tool4"}, names)
}
