package tools

import (
	"context"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// RiskLevel classifies how dangerous a tool is to run unattended
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// IsValidRiskLevel checks if a risk level is valid
func IsValidRiskLevel(level RiskLevel) bool {
	switch level {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// Scope restricts where a tool may operate
type Scope string

const (
	ScopeWorkspace Scope = "workspace"
	ScopeProject   Scope = "project"
)

// InvocationContext carries caller identity for one tool call.
// It is supplied per call and never mutated by the framework.
type InvocationContext struct {
	ActorID     string `json:"actor_id"`
	WorkspaceID string `json:"workspace_id"`
	ProjectID   string `json:"project_id,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}

// EffectFunc performs the tool's side effect with already-validated input
type EffectFunc func(ctx context.Context, input map[string]interface{}, inv InvocationContext) (interface{}, error)

// Parameter defines a parameter for a tool
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// Descriptor defines a tool's identity, contracts and effect
type Descriptor struct {
	Name                 string      `json:"name"`
	Description          string      `json:"description"`
	Parameters           []Parameter `json:"parameters"`
	OutputSchema         map[string]interface{} `json:"output_schema,omitempty"`
	Risk                 RiskLevel   `json:"risk"`
	RequiresConfirmation bool        `json:"requires_confirmation"`
	Scopes               []Scope     `json:"scopes,omitempty"`
	Effect               EffectFunc  `json:"-"`
}

// HasScope reports whether the descriptor allows the given scope.
// A descriptor with no scopes is workspace-wide.
func (d *Descriptor) HasScope(scope Scope) bool {
	if len(d.Scopes) == 0 {
		return scope == ScopeWorkspace
	}
	for _, s := range d.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Contract validates raw input against a tool's input schema
type Contract interface {
	Validate(raw map[string]interface{}) error
}

type schemaContract struct {
	schema *gojsonschema.Schema
}

// Validate implements Contract using a compiled JSON Schema
func (c *schemaContract) Validate(raw map[string]interface{}) error {
	if c.schema == nil {
		return nil
	}

	result, err := c.schema.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return err
	}

	if !result.Valid() {
		errors := []string{}
		for _, verr := range result.Errors() {
			errors = append(errors, verr.String())
		}
		return fmt.Errorf("validation errors: %v", errors)
	}

	return nil
}

// compileContract generates and compiles a JSON Schema from the
// descriptor's parameters
func compileContract(d Descriptor) (Contract, error) {
	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           make(map[string]interface{}),
	}

	properties := schemaMap["properties"].(map[string]interface{})
	required := []string{}

	for _, param := range d.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}

		if param.Default != nil {
			paramSchema["default"] = param.Default
		}

		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	if len(required) > 0 {
		schemaMap["required"] = required
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
	if err != nil {
		return nil, err
	}

	return &schemaContract{schema: schema}, nil
}

// validateDescriptor checks a descriptor before registration
func validateDescriptor(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if d.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if d.Effect == nil {
		return fmt.Errorf("tool effect cannot be nil")
	}
	if d.Risk == "" {
		return fmt.Errorf("tool risk level cannot be empty")
	}
	if !IsValidRiskLevel(d.Risk) {
		return fmt.Errorf("invalid risk level %q for %s", d.Risk, d.Name)
	}

	for _, param := range d.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if param.Type == "" {
			return fmt.Errorf("parameter type cannot be empty for %s", param.Name)
		}
		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		}

		validTypes := map[string]bool{
			"string": true, "number": true, "boolean": true,
			"object": true, "array": true, "integer": true,
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
	}

	for _, scope := range d.Scopes {
		if scope != ScopeWorkspace && scope != ScopeProject {
			return fmt.Errorf("invalid scope %q for %s", scope, d.Name)
		}
	}

	return nil
}
