package tools

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrDuplicateTool is returned when registering a tool name that is
// already present. Registration never silently overwrites.
type ErrDuplicateTool struct {
	Name string
}

func (e *ErrDuplicateTool) Error() string {
	return fmt.Sprintf("tool already registered: %s", e.Name)
}

// ErrToolNotFound is returned when a tool name is not in the catalog
type ErrToolNotFound struct {
	Name string
}

func (e *ErrToolNotFound) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// Filter narrows a List call to tools with a given risk level or scope
type Filter struct {
	Risk  RiskLevel
	Scope Scope
}

// Catalog is an in-process registry of tool descriptors.
// It is an explicit instance handed to collaborators, not a global.
type Catalog struct {
	tools     map[string]*Descriptor
	contracts map[string]Contract
	order     []string
	mu        sync.RWMutex
}

// NewCatalog creates an empty tool catalog
func NewCatalog() *Catalog {
	return &Catalog{
		tools:     make(map[string]*Descriptor),
		contracts: make(map[string]Contract),
	}
}

// Register adds a descriptor to the catalog. Fails with ErrDuplicateTool
// when the name is already taken, and validates the descriptor and its
// parameter schema up front so a bad tool never reaches execution.
func (c *Catalog) Register(d Descriptor) error {
	if err := validateDescriptor(d); err != nil {
		return fmt.Errorf("invalid tool descriptor: %w", err)
	}

	contract, err := compileContract(d)
	if err != nil {
		return fmt.Errorf("failed to compile input contract for %s: %w", d.Name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tools[d.Name]; exists {
		return &ErrDuplicateTool{Name: d.Name}
	}

	c.tools[d.Name] = &d
	c.contracts[d.Name] = contract
	c.order = append(c.order, d.Name)

	log.Info().
		Str("tool", d.Name).
		Str("risk", string(d.Risk)).
		Bool("requires_confirmation", d.RequiresConfirmation).
		Msg("Tool registered")

	return nil
}

// Get returns a descriptor by name
func (c *Catalog) Get(name string) (*Descriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.tools[name]
	if !ok {
		return nil, &ErrToolNotFound{Name: name}
	}
	return d, nil
}

// Contract returns the compiled input contract for a tool
func (c *Catalog) Contract(name string) (Contract, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	contract, ok := c.contracts[name]
	if !ok {
		return nil, &ErrToolNotFound{Name: name}
	}
	return contract, nil
}

// List returns descriptors in registration order, optionally filtered
// by risk level and scope
func (c *Catalog) List(filter *Filter) []*Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Descriptor, 0, len(c.order))
	for _, name := range c.order {
		d := c.tools[name]
		if filter != nil {
			if filter.Risk != "" && d.Risk != filter.Risk {
				continue
			}
			if filter.Scope != "" && !d.HasScope(filter.Scope) {
				continue
			}
		}
		result = append(result, d)
	}

	return result
}

// Names returns all registered tool names in registration order
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Count returns the number of registered tools
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.tools)
}
