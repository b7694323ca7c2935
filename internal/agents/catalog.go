package agents

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/aicoe-genesis/genesis-backend/internal/projects/domain"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Agent is one stage of the design pipeline.
type Agent struct {
	Role         string `yaml:"role"`
	Name         string `yaml:"name"`
	ArtifactType string `yaml:"artifact_type"`
	OutputLabel  string `yaml:"output_label"`
	Instruction  string `yaml:"instruction"`
	SystemPrompt string `yaml:"system_prompt"`
}

// Catalog is the ordered list of pipeline agents.
type Catalog struct {
	Agents []Agent `yaml:"agents"`
}

// DefaultCatalog parses the embedded catalog. It panics on a malformed file,
// which can only happen at build time.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(catalogYAML)
	if err != nil {
		panic(fmt.Sprintf("agents: embedded catalog: %v", err))
	}
	return c
}

// ParseCatalog decodes and validates a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if len(c.Agents) == 0 {
		return nil, errors.New("catalog has no agents")
	}

	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if !domain.ValidRole(a.Role) {
			return nil, fmt.Errorf("agent %q: unknown role", a.Role)
		}
		if seen[a.Role] {
			return nil, fmt.Errorf("agent %q: duplicate role", a.Role)
		}
		seen[a.Role] = true
		if a.ArtifactType != "" && !domain.ValidArtifactType(a.ArtifactType) {
			return nil, fmt.Errorf("agent %q: unknown artifact type %q", a.Role, a.ArtifactType)
		}
		if a.SystemPrompt == "" {
			return nil, fmt.Errorf("agent %q: empty system prompt", a.Role)
		}
	}
	return &c, nil
}

// ForArtifact returns the agent that produces the given artifact type.
func (c *Catalog) ForArtifact(artifactType string) (Agent, bool) {
	for _, a := range c.Agents {
		if a.ArtifactType != "" && a.ArtifactType == artifactType {
			return a, true
		}
	}
	return Agent{}, false
}
