// Package mermaidascii renders the FK-dependency diagrams produced by
// schema.Graph.ToMermaid as an ASCII dependency tree for the `subsetdb
// plan` command, so an operator can preview a profile's reach without a
// mermaid-capable terminal.
package mermaidascii

import (
	"fmt"
)

// Config controls rendering. UseAscii forces the plain "-->" arrow
// instead of the box-drawing connector; zero value uses box-drawing.
type Config struct {
	UseAscii bool
}

// DefaultConfig returns the default rendering configuration.
func DefaultConfig() *Config {
	return &Config{}
}

// RenderDiagram parses a "graph LR" description of `source -->|label|
// target` edges (the shape produced by schema.Graph.ToMermaid) and
// renders it as an indented ASCII tree rooted at every table that is
// never an edge's target within the diagram.
func RenderDiagram(input string, config *Config) (string, error) {
	if config == nil {
		config = DefaultConfig()
	}

	edges, err := parseEdges(input)
	if err != nil {
		return "", fmt.Errorf("failed to parse dependency diagram: %w", err)
	}
	if len(edges) == 0 {
		return "(no reachable edges)\n", nil
	}

	return renderTree(edges, config), nil
}
