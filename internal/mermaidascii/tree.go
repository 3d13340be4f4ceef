package mermaidascii

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// edge is one parsed "source -->|label| target" line. A label prefixed
// with "~" (schema.Graph.ToMermaid's own convention for virtual/polymorphic
// FKs) is recorded separately rather than kept in the display label.
type edge struct {
	source, target, label string
	virtual                bool // true when the edge's label came prefixed with "~"
}

var edgeLine = regexp.MustCompile(`^(\S+)\s*-->\|([^|]*)\|\s*(\S+)$`)

// parseEdges reads every non-blank, non-directive line of a mermaid
// "graph LR"/"flowchart LR" body produced by schema.Graph.ToMermaid.
func parseEdges(input string) ([]edge, error) {
	var edges []edge
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "graph ") || strings.HasPrefix(trimmed, "flowchart ") {
			continue
		}
		m := edgeLine.FindStringSubmatch(trimmed)
		if m == nil {
			return nil, fmt.Errorf("unrecognized diagram line: %q", trimmed)
		}
		label := m[2]
		virtual := strings.HasPrefix(label, "~")
		if virtual {
			label = strings.TrimPrefix(label, "~")
		}
		edges = append(edges, edge{source: m[1], target: m[3], label: label, virtual: virtual})
	}
	return edges, nil
}

// renderTree lays edges out as an indented ASCII tree, one root per table
// that never appears as a target, walking each table's outgoing edges in
// target-name order for a deterministic rendering across runs.
func renderTree(edges []edge, config *Config) string {
	children := make(map[string][]edge)
	hasIncoming := make(map[string]bool)
	tables := make(map[string]bool)
	for _, e := range edges {
		children[e.source] = append(children[e.source], e)
		hasIncoming[e.target] = true
		tables[e.source] = true
		tables[e.target] = true
	}
	for t := range children {
		sort.Slice(children[t], func(i, j int) bool {
			return children[t][i].target < children[t][j].target
		})
	}

	var roots []string
	for t := range tables {
		if !hasIncoming[t] {
			roots = append(roots, t)
		}
	}
	if len(roots) == 0 {
		// every table sits on a cycle; fall back to listing them all so
		// the diagram still renders something rather than nothing.
		for t := range tables {
			roots = append(roots, t)
		}
	}
	sort.Strings(roots)

	arrow := "──>"
	if config.UseAscii {
		arrow = "-->"
	}

	var b strings.Builder
	visited := make(map[string]bool)
	for _, root := range roots {
		writeNode(&b, root, children, visited, "", arrow)
	}
	return b.String()
}

func writeNode(b *strings.Builder, table string, children map[string][]edge, visited map[string]bool, prefix, arrow string) {
	b.WriteString(table)
	b.WriteString("\n")
	if visited[table] {
		return
	}
	visited[table] = true

	kids := children[table]
	for i, e := range kids {
		last := i == len(kids)-1
		branch, cont := "├─", "│ "
		if last {
			branch, cont = "└─", "  "
		}
		label := e.label
		if e.virtual {
			label = "~" + label
		}
		b.WriteString(prefix)
		b.WriteString(branch)
		fmt.Fprintf(b, "%s|%s| ", arrow, label)
		writeNode(b, e.target, children, visited, prefix+cont, arrow)
	}
}
