package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/chronicle/pkg/domain"
)

// GraphOverlay marks executions to emphasize on top of the status styling.
type GraphOverlay struct {
	// PathNodes are drawn with the "path" class, e.g. the ancestry of CurrentNode.
	PathNodes   []string
	CurrentNode string
}

var statusClasses = []struct {
	name  string
	style string
}{
	{"succeeded", "fill:#e8f5e9,stroke:#2e7d32,color:#000"},
	{"failed", "fill:#ffebee,stroke:#c62828,color:#000"},
	{"canceled", "fill:#eceff1,stroke:#546e7a,stroke-dasharray:5 5,color:#000"},
	{"running", "fill:#e1f5fe,stroke:#01579b,color:#000"},
	{"pending", "fill:#fff8e1,stroke:#ff8f00,color:#000"},
}

// GenerateMermaid produces a Mermaid flowchart of a lineage: the root as a
// stadium, every descendant as a rectangle labeled with its action, and one
// edge from each parent to child. Nodes are classed by status.
func GenerateMermaid(root *domain.Execution, descendants []*domain.Execution, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	all := append([]*domain.Execution{root}, descendants...)
	known := make(map[string]bool, len(all))
	for _, e := range all {
		known[e.ID] = true
	}

	for i, e := range all {
		opener, closer := "[", "]"
		if i == 0 {
			opener, closer = "([", "])"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(e.ID), opener, nodeLabel(e), closer)
	}
	for _, e := range descendants {
		if e.Parent == "" || !known[e.Parent] {
			continue
		}
		fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(e.Parent), sanitizeMermaidID(e.ID))
	}

	sb.WriteString("\n    %% Status Styles\n")
	for _, c := range statusClasses {
		fmt.Fprintf(&sb, "    classDef %s %s;\n", c.name, c.style)
	}
	for _, e := range all {
		if class := statusClass(e.Status); class != "" {
			fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(e.ID), class)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef path stroke:#6a1b9a,stroke-width:2px;\n")
		sb.WriteString("    classDef current stroke:#fbc02d,stroke-width:4px;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.PathNodes {
			safeID := sanitizeMermaidID(id)
			if safeID == "" || seen[safeID] || !known[id] {
				continue
			}
			seen[safeID] = true
			fmt.Fprintf(&sb, "    class %s path;\n", safeID)
		}
		if overlay.CurrentNode != "" && known[overlay.CurrentNode] {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func nodeLabel(e *domain.Execution) string {
	label := e.ID
	if e.LiveAction.Action != "" {
		label += "<br/>" + e.LiveAction.Action
	}
	return strings.ReplaceAll(label, "\"", "'")
}

func statusClass(s domain.LiveActionStatus) string {
	switch s {
	case domain.LiveActionStatusSucceeded:
		return "succeeded"
	case domain.LiveActionStatusFailed:
		return "failed"
	case domain.LiveActionStatusCanceled:
		return "canceled"
	case domain.LiveActionStatusRunning:
		return "running"
	case domain.LiveActionStatusRequested, domain.LiveActionStatusScheduled:
		return "pending"
	default:
		return ""
	}
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
