package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/chronicle/internal/presentation/graph"
	"github.com/aretw0/chronicle/internal/presentation/tree"
	"github.com/aretw0/chronicle/pkg/domain"
)

// Format selects how a lineage is printed.
type Format string

const (
	FormatJSON    Format = "json"
	FormatTree    Format = "tree"
	FormatMermaid Format = "mermaid"
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatTree, FormatMermaid:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, tree or mermaid)", s)
	}
}

// WriteLineage prints root and its descendants. render, when set, styles the
// Markdown of the tree format.
func WriteLineage(w io.Writer, format Format, root *domain.Execution, descendants []*domain.Execution, render func(string) (string, error)) error {
	switch format {
	case FormatTree:
		md := tree.Markdown(tree.Build(root, descendants))
		if render != nil {
			styled, err := render(md)
			if err != nil {
				return fmt.Errorf("render tree: %w", err)
			}
			md = styled
		}
		_, err := io.WriteString(w, md)
		return err
	case FormatMermaid:
		_, err := io.WriteString(w, graph.GenerateMermaid(root, descendants, nil))
		return err
	default:
		return WriteJSON(w, descendants)
	}
}

// WriteJSON prints v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
