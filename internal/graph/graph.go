// Package graph generates DOT and Mermaid dependency graphs of a stack
// template.
package graph

import (
	"io"
	"sort"
	"strings"

	"github.com/emicklei/dot"

	devsecops "github.com/lex00/ecs-devsecops-go"
	"github.com/lex00/ecs-devsecops-go/internal/serialize"
)

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// Generator creates dependency graphs from templates.
type Generator struct {
	// IncludeParameters includes parameter references in the graph.
	IncludeParameters bool

	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format

	// ClusterByService groups resources by AWS service (ECS, IAM, ...).
	ClusterByService bool
}

// EdgeKind tells how one resource depends on another.
type EdgeKind int

const (
	// EdgeRef is a Ref or Fn::Sub placeholder.
	EdgeRef EdgeKind = iota
	// EdgeGetAtt is an Fn::GetAtt, drawn blue.
	EdgeGetAtt
	// EdgeDependsOn is an explicit DependsOn with no reference, drawn dashed.
	EdgeDependsOn
)

// Edge is a dependency from a resource to another resource or parameter.
type Edge struct {
	From string
	To   string
	Kind EdgeKind
}

// Generate creates a dependency graph and writes it to w.
func (g *Generator) Generate(t *devsecops.Template, w io.Writer) error {
	graph := g.buildGraph(t)

	format := g.Format
	if format == "" {
		format = FormatDOT
	}

	var output string
	if format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	} else {
		output = graph.String()
	}

	_, err := io.WriteString(w, output)
	return err
}

// GenerateString is a convenience method that returns the graph as a string.
func (g *Generator) GenerateString(t *devsecops.Template) (string, error) {
	var sb strings.Builder
	if err := g.Generate(t, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Edges returns the dependency edges of t in a stable order. Edges to
// parameters are kept only when includeParameters is set; edges to
// undeclared names are dropped.
func Edges(t *devsecops.Template, includeParameters bool) []Edge {
	var edges []Edge
	for _, name := range sortedNames(t.Resources) {
		res := t.Resources[name]
		getAtts := getAttTargets(res.Properties)
		referenced := make(map[string]bool)
		for _, dep := range serialize.References(res.Properties) {
			referenced[dep] = true
			if !known(t, dep, includeParameters) {
				continue
			}
			kind := EdgeRef
			if getAtts[dep] {
				kind = EdgeGetAtt
			}
			edges = append(edges, Edge{From: name, To: dep, Kind: kind})
		}
		for _, dep := range res.DependsOn {
			if referenced[dep] || !known(t, dep, false) {
				continue
			}
			referenced[dep] = true
			edges = append(edges, Edge{From: name, To: dep, Kind: EdgeDependsOn})
		}
	}
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

func known(t *devsecops.Template, name string, includeParameters bool) bool {
	if _, ok := t.Resources[name]; ok {
		return true
	}
	_, ok := t.Parameters[name]
	return ok && includeParameters
}

// buildGraph creates the dot.Graph structure from the template.
func (g *Generator) buildGraph(t *devsecops.Template) *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")

	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})
	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("fontname", "Arial")
		e.Attr("fontsize", "10")
	})

	var nodes map[string]dot.Node
	if g.ClusterByService {
		nodes = g.addClusteredNodes(graph, t)
	} else {
		nodes = make(map[string]dot.Node, len(t.Resources))
		for _, name := range sortedNames(t.Resources) {
			nodes[name] = graph.Node(name).Label(label(name, t.Resources[name].Type))
		}
	}

	if g.IncludeParameters {
		for _, name := range sortedNames(t.Parameters) {
			n := graph.Node(name)
			n.Attr("shape", "ellipse")
			n.Attr("style", "dashed")
			nodes[name] = n.Label(name)
		}
	}

	// Edges must join the nodes declared above; graph.Node would declare
	// clustered resources a second time at the root.
	for _, edge := range Edges(t, g.IncludeParameters) {
		e := graph.Edge(nodes[edge.From], nodes[edge.To])
		switch edge.Kind {
		case EdgeGetAtt:
			e.Attr("color", "blue")
		case EdgeDependsOn:
			e.Attr("style", "dashed")
			e.Attr("color", "gray")
		}
	}
	return graph
}

// addClusteredNodes adds resource nodes grouped by AWS service and returns
// them by logical ID.
func (g *Generator) addClusteredNodes(graph *dot.Graph, t *devsecops.Template) map[string]dot.Node {
	nodes := make(map[string]dot.Node, len(t.Resources))
	byService := make(map[string][]string)
	for _, name := range sortedNames(t.Resources) {
		service := extractService(t.Resources[name].Type)
		byService[service] = append(byService[service], name)
	}

	services := make([]string, 0, len(byService))
	for s := range byService {
		services = append(services, s)
	}
	sort.Strings(services)

	for _, service := range services {
		names := byService[service]
		parent := graph
		// Single resource, no cluster needed
		if len(names) > 1 {
			parent = graph.Subgraph("cluster_"+service, dot.ClusterOption{})
			parent.Attr("label", service)
			parent.Attr("style", "rounded")
			parent.Attr("bgcolor", "lightyellow")
		}
		for _, name := range names {
			nodes[name] = parent.Node(name).Label(label(name, t.Resources[name].Type))
		}
	}
	return nodes
}

func label(name, cfType string) string {
	return name + "\\n[" + cfType + "]"
}

// extractService extracts the AWS service name from a CloudFormation type.
// e.g., "AWS::ECS::Service" -> "ECS"
func extractService(cfType string) string {
	parts := strings.Split(cfType, "::")
	if len(parts) == 3 {
		return parts[1]
	}
	return "Other"
}

// getAttTargets returns the logical IDs reached through Fn::GetAtt.
func getAttTargets(v any) map[string]bool {
	out := make(map[string]bool)
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			if att, ok := t["Fn::GetAtt"]; ok && len(t) == 1 {
				switch a := att.(type) {
				case []any:
					if len(a) > 0 {
						if name, ok := a[0].(string); ok {
							out[name] = true
						}
					}
				case []string:
					if len(a) > 0 {
						out[a[0]] = true
					}
				case string:
					name, _, _ := strings.Cut(a, ".")
					out[name] = true
				}
				return
			}
			for _, elem := range t {
				walk(elem)
			}
		case []any:
			for _, elem := range t {
				walk(elem)
			}
		}
	}
	walk(v)
	return out
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
