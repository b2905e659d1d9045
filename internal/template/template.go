// Package template builds CloudFormation templates from declared resources.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	devsecops "github.com/lex00/ecs-devsecops-go"
)

// FormatVersion is the only template format version CloudFormation accepts.
const FormatVersion = "2010-09-09"

var (
	// ErrCycle is returned when resources depend on each other in a loop.
	ErrCycle = errors.New("circular dependency detected")
	// ErrUndefinedReference is returned when a property references a logical
	// ID that is neither a resource nor a parameter.
	ErrUndefinedReference = errors.New("undefined reference")
)

// Builder constructs CloudFormation templates from declared resources.
type Builder struct {
	description string
	resources   map[string]devsecops.DeclaredResource
	parameters  map[string]devsecops.Parameter
	outputs     map[string]devsecops.Output
	order       []string
}

// NewBuilder creates a template builder over the given resources.
func NewBuilder(resources []devsecops.DeclaredResource) *Builder {
	b := &Builder{
		resources:  make(map[string]devsecops.DeclaredResource, len(resources)),
		parameters: make(map[string]devsecops.Parameter),
		outputs:    make(map[string]devsecops.Output),
	}
	for _, r := range resources {
		b.resources[r.Name] = r
	}
	return b
}

// SetDescription sets the template description.
func (b *Builder) SetDescription(desc string) {
	b.description = desc
}

// AddParameter adds a template parameter.
func (b *Builder) AddParameter(name string, p devsecops.Parameter) {
	b.parameters[name] = p
}

// AddOutput adds a template output.
func (b *Builder) AddOutput(name string, o devsecops.Output) {
	b.outputs[name] = o
}

// Build constructs the CloudFormation template.
func (b *Builder) Build() (*devsecops.Template, error) {
	if err := b.checkReferences(); err != nil {
		return nil, err
	}

	order, err := b.topologicalSort()
	if err != nil {
		return nil, err
	}
	b.order = order

	t := &devsecops.Template{
		AWSTemplateFormatVersion: FormatVersion,
		Description:              b.description,
		Resources:                make(map[string]devsecops.ResourceDef, len(order)),
	}
	if len(b.parameters) > 0 {
		t.Parameters = b.parameters
	}

	for _, name := range order {
		res := b.resources[name]
		if res.Type == "" {
			return nil, fmt.Errorf("resource %s: missing type", name)
		}
		t.Resources[name] = devsecops.ResourceDef{
			Type:                res.Type,
			Properties:          res.Properties,
			DependsOn:           res.DependsOn,
			DeletionPolicy:      res.DeletionPolicy,
			UpdateReplacePolicy: res.UpdateReplacePolicy,
		}
	}

	if len(b.outputs) > 0 {
		t.Outputs = b.outputs
	}
	return t, nil
}

// Order returns the resources in dependency order as computed by the last
// successful Build. Every resource appears after everything it references.
func (b *Builder) Order() []string {
	return append([]string(nil), b.order...)
}

func (b *Builder) checkReferences() error {
	names := make([]string, 0, len(b.resources))
	for name := range b.resources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, dep := range b.resources[name].Dependencies {
			if _, ok := b.resources[dep]; ok {
				continue
			}
			if _, ok := b.parameters[dep]; ok {
				continue
			}
			return fmt.Errorf("%w: %s references %s", ErrUndefinedReference, name, dep)
		}
	}
	return nil
}

// topologicalSort returns resources in dependency order.
func (b *Builder) topologicalSort() ([]string, error) {
	graph := make(map[string][]string)
	inDegree := make(map[string]int)

	for name := range b.resources {
		graph[name] = nil
		inDegree[name] = 0
	}

	for name, res := range b.resources {
		for _, dep := range unique(res.Dependencies) {
			if _, exists := b.resources[dep]; exists {
				graph[dep] = append(graph[dep], name)
				inDegree[name]++
			}
		}
	}

	// Kahn's algorithm with a sorted frontier for deterministic output
	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range graph[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
				sort.Strings(queue)
			}
		}
	}

	if len(result) != len(b.resources) {
		return nil, b.detectCycle()
	}
	return result, nil
}

// detectCycle finds and reports one cycle in the dependency graph.
func (b *Builder) detectCycle() error {
	visited := make(map[string]bool)
	onPath := make(map[string]bool)
	var stack []string
	var cycle []string

	var visit func(node string) bool
	visit = func(node string) bool {
		visited[node] = true
		onPath[node] = true
		stack = append(stack, node)

		deps := unique(b.resources[node].Dependencies)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, exists := b.resources[dep]; !exists {
				continue
			}
			if onPath[dep] {
				for i, n := range stack {
					if n == dep {
						cycle = append(append([]string(nil), stack[i:]...), dep)
						break
					}
				}
				return true
			}
			if !visited[dep] && visit(dep) {
				return true
			}
		}

		onPath[node] = false
		stack = stack[:len(stack)-1]
		return false
	}

	names := make([]string, 0, len(b.resources))
	for name := range b.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !visited[name] && visit(name) {
			break
		}
	}

	if len(cycle) == 0 {
		return ErrCycle
	}
	return fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " → "))
}

func unique(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// ToJSON serializes the template to JSON.
func ToJSON(t *devsecops.Template) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ToYAML serializes the template to YAML.
func ToYAML(t *devsecops.Template) ([]byte, error) {
	return yaml.Marshal(t)
}

// Encode serializes the template in the named format ("json" or "yaml").
func Encode(t *devsecops.Template, format string) ([]byte, error) {
	switch format {
	case "", "json":
		return ToJSON(t)
	case "yaml", "yml":
		return ToYAML(t)
	default:
		return nil, fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}

// Parse decodes a template from JSON, falling back to YAML.
func Parse(data []byte) (*devsecops.Template, error) {
	var t devsecops.Template
	if jsonErr := json.Unmarshal(data, &t); jsonErr == nil {
		return &t, nil
	}
	t = devsecops.Template{}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	if t.Resources == nil {
		return nil, errors.New("parsing template: no Resources section")
	}
	return &t, nil
}

// Load reads and parses a template file.
func Load(path string) (*devsecops.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
