// Package stack collects resource declarations under logical IDs and turns
// them into a CloudFormation template.
package stack

import (
	"errors"
	"fmt"
	"sort"

	devsecops "github.com/lex00/ecs-devsecops-go"
	"github.com/lex00/ecs-devsecops-go/internal/serialize"
	"github.com/lex00/ecs-devsecops-go/internal/template"
	"github.com/lex00/ecs-devsecops-go/intrinsics"
)

// ErrDuplicateID is returned when two resources share a logical ID.
var ErrDuplicateID = errors.New("duplicate logical ID")

// Stack is an ordered set of declared resources, parameters and outputs.
type Stack struct {
	name        string
	description string
	entries     []entry
	index       map[string]int
	outputs     map[string]devsecops.Output
	parameters  map[string]devsecops.Parameter
	errs        []error
}

type entry struct {
	id       string
	resource devsecops.Resource
	opts     options
}

type options struct {
	dependsOn []string
	retain    bool
}

// Option adjusts a single declaration.
type Option func(*options)

// DependsOn adds explicit ordering edges to other resources.
func DependsOn(handles ...Handle) Option {
	return func(o *options) {
		for _, h := range handles {
			o.dependsOn = append(o.dependsOn, h.ID)
		}
	}
}

// Retain keeps the resource when the stack is deleted or the resource is
// replaced.
func Retain() Option {
	return func(o *options) { o.retain = true }
}

// Handle refers to a declared resource.
type Handle struct {
	ID   string
	Type string
}

// Ref returns a Ref to the resource.
func (h Handle) Ref() intrinsics.Ref {
	return intrinsics.Ref{LogicalName: h.ID}
}

// GetAtt returns a reference to one of the resource's attributes.
func (h Handle) GetAtt(attribute string) devsecops.AttrRef {
	return devsecops.AttrRef{Resource: h.ID, Attribute: attribute}
}

// Arn is shorthand for GetAtt("Arn").
func (h Handle) Arn() devsecops.AttrRef {
	return h.GetAtt("Arn")
}

// New returns an empty stack.
func New(name, description string) *Stack {
	return &Stack{
		name:        name,
		description: description,
		index:       make(map[string]int),
		outputs:     make(map[string]devsecops.Output),
		parameters:  make(map[string]devsecops.Parameter),
	}
}

// Name returns the stack name.
func (s *Stack) Name() string { return s.name }

// Add declares a resource under a logical ID. Declaration errors are
// collected and reported by Template.
func (s *Stack) Add(id string, r devsecops.Resource, opts ...Option) Handle {
	h := Handle{ID: id, Type: r.ResourceType()}
	if _, exists := s.index[id]; exists {
		s.errs = append(s.errs, fmt.Errorf("%w: %s", ErrDuplicateID, id))
		return h
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	s.index[id] = len(s.entries)
	s.entries = append(s.entries, entry{id: id, resource: r, opts: o})
	return h
}

// Parameter declares a template parameter and returns a Ref to it.
func (s *Stack) Parameter(name string, p devsecops.Parameter) intrinsics.Ref {
	s.parameters[name] = p
	return intrinsics.Param(name)
}

// Output exposes a value after provisioning.
func (s *Stack) Output(name, description string, value any) {
	s.outputs[name] = devsecops.Output{Description: description, Value: value}
}

// ExportedOutput is Output with a cross-stack export name.
func (s *Stack) ExportedOutput(name, description string, value, exportName any) {
	s.outputs[name] = devsecops.Output{
		Description: description,
		Value:       value,
		Export:      &devsecops.Export{Name: exportName},
	}
}

// Lookup returns the declared resource value for a logical ID.
func (s *Stack) Lookup(id string) (devsecops.Resource, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.entries[i].resource, true
}

// IDs returns the logical IDs in declaration order.
func (s *Stack) IDs() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.id
	}
	return out
}

// Declared serializes every resource and resolves its dependencies.
func (s *Stack) Declared() ([]devsecops.DeclaredResource, error) {
	if err := errors.Join(s.errs...); err != nil {
		return nil, err
	}
	out := make([]devsecops.DeclaredResource, 0, len(s.entries))
	for _, e := range s.entries {
		props, err := serialize.Properties(e.resource)
		if err != nil {
			return nil, fmt.Errorf("serializing %s: %w", e.id, err)
		}
		deps := serialize.References(props)
		for _, d := range e.opts.dependsOn {
			if _, ok := s.index[d]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", template.ErrUndefinedReference, e.id, d)
			}
			deps = append(deps, d)
		}
		sort.Strings(deps)

		for _, d := range deps {
			if d == e.id {
				return nil, fmt.Errorf("%w: %s references itself", template.ErrCycle, e.id)
			}
		}

		dr := devsecops.DeclaredResource{
			Name:         e.id,
			Type:         e.resource.ResourceType(),
			Properties:   props,
			Dependencies: deps,
			DependsOn:    e.opts.dependsOn,
		}
		if e.opts.retain {
			dr.DeletionPolicy = "Retain"
			dr.UpdateReplacePolicy = "Retain"
		}
		out = append(out, dr)
	}
	return out, nil
}

// Template synthesizes the stack. The returned order lists logical IDs so
// that every resource follows the resources it references.
func (s *Stack) Template() (*devsecops.Template, []string, error) {
	declared, err := s.Declared()
	if err != nil {
		return nil, nil, err
	}
	b := template.NewBuilder(declared)
	b.SetDescription(s.description)
	for name, p := range s.parameters {
		b.AddParameter(name, p)
	}
	for name, o := range s.outputs {
		if err := s.checkOutput(name, o); err != nil {
			return nil, nil, err
		}
		b.AddOutput(name, o)
	}
	t, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	return t, b.Order(), nil
}

func (s *Stack) checkOutput(name string, o devsecops.Output) error {
	wrapper := struct {
		Value  any
		Export *devsecops.Export
	}{o.Value, o.Export}
	props, err := serialize.Properties(wrapper)
	if err != nil {
		return fmt.Errorf("output %s: %w", name, err)
	}
	for _, ref := range serialize.References(props) {
		if _, ok := s.index[ref]; ok {
			continue
		}
		if _, ok := s.parameters[ref]; ok {
			continue
		}
		return fmt.Errorf("%w: output %s references %s", template.ErrUndefinedReference, name, ref)
	}
	return nil
}
