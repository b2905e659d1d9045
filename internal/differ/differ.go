// Package differ provides semantic comparison of CloudFormation templates.
//
// Resources are matched by logical ID. Property changes are reported by
// path (ContainerDefinitions[0].Image), so a changed image tag or an
// added IAM action shows up where it happened rather than as a rewritten
// property.
package differ

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	devsecops "github.com/lex00/ecs-devsecops-go"
	"github.com/lex00/ecs-devsecops-go/internal/template"
)

// Options configures the differ.
type Options struct {
	// IgnoreOrder ignores array element order in comparisons
	IgnoreOrder bool
}

// Result contains the difference between two templates.
type Result struct {
	Diff    devsecops.TemplateDiff
	Summary devsecops.DiffSummary
}

// Empty reports whether the templates are equivalent.
func (r *Result) Empty() bool { return r.Summary.Total == 0 }

// Compare compares two CloudFormation templates and returns differences.
func Compare(before, after *devsecops.Template, opts Options) (*Result, error) {
	if before == nil || after == nil {
		return nil, fmt.Errorf("compare: nil template")
	}
	result := &Result{}

	for name, def := range after.Resources {
		if _, exists := before.Resources[name]; !exists {
			result.Diff.Added = append(result.Diff.Added, devsecops.DiffEntry{Resource: name, Type: def.Type})
		}
	}
	for name, def := range before.Resources {
		if _, exists := after.Resources[name]; !exists {
			result.Diff.Removed = append(result.Diff.Removed, devsecops.DiffEntry{Resource: name, Type: def.Type})
		}
	}
	for name, def1 := range before.Resources {
		if def2, exists := after.Resources[name]; exists {
			if changes := compareResources(def1, def2, opts); len(changes) > 0 {
				result.Diff.Modified = append(result.Diff.Modified, devsecops.DiffEntry{
					Resource: name,
					Type:     def1.Type,
					Changes:  changes,
				})
			}
		}
	}
	result.Diff.Outputs = compareOutputs(before.Outputs, after.Outputs, opts)

	sortEntries(result.Diff.Added)
	sortEntries(result.Diff.Removed)
	sortEntries(result.Diff.Modified)

	result.Summary = devsecops.DiffSummary{
		Added:    len(result.Diff.Added),
		Removed:  len(result.Diff.Removed),
		Modified: len(result.Diff.Modified),
		Outputs:  len(result.Diff.Outputs),
	}
	result.Summary.Total = result.Summary.Added + result.Summary.Removed + result.Summary.Modified + result.Summary.Outputs
	return result, nil
}

// CompareFiles compares two template files, each JSON or YAML.
func CompareFiles(file1, file2 string, opts Options) (*Result, error) {
	t1, err := template.Load(file1)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file1, err)
	}
	t2, err := template.Load(file2)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file2, err)
	}
	return Compare(t1, t2, opts)
}

func compareResources(def1, def2 devsecops.ResourceDef, opts Options) []string {
	var changes []string
	if def1.Type != def2.Type {
		changes = append(changes, fmt.Sprintf("Type changed: %s → %s", def1.Type, def2.Type))
	}
	if def1.DeletionPolicy != def2.DeletionPolicy {
		changes = append(changes, fmt.Sprintf("DeletionPolicy changed: %q → %q", def1.DeletionPolicy, def2.DeletionPolicy))
	}
	changes = append(changes, compareProperties("", def1.Properties, def2.Properties, opts)...)
	if !equalStringSlices(sortedCopy(def1.DependsOn), sortedCopy(def2.DependsOn)) {
		changes = append(changes, "DependsOn changed")
	}
	return changes
}

// compareProperties walks two property maps and returns one change per
// differing leaf path. A value that changes kind (map to list, scalar to
// map) is reported at the path where the kinds diverge.
func compareProperties(prefix string, props1, props2 map[string]any, opts Options) []string {
	var changes []string
	for key, val2 := range props2 {
		path := join(prefix, key)
		val1, exists := props1[key]
		if !exists {
			changes = append(changes, path+" added")
			continue
		}
		changes = append(changes, compareValues(path, val1, val2, opts)...)
	}
	for key := range props1 {
		if _, exists := props2[key]; !exists {
			changes = append(changes, join(prefix, key)+" removed")
		}
	}
	sort.Strings(changes)
	return changes
}

func compareValues(path string, a, b any, opts Options) []string {
	a, b = normalizeValue(a, opts), normalizeValue(b, opts)
	if reflect.DeepEqual(a, b) {
		return nil
	}

	switch av := a.(type) {
	case map[string]any:
		if bv, ok := b.(map[string]any); ok {
			return compareProperties(path, av, bv, opts)
		}
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) || opts.IgnoreOrder {
			break
		}
		var changes []string
		for i := range av {
			changes = append(changes, compareValues(fmt.Sprintf("%s[%d]", path, i), av[i], bv[i], opts)...)
		}
		return changes
	}
	return []string{path + " modified"}
}

func compareOutputs(before, after map[string]devsecops.Output, opts Options) []string {
	var changes []string
	for name, o2 := range after {
		o1, exists := before[name]
		switch {
		case !exists:
			changes = append(changes, name+" added")
		case !reflect.DeepEqual(normalizeValue(o1.Value, opts), normalizeValue(o2.Value, opts)):
			changes = append(changes, name+" modified")
		}
	}
	for name := range before {
		if _, exists := after[name]; !exists {
			changes = append(changes, name+" removed")
		}
	}
	sort.Strings(changes)
	return changes
}

// normalizeValue makes JSON- and YAML-loaded values comparable: numbers
// become float64, and with IgnoreOrder lists are sorted by their encoding.
func normalizeValue(v any, opts Options) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v := range val {
			result[k] = normalizeValue(v, opts)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v := range val {
			result[i] = normalizeValue(v, opts)
		}
		if opts.IgnoreOrder {
			sort.SliceStable(result, func(i, j int) bool {
				return encode(result[i]) < encode(result[j])
			})
		}
		return result
	default:
		return v
	}
}

func encode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func sortedCopy(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

// equalStringSlices compares two string slices for equality.
func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sortEntries sorts diff entries by resource name.
func sortEntries(entries []devsecops.DiffEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Resource < entries[j].Resource
	})
}
