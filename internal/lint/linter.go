package lint

import (
	"sort"

	corelint "github.com/lex00/wetwire-core-go/lint"

	devsecops "github.com/lex00/ecs-devsecops-go"
	"github.com/lex00/ecs-devsecops-go/internal/template"
)

// Type aliases for the core lint package.
type (
	// Issue is an alias for corelint.Issue.
	Issue = corelint.Issue
	// Severity is an alias for corelint.Severity.
	Severity = corelint.Severity
)

// Severity constants.
const (
	SeverityError   = corelint.SeverityError
	SeverityWarning = corelint.SeverityWarning
	SeverityInfo    = corelint.SeverityInfo
)

// Finding is an Issue located on a template resource.
type Finding struct {
	Issue
	// Resource is the logical ID, empty for template-wide findings.
	Resource string
}

// Rule checks a whole template.
type Rule interface {
	ID() string
	Description() string
	Check(t *devsecops.Template) []Finding
}

// Result contains the outcome of linting.
type Result struct {
	// Success is false when any finding is an error or a warning.
	Success bool
	Issues  []Finding
}

// Options configures the linter.
type Options struct {
	// Rules to enable. If empty, all rules are enabled.
	EnabledRules []string
	// Rules to skip.
	DisabledRules []string
	// File is reported as the location of every finding.
	File string
}

// AllRules returns every rule in ID order.
func AllRules() []Rule {
	return []Rule{
		ExecutionPolicyActions{},
		ExecutionRoleTrust{},
		ManifestContainerName{},
		DeployArtifact{},
		StageOrder{},
		BuildGateOrder{},
		PlainHTTPListener{},
		RegistryRetained{},
	}
}

// LintTemplate runs the rules over a template.
func LintTemplate(t *devsecops.Template, opts Options) Result {
	var findings []Finding
	for _, rule := range getRules(opts) {
		for _, f := range rule.Check(t) {
			f.Rule = rule.ID()
			f.File = opts.File
			findings = append(findings, f)
		}
	}
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Rule != findings[j].Rule {
			return findings[i].Rule < findings[j].Rule
		}
		return findings[i].Resource < findings[j].Resource
	})

	success := true
	for _, f := range findings {
		if f.Severity != SeverityInfo {
			success = false
		}
	}
	return Result{Success: success, Issues: findings}
}

// LintFile loads a JSON or YAML template and lints it.
func LintFile(path string, opts Options) (Result, error) {
	t, err := template.Load(path)
	if err != nil {
		return Result{}, err
	}
	if opts.File == "" {
		opts.File = path
	}
	return LintTemplate(t, opts), nil
}

// getRules returns the rules to use based on options.
func getRules(opts Options) []Rule {
	all := AllRules()

	disabled := make(map[string]bool)
	for _, id := range opts.DisabledRules {
		disabled[id] = true
	}
	enabled := make(map[string]bool)
	for _, id := range opts.EnabledRules {
		enabled[id] = true
	}

	var filtered []Rule
	for _, r := range all {
		if disabled[r.ID()] {
			continue
		}
		if len(enabled) > 0 && !enabled[r.ID()] {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}
