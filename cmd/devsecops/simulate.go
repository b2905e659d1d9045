package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lex00/ecs-devsecops-go/internal/buildspec"
	"github.com/lex00/ecs-devsecops-go/internal/config"
	"github.com/lex00/ecs-devsecops-go/internal/pipeline"
	"github.com/lex00/ecs-devsecops-go/internal/topology"
)

type simulateOptions struct {
	sourceDir       string
	commit          string
	approve         bool
	reject          bool
	reason          string
	approvalTimeout time.Duration
	execute         bool
	fail            []string
	repositoryURI   string
	outputFormat    string
}

func newSimulateCmd(opts *globalOptions) *cobra.Command {
	so := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the release pipeline locally",
		Long: `Simulate runs the synthesized pipeline, Source, Build, Approve, Deploy-to-ECS,
against a local working tree. The deploy is a dry run.

By default build commands are simulated: no docker, registry or scanner is
needed, and --fail makes chosen gates fail (lint, login, build, tag, guard,
push, scan, manifest). With --execute the buildspec runs in bash in the
source directory.

Without --approve or --reject the approval is asked on the terminal.

Examples:
    devsecops simulate -c vpcId=vpc-0123abcd --approve
    devsecops simulate -c vpcId=vpc-0123abcd --approve --fail scan
    devsecops simulate -c vpcId=vpc-0123abcd --reject --reason "not today"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, opts, so)
		},
	}

	f := cmd.Flags()
	f.StringVar(&so.sourceDir, "source", ".", "Working tree to release")
	f.StringVar(&so.commit, "commit", "", "Revision to release (default: the tree's git HEAD)")
	f.BoolVar(&so.approve, "approve", false, "Approve the deployment without asking")
	f.BoolVar(&so.reject, "reject", false, "Reject the deployment without asking")
	f.StringVar(&so.reason, "reason", "", "Reason reported with --reject")
	f.DurationVar(&so.approvalTimeout, "approval-timeout", 0, "Approval timeout (default: the approval action's)")
	f.BoolVar(&so.execute, "execute", false, "Run the buildspec commands with bash")
	f.StringSliceVar(&so.fail, "fail", nil, "Gates to fail in a simulated build")
	f.StringVar(&so.repositoryURI, "repository-uri", "", "Image repository URI (default: derived from account and region)")
	f.StringVarP(&so.outputFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

func runSimulate(cmd *cobra.Command, opts *globalOptions, so *simulateOptions) error {
	if so.approve && so.reject {
		return errors.New("--approve and --reject are mutually exclusive")
	}
	if so.execute && len(so.fail) > 0 {
		return errors.New("--fail only applies to simulated builds")
	}
	failures, err := parseGates(so.fail)
	if err != nil {
		return err
	}

	s, err := opts.synthesize(cmd.Context())
	if err != nil {
		return err
	}

	var (
		source pipeline.SourceProvider = pipeline.LocalSource{Dir: so.sourceDir, CommitID: so.commit}
		exec   buildspec.Executor
	)
	if so.execute {
		exec = &buildspec.ShellExecutor{Dir: so.sourceDir, Stdout: cmd.ErrOrStderr(), Stderr: cmd.ErrOrStderr()}
	} else {
		// Simulated builds write their artifacts to a scratch directory,
		// leaving the working tree untouched.
		scratch, err := os.MkdirTemp("", "devsecops-build-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(scratch)
		source = scratchSource{SourceProvider: source, dir: scratch}
		exec = &buildspec.SimulatedExecutor{Dir: scratch, Fail: failures}
	}

	var approver pipeline.Approver
	switch {
	case so.approve:
		approver = pipeline.StaticApprover{}
	case so.reject:
		approver = pipeline.StaticApprover{Reject: true, Reason: so.reason}
	default:
		approver = pipeline.PromptApprover{In: cmd.InOrStdin(), Out: cmd.ErrOrStderr()}
	}

	repoURI := so.repositoryURI
	if repoURI == "" {
		repoURI = localRepositoryURI(s.cfg)
	}
	region := s.cfg.Region
	if region == "" {
		region = defaultRegion
	}

	p := &pipeline.Pipeline{
		Definition: s.topo.Pipeline,
		Source:     source,
		Builder: &pipeline.CodeBuild{
			Spec: s.topo.BuildSpec,
			Exec: exec,
			Env: map[string]string{
				buildspec.EnvRepositoryURI: repoURI,
				buildspec.EnvClusterName:   localClusterName(s.cfg),
				buildspec.EnvRegion:        region,
			},
			Logger: s.logger,
		},
		Approver:        approver,
		Deployer:        &pipeline.DryRunDeployer{Logger: s.logger},
		ContainerName:   s.cfg.Service.ContainerName,
		ApprovalTimeout: so.approvalTimeout,
		Logger:          s.logger,
	}

	execution, runErr := p.Run(cmd.Context())
	if err := outputExecution(cmd, execution, so.outputFormat); err != nil {
		return err
	}
	return runErr
}

// scratchSource fetches a revision but builds it in another directory.
type scratchSource struct {
	pipeline.SourceProvider
	dir string
}

func (s scratchSource) Fetch(ctx context.Context, branch string) (pipeline.Revision, error) {
	rev, err := s.SourceProvider.Fetch(ctx, branch)
	if err != nil {
		return rev, err
	}
	rev.Dir = s.dir
	return rev, nil
}

const (
	defaultAccount = "000000000000"
	defaultRegion  = "us-east-1"
)

// localClusterName stands in for the cluster's physical name, which
// CloudFormation generates as <stack>-<logical ID>-<suffix>.
func localClusterName(cfg *config.Config) string {
	return cfg.Stack.Name + "-" + topology.Cluster
}

// localRepositoryURI is the registry URI a local run tags images with.
func localRepositoryURI(cfg *config.Config) string {
	account, region := cfg.Account, cfg.Region
	if account == "" {
		account = defaultAccount
	}
	if region == "" {
		region = defaultRegion
	}
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com/%s", account, region, strings.ToLower(cfg.Stack.Name))
}

// parseGates maps gate names to a failing exit code.
func parseGates(names []string) (map[buildspec.Gate]int, error) {
	out := make(map[buildspec.Gate]int)
	for _, name := range names {
		found := false
		for g := buildspec.GateRevision; g <= buildspec.GateManifest; g++ {
			if g.String() == strings.ToLower(strings.TrimSpace(name)) {
				out[g] = 1
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown gate %q", name)
		}
	}
	return out, nil
}

func outputExecution(cmd *cobra.Command, e *pipeline.Execution, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		data, err := json.MarshalIndent(e, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))

	case "text":
		fmt.Fprintf(out, "Execution %s: %s\n", e.ID, e.Status)
		if e.CommitID != "" {
			fmt.Fprintf(out, "  revision: %s\n", e.CommitID)
		}
		if e.Image != "" {
			fmt.Fprintf(out, "  image:    %s\n", e.Image)
		}
		for _, st := range e.Stages {
			line := fmt.Sprintf("  %-14s %s", st.Name, st.Status)
			if st.Error != "" {
				line += "  " + st.Error
			}
			fmt.Fprintln(out, line)
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	return nil
}
