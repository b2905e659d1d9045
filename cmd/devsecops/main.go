// Command devsecops synthesizes the ECS Fargate DevSecOps stack and runs
// its release pipeline locally.
//
// Usage:
//
//	devsecops synth -c vpcId=vpc-0123abcd     Generate CloudFormation template
//	devsecops lookup -c vpcId=vpc-0123abcd    Resolve the VPC into the context file
//	devsecops lint                            Check DevSecOps invariants
//	devsecops simulate --approve              Run Source, Build, Approve, Deploy locally
//	devsecops version                         Show version
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errIssues reports that a check found issues; the process exits 2.
var errIssues = errors.New("issues found")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errIssues) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	context    []string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "devsecops",
		Short: "Synthesize and release the ECS Fargate DevSecOps stack",
		Long: `devsecops declares an ECS Fargate service behind a public load balancer
in an existing VPC, together with the CodeCommit, CodeBuild and CodePipeline
resources that lint, build, scan, approve and deploy its image.

The VPC is given as context, the way CDK does it:

    devsecops lookup -c vpcId=vpc-0123abcd
    devsecops synth  -c vpcId=vpc-0123abcd -o template.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (YAML)")
	flags.StringArrayVarP(&opts.context, "context", "c", nil, "Context value as key=value (vpcId, account, region, approvalTimeout, branch)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(
		newSynthCmd(opts),
		newLookupCmd(opts),
		newListCmd(opts),
		newGraphCmd(opts),
		newLintCmd(opts),
		newValidateCmd(opts),
		newDiffCmd(opts),
		newBuildspecCmd(opts),
		newSimulateCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}
