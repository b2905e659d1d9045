package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lex00/ecs-devsecops-go/internal/network"
)

func newLookupCmd(opts *globalOptions) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Resolve the VPC and store it in the context file",
		Long: `Lookup describes the VPC, its subnets and route tables through EC2 and
records the result in the context file, so later synths work offline.
An existing entry for the same account, region and VPC is replaced.

Credentials come from AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and
AWS_SESSION_TOKEN; the region from CDK_DEFAULT_REGION or -c region=...

Examples:
    devsecops lookup -c vpcId=vpc-0123abcd -c region=us-east-1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ec2, err := network.NewEC2Resolver(cfg.AWS, cfg.Region, logger)
			if err != nil {
				return err
			}
			vpc, err := ec2.Resolve(cmd.Context(), cfg.Network.VPCID)
			if err != nil {
				return err
			}
			if _, err := vpc.Placement(); err != nil {
				return err
			}

			cache, err := network.LoadContext(cfg.Network.ContextFile)
			if err != nil {
				return err
			}
			cache.Put(network.ContextKey(cfg.Account, cfg.Region, vpc.ID), vpc)
			if err := cache.Save(); err != nil {
				return err
			}
			logger.Info("saved vpc lookup", "vpc", vpc.ID, "path", cfg.Network.ContextFile)
			return outputVPC(cmd, vpc, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

func outputVPC(cmd *cobra.Command, vpc *network.VPC, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		data, err := json.MarshalIndent(vpc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))

	case "text":
		fmt.Fprintf(out, "%s (%s), availability zones %v\n", vpc.ID, vpc.CIDR, vpc.AvailabilityZones())
		for _, s := range vpc.Subnets {
			kind := "isolated"
			switch {
			case s.Public:
				kind = "public"
			case s.Egress:
				kind = "private"
			}
			fmt.Fprintf(out, "  %s  %-12s %-8s %s\n", s.ID, s.AvailabilityZone, kind, s.CIDR)
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	return nil
}
