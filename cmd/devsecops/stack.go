package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	devsecops "github.com/lex00/ecs-devsecops-go"
	"github.com/lex00/ecs-devsecops-go/internal/config"
	"github.com/lex00/ecs-devsecops-go/internal/network"
	"github.com/lex00/ecs-devsecops-go/internal/template"
	"github.com/lex00/ecs-devsecops-go/internal/topology"
)

// load assembles the configuration. Flags override the configured log
// settings.
func (o *globalOptions) load() (*config.Config, *slog.Logger, error) {
	pairs, err := config.ParseContext(o.context)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(o.configPath, pairs)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	return cfg, config.SetupLogger(cfg.Log, os.Stderr), nil
}

// resolver answers from the context file, falling back to EC2 when
// credentials and a region are configured.
func resolver(cfg *config.Config, logger *slog.Logger) (*network.CachingResolver, error) {
	cache, err := network.LoadContext(cfg.Network.ContextFile)
	if err != nil {
		return nil, err
	}
	r := &network.CachingResolver{
		Cache:   cache,
		Account: cfg.Account,
		Region:  cfg.Region,
		Logger:  logger,
	}
	if cfg.AWS.HasCredentials() && cfg.Region != "" {
		upstream, err := network.NewEC2Resolver(cfg.AWS, cfg.Region, logger)
		if err != nil {
			return nil, err
		}
		r.Upstream = upstream
	}
	return r, nil
}

// synthesis is one synthesized stack.
type synthesis struct {
	cfg      *config.Config
	logger   *slog.Logger
	topo     *topology.Topology
	template *devsecops.Template
	order    []string
}

// synthesize validates the configuration before any lookup, resolves the
// VPC and declares the stack.
func (o *globalOptions) synthesize(ctx context.Context) (*synthesis, error) {
	cfg, logger, err := o.load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r, err := resolver(cfg, logger)
	if err != nil {
		return nil, err
	}
	vpc, err := r.Resolve(ctx, cfg.Network.VPCID)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", cfg.Network.VPCID, err)
	}

	topo, err := topology.Build(cfg, vpc)
	if err != nil {
		return nil, err
	}
	if topo.Placement.IsolatedTasks {
		logger.Warn("tasks placed in isolated subnets; ECR and CloudWatch Logs need VPC endpoints",
			"vpc", vpc.ID, "subnets", topo.Placement.TaskSubnets)
	}
	tmpl, order, err := topo.Stack.Template()
	if err != nil {
		return nil, err
	}
	logger.Debug("synthesized stack", "stack", topo.Stack.Name(), "resources", len(order))
	return &synthesis{cfg: cfg, logger: logger, topo: topo, template: tmpl, order: order}, nil
}

// templateOrSynth loads the template file, or synthesizes the stack when
// path is empty.
func (o *globalOptions) templateOrSynth(ctx context.Context, path string) (*devsecops.Template, error) {
	if path != "" {
		return template.Load(path)
	}
	s, err := o.synthesize(ctx)
	if err != nil {
		return nil, err
	}
	return s.template, nil
}

// writeOutput writes data to the file, or to stdout when path is empty.
func writeOutput(stdout io.Writer, data []byte, path string) error {
	if path == "" {
		_, err := fmt.Fprintln(stdout, string(data))
		return err
	}
	return os.WriteFile(path, data, 0644)
}
