// Package config assembles stack configuration from defaults, an optional
// config file, DEVSECOPS_* environment variables and CDK-style context pairs.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix for every config key.
const EnvPrefix = "DEVSECOPS"

// ContextVPCID is the context key carrying the VPC identifier.
const ContextVPCID = "vpcId"

var (
	// ErrMissingVPCID is returned when no VPC identifier was supplied.
	ErrMissingVPCID = errors.New("missing required context value vpcId: pass --context vpcId=vpc-xxxxxxxx or set DEVSECOPS_NETWORK_VPC_ID")
	// ErrInvalid is returned for values outside their allowed range.
	ErrInvalid = errors.New("invalid configuration")
)

// Bounds accepted by CodePipeline for a manual approval action.
const (
	MinApprovalTimeout = 5 * time.Minute
	MaxApprovalTimeout = 7 * 24 * time.Hour
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds everything needed to declare the stack.
type Config struct {
	Stack    StackConfig    `mapstructure:"stack"`
	Account  string         `mapstructure:"account"`
	Region   string         `mapstructure:"region"`
	Network  NetworkConfig  `mapstructure:"network"`
	Service  ServiceConfig  `mapstructure:"service"`
	Source   SourceConfig   `mapstructure:"source"`
	Build    BuildConfig    `mapstructure:"build"`
	Approval ApprovalConfig `mapstructure:"approval"`
	Log      LogConfig      `mapstructure:"log"`
	AWS      AWSConfig      `mapstructure:"aws"`
}

// StackConfig names the synthesized stack.
type StackConfig struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

// NetworkConfig identifies the existing VPC.
type NetworkConfig struct {
	VPCID string `mapstructure:"vpc_id"`
	// ContextFile caches VPC lookups so synthesis works offline.
	ContextFile string `mapstructure:"context_file"`
}

// ServiceConfig is the shape of the container service.
type ServiceConfig struct {
	ContainerName    string `mapstructure:"container_name"`
	Image            string `mapstructure:"image"`
	ContainerCPU     int    `mapstructure:"container_cpu"`
	ContainerMemory  int    `mapstructure:"container_memory"`
	TaskCPU          string `mapstructure:"task_cpu"`
	TaskMemory       string `mapstructure:"task_memory"`
	ContainerPort    int    `mapstructure:"container_port"`
	ListenerPort     int    `mapstructure:"listener_port"`
	DesiredCount     int    `mapstructure:"desired_count"`
	LogStreamPrefix  string `mapstructure:"log_stream_prefix"`
	LogRetentionDays int    `mapstructure:"log_retention_days"`
}

// SourceConfig is the CodeCommit repository that triggers the pipeline.
type SourceConfig struct {
	RepositoryName string `mapstructure:"repository_name"`
	Branch         string `mapstructure:"branch"`
}

// BuildConfig is the CodeBuild environment and its tools.
type BuildConfig struct {
	Image          string `mapstructure:"image"`
	ComputeType    string `mapstructure:"compute_type"`
	TimeoutMinutes int    `mapstructure:"timeout_minutes"`
	Dockerfile     string `mapstructure:"dockerfile"`
	HadolintImage  string `mapstructure:"hadolint_image"`
	HadolintConfig string `mapstructure:"hadolint_config"`
	ScannerURL     string `mapstructure:"scanner_url"`
}

// ApprovalConfig bounds the manual approval gate.
type ApprovalConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	NotificationARN string        `mapstructure:"notification_arn"`
}

// TimeoutMinutes returns the timeout as whole minutes.
func (c ApprovalConfig) TimeoutMinutes() int {
	return int(c.Timeout / time.Minute)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AWSConfig holds static credentials for VPC lookups.
type AWSConfig struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
}

// HasCredentials reports whether static credentials are present.
func (c AWSConfig) HasCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// =============================================================================
// Config Loading
// =============================================================================

func defaults(v *viper.Viper) {
	v.SetDefault("stack.name", "CdkEcsDevsecopsStack")
	v.SetDefault("stack.description", "ECS Fargate service with a CodeCommit, CodeBuild and CodePipeline DevSecOps pipeline")

	v.SetDefault("network.vpc_id", "")
	v.SetDefault("network.context_file", "devsecops.context.json")

	v.SetDefault("service.container_name", "cs-cdk-devsecops-container")
	v.SetDefault("service.image", "amazon/amazon-ecs-sample")
	v.SetDefault("service.container_cpu", 256)
	v.SetDefault("service.container_memory", 256)
	v.SetDefault("service.task_cpu", "256")
	v.SetDefault("service.task_memory", "512")
	v.SetDefault("service.container_port", 80)
	v.SetDefault("service.listener_port", 80)
	v.SetDefault("service.desired_count", 2)
	v.SetDefault("service.log_stream_prefix", "cs-cdk-devsecops-logs")
	v.SetDefault("service.log_retention_days", 0) // never expire

	v.SetDefault("source.repository_name", "amazon-ecs-fargate-cdk-cicd")
	v.SetDefault("source.branch", "main")

	v.SetDefault("build.image", "aws/codebuild/amazonlinux2-x86_64-standard:2.0")
	v.SetDefault("build.compute_type", "BUILD_GENERAL1_SMALL")
	v.SetDefault("build.timeout_minutes", 60)
	v.SetDefault("build.dockerfile", "Dockerfile")
	v.SetDefault("build.hadolint_image", "hadolint/hadolint:v1.16.2")
	v.SetDefault("build.hadolint_config", ".hadolint.yml")
	v.SetDefault("build.scanner_url", "https://ci-tools.anchore.io/inline_scan-v0.3.3")

	v.SetDefault("approval.timeout", "168h")
	v.SetDefault("approval.notification_arn", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("account", "")
	v.SetDefault("region", "")
	v.SetDefault("aws.access_key_id", "")
	v.SetDefault("aws.secret_access_key", "")
	v.SetDefault("aws.session_token", "")
}

// Load builds the configuration. Context pairs take precedence over the
// environment, which takes precedence over the file and the defaults.
func Load(configPath string, context map[string]string) (*Config, error) {
	v := viper.New()
	defaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Deployment target and credentials use the variable names the AWS
	// tooling already exports.
	_ = v.BindEnv("account", EnvPrefix+"_ACCOUNT", "CDK_DEFAULT_ACCOUNT")
	_ = v.BindEnv("region", EnvPrefix+"_REGION", "CDK_DEFAULT_REGION", "AWS_REGION")
	_ = v.BindEnv("aws.access_key_id", EnvPrefix+"_AWS_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("aws.secret_access_key", EnvPrefix+"_AWS_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")
	_ = v.BindEnv("aws.session_token", EnvPrefix+"_AWS_SESSION_TOKEN", "AWS_SESSION_TOKEN")

	for key, value := range context {
		target, ok := contextKeys[key]
		if !ok {
			return nil, fmt.Errorf("%w: unknown context key %q", ErrInvalid, key)
		}
		v.Set(target, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// contextKeys maps CDK-style context keys onto config keys.
var contextKeys = map[string]string{
	ContextVPCID:      "network.vpc_id",
	"account":         "account",
	"region":          "region",
	"approvalTimeout": "approval.timeout",
	"branch":          "source.branch",
}

// ParseContext parses key=value pairs as given to --context.
func ParseContext(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: context %q is not key=value", ErrInvalid, p)
		}
		out[key] = value
	}
	return out, nil
}

// Validate fails closed: it runs before any resource is declared.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Network.VPCID) == "" {
		return ErrMissingVPCID
	}
	if !strings.HasPrefix(c.Network.VPCID, "vpc-") {
		return fmt.Errorf("%w: vpcId %q must start with vpc-", ErrInvalid, c.Network.VPCID)
	}

	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}
	s := c.Service
	check(s.ContainerName != "", "service.container_name is empty")
	check(s.Image != "", "service.image is empty")
	check(s.DesiredCount >= 1, "service.desired_count must be at least 1, got %d", s.DesiredCount)
	check(validPort(s.ContainerPort), "service.container_port %d out of range", s.ContainerPort)
	check(validPort(s.ListenerPort), "service.listener_port %d out of range", s.ListenerPort)
	check(s.ContainerCPU > 0, "service.container_cpu must be positive")
	check(s.ContainerMemory > 0, "service.container_memory must be positive")
	check(c.Source.RepositoryName != "", "source.repository_name is empty")
	check(c.Source.Branch != "", "source.branch is empty")
	check(c.Build.Image != "", "build.image is empty")
	check(c.Build.HadolintImage != "", "build.hadolint_image is empty")
	check(c.Approval.Timeout >= MinApprovalTimeout && c.Approval.Timeout <= MaxApprovalTimeout,
		"approval.timeout %s outside [%s, %s]", c.Approval.Timeout, MinApprovalTimeout, MaxApprovalTimeout)
	return errors.Join(errs...)
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
