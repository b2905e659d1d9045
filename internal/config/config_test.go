package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks variables that would leak from the host environment.
// Viper ignores empty values.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DEVSECOPS_NETWORK_VPC_ID",
		"DEVSECOPS_SERVICE_DESIRED_COUNT",
		"DEVSECOPS_APPROVAL_TIMEOUT",
		"CDK_DEFAULT_ACCOUNT",
		"CDK_DEFAULT_REGION",
		"AWS_REGION",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "CdkEcsDevsecopsStack", cfg.Stack.Name)
	assert.Equal(t, "cs-cdk-devsecops-container", cfg.Service.ContainerName)
	assert.Equal(t, "amazon/amazon-ecs-sample", cfg.Service.Image)
	assert.Equal(t, 256, cfg.Service.ContainerCPU)
	assert.Equal(t, 256, cfg.Service.ContainerMemory)
	assert.Equal(t, "512", cfg.Service.TaskMemory)
	assert.Equal(t, 80, cfg.Service.ListenerPort)
	assert.Equal(t, 2, cfg.Service.DesiredCount)
	assert.Equal(t, "main", cfg.Source.Branch)
	assert.Equal(t, "hadolint/hadolint:v1.16.2", cfg.Build.HadolintImage)
	assert.Equal(t, 7*24*time.Hour, cfg.Approval.Timeout)
	assert.Equal(t, 10080, cfg.Approval.TimeoutMinutes())
	assert.Empty(t, cfg.Network.VPCID)
}

func TestLoad_ContextSetsVPC(t *testing.T) {
	cfg, err := Load("", map[string]string{ContextVPCID: "vpc-0123abcd"})
	require.NoError(t, err)
	assert.Equal(t, "vpc-0123abcd", cfg.Network.VPCID)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_UnknownContextKey(t *testing.T) {
	_, err := Load("", map[string]string{"vpc": "vpc-1"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("DEVSECOPS_NETWORK_VPC_ID", "vpc-0123abcd")
	t.Setenv("DEVSECOPS_SERVICE_DESIRED_COUNT", "3")
	t.Setenv("CDK_DEFAULT_ACCOUNT", "123456789012")
	t.Setenv("CDK_DEFAULT_REGION", "eu-west-1")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "vpc-0123abcd", cfg.Network.VPCID)
	assert.Equal(t, 3, cfg.Service.DesiredCount)
	assert.Equal(t, "123456789012", cfg.Account)
	assert.Equal(t, "eu-west-1", cfg.Region)
}

func TestLoad_ContextOverridesEnvironment(t *testing.T) {
	t.Setenv("DEVSECOPS_NETWORK_VPC_ID", "vpc-fromenv")
	cfg, err := Load("", map[string]string{ContextVPCID: "vpc-fromctx"})
	require.NoError(t, err)
	assert.Equal(t, "vpc-fromctx", cfg.Network.VPCID)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "devsecops.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
network:
  vpc_id: vpc-file0001
approval:
  timeout: 2h
service:
  desired_count: 4
`), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "vpc-file0001", cfg.Network.VPCID)
	assert.Equal(t, 2*time.Hour, cfg.Approval.Timeout)
	assert.Equal(t, 4, cfg.Service.DesiredCount)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network: [unterminated"), 0o644))
	_, err := Load(path, nil)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate_MissingVPC(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("", nil)
	require.NoError(t, err)

	err = cfg.Validate()
	require.ErrorIs(t, err, ErrMissingVPCID)
	assert.Contains(t, err.Error(), "vpcId")
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad vpc prefix", func(c *Config) { c.Network.VPCID = "subnet-1" }, "must start with vpc-"},
		{"zero replicas", func(c *Config) { c.Service.DesiredCount = 0 }, "desired_count"},
		{"port", func(c *Config) { c.Service.ListenerPort = 70000 }, "listener_port"},
		{"approval too short", func(c *Config) { c.Approval.Timeout = time.Minute }, "approval.timeout"},
		{"approval too long", func(c *Config) { c.Approval.Timeout = 8 * 24 * time.Hour }, "approval.timeout"},
		{"no container name", func(c *Config) { c.Service.ContainerName = "" }, "container_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("", map[string]string{ContextVPCID: "vpc-0123abcd"})
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseContext(t *testing.T) {
	got, err := ParseContext([]string{"vpcId=vpc-1", "branch=release"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"vpcId": "vpc-1", "branch": "release"}, got)

	_, err = ParseContext([]string{"novalue"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "stage", "Build")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"stage":"Build"`)
}

func TestAWSConfig_HasCredentials(t *testing.T) {
	assert.False(t, AWSConfig{}.HasCredentials())
	assert.True(t, AWSConfig{AccessKeyID: "AKIA", SecretAccessKey: "s"}.HasCredentials())
}
