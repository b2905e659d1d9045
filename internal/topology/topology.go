// Package topology declares the DevSecOps stack: the Fargate service behind
// a public load balancer, the image registry and the CodeCommit → CodeBuild
// → approval → ECS pipeline that ships new images to it.
package topology

import (
	"fmt"

	devsecops "github.com/lex00/ecs-devsecops-go"
	"github.com/lex00/ecs-devsecops-go/internal/buildspec"
	"github.com/lex00/ecs-devsecops-go/internal/config"
	"github.com/lex00/ecs-devsecops-go/internal/network"
	"github.com/lex00/ecs-devsecops-go/internal/pipeline"
	"github.com/lex00/ecs-devsecops-go/internal/stack"
	"github.com/lex00/ecs-devsecops-go/intrinsics"
)

// Logical IDs of the declared resources.
const (
	LoadBalancerSecurityGroup = "LoadBalancerSecurityGroup"
	ServiceSecurityGroup      = "ServiceSecurityGroup"
	LoadBalancerToService     = "LoadBalancerToServiceEgress"
	ServiceFromLoadBalancer   = "ServiceFromLoadBalancerIngress"
	Cluster                   = "Cluster"
	TaskRole                  = "TaskRole"
	ExecutionRole             = "ExecutionRole"
	ExecutionRolePolicy       = "ExecutionRolePolicy"
	LogGroup                  = "LogGroup"
	TaskDefinition            = "TaskDefinition"
	LoadBalancer              = "LoadBalancer"
	TargetGroup               = "TargetGroup"
	Listener                  = "Listener"
	Service                   = "Service"
	ImageRepository           = "ImageRepository"
	SourceRepository          = "SourceRepository"
	ArtifactBucket            = "ArtifactBucket"
	ArtifactBucketPolicy      = "ArtifactBucketPolicy"
	BuildRole                 = "BuildRole"
	BuildRolePolicy           = "BuildRolePolicy"
	BuildProject              = "BuildProject"
	PipelineRole              = "PipelineRole"
	PipelineRolePolicy        = "PipelineRolePolicy"
	Pipeline                  = "Pipeline"
	TriggerRole               = "PipelineTriggerRole"
	TriggerRule               = "PipelineTriggerRule"
)

// Output names.
const (
	OutputLoadBalancerDNS = "LoadBalancerDNS"
	OutputECRURI          = "ECRURI"
	OutputContainer       = "Container"
)

// ExecutionActions are the only actions the task execution role may use:
// pull the image from the registry and ship container logs.
var ExecutionActions = []string{
	"ecr:GetAuthorizationToken",
	"ecr:BatchCheckLayerAvailability",
	"ecr:GetDownloadUrlForLayer",
	"ecr:BatchGetImage",
	"logs:CreateLogStream",
	"logs:PutLogEvents",
}

// Topology is the declared stack together with the pipeline and buildspec
// it embeds, so local simulation runs exactly what is deployed.
type Topology struct {
	Stack     *stack.Stack
	Pipeline  pipeline.Definition
	BuildSpec *buildspec.Spec
	Placement network.Placement
}

type builder struct {
	cfg       *config.Config
	vpc       *network.VPC
	placement network.Placement
	s         *stack.Stack
	h         map[string]stack.Handle

	pipeline  pipeline.Definition
	buildspec *buildspec.Spec
}

// Build declares the stack into a VPC. The configuration is validated
// first, so a missing VPC identifier is reported before anything is
// declared.
func Build(cfg *config.Config, vpc *network.VPC) (*Topology, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if vpc == nil {
		return nil, fmt.Errorf("%w: %s", network.ErrVPCNotFound, cfg.Network.VPCID)
	}
	if vpc.ID != cfg.Network.VPCID {
		return nil, fmt.Errorf("resolved vpc %s does not match configured %s", vpc.ID, cfg.Network.VPCID)
	}
	placement, err := vpc.Placement()
	if err != nil {
		return nil, err
	}

	b := &builder{
		cfg:       cfg,
		vpc:       vpc,
		placement: placement,
		s:         stack.New(cfg.Stack.Name, cfg.Stack.Description),
		h:         make(map[string]stack.Handle),
	}
	b.network()
	b.cluster()
	b.roles()
	b.task()
	b.service()
	b.registry()
	b.source()
	b.build()
	b.release()
	b.outputs()

	return &Topology{
		Stack:     b.s,
		Pipeline:  b.pipeline,
		BuildSpec: b.buildspec,
		Placement: placement,
	}, nil
}

// add declares a resource and remembers its handle.
func (b *builder) add(id string, r devsecops.Resource, opts ...stack.Option) stack.Handle {
	h := b.s.Add(id, r, opts...)
	b.h[id] = h
	return h
}

func (b *builder) ref(id string) intrinsics.Ref {
	return b.h[id].Ref()
}

func (b *builder) nameTag(suffix string) intrinsics.Tag {
	return intrinsics.Tag{Key: "Name", Value: intrinsics.Sub{String: "${AWS::StackName}/" + suffix}}
}

func strs(items []string) []any {
	return intrinsics.Strings(items...)
}
