package topology

import (
	"github.com/lex00/ecs-devsecops-go/internal/stack"
	"github.com/lex00/ecs-devsecops-go/intrinsics"
	"github.com/lex00/ecs-devsecops-go/resources/ecs"
	"github.com/lex00/ecs-devsecops-go/resources/iam"
	"github.com/lex00/ecs-devsecops-go/resources/logs"
)

func (b *builder) cluster() {
	b.add(Cluster, ecs.Cluster{
		ClusterSettings: []any{
			ecs.Cluster_ClusterSettings{Name: "containerInsights", Value: "disabled"},
		},
	})
}

// roles declares the task role the application runs as and the execution
// role the agent uses to pull the image and ship logs.
func (b *builder) roles() {
	b.add(TaskRole, iam.Role{
		RoleName:                 intrinsics.Sub{String: "ecs-taskRole-${AWS::StackName}"},
		AssumeRolePolicyDocument: intrinsics.AssumeRolePolicy("ecs-tasks.amazonaws.com"),
	})

	exec := b.add(ExecutionRole, iam.Role{
		AssumeRolePolicyDocument: intrinsics.AssumeRolePolicy("ecs-tasks.amazonaws.com"),
	})
	b.add(ExecutionRolePolicy, iam.Policy{
		PolicyName: intrinsics.Sub{String: "${AWS::StackName}-execution"},
		PolicyDocument: intrinsics.NewPolicyDocument(
			intrinsics.Allow(strs(ExecutionActions), "*"),
		),
		Roles: []any{exec.Ref()},
	})
}

func (b *builder) task() {
	svc := b.cfg.Service

	// Zero retention is omitted, leaving the log events to never expire.
	lg := b.add(LogGroup, logs.LogGroup{RetentionInDays: svc.LogRetentionDays}, stack.Retain())

	b.add(TaskDefinition, ecs.TaskDefinition{
		Family:                  intrinsics.Sub{String: "${AWS::StackName}-task"},
		Cpu:                     svc.TaskCPU,
		Memory:                  svc.TaskMemory,
		NetworkMode:             "awsvpc",
		RequiresCompatibilities: intrinsics.Strings("FARGATE"),
		TaskRoleArn:             b.h[TaskRole].Arn(),
		ExecutionRoleArn:        b.h[ExecutionRole].Arn(),
		ContainerDefinitions: []any{
			ecs.TaskDefinition_ContainerDefinition{
				Name:      svc.ContainerName,
				Image:     svc.Image,
				Cpu:       svc.ContainerCPU,
				Memory:    svc.ContainerMemory,
				Essential: true,
				PortMappings: []any{
					ecs.TaskDefinition_PortMapping{ContainerPort: svc.ContainerPort, Protocol: "tcp"},
				},
				LogConfiguration: &ecs.TaskDefinition_LogConfiguration{
					LogDriver: "awslogs",
					Options: map[string]any{
						"awslogs-group":         lg.Ref(),
						"awslogs-stream-prefix": svc.LogStreamPrefix,
						"awslogs-region":        intrinsics.AWS_REGION,
					},
				},
			},
		},
	}, stack.DependsOn(b.h[ExecutionRolePolicy]))
}
