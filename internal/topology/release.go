package topology

import (
	"github.com/lex00/ecs-devsecops-go/internal/pipeline"
	"github.com/lex00/ecs-devsecops-go/internal/stack"
	"github.com/lex00/ecs-devsecops-go/intrinsics"
	"github.com/lex00/ecs-devsecops-go/resources/codepipeline"
	"github.com/lex00/ecs-devsecops-go/resources/events"
	"github.com/lex00/ecs-devsecops-go/resources/iam"
)

// release declares the V2 pipeline and the EventBridge rule that starts it
// on every commit to the source branch.
func (b *builder) release() {
	var notification any
	if arn := b.cfg.Approval.NotificationARN; arn != "" {
		notification = arn
	}
	b.pipeline = pipeline.New(pipeline.Options{
		RepositoryName:  b.h[SourceRepository].GetAtt("Name"),
		Branch:          b.cfg.Source.Branch,
		ProjectName:     b.ref(BuildProject),
		ClusterName:     b.ref(Cluster),
		ServiceName:     b.serviceName(),
		ApprovalMinutes: b.cfg.Approval.TimeoutMinutes(),
		NotificationARN: notification,
	})

	bucket := b.h[ArtifactBucket]
	role := b.add(PipelineRole, iam.Role{
		AssumeRolePolicyDocument: intrinsics.AssumeRolePolicy("codepipeline.amazonaws.com"),
	})

	statements := []intrinsics.PolicyStatement{
		intrinsics.Allow(intrinsics.Strings("s3:GetObject*", "s3:GetBucket*", "s3:List*", "s3:PutObject", "s3:Abort*", "s3:DeleteObject*"),
			bucket.Arn(), intrinsics.Sub{String: "${" + ArtifactBucket + ".Arn}/*"}),
		intrinsics.Allow(intrinsics.Strings(
			"codecommit:GetBranch", "codecommit:GetCommit", "codecommit:UploadArchive",
			"codecommit:GetUploadArchiveStatus", "codecommit:CancelUploadArchive"),
			b.h[SourceRepository].Arn()),
		intrinsics.Allow(intrinsics.Strings("codebuild:BatchGetBuilds", "codebuild:StartBuild", "codebuild:StopBuild"),
			b.h[BuildProject].Arn()),
		intrinsics.Allow(intrinsics.Strings(
			"ecs:DescribeServices", "ecs:DescribeTaskDefinition", "ecs:DescribeTasks",
			"ecs:ListTasks", "ecs:RegisterTaskDefinition", "ecs:TagResource", "ecs:UpdateService"),
			"*"),
		{
			Effect:    "Allow",
			Action:    intrinsics.Strings("iam:PassRole"),
			Resource:  intrinsics.Any(b.h[TaskRole].Arn(), b.h[ExecutionRole].Arn()),
			Condition: intrinsics.Json{intrinsics.StringEquals: intrinsics.Json{"iam:PassedToService": "ecs-tasks.amazonaws.com"}},
		},
	}
	if notification != nil {
		statements = append(statements, intrinsics.Allow(intrinsics.Strings("sns:Publish"), notification))
	}
	policy := b.add(PipelineRolePolicy, iam.Policy{
		PolicyName:     intrinsics.Sub{String: "${AWS::StackName}-pipeline"},
		PolicyDocument: intrinsics.NewPolicyDocument(statements...),
		Roles:          []any{role.Ref()},
	})

	// QUEUED runs executions one at a time, so deploys never overlap.
	b.add(Pipeline, codepipeline.Pipeline{
		PipelineType:  "V2",
		ExecutionMode: "QUEUED",
		RoleArn:       role.Arn(),
		ArtifactStore: &codepipeline.Pipeline_ArtifactStore{
			Type:     "S3",
			Location: bucket.Ref(),
		},
		Stages:                   b.pipeline.Declarations(),
		RestartExecutionOnUpdate: true,
	}, stack.DependsOn(policy))

	pipelineArn := intrinsics.Sub{String: "arn:${AWS::Partition}:codepipeline:${AWS::Region}:${AWS::AccountId}:${" + Pipeline + "}"}
	trigger := b.add(TriggerRole, iam.Role{
		AssumeRolePolicyDocument: intrinsics.AssumeRolePolicy("events.amazonaws.com"),
		Policies: []any{
			iam.Role_Policy{
				PolicyName: "start-pipeline",
				PolicyDocument: intrinsics.NewPolicyDocument(
					intrinsics.Allow(intrinsics.Strings("codepipeline:StartPipelineExecution"), pipelineArn),
				),
			},
		},
	})

	b.add(TriggerRule, events.Rule{
		Description: "Starts the pipeline on commits to the source branch",
		State:       "ENABLED",
		EventPattern: intrinsics.Json{
			"source":      intrinsics.Strings("aws.codecommit"),
			"resources":   intrinsics.Any(b.h[SourceRepository].Arn()),
			"detail-type": intrinsics.Strings("CodeCommit Repository State Change"),
			"detail": intrinsics.Json{
				"event":         intrinsics.Strings("referenceCreated", "referenceUpdated"),
				"referenceName": intrinsics.Strings(b.cfg.Source.Branch),
				"referenceType": intrinsics.Strings("branch"),
			},
		},
		Targets: []any{
			events.Rule_Target{Arn: pipelineArn, Id: "Target0", RoleArn: trigger.Arn()},
		},
	})
}
