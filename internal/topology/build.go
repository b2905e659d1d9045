package topology

import (
	"github.com/lex00/ecs-devsecops-go/internal/buildspec"
	"github.com/lex00/ecs-devsecops-go/internal/config"
	"github.com/lex00/ecs-devsecops-go/internal/stack"
	"github.com/lex00/ecs-devsecops-go/intrinsics"
	"github.com/lex00/ecs-devsecops-go/resources/codebuild"
	"github.com/lex00/ecs-devsecops-go/resources/iam"
	"github.com/lex00/ecs-devsecops-go/resources/s3"
)

// Actions ECR's pull/push grant expands to, on the repository.
var pullPushActions = []string{
	"ecr:BatchCheckLayerAvailability",
	"ecr:GetDownloadUrlForLayer",
	"ecr:BatchGetImage",
	"ecr:CompleteLayerUpload",
	"ecr:UploadLayerPart",
	"ecr:InitiateLayerUpload",
	"ecr:PutImage",
}

// Actions the build may use against the cluster.
var clusterActions = []string{
	"ecs:DescribeCluster",
	"ecr:GetAuthorizationToken",
	"ecr:BatchCheckLayerAvailability",
	"ecr:BatchGetImage",
	"ecr:GetDownloadUrlForLayer",
}

// build declares the artifact bucket, the build role and the privileged
// CodeBuild project running the DevSecOps buildspec.
func (b *builder) build() {
	bc := b.cfg.Build

	bucket := b.add(ArtifactBucket, s3.Bucket{
		BucketEncryption: &s3.Bucket_BucketEncryption{
			ServerSideEncryptionConfiguration: []any{
				s3.Bucket_ServerSideEncryptionRule{
					ServerSideEncryptionByDefault: &s3.Bucket_ServerSideEncryptionByDefault{SSEAlgorithm: "aws:kms"},
				},
			},
		},
		PublicAccessBlockConfiguration: &s3.Bucket_PublicAccessBlockConfiguration{
			BlockPublicAcls:       true,
			BlockPublicPolicy:     true,
			IgnorePublicAcls:      true,
			RestrictPublicBuckets: true,
		},
	})
	b.add(ArtifactBucketPolicy, s3.BucketPolicy{
		Bucket: bucket.Ref(),
		PolicyDocument: intrinsics.NewPolicyDocument(intrinsics.PolicyStatement{
			Effect:    "Deny",
			Principal: intrinsics.AWSPrincipal{"*"},
			Action:    intrinsics.Strings("s3:*"),
			Resource:  intrinsics.Any(bucket.Arn(), intrinsics.Sub{String: "${" + ArtifactBucket + ".Arn}/*"}),
			Condition: intrinsics.Json{intrinsics.Bool: intrinsics.Json{"aws:SecureTransport": "false"}},
		}),
	})

	role := b.add(BuildRole, iam.Role{
		AssumeRolePolicyDocument: intrinsics.AssumeRolePolicy("codebuild.amazonaws.com"),
	})
	b.add(BuildRolePolicy, iam.Policy{
		PolicyName: intrinsics.Sub{String: "${AWS::StackName}-build"},
		PolicyDocument: intrinsics.NewPolicyDocument(
			intrinsics.Allow(intrinsics.Strings("logs:CreateLogGroup", "logs:CreateLogStream", "logs:PutLogEvents"),
				intrinsics.Sub{String: "arn:${AWS::Partition}:logs:${AWS::Region}:${AWS::AccountId}:log-group:/aws/codebuild/${AWS::StackName}"},
				intrinsics.Sub{String: "arn:${AWS::Partition}:logs:${AWS::Region}:${AWS::AccountId}:log-group:/aws/codebuild/${AWS::StackName}:*"}),
			intrinsics.Allow(intrinsics.Strings("s3:GetObject*", "s3:GetBucket*", "s3:List*", "s3:PutObject", "s3:Abort*"),
				bucket.Arn(), intrinsics.Sub{String: "${" + ArtifactBucket + ".Arn}/*"}),
			intrinsics.Allow(strs(pullPushActions), b.h[ImageRepository].Arn()),
			intrinsics.Allow(intrinsics.Strings("ecr:GetAuthorizationToken"), "*"),
			intrinsics.Allow(strs(clusterActions), b.h[Cluster].Arn()),
		),
		Roles: []any{role.Ref()},
	})

	b.buildspec = NewBuildSpec(b.cfg)

	b.add(BuildProject, codebuild.Project{
		Name:        intrinsics.Sub{String: "${AWS::StackName}"},
		Description: "Lints, builds, pushes and scans the service image",
		ServiceRole: role.Arn(),
		Source: &codebuild.Project_Source{
			Type:      "CODEPIPELINE",
			BuildSpec: b.buildspec.String(),
		},
		Artifacts: &codebuild.Project_Artifacts{Type: "CODEPIPELINE"},
		Environment: &codebuild.Project_Environment{
			Type:                     "LINUX_CONTAINER",
			ComputeType:              bc.ComputeType,
			Image:                    bc.Image,
			PrivilegedMode:           true,
			ImagePullCredentialsType: "CODEBUILD",
			EnvironmentVariables: []any{
				codebuild.Project_EnvironmentVariable{
					Name:  buildspec.EnvClusterName,
					Type:  "PLAINTEXT",
					Value: b.ref(Cluster),
				},
				codebuild.Project_EnvironmentVariable{
					Name:  buildspec.EnvRepositoryURI,
					Type:  "PLAINTEXT",
					Value: b.imageRepositoryURI(),
				},
			},
		},
		TimeoutInMinutes: bc.TimeoutMinutes,
	}, stack.DependsOn(b.h[BuildRolePolicy]))
}

// NewBuildSpec returns the buildspec the project runs. It needs no VPC, so
// it can be printed or simulated before a lookup.
func NewBuildSpec(cfg *config.Config) *buildspec.Spec {
	bc := cfg.Build
	return buildspec.DevSecOps(buildspec.Options{
		ContainerName:  cfg.Service.ContainerName,
		Dockerfile:     bc.Dockerfile,
		HadolintImage:  bc.HadolintImage,
		HadolintConfig: bc.HadolintConfig,
		ScannerURL:     bc.ScannerURL,
	})
}
