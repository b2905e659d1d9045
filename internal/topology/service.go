package topology

import (
	"github.com/lex00/ecs-devsecops-go/internal/stack"
	"github.com/lex00/ecs-devsecops-go/resources/ecs"
	elbv2 "github.com/lex00/ecs-devsecops-go/resources/elasticloadbalancingv2"
)

// service declares the internet-facing load balancer and the Fargate
// service registered behind it.
func (b *builder) service() {
	svc := b.cfg.Service

	lb := b.add(LoadBalancer, elbv2.LoadBalancer{
		Scheme:         "internet-facing",
		Type:           "application",
		Subnets:        strs(b.placement.LoadBalancerSubnets),
		SecurityGroups: []any{b.h[LoadBalancerSecurityGroup].GetAtt("GroupId")},
		LoadBalancerAttributes: []any{
			elbv2.LoadBalancer_LoadBalancerAttribute{Key: "deletion_protection.enabled", Value: "false"},
		},
	})

	tg := b.add(TargetGroup, elbv2.TargetGroup{
		Port:       svc.ContainerPort,
		Protocol:   "HTTP",
		TargetType: "ip",
		VpcId:      b.vpc.ID,
		TargetGroupAttributes: []any{
			elbv2.TargetGroup_TargetGroupAttribute{Key: "stickiness.enabled", Value: "false"},
		},
	})

	listener := b.add(Listener, elbv2.Listener{
		LoadBalancerArn: lb.Ref(),
		Port:            svc.ListenerPort,
		Protocol:        "HTTP",
		DefaultActions: []any{
			elbv2.Listener_Action{Type: "forward", TargetGroupArn: tg.Ref()},
		},
	})

	assignPublicIP := "DISABLED"
	if b.placement.AssignPublicIP {
		assignPublicIP = "ENABLED"
	}

	// The service registers with the target group only once the listener
	// forwards to it.
	b.add(Service, ecs.Service{
		Cluster:                       b.ref(Cluster),
		TaskDefinition:                b.ref(TaskDefinition),
		DesiredCount:                  svc.DesiredCount,
		LaunchType:                    "FARGATE",
		HealthCheckGracePeriodSeconds: 60,
		DeploymentConfiguration: &ecs.Service_DeploymentConfiguration{
			MaximumPercent:        200,
			MinimumHealthyPercent: 50,
		},
		NetworkConfiguration: &ecs.Service_NetworkConfiguration{
			AwsvpcConfiguration: &ecs.Service_AwsVpcConfiguration{
				AssignPublicIp: assignPublicIP,
				SecurityGroups: []any{b.h[ServiceSecurityGroup].GetAtt("GroupId")},
				Subnets:        strs(b.placement.TaskSubnets),
			},
		},
		LoadBalancers: []any{
			ecs.Service_LoadBalancer{
				ContainerName:  svc.ContainerName,
				ContainerPort:  svc.ContainerPort,
				TargetGroupArn: tg.Ref(),
			},
		},
	}, stack.DependsOn(listener, b.h[TaskRole]))
}

// serviceName is the deploy target. ECS returns the service ARN for Ref.
func (b *builder) serviceName() any {
	return b.h[Service].GetAtt("Name")
}
