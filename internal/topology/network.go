package topology

import (
	"github.com/lex00/ecs-devsecops-go/resources/ec2"
)

// network declares the two security groups. The load balancer accepts the
// listener port from anywhere and may only reach the tasks; the tasks accept
// traffic from the load balancer only.
func (b *builder) network() {
	svc := b.cfg.Service

	lb := b.add(LoadBalancerSecurityGroup, ec2.SecurityGroup{
		GroupDescription: "Load balancer for the DevSecOps service",
		VpcId:            b.vpc.ID,
		SecurityGroupIngress: []any{
			ec2.SecurityGroup_Ingress{
				IpProtocol:  "tcp",
				FromPort:    svc.ListenerPort,
				ToPort:      svc.ListenerPort,
				CidrIp:      "0.0.0.0/0",
				Description: "Allow from anyone on the listener port",
			},
		},
		// Placeholder rule: a group without egress rules allows all outbound.
		SecurityGroupEgress: []any{
			ec2.SecurityGroup_Egress{
				IpProtocol:  "icmp",
				FromPort:    252,
				ToPort:      86,
				CidrIp:      "255.255.255.255/32",
				Description: "Disallow all traffic",
			},
		},
		Tags: []any{b.nameTag("LoadBalancer")},
	})

	task := b.add(ServiceSecurityGroup, ec2.SecurityGroup{
		GroupDescription: "Fargate tasks of the DevSecOps service",
		VpcId:            b.vpc.ID,
		SecurityGroupEgress: []any{
			ec2.SecurityGroup_Egress{
				IpProtocol:  "-1",
				CidrIp:      "0.0.0.0/0",
				Description: "Allow all outbound traffic by default",
			},
		},
		Tags: []any{b.nameTag("Service")},
	})

	b.add(LoadBalancerToService, ec2.SecurityGroupEgress{
		GroupId:                    lb.GetAtt("GroupId"),
		IpProtocol:                 "tcp",
		FromPort:                   svc.ContainerPort,
		ToPort:                     svc.ContainerPort,
		DestinationSecurityGroupId: task.GetAtt("GroupId"),
		Description:                "Load balancer to target",
	})
	b.add(ServiceFromLoadBalancer, ec2.SecurityGroupIngress{
		GroupId:               task.GetAtt("GroupId"),
		IpProtocol:            "tcp",
		FromPort:              svc.ContainerPort,
		ToPort:                svc.ContainerPort,
		SourceSecurityGroupId: lb.GetAtt("GroupId"),
		Description:           "Load balancer to target",
	})
}
