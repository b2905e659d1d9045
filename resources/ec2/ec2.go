// Package ec2 provides the AWS::EC2 resource types used by the stack.
package ec2

// SecurityGroup is AWS::EC2::SecurityGroup.
type SecurityGroup struct {
	GroupDescription     any   `json:"GroupDescription,omitempty"`
	GroupName            any   `json:"GroupName,omitempty"`
	VpcId                any   `json:"VpcId,omitempty"`
	SecurityGroupIngress []any `json:"SecurityGroupIngress,omitempty"`
	SecurityGroupEgress  []any `json:"SecurityGroupEgress,omitempty"`
	Tags                 []any `json:"Tags,omitempty"`
}

// ResourceType returns "AWS::EC2::SecurityGroup".
func (SecurityGroup) ResourceType() string { return "AWS::EC2::SecurityGroup" }

// SecurityGroup_Ingress is an inline ingress rule.
type SecurityGroup_Ingress struct {
	IpProtocol            any `json:"IpProtocol,omitempty"`
	FromPort              int `json:"FromPort,omitempty"`
	ToPort                int `json:"ToPort,omitempty"`
	CidrIp                any `json:"CidrIp,omitempty"`
	SourceSecurityGroupId any `json:"SourceSecurityGroupId,omitempty"`
	Description           any `json:"Description,omitempty"`
}

// SecurityGroup_Egress is an inline egress rule.
type SecurityGroup_Egress struct {
	IpProtocol                 any `json:"IpProtocol,omitempty"`
	FromPort                   int `json:"FromPort,omitempty"`
	ToPort                     int `json:"ToPort,omitempty"`
	CidrIp                     any `json:"CidrIp,omitempty"`
	DestinationSecurityGroupId any `json:"DestinationSecurityGroupId,omitempty"`
	Description                any `json:"Description,omitempty"`
}

// SecurityGroupIngress is AWS::EC2::SecurityGroupIngress. Standalone rules
// keep cross-group references out of the groups themselves.
type SecurityGroupIngress struct {
	GroupId               any `json:"GroupId,omitempty"`
	IpProtocol            any `json:"IpProtocol,omitempty"`
	FromPort              int `json:"FromPort,omitempty"`
	ToPort                int `json:"ToPort,omitempty"`
	SourceSecurityGroupId any `json:"SourceSecurityGroupId,omitempty"`
	Description           any `json:"Description,omitempty"`
}

// ResourceType returns "AWS::EC2::SecurityGroupIngress".
func (SecurityGroupIngress) ResourceType() string { return "AWS::EC2::SecurityGroupIngress" }

// SecurityGroupEgress is AWS::EC2::SecurityGroupEgress.
type SecurityGroupEgress struct {
	GroupId                    any `json:"GroupId,omitempty"`
	IpProtocol                 any `json:"IpProtocol,omitempty"`
	FromPort                   int `json:"FromPort,omitempty"`
	ToPort                     int `json:"ToPort,omitempty"`
	DestinationSecurityGroupId any `json:"DestinationSecurityGroupId,omitempty"`
	Description                any `json:"Description,omitempty"`
}

// ResourceType returns "AWS::EC2::SecurityGroupEgress".
func (SecurityGroupEgress) ResourceType() string { return "AWS::EC2::SecurityGroupEgress" }
