// Package ecs provides the AWS::ECS resource types used by the stack.
package ecs

// Cluster is AWS::ECS::Cluster.
type Cluster struct {
	ClusterName     any   `json:"ClusterName,omitempty"`
	ClusterSettings []any `json:"ClusterSettings,omitempty"`
	Tags            []any `json:"Tags,omitempty"`
}

// ResourceType returns "AWS::ECS::Cluster".
func (Cluster) ResourceType() string { return "AWS::ECS::Cluster" }

// Cluster_ClusterSettings is a cluster setting such as containerInsights.
type Cluster_ClusterSettings struct {
	Name  any `json:"Name,omitempty"`
	Value any `json:"Value,omitempty"`
}

// TaskDefinition is AWS::ECS::TaskDefinition.
type TaskDefinition struct {
	Family                  any   `json:"Family,omitempty"`
	Cpu                     any   `json:"Cpu,omitempty"`
	Memory                  any   `json:"Memory,omitempty"`
	NetworkMode             any   `json:"NetworkMode,omitempty"`
	RequiresCompatibilities []any `json:"RequiresCompatibilities,omitempty"`
	ExecutionRoleArn        any   `json:"ExecutionRoleArn,omitempty"`
	TaskRoleArn             any   `json:"TaskRoleArn,omitempty"`
	ContainerDefinitions    []any `json:"ContainerDefinitions,omitempty"`
	Tags                    []any `json:"Tags,omitempty"`
}

// ResourceType returns "AWS::ECS::TaskDefinition".
func (TaskDefinition) ResourceType() string { return "AWS::ECS::TaskDefinition" }

// TaskDefinition_ContainerDefinition describes one container of a task.
type TaskDefinition_ContainerDefinition struct {
	Name             any                              `json:"Name,omitempty"`
	Image            any                              `json:"Image,omitempty"`
	Cpu              int                              `json:"Cpu,omitempty"`
	Memory           int                              `json:"Memory,omitempty"`
	Essential        bool                             `json:"Essential,omitempty"`
	PortMappings     []any                            `json:"PortMappings,omitempty"`
	Environment      []any                            `json:"Environment,omitempty"`
	LogConfiguration *TaskDefinition_LogConfiguration `json:"LogConfiguration,omitempty"`
}

// TaskDefinition_PortMapping maps a container port.
type TaskDefinition_PortMapping struct {
	ContainerPort int `json:"ContainerPort,omitempty"`
	HostPort      int `json:"HostPort,omitempty"`
	Protocol      any `json:"Protocol,omitempty"`
}

// TaskDefinition_KeyValuePair is a container environment variable.
type TaskDefinition_KeyValuePair struct {
	Name  any `json:"Name,omitempty"`
	Value any `json:"Value,omitempty"`
}

// TaskDefinition_LogConfiguration selects the container log driver.
type TaskDefinition_LogConfiguration struct {
	LogDriver any            `json:"LogDriver,omitempty"`
	Options   map[string]any `json:"Options,omitempty"`
}

// Service is AWS::ECS::Service.
type Service struct {
	ServiceName                   any                              `json:"ServiceName,omitempty"`
	Cluster                       any                              `json:"Cluster,omitempty"`
	TaskDefinition                any                              `json:"TaskDefinition,omitempty"`
	DesiredCount                  int                              `json:"DesiredCount,omitempty"`
	LaunchType                    any                              `json:"LaunchType,omitempty"`
	HealthCheckGracePeriodSeconds int                              `json:"HealthCheckGracePeriodSeconds,omitempty"`
	EnableECSManagedTags          bool                             `json:"EnableECSManagedTags,omitempty"`
	DeploymentConfiguration       *Service_DeploymentConfiguration `json:"DeploymentConfiguration,omitempty"`
	NetworkConfiguration          *Service_NetworkConfiguration    `json:"NetworkConfiguration,omitempty"`
	LoadBalancers                 []any                            `json:"LoadBalancers,omitempty"`
	Tags                          []any                            `json:"Tags,omitempty"`
}

// ResourceType returns "AWS::ECS::Service".
func (Service) ResourceType() string { return "AWS::ECS::Service" }

// Service_DeploymentConfiguration bounds rolling deployments.
type Service_DeploymentConfiguration struct {
	MaximumPercent        int `json:"MaximumPercent,omitempty"`
	MinimumHealthyPercent int `json:"MinimumHealthyPercent,omitempty"`
}

// Service_NetworkConfiguration wraps the awsvpc configuration.
type Service_NetworkConfiguration struct {
	AwsvpcConfiguration *Service_AwsVpcConfiguration `json:"AwsvpcConfiguration,omitempty"`
}

// Service_AwsVpcConfiguration places tasks in subnets and security groups.
type Service_AwsVpcConfiguration struct {
	AssignPublicIp any   `json:"AssignPublicIp,omitempty"`
	SecurityGroups []any `json:"SecurityGroups,omitempty"`
	Subnets        []any `json:"Subnets,omitempty"`
}

// Service_LoadBalancer registers a container port with a target group.
type Service_LoadBalancer struct {
	ContainerName  any `json:"ContainerName,omitempty"`
	ContainerPort  int `json:"ContainerPort,omitempty"`
	TargetGroupArn any `json:"TargetGroupArn,omitempty"`
}
