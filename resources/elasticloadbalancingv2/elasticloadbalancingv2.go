// Package elasticloadbalancingv2 provides the application load balancer
// resource types used by the stack.
package elasticloadbalancingv2

// LoadBalancer is AWS::ElasticLoadBalancingV2::LoadBalancer.
type LoadBalancer struct {
	Name                   any   `json:"Name,omitempty"`
	Scheme                 any   `json:"Scheme,omitempty"`
	Type                   any   `json:"Type,omitempty"`
	Subnets                []any `json:"Subnets,omitempty"`
	SecurityGroups         []any `json:"SecurityGroups,omitempty"`
	LoadBalancerAttributes []any `json:"LoadBalancerAttributes,omitempty"`
	Tags                   []any `json:"Tags,omitempty"`
}

// ResourceType returns "AWS::ElasticLoadBalancingV2::LoadBalancer".
func (LoadBalancer) ResourceType() string { return "AWS::ElasticLoadBalancingV2::LoadBalancer" }

// LoadBalancer_LoadBalancerAttribute is a key/value load balancer attribute.
type LoadBalancer_LoadBalancerAttribute struct {
	Key   any `json:"Key,omitempty"`
	Value any `json:"Value,omitempty"`
}

// Listener is AWS::ElasticLoadBalancingV2::Listener.
type Listener struct {
	LoadBalancerArn any   `json:"LoadBalancerArn,omitempty"`
	Port            int   `json:"Port,omitempty"`
	Protocol        any   `json:"Protocol,omitempty"`
	DefaultActions  []any `json:"DefaultActions,omitempty"`
}

// ResourceType returns "AWS::ElasticLoadBalancingV2::Listener".
func (Listener) ResourceType() string { return "AWS::ElasticLoadBalancingV2::Listener" }

// Listener_Action is a listener default action.
type Listener_Action struct {
	Type           any `json:"Type,omitempty"`
	TargetGroupArn any `json:"TargetGroupArn,omitempty"`
}

// TargetGroup is AWS::ElasticLoadBalancingV2::TargetGroup.
type TargetGroup struct {
	Port                  int   `json:"Port,omitempty"`
	Protocol              any   `json:"Protocol,omitempty"`
	TargetType            any   `json:"TargetType,omitempty"`
	VpcId                 any   `json:"VpcId,omitempty"`
	HealthCheckPath       any   `json:"HealthCheckPath,omitempty"`
	TargetGroupAttributes []any `json:"TargetGroupAttributes,omitempty"`
	Tags                  []any `json:"Tags,omitempty"`
}

// ResourceType returns "AWS::ElasticLoadBalancingV2::TargetGroup".
func (TargetGroup) ResourceType() string { return "AWS::ElasticLoadBalancingV2::TargetGroup" }

// TargetGroup_TargetGroupAttribute is a key/value target group attribute.
type TargetGroup_TargetGroupAttribute struct {
	Key   any `json:"Key,omitempty"`
	Value any `json:"Value,omitempty"`
}
