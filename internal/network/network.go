// Package network resolves the existing VPC the stack is deployed into.
//
// A lookup is read-only. Results are cached in a context file so that
// synthesis can be repeated without credentials.
package network

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrVPCNotFound is returned when the VPC does not exist.
	ErrVPCNotFound = errors.New("vpc not found")
	// ErrInsufficientSubnets is returned when the VPC cannot host an
	// internet-facing load balancer.
	ErrInsufficientSubnets = errors.New("insufficient public subnets")
	// ErrNotCached is returned when offline resolution misses the cache.
	ErrNotCached = errors.New("vpc not in context cache")
)

// MinLoadBalancerAZs is the number of availability zones an application
// load balancer must span.
const MinLoadBalancerAZs = 2

// Subnet is one subnet of the VPC.
type Subnet struct {
	ID               string `json:"subnetId"`
	AvailabilityZone string `json:"availabilityZone"`
	CIDR             string `json:"cidr,omitempty"`
	RouteTableID     string `json:"routeTableId,omitempty"`
	Public           bool   `json:"public"`
	// Egress marks a private subnet whose default route leaves the VPC
	// through a NAT gateway, NAT instance or transit gateway.
	Egress bool `json:"egress,omitempty"`
}

// VPC is the resolved network.
type VPC struct {
	ID      string   `json:"vpcId"`
	CIDR    string   `json:"vpcCidrBlock,omitempty"`
	Account string   `json:"ownerId,omitempty"`
	Region  string   `json:"region,omitempty"`
	Subnets []Subnet `json:"subnets"`
}

// Resolver resolves a VPC by identifier.
type Resolver interface {
	Resolve(ctx context.Context, vpcID string) (*VPC, error)
}

// PublicSubnets returns the subnets routed through an internet gateway.
func (v *VPC) PublicSubnets() []Subnet {
	return v.filter(func(s Subnet) bool { return s.Public })
}

// PrivateSubnets returns the subnets without an internet gateway route.
func (v *VPC) PrivateSubnets() []Subnet {
	return v.filter(func(s Subnet) bool { return !s.Public })
}

// EgressSubnets returns the private subnets with outbound internet access.
func (v *VPC) EgressSubnets() []Subnet {
	return v.filter(func(s Subnet) bool { return !s.Public && s.Egress })
}

// IsolatedSubnets returns the private subnets with no route out of the VPC.
func (v *VPC) IsolatedSubnets() []Subnet {
	return v.filter(func(s Subnet) bool { return !s.Public && !s.Egress })
}

func (v *VPC) filter(keep func(Subnet) bool) []Subnet {
	var out []Subnet
	for _, s := range v.Subnets {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// Placement says where the load balancer and the tasks go.
type Placement struct {
	LoadBalancerSubnets []string
	TaskSubnets         []string
	// AssignPublicIP is set when tasks run in public subnets and need a
	// public address to reach the registry.
	AssignPublicIP bool
	// IsolatedTasks is set when tasks run in subnets with no route out of
	// the VPC; pulling images and shipping logs then needs VPC endpoints.
	IsolatedTasks bool
}

// Placement picks subnets for an internet-facing load balancer and its
// tasks. Tasks go to private subnets with egress, then isolated private
// subnets, then the public ones.
func (v *VPC) Placement() (Placement, error) {
	public := v.PublicSubnets()
	if n := countAZs(public); n < MinLoadBalancerAZs {
		return Placement{}, fmt.Errorf("%w: %s has public subnets in %d availability zone(s), need %d",
			ErrInsufficientSubnets, v.ID, n, MinLoadBalancerAZs)
	}

	p := Placement{LoadBalancerSubnets: ids(public)}
	if egress := v.EgressSubnets(); len(egress) > 0 {
		p.TaskSubnets = ids(egress)
	} else if isolated := v.IsolatedSubnets(); len(isolated) > 0 {
		p.TaskSubnets = ids(isolated)
		p.IsolatedTasks = true
	} else {
		p.TaskSubnets = p.LoadBalancerSubnets
		p.AssignPublicIP = true
	}
	return p, nil
}

// AvailabilityZones returns the distinct zones of the VPC's subnets.
func (v *VPC) AvailabilityZones() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range v.Subnets {
		if !seen[s.AvailabilityZone] {
			seen[s.AvailabilityZone] = true
			out = append(out, s.AvailabilityZone)
		}
	}
	sort.Strings(out)
	return out
}

func countAZs(subnets []Subnet) int {
	seen := make(map[string]bool)
	for _, s := range subnets {
		seen[s.AvailabilityZone] = true
	}
	return len(seen)
}

func ids(subnets []Subnet) []string {
	out := make([]string, len(subnets))
	for i, s := range subnets {
		out[i] = s.ID
	}
	return out
}

func sortSubnets(subnets []Subnet) {
	sort.Slice(subnets, func(i, j int) bool {
		if subnets[i].AvailabilityZone != subnets[j].AvailabilityZone {
			return subnets[i].AvailabilityZone < subnets[j].AvailabilityZone
		}
		return subnets[i].ID < subnets[j].ID
	})
}
