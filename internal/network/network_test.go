package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleVPC() *VPC {
	return &VPC{
		ID: "vpc-0123abcd",
		Subnets: []Subnet{
			{ID: "subnet-pub-a", AvailabilityZone: "us-east-1a", Public: true},
			{ID: "subnet-pub-b", AvailabilityZone: "us-east-1b", Public: true},
			{ID: "subnet-priv-a", AvailabilityZone: "us-east-1a"},
			{ID: "subnet-priv-b", AvailabilityZone: "us-east-1b"},
		},
	}
}

func TestPlacement_PrivateTasks(t *testing.T) {
	p, err := sampleVPC().Placement()
	require.NoError(t, err)
	assert.Equal(t, []string{"subnet-pub-a", "subnet-pub-b"}, p.LoadBalancerSubnets)
	assert.Equal(t, []string{"subnet-priv-a", "subnet-priv-b"}, p.TaskSubnets)
	assert.False(t, p.AssignPublicIP)
}

func TestPlacement_PublicOnlyVPC(t *testing.T) {
	v := &VPC{ID: "vpc-1", Subnets: []Subnet{
		{ID: "subnet-a", AvailabilityZone: "us-east-1a", Public: true},
		{ID: "subnet-b", AvailabilityZone: "us-east-1b", Public: true},
	}}
	p, err := v.Placement()
	require.NoError(t, err)
	assert.Equal(t, p.LoadBalancerSubnets, p.TaskSubnets)
	assert.True(t, p.AssignPublicIP)
}

func TestPlacement_SingleAZ(t *testing.T) {
	v := &VPC{ID: "vpc-1", Subnets: []Subnet{
		{ID: "subnet-a", AvailabilityZone: "us-east-1a", Public: true},
		{ID: "subnet-a2", AvailabilityZone: "us-east-1a", Public: true},
	}}
	_, err := v.Placement()
	require.ErrorIs(t, err, ErrInsufficientSubnets)
	assert.Contains(t, err.Error(), "1 availability zone")
}

func TestAvailabilityZones(t *testing.T) {
	assert.Equal(t, []string{"us-east-1a", "us-east-1b"}, sampleVPC().AvailabilityZones())
}

func TestPlacement_PrefersEgressSubnets(t *testing.T) {
	v := &VPC{ID: "vpc-1", Subnets: []Subnet{
		{ID: "subnet-pub-a", AvailabilityZone: "us-east-1a", Public: true},
		{ID: "subnet-pub-b", AvailabilityZone: "us-east-1b", Public: true},
		{ID: "subnet-nat-a", AvailabilityZone: "us-east-1a", Egress: true},
		{ID: "subnet-iso-a", AvailabilityZone: "us-east-1a"},
	}}
	p, err := v.Placement()
	require.NoError(t, err)
	assert.Equal(t, []string{"subnet-nat-a"}, p.TaskSubnets)
	assert.False(t, p.IsolatedTasks)
	assert.False(t, p.AssignPublicIP)
}

func TestPlacement_IsolatedFallback(t *testing.T) {
	p, err := sampleVPC().Placement()
	require.NoError(t, err)
	assert.Equal(t, []string{"subnet-priv-a", "subnet-priv-b"}, p.TaskSubnets)
	assert.True(t, p.IsolatedTasks)
}

func TestSubnetSelectors(t *testing.T) {
	v := &VPC{Subnets: []Subnet{
		{ID: "pub", Public: true},
		{ID: "nat", Egress: true},
		{ID: "iso"},
	}}
	assert.Equal(t, []string{"pub"}, ids(v.PublicSubnets()))
	assert.Equal(t, []string{"nat", "iso"}, ids(v.PrivateSubnets()))
	assert.Equal(t, []string{"nat"}, ids(v.EgressSubnets()))
	assert.Equal(t, []string{"iso"}, ids(v.IsolatedSubnets()))
}
