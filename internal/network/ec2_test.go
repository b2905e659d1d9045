package network

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/ecs-devsecops-go/internal/config"
)

type fakeEC2 struct {
	vpcs        []ec2types.Vpc
	vpcErr      error
	subnetPages [][]ec2types.Subnet
	tables      []ec2types.RouteTable
	subnetCalls int
}

func (f *fakeEC2) DescribeVpcs(_ context.Context, in *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	if f.vpcErr != nil {
		return nil, f.vpcErr
	}
	return &ec2.DescribeVpcsOutput{Vpcs: f.vpcs}, nil
}

func (f *fakeEC2) DescribeSubnets(_ context.Context, in *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	page := f.subnetCalls
	f.subnetCalls++
	out := &ec2.DescribeSubnetsOutput{Subnets: f.subnetPages[page]}
	if page+1 < len(f.subnetPages) {
		out.NextToken = aws.String("next")
	}
	return out, nil
}

func (f *fakeEC2) DescribeRouteTables(_ context.Context, _ *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	return &ec2.DescribeRouteTablesOutput{RouteTables: f.tables}, nil
}

func subnet(id, az string) ec2types.Subnet {
	return ec2types.Subnet{SubnetId: aws.String(id), AvailabilityZone: aws.String(az), CidrBlock: aws.String("10.0.0.0/24")}
}

func TestEC2Resolver_Resolve(t *testing.T) {
	fake := &fakeEC2{
		vpcs: []ec2types.Vpc{{VpcId: aws.String("vpc-0123abcd"), CidrBlock: aws.String("10.0.0.0/16"), OwnerId: aws.String("123456789012")}},
		subnetPages: [][]ec2types.Subnet{
			{subnet("subnet-b", "us-east-1b"), subnet("subnet-a", "us-east-1a")},
			{subnet("subnet-c", "us-east-1a")},
		},
		tables: []ec2types.RouteTable{
			{
				RouteTableId: aws.String("rtb-public"),
				Associations: []ec2types.RouteTableAssociation{
					{SubnetId: aws.String("subnet-a")},
					{SubnetId: aws.String("subnet-b")},
				},
				Routes: []ec2types.Route{{GatewayId: aws.String("igw-123"), DestinationCidrBlock: aws.String("0.0.0.0/0")}},
			},
			{
				RouteTableId: aws.String("rtb-main"),
				Associations: []ec2types.RouteTableAssociation{{Main: aws.Bool(true)}},
				Routes:       []ec2types.Route{{GatewayId: aws.String("local")}},
			},
		},
	}

	r := NewEC2ResolverWithClient(fake, "us-east-1", nil)
	vpc, err := r.Resolve(context.Background(), "vpc-0123abcd")
	require.NoError(t, err)

	assert.Equal(t, "vpc-0123abcd", vpc.ID)
	assert.Equal(t, "123456789012", vpc.Account)
	assert.Equal(t, 2, fake.subnetCalls)
	require.Len(t, vpc.Subnets, 3)
	assert.Equal(t, "subnet-a", vpc.Subnets[0].ID)
	assert.True(t, vpc.Subnets[0].Public)
	assert.Equal(t, "subnet-c", vpc.Subnets[1].ID)
	assert.False(t, vpc.Subnets[1].Public)
	assert.Equal(t, "rtb-main", vpc.Subnets[1].RouteTableID)
	assert.True(t, vpc.Subnets[2].Public)
}

func TestEC2Resolver_NotFound(t *testing.T) {
	fake := &fakeEC2{vpcErr: &smithy.GenericAPIError{Code: "InvalidVpcID.NotFound", Message: "nope"}}
	r := NewEC2ResolverWithClient(fake, "us-east-1", nil)

	_, err := r.Resolve(context.Background(), "vpc-missing")
	assert.ErrorIs(t, err, ErrVPCNotFound)
}

func TestEC2Resolver_EmptyResult(t *testing.T) {
	r := NewEC2ResolverWithClient(&fakeEC2{}, "us-east-1", nil)
	_, err := r.Resolve(context.Background(), "vpc-missing")
	assert.ErrorIs(t, err, ErrVPCNotFound)
}

func TestNewEC2Resolver_RequiresRegionAndCredentials(t *testing.T) {
	_, err := NewEC2Resolver(config.AWSConfig{AccessKeyID: "a", SecretAccessKey: "b"}, "", nil)
	assert.ErrorContains(t, err, "region")

	_, err = NewEC2Resolver(config.AWSConfig{}, "us-east-1", nil)
	assert.ErrorContains(t, err, "credentials")

	r, err := NewEC2Resolver(config.AWSConfig{AccessKeyID: "a", SecretAccessKey: "b"}, "us-east-1", nil)
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestEC2Resolver_ClassifiesEgress(t *testing.T) {
	defaultRoute := func(r ec2types.Route) ec2types.Route {
		r.DestinationCidrBlock = aws.String("0.0.0.0/0")
		return r
	}
	table := func(id, subnetID string, routes ...ec2types.Route) ec2types.RouteTable {
		return ec2types.RouteTable{
			RouteTableId: aws.String(id),
			Associations: []ec2types.RouteTableAssociation{{SubnetId: aws.String(subnetID)}},
			Routes:       append([]ec2types.Route{{GatewayId: aws.String("local"), DestinationCidrBlock: aws.String("10.0.0.0/16")}}, routes...),
		}
	}
	fake := &fakeEC2{
		vpcs: []ec2types.Vpc{{VpcId: aws.String("vpc-0123abcd")}},
		subnetPages: [][]ec2types.Subnet{{
			subnet("subnet-pub-a", "us-east-1a"),
			subnet("subnet-pub-b", "us-east-1b"),
			subnet("subnet-nat-a", "us-east-1a"),
			subnet("subnet-tgw-b", "us-east-1b"),
			subnet("subnet-iso-a", "us-east-1a"),
			subnet("subnet-dead-b", "us-east-1b"),
		}},
		tables: []ec2types.RouteTable{
			table("rtb-pub-a", "subnet-pub-a", defaultRoute(ec2types.Route{GatewayId: aws.String("igw-1")})),
			table("rtb-pub-b", "subnet-pub-b", defaultRoute(ec2types.Route{GatewayId: aws.String("igw-1")})),
			table("rtb-nat-a", "subnet-nat-a", defaultRoute(ec2types.Route{NatGatewayId: aws.String("nat-1")})),
			table("rtb-tgw-b", "subnet-tgw-b", defaultRoute(ec2types.Route{TransitGatewayId: aws.String("tgw-1")})),
			table("rtb-iso-a", "subnet-iso-a"),
			table("rtb-dead-b", "subnet-dead-b", defaultRoute(ec2types.Route{
				NatGatewayId: aws.String("nat-gone"),
				State:        ec2types.RouteStateBlackhole,
			})),
		},
	}

	vpc, err := NewEC2ResolverWithClient(fake, "us-east-1", nil).Resolve(context.Background(), "vpc-0123abcd")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"subnet-nat-a", "subnet-tgw-b"}, ids(vpc.EgressSubnets()))
	assert.ElementsMatch(t, []string{"subnet-iso-a", "subnet-dead-b"}, ids(vpc.IsolatedSubnets()))

	p, err := vpc.Placement()
	require.NoError(t, err)
	assert.NotContains(t, p.TaskSubnets, "subnet-iso-a")
	assert.ElementsMatch(t, []string{"subnet-nat-a", "subnet-tgw-b"}, p.TaskSubnets)
}
