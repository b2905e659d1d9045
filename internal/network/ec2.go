package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	smithy "github.com/aws/smithy-go"

	"github.com/lex00/ecs-devsecops-go/internal/config"
)

// EC2API is the subset of the EC2 client used for VPC lookups.
type EC2API interface {
	DescribeVpcs(ctx context.Context, in *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
	DescribeSubnets(ctx context.Context, in *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	DescribeRouteTables(ctx context.Context, in *ec2.DescribeRouteTablesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error)
}

// EC2Resolver looks VPCs up through the EC2 API.
type EC2Resolver struct {
	client EC2API
	region string
	logger *slog.Logger
}

// NewEC2Resolver creates a resolver using static credentials.
func NewEC2Resolver(creds config.AWSConfig, region string, logger *slog.Logger) (*EC2Resolver, error) {
	if region == "" {
		return nil, errors.New("vpc lookup needs a region: set CDK_DEFAULT_REGION or --context region=...")
	}
	if !creds.HasCredentials() {
		return nil, errors.New("vpc lookup needs credentials: set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY")
	}
	client := ec2.New(ec2.Options{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
	})
	return NewEC2ResolverWithClient(client, region, logger), nil
}

// NewEC2ResolverWithClient creates a resolver over an existing client.
func NewEC2ResolverWithClient(client EC2API, region string, logger *slog.Logger) *EC2Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &EC2Resolver{
		client: client,
		region: region,
		logger: logger.With("component", "vpc-lookup", "region", region),
	}
}

// Resolve describes the VPC, its subnets and their route tables.
func (r *EC2Resolver) Resolve(ctx context.Context, vpcID string) (*VPC, error) {
	r.logger.Debug("describing vpc", "vpc_id", vpcID)

	vpcOut, err := r.client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{vpcID}})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidVpcID.NotFound" {
			return nil, fmt.Errorf("%w: %s", ErrVPCNotFound, vpcID)
		}
		return nil, fmt.Errorf("failed to describe vpc %s: %w", vpcID, err)
	}
	if len(vpcOut.Vpcs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrVPCNotFound, vpcID)
	}

	vpc := &VPC{
		ID:      aws.ToString(vpcOut.Vpcs[0].VpcId),
		CIDR:    aws.ToString(vpcOut.Vpcs[0].CidrBlock),
		Account: aws.ToString(vpcOut.Vpcs[0].OwnerId),
		Region:  r.region,
	}

	subnets, err := r.subnets(ctx, vpcID)
	if err != nil {
		return nil, err
	}
	tables, err := r.routeTables(ctx, vpcID)
	if err != nil {
		return nil, err
	}

	classify(subnets, tables)
	sortSubnets(subnets)
	vpc.Subnets = subnets

	r.logger.Info("resolved vpc",
		"vpc_id", vpc.ID,
		"subnets", len(vpc.Subnets),
		"public", len(vpc.PublicSubnets()),
	)
	return vpc, nil
}

func vpcFilter(vpcID string) []ec2types.Filter {
	return []ec2types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}}
}

func (r *EC2Resolver) subnets(ctx context.Context, vpcID string) ([]Subnet, error) {
	var out []Subnet
	pages := ec2.NewDescribeSubnetsPaginator(r.client, &ec2.DescribeSubnetsInput{Filters: vpcFilter(vpcID)})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe subnets of %s: %w", vpcID, err)
		}
		for _, s := range page.Subnets {
			out = append(out, Subnet{
				ID:               aws.ToString(s.SubnetId),
				AvailabilityZone: aws.ToString(s.AvailabilityZone),
				CIDR:             aws.ToString(s.CidrBlock),
			})
		}
	}
	return out, nil
}

func (r *EC2Resolver) routeTables(ctx context.Context, vpcID string) ([]ec2types.RouteTable, error) {
	var out []ec2types.RouteTable
	pages := ec2.NewDescribeRouteTablesPaginator(r.client, &ec2.DescribeRouteTablesInput{Filters: vpcFilter(vpcID)})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe route tables of %s: %w", vpcID, err)
		}
		out = append(out, page.RouteTables...)
	}
	return out, nil
}

type routing struct {
	public bool
	egress bool
}

// classify marks subnets public when their route table, explicit or main,
// has a route through an internet gateway, and private subnets as having
// egress when their default route goes through NAT or a transit gateway.
func classify(subnets []Subnet, tables []ec2types.RouteTable) {
	var mainID string
	explicit := make(map[string]string)
	routes := make(map[string]routing)

	for _, t := range tables {
		id := aws.ToString(t.RouteTableId)
		routes[id] = routing{public: hasInternetRoute(t), egress: hasEgressRoute(t)}
		for _, a := range t.Associations {
			if aws.ToBool(a.Main) {
				mainID = id
				continue
			}
			if sid := aws.ToString(a.SubnetId); sid != "" {
				explicit[sid] = id
			}
		}
	}

	for i := range subnets {
		id, ok := explicit[subnets[i].ID]
		if !ok {
			id = mainID
		}
		rt := routes[id]
		subnets[i].RouteTableID = id
		subnets[i].Public = rt.public
		subnets[i].Egress = !rt.public && rt.egress
	}
}

func hasInternetRoute(t ec2types.RouteTable) bool {
	for _, route := range t.Routes {
		if strings.HasPrefix(aws.ToString(route.GatewayId), "igw-") {
			return true
		}
	}
	return false
}

// hasEgressRoute reports a default route to a NAT gateway, a NAT
// instance, a transit gateway or an egress-only internet gateway.
func hasEgressRoute(t ec2types.RouteTable) bool {
	for _, route := range t.Routes {
		if route.State == ec2types.RouteStateBlackhole {
			continue
		}
		v4 := aws.ToString(route.DestinationCidrBlock) == "0.0.0.0/0"
		v6 := aws.ToString(route.DestinationIpv6CidrBlock) == "::/0"
		if !v4 && !v6 {
			continue
		}
		switch {
		case aws.ToString(route.NatGatewayId) != "",
			aws.ToString(route.TransitGatewayId) != "",
			aws.ToString(route.InstanceId) != "",
			aws.ToString(route.EgressOnlyInternetGatewayId) != "":
			return true
		}
	}
	return false
}
