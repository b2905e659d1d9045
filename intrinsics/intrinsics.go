// Package intrinsics provides the CloudFormation intrinsic functions used to
// wire resources of the DevSecOps stack together.
//
// The value types are re-exported from cloudformation-schema-go:
//
//	Ref{"Cluster"}                         → {"Ref": "Cluster"}
//	GetAtt{"LoadBalancer", "DNSName"}      → {"Fn::GetAtt": ["LoadBalancer", "DNSName"]}
//	Sub{"${AWS::StackName}-pipeline"}      → {"Fn::Sub": "${AWS::StackName}-pipeline"}
package intrinsics

import (
	"github.com/lex00/cloudformation-schema-go/intrinsics"
)

type (
	// Ref is the Ref intrinsic function.
	Ref = intrinsics.Ref

	// GetAtt is the Fn::GetAtt intrinsic function.
	GetAtt = intrinsics.GetAtt

	// Sub is the Fn::Sub intrinsic function.
	Sub = intrinsics.Sub

	// SubWithMap is Fn::Sub with a variable map.
	SubWithMap = intrinsics.SubWithMap

	// Join is the Fn::Join intrinsic function.
	Join = intrinsics.Join

	// Select is the Fn::Select intrinsic function.
	Select = intrinsics.Select

	// GetAZs is the Fn::GetAZs intrinsic function.
	GetAZs = intrinsics.GetAZs

	// Split is the Fn::Split intrinsic function.
	Split = intrinsics.Split

	// ImportValue is the Fn::ImportValue intrinsic function.
	ImportValue = intrinsics.ImportValue

	// Tag is a resource tag.
	Tag = intrinsics.Tag
)

// Param returns a Ref to a template parameter.
var Param = intrinsics.Param

// Pseudo parameters, resolved by CloudFormation per stack.
var (
	AWS_ACCOUNT_ID = intrinsics.AWS_ACCOUNT_ID
	AWS_PARTITION  = intrinsics.AWS_PARTITION
	AWS_REGION     = intrinsics.AWS_REGION
	AWS_STACK_NAME = intrinsics.AWS_STACK_NAME
	AWS_URL_SUFFIX = intrinsics.AWS_URL_SUFFIX
	AWS_NO_VALUE   = intrinsics.AWS_NO_VALUE
)

// IsPseudo reports whether a Ref target names a pseudo parameter
// (AWS::Region, AWS::StackName, ...) rather than a logical ID.
func IsPseudo(name string) bool {
	return len(name) > 5 && name[:5] == "AWS::"
}
