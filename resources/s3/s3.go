// Package s3 provides AWS::S3 resource types.
package s3

// Bucket is AWS::S3::Bucket.
type Bucket struct {
	BucketName                     any                                    `json:"BucketName,omitempty"`
	BucketEncryption               *Bucket_BucketEncryption               `json:"BucketEncryption,omitempty"`
	PublicAccessBlockConfiguration *Bucket_PublicAccessBlockConfiguration `json:"PublicAccessBlockConfiguration,omitempty"`
	Tags                           []any                                  `json:"Tags,omitempty"`
}

// ResourceType returns "AWS::S3::Bucket".
func (Bucket) ResourceType() string { return "AWS::S3::Bucket" }

// Bucket_BucketEncryption holds default encryption rules.
type Bucket_BucketEncryption struct {
	ServerSideEncryptionConfiguration []any `json:"ServerSideEncryptionConfiguration,omitempty"`
}

// Bucket_ServerSideEncryptionRule is one encryption rule.
type Bucket_ServerSideEncryptionRule struct {
	ServerSideEncryptionByDefault *Bucket_ServerSideEncryptionByDefault `json:"ServerSideEncryptionByDefault,omitempty"`
}

// Bucket_ServerSideEncryptionByDefault picks the algorithm.
type Bucket_ServerSideEncryptionByDefault struct {
	SSEAlgorithm any `json:"SSEAlgorithm,omitempty"`
}

// Bucket_PublicAccessBlockConfiguration blocks public access.
type Bucket_PublicAccessBlockConfiguration struct {
	BlockPublicAcls       bool `json:"BlockPublicAcls,omitempty"`
	BlockPublicPolicy     bool `json:"BlockPublicPolicy,omitempty"`
	IgnorePublicAcls      bool `json:"IgnorePublicAcls,omitempty"`
	RestrictPublicBuckets bool `json:"RestrictPublicBuckets,omitempty"`
}

// BucketPolicy is AWS::S3::BucketPolicy.
type BucketPolicy struct {
	Bucket         any `json:"Bucket,omitempty"`
	PolicyDocument any `json:"PolicyDocument,omitempty"`
}

// ResourceType returns "AWS::S3::BucketPolicy".
func (BucketPolicy) ResourceType() string { return "AWS::S3::BucketPolicy" }
