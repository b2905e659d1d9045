// Package ecr provides AWS::ECR resource types.
package ecr

// Repository is AWS::ECR::Repository.
type Repository struct {
	RepositoryName             any                                    `json:"RepositoryName,omitempty"`
	ImageTagMutability         any                                    `json:"ImageTagMutability,omitempty"`
	ImageScanningConfiguration *Repository_ImageScanningConfiguration `json:"ImageScanningConfiguration,omitempty"`
	EmptyOnDelete              bool                                   `json:"EmptyOnDelete,omitempty"`
	Tags                       []any                                  `json:"Tags,omitempty"`
}

// ResourceType returns "AWS::ECR::Repository".
func (Repository) ResourceType() string { return "AWS::ECR::Repository" }

// Repository_ImageScanningConfiguration toggles registry-side scanning.
type Repository_ImageScanningConfiguration struct {
	ScanOnPush bool `json:"ScanOnPush,omitempty"`
}
