// Package codecommit provides AWS::CodeCommit resource types.
package codecommit

// Repository is AWS::CodeCommit::Repository.
type Repository struct {
	RepositoryName        any   `json:"RepositoryName,omitempty"`
	RepositoryDescription any   `json:"RepositoryDescription,omitempty"`
	Tags                  []any `json:"Tags,omitempty"`
}

// ResourceType returns "AWS::CodeCommit::Repository".
func (Repository) ResourceType() string { return "AWS::CodeCommit::Repository" }
