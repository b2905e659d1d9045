package serialize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReferences(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{
			name:  "ref",
			value: map[string]any{"Cluster": map[string]any{"Ref": "Cluster"}},
			want:  []string{"Cluster"},
		},
		{
			name:  "pseudo ref skipped",
			value: map[string]any{"Region": map[string]any{"Ref": "AWS::Region"}},
			want:  []string{},
		},
		{
			name:  "getatt list and dotted",
			value: []any{map[string]any{"Fn::GetAtt": []any{"Role", "Arn"}}, map[string]any{"Fn::GetAtt": "Bucket.Arn"}},
			want:  []string{"Bucket", "Role"},
		},
		{
			name:  "sub placeholders",
			value: map[string]any{"Fn::Sub": "arn:${AWS::Partition}:ecs:${AWS::Region}:${AWS::AccountId}:cluster/${Cluster}/${Repo.Arn}${!Literal}"},
			want:  []string{"Cluster", "Repo"},
		},
		{
			name: "sub with map binds local names",
			value: map[string]any{"Fn::Sub": []any{
				"${Uri}:${Tag}",
				map[string]any{"Uri": map[string]any{"Fn::GetAtt": []any{"ImageRepository", "RepositoryUri"}}},
			}},
			want: []string{"ImageRepository", "Tag"},
		},
		{
			name: "nested and duplicated",
			value: map[string]any{
				"A": []any{map[string]any{"Ref": "X"}, map[string]any{"B": map[string]any{"Ref": "X"}}},
			},
			want: []string{"X"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, References(tt.value))
		})
	}
}

func TestSubPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, SubPlaceholders("${A}-${AWS::StackName}-${B.Attr}"))
	assert.Nil(t, SubPlaceholders("no placeholders"))
	assert.Nil(t, SubPlaceholders("${unterminated"))
}
