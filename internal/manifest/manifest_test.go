package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const container = "cs-cdk-devsecops-container"

func TestEncode(t *testing.T) {
	data, err := Encode(New(container, "123.dkr.ecr.us-east-1.amazonaws.com/repo:abcdef1"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"cs-cdk-devsecops-container","imageUri":"123.dkr.ecr.us-east-1.amazonaws.com/repo:abcdef1"}]`, string(data))
}

func TestShortTagManifest(t *testing.T) {
	uri := ImageURI("123.dkr.ecr.us-east-1.amazonaws.com/repo", ShortTag("abcdef1234567890"))
	entries := New(container, uri)

	require.NoError(t, Validate(entries, container))
	assert.True(t, strings.HasSuffix(entries[0].ImageURI, ":abcdef1"))
	assert.Equal(t, container, entries[0].Name)
	assert.Equal(t, "abc", ShortTag("abc"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		want    string
	}{
		{"empty", nil, "exactly 1"},
		{"two", []Entry{{Name: container, ImageURI: "a"}, {Name: container, ImageURI: "b"}}, "exactly 1"},
		{"wrong name", New("web", "repo:1"), "does not match"},
		{"no uri", New(container, ""), "empty imageUri"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.entries, container)
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"cs-cdk-devsecops-container","imageUri":"repo:abcdef1"}]`), 0o644))

	e, err := Read(path, container)
	require.NoError(t, err)
	assert.Equal(t, "repo:abcdef1", e.ImageURI)

	require.NoError(t, os.WriteFile(path, []byte(`{"name":"x"}`), 0o644))
	_, err = Read(path, container)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestWriteCommandRoundTrip(t *testing.T) {
	cmd := WriteCommand(container)
	assert.Equal(t, `printf '[{"name":"cs-cdk-devsecops-container","imageUri":"%s"}]' $ECR_REPOSITORY_URI:$IMAGE_TAG > imagedefinitions.json`, cmd)

	name, file, ok := ParseWriteCommand(cmd)
	require.True(t, ok)
	assert.Equal(t, container, name)
	assert.Equal(t, FileName, file)

	_, _, ok = ParseWriteCommand("echo hi")
	assert.False(t, ok)
}
