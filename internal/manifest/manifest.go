// Package manifest reads and writes imagedefinitions.json, the file the
// build hands to the ECS deploy action.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// FileName is the artifact file the deploy action reads.
const FileName = "imagedefinitions.json"

// ErrInvalid is returned for manifests the deploy action would reject.
var ErrInvalid = errors.New("invalid image definitions")

// Entry maps a container name to an image URI.
type Entry struct {
	Name     string `json:"name"`
	ImageURI string `json:"imageUri"`
}

// New returns the single-entry manifest for a container.
func New(containerName, imageURI string) []Entry {
	return []Entry{{Name: containerName, ImageURI: imageURI}}
}

// Encode serializes a manifest.
func Encode(entries []Entry) ([]byte, error) {
	return json.Marshal(entries)
}

// Decode parses a manifest.
func Decode(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return entries, nil
}

// Read loads and validates a manifest file against a container name.
func Read(path, containerName string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, fmt.Errorf("reading %s: %w", path, err)
	}
	entries, err := Decode(data)
	if err != nil {
		return Entry{}, err
	}
	if err := Validate(entries, containerName); err != nil {
		return Entry{}, err
	}
	return entries[0], nil
}

// Validate checks that the manifest has exactly one entry naming
// containerName with a non-empty image URI.
func Validate(entries []Entry, containerName string) error {
	if len(entries) != 1 {
		return fmt.Errorf("%w: want exactly 1 entry, got %d", ErrInvalid, len(entries))
	}
	e := entries[0]
	if e.ImageURI == "" {
		return fmt.Errorf("%w: empty imageUri", ErrInvalid)
	}
	if e.Name != containerName {
		return fmt.Errorf("%w: container name %q does not match task container %q", ErrInvalid, e.Name, containerName)
	}
	return nil
}

// ImageURI joins a repository URI and a tag.
func ImageURI(repositoryURI, tag string) string {
	return repositoryURI + ":" + tag
}

// ShortTag returns the first seven characters of a source revision.
func ShortTag(revision string) string {
	if len(revision) > 7 {
		return revision[:7]
	}
	return revision
}

// WriteCommand is the shell command that writes the manifest from the build
// environment's $ECR_REPOSITORY_URI and $IMAGE_TAG.
func WriteCommand(containerName string) string {
	return fmt.Sprintf(`printf '[{"name":"%s","imageUri":"%%s"}]' $ECR_REPOSITORY_URI:$IMAGE_TAG > %s`, containerName, FileName)
}

var writeCommandPattern = regexp.MustCompile(`^printf '\[\{"name":"([^"]+)","imageUri":"%s"\}\]' (\S+) > (\S+)$`)

// ParseWriteCommand recovers the container name a WriteCommand emits and
// the file it writes to.
func ParseWriteCommand(cmd string) (containerName, file string, ok bool) {
	m := writeCommandPattern.FindStringSubmatch(strings.TrimSpace(cmd))
	if m == nil {
		return "", "", false
	}
	return m[1], m[3], true
}
