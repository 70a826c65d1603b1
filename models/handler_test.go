package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilenamePatternAcceptsValidNames(t *testing.T) {
	assert.True(t, filenamePattern.MatchString("ab12-34cd.glb"))
	assert.True(t, filenamePattern.MatchString("deadbeef.gltf"))
}

func TestFilenamePatternRejectsTraversalAndBadExtensions(t *testing.T) {
	assert.False(t, filenamePattern.MatchString("../../etc/passwd.glb"))
	assert.False(t, filenamePattern.MatchString("model.exe"))
	assert.False(t, filenamePattern.MatchString("UPPER-case.glb"))
}

func TestContentTypeForExtension(t *testing.T) {
	assert.Equal(t, "model/gltf-binary", contentTypeFor("deadbeef.glb"))
	assert.Equal(t, "model/gltf+json", contentTypeFor("deadbeef.gltf"))
}
