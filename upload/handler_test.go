package upload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUploadRequestHappyPath(t *testing.T) {
	body := requestUploadBody{
		FileName:    "model.ifc",
		FileSize:    1048576,
		ContentType: "application/x-step",
	}

	assert.NoError(t, validateUploadRequest(body, 100))
}

func TestValidateUploadRequestRejectsWrongExtension(t *testing.T) {
	body := requestUploadBody{
		FileName:    "model.pdf",
		FileSize:    1024,
		ContentType: "application/x-step",
	}

	err := validateUploadRequest(body, 100)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation error")
}

func TestValidateUploadRequestRejectsOversizeFile(t *testing.T) {
	body := requestUploadBody{
		FileName:    "model.ifc",
		FileSize:    200 * 1024 * 1024,
		ContentType: "application/x-step",
	}

	assert.Error(t, validateUploadRequest(body, 100))
}

func TestValidateUploadRequestRejectsUnsupportedContentType(t *testing.T) {
	body := requestUploadBody{
		FileName:    "model.ifc",
		FileSize:    1024,
		ContentType: "application/pdf",
	}

	assert.Error(t, validateUploadRequest(body, 100))
}

func TestGenerateKeyShape(t *testing.T) {
	key := generateKey("model.ifc")

	parts := strings.SplitN(key, "-", 3)
	if len(parts) != 3 {
		t.Fatalf("expected key of the form {unix_ms}-{rand}-{fileName}, got %q", key)
	}
	assert.True(t, strings.HasSuffix(key, "-model.ifc"))
}
