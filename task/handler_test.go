package task

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ifcatlas/api/internal/broker"
)

func TestTaskErrorMessageFromTraceback(t *testing.T) {
	tb := "Traceback (most recent call last): ..."
	meta := broker.TaskMeta{Status: broker.StatusFailure, Traceback: &tb}

	assert.Equal(t, tb, taskErrorMessage(meta))
}

func TestTaskErrorMessageFromResultError(t *testing.T) {
	meta := broker.TaskMeta{
		Status: broker.StatusSuccess,
		Result: map[string]interface{}{"error": "unsupported IFC schema"},
	}

	assert.Equal(t, "unsupported IFC schema", taskErrorMessage(meta))
}

func TestTaskErrorMessageEmptyWhenNoError(t *testing.T) {
	meta := broker.TaskMeta{Status: broker.StatusSuccess, Result: map[string]interface{}{"buildingId": "b1"}}

	assert.Equal(t, "", taskErrorMessage(meta))
}

func TestTaskErrorMessageFailureWithoutTraceback(t *testing.T) {
	meta := broker.TaskMeta{Status: broker.StatusFailure}

	assert.Equal(t, "", taskErrorMessage(meta))
}
