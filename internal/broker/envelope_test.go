package broker

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelopeShape(t *testing.T) {
	env, taskID, err := NewEnvelope(ifcTaskName, []interface{}{"file-1", "123-abc-model.ifc"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "utf-8", env.ContentEncoding)
	assert.Equal(t, "application/json", env.ContentType)

	assert.Equal(t, "py", env.Headers.Lang)
	assert.Equal(t, ifcTaskName, env.Headers.Task)
	assert.Equal(t, taskID, env.Headers.ID)
	assert.Equal(t, 0, env.Headers.Retries)
	assert.Nil(t, env.Headers.ETA)
	assert.Nil(t, env.Headers.Expires)
	assert.Nil(t, env.Headers.Group)
	assert.Equal(t, taskID, env.Headers.RootID)
	assert.Nil(t, env.Headers.ParentID)

	assert.Equal(t, taskID, env.Properties.CorrelationID)
	assert.NotEmpty(t, env.Properties.ReplyTo)
	assert.Equal(t, 2, env.Properties.DeliveryMode)
	assert.Equal(t, "", env.Properties.DeliveryInfo.Exchange)
	assert.Equal(t, "celery", env.Properties.DeliveryInfo.RoutingKey)
	assert.Equal(t, 0, env.Properties.Priority)
	assert.Equal(t, "base64", env.Properties.BodyEncoding)
	assert.NotEmpty(t, env.Properties.DeliveryTag)
}

// TestNewEnvelopeBodyRoundTrip asserts the base64 body decodes back to the
// [args, kwargs, embed] triple the external worker fleet expects.
func TestNewEnvelopeBodyRoundTrip(t *testing.T) {
	env, _, err := NewEnvelope(ifcTaskName, []interface{}{"file-1", "s3key"}, nil)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env.Body)
	require.NoError(t, err)

	var payload []interface{}
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.Len(t, payload, 3)

	args, ok := payload[0].([]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"file-1", "s3key"}, args)

	kwargs, ok := payload[1].(map[string]interface{})
	require.True(t, ok)
	assert.Empty(t, kwargs)

	embedded, ok := payload[2].(map[string]interface{})
	require.True(t, ok)
	assert.Nil(t, embedded["callbacks"])
	assert.Nil(t, embedded["errbacks"])
	assert.Nil(t, embedded["chain"])
	assert.Nil(t, embedded["chord"])
}

// TestNewEnvelopeJSONGolden locks the exact field set and key names of the
// serialized envelope — the external worker fleet depends on this shape
// bit-exact.
func TestNewEnvelopeJSONGolden(t *testing.T) {
	env, taskID, err := NewEnvelope(healthTaskName, []interface{}{}, nil)
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var asMap map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &asMap))

	assert.ElementsMatch(t, []string{"body", "content-encoding", "content-type", "headers", "properties"}, keysOf(asMap))

	headers := asMap["headers"].(map[string]interface{})
	assert.ElementsMatch(t,
		[]string{"lang", "task", "id", "retries", "eta", "expires", "group", "root_id", "parent_id"},
		keysOf(headers),
	)
	assert.Equal(t, healthTaskName, headers["task"])
	assert.Equal(t, taskID, headers["id"])

	properties := asMap["properties"].(map[string]interface{})
	assert.ElementsMatch(t,
		[]string{"correlation_id", "reply_to", "delivery_mode", "delivery_info", "priority", "body_encoding", "delivery_tag"},
		keysOf(properties),
	)

	deliveryInfo := properties["delivery_info"].(map[string]interface{})
	assert.ElementsMatch(t, []string{"exchange", "routing_key"}, keysOf(deliveryInfo))
}

func keysOf(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
