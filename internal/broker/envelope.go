package broker

import (
	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"
)

// TaskStatus mirrors the Celery task status vocabulary.
type TaskStatus string

const (
	StatusPending TaskStatus = "PENDING"
	StatusStarted TaskStatus = "STARTED"
	StatusSuccess TaskStatus = "SUCCESS"
	StatusFailure TaskStatus = "FAILURE"
	StatusRetry   TaskStatus = "RETRY"
)

// TaskMeta is the result-store document written by the external worker
// under key celery-task-meta-{task_id}.
type TaskMeta struct {
	Status    TaskStatus    `json:"status"`
	Result    interface{}   `json:"result"`
	Traceback *string       `json:"traceback"`
	Children  []interface{} `json:"children,omitempty"`
}

// bodyPayload is the Celery v2 task body: [args, kwargs, embed]. embed
// carries callbacks/errbacks/chain/chord, always null for this system.
type bodyPayload = []interface{}

type embed struct {
	Callbacks interface{} `json:"callbacks"`
	Errbacks  interface{} `json:"errbacks"`
	Chain     interface{} `json:"chain"`
	Chord     interface{} `json:"chord"`
}

// Headers is the Celery v2 envelope's headers section.
type Headers struct {
	Lang     string      `json:"lang"`
	Task     string      `json:"task"`
	ID       string      `json:"id"`
	Retries  int         `json:"retries"`
	ETA      interface{} `json:"eta"`
	Expires  interface{} `json:"expires"`
	Group    interface{} `json:"group"`
	RootID   string      `json:"root_id"`
	ParentID interface{} `json:"parent_id"`
}

// DeliveryInfo names the exchange/routing key the message was published to.
type DeliveryInfo struct {
	Exchange   string `json:"exchange"`
	RoutingKey string `json:"routing_key"`
}

// Properties is the Celery v2 envelope's properties section.
type Properties struct {
	CorrelationID string       `json:"correlation_id"`
	ReplyTo       string       `json:"reply_to"`
	DeliveryMode  int          `json:"delivery_mode"`
	DeliveryInfo  DeliveryInfo `json:"delivery_info"`
	Priority      int          `json:"priority"`
	BodyEncoding  string       `json:"body_encoding"`
	DeliveryTag   string       `json:"delivery_tag"`
}

// Envelope is the full Celery v2 JSON task message pushed via LPUSH.
type Envelope struct {
	Body            string     `json:"body"`
	ContentEncoding string     `json:"content-encoding"`
	ContentType     string     `json:"content-type"`
	Headers         Headers    `json:"headers"`
	Properties      Properties `json:"properties"`
}

// NewEnvelope builds the bit-exact Celery v2 envelope for taskName with the
// given positional args and keyword args (kwargs may be nil, encoded as an
// empty object). Returns the envelope and the generated task UUID.
func NewEnvelope(taskName string, args []interface{}, kwargs map[string]interface{}) (Envelope, string, error) {
	taskID := uuid.New().String()

	if args == nil {
		args = []interface{}{}
	}
	if kwargs == nil {
		kwargs = map[string]interface{}{}
	}

	payload := bodyPayload{args, kwargs, embed{
		Callbacks: nil,
		Errbacks:  nil,
		Chain:     nil,
		Chord:     nil,
	}}

	rawBody, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, "", err
	}
	encodedBody := base64.StdEncoding.EncodeToString(rawBody)

	env := Envelope{
		Body:            encodedBody,
		ContentEncoding: "utf-8",
		ContentType:     "application/json",
		Headers: Headers{
			Lang:     "py",
			Task:     taskName,
			ID:       taskID,
			Retries:  0,
			ETA:      nil,
			Expires:  nil,
			Group:    nil,
			RootID:   taskID,
			ParentID: nil,
		},
		Properties: Properties{
			CorrelationID: taskID,
			ReplyTo:       uuid.New().String(),
			DeliveryMode:  2,
			DeliveryInfo: DeliveryInfo{
				Exchange:   "",
				RoutingKey: "celery",
			},
			Priority:     0,
			BodyEncoding: "base64",
			DeliveryTag:  uuid.New().String(),
		},
	}

	return env, taskID, nil
}
