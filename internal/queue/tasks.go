package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pagepress/pagepress/internal/domain"
)

const TypeProcessDocument = "press:process"

type ProcessDocumentPayload struct {
	JobID       string                `json:"job_id"`
	SourceType  string                `json:"source_type"`
	WebhookURL  string                `json:"webhook_url,omitempty"`
	ObjectKey   string                `json:"object_key"`
	Pipeline    []domain.PipelineStep `json:"pipeline"`
	RequestedAt time.Time             `json:"requested_at"`
}

func NewProcessDocumentTask(payload ProcessDocumentPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal process payload: %w", err)
	}
	return asynq.NewTask(TypeProcessDocument, body), nil
}

func ParseProcessDocumentPayload(task *asynq.Task) (ProcessDocumentPayload, error) {
	var payload ProcessDocumentPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ProcessDocumentPayload{}, fmt.Errorf("unmarshal process payload: %w", err)
	}
	return payload, nil
}
