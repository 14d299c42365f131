package campaigns

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TaskStartCampaign = "campaigns.start"
	TaskDialCall      = "campaigns.dial"
)

type StartPayload struct {
	OrganizationID string `json:"organizationId"`
	CampaignID     string `json:"campaignId"`
}

type DialPayload struct {
	OrganizationID string `json:"organizationId"`
	CampaignID     string `json:"campaignId"`
	CallID         string `json:"callId"`
}

func NewStartTask(payload StartPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStartCampaign, data), nil
}

func ParseStartPayload(task *asynq.Task) (StartPayload, error) {
	var payload StartPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return StartPayload{}, err
	}
	return payload, nil
}

func NewDialTask(payload DialPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDialCall, data), nil
}

func ParseDialPayload(task *asynq.Task) (DialPayload, error) {
	var payload DialPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DialPayload{}, err
	}
	return payload, nil
}
