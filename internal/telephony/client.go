package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ClientConfig configures the provider REST client.
type ClientConfig struct {
	BaseURL       string
	APIKey        string
	PhoneNumberID string
	Timeout       time.Duration
}

// Client is an HTTP implementation of Provider against the provider's /call endpoint.
type Client struct {
	baseURL       string
	apiKey        string
	phoneNumberID string
	http          *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		phoneNumberID: cfg.PhoneNumberID,
		http:          &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return "vapi" }

type createCallBody struct {
	AssistantID   string            `json:"assistantId"`
	PhoneNumberID string            `json:"phoneNumberId,omitempty"`
	Customer      customer          `json:"customer"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type customer struct {
	Number string `json:"number"`
}

type createCallResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *Client) PlaceCall(ctx context.Context, req OutboundCallRequest) (OutboundCallResult, error) {
	if req.OrganizationID == "" || req.AgentID == "" || req.CustomerPhone == "" {
		return OutboundCallResult{}, ErrInvalidRequest
	}

	body, err := json.Marshal(createCallBody{
		AssistantID:   req.AgentID,
		PhoneNumberID: c.phoneNumberID,
		Customer:      customer{Number: req.CustomerPhone},
		Metadata:      req.Metadata,
	})
	if err != nil {
		return OutboundCallResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call", bytes.NewReader(body))
	if err != nil {
		return OutboundCallResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return OutboundCallResult{}, fmt.Errorf("telephony: place call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return OutboundCallResult{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return OutboundCallResult{}, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out createCallResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return OutboundCallResult{}, fmt.Errorf("telephony: decode response: %w", err)
	}
	if out.ID == "" {
		return OutboundCallResult{}, fmt.Errorf("%w: missing call id", ErrRejected)
	}
	return OutboundCallResult{ProviderCallID: out.ID, Status: out.Status}, nil
}
