package action

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/praxis/util"
)

type agentRequest struct {
	CorrelationId string         `json:"correlationId"`
	AgentRef      string         `json:"agentRef"`
	NodeId        string         `json:"nodeId"`
	Input         map[string]any `json:"input,omitempty"`
}

// WebhookAgentInvoker hands tasks to agents over a single http endpoint.
// The agent replies later on the agent result endpoint, echoing the
// correlation id issued here.
type WebhookAgentInvoker struct {
	endpoint       string
	client         *http.Client
	encoderDecoder util.EncoderDecoder[agentRequest]
}

var _ AgentInvoker = new(WebhookAgentInvoker)

func NewWebhookAgentInvoker(endpoint string) *WebhookAgentInvoker {
	return &WebhookAgentInvoker{
		endpoint:       endpoint,
		client:         &http.Client{Timeout: 30 * time.Second},
		encoderDecoder: util.NewJsonEncoderDecoder[agentRequest](),
	}
}

func (inv *WebhookAgentInvoker) Invoke(agentRef string, nodeId string, input map[string]any) (string, error) {
	if inv.endpoint == "" {
		return "", fmt.Errorf("no agent endpoint configured")
	}
	correlationId := uuid.New().String()
	body, err := inv.encoderDecoder.Encode(agentRequest{
		CorrelationId: correlationId,
		AgentRef:      agentRef,
		NodeId:        nodeId,
		Input:         input,
	})
	if err != nil {
		return "", err
	}
	resp, err := inv.client.Post(inv.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("agent endpoint returned status %d", resp.StatusCode)
	}
	return correlationId, nil
}
