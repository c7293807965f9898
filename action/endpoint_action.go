package action

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/util"
)

type endpointPayload struct {
	AssignmentId string         `json:"assignmentId"`
	ClientId     string         `json:"clientId"`
	NodeId       string         `json:"nodeId"`
	Data         map[string]any `json:"data"`
}

type endpointExecutor struct {
	client         *http.Client
	encoderDecoder util.EncoderDecoder[endpointPayload]
}

var _ Executor = new(endpointExecutor)

func NewEndpointExecutor() Executor {
	return &endpointExecutor{
		client:         &http.Client{Timeout: 30 * time.Second},
		encoderDecoder: util.NewJsonEncoderDecoder[endpointPayload](),
	}
}

func (ex *endpointExecutor) Kind() model.ActionKind {
	return model.ACTION_CALL_ENDPOINT
}

func (ex *endpointExecutor) Execute(a *model.Assignment, nodeId string, spec model.ActionSpec) error {
	payload := endpointPayload{
		AssignmentId: a.Id,
		ClientId:     a.ClientId,
		NodeId:       nodeId,
		Data:         ResolveInputParams(a.Context, spec.Input),
	}
	body, err := ex.encoderDecoder.Encode(payload)
	if err != nil {
		return err
	}
	method := spec.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequest(method, spec.Url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ex.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint %s returned status %d", spec.Url, resp.StatusCode)
	}
	return nil
}
