package action

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence/inmem"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []map[string]any
	err   error
}

func (n *recordingNotifier) Notify(recipient string, templateKey string, vars map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.calls = append(n.calls, vars)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func storedAssignment(t *testing.T, taskState model.NodeState) (*inmem.InmemAssignmentStorage, *model.Assignment) {
	t.Helper()
	a := &model.Assignment{
		Id:       "a1",
		ClientId: "client-1",
		Status:   model.ASSIGNMENT_IN_PROGRESS,
		Version:  1,
		Context:  map[string]any{"tier": "gold", "amount": 250.0},
		Stages: []*model.AssignmentStage{{
			Id:          "stage-1",
			TemplateRef: "onboarding",
			State:       model.NODE_IN_PROGRESS,
			Steps: []*model.AssignmentStep{{
				Id:          "step-1",
				TemplateRef: "intake",
				State:       model.NODE_IN_PROGRESS,
				Tasks: []*model.AssignmentTask{{
					Id:          "task-1",
					TemplateRef: "collect_docs",
					State:       taskState,
				}},
			}},
		}},
	}
	storage := inmem.NewInmemAssignmentStorage()
	_, err := storage.CreateAssignmentTree(a, "")
	require.NoError(t, err)
	return storage, a
}

func newTestDispatcher(storage *inmem.InmemAssignmentStorage, notifier Notifier) *Dispatcher {
	var wg sync.WaitGroup
	d := NewDispatcher(storage, &wg, 10)
	d.Register(NewNotifyExecutor(notifier))
	return d
}

func TestDispatchNotify(t *testing.T) {
	storage, _ := storedAssignment(t, model.NODE_COMPLETED)
	notifier := &recordingNotifier{}
	d := newTestDispatcher(storage, notifier)

	err := d.handle(dispatchRequest{
		assignmentId: "a1",
		nodeId:       "task-1",
		spec: model.ActionSpec{
			Kind:        model.ACTION_NOTIFY,
			Recipient:   "ops@praxis.dev",
			TemplateKey: "docs_done",
			Input:       map[string]any{"tier": "$.tier", "static": "v"},
		},
		attempt: 1,
	})
	require.NoError(t, err)
	require.Equal(t, 1, notifier.count())
	require.Equal(t, "gold", notifier.calls[0]["tier"])
	require.Equal(t, "v", notifier.calls[0]["static"])
}

func TestDispatchGuards(t *testing.T) {
	scenarios := map[string]struct {
		guard      string
		dispatched bool
	}{
		"true guard dispatches":       {guard: "done(collect_docs)", dispatched: true},
		"false guard skips":           {guard: "amount > 1000", dispatched: false},
		"unparseable guard skips":     {guard: "amount >", dispatched: false},
		"non boolean guard skips":     {guard: "amount", dispatched: false},
		"context comparison dispatch": {guard: "tier == \"gold\" and amount >= 100", dispatched: true},
	}
	for name, scenario := range scenarios {
		t.Run(name, func(t *testing.T) {
			storage, _ := storedAssignment(t, model.NODE_COMPLETED)
			notifier := &recordingNotifier{}
			d := newTestDispatcher(storage, notifier)
			err := d.handle(dispatchRequest{
				assignmentId: "a1",
				nodeId:       "task-1",
				spec: model.ActionSpec{
					Kind:  model.ACTION_NOTIFY,
					Guard: scenario.guard,
				},
				attempt: 1,
			})
			require.NoError(t, err)
			if scenario.dispatched {
				require.Equal(t, 1, notifier.count())
			} else {
				require.Equal(t, 0, notifier.count())
			}
		})
	}
}

func TestDispatchSuppressedForCancelledNode(t *testing.T) {
	storage, _ := storedAssignment(t, model.NODE_CANCELLED)
	notifier := &recordingNotifier{}
	d := newTestDispatcher(storage, notifier)

	err := d.handle(dispatchRequest{
		assignmentId: "a1",
		nodeId:       "task-1",
		spec:         model.ActionSpec{Kind: model.ACTION_NOTIFY},
		attempt:      1,
	})
	require.NoError(t, err)
	require.Equal(t, 0, notifier.count())
}

func TestDispatchExhaustionDoesNotRetry(t *testing.T) {
	storage, _ := storedAssignment(t, model.NODE_COMPLETED)
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	d := newTestDispatcher(storage, notifier)

	err := d.handle(dispatchRequest{
		assignmentId: "a1",
		nodeId:       "task-1",
		spec: model.ActionSpec{
			Kind:  model.ACTION_NOTIFY,
			Retry: model.RetryPolicy{MaxAttempts: 1, InitialDelaySeconds: 1, BackoffMultiplier: 2},
		},
		attempt: 1,
	})
	require.NoError(t, err)
	require.Equal(t, 0, notifier.count())
}

func TestDispatchUnknownKind(t *testing.T) {
	storage, _ := storedAssignment(t, model.NODE_COMPLETED)
	d := newTestDispatcher(storage, &recordingNotifier{})

	err := d.handle(dispatchRequest{
		assignmentId: "a1",
		nodeId:       "task-1",
		spec:         model.ActionSpec{Kind: model.ActionKind("unknown")},
		attempt:      1,
	})
	require.Error(t, err)
}

func TestBackoffDelay(t *testing.T) {
	policy := model.RetryPolicy{MaxAttempts: 4, InitialDelaySeconds: 2, BackoffMultiplier: 3}
	require.Equal(t, 2*time.Second, backoffDelay(policy, 1))
	require.Equal(t, 6*time.Second, backoffDelay(policy, 2))
	require.Equal(t, 18*time.Second, backoffDelay(policy, 3))
}

func TestNodeActionsLookup(t *testing.T) {
	a := &model.Assignment{
		Stages: []*model.AssignmentStage{{
			Id:                "stage-1",
			OnCompleteActions: []model.ActionSpec{{Kind: model.ACTION_NOTIFY}},
			Steps: []*model.AssignmentStep{{
				Id: "step-1",
				Tasks: []*model.AssignmentTask{{
					Id:                "task-1",
					OnCompleteActions: []model.ActionSpec{{Kind: model.ACTION_INVOKE_AGENT}, {Kind: model.ACTION_NOTIFY}},
				}},
			}},
		}},
	}
	require.Len(t, nodeActions(a, "task-1"), 2)
	require.Len(t, nodeActions(a, "stage-1"), 1)
	require.Nil(t, nodeActions(a, "step-1"))
	require.Nil(t, nodeActions(a, "missing"))
}
