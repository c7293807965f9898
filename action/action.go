package action

import (
	"strings"

	"github.com/mohitkumar/praxis/model"
	"github.com/oliveagle/jsonpath"
)

// Executor runs one action kind. Execute is called with a freshly loaded
// assignment; returning an error makes the dispatcher retry under the
// action's retry policy.
type Executor interface {
	Kind() model.ActionKind
	Execute(a *model.Assignment, nodeId string, spec model.ActionSpec) error
}

// Notifier delivers notifications to a recipient. Implementations live
// outside this module (mail, chat, webhooks).
type Notifier interface {
	Notify(recipient string, templateKey string, vars map[string]any) error
}

// AgentInvoker hands a task to an autonomous agent and returns the
// correlation id the agent will echo back with its result.
type AgentInvoker interface {
	Invoke(agentRef string, nodeId string, input map[string]any) (string, error)
}

// ResolveInputParams substitutes $-prefixed jsonpath references in params
// with values from the assignment context. Non-string and non-$ values pass
// through unchanged; nested maps are resolved recursively.
func ResolveInputParams(contextVars map[string]any, params map[string]any) map[string]any {
	output := make(map[string]any)
	resolveParams(contextVars, params, output)
	return output
}

func resolveParams(contextVars map[string]any, params map[string]any, output map[string]any) {
	for k, v := range params {
		switch v.(type) {
		case map[string]any:
			out := make(map[string]any)
			output[k] = out
			resolveParams(contextVars, v.(map[string]any), out)
		case string:
			if strings.HasPrefix(v.(string), "$") {
				value, _ := jsonpath.JsonPathLookup(contextVars, v.(string))
				output[k] = value
			} else {
				output[k] = v
			}
		default:
			output[k] = v
		}
	}
}
