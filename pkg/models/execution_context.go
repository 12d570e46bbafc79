package models

// ExecutionContext is the run-scoped bag handed to every node handler. It is
// constructed once per run, discarded at run completion and never shared
// across runs. Variables is a scratch map owned exclusively by the run;
// Credentials is a read-only snapshot fetched once at run start.
type ExecutionContext struct {
	WorkflowID  string                    `json:"workflow_id"`
	ExecutionID string                    `json:"execution_id"`
	UserID      string                    `json:"user_id,omitempty"`
	TriggerData map[string]any            `json:"trigger_data,omitempty"`
	Variables   map[string]any            `json:"variables,omitempty"`
	Credentials map[string]map[string]any `json:"-"`
}

// NewExecutionContext builds a context for a fresh run with its own variable
// scratch space.
func NewExecutionContext(workflowID, executionID, userID string, triggerData map[string]any) *ExecutionContext {
	return &ExecutionContext{
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		UserID:      userID,
		TriggerData: triggerData,
		Variables:   make(map[string]any),
	}
}
