package web

import "github.com/KlikkAI/reporunner-sub008/pkg/models"

// CreateWorkflowRequest is the payload for creating a workflow.
type CreateWorkflowRequest struct {
	Name        string                  `json:"name"        validate:"required,min=1,max=255"`
	Description string                  `json:"description" validate:"max=1024"`
	Nodes       []*models.Node          `json:"nodes"`
	Edges       []*models.Edge          `json:"edges"`
	Settings    models.WorkflowSettings `json:"settings"`
	Owner       string                  `json:"owner"`
}

// UpdateWorkflowRequest is the payload for partially updating a workflow.
// Nil fields keep their current value.
type UpdateWorkflowRequest struct {
	Name        *string                  `json:"name,omitempty"        validate:"omitempty,min=1,max=255"`
	Description *string                  `json:"description,omitempty" validate:"omitempty,max=1024"`
	Nodes       []*models.Node           `json:"nodes,omitempty"`
	Edges       []*models.Edge           `json:"edges,omitempty"`
	Settings    *models.WorkflowSettings `json:"settings,omitempty"`
}

// ExecuteWorkflowRequest is the payload for submitting a run.
type ExecuteWorkflowRequest struct {
	TriggerData map[string]any `json:"trigger_data"`
	UserID      string         `json:"user_id"`
}
