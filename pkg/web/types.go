package web

// RunWorkflowRequest starts a pipeline run.
type RunWorkflowRequest struct {
	TriggerType string `json:"trigger_type" validate:"omitempty,oneof=auto manual schedule queue"`
	TargetRole  string `json:"target_role"  validate:"omitempty,oneof=physician nurse admin patient"`
}

// RejectRequest rejects a run awaiting approval.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// SearchRequest queries the knowledge base.
type SearchRequest struct {
	Query      string `json:"query"       validate:"required"`
	SearchType string `json:"search_type" validate:"omitempty,oneof=dense keyword hybrid"`
	TopK       int    `json:"top_k"       validate:"omitempty,gte=1,lte=20"`
}

// AddDocumentRequest indexes a new protocol document.
type AddDocumentRequest struct {
	DocID    string `json:"doc_id"   validate:"required"`
	Title    string `json:"title"    validate:"required"`
	Content  string `json:"content"  validate:"required"`
	Category string `json:"category"`
}

// TextRequest carries clinical text for the NLP endpoints.
type TextRequest struct {
	Text string `json:"text" validate:"required"`
}

// DraftRequest generates a role-specific message for a finished workflow.
type DraftRequest struct {
	WorkflowID string `json:"workflow_id" validate:"required"`
	Role       string `json:"role"        validate:"required,oneof=physician nurse admin patient"`
}

// ShiftReportRequest generates a handoff report.
type ShiftReportRequest struct {
	Hours int `json:"hours" validate:"omitempty,gte=1,lte=72"`
}

// SimulateRequest runs a what-if scenario analysis.
type SimulateRequest struct {
	Scenario string `json:"scenario" validate:"required"`
}

// FeedbackRequest records human feedback on a workflow result.
type FeedbackRequest struct {
	WorkflowID   string `json:"workflow_id"   validate:"required"`
	FeedbackType string `json:"feedback_type" validate:"required,oneof=thumbs_up thumbs_down edited"`
	Comments     string `json:"comments"`
	UserRole     string `json:"user_role"`
}
