package postgresql

// migrations returns the ordered schema migrations for the PostgreSQL store.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				workflow_id TEXT PRIMARY KEY,
				status TEXT NOT NULL,
				trigger_type TEXT NOT NULL DEFAULT 'auto',
				target_role TEXT NOT NULL DEFAULT 'nurse',
				risk_event JSONB,
				action_card JSONB,
				final_output JSONB,
				agent_history JSONB NOT NULL DEFAULT '[]'::jsonb,
				validation_passed BOOLEAN NOT NULL DEFAULT FALSE,
				validation_errors JSONB NOT NULL DEFAULT '[]'::jsonb,
				created_at TEXT NOT NULL,
				completed_at TEXT NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows(status);
		`,
		2: `
			CREATE TABLE IF NOT EXISTS audit_events (
				id BIGSERIAL PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				agent TEXT NOT NULL,
				action TEXT NOT NULL,
				details JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_audit_events_workflow_id ON audit_events(workflow_id);
		`,
		3: `
			CREATE TABLE IF NOT EXISTS metrics (
				id BIGSERIAL PRIMARY KEY,
				category TEXT NOT NULL,
				metric_name TEXT NOT NULL,
				value DOUBLE PRECISION NOT NULL,
				metadata JSONB,
				created_at TEXT NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_metrics_category ON metrics(category);

			CREATE TABLE IF NOT EXISTS feedback (
				id BIGSERIAL PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				feedback_type TEXT NOT NULL,
				comments TEXT,
				user_role TEXT NOT NULL DEFAULT 'unknown',
				created_at TEXT NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_feedback_workflow_id ON feedback(workflow_id);
		`,
	}
}
