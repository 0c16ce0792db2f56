package postgresql

// migrations returns the schema migrations keyed by version. Graph structure
// and execution state live in JSONB columns; the relational shell carries
// the fields queries filter on.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id         TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				version    INTEGER NOT NULL DEFAULT 1,
				status     TEXT NOT NULL,
				owner      TEXT NOT NULL DEFAULT '',
				nodes      JSONB NOT NULL DEFAULT '[]',
				edges      JSONB NOT NULL DEFAULT '[]',
				triggers   JSONB NOT NULL DEFAULT '[]',
				settings   JSONB NOT NULL DEFAULT '{}',
				stats      JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows (status) WHERE deleted_at IS NULL;
			CREATE INDEX IF NOT EXISTS idx_workflows_owner  ON workflows (owner)  WHERE deleted_at IS NULL;
		`,
		2: `
			CREATE TABLE IF NOT EXISTS executions (
				id           TEXT PRIMARY KEY,
				workflow_id  TEXT NOT NULL,
				status       TEXT NOT NULL,
				trigger_data JSONB,
				context      JSONB,
				current_node TEXT NOT NULL DEFAULT '',
				error        JSONB,
				log          JSONB NOT NULL DEFAULT '[]',
				started_at   TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				created_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_executions_workflow_id ON executions (workflow_id);
			CREATE INDEX IF NOT EXISTS idx_executions_status      ON executions (status);
		`,
	}
}
