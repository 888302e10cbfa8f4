package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE automation_flows (
				id UUID PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'inactive')),
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				created_by VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_automation_flows_organization_id ON automation_flows(organization_id);
			CREATE INDEX idx_automation_flows_status ON automation_flows(status);
			CREATE INDEX idx_automation_flows_deleted_at ON automation_flows(deleted_at);

			CREATE TABLE leads (
				id UUID PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL DEFAULT '',
				phone VARCHAR(50) NOT NULL DEFAULT '',
				email VARCHAR(255) NOT NULL DEFAULT '',
				stage_id VARCHAR(255) NOT NULL DEFAULT '',
				tags JSONB NOT NULL DEFAULT '[]',
				fields JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_leads_organization_id ON leads(organization_id);
		`,
		2: `
			CREATE TABLE flow_executions (
				id UUID PRIMARY KEY,
				flow_id UUID NOT NULL REFERENCES automation_flows(id),
				lead_id UUID NOT NULL,
				organization_id VARCHAR(255) NOT NULL,
				current_node_id VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'waiting', 'completed', 'error')),
				state JSONB NOT NULL DEFAULT '{}',
				next_execution_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				created_by VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_flow_executions_flow_id ON flow_executions(flow_id);
			CREATE INDEX idx_flow_executions_lead_id ON flow_executions(lead_id);
			CREATE INDEX idx_flow_executions_status ON flow_executions(status);
			CREATE INDEX idx_flow_executions_next_execution_at ON flow_executions(next_execution_at)
				WHERE status = 'waiting';

			-- At most one running/waiting execution per (flow, lead) pair.
			CREATE UNIQUE INDEX uniq_flow_executions_active
				ON flow_executions(flow_id, lead_id)
				WHERE status IN ('running', 'waiting');
		`,
	}
}
