package postgres

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				trigger_type VARCHAR(100) NOT NULL,
				trigger_conditions JSONB NOT NULL DEFAULT '[]',
				trigger_config JSONB,
				steps JSONB NOT NULL DEFAULT '[]',
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'paused', 'draft', 'archived')),
				user_id VARCHAR(255) NOT NULL DEFAULT '',
				organization_id VARCHAR(255) NOT NULL DEFAULT '',
				execution_count INTEGER NOT NULL DEFAULT 0,
				success_count INTEGER NOT NULL DEFAULT 0,
				last_executed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_trigger_type ON workflows(trigger_type);
			CREATE INDEX idx_workflows_user_id ON workflows(user_id);
			CREATE INDEX idx_workflows_organization_id ON workflows(organization_id);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);

			CREATE TABLE execution_logs (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id UUID NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('started', 'waiting', 'completed', 'failed')),
				trigger_data JSONB NOT NULL DEFAULT '{}',
				error_message TEXT NOT NULL DEFAULT '',
				next_step_index INTEGER NOT NULL DEFAULT 0,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_execution_logs_workflow_id ON execution_logs(workflow_id);
			CREATE INDEX idx_execution_logs_started_at ON execution_logs(started_at);
		`,
		2: `
			CREATE TABLE jobs (
				id VARCHAR(255) PRIMARY KEY,
				title VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(100) NOT NULL DEFAULT '',
				address TEXT NOT NULL DEFAULT '',
				client_id VARCHAR(255) NOT NULL DEFAULT '',
				user_id VARCHAR(255) NOT NULL DEFAULT '',
				organization_id VARCHAR(255) NOT NULL DEFAULT '',
				scheduled_for TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				next_service_at TIMESTAMP WITH TIME ZONE,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_jobs_completed_at ON jobs(completed_at);
			CREATE INDEX idx_jobs_next_service_at ON jobs(next_service_at);

			CREATE TABLE invoices (
				id VARCHAR(255) PRIMARY KEY,
				number VARCHAR(100) NOT NULL DEFAULT '',
				status VARCHAR(100) NOT NULL DEFAULT '',
				total NUMERIC(12, 2) NOT NULL DEFAULT 0,
				client_id VARCHAR(255) NOT NULL DEFAULT '',
				job_id VARCHAR(255) NOT NULL DEFAULT '',
				user_id VARCHAR(255) NOT NULL DEFAULT '',
				organization_id VARCHAR(255) NOT NULL DEFAULT '',
				due_date TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_invoices_status_due_date ON invoices(status, due_date);

			CREATE TABLE clients (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL DEFAULT '',
				first_name VARCHAR(255) NOT NULL DEFAULT '',
				phone VARCHAR(50) NOT NULL DEFAULT '',
				email VARCHAR(255) NOT NULL DEFAULT '',
				address TEXT NOT NULL DEFAULT '',
				user_id VARCHAR(255) NOT NULL DEFAULT '',
				organization_id VARCHAR(255) NOT NULL DEFAULT '',
				last_contact_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_clients_last_contact_at ON clients(last_contact_at);

			CREATE TABLE company_profiles (
				user_id VARCHAR(255) NOT NULL DEFAULT '',
				organization_id VARCHAR(255) NOT NULL DEFAULT '',
				name VARCHAR(255) NOT NULL DEFAULT '',
				phone VARCHAR(50) NOT NULL DEFAULT '',
				email VARCHAR(255) NOT NULL DEFAULT '',
				website VARCHAR(255) NOT NULL DEFAULT '',
				PRIMARY KEY (user_id, organization_id)
			);

			CREATE TABLE notifications (
				id UUID PRIMARY KEY,
				user_id VARCHAR(255) NOT NULL DEFAULT '',
				organization_id VARCHAR(255) NOT NULL DEFAULT '',
				title VARCHAR(255) NOT NULL DEFAULT '',
				message TEXT NOT NULL DEFAULT '',
				entity_type VARCHAR(50) NOT NULL DEFAULT '',
				entity_id VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_notifications_user_id ON notifications(user_id);
			CREATE INDEX idx_notifications_organization_id ON notifications(organization_id);
		`,
	}
}
