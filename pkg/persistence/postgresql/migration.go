package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow templates and their ordered steps
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				company_id VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_company_id ON workflows(company_id);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE workflow_steps (
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				step_number INT NOT NULL,
				action VARCHAR(255) NOT NULL,
				role_required VARCHAR(50) NOT NULL,
				timeout_hours INT NOT NULL DEFAULT 0,
				is_parallel BOOLEAN NOT NULL DEFAULT false,
				PRIMARY KEY (workflow_id, step_number)
			);
		`,
		2: `
			-- Running workflow instances carry a frozen copy of their steps
			CREATE TABLE document_workflows (
				id UUID PRIMARY KEY,
				document_id VARCHAR(255) NOT NULL,
				workflow_id UUID NOT NULL,
				company_id VARCHAR(255) NOT NULL,
				steps JSONB NOT NULL,
				current_step INT NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('in_progress', 'completed', 'rejected', 'timed_out')),
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				rejected_by VARCHAR(255),
				rejected_at TIMESTAMP WITH TIME ZONE,
				timeout_at TIMESTAMP WITH TIME ZONE,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_document_workflows_document_id ON document_workflows(document_id);
			CREATE INDEX idx_document_workflows_company_id ON document_workflows(company_id);
			CREATE INDEX idx_document_workflows_status ON document_workflows(status);
			CREATE INDEX idx_document_workflows_timeout_at ON document_workflows(timeout_at) WHERE status = 'in_progress';

			CREATE TABLE workflow_execution_history (
				id UUID PRIMARY KEY,
				document_workflow_id UUID NOT NULL REFERENCES document_workflows(id) ON DELETE CASCADE,
				sequence BIGINT NOT NULL,
				step_number INT NOT NULL,
				action VARCHAR(255) NOT NULL,
				performed_by VARCHAR(255) NOT NULL,
				performed_at TIMESTAMP WITH TIME ZONE NOT NULL,
				notes TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL,
				UNIQUE (document_workflow_id, sequence)
			);

			CREATE INDEX idx_execution_history_instance ON workflow_execution_history(document_workflow_id);
		`,
		3: `
			-- Requirements, escalations, and submissions
			CREATE TABLE document_requirements (
				id UUID PRIMARY KEY,
				audit_id VARCHAR(255) NOT NULL,
				company_id VARCHAR(255) NOT NULL,
				document_type VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				is_mandatory BOOLEAN NOT NULL DEFAULT true,
				deadline TIMESTAMP WITH TIME ZONE,
				auto_escalate BOOLEAN NOT NULL DEFAULT false,
				escalation_level INT NOT NULL DEFAULT 0,
				validation_rules JSONB,
				priority_score DOUBLE PRECISION NOT NULL DEFAULT 0,
				risk_level VARCHAR(50) NOT NULL DEFAULT 'medium',
				compliance_framework VARCHAR(255) NOT NULL DEFAULT '',
				created_by VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				closed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_requirements_audit_id ON document_requirements(audit_id);
			CREATE INDEX idx_requirements_company_id ON document_requirements(company_id);
			CREATE INDEX idx_requirements_deadline ON document_requirements(deadline) WHERE closed_at IS NULL;

			CREATE TABLE requirement_escalations (
				id UUID PRIMARY KEY,
				requirement_id UUID NOT NULL REFERENCES document_requirements(id) ON DELETE CASCADE,
				level INT NOT NULL,
				escalation_type VARCHAR(50) NOT NULL,
				reason TEXT NOT NULL DEFAULT '',
				escalated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				resolved BOOLEAN NOT NULL DEFAULT false,
				resolved_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_escalations_requirement_id ON requirement_escalations(requirement_id);

			CREATE TABLE document_submissions (
				id UUID PRIMARY KEY,
				requirement_id UUID NOT NULL REFERENCES document_requirements(id),
				document_id VARCHAR(255) NOT NULL,
				company_id VARCHAR(255) NOT NULL,
				submitted_by VARCHAR(255) NOT NULL,
				submitted_at TIMESTAMP WITH TIME ZONE NOT NULL,
				verification_status VARCHAR(50) NOT NULL CHECK (verification_status IN ('pending', 'needs_revision', 'approved', 'rejected')),
				workflow_stage VARCHAR(50) NOT NULL,
				revision_round INT NOT NULL DEFAULT 1,
				auto_verified BOOLEAN NOT NULL DEFAULT false,
				ai_validation_score DOUBLE PRECISION NOT NULL DEFAULT 0,
				compliance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
				issues JSONB,
				priority_level VARCHAR(50) NOT NULL DEFAULT 'medium',
				reviewed_by VARCHAR(255),
				reviewed_at TIMESTAMP WITH TIME ZONE,
				review_notes TEXT NOT NULL DEFAULT '',
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_submissions_requirement_id ON document_submissions(requirement_id);
			CREATE INDEX idx_submissions_company_id ON document_submissions(company_id);
			CREATE INDEX idx_submissions_status ON document_submissions(verification_status);
			CREATE INDEX idx_submissions_lineage ON document_submissions(requirement_id, document_id);
		`,
		4: `
			-- Findings, action items, and document references
			CREATE TABLE audit_findings (
				id UUID PRIMARY KEY,
				audit_id VARCHAR(255) NOT NULL,
				company_id VARCHAR(255) NOT NULL,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				severity VARCHAR(50) NOT NULL,
				status VARCHAR(50) NOT NULL,
				finding_type VARCHAR(255) NOT NULL DEFAULT '',
				ai_detected BOOLEAN NOT NULL DEFAULT false,
				ai_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
				remediation_status VARCHAR(50) NOT NULL DEFAULT 'pending',
				due_date TIMESTAMP WITH TIME ZONE,
				created_by VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				resolved_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_findings_audit_id ON audit_findings(audit_id);
			CREATE INDEX idx_findings_company_id ON audit_findings(company_id);
			CREATE INDEX idx_findings_status ON audit_findings(status);

			CREATE TABLE action_items (
				id UUID PRIMARY KEY,
				finding_id UUID NOT NULL REFERENCES audit_findings(id) ON DELETE CASCADE,
				assigned_to VARCHAR(255) NOT NULL,
				description TEXT NOT NULL,
				due_date TIMESTAMP WITH TIME ZONE,
				status VARCHAR(50) NOT NULL DEFAULT 'pending',
				priority VARCHAR(50) NOT NULL DEFAULT 'medium',
				progress_notes TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_action_items_finding_id ON action_items(finding_id);
			CREATE INDEX idx_action_items_due_date ON action_items(due_date) WHERE status != 'completed';

			CREATE TABLE documents (
				id VARCHAR(255) PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				file_type VARCHAR(50) NOT NULL DEFAULT '',
				file_size DOUBLE PRECISION NOT NULL DEFAULT 0,
				company_id VARCHAR(255) NOT NULL,
				metadata JSONB
			);

			CREATE INDEX idx_documents_company_id ON documents(company_id);
		`,
	}
}
