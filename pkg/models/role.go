package models

// Role identifies what a user is allowed to do within their company.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
	RoleAuditor  Role = "auditor"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee, RoleAuditor:
		return true
	}

	return false
}

// CanReview reports whether the role may review document submissions.
func (r Role) CanReview() bool {
	return r == RoleAuditor || r == RoleManager || r == RoleAdmin
}

// Superior returns the role a task is handed to when escalation reassigns it.
// Admin is the top of the chain and escalates to itself.
func (r Role) Superior() Role {
	switch r {
	case RoleEmployee:
		return RoleManager
	case RoleAuditor, RoleManager:
		return RoleAdmin
	default:
		return RoleAdmin
	}
}

// Principal is the authenticated actor behind every state-machine operation.
// It is supplied by the identity collaborator; the engine only checks role and
// company scope.
type Principal struct {
	UserID    string `json:"user_id"`
	Role      Role   `json:"role"`
	CompanyID string `json:"company_id"`
}
