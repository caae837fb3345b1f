package admin

// Permission represents an admin permission
type Permission string

const (
	// Referral credits
	PermViewCredits   Permission = "credits.view"
	PermManageCredits Permission = "credits.manage"

	// Referral fraud
	PermViewFraud   Permission = "fraud.view"
	PermReviewFraud Permission = "fraud.review"
	PermBlockUsers  Permission = "users.block"

	// System
	PermViewAuditLogs Permission = "audit.view"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleSuperAdmin: {
		PermViewCredits, PermManageCredits,
		PermViewFraud, PermReviewFraud, PermBlockUsers,
		PermViewAuditLogs,
	},
	RoleAdmin: {
		PermViewCredits, PermManageCredits,
		PermViewFraud, PermReviewFraud, PermBlockUsers,
		PermViewAuditLogs,
	},
	RoleRiskAnalyst: {
		PermViewCredits,
		PermViewFraud, PermReviewFraud,
	},
	RoleSupport: {
		PermViewCredits,
		PermViewFraud,
	},
}

func roleHas(role Role, perm Permission) bool {
	for _, p := range RolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
