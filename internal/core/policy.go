package core

// PolicyMode selects which authorization rule governs handovers. Two
// mutually exclusive rules exist in the field: the server historically
// restricted non-admin handovers to the same team, while the client-side
// eligibility filter only offered cross-team targets. Both are kept behind
// this switch until the system owner settles on one.
type PolicyMode string

const (
	// PolicySameTeam: ADMIN may hand over to anyone; everyone else only
	// within their own team ({ADMIN, MEMBER} vs {RQ}).
	PolicySameTeam PolicyMode = "same_team"
	// PolicyCrossTeam: handovers must cross teams, except the
	// admin<->member pair inside the admin/member team.
	PolicyCrossTeam PolicyMode = "cross_team"
)

// Valid reports whether the mode names a known policy.
func (m PolicyMode) Valid() bool {
	return m == PolicySameTeam || m == PolicyCrossTeam
}

// sameTeam reports whether both roles fall in the same partition.
// RQ forms a team of its own; ADMIN and MEMBER share the other.
func sameTeam(a, b Role) bool {
	return (a == RoleRQ) == (b == RoleRQ)
}

// Permit decides whether a holder with role from may hand a store over to a
// receiver with role to. Pure and total over the three roles.
func (m PolicyMode) Permit(from, to Role) bool {
	switch m {
	case PolicyCrossTeam:
		if !sameTeam(from, to) {
			return true
		}
		return (from == RoleAdmin && to == RoleMember) ||
			(from == RoleMember && to == RoleAdmin)
	default:
		if from == RoleAdmin {
			return true
		}
		return sameTeam(from, to)
	}
}
