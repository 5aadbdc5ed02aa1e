package models

// Role is the closed set of user roles. Field staff (auditor, qc,
// saleperson) drive shop visits; managers are assignable but never visit;
// admin/supervisor/executive exist only for user administration.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleManager     Role = "manager"
	RoleSupervisor  Role = "supervisor"
	RoleExecutive   Role = "executive"
	RoleAuditor     Role = "auditor"
	RoleQC          Role = "qc"
	RoleSaleperson  Role = "saleperson"
)

// roleBinding maps a role onto its assignment column and, for visiting
// roles, its visited-flag triplet on the shop aggregate. One dispatch
// table instead of role-string branching in every operation.
type roleBinding struct {
	assignment func(*Shop) *string
	visited    func(*Shop) bool
	markVisit  func(*Shop, string, int64)
}

var roleBindings = map[Role]roleBinding{
	RoleAuditor: {
		assignment: func(s *Shop) *string { return s.AssignedTo },
		visited:    func(s *Shop) bool { return s.Visited },
		markVisit: func(s *Shop, userID string, at int64) {
			s.Visited = true
			s.VisitedBy = &userID
			s.VisitedAt = &at
		},
	},
	RoleQC: {
		assignment: func(s *Shop) *string { return s.AssignedQC },
		visited:    func(s *Shop) bool { return s.VisitedByQC },
		markVisit: func(s *Shop, userID string, at int64) {
			s.VisitedByQC = true
			s.VisitedByQCID = &userID
			s.VisitedAtByQC = &at
		},
	},
	RoleSaleperson: {
		assignment: func(s *Shop) *string { return s.AssignedSalesperson },
		visited:    func(s *Shop) bool { return s.VisitedBySaleperson },
		markVisit: func(s *Shop, userID string, at int64) {
			s.VisitedBySaleperson = true
			s.VisitedBySalepersonID = &userID
			s.VisitedAtBySaleperson = &at
		},
	},
	RoleManager: {
		assignment: func(s *Shop) *string { return s.AssignedManagerID },
	},
}

// Assignable reports whether shops can be assigned to holders of this role.
func (r Role) Assignable() bool {
	_, ok := roleBindings[r]
	return ok
}

// CanVisit reports whether this role drives the visit lifecycle.
func (r Role) CanVisit() bool {
	b, ok := roleBindings[r]
	return ok && b.markVisit != nil
}

// AssignmentOf returns the shop's assignee for this role, or nil when the
// shop is unassigned (or the role is not assignable).
func (r Role) AssignmentOf(s *Shop) *string {
	b, ok := roleBindings[r]
	if !ok {
		return nil
	}
	return b.assignment(s)
}

// VisitedOn reports whether this role has already completed a visit on the
// shop.
func (r Role) VisitedOn(s *Shop) bool {
	b, ok := roleBindings[r]
	if !ok || b.visited == nil {
		return false
	}
	return b.visited(s)
}

// MarkVisited flips this role's visited flag and records who/when. No-op
// for roles that do not visit.
func (r Role) MarkVisited(s *Shop, userID string, at int64) {
	b, ok := roleBindings[r]
	if !ok || b.markVisit == nil {
		return
	}
	b.markVisit(s, userID, at)
}

// CanCreate reports whether a user with this role may create users with
// the target role. Admin sits at the top; each tier can only create tiers
// below it.
func (r Role) CanCreate(target Role) bool {
	hierarchy := map[Role][]Role{
		RoleAdmin:      {RoleAdmin, RoleManager, RoleSupervisor, RoleExecutive, RoleAuditor, RoleQC, RoleSaleperson},
		RoleManager:    {RoleSupervisor, RoleExecutive, RoleAuditor, RoleQC, RoleSaleperson},
		RoleSupervisor: {RoleExecutive, RoleAuditor, RoleQC, RoleSaleperson},
		RoleExecutive:  {RoleAuditor, RoleQC, RoleSaleperson},
	}
	for _, allowed := range hierarchy[r] {
		if allowed == target {
			return true
		}
	}
	return false
}
