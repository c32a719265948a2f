package enums

// MemberRole is the caller role carried in access tokens. Only admins may act
// for other users.
type MemberRole string

const (
	MemberRoleCustomer MemberRole = "customer"
	MemberRoleAdmin    MemberRole = "admin"
	MemberRoleSystem   MemberRole = "system"
)

var memberRoles = newSet("member role", MemberRoleCustomer, MemberRoleAdmin, MemberRoleSystem)

func (m MemberRole) String() string { return string(m) }
func (m MemberRole) IsValid() bool  { return memberRoles.has(m) }

func ParseMemberRole(value string) (MemberRole, error) { return memberRoles.parse(value) }
