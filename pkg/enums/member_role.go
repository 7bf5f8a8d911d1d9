package enums

// MemberRole is the actor role carried in access tokens. platform_admin is
// staff and is not bound to a tenant.
type MemberRole string

const (
	MemberRoleOwner         MemberRole = "owner"
	MemberRoleAdmin         MemberRole = "admin"
	MemberRoleAgent         MemberRole = "agent"
	MemberRolePlatformAdmin MemberRole = "platform_admin"
)

var memberRoles = []MemberRole{MemberRoleOwner, MemberRoleAdmin, MemberRoleAgent, MemberRolePlatformAdmin}

func (m MemberRole) String() string { return string(m) }

func (m MemberRole) IsValid() bool { return oneOf(m, memberRoles) }

func ParseMemberRole(value string) (MemberRole, error) {
	return parse("member role", value, memberRoles)
}
