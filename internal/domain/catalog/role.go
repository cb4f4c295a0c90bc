package catalog

// Role is a user's authorization level as reported by the authentication
// layer.
type Role string

const (
	RoleGuest     Role = "guest"
	RoleUser      Role = "user"
	RolePowerUser Role = "power-user"
	RoleAdmin     Role = "admin"
)

var roleRank = map[Role]int{
	RoleGuest:     0,
	RoleUser:      1,
	RolePowerUser: 2,
	RoleAdmin:     3,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Allows reports whether a user holding r may run an application requiring
// min. An empty min requires nothing; an unknown role allows nothing.
func (r Role) Allows(min Role) bool {
	if min == "" {
		return true
	}
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	need, ok := roleRank[min]
	return ok && have >= need
}

// User identifies who a catalog lookup is for.
type User struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}
