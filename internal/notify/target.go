package notify

import "strconv"

type Kind int

const (
	KindUser Kind = iota
	KindGroup
	KindGroupExcept
)

// Target selects who receives an event: one user, a named group, or a named
// group minus one connection.
type Target struct {
	Kind       Kind
	UserID     int
	Group      string
	ExceptConn string
}

func ToUser(userID int) Target {
	return Target{Kind: KindUser, UserID: userID}
}

func ToGroup(group string) Target {
	return Target{Kind: KindGroup, Group: group}
}

func ToGroupExcept(group, connID string) Target {
	return Target{Kind: KindGroupExcept, Group: group, ExceptConn: connID}
}

func (t Target) String() string {
	switch t.Kind {
	case KindUser:
		return "user:" + strconv.Itoa(t.UserID)
	case KindGroupExcept:
		return "group:" + t.Group + "!" + t.ExceptConn
	default:
		return "group:" + t.Group
	}
}
