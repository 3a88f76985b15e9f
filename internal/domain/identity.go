package domain

// Identity is the resolved caller attached to a request or socket for its
// lifetime. It is a tagged variant: guests are identified but have no
// directory record, authenticated callers carry their profile.
type Identity struct {
	UserID  string
	Role    string
	Profile *User // nil for guests
	guest   bool
}

// GuestIdentity builds the identity of an identified-but-unregistered caller.
func GuestIdentity(userID string) Identity {
	return Identity{UserID: userID, Role: RoleGuest, guest: true}
}

// AuthenticatedIdentity builds the identity of a directory-backed caller.
func AuthenticatedIdentity(u *User) Identity {
	return Identity{UserID: u.UserID, Role: u.Role, Profile: u}
}

// Guest reports whether the caller has no directory record.
func (i Identity) Guest() bool { return i.guest }

// Admin reports whether the caller holds the admin role.
func (i Identity) Admin() bool { return !i.guest && i.Role == RoleAdmin }

// DisplayName returns the name used in broadcast payloads and messages.
func (i Identity) DisplayName() string {
	if i.Profile != nil {
		return i.Profile.DisplayName()
	}
	return "guest"
}
