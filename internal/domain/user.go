package domain

import "time"

// User is the directory record for a registered buyer, farmer or admin.
// Account management lives outside this service; only the read surface
// needed for authorization and notification rendering is modelled here.
type User struct {
	UserID    string    `json:"id" dynamodbav:"user_id"`
	Username  string    `json:"username" dynamodbav:"username"`
	Email     string    `json:"email" dynamodbav:"email"`
	Phone     *string   `json:"phone,omitempty" dynamodbav:"phone"`
	Role      string    `json:"role" dynamodbav:"role"`
	FirstName string    `json:"first_name" dynamodbav:"first_name"`
	LastName  string    `json:"last_name" dynamodbav:"last_name"`
	Enable    int       `json:"enable" dynamodbav:"enable"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// DisplayName returns the human-facing name used in events and messages.
func (u *User) DisplayName() string {
	if u.FirstName != "" || u.LastName != "" {
		if u.FirstName == "" {
			return u.LastName
		}
		if u.LastName == "" {
			return u.FirstName
		}
		return u.FirstName + " " + u.LastName
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
