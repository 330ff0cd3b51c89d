package domain

// Identity is the verified subject attached to a request after token
// verification: who is calling and with which role. It is derived once per
// request and never cached across requests.
type Identity struct {
	UserID string
	Role   Role
}
