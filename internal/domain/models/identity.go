package models

// RoleMaster gates owner-level operations such as cash withdrawals.
const RoleMaster = "master"

// Identity is the authenticated caller extracted from request credentials.
// Every store operation runs against the pharmacy named here.
type Identity struct {
	UserID     string
	PharmacyID string
	Role       string
}
