// Package roster produces the ordered list of accounts examined each
// monitoring cycle. Accounts come from the userservice directory when it is
// reachable, with a built-in demo roster as fallback so the monitor keeps
// producing output during outages.
package roster

import "fmt"

// Account provenance tags.
const (
	SourcePrimaryTest = "PRIMARY_TEST_ACCOUNT"
	SourceRealUser    = "REAL_USER"
)

// PrimaryTestAccountID is the designated demo account that alert rendering
// calls out separately.
const PrimaryTestAccountID = "1011226111"

// Account identifies one bank account on the roster. Immutable once built.
type Account struct {
	ID         string `json:"accountId"`
	Username   string `json:"username"`
	RoutingNum string `json:"routingNum"`
	Source     string `json:"source"`
}

// String returns a short display form for logs.
func (a Account) String() string {
	return fmt.Sprintf("%s (%s)", a.Username, a.ID)
}

// IsPrimaryTest reports whether this is the designated test account.
func (a Account) IsPrimaryTest() bool {
	return a.ID == PrimaryTestAccountID
}

// DemoRoster returns the stable built-in account set used when the
// directory is unreachable. The primary test account is always first.
func DemoRoster(routingNum string) []Account {
	return []Account{
		{ID: PrimaryTestAccountID, Username: "testuser", RoutingNum: routingNum, Source: SourcePrimaryTest},
		{ID: "1033623433", Username: "alice", RoutingNum: routingNum, Source: SourceRealUser},
		{ID: "1055757655", Username: "bob", RoutingNum: routingNum, Source: SourceRealUser},
		{ID: "1077889988", Username: "charlie", RoutingNum: routingNum, Source: SourceRealUser},
	}
}
