package types

type GrantKind string

const (
	GrantLifetime GrantKind = "lifetime"
	GrantPlan     GrantKind = "plan"
	GrantPackage  GrantKind = "package"
)

// GrantTarget is what a payment buys. ID is zero for GrantLifetime.
type GrantTarget struct {
	Kind GrantKind
	ID   int64
}

func Lifetime() GrantTarget { return GrantTarget{Kind: GrantLifetime} }
func PlanTarget(id int64) GrantTarget { return GrantTarget{Kind: GrantPlan, ID: id} }
func PackageTarget(id int64) GrantTarget { return GrantTarget{Kind: GrantPackage, ID: id} }

type PurchaseResult int

const (
	PurchaseCreated PurchaseResult = iota
	PurchaseAlreadyExists
)

func (r PurchaseResult) String() string {
	if r == PurchaseAlreadyExists {
		return "already_exists"
	}
	return "created"
}
