package grant

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/maxim-sld/meditation-bot/types"
)

const (
	tokenLifetime = "lifetime"
	// legacyLifetime is the payload of invoices issued before plans and
	// packages existed.
	legacyLifetime = "meditation_access"
	prefixPlan     = "plan:"
	prefixPackage  = "package:"
)

func Token(t types.GrantTarget) string {
	switch t.Kind {
	case types.GrantPlan:
		return prefixPlan + strconv.FormatInt(t.ID, 10)
	case types.GrantPackage:
		return prefixPackage + strconv.FormatInt(t.ID, 10)
	default:
		return tokenLifetime
	}
}

func ParseToken(token string) (types.GrantTarget, error) {
	token = strings.TrimSpace(token)
	switch {
	case token == tokenLifetime || token == legacyLifetime:
		return types.Lifetime(), nil
	case strings.HasPrefix(token, prefixPlan):
		id, err := parseID(strings.TrimPrefix(token, prefixPlan))
		if err != nil {
			return types.GrantTarget{}, fmt.Errorf("%w: %q", types.ErrUnknownGrantTarget, token)
		}
		return types.PlanTarget(id), nil
	case strings.HasPrefix(token, prefixPackage):
		id, err := parseID(strings.TrimPrefix(token, prefixPackage))
		if err != nil {
			return types.GrantTarget{}, fmt.Errorf("%w: %q", types.ErrUnknownGrantTarget, token)
		}
		return types.PackageTarget(id), nil
	}
	return types.GrantTarget{}, fmt.Errorf("%w: %q", types.ErrUnknownGrantTarget, token)
}

// parseID accepts only plain decimal digits, so "+7", "07x" and " 7" are
// rejected along with zero.
func parseID(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty id")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid id %q", s)
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
