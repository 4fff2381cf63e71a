package access

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/coinflip/pkg/types"
)

// Operation identifies an engine operation for authorization.
type Operation string

const (
	OpPlaceWager     Operation = "place-wager"
	OpConfirm        Operation = "confirm"
	OpWithdraw       Operation = "withdraw"
	OpSetCoefficient Operation = "set-coefficient"
	OpSetStakeBounds Operation = "set-stake-bounds"
	OpMint           Operation = "mint"
)

// Role is a privilege held by an account.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleResolver      Role = "resolver"
)

// required lists the role each privileged operation needs. Unlisted operations are open.
//
//nolint:gochecknoglobals // static policy table
var required = map[Operation]Role{
	OpConfirm:        RoleResolver,
	OpWithdraw:       RoleAdministrator,
	OpSetCoefficient: RoleAdministrator,
	OpSetStakeBounds: RoleAdministrator,
	OpMint:           RoleAdministrator,
}

// Control holds role membership and answers authorization checks.
type Control struct {
	mu      sync.RWMutex
	members map[Role]map[common.Address]struct{}
}

// New creates a Control with the given administrators and resolvers.
func New(administrators []common.Address, resolvers []common.Address) *Control {
	c := &Control{
		members: map[Role]map[common.Address]struct{}{
			RoleAdministrator: {},
			RoleResolver:      {},
		},
	}
	for _, a := range administrators {
		c.Grant(RoleAdministrator, a)
	}
	for _, r := range resolvers {
		c.Grant(RoleResolver, r)
	}
	return c
}

// Authorize returns nil if caller may perform op, ErrUnauthorized otherwise.
func (c *Control) Authorize(op Operation, caller common.Address) error {
	role, privileged := required[op]
	if !privileged {
		return nil
	}
	if c.HasRole(role, caller) {
		return nil
	}
	return fmt.Errorf("%s requires %s role, caller %s: %w", op, role, caller.Hex(), types.ErrUnauthorized)
}

// HasRole reports whether account holds role.
func (c *Control) HasRole(role Role, account common.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.members[role][account]
	return ok
}

// IsAdministrator reports whether account holds the administrator role.
func (c *Control) IsAdministrator(account common.Address) bool {
	return c.HasRole(RoleAdministrator, account)
}

// IsResolver reports whether account holds the resolver role.
func (c *Control) IsResolver(account common.Address) bool {
	return c.HasRole(RoleResolver, account)
}

// Grant adds account to role.
func (c *Control) Grant(role Role, account common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.members[role] == nil {
		c.members[role] = map[common.Address]struct{}{}
	}
	c.members[role][account] = struct{}{}
}

// ParseAddresses parses a comma-separated list of hex addresses. Empty entries are skipped.
func ParseAddresses(list string) (addrs []common.Address, err error) {
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("invalid address %q", raw)
		}
		addrs = append(addrs, common.HexToAddress(raw))
	}
	return addrs, nil
}
