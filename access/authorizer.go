package access

import (
	"fmt"
	"strconv"
	"sync"

	casbinlib "github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const (
	RoleAdmin       = "admin"
	ActionIconWrite = "icon:write"
)

// A viewer may replace an icon when it is the entity itself, the entity's
// owner, or holds a role granted the action.
const modelText = `
[request_definition]
r = sub, obj, owner, act

[policy_definition]
p = sub, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = ((r.sub == r.obj || r.sub == r.owner) && r.act == "icon:write") || (g(r.sub, p.sub) && r.act == p.act)
`

type AuthorizerConfig struct {
	Admins []int64 `mapstructure:"admins" yaml:"admins"`
}

// Authorizer decides who may change an entity's icon.
type Authorizer struct {
	enforcer *casbinlib.Enforcer
	mu       sync.RWMutex
}

func NewAuthorizer(cfg AuthorizerConfig) (*Authorizer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}
	enforcer, err := casbinlib.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}
	if _, err := enforcer.AddPolicy(RoleAdmin, ActionIconWrite); err != nil {
		return nil, fmt.Errorf("seed admin policy: %w", err)
	}

	a := &Authorizer{enforcer: enforcer}
	for _, guid := range cfg.Admins {
		if err := a.AssignRole(guid, RoleAdmin); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Authorizer) AssignRole(viewer int64, role string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.enforcer.AddGroupingPolicy(subject(viewer), role)
	return err
}

// CanEditIcon checks whether viewer may regenerate the icon of target, whose
// owner is owner. Anonymous viewers (GUID 0) are always refused.
func (a *Authorizer) CanEditIcon(viewer, target, owner int64) (bool, error) {
	if viewer <= 0 {
		return false, nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.enforcer.Enforce(subject(viewer), subject(target), subject(owner), ActionIconWrite)
}

func subject(guid int64) string {
	return strconv.FormatInt(guid, 10)
}
