package rbac

import (
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Permission string

const (
	PermIncidentsView   Permission = "incidents.view"
	PermIncidentsManage Permission = "incidents.manage"
)

const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

type Role struct {
	Name        string
	Permissions []Permission
	Inherits    []string
}

func DefaultRoles() []Role {
	return []Role{
		{Name: RoleViewer, Permissions: []Permission{PermIncidentsView}},
		{Name: RoleEditor, Permissions: []Permission{PermIncidentsView, PermIncidentsManage}},
		{Name: RoleAdmin, Inherits: []string{RoleEditor}},
	}
}

const modelText = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj
`

// Policy answers role/permission questions through a casbin enforcer.
type Policy struct {
	enforcer *casbin.SyncedEnforcer
	roles    map[string]struct{}
}

func NewPolicy(roles []Role) (*Policy, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}
	p := &Policy{enforcer: e, roles: map[string]struct{}{}}
	for _, role := range roles {
		name := normalize(role.Name)
		if name == "" {
			continue
		}
		p.roles[name] = struct{}{}
		for _, perm := range role.Permissions {
			if _, err := e.AddPolicy(name, string(perm)); err != nil {
				return nil, err
			}
		}
		for _, parent := range role.Inherits {
			if _, err := e.AddGroupingPolicy(name, normalize(parent)); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func (p *Policy) Allowed(roles []string, perm Permission) bool {
	if p == nil {
		return false
	}
	for _, role := range roles {
		ok, err := p.enforcer.Enforce(normalize(role), string(perm))
		if err == nil && ok {
			return true
		}
	}
	return false
}

func (p *Policy) HasRole(name string) bool {
	if p == nil {
		return false
	}
	_, ok := p.roles[normalize(name)]
	return ok
}

// RoleNames lists the known roles sorted by name.
func (p *Policy) RoleNames() []string {
	out := make([]string, 0, len(p.roles))
	for name := range p.roles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
