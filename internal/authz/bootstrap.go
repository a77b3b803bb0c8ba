package authz

import "fmt"

// 内置店员角色
const (
	RoleBarista = "barista"
	RoleManager = "manager"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 店员预置角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: RoleBarista,
			Policies: []Policy{
				{Object: "/staff/verifications/resolve", Action: "POST"},
				{Object: "/staff/credits", Action: "POST"},
				{Object: "/staff/redemptions", Action: "POST"},
				{Object: "/staff/accounts/:customer_id", Action: "GET"},
				{Object: "/staff/accounts/:customer_id/entries", Action: "GET"},
				{Object: "/staff/rewards", Action: "GET"},
				{Object: "/staff/campaigns", Action: "GET"},
				{Object: "/staff/campaigns/:id", Action: "GET"},
				{Object: "/staff/campaigns/:id/participants", Action: "*"},
			},
		},
		{
			Role:     RoleManager,
			Inherits: []string{RoleBarista},
			Policies: []Policy{
				{Object: "/staff/rewards", Action: "POST"},
				{Object: "/staff/campaigns", Action: "POST"},
				{Object: "/staff/campaigns/:id/pause", Action: "POST"},
				{Object: "/staff/campaigns/:id/resume", Action: "POST"},
				{Object: "/staff/churn/candidates", Action: "GET"},
				{Object: "/staff/churn/candidates/:id/approve", Action: "POST"},
				{Object: "/staff/churn/run", Action: "POST"},
				{Object: "/staff/churn/dispatch", Action: "POST"},
				{Object: "/staff/settings", Action: "*"},
				{Object: "/staff/authz/catalog", Action: "GET"},
				{Object: "/staff/authz/roles", Action: "GET"},
				{Object: "/staff/authz/roles/:role/policies", Action: "GET"},
			},
		},
	}
}

// BootstrapBuiltinRoles 写入预置角色与默认策略，重复执行不产生新策略
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		for _, parent := range seed.Inherits {
			if _, err := s.InheritRole(seed.Role, parent); err != nil {
				return fmt.Errorf("bootstrap role %s: %w", seed.Role, err)
			}
		}
		for _, policy := range seed.Policies {
			if _, err := s.GrantRolePolicy(seed.Role, policy.Object, policy.Action); err != nil {
				return fmt.Errorf("bootstrap role %s: %w", seed.Role, err)
			}
		}
	}
	return nil
}
