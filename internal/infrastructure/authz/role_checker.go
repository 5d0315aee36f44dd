// Package authz resolves approval permissions from role grants.
package authz

import (
	"context"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"go.uber.org/zap"
)

// Wildcard grants every permission
const Wildcard = "*"

// Grant gives a role a set of permissions
type Grant struct {
	Role        string   `mapstructure:"role" yaml:"role"`
	Permissions []string `mapstructure:"permissions" yaml:"permissions"`
}

// RoleChecker allows an actor when any of its roles holds the permission
type RoleChecker struct {
	grants map[string]map[string]struct{}
	logger *zap.Logger
}

// NewRoleChecker builds a checker from grants. Repeated roles are merged.
func NewRoleChecker(grants []Grant, logger *zap.Logger) *RoleChecker {
	c := &RoleChecker{
		grants: make(map[string]map[string]struct{}),
		logger: logger,
	}
	for _, g := range grants {
		perms, ok := c.grants[g.Role]
		if !ok {
			perms = make(map[string]struct{})
			c.grants[g.Role] = perms
		}
		for _, p := range g.Permissions {
			perms[p] = struct{}{}
		}
	}
	return c
}

// Can implements port.CapabilityChecker
func (c *RoleChecker) Can(_ context.Context, actor entity.Actor, permission string, e *entity.Approvable) bool {
	if actor.IsAnonymous() || permission == "" {
		return false
	}

	for _, role := range actor.Roles {
		perms, ok := c.grants[role]
		if !ok {
			continue
		}
		if _, ok := perms[permission]; ok {
			return true
		}
		if _, ok := perms[Wildcard]; ok {
			return true
		}
	}

	if c.logger != nil && e != nil {
		c.logger.Debug("Permission denied",
			zap.String("actor", actor.ID),
			zap.String("permission", permission),
			zap.String("entity", e.Ref.String()))
	}
	return false
}

var _ port.CapabilityChecker = (*RoleChecker)(nil)
