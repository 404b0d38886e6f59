package domain

import (
	"fmt"
	"slices"
	"strings"
)

type Resource string

const (
	ResourceUsers       Resource = "users"
	ResourcePermissions Resource = "permissions"
	ResourceOrders      Resource = "orders"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionUpdate Action = "update"
	ActionCreate Action = "create"
	ActionDelete Action = "delete"
)

var (
	validResources = []Resource{ResourceUsers, ResourcePermissions, ResourceOrders}
	validActions   = []Action{ActionRead, ActionWrite, ActionUpdate, ActionCreate, ActionDelete}
)

func ParseResource(raw string) (Resource, error) {
	r := Resource(strings.TrimSpace(raw))
	if !slices.Contains(validResources, r) {
		return "", fmt.Errorf("%w: unknown resource %q", ErrValidation, raw)
	}
	return r, nil
}

func ParseAction(raw string) (Action, error) {
	a := Action(strings.TrimSpace(raw))
	if !slices.Contains(validActions, a) {
		return "", fmt.Errorf("%w: unknown action %q", ErrValidation, raw)
	}
	return a, nil
}

// PermissionGrant maps an actor and resource to the allowed actions. A missing grant
// is the same as an empty action set.
type PermissionGrant struct {
	ActorID  string
	Resource Resource
	Actions  []Action
}

func (g PermissionGrant) Allows(action Action) bool {
	return slices.Contains(g.Actions, action)
}

// WithAction returns a copy of the grant that also allows action.
func (g PermissionGrant) WithAction(action Action) PermissionGrant {
	out := PermissionGrant{ActorID: g.ActorID, Resource: g.Resource, Actions: slices.Clone(g.Actions)}
	if !out.Allows(action) {
		out.Actions = append(out.Actions, action)
	}
	return out
}

// NormalizeActions validates and deduplicates actions preserving first-seen order.
func NormalizeActions(raw []string) ([]Action, error) {
	out := make([]Action, 0, len(raw))
	for _, r := range raw {
		a, err := ParseAction(r)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func EncodeActions(actions []Action) string {
	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		parts = append(parts, string(a))
	}
	return strings.Join(parts, ",")
}

func DecodeActions(raw string) []Action {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]Action, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, Action(p))
		}
	}
	return out
}
