package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type Role string

const (
	RoleClient Role = "client"
	RoleWorker Role = "worker"
	RoleSystem Role = "system"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleClient, RoleWorker, RoleSystem:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Actor is whoever requests an operation: a signed-in user or the platform itself.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func SystemActor() Actor {
	return Actor{Role: RoleSystem}
}
