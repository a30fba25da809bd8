package domain

import (
	"fmt"
	"strings"
)

// Level is an authority level of an account.
type Level string

const (
	LevelOwner  Level = "owner"
	LevelActive Level = "active"
)

// String returns the string representation of Level.
func (l Level) String() string {
	return string(l)
}

// IsValid checks if the level is a valid value.
func (l Level) IsValid() bool {
	return l == LevelOwner || l == LevelActive
}

// Permission names the account and authority level that authorize an action.
type Permission struct {
	Actor Name
	Level Level
}

// Active returns the active permission of an account.
func Active(actor Name) Permission {
	return Permission{Actor: actor, Level: LevelActive}
}

// Owner returns the owner permission of an account.
func Owner(actor Name) Permission {
	return Permission{Actor: actor, Level: LevelOwner}
}

// String formats the permission as "actor@level".
func (p Permission) String() string {
	return string(p.Actor) + "@" + string(p.Level)
}

// ParsePermission parses "currency@active". A bare account name means its
// active permission.
func ParsePermission(s string) (Permission, error) {
	actor, level, found := strings.Cut(s, "@")
	if !found {
		level = string(LevelActive)
	}
	name, err := ParseName(actor)
	if err != nil {
		return Permission{}, fmt.Errorf("%w: %q: %v", ErrInvalidPermission, s, err)
	}
	l := Level(level)
	if !l.IsValid() {
		return Permission{}, fmt.Errorf("%w: %q: unknown level %q", ErrInvalidPermission, s, level)
	}
	return Permission{Actor: name, Level: l}, nil
}

func (p Permission) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Permission) UnmarshalText(b []byte) error {
	v, err := ParsePermission(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
