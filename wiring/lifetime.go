package wiring

import (
	"fmt"
	"strings"
)

// Lifetime decides whether a component is shared or built anew on every request.
type Lifetime uint8

const (
	Singleton Lifetime = iota
	Transient
)

func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Transient:
		return "transient"
	default:
		return fmt.Sprintf("Lifetime(%d)", uint8(l))
	}
}

// ParseLifetime parses the case-insensitive name of a lifetime.
func ParseLifetime(s string) (Lifetime, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "singleton":
		return Singleton, nil
	case "transient":
		return Transient, nil
	default:
		return 0, fmt.Errorf("unknown lifetime %q", s)
	}
}
