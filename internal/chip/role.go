package chip

import (
	"fmt"
	"strings"
)

// Role is the firmware a unit runs.
type Role int

const (
	Master Role = iota
	Relay1
	Relay1_5
)

var roleNames = map[Role]string{
	Master:   "master",
	Relay1:   "rel-mk1",
	Relay1_5: "rel-mk1.5",
}

func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// IsRelay reports whether r is one of the relay roles.
func (r Role) IsRelay() bool {
	return r == Relay1 || r == Relay1_5
}

// ParseRole accepts the names printed by Role.String, case-insensitively.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, n := range roleNames {
		if n == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q (want master, rel-mk1 or rel-mk1.5)", s)
}

// Roles lists every role in declaration order.
func Roles() []Role {
	return []Role{Master, Relay1, Relay1_5}
}

// Kind is the board variant. The engine never looks at it; flashing does.
type Kind int

const (
	Green Kind = iota
	BlueShiny
	BlueNonShiny
)

var kindNames = map[Kind]string{
	Green:        "green",
	BlueShiny:    "blue-shiny",
	BlueNonShiny: "blue-non-shiny",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind accepts the names printed by Kind.String, case-insensitively.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown kind %q (want green, blue-shiny or blue-non-shiny)", s)
}

// Kinds lists every kind in declaration order.
func Kinds() []Kind {
	return []Kind{Green, BlueShiny, BlueNonShiny}
}

type pingTopology int

const (
	// topologyDirect pings from the session's own port.
	topologyDirect pingTopology = iota
	// topologyCompanion pings from a master on another port, targeting this unit.
	topologyCompanion
)

type capabilities struct {
	needsHandshake bool
	topology       pingTopology
}

func (r Role) capabilities() capabilities {
	if r.IsRelay() {
		return capabilities{topology: topologyCompanion}
	}
	return capabilities{needsHandshake: true, topology: topologyDirect}
}
