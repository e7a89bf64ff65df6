package rules

import (
	"errors"
	"strings"

	"carteira/internal/core"
)

// Role is a staffing role billed through the HR category.
type Role string

const (
	RoleJunior        Role = "junior"
	RoleSenior        Role = "senior"
	RoleJuniorOver10h Role = "junior_over_10h"
	RoleSeniorOver10h Role = "senior_over_10h"
	RoleDriver        Role = "driver"
	RoleDriverOver10h Role = "driver_over_10h"
	RoleMonitor       Role = "monitor"
	RoleOperator      Role = "operator"
	RolePaintings     Role = "paintings"
	RolePaintingsKit  Role = "paintings_kit"
	RoleBalloons      Role = "balloons"
	RoleBalloonsKit   Role = "balloons_kit"
	RoleEntertainer   Role = "entertainer"
)

var ErrInvalidRole = errors.New("invalid role")

// Roles lists every billable role in display order.
var Roles = []Role{
	RoleJunior, RoleSenior, RoleJuniorOver10h, RoleSeniorOver10h,
	RoleDriver, RoleDriverOver10h, RoleMonitor, RoleOperator,
	RolePaintings, RolePaintingsKit, RoleBalloons, RoleBalloonsKit,
	RoleEntertainer,
}

// Rates is a flat fee per engagement. The "over 10h" variants are
// separate roles, hours are never multiplied in.
var Rates = map[Role]core.Money{
	RoleJunior:        core.Euro(35),
	RoleSenior:        core.Euro(40),
	RoleJuniorOver10h: core.Euro(40),
	RoleSeniorOver10h: core.Euro(50),
	RoleDriver:        core.Euro(55),
	RoleDriverOver10h: core.Euro(65),
	RoleMonitor:       core.Euro(35),
	RoleOperator:      core.Euro(40),
	RolePaintings:     core.Euro(55),
	RolePaintingsKit:  core.Euro(65),
	RoleBalloons:      core.Euro(45),
	RoleBalloonsKit:   core.Euro(55),
	RoleEntertainer:   core.Euro(80),
}

var roleLabels = map[Role]string{
	RoleJunior:        "Júnior",
	RoleSenior:        "Sénior",
	RoleJuniorOver10h: "Júnior mais de 10 horas",
	RoleSeniorOver10h: "Sénior mais de 10 horas",
	RoleDriver:        "Condutor",
	RoleDriverOver10h: "Condutor mais de 10 horas",
	RoleMonitor:       "Monitor",
	RoleOperator:      "Operador",
	RolePaintings:     "Pinturas",
	RolePaintingsKit:  "Pinturas e Kit",
	RoleBalloons:      "Balões",
	RoleBalloonsKit:   "Balões e Kit",
	RoleEntertainer:   "Animador",
}

// legacy spellings found in stored descriptions and old clients
var roleAliases = map[string]Role{
	"condutor 10 mais de 10 horas": RoleDriverOver10h,
}

func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return string(r)
}

// ParseRole resolves a role by key or by display label, ignoring case.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidRole
	}
	if _, ok := Rates[Role(s)]; ok {
		return Role(s), nil
	}
	for role, label := range roleLabels {
		if strings.EqualFold(label, s) {
			return role, nil
		}
	}
	if role, ok := roleAliases[strings.ToLower(s)]; ok {
		return role, nil
	}
	return "", ErrInvalidRole
}

// CalculateHR returns the flat fee for a role given by key or label.
func CalculateHR(role string) (core.Money, error) {
	r, err := ParseRole(role)
	if err != nil {
		return core.Money{}, err
	}
	rate := Rates[r]
	if rate.Cents <= 0 {
		return core.Money{}, ErrInvalidRole
	}
	return rate, nil
}
