package tutorial

import (
	"fmt"

	"github.com/haivivi/luabind/pkg/luabind"
)

// Unit is anything with damage and health.
type Unit struct {
	Damage int
	Health int
}

// DealtDamage subtracts n from the health, stopping at zero.
func (u *Unit) DealtDamage(n int) {
	u.Health = max(u.Health-n, 0)
}

// Character is a named Unit.
type Character struct {
	Name string
	Unit
}

// NewCharacter returns a character with the given stats.
func NewCharacter(name string, damage, health int) *Character {
	return &Character{Name: name, Unit: Unit{Damage: damage, Health: health}}
}

func (c *Character) String() string {
	return fmt.Sprintf("%s: [Damage : %d][Health : %d]", c.Name, c.Damage, c.Health)
}

// Monster computes its damage with a script function named by
// DamageFunction.
type Monster struct {
	Name           string
	Strength       int
	DamageFunction string
}

// GetDamage calls the monster's damage function with its strength. When
// the function is missing or fails the damage is -1 and the error says why.
func (m *Monster) GetDamage(in *luabind.Interpreter) (int, error) {
	rets, err := in.Call(m.DamageFunction, 1, luabind.Int(m.Strength))
	if err != nil {
		return -1, err
	}
	n, ok := rets[0].AsNumber()
	if !ok {
		return -1, fmt.Errorf("%w: %s returned %s", luabind.ErrTypeMismatch, m.DamageFunction, rets[0].Kind())
	}
	return int(n), nil
}

// unitMethods binds Unit behavior for values whose tag resolves to tags.
// The first tag in tags that matches decides how the receiver is read.
func unitMethods(onCall func(method, tag string), tags ...string) map[string]luabind.Callback {
	unitOf := func(in *luabind.Interpreter, recv luabind.Value, method string) (*Unit, error) {
		ref, tag, ok := in.TryUnwrap(recv, tags...)
		if !ok {
			return nil, fmt.Errorf("%w: %s needs one of %v, got %s", luabind.ErrTypeMismatch, method, tags, recv.Kind())
		}
		if onCall != nil {
			onCall(method, tag)
		}
		switch v := ref.(type) {
		case *Character:
			return &v.Unit, nil
		case *Unit:
			return v, nil
		}
		return nil, fmt.Errorf("%w: %s on %T", luabind.ErrTypeMismatch, method, ref)
	}

	return map[string]luabind.Callback{
		"getDamage": func(in *luabind.Interpreter, recv luabind.Value, _ []luabind.Value) ([]luabind.Value, error) {
			u, err := unitOf(in, recv, "getDamage")
			if err != nil {
				return nil, err
			}
			return []luabind.Value{luabind.Int(u.Damage)}, nil
		},
		"dealtDamage": func(in *luabind.Interpreter, recv luabind.Value, args []luabind.Value) ([]luabind.Value, error) {
			u, err := unitOf(in, recv, "dealtDamage")
			if err != nil {
				return nil, err
			}
			n, err := luabind.ArgInt(args, 1)
			if err != nil {
				return nil, err
			}
			u.DealtDamage(n)
			return nil, nil
		},
		// health() reads, health(n) writes and returns the new value.
		"health": func(in *luabind.Interpreter, recv luabind.Value, args []luabind.Value) ([]luabind.Value, error) {
			u, err := unitOf(in, recv, "health")
			if err != nil {
				return nil, err
			}
			if len(args) > 0 {
				n, err := luabind.ArgInt(args, 1)
				if err != nil {
					return nil, err
				}
				u.Health = n
			}
			return []luabind.Value{luabind.Int(u.Health)}, nil
		},
	}
}
