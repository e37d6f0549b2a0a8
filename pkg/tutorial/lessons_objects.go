package tutorial

import (
	"context"

	"github.com/haivivi/luabind/pkg/luabind"
)

var damageLesson = &Lesson{
	Name:   "damage",
	Short:  "extend host objects with script functions",
	Script: "damage.lua",
	Run: func(ctx context.Context, env *Env) error {
		in, err := env.Interpreter(ctx)
		if err != nil {
			return err
		}
		defer env.Release(in)
		if err := env.Load(ctx, in, "damage.lua"); err != nil {
			return err
		}

		monsters := []*Monster{
			{Name: "Snake1", Strength: 4, DamageFunction: "snake_damage_func"},
			{Name: "Snake2", Strength: 5, DamageFunction: "snake_damage_func"},
			{Name: "Bear1", Strength: 5, DamageFunction: "bear_damage_func"},
			{Name: "Wolf1", Strength: 6, DamageFunction: "wolf_damage_func"},
		}
		for _, m := range monsters {
			dmg, err := m.GetDamage(in)
			if err != nil {
				env.Console.Warn("cannot find %s function: %v", m.DamageFunction, err)
			}
			env.Console.Printf("%s : Str Value [%d] Dmg Value [%d]", m.Name, m.Strength, dmg)
		}
		return nil
	},
}

var unitsLesson = &Lesson{
	Name:   "units",
	Short:  "pass host objects to a script",
	Script: "units.lua",
	Run: func(ctx context.Context, env *Env) error {
		in, err := env.Interpreter(ctx)
		if err != nil {
			return err
		}
		defer env.Release(in)
		if err := env.Load(ctx, in, "units.lua"); err != nil {
			return err
		}
		if err := in.Registry().RegisterMethods("Unit", unitMethods(nil, "Unit")); err != nil {
			return err
		}

		unit1 := &Unit{Damage: 12, Health: 30}
		unit2 := &Unit{Damage: 7, Health: 40}
		h1, h2 := in.Wrap(unit1, "Unit"), in.Wrap(unit2, "Unit")

		env.Console.Result("before", unit1.Health, unit2.Health)
		if _, err := in.Call("applyDamage", 0, h1, h2); err != nil {
			return err
		}
		env.Console.Result("after unit1 hits unit2", unit1.Health, unit2.Health)
		if _, err := in.Call("applyDamage", 0, h2, h1); err != nil {
			return err
		}
		env.Console.Result("after unit2 hits unit1", unit1.Health, unit2.Health)
		return nil
	},
}

var characterLesson = &Lesson{
	Name:   "character",
	Short:  "call host methods on a wrapped object",
	Script: "character.lua",
	Run: func(ctx context.Context, env *Env) error {
		in, err := env.Interpreter(ctx)
		if err != nil {
			return err
		}
		defer env.Release(in)
		if err := env.Load(ctx, in, "character.lua"); err != nil {
			return err
		}
		if err := in.Registry().RegisterMethods("Character", unitMethods(nil, "Character")); err != nil {
			return err
		}

		attacker := NewCharacter("Attacker", 3, 10)
		defender := NewCharacter("Defender", 1, 20)
		env.Console.Result("[before damage] attacker, defender", attacker.Health, defender.Health)
		if _, err := in.Call("applyDamage", 0, in.Wrap(attacker, "Character"), in.Wrap(defender, "Character")); err != nil {
			return err
		}
		env.Console.Result("[after damage] attacker, defender", attacker.Health, defender.Health)

		c := NewCharacter("name", 3, 20)
		if _, err := in.Call("testcharacter", 0, in.Wrap(c, "Character")); err != nil {
			return err
		}
		env.Console.Printf("%s", c)
		return nil
	},
}

var inheritLesson = &Lesson{
	Name:   "inherit",
	Short:  "share methods through a fallback table",
	Script: "inherit.lua",
	Run: func(ctx context.Context, env *Env) error {
		in, err := env.Interpreter(ctx)
		if err != nil {
			return err
		}
		defer env.Release(in)
		if err := env.Load(ctx, in, "inherit.lua"); err != nil {
			return err
		}

		// Character has no methods of its own; every lookup falls back to
		// Unit, whose callbacks accept either tag.
		trace := func(method, tag string) {
			env.Console.Info("calling method %q, class type is %s", method, tag)
		}
		if err := in.Registry().RegisterMethods("Unit", unitMethods(trace, "Character", "Unit")); err != nil {
			return err
		}
		if err := in.SetFallback("Character", "Unit"); err != nil {
			return err
		}

		attacker := NewCharacter("Attacker", 3, 10)
		defender := &Unit{Damage: 1, Health: 20}
		ha, hd := in.Wrap(attacker, "Character"), in.Wrap(defender, "Unit")

		env.Console.Result("[before damage] attacker, defender", attacker.Health, defender.Health)
		if _, err := in.Call("applyDamage", 0, ha, hd); err != nil {
			return err
		}
		env.Console.Result("[after damage] attacker, defender", attacker.Health, defender.Health)

		for _, h := range []luabind.Value{ha, hd} {
			if _, err := in.Call("testcharacter", 0, h); err != nil {
				return err
			}
		}
		env.Console.Printf("%s", attacker)
		env.Console.Result("defender health", defender.Health)
		return nil
	},
}
