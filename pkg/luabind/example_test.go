package luabind_test

import (
	"fmt"

	"github.com/haivivi/luabind/pkg/luabind"
)

func Example() {
	in, err := luabind.New()
	if err != nil {
		panic(err)
	}
	defer in.Close()

	err = in.LoadString("functions.lua", `
function multi(x, y, z)
  return x + y, y + z, x + z
end
`)
	if err != nil {
		panic(err)
	}

	rets, err := in.Call("multi", 3, luabind.Int(1), luabind.Int(3), luabind.Int(5))
	if err != nil {
		panic(err)
	}
	fmt.Println(rets[0], rets[1], rets[2])
	// Output: 4 8 6
}

type Unit struct {
	Damage int
	Health int
}

func ExampleInterpreter_Wrap() {
	in, _ := luabind.New()
	defer in.Close()

	in.Register("Unit", "getDamage", func(in *luabind.Interpreter, recv luabind.Value, _ []luabind.Value) ([]luabind.Value, error) {
		u, err := luabind.UnwrapAs[*Unit](in, recv, "Unit")
		if err != nil {
			return nil, err
		}
		return []luabind.Value{luabind.Int(u.Damage)}, nil
	})
	in.Register("Unit", "dealtDamage", func(in *luabind.Interpreter, recv luabind.Value, args []luabind.Value) ([]luabind.Value, error) {
		u, err := luabind.UnwrapAs[*Unit](in, recv, "Unit")
		if err != nil {
			return nil, err
		}
		n, err := luabind.ArgInt(args, 1)
		if err != nil {
			return nil, err
		}
		u.Health -= n
		return nil, nil
	})
	in.LoadString("units.lua", `
function applyDamage(a, b)
  b.dealtDamage(a.getDamage())
end
`)

	a := &Unit{Damage: 12, Health: 30}
	b := &Unit{Damage: 7, Health: 40}
	if _, err := in.Call("applyDamage", 0, in.Wrap(a, "Unit"), in.Wrap(b, "Unit")); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(a.Health, b.Health)
	// Output: 30 28
}
