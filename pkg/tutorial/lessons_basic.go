package tutorial

import (
	"context"
	"errors"

	"github.com/haivivi/luabind/pkg/luabind"
)

var helloLesson = &Lesson{
	Name:   "hello",
	Short:  "load and run a script",
	Script: "helloworld.lua",
	Run: func(ctx context.Context, env *Env) error {
		in, err := env.Interpreter(ctx)
		if err != nil {
			return err
		}
		defer env.Release(in)
		return env.Load(ctx, in, "helloworld.lua")
	},
}

var functionsLesson = &Lesson{
	Name:   "functions",
	Short:  "call script functions from the host",
	Script: "functions.lua",
	Run: func(ctx context.Context, env *Env) error {
		in, err := env.Interpreter(ctx)
		if err != nil {
			return err
		}
		defer env.Release(in)
		if err := env.Load(ctx, in, "functions.lua"); err != nil {
			return err
		}

		rets, err := in.Call("add", 1, luabind.Int(3), luabind.Int(4))
		if err != nil {
			return err
		}
		env.Console.Result("add(3, 4)", rets[0])

		rets, err = in.Call("multi", 3, luabind.Int(1), luabind.Int(3), luabind.Int(5))
		if err != nil {
			return err
		}
		env.Console.Result("multi(1, 3, 5)", rets[0], rets[1], rets[2])
		return nil
	},
}

var hostFuncLesson = &Lesson{
	Name:   "hostfunc",
	Short:  "expose a host function to scripts",
	Script: "run.lua",
	Run: func(ctx context.Context, env *Env) error {
		in, err := env.Interpreter(ctx)
		if err != nil {
			return err
		}
		defer env.Release(in)

		err = in.RegisterFunc("compute", func(_ *luabind.Interpreter, _ luabind.Value, args []luabind.Value) ([]luabind.Value, error) {
			x, err := luabind.ArgInt(args, 1)
			if err != nil {
				return nil, err
			}
			y, err := luabind.ArgInt(args, 2)
			if err != nil {
				return nil, err
			}
			return []luabind.Value{luabind.Int(x - y)}, nil
		})
		if err != nil {
			return err
		}
		if err := env.Load(ctx, in, "run.lua"); err != nil {
			return err
		}
		env.Console.Result("result", in.Global("result"))
		return nil
	},
}

var nestedLesson = &Lesson{
	Name:   "nested",
	Short:  "call functions stored in nested tables",
	Script: "nested.lua",
	Run: func(ctx context.Context, env *Env) error {
		in, err := env.Interpreter(ctx)
		if err != nil {
			return err
		}
		defer env.Release(in)
		if err := env.Load(ctx, in, "nested.lua"); err != nil {
			return err
		}

		rets, err := in.Call("functions.computation.compute", 1, luabind.Int(3), luabind.Int(4))
		if err != nil {
			return err
		}
		env.Console.Result("functions.computation.compute(3, 4)", rets[0])

		rets, err = in.Call("functions.computation.multi_compute", 3, luabind.Int(1), luabind.Int(3), luabind.Int(5))
		if err != nil {
			return err
		}
		env.Console.Result("functions.computation.multi_compute(1, 3, 5)", rets[0], rets[1], rets[2])

		if _, err := in.Call("functions.computation.missing", 1); errors.Is(err, luabind.ErrNotCallable) {
			env.Console.Info("functions.computation.missing: no such function")
		}
		return nil
	},
}
