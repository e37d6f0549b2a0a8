// Package luabind binds host Go objects and functions to an embedded Lua
// interpreter.
//
// Host objects reach scripts as opaque handles tagged with a type name.
// Method calls on a handle are resolved through a per-tag dispatch table,
// and a tag may fall back to a parent tag to emulate single inheritance.
//
// # Basic Usage
//
//	in, err := luabind.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer in.Close()
//
//	if err := in.LoadFile("scripts/functions.lua"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Calling Script Functions
//
//	rets, err := in.Call("multi", 3, luabind.Int(1), luabind.Int(3), luabind.Int(5))
//	// rets: 4, 8, 6
//
//	// Dotted names walk nested tables.
//	rets, err = in.Call("functions.computation.compute", 1, luabind.Int(2))
//
//	// MultRet returns everything the function returned.
//	rets, err = in.Call("unpack_all", luabind.MultRet)
//
// # Registering Host Functions
//
//	in.RegisterFunc("greet", func(in *luabind.Interpreter, _ luabind.Value, args []luabind.Value) ([]luabind.Value, error) {
//	    name, err := luabind.ArgString(args, 1)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return []luabind.Value{luabind.String("Hello, " + name)}, nil
//	})
//
// # Host Objects
//
//	in.Register("Unit", "getDamage", func(in *luabind.Interpreter, recv luabind.Value, _ []luabind.Value) ([]luabind.Value, error) {
//	    u, err := luabind.UnwrapAs[*Unit](in, recv, "Unit")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return []luabind.Value{luabind.Int(u.Damage)}, nil
//	})
//
//	in.Call("applyDamage", 0, in.Wrap(a, "Unit"), in.Wrap(b, "Unit"))
//
// Scripts may call methods either as u.getDamage() or u:getDamage(). The
// method value is bound to its handle, and a first argument that is that
// same handle is taken as the colon-call self and dropped. A dot call such
// as u.attack(u) therefore reaches the callback with no arguments; pass a
// second reference (u:attack(u)) when the receiver is meant as an argument.
//
// # Inheritance
//
//	in.SetFallback("Character", "Unit")
//
// A Character handle now answers every Unit method it does not define
// itself. Callbacks shared by both tags recover their receiver with
// TryUnwrap, listing the most derived tag first.
//
// # Errors
//
// Every failure crossing the boundary becomes an error value. Loading
// failures are *LoadError (ErrScriptLoad), script failures are *ScriptError
// (ErrScriptRuntime), and an error returned by a callback is raised in the
// script. When that raise reaches the host uncaught, the original error is
// kept as ScriptError.Cause, so errors.Is sees through it.
package luabind
