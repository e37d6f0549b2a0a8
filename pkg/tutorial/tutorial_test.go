package tutorial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/haivivi/luabind/pkg/cli"
	"github.com/haivivi/luabind/pkg/luabind"
	"github.com/haivivi/luabind/pkg/storage"
)

func newEnv(t *testing.T) (*Env, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	return &Env{
		Console: cli.NewConsole(&out, &errOut),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, &out, &errOut
}

func storageMap(files map[string]string) storage.FileStore {
	fsys := fstest.MapFS{}
	for name, src := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(src)}
	}
	return storage.NewFS(fsys)
}

func runLesson(t *testing.T, env *Env, name string) {
	t.Helper()
	l, err := Lookup(name)
	if err != nil {
		t.Fatalf("Lookup(%q) failed: %v", name, err)
	}
	if err := l.Exec(context.Background(), env); err != nil {
		t.Fatalf("lesson %s failed: %v", name, err)
	}
}

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLessons(t *testing.T) {
	tests := []struct {
		name  string
		wants []string
	}{
		{"hello", []string{"[lua] hello world", "script loaded: helloworld.lua"}},
		{"functions", []string{"add(3, 4) = 7", "multi(1, 3, 5) = 4, 8, 6"}},
		{"hostfunc", []string{"[lua] compute(10, 3) = 7", "result = 7"}},
		{"nested", []string{
			"functions.computation.compute(3, 4) = 12",
			"functions.computation.multi_compute(1, 3, 5) = 4, 8, 6",
			"functions.computation.missing: no such function",
		}},
		{"damage", []string{
			"Snake1 : Str Value [4] Dmg Value [8]",
			"Snake2 : Str Value [5] Dmg Value [10]",
			"Bear1 : Str Value [5] Dmg Value [16]",
			"Wolf1 : Str Value [6] Dmg Value [-1]",
		}},
		{"units", []string{
			"before = 30, 40",
			"after unit1 hits unit2 = 30, 28",
			"after unit2 hits unit1 = 23, 28",
		}},
		{"character", []string{
			"[lua] dealing 3 damage",
			"[after damage] attacker, defender = 10, 17",
			"[lua] health before: 20",
			"[lua] health after: 50",
			"name: [Damage : 3][Health : 50]",
		}},
		{"inherit", []string{
			"[after damage] attacker, defender = 10, 17",
			`calling method "getDamage", class type is Character`,
			`calling method "dealtDamage", class type is Unit`,
			"Attacker: [Damage : 3][Health : 11]",
			"defender health = 18",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, out, _ := newEnv(t)
			runLesson(t, env, tt.name)
			assertContains(t, out.String(), tt.wants...)
		})
	}
}

func TestDamageLessonWarnsOnMissingFunction(t *testing.T) {
	env, _, errOut := newEnv(t)
	runLesson(t, env, "damage")
	assertContains(t, errOut.String(), "cannot find wolf_damage_func function")
}

func TestLessonsRegistry(t *testing.T) {
	ls := Lessons()
	if len(ls) != 8 {
		t.Fatalf("len(Lessons()) = %d, want 8", len(ls))
	}
	seen := make(map[string]bool)
	for _, l := range ls {
		if seen[l.Name] {
			t.Errorf("duplicate lesson %q", l.Name)
		}
		seen[l.Name] = true
		ok, err := DefaultStore().Exists(context.Background(), l.Script)
		if err != nil || !ok {
			t.Errorf("lesson %s: script %s not embedded (%v)", l.Name, l.Script, err)
		}
	}
	if _, err := Lookup("nope"); !errors.Is(err, ErrUnknownLesson) {
		t.Errorf("Lookup(nope) error = %v, want ErrUnknownLesson", err)
	}
}

func TestStoreOverride(t *testing.T) {
	dir := t.TempDir()
	src := "function add(x, y) return x * y end\nfunction multi(x, y, z) return 0, 0, 0 end\n"
	if err := os.WriteFile(filepath.Join(dir, "functions.lua"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	local, err := storage.NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	env, out, _ := newEnv(t)
	env.Store = storage.Chain{local, DefaultStore()}
	runLesson(t, env, "functions")
	runLesson(t, env, "hello")
	assertContains(t, out.String(), "add(3, 4) = 12", "[lua] hello world")
}

func TestLessonScriptError(t *testing.T) {
	env, _, _ := newEnv(t)
	env.Store = storage.Chain{
		storageMap(map[string]string{"units.lua": "function applyDamage(a, b) b:explode() end"}),
		DefaultStore(),
	}
	l, _ := Lookup("units")
	err := l.Exec(context.Background(), env)
	if !errors.Is(err, luabind.ErrMethodNotFound) {
		t.Errorf("error = %v, want ErrMethodNotFound", err)
	}
}

func TestLessonMissingScript(t *testing.T) {
	env, _, _ := newEnv(t)
	env.Store = storageMap(nil)
	l, _ := Lookup("hello")
	err := l.Exec(context.Background(), env)
	if !errors.Is(err, luabind.ErrScriptLoad) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want ErrScriptLoad wrapping ErrNotExist", err)
	}
}

func TestMonsterGetDamage(t *testing.T) {
	in, err := luabind.New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer in.Close()
	if err := in.LoadString("damage.lua", "function f(s) return s + 1 end\nfunction g(s) return 'x' end"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		fn      string
		want    int
		wantErr error
	}{
		{"f", 5, nil},
		{"g", -1, luabind.ErrTypeMismatch},
		{"missing", -1, luabind.ErrNotCallable},
	}
	for _, tt := range tests {
		m := &Monster{Name: "m", Strength: 4, DamageFunction: tt.fn}
		got, err := m.GetDamage(in)
		if got != tt.want || !errors.Is(err, tt.wantErr) {
			t.Errorf("GetDamage(%s) = %d, %v; want %d, %v", tt.fn, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestUnitDealtDamageClamps(t *testing.T) {
	u := &Unit{Health: 5}
	u.DealtDamage(9)
	if u.Health != 0 {
		t.Errorf("Health = %d, want 0", u.Health)
	}
}

func TestAfterRunSeesTrace(t *testing.T) {
	env, _, _ := newEnv(t)
	env.Options = []luabind.Option{luabind.WithTrace(16)}
	var crossings []luabind.Crossing
	env.AfterRun = func(in *luabind.Interpreter) {
		crossings = in.Trace()
	}
	runLesson(t, env, "units")

	var calls, callbacks int
	for _, c := range crossings {
		switch {
		case c.Dir == luabind.HostToScript && c.Name == "applyDamage":
			calls++
		case c.Dir == luabind.ScriptToHost:
			callbacks++
		}
	}
	if calls != 2 || callbacks != 4 {
		t.Errorf("trace has %d applyDamage calls and %d callbacks, want 2 and 4: %+v", calls, callbacks, crossings)
	}
}
