// Package scripting runs the Lua steering scripts used by AI systems.
package scripting

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

//go:embed scripts
var bundled embed.FS

// Engine wraps a single gopher-lua VM.
// Single-goroutine access only; callers hold the world turn.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine loads the bundled scripts, then every .lua file under
// scriptsDir/ai so a deployment can override individual functions.
// An empty scriptsDir loads the bundled scripts only.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if err := e.loadBundled(); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load bundled scripts: %w", err)
	}
	if scriptsDir != "" {
		if err := e.loadDir(filepath.Join(scriptsDir, "ai")); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load ai scripts: %w", err)
		}
	}
	return e, nil
}

// LoadString evaluates a chunk of Lua source in the engine's VM.
func (e *Engine) LoadString(src string) error {
	return e.vm.DoString(src)
}

func (e *Engine) loadBundled() error {
	return fs.WalkDir(bundled, "scripts", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".lua" {
			return err
		}
		src, err := bundled.ReadFile(path)
		if err != nil {
			return err
		}
		if err := e.vm.DoString(string(src)); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path), zap.Bool("bundled", true))
		return nil
	})
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// InsectContext is the state handed to insect_steer.
type InsectContext struct {
	Mode     string
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Target   mgl64.Vec3
	Grounded bool
	Rand     [4]float64 // uniform in [0, 1)
}

// InsectSteer is what insect_steer decided. Target and Yaw are only
// meaningful when their Has flags are set.
type InsectSteer struct {
	Mode      string
	Target    mgl64.Vec3
	HasTarget bool
	Accel     mgl64.Vec3
	Yaw       float64
	HasYaw    bool
}

// SteerInsect calls the Lua function insect_steer(ctx).
func (e *Engine) SteerInsect(c InsectContext) (InsectSteer, error) {
	fn := e.vm.GetGlobal("insect_steer")
	if fn == lua.LNil {
		return InsectSteer{}, fmt.Errorf("insect_steer not defined")
	}

	t := e.vm.NewTable()
	t.RawSetString("mode", lua.LString(c.Mode))
	t.RawSetString("position", e.vec(c.Position))
	t.RawSetString("velocity", e.vec(c.Velocity))
	t.RawSetString("target", e.vec(c.Target))
	t.RawSetString("grounded", lua.LBool(c.Grounded))
	r := e.vm.NewTable()
	for _, v := range c.Rand {
		r.Append(lua.LNumber(v))
	}
	t.RawSetString("rand", r)

	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, t); err != nil {
		return InsectSteer{}, fmt.Errorf("insect_steer: %w", err)
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return InsectSteer{}, fmt.Errorf("insect_steer returned %s, want table", ret.Type())
	}
	out := InsectSteer{Mode: c.Mode}
	if m, ok := tbl.RawGetString("mode").(lua.LString); ok {
		out.Mode = string(m)
	}
	if v, ok := tbl.RawGetString("target").(*lua.LTable); ok {
		out.Target, out.HasTarget = readVec(v), true
	}
	if v, ok := tbl.RawGetString("accel").(*lua.LTable); ok {
		out.Accel = readVec(v)
	}
	if y, ok := tbl.RawGetString("yaw").(lua.LNumber); ok {
		out.Yaw, out.HasYaw = float64(y), true
	}
	return out, nil
}

func (e *Engine) vec(v mgl64.Vec3) *lua.LTable {
	t := e.vm.NewTable()
	t.RawSetString("x", lua.LNumber(v[0]))
	t.RawSetString("y", lua.LNumber(v[1]))
	t.RawSetString("z", lua.LNumber(v[2]))
	return t
}

func readVec(t *lua.LTable) mgl64.Vec3 {
	return mgl64.Vec3{
		float64(lua.LVAsNumber(t.RawGetString("x"))),
		float64(lua.LVAsNumber(t.RawGetString("y"))),
		float64(lua.LVAsNumber(t.RawGetString("z"))),
	}
}

// Close releases the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
