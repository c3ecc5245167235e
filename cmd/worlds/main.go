package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/config"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/alienworlds/engine/internal/core/event"
	"github.com/alienworlds/engine/internal/data"
	"github.com/alienworlds/engine/internal/gfx"
	"github.com/alienworlds/engine/internal/gfx/headless"
	"github.com/alienworlds/engine/internal/graphics"
	"github.com/alienworlds/engine/internal/input"
	gonet "github.com/alienworlds/engine/internal/net"
	"github.com/alienworlds/engine/internal/prefab"
	"github.com/alienworlds/engine/internal/scripting"
	"github.com/alienworlds/engine/internal/system"
	"github.com/alienworlds/engine/internal/terrain"
	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type flags struct {
	config  string
	profile string
	scene   string
	seed    string
	frames  int
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", config.Path(config.EnvWorldsConfig, "config/worlds.toml"), "config file")
	flag.StringVar(&f.profile, "profile", "", "write a cpu, mem or trace profile to the working directory")
	flag.StringVar(&f.scene, "scene", "", "bundled scene name, overrides [scene] name")
	flag.StringVar(&f.seed, "seed", "", "world seed, overrides [scene] seed")
	flag.IntVar(&f.frames, "frames", -1, "stop after this many frames, overrides [engine] frames")
	flag.Parse()

	if stop := startProfile(f.profile); stop != nil {
		defer stop()
	}
	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func startProfile(mode string) func() {
	var opt func(*profile.Profile)
	switch mode {
	case "":
		return nil
	case "cpu":
		opt = profile.CPUProfile
	case "mem":
		opt = profile.MemProfile
	case "trace":
		opt = profile.TraceProfile
	default:
		fmt.Fprintf(os.Stderr, "unknown profile mode %q, profiling disabled\n", mode)
		return nil
	}
	return profile.Start(opt, profile.ProfilePath("."), profile.NoShutdownHook).Stop
}

func run(f flags) error {
	// 1. Config
	cfg, err := config.Load(f.config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if f.scene != "" {
		cfg.Scene.Name, cfg.Scene.Path = f.scene, ""
	}
	if f.seed != "" {
		cfg.Scene.Seed = f.seed
	}
	if f.frames >= 0 {
		cfg.Engine.Frames = f.frames
	}

	// 2. Logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Graphics backend
	backend, err := newBackend(cfg.Graphics, log)
	if err != nil {
		return fmt.Errorf("graphics backend: %w", err)
	}

	// 4. Scene and resources
	seed := worldSeed(cfg.Scene.Seed)
	sceneDef, err := loadScene(cfg.Scene)
	if err != nil {
		return err
	}
	res := graphics.NewResources()
	if err := sceneDef.Resources.Register(backend, res, seed); err != nil {
		// Entities using a failed resource surface as missing resources each frame.
		log.Warn("some scene resources failed to build", zap.Error(err))
	}
	log.Info("world",
		zap.String("scene", sceneDef.Name),
		zap.String("seed", data.FormatSeed(seed)),
		zap.Int("resources", res.Len()),
	)

	// 5. Scripting
	lua, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer lua.Close()

	// 6. World and systems
	world := ecs.NewWorld(log)
	world.SetTickRate(cfg.Engine.TickRate)
	bus := event.NewBus()
	controls := input.NewState()
	heights := terrain.NewHeightCache(backend, seed, cfg.Terrain.TileSize, log)
	opts := prefab.Options{Seed: seed, ColorSeed: data.ColorSeed(seed), ChunkSize: cfg.Terrain.ChunkSize}

	world.AddSystem(system.NewEventSystem(bus))
	world.AddSystem(system.NewPlayerInputSystem(controls, bus, log))
	world.AddSystem(system.NewFreeCameraInputSystem(controls))
	world.AddSystem(system.NewOrbitCameraInputSystem(controls))
	world.AddSystem(system.NewInsectAISystem(lua, uint64(seed), log))
	world.AddSystem(system.NewPhysicsSystem(heights, log))
	world.AddSystem(system.NewFollowSystem())
	world.AddSystem(system.NewOrbitCameraSystem())
	world.AddSystem(system.NewFollowCameraSystem(controls))
	world.AddSystem(system.NewTerrainSystem(cfg.Terrain, log))
	sounds := system.NewSoundSystem(logAudio{log: log.Named("audio")}, log)
	world.AddSystem(sounds)

	var client *gonet.Client
	if cfg.Network.Enabled {
		client = gonet.NewClient(cfg.Network.ServerAddress, cfg.Network.DialTimeout, log)
		netSys := system.NewNetworkSystem(client, bus, opts.Spawn, cfg.Network.LiveRate, cfg.Network.IdleRate, log)
		client.OnMessage(netSys.Deliver)
		world.AddSystem(netSys)
		// Queued until the socket opens.
		if err := client.Login(cfg.Network.PlayerName, seed); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		go func() {
			if err := client.Connect(ctx); err != nil {
				log.Warn("playing offline", zap.Error(err))
			}
		}()
		defer client.Close()
	}

	labels, err := prefab.Build(world, sceneDef, opts, log)
	if err != nil {
		return fmt.Errorf("build scene: %w", err)
	}
	placePlayer(ctx, world, backend, seed, labels, log)

	// 7. Main loop
	scene := graphics.NewMemScene()
	syncer := graphics.New(backend, res, graphics.Config{
		ChunksPerFrame:   cfg.Graphics.ChunksPerFrame,
		RemovalsPerFrame: cfg.Graphics.RemovalsPerFrame,
		RemovalDelay:     cfg.Graphics.RemovalDelay,
		InstanceCapacity: cfg.Graphics.InstanceCapacity,
	}, log)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		world.Run(ctx)
	}()

	err = drive(ctx, cfg.Engine, world, syncer, scene, log)

	world.Stop()
	<-stopped
	world.RemoveSystem(sounds)
	syncer.Close(scene)
	if client != nil && client.Connected() {
		if err := client.Logout(); err != nil {
			log.Debug("logout", zap.Error(err))
		}
	}
	log.Info("stopped", zap.Any("graphics", syncer.Stats()))
	return err
}

// drive runs the synchronizer once per frame until ctx ends or the frame
// limit is reached.
func drive(ctx context.Context, cfg config.EngineConfig, world *ecs.World, syncer *graphics.Synchronizer, scene *graphics.MemScene, log *zap.Logger) error {
	frame := cfg.FrameBudget
	if frame <= 0 {
		frame = time.Second / 60
	}
	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	report := time.NewTicker(time.Second)
	defer report.Stop()

	frames := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down", zap.Int("frames", frames))
			return nil

		case <-report.C:
			st := syncer.Stats()
			cameras, lights, instanced, meshes := scene.Counts()
			log.Info("frame stats",
				zap.Int("frames", frames),
				zap.Int("chunks_active", st.ChunksActive),
				zap.Int("chunks_generating", st.ChunksGenerating),
				zap.Int("chunks_queued", st.ChunksQueued),
				zap.Int("cameras", cameras),
				zap.Int("lights", lights),
				zap.Int("instanced", instanced),
				zap.Int("meshes", meshes),
			)

		case <-ticker.C:
			var err error
			world.Do(func() {
				err = safeFrame(func() error { return syncer.Update(ctx, world, scene) }, log)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				// Retried next frame; a missing resource may be registered later.
				log.Warn("frame incomplete", zap.Error(err))
			}
			frames++
			if cfg.Frames > 0 && frames >= cfg.Frames {
				log.Info("frame limit reached", zap.Int("frames", frames))
				return nil
			}
		}
	}
}

// safeFrame runs one frame update, turning a panic into an error so the
// frame is abandoned and retried instead of killing the driver.
func safeFrame(update func() error, log *zap.Logger) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("frame panic recovered", zap.Any("panic", rec))
			err = fmt.Errorf("frame panic: %v", rec)
		}
	}()
	return update()
}

func newBackend(cfg config.GraphicsConfig, log *zap.Logger) (gfx.Backend, error) {
	switch cfg.Backend {
	case "", "headless":
		return headless.New(log.Named("gfx"), headless.WithKernels(terrain.Kernels())), nil
	default:
		return nil, fmt.Errorf("%q: %w", cfg.Backend, gfx.ErrUnsupported)
	}
}

func loadScene(cfg config.SceneConfig) (*data.Scene, error) {
	if cfg.Path != "" {
		s, err := data.LoadScene(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", cfg.Path, err)
		}
		return s, nil
	}
	s, err := data.BundledScene(cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	return s, nil
}

func worldSeed(text string) uint32 {
	if text == "" {
		return rand.Uint32() & 0x7fffffff
	}
	return data.ParseSeed(text)
}

// placePlayer lifts the player to just above the ground under its spawn
// point before the world starts.
func placePlayer(ctx context.Context, world *ecs.World, b gfx.Backend, seed uint32, labels map[string]ecs.Entity, log *zap.Logger) {
	player, ok := labels["player"]
	if !ok {
		players := world.EntitiesWithComponent(component.KindPlayer).Sorted()
		if len(players) == 0 {
			return
		}
		player = players[0]
	}
	t, ok := ecs.Get[*component.Transform](world, player)
	if !ok {
		return
	}
	q, err := terrain.NewHeightQuery(b, log)
	if err != nil {
		log.Warn("spawn height unavailable", zap.Error(err))
		return
	}
	defer q.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	h, err := q.Query(t.Position.X(), t.Position.Y(), t.Position.Z(), seed).Wait(ctx)
	if err != nil {
		log.Warn("spawn height unavailable", zap.Error(err))
		return
	}
	t.Position[1] = max(t.Position.Y(), h+1)
	log.Info("player placed", zap.Uint32("entity", uint32(player)), zap.Float64s("position", t.Position[:]))
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
