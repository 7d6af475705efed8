package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"terrainstream/internal/config"
	"terrainstream/internal/stream"
	"terrainstream/internal/telemetry"
	"terrainstream/internal/terrain"
	"terrainstream/internal/world"
)

func main() {
	var (
		cfgPath   string
		pattern   string
		speed     float64
		radius    float64
		duration  time.Duration
		statsTick time.Duration
	)
	flag.StringVar(&cfgPath, "config", "", "path to terrain configuration file (JSON or YAML)")
	flag.StringVar(&pattern, "path", "line", "observer path: still, line or circle")
	flag.Float64Var(&speed, "speed", 40, "observer speed in world units per second")
	flag.Float64Var(&radius, "radius", 300, "radius of the circle path in world units")
	flag.DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	flag.DurationVar(&statsTick, "stats", 5*time.Second, "interval between stats log lines")
	flag.Parse()

	if wrote, err := writeConfigFromEnv(cfgPath); err != nil {
		log.Fatalf("sync config from environment: %v", err)
	} else if wrote {
		log.Printf("wrote configuration from environment to %s", cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	observer, err := scriptedObserver(pattern, speed, radius, time.Now())
	if err != nil {
		log.Fatalf("observer: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()
	if duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, duration)
		defer stop()
	}

	if err := run(ctx, cfg, observer, statsTick); err != nil {
		log.Fatalf("terrain stream exited with error: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, observer stream.Observer, statsEvery time.Duration) error {
	gen, err := terrain.NewGenerator(cfg, componentLogger("terrain"))
	if err != nil {
		return fmt.Errorf("initialise generator: %w", err)
	}

	store, err := world.NewStore(ctx, world.OptionsFromConfig(cfg, componentLogger("chunk-store")), gen)
	if err != nil {
		return fmt.Errorf("initialise chunk store: %w", err)
	}
	defer store.Close()

	scheduler, err := stream.New(store, stream.OptionsFromConfig(cfg.Streaming, componentLogger("stream")))
	if err != nil {
		return fmt.Errorf("initialise scheduler: %w", err)
	}

	var journal *telemetry.Journal
	if cfg.Telemetry.Path != "" {
		journal, err = telemetry.Open(cfg.Telemetry.Path)
		if err != nil {
			return fmt.Errorf("open telemetry journal: %w", err)
		}
		defer journal.Close()
		store.Subscribe(journal.Observe)
	}

	logger := componentLogger("terrainstream")
	logger.Printf("streaming seed=%d chunk=%.0f resolution=%d load=%d unload=%d workers=%d",
		cfg.World.Seed, cfg.World.ChunkSize, cfg.World.Resolution,
		cfg.Streaming.LoadDistance, cfg.Streaming.UnloadDistance, cfg.Streaming.Workers)

	lastStats := time.Now()
	var center world.ChunkCoord
	onTick := func(report stream.TickReport) {
		now := time.Now()
		center = report.Center
		if journal != nil {
			if err := journal.Flush(now, report, store.Stats()); err != nil {
				logger.Printf("telemetry flush failed: %v", err)
			}
		}
		if statsEvery > 0 && now.Sub(lastStats) >= statsEvery {
			lastStats = now
			logStats(logger, report.Center, store.Stats())
		}
	}

	err = scheduler.Run(ctx, observer, cfg.Streaming.TickRate.Duration(), onTick)
	logStats(logger, center, store.Stats())
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func logStats(logger *log.Logger, center world.ChunkCoord, st world.Stats) {
	logger.Printf("center=%s tracked=%d ready=%d generating=%d failed=%d queued=%d in-flight=%d generated=%d retries=%d permanent=%d resident=%s mean-generate=%s",
		center, st.Tracked, st.Ready, st.Generating, st.Failed, st.Queued, st.InFlight,
		st.Generated, st.Retries, st.Permanent,
		humanize.Bytes(uint64(max(st.ResidentBytes, 0))), st.MeanGenerate)
}

func componentLogger(name string) *log.Logger {
	return log.New(os.Stdout, name+" ", log.LstdFlags|log.Lmicroseconds)
}

// scriptedObserver walks a fixed path as a function of wall-clock time.
func scriptedObserver(pattern string, speed, radius float64, start time.Time) (stream.Observer, error) {
	if speed < 0 {
		return nil, fmt.Errorf("speed cannot be negative")
	}
	elapsed := func() float64 { return time.Since(start).Seconds() }

	switch pattern {
	case "still":
		return stream.ObserverFunc(func() (float64, float64) { return 0, 0 }), nil
	case "line":
		return stream.ObserverFunc(func() (float64, float64) { return speed * elapsed(), 0 }), nil
	case "circle":
		if radius <= 0 {
			return nil, fmt.Errorf("circle radius must be positive")
		}
		return stream.ObserverFunc(func() (float64, float64) {
			angle := speed * elapsed() / radius
			return radius * math.Cos(angle), radius * math.Sin(angle)
		}), nil
	default:
		return nil, fmt.Errorf("unknown observer path %q", pattern)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			return
		}

		time.AfterFunc(10*time.Second, func() {
			log.Printf("forced shutdown after timeout")
			os.Exit(1)
		})
	}()

	return ctx, cancel
}
