package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"variogo/internal/api"
	"variogo/pkg/backoff"
	"variogo/pkg/config"
	"variogo/pkg/core"
	"variogo/pkg/db"
	"variogo/pkg/logging"
	"variogo/pkg/model"
	"variogo/pkg/probe"
	"variogo/pkg/sensor"
	"variogo/pkg/sensor/mockbaro"
	"variogo/pkg/sensor/serialbaro"
	"variogo/pkg/session"
	"variogo/pkg/store"
	"variogo/pkg/synth"
	"variogo/pkg/tone"
	"variogo/pkg/version"
)

const defaultConfigPath = "configs/variogo.yaml"

var initConfig = flag.Bool("init-config", false, "Generate default config file and exit")

func main() {
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	configPath := os.Getenv("VARIOGO_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	if *initConfig {
		if err := config.GenerateDefault(configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated: " + configPath)
		return
	}

	if err := run(context.Background(), configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("VarioGo Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	prefs := config.NewProvider(appCfg, st)

	loader := tone.Loader{Primary: appCfg.Tone.Profile, Fallback: appCfg.Tone.Fallback}
	profile, src, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load tone profile: %w", err)
	}

	driver, err := initDriver(appCfg)
	if err != nil {
		return err
	}

	// Startup Probes
	probes := []probe.Probe{
		{Name: "Preferences Store", Check: probe.StateStoreCheck(st), Critical: true},
		{Name: "Tone Profile", Check: probe.ProfileCheck(loader), Critical: false},
		{Name: "Log Directory", Check: probe.WritableDirCheck(appCfg.Log.Server.Path), Critical: false},
	}
	if appCfg.Sensor.Driver == "serial" {
		probes = append(probes, probe.Probe{
			Name:     "Serial Barometer",
			Check:    probe.SerialPortCheck(appCfg.Sensor.Serial.Port, nil),
			Critical: false, // the session reports the sensor fault itself
		})
	}
	if appCfg.Audio.Output == "wav" {
		probes = append(probes, probe.Probe{
			Name:     "WAV Output Directory",
			Check:    probe.WritableDirCheck(appCfg.Audio.WAVPath),
			Critical: true,
		})
	}
	results := probe.Run(ctx, probes)
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	sess, err := initSession(ctx, appCfg, prefs, profile, driver)
	if err != nil {
		return err
	}
	sess.Events().Add(model.EventProfile, "Tone profile loaded", fmt.Sprintf("%s, %d points", src, len(profile.Points)))

	// Telemetry Handler (must be created before scheduler to receive updates)
	telH := api.NewTelemetryHandler()

	sched := setupScheduler(ctx, appCfg, prefs, sess, telH)
	go sched.Start(ctx)

	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		if err := sess.Run(ctx); err != nil {
			// The API stays up so the fault is visible to clients.
			slog.Error("Session: stopped", "error", err)
		}
	}()

	err = runServer(ctx, appCfg, sess, telH)
	cancel()
	<-sessionDone
	return err
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// initDriver returns the configured barometer. "none" yields a nil driver.
func initDriver(appCfg *config.Config) (sensor.Driver, error) {
	switch appCfg.Sensor.Driver {
	case "mock":
		mc := appCfg.Sensor.Mock
		cfg := mockbaro.Config{
			QNH:           mc.QNH,
			StartAltitude: mc.StartAltitude.Meters(),
			Noise:         mc.Noise,
			Loop:          mc.Loop,
		}
		if mc.Scenario != "" {
			segs, err := config.LoadScenario(mc.Scenario)
			if err != nil {
				return nil, fmt.Errorf("failed to load mock scenario: %w", err)
			}
			for _, s := range segs {
				cfg.Scenario = append(cfg.Scenario, mockbaro.Segment{
					Name:     s.Name,
					Duration: time.Duration(s.Duration),
					Rate:     s.Rate,
				})
			}
			slog.Info("Sensor: mock scenario loaded", "path", mc.Scenario, "segments", len(segs))
		}
		return mockbaro.New(cfg), nil
	case "serial":
		sc := appCfg.Sensor.Serial
		opts := serialbaro.PortOptions{
			BaudRate: sc.BaudRate,
			DataBits: sc.DataBits,
			StopBits: sc.StopBits,
			Parity:   sc.Parity,
		}
		opts, err := opts.Normalize()
		if err != nil {
			return nil, fmt.Errorf("invalid serial settings: %w", err)
		}
		return serialbaro.New(sc.Port, opts, serialbaro.OpenSerial), nil
	default:
		slog.Warn("Sensor: no driver configured")
		return nil, nil
	}
}

func initOutput(cfg *config.AudioConfig) synth.Output {
	switch cfg.Output {
	case "wav":
		return synth.NewWAVOutput(cfg.WAVPath, cfg.SampleRate)
	case "discard":
		return &synth.DiscardOutput{SampleRate: cfg.SampleRate, Pace: true}
	default:
		return synth.NewSpeakerOutput(cfg.SampleRate, time.Duration(cfg.Latency), cfg.Queue)
	}
}

func initSession(ctx context.Context, appCfg *config.Config, prefs config.Provider, profile *tone.Profile, driver sensor.Driver) (*session.Session, error) {
	ac := &appCfg.Audio
	syn := synth.New(ac.SampleRate, ac.BufferSize, synth.NewVolumeCell(1))
	player := synth.NewPlayer(syn, initOutput(ac), backoff.New(time.Duration(ac.Backoff.BaseDelay), time.Duration(ac.Backoff.MaxDelay)))

	periods := make([]time.Duration, 0, len(appCfg.Sensor.Periods))
	for _, p := range appCfg.Sensor.Periods {
		periods = append(periods, time.Duration(p))
	}

	sess, err := session.New(ctx, session.Options{
		Warmup:    time.Duration(appCfg.Sensor.Warmup),
		Smoothing: appCfg.Vario.Smoothing,
		Window:    appCfg.Vario.Window,
		MinDt:     time.Duration(appCfg.Vario.MinDt),
	}, session.Components{
		Sensors: sensor.NewManager(driver, periods, appCfg.Sensor.QueueSize),
		Profile: profile,
		Synth:   syn,
		Player:  player,
	}, prefs)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

func setupScheduler(ctx context.Context, cfg *config.Config, prefs config.Provider, sess *session.Session, telH *api.TelemetryHandler) *core.Scheduler {
	sched := core.NewScheduler(prefs.Heartbeat(ctx), sess, telH)
	sched.AddJob(core.NewAudioWatchdogJob(sess))
	sched.AddJob(core.NewUptimeJob(time.Duration(cfg.Ticker.Uptime)))
	return sched
}

func runServer(ctx context.Context, cfg *config.Config, sess *session.Session, telH *api.TelemetryHandler) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		telH,
		api.NewCalibrationHandler(sess),
		api.NewPreferencesHandler(sess),
		api.NewEventsHandler(sess.Events()),
		shutdownFunc,
	)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
