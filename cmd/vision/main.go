package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ghrobotics/visiontrack/internal/config"
	"github.com/ghrobotics/visiontrack/internal/db"
	"github.com/ghrobotics/visiontrack/internal/geometry"
	"github.com/ghrobotics/visiontrack/internal/latest"
	"github.com/ghrobotics/visiontrack/internal/monitor"
	"github.com/ghrobotics/visiontrack/internal/monitoring"
	"github.com/ghrobotics/visiontrack/internal/posehistory"
	"github.com/ghrobotics/visiontrack/internal/robot"
	"github.com/ghrobotics/visiontrack/internal/serialmux"
	"github.com/ghrobotics/visiontrack/internal/timeutil"
	"github.com/ghrobotics/visiontrack/internal/tracker"
	"github.com/ghrobotics/visiontrack/internal/version"
	"github.com/ghrobotics/visiontrack/internal/vision"
)

var (
	configPath  = flag.String("config", "", "Path to tuning config JSON (defaults built in)")
	listen      = flag.String("listen", ":5800", "Listen address")
	dbPath      = flag.String("db", "matchlog.db", "Match log database path (empty disables logging)")
	devMode     = flag.Bool("dev", false, "Replay fixture lines instead of opening cameras")
	fixturePath = flag.String("fixture", "fixtures/jevois.txt", "Fixture file replayed in dev mode")
	ports       = flag.String("port", "", "Comma-separated serial ports, one per configured camera (default: discover)")
	verbose     = flag.Bool("verbose", false, "Log per-frame diagnostics")
)

// splitPorts parses the --port flag.
func splitPorts(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolvePorts assigns a serial device to every camera. Explicit --port
// values win, then ports from the config file, then discovered devices in
// order.
func resolvePorts(cams []config.CameraConfig, flagPorts []string, discover func() ([]string, error)) ([]string, error) {
	resolved := make([]string, len(cams))
	used := make(map[string]bool)
	missing := 0
	for i, cam := range cams {
		switch {
		case i < len(flagPorts):
			resolved[i] = flagPorts[i]
		case cam.Port != "":
			resolved[i] = cam.Port
		default:
			missing++
			continue
		}
		used[resolved[i]] = true
	}
	if missing == 0 {
		return resolved, nil
	}

	found, err := discover()
	if err != nil {
		return nil, err
	}
	var free []string
	for _, p := range found {
		if !used[p] {
			free = append(free, p)
		}
	}
	for i := range resolved {
		if resolved[i] != "" {
			continue
		}
		if len(free) == 0 {
			return nil, fmt.Errorf("no serial port for camera %q: discovered %d JeVois device(s)", cams[i].Name, len(found))
		}
		resolved[i], free = free[0], free[1:]
	}
	return resolved, nil
}

func readFixture(path string) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixtures file: %w", err)
	}
	var lines [][]byte
	for _, l := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, []byte(l))
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("fixtures file %s is empty", path)
	}
	return lines, nil
}

// newPoseHistory is empty until odometry arrives, so frames captured before
// then are dropped rather than placed against a made-up pose.
func newPoseHistory(cfg *config.TuningConfig) *posehistory.Buffer {
	return posehistory.NewBuffer(cfg.GetPoseHistoryCapacity(), cfg.GetMaxPoseStaleness())
}

func openCameras(cfg *config.TuningConfig) ([]serialmux.SerialMuxInterface, error) {
	cams := cfg.GetCameras()

	if *devMode {
		lines, err := readFixture(*fixturePath)
		if err != nil {
			return nil, err
		}
		muxes := make([]serialmux.SerialMuxInterface, 0, len(cams))
		for _, cam := range cams {
			muxes = append(muxes, serialmux.NewMockSerialMux(cam.Name, lines, 50*time.Millisecond))
		}
		return muxes, nil
	}

	paths, err := resolvePorts(cams, splitPorts(*ports), func() ([]string, error) {
		return serialmux.DiscoverCameras("")
	})
	if err != nil {
		return nil, err
	}

	opts := serialmux.PortOptions{BaudRate: cfg.GetSerialBaudRate()}
	muxes := make([]serialmux.SerialMuxInterface, 0, len(cams))
	for i, cam := range cams {
		m, err := serialmux.NewRealSerialMux(cam.Name, paths[i], opts)
		if err != nil {
			for _, opened := range muxes {
				opened.Close()
			}
			return nil, err
		}
		log.Printf("camera %s on %s", cam.Name, paths[i])
		muxes = append(muxes, m)
	}
	return muxes, nil
}

// Main
func main() {
	flag.Parse()
	monitoring.SetVerbose(*verbose)

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	log.Printf("visiontrack %s starting", version.String())

	cameras, err := openCameras(cfg)
	if err != nil {
		log.Fatalf("failed to open cameras: %v", err)
	}
	defer func() {
		for _, c := range cameras {
			c.Close()
		}
	}()
	for _, c := range cameras {
		if err := c.Initialize(); err != nil {
			log.Fatalf("failed to initialize camera: %v", err)
		}
		log.Printf("initialized camera %s", c.Name())
	}

	clock := timeutil.RealClock{}
	history := newPoseHistory(cfg)

	mounts := vision.MountsFromConfig(cfg)
	slots := make([]*latest.Slot[vision.Frame], len(cameras))
	loopCams := make([]robot.Camera, len(cameras))
	for i := range cameras {
		slots[i] = latest.NewSlot[vision.Frame]()
		loopCams[i] = robot.Camera{Mount: mounts[i], Slot: slots[i]}
	}

	loop := robot.NewLoop(tracker.ConfigFromTuning(cfg), history, loopCams)
	loop.Period = cfg.GetLoopPeriod()
	loop.Clock = clock

	var matchLog *db.DB
	if *dbPath != "" {
		if matchLog, err = db.NewDB(*dbPath); err != nil {
			log.Fatalf("Failed to open match log: %v", err)
		}
		defer matchLog.Close()
		loop.Records = robot.NewRecordQueue(matchLog, robot.DefaultRecordQueueSize)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *devMode {
		// No drive controller in dev mode: hold the robot at the field origin.
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := robot.HoldPose(ctx, history, clock, geometry.Pose2d{}, loop.Period); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("held pose stopped: %v", err)
			}
		}()
	}

	if loop.Records != nil {
		// match log writer
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := loop.Records.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("match log writer stopped: %v", err)
			}
			log.Print("match log writer terminated")
		}()
	}

	for i, cam := range cameras {
		// serial IO
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cam.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("camera %s: monitor stopped: %v", cam.Name(), err)
			}
			log.Printf("camera %s: monitor routine terminated", cam.Name())
		}()

		// frame parsing into the camera's slot
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, sub := cam.Subscribe()
			defer cam.Unsubscribe(id)
			if err := robot.ReadFrames(ctx, cam.Name(), sub, slots[i], clock); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("camera %s: reader stopped: %v", cam.Name(), err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("control loop stopped: %v", err)
		}
		log.Print("control loop terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		mux.Handle("/api/odometry", robot.OdometryHandler(history, clock))
		monitor.NewServer(loop).AttachAdminRoutes(mux)
		for _, cam := range cameras {
			cam.AttachAdminRoutes(mux)
		}
		if matchLog != nil {
			matchLog.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: mux,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
