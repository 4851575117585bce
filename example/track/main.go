package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/BenCrafterRED/colortracker"
	"github.com/BenCrafterRED/colortracker/config"
	"github.com/BenCrafterRED/colortracker/store"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// applyFlags overrides the configuration with the flags given on the command
// line
func applyFlags(cfg *config.Config, fs *flag.FlagSet) error {

	var err error

	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}

		v := f.Value.String()

		switch f.Name {
		case "s":
			cfg.Source.Selector = v
		case "hue":
			cfg.Tracking.TargetHue, err = strconv.Atoi(v)
		case "t":
			cfg.Tracking.Threshold, err = strconv.Atoi(v)
		case "roi":
			cfg.Tracking.ROI, err = parseInts(v)
		case "ppu":
			cfg.Calibration.PixelsPerUnit, err = strconv.ParseFloat(v, 64)
			cfg.Calibration.Reference = nil
		case "unit":
			cfg.Calibration.Unit = v
		case "sigma":
			cfg.Analysis.Sigma, err = strconv.ParseFloat(v, 64)
		case "p":
			cfg.Analysis.Plots = strings.Split(v, ",")
		case "o":
			cfg.Analysis.Output = v
		case "html":
			cfg.Analysis.HTML = v
		case "a":
			cfg.Viewer.Addr = v
		case "db":
			cfg.Store.Path = v
		case "cpu":
			cfg.Source.CPUCores = v
		}

		if err != nil {
			err = fmt.Errorf("invalid -%s: %w", f.Name, err)
		}
	})

	if err != nil {
		return err
	}

	return config.Validate(cfg)
}

func parseInts(s string) ([]int, error) {

	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	out := make([]int, len(parts))

	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))

		if err != nil {
			return nil, err
		}

		out[i] = n
	}

	return out, nil
}

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags, flags that are set override the config file
	cfgFile := flag.String("c", "", "YAML configuration file")
	flag.String("s", "0", "Capture device index or video file/stream URI")
	flag.Int("hue", 0, "Target hue in OpenCV range 0-179")
	flag.Int("t", 20, "Intensity threshold 0-255")
	flag.String("roi", "", "Region of interest x1,y1,x2,y2 in frame pixels, empty for full frame")
	flag.Float64("ppu", 1, "Pixels per unit length")
	flag.String("unit", "cm", "Length unit [m|dm|cm|mm]")
	flag.Float64("sigma", 10, "Gaussian smoothing sigma in samples, 0 disables smoothing")
	flag.String("p", "velocity,acceleration", "Comma delimited list of series to plot")
	flag.String("o", "figure.png", "Output PNG figure")
	flag.String("html", "", "Optional interactive HTML chart output")
	flag.String("a", ":8080", "HTTP Address to run viewer on, format address:port")
	flag.String("db", "", "SQLite database to store sessions in")
	flag.String("cpu", "", "Comma delimited list of CPU cores to pin the capture loop to")
	preview := flag.Bool("preview", false, "Grey out the frame outside of the ROI")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	level := slog.LevelInfo

	if *debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Default()

	if *cfgFile != "" {
		var err error

		if cfg, err = config.Load(*cfgFile); err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
	}

	if err := applyFlags(cfg, flag.CommandLine); err != nil {
		log.Fatalf("Error in configuration: %v", err)
	}

	var db *store.DB

	if cfg.Store.Path != "" {
		var err error

		if db, err = store.Open(cfg.Store.Path); err != nil {
			log.Fatalf("Error opening session store: %v", err)
		}

		defer db.Close()
	}

	dev, err := colortracker.Open(cfg.Source.Selector, cfg.Source.ReadTimeout)

	if err != nil {
		log.Fatalf("Error opening capture device: %v", err)
	}

	log.Printf("Opened %s at %dx%d", dev.Selector(), dev.Width(), dev.Height())

	viewer := NewViewer(dev.Width(), dev.Height(), cfg.Viewer.Width, cfg.Viewer.Height)
	defer viewer.Close()

	trk, err := NewTracker(cfg, dev, db, viewer, logger)

	if err != nil {
		dev.Close()
		log.Fatalf("Error creating tracker: %v", err)
	}

	trk.SetPreview(*preview)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := trk.Start(ctx); err != nil {
		dev.Close()
		log.Fatalf("Error starting session: %v", err)
	}

	mux := http.NewServeMux()
	NewServer(trk, viewer).Routes(mux)

	srv := &http.Server{Addr: cfg.Viewer.Addr, Handler: mux}

	go func() {
		log.Printf("Open browser and view video at http://%s/stream", cfg.Viewer.Addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	// wait for an interrupt or the end of a video file.  A restart also
	// closes the done channel of the replaced source.
	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case <-trk.Done():
			running = !trk.Stats().Ended
		}
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.Shutdown(shutdown)

	if err := trk.Stop(shutdown); err != nil {
		log.Fatalf("Error finishing session: %v", err)
	}
}
