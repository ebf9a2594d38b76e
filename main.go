package main

import (
	"context"
	"flag"
	"image"
	"image/color"
	"image/draw"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kartenwerk/schallpappenspieler/internal/api"
	"github.com/kartenwerk/schallpappenspieler/internal/camera"
	"github.com/kartenwerk/schallpappenspieler/internal/catalog"
	"github.com/kartenwerk/schallpappenspieler/internal/config"
	"github.com/kartenwerk/schallpappenspieler/internal/deck"
	"github.com/kartenwerk/schallpappenspieler/internal/detect"
	"github.com/kartenwerk/schallpappenspieler/internal/pipeline"
	"github.com/kartenwerk/schallpappenspieler/internal/sheet"
	"github.com/kartenwerk/schallpappenspieler/internal/timeutil"
	"github.com/kartenwerk/schallpappenspieler/internal/track"
)

var (
	configPath = flag.String("config", "", "Path to a JSON config file (optional)")
	listen     = flag.String("listen", "", "Listen address override")
	devMode    = flag.Bool("dev", false, "Run with a synthetic camera instead of real hardware")
)

func main() {
	flag.Parse()

	cfg := config.EmptySpielerConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadSpielerConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	addr := cfg.GetListenAddr()
	if *listen != "" {
		addr = *listen
	}

	var source camera.FrameSource
	if *devMode {
		var err error
		source, err = newDevSource(cfg.GetCameraWidth(), cfg.GetCameraHeight())
		if err != nil {
			log.Fatalf("Failed to build dev frame source: %v", err)
		}
	} else {
		var err error
		source, err = camera.NewGstSource(camera.GstConfig{
			Device: cfg.GetCameraDevice(),
			Width:  cfg.GetCameraWidth(),
			Height: cfg.GetCameraHeight(),
			FPS:    float64(cfg.GetCameraFPS()),
		})
		if err != nil {
			log.Fatalf("Failed to open camera %s: %v", cfg.GetCameraDevice(), err)
		}
	}

	cat, err := catalog.Open(cfg.GetDatabasePath())
	if err != nil {
		log.Fatalf("Failed to open catalog database: %v", err)
	}
	defer cat.Close()

	loader := deck.NewController(deck.Config{
		WindowClassHint: cfg.GetWindowClassHint(),
		StepDelay:       cfg.GetStepDelay(),
		SearchHotkey:    cfg.GetSearchHotkey(),
		ResultTabCount:  cfg.GetResultTabCount(),
		LeftDeckKey:     cfg.GetLeftDeckKey(),
		RightDeckKey:    cfg.GetRightDeckKey(),
	})

	frames := &pipeline.FrameSlot{}
	detections := &pipeline.DetectionsSlot{}
	roi := &pipeline.ROIStore{}
	stats := &pipeline.Stats{}
	clock := timeutil.RealClock{}

	p := &pipeline.Pipeline{
		Capture: &pipeline.CaptureStage{
			Source: source,
			Frames: frames,
			Mirror: cfg.GetMirror(),
			Stats:  stats,
			Clock:  clock,
		},
		Detect: &pipeline.DetectStage{
			Detector:   detect.NewZXingDetector(cfg.GetTryHarder()),
			Frames:     frames,
			Detections: detections,
			ROI:        roi,
			Stats:      stats,
			Clock:      clock,
		},
		Runner: &pipeline.Runner{
			Frames:     frames,
			Detections: detections,
			Tracker: track.New(
				cfg.GetStableDuration(),
				cfg.GetDropoutDuration(),
				cfg.GetForgetDuration(),
			),
			Loader:     loader,
			Recorder:   cat,
			SplitRatio: cfg.GetSplitRatio(),
			Stats:      stats,
			Clock:      clock,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	server := api.New(addr, stats, roi, cat)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("Admin API listening on %s", addr)
		if err := server.ListenAndServe(ctx); err != nil && err != context.Canceled {
			log.Printf("API server error: %v", err)
			stop()
		}
	}()

	log.Printf("Pipeline starting (mirror=%v split=%.2f stable=%v)",
		cfg.GetMirror(), cfg.GetSplitRatio(), cfg.GetStableDuration())
	if err := p.Run(ctx); err != nil {
		log.Printf("Pipeline stopped with error: %v", err)
	}

	stop()
	wg.Wait()
	log.Printf("Shutdown complete")
}

// devSource loops a synthetic frame showing one QR card on the left half, so
// the whole pipeline can run without a camera or a window manager nearby.
type devSource struct {
	frame    *image.RGBA
	interval time.Duration

	closed chan struct{}
	once   sync.Once
}

func newDevSource(width, height int) (*devSource, error) {
	qr, err := sheet.EncodeQR("demo track", 200)
	if err != nil {
		return nil, err
	}

	frame := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(frame, frame.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	qrBounds := qr.Bounds()
	target := image.Rect(40, 40, 40+qrBounds.Dx(), 40+qrBounds.Dy())
	draw.Draw(frame, target, qr, qrBounds.Min, draw.Src)

	return &devSource{
		frame:    frame,
		interval: time.Second / 15,
		closed:   make(chan struct{}),
	}, nil
}

func (d *devSource) Read() (camera.Frame, error) {
	select {
	case <-d.closed:
		return camera.Frame{}, camera.ErrSourceClosed
	case <-time.After(d.interval):
	}

	// Copy so the mirror step downstream cannot corrupt the template.
	img := image.NewRGBA(d.frame.Bounds())
	copy(img.Pix, d.frame.Pix)
	return camera.Frame{Image: img, Stamp: time.Now()}, nil
}

func (d *devSource) Close() error {
	d.once.Do(func() { close(d.closed) })
	return nil
}
