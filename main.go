// Package main provides the camera auto-capture entry point of the card
// scanner. See cmd/cardscan for the full command set.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"card-scanner/internal/app"
	"card-scanner/internal/camera"
	"card-scanner/internal/capture"
	"card-scanner/internal/config"
	"card-scanner/internal/pipeline"
	"card-scanner/internal/version"

	"github.com/joho/godotenv"
)

var (
	flagConfig = flag.String("config", "cardscan.yaml", "Configuration file")
	flagDevice = flag.String("device", "", "Camera index, video file or stream URL (overrides config)")
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	flag.Parse()
	log.Printf("Starting %s", version.String())

	_ = godotenv.Load()

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if *flagDevice != "" {
		cfg = cfg.WithCameraDevice(*flagDevice)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to start scanner: %v", err)
	}
	defer a.Close()

	dev, err := camera.OpenDevice(cfg.CameraDevice)
	if err != nil {
		log.Printf("Failed to open camera: %v", err)
		return
	}
	defer dev.Close()

	a.On(app.EventCapture, func(data interface{}) {
		ev := data.(capture.Event)
		log.Printf("Capture: card steady (confidence %.2f), identifying", ev.Confidence)
	})
	a.On(app.EventOutcome, func(data interface{}) {
		out := data.(*pipeline.Outcome)
		if !out.Succeeded() {
			log.Printf("Scan %s: %s, search manually", out.RunID, out.Code)
			return
		}
		top := out.Candidates()[0]
		log.Printf("Scan %s: %s %s (%s) via %s", out.RunID, top.Name, top.Number, top.SetName, out.Match.Query.Strategy)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.RunCamera(ctx, dev, nil); err != nil {
		log.Printf("Camera stopped: %v", err)
	}
}
