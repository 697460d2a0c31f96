// Command cardscan identifies trading cards from image files or a camera
// and manages the local catalog and collection.
//
// Usage: cardscan [-config cardscan.yaml] <command> [options]
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"card-scanner/internal/app"
	"card-scanner/internal/camera"
	"card-scanner/internal/capture"
	"card-scanner/internal/catalog"
	"card-scanner/internal/config"
	"card-scanner/internal/pipeline"
	"card-scanner/internal/version"

	"github.com/joho/godotenv"
)

var flagConfig = flag.String("config", "cardscan.yaml", "Configuration file")

const usage = `Usage: %s [-config file] <command> [options]

Commands:
  scan <image|dir>...     identify cards in still images
  camera                  auto-capture from a camera (press Enter to capture)
  import <catalog.yaml>   import sets and cards into the catalog
  add <card-id>           add a card to the collection
  collection              list the collection
  version                 print the version
`

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	flag.Usage = func() { fmt.Fprintf(os.Stderr, usage, os.Args[0]) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if cmd == "version" {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "scan":
		err = runScan(ctx, cfg, args)
	case "camera":
		err = runCamera(ctx, cfg, args)
	case "import":
		err = runImport(ctx, cfg, args)
	case "add":
		err = runAdd(ctx, cfg, args)
	case "collection":
		err = runCollection(ctx, cfg)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}

func runScan(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	strategy := fs.String("strategy", cfg.PreprocessStrategy, "Preprocess strategy: none, light, enhanced")
	autoAdd := fs.Bool("add", cfg.AutoAdd, "Add the best match to the collection")
	asJSON := fs.Bool("json", false, "Print outcomes as JSON")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("scan needs at least one image or directory")
	}

	cfg.PreprocessStrategy = *strategy
	cfg.AutoAdd = *autoAdd
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	src, err := camera.NewFiles(fs.Args(), false)
	if err != nil {
		return err
	}
	for i := 0; i < src.Len(); i++ {
		f, err := src.Frame()
		if err != nil {
			return err
		}
		fmt.Printf("=== Scanning image %d of %d (%dx%d) ===\n", i+1, src.Len(), f.Width, f.Height)
		out := a.Scan(ctx, f)
		if *asJSON {
			printJSON(out)
		} else {
			printOutcome(out)
		}
	}
	return nil
}

func runCamera(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("camera", flag.ExitOnError)
	device := fs.String("device", cfg.CameraDevice, "Camera index, video file or stream URL")
	auto := fs.Bool("auto", cfg.AutoCapture, "Capture automatically once the card is steady")
	fs.Parse(args)

	cfg = cfg.WithCameraDevice(*device)
	cfg.AutoCapture = *auto

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	dev, err := camera.OpenDevice(cfg.CameraDevice)
	if err != nil {
		return err
	}
	defer dev.Close()

	var last capture.State
	a.On(app.EventStatus, func(data interface{}) {
		s := data.(capture.Status)
		if s.State != last {
			fmt.Printf("[%s] confidence %.2f\n", s.State, s.AvgConfidence)
			last = s.State
		}
	})
	a.On(app.EventOutcome, func(data interface{}) {
		printOutcome(data.(*pipeline.Outcome))
	})

	manual := make(chan struct{})
	go func() {
		in := bufio.NewScanner(os.Stdin)
		for in.Scan() {
			select {
			case manual <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Printf("=== Watching %s (Enter captures, Ctrl-C quits) ===\n", cfg.CameraDevice)
	return a.RunCamera(ctx, dev, manual)
}

func runImport(ctx context.Context, cfg config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("import needs exactly one catalog file")
	}
	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer file.Close()

	f, err := catalog.ParseImport(file)
	if err != nil {
		return err
	}
	db, err := catalog.Open(cfg.CatalogDriver, cfg.CatalogDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Printf("=== Importing %d sets from %s ===\n", len(f.Sets), args[0])
	n, err := db.Import(ctx, f)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d cards\n", n)
	return nil
}

func runAdd(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	quantity := fs.Int("n", pipeline.DefaultQuantity, "Quantity")
	condition := fs.String("condition", pipeline.DefaultCondition, "Condition")
	variant := fs.String("variant", pipeline.DefaultVariant, "Variant")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("add needs exactly one card id")
	}

	db, err := catalog.Open(cfg.CatalogDriver, cfg.CatalogDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.AddCard(ctx, fs.Arg(0), *quantity, *condition, *variant); err != nil {
		return err
	}
	fmt.Printf("Added %d x %s (%s, %s)\n", *quantity, fs.Arg(0), *condition, *variant)
	return nil
}

func runCollection(ctx context.Context, cfg config.Config) error {
	db, err := catalog.Open(cfg.CatalogDriver, cfg.CatalogDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.Collection(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("=== Collection (%d entries) ===\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  %3d x %-24s %-8s %-20s %s / %s\n",
			e.Quantity, e.Name, e.Number, e.SetName, e.Condition, e.Variant)
	}
	return nil
}

func printOutcome(out *pipeline.Outcome) {
	fmt.Printf("Run %s: %s extraction, %s preprocessing, %v\n",
		out.RunID, out.Method, out.Strategy, out.Duration.Round(time.Millisecond))
	a := out.Attributes
	if a.CardName != "" {
		fmt.Printf("  Read: %q number=%q hp=%d attack=%q damage=%d energy=%s\n",
			a.CardName, a.CardNumber, a.HP, a.AttackName, a.AttackDamage, out.Energy)
	}
	if len(out.Profile.Dominant) > 0 {
		var hex []string
		for _, c := range out.Profile.Dominant {
			hex = append(hex, c.Hex())
		}
		fmt.Printf("  Colors: %s\n", strings.Join(hex, " "))
	}
	if !out.Succeeded() {
		fmt.Printf("  No match (%s): %v\n  Try a manual search.\n", out.Code, out.Err)
		return
	}
	fmt.Printf("  Matched via %s:\n", out.Match.Query.Strategy)
	for i, c := range out.Candidates() {
		if i == 5 {
			fmt.Printf("  ... %d more\n", len(out.Candidates())-5)
			break
		}
		fmt.Printf("  %d. %s %s (%s) [%s] score %.2f\n", i+1, c.Name, c.Number, c.SetName, c.Ref, c.Score)
	}
	if out.Added != "" {
		fmt.Printf("  Added %s to the collection\n", out.Added)
	}
}

func printJSON(out *pipeline.Outcome) {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Printf("failed to encode outcome: %v", err)
		return
	}
	fmt.Println(string(data))
}
