package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	wallpaperplanner "github.com/menta2k/wallpaper-planner"
	"github.com/menta2k/wallpaper-planner/internal/config"
	"github.com/menta2k/wallpaper-planner/internal/utils"
	"github.com/menta2k/wallpaper-planner/pkg/client"
	"github.com/menta2k/wallpaper-planner/pkg/estimation"
	"github.com/menta2k/wallpaper-planner/pkg/ollama"
	"github.com/menta2k/wallpaper-planner/pkg/openaicompat"
	"github.com/menta2k/wallpaper-planner/pkg/processing"
	"github.com/menta2k/wallpaper-planner/pkg/session"
	"github.com/menta2k/wallpaper-planner/pkg/types"
	"github.com/menta2k/wallpaper-planner/pkg/visualization"
)

func main() {
	var (
		roomPath      = flag.String("room", "", "Room photo (file path or URL)")
		wallpaperPath = flag.String("wallpaper", "", "Wallpaper design image (file path or URL)")
		boxesFlag     = flag.String("boxes", "", "Wall regions in percent coordinates: x0,y0,x1,y1[;x0,y0,x1,y1...]")
		refFlag       = flag.String("ref", "door", "Calibration reference: door or a4")
		heightFlag    = flag.Float64("height", 0, "Door frame height in cm (door reference only, default 210)")
		backendFlag   = flag.String("backend", "", "Service backend: ollama or openai")
		urlFlag       = flag.String("url", "", "Service URL")
		modelFlag     = flag.String("model", "", "Analysis model name")
		synthFlag     = flag.String("synthmodel", "", "Synthesis model name")
		outFlag       = flag.String("out", "", "Output directory")
		overlayFlag   = flag.Bool("overlay", false, "Also write the room photo with the marked regions drawn in")
		sendSizeFlag  = flag.Int("sendsize", 0, "Max long side in pixels for images sent to the services (0 = keep)")
		sendQFlag     = flag.Int("sendq", 0, "JPEG quality for images sent to the services")
		configFlag    = flag.String("config", "", "Configuration file path")
		saveConfig    = flag.Bool("save-config", false, "Write the effective configuration to the default path and exit")
		verboseFlag   = flag.Bool("verbose", false, "Enable debug logging")
		versionFlag   = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *versionFlag {
		fmt.Printf("wallpaper-planner %s\n", wallpaperplanner.Version)
		return
	}

	cfg := loadConfig(*configFlag)
	applyOverrides(cfg, *backendFlag, *urlFlag, *modelFlag, *synthFlag, *outFlag, *sendSizeFlag, *sendQFlag)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *saveConfig {
		path := config.GetConfigPath()
		if err := cfg.SaveToFile(path); err != nil {
			log.Fatalf("Failed to save configuration: %v", err)
		}
		fmt.Printf("Configuration saved to %s\n", path)
		return
	}

	if *roomPath == "" || *wallpaperPath == "" || *boxesFlag == "" {
		fmt.Fprintln(os.Stderr, "Usage: wallpaper-planner -room <image> -wallpaper <image> -boxes <x0,y0,x1,y1[;...]> [options]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	backend := newBackend(cfg)
	controller := session.NewController(
		estimation.NewClient(backend, cfg.Service.AnalysisModel),
		visualization.NewClientWithOptions(backend, cfg.Service.SynthesisModel, client.ImageOptions{
			AspectRatio: cfg.Output.AspectRatio,
			Resolution:  cfg.Output.Resolution,
		}),
		logger,
	)

	processor := processing.NewProcessor()
	controller.SetRoomImage(loadImage(processor, cfg, *roomPath))
	controller.SetWallpaperImage(loadImage(processor, cfg, *wallpaperPath))

	boxes, err := parseBoxes(*boxesFlag)
	if err != nil {
		log.Fatalf("Invalid -boxes value: %v", err)
	}
	editor := controller.Editor()
	for _, b := range boxes {
		editor.BeginBox(b.Start)
		editor.UpdateBox(b.End)
		if !editor.CommitBox() {
			log.Fatalf("Region %.1f,%.1f,%.1f,%.1f is too small to commit", b.Start.X, b.Start.Y, b.End.X, b.End.Y)
		}
	}

	applyCalibration(controller, *refFlag, *heightFlag)

	fmt.Printf("Estimating wallpaper for %d region(s)...\n", editor.Count())
	if err := controller.Synthesize(context.Background()); err != nil {
		if controller.AuthRequired() {
			log.Fatalf("Authentication failed, check your API key: %v", err)
		}
		log.Fatalf("Synthesis failed: %v", err)
	}

	printResult(controller.Result())

	if err := utils.EnsureDir(cfg.Output.Dir); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	writeOutputs(processor, controller, cfg, *overlayFlag)
}

func loadConfig(path string) *config.Config {
	if path != "" {
		cfg, err := config.LoadFromFile(path)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		return cfg
	}
	defaultPath := config.GetConfigPath()
	if utils.FileExists(defaultPath) {
		cfg, err := config.LoadFromFile(defaultPath)
		if err != nil {
			log.Fatalf("Failed to load configuration from %s: %v", defaultPath, err)
		}
		return cfg
	}
	return config.Default()
}

func applyOverrides(cfg *config.Config, backend, url, model, synthModel, out string, sendSize, sendQ int) {
	if backend != "" {
		cfg.Service.Backend = backend
	}
	if url != "" {
		cfg.Service.URL = url
	}
	if model != "" {
		cfg.Service.AnalysisModel = model
	}
	if synthModel != "" {
		cfg.Service.SynthesisModel = synthModel
	}
	if out != "" {
		cfg.Output.Dir = out
	}
	if sendSize > 0 {
		cfg.Service.SendMaxDim = sendSize
	}
	if sendQ > 0 {
		cfg.Service.SendQuality = sendQ
	}
}

func newBackend(cfg *config.Config) client.VisionBackend {
	switch cfg.Service.Backend {
	case "ollama":
		backend, err := ollama.NewClient(cfg.Service.URL)
		if err != nil {
			log.Fatalf("Failed to create ollama client: %v", err)
		}
		return backend
	default:
		backend, err := openaicompat.NewClient(cfg.Service.URL, cfg.APIKey())
		if err != nil {
			log.Fatalf("Failed to create service client: %v", err)
		}
		return backend
	}
}

func loadImage(processor *processing.Processor, cfg *config.Config, source string) types.InlineImage {
	if utils.FileExists(source) && !utils.IsImageFile(source) {
		log.Fatalf("%s is not a supported image type (jpg, jpeg, png, webp)", source)
	}
	img, err := processor.LoadInlineImageSmart(source)
	if err != nil {
		log.Fatalf("Failed to load %s: %v", source, err)
	}
	prepared, err := processor.PrepareForModel(img, cfg.Service.SendMaxDim, cfg.Service.SendQuality)
	if err != nil {
		log.Fatalf("Failed to prepare %s: %v", source, err)
	}
	return prepared
}

func applyCalibration(controller *session.Controller, ref string, heightCm float64) {
	cal := controller.Calibration()
	switch strings.ToLower(ref) {
	case "a4":
		cal.SetReference(types.ReferenceA4Paper)
	case "door":
		cal.SetReference(types.ReferenceDoorFrame)
		if heightCm > 0 {
			if err := cal.SetCustomHeight(heightCm); err != nil {
				log.Fatalf("Invalid -height value: %v", err)
			}
		}
	default:
		log.Fatalf("Unknown -ref value %q (want door or a4)", ref)
	}
}

// parseBoxes parses "x0,y0,x1,y1;x0,y0,x1,y1" into boxes.
func parseBoxes(s string) ([]types.Box, error) {
	var boxes []types.Box
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("%q: want 4 comma-separated numbers", part)
		}
		vals := make([]float64, 4)
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", part, err)
			}
			if v < 0 || v > 100 {
				return nil, fmt.Errorf("%q: coordinates are percentages in 0..100", part)
			}
			vals[i] = v
		}
		boxes = append(boxes, types.Box{
			Start: types.Point{X: vals[0], Y: vals[1]},
			End:   types.Point{X: vals[2], Y: vals[3]},
		})
	}
	if len(boxes) == 0 {
		return nil, fmt.Errorf("no regions given")
	}
	return boxes, nil
}

func printResult(result *types.EstimationResult) {
	fmt.Printf("\nCalibration: %s (%.1f cm)\n", result.Calibration.ReferenceType, result.Calibration.RealWorldCm)
	fmt.Printf("Wallpaper master: %.0f x %.0f cm, roll %.0f x %.0f cm\n",
		result.Wallpaper.MasterWidthCm, result.Wallpaper.MasterHeightCm,
		result.Wallpaper.RollWidthCm, result.Wallpaper.RollLengthCm)
	for i, region := range result.Regions {
		strips := estimation.StripsForWidth(region.WidthCm, result.Wallpaper.RollWidthCm)
		fmt.Printf("Region %d: %.0f x %.0f cm (%.2f m²), %d strip(s)\n",
			i+1, region.WidthCm, region.HeightCm, region.AreaSqM, strips)
	}
	fmt.Printf("\nTotal rolls estimated: %d\n", result.TotalRollsEstimated)
}

func writeOutputs(processor *processing.Processor, controller *session.Controller, cfg *config.Config, overlay bool) {
	result := controller.Result()
	preview := controller.Preview()

	previewPath := filepath.Join(cfg.Output.Dir, "preview."+utils.ExtensionForMediaType(preview.MediaType))
	if err := processor.SaveInline(*preview, previewPath); err != nil {
		log.Fatalf("Failed to write preview: %v", err)
	}
	fmt.Printf("Preview written to %s (%s)\n", previewPath, utils.FormatFileSize(int64(len(preview.Data))))

	estimationPath := filepath.Join(cfg.Output.Dir, "estimation.json")
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal estimation: %v", err)
	}
	if err := os.WriteFile(estimationPath, data, 0o644); err != nil {
		log.Fatalf("Failed to write estimation: %v", err)
	}
	fmt.Printf("Estimation written to %s (%s)\n", estimationPath, utils.FormatFileSize(int64(len(data))))

	if overlay {
		room := controller.RoomImage()
		img, err := processor.RegionOverlay(*room, controller.Editor().Boxes())
		if err != nil {
			log.Fatalf("Failed to render region overlay: %v", err)
		}
		overlayPath := filepath.Join(cfg.Output.Dir, "regions."+cfg.Output.Format)
		if err := processor.SaveImage(img, overlayPath, cfg.Output.Format, cfg.Output.Quality, false); err != nil {
			log.Fatalf("Failed to write region overlay: %v", err)
		}
		fmt.Printf("Region overlay written to %s\n", overlayPath)
	}
}
