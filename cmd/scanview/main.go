package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/e7canasta/scanview/modules/config"
	"github.com/e7canasta/scanview/modules/paint"
	"github.com/e7canasta/scanview/modules/present"
	"github.com/e7canasta/scanview/modules/progress"
	"github.com/e7canasta/scanview/modules/session"
	"github.com/e7canasta/scanview/modules/transport"
	"github.com/muesli/termenv"
)

const (
	version = "v0.1.0"
)

// Options are the command-line settings that are not part of the config file
type Options struct {
	ConfigPath    string
	Jobs          int
	StatsInterval time.Duration
}

type settledJob struct {
	job session.Job
	img *image.RGBA
}

func main() {
	cfg, opts := parseFlags()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if !cfg.Present.Terminal {
		printBanner(cfg, opts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Shutdown signal received, stopping gracefully...")
		cancel()
	}()

	if err := runViewer(ctx, cfg, opts, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Viewer failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Viewer stopped")
}

func parseFlags() (*config.Config, Options) {
	var opts Options

	flag.StringVar(&opts.ConfigPath, "config", "", "YAML config file (optional)")
	flag.IntVar(&opts.Jobs, "jobs", 1, "Number of jobs to run back to back")
	var statsIntervalSec int
	flag.IntVar(&statsIntervalSec, "stats-interval", 5, "Statistics reporting interval (seconds, 0 disables)")

	// Overrides, applied only when set explicitly
	url := flag.String("url", "", "Producer websocket URL (ws:// or wss://)")
	width := flag.Int("width", 0, "Job width in pixels")
	samples := flag.Int("samples", 0, "Job sample count")
	aspect := flag.Float64("aspect", 0, "Aspect ratio (height = width / aspect)")
	fps := flag.Int("fps", 0, "Paint ticks per second")
	batch := flag.Int("batch", 0, "Scanlines composited per tick")
	terminal := flag.Bool("terminal", false, "Draw the image in the terminal")
	columns := flag.Int("columns", 0, "Terminal column budget")
	output := flag.String("output", "", "Save the settled image to this path")
	format := flag.String("format", "", "Output format: png, jpeg or ppm")
	jpegQuality := flag.Int("jpeg-quality", 0, "JPEG quality (1-100)")
	mqttBroker := flag.String("mqtt-broker", "", "MQTT broker for progress updates (host:port)")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.Producer.URL = *url
		case "width":
			cfg.Job.Width = *width
		case "samples":
			cfg.Job.Samples = *samples
		case "aspect":
			cfg.Job.AspectRatio = *aspect
		case "fps":
			cfg.Paint.FPS = *fps
		case "batch":
			cfg.Paint.BatchSize = *batch
		case "terminal":
			cfg.Present.Terminal = *terminal
		case "columns":
			cfg.Present.Columns = *columns
		case "output":
			cfg.Output.Path = *output
		case "format":
			cfg.Output.Format = *format
		case "jpeg-quality":
			cfg.Output.JPEGQuality = *jpegQuality
		case "mqtt-broker":
			cfg.MQTT.Broker = *mqttBroker
		case "debug":
			if *debug {
				cfg.Log.Level = "debug"
			}
		}
	})

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}
	if opts.Jobs < 1 {
		fmt.Fprintf(os.Stderr, "Error: invalid jobs %d (must be >= 1)\n", opts.Jobs)
		os.Exit(1)
	}

	opts.StatsInterval = time.Duration(statsIntervalSec) * time.Second
	return cfg, opts
}

func runViewer(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger) error {
	// 1. Progress fan-out (optional MQTT)
	bus := progress.New()
	defer bus.Close()

	var emitter *progress.MQTTEmitter
	if cfg.MQTT.Broker != "" {
		emitter = progress.NewMQTTEmitter(progress.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
			ClientID: cfg.MQTT.ClientID,
			Logger:   logger,
		})
		if err := emitter.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect mqtt: %w", err)
		}
		defer emitter.Close()

		receiver, err := bus.SubscribeLatest("mqtt")
		if err != nil {
			return fmt.Errorf("failed to subscribe mqtt emitter: %w", err)
		}
		go emitter.Run(ctx, receiver)
		logger.Info("MQTT progress enabled", "broker", cfg.MQTT.Broker, "topic", cfg.MQTT.Topic)
	}

	// 2. Presentation surfaces
	var surfaces []paint.Presenter
	if cfg.Present.Terminal {
		surfaces = append(surfaces, present.NewTerminal(termenv.NewOutput(os.Stdout), cfg.Present.Columns))
	}

	var bitmap *present.Bitmap
	if cfg.Present.BitmapWidth > 0 {
		scaler, err := present.ParseScaler(cfg.Present.Scaler)
		if err != nil {
			return err
		}
		height := cfg.Present.BitmapHeight
		if height == 0 {
			height = int(float64(cfg.Present.BitmapWidth) / cfg.Job.AspectRatio)
		}
		bitmap, err = present.NewBitmap(cfg.Present.BitmapWidth, height, scaler)
		if err != nil {
			return fmt.Errorf("failed to create bitmap surface: %w", err)
		}
		surfaces = append(surfaces, bitmap)
	}

	// 3. Image saver (optional)
	var saver *ImageSaver
	if cfg.Output.Path != "" {
		var err error
		saver, err = NewImageSaver(cfg.Output.Path, cfg.Output.Format, cfg.Output.JPEGQuality, opts.Jobs > 1)
		if err != nil {
			return fmt.Errorf("failed to create image saver: %w", err)
		}
		logger.Info("Image saving enabled", "path", cfg.Output.Path, "format", saver.Format())
	}

	// 4. Lifecycle controller
	settled := make(chan settledJob, opts.Jobs)
	ctrl, err := session.New(session.Options{
		PaintFPS:  cfg.Paint.FPS,
		BatchSize: cfg.Paint.BatchSize,
		Presenter: present.NewMulti(surfaces...),
		Progress:  bus,
		OnSettled: func(job session.Job, img *image.RGBA) {
			select {
			case settled <- settledJob{job: job, img: img}:
			default:
			}
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	go func() {
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Session loop failed", "error", err)
		}
	}()

	// 5. Statistics reporter (stdout belongs to the terminal surface when enabled)
	var current atomic.Pointer[transport.Client]
	if opts.StatsInterval > 0 && !cfg.Present.Terminal {
		go reportStats(ctx, opts.StatsInterval, ctrl, current.Load, bus, emitter)
	}

	// 6. Jobs, one producer connection each
	for n := 1; n <= opts.Jobs; n++ {
		job, err := session.NewJob(cfg.Job.Width, cfg.Job.Samples, cfg.Job.AspectRatio)
		if err != nil {
			return err
		}

		client, err := transport.Dial(ctx, transport.Options{
			URL: cfg.Producer.URL,
			Reconnect: transport.ReconnectConfig{
				MaxRetries:    cfg.Producer.Reconnect.MaxRetries,
				RetryDelay:    cfg.Producer.Reconnect.RetryDelay,
				MaxRetryDelay: cfg.Producer.Reconnect.MaxRetryDelay,
			},
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("failed to connect producer: %w", err)
		}
		current.Store(client)

		result, err := runJob(ctx, ctrl, client, job, settled, logger)
		client.Close()
		if err != nil {
			return err
		}

		logger.Info("Job complete", "n", n, "of", opts.Jobs, "job_id", job.ID)
		if saver != nil {
			var preview *image.RGBA
			if bitmap != nil {
				preview = bitmap.Image()
			}
			if err := saver.Save(n, result.img, preview); err != nil {
				logger.Error("Failed to save image", "job_id", job.ID, "error", err)
			}
		}
	}

	printFinalStats(ctrl, current.Load(), bus, emitter, saver)
	return nil
}

// runJob posts the job start before sending the command, so the controller
// knows the dimensions before any scanline can arrive.
func runJob(
	ctx context.Context,
	ctrl session.Controller,
	client *transport.Client,
	job session.Job,
	settled <-chan settledJob,
	logger *slog.Logger,
) (settledJob, error) {
	if err := ctrl.Post(ctx, session.JobStart(job)); err != nil {
		return settledJob{}, err
	}
	if err := client.StartJob(ctx, transport.JobSettings{Width: job.Width, Samples: job.Samples}); err != nil {
		return settledJob{}, fmt.Errorf("failed to start job: %w", err)
	}
	logger.Info("Job requested", "job_id", job.ID, "width", job.Width, "height", job.Height)

	go client.Run(ctx, session.NewSink(ctx, ctrl, job.ID))

	for {
		select {
		case <-ctx.Done():
			return settledJob{}, ctx.Err()
		case s := <-settled:
			if s.job.ID == job.ID {
				return s, nil
			}
		}
	}
}

func printBanner(cfg *config.Config, opts Options) {
	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║    Scanview - Progressive Scanline Viewer                     ║")
	fmt.Printf("║                    Version %-30s     ║\n", version)
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  Producer:        %s\n", cfg.Producer.URL)
	fmt.Printf("  Job:             width=%d samples=%d aspect=%.3f\n", cfg.Job.Width, cfg.Job.Samples, cfg.Job.AspectRatio)
	fmt.Printf("  Jobs:            %d\n", opts.Jobs)
	fmt.Printf("  Paint:           %d fps, batch %d\n", cfg.Paint.FPS, cfg.Paint.BatchSize)
	if cfg.Output.Path != "" {
		fmt.Printf("  Output:          %s\n", cfg.Output.Path)
	}
	if cfg.MQTT.Broker != "" {
		fmt.Printf("  MQTT:            %s (%s)\n", cfg.MQTT.Broker, cfg.MQTT.Topic)
	}
	fmt.Printf("  Stats Interval:  %v\n", opts.StatsInterval)
	fmt.Println()
	fmt.Println("Pipeline:")
	fmt.Println("  producer → transport → session (ingest → paint) → surfaces")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()
}
