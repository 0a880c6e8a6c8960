package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/recognizer"
	"github.com/kozaktomas/face-attendance/internal/web"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server and recognition loop",
	Long: `Start the Face Attendance web server.
The recognition loop opens the camera when the first client watches /video_feed
and releases it when the last one leaves. Recognized students are recorded once per day.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().String("camera", "", "Camera source (overrides CAMERA_SOURCE)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	if source := mustGetString(cmd, "camera"); source != "" {
		cfg.Camera.Source = source
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.gallery.Reload(ctx)
	if err != nil {
		return fmt.Errorf("loading gallery: %w", err)
	}
	logger.Info("gallery loaded", "students", n, "index", cfg.Recognition.Index)

	hub := recognizer.NewHub(cfg.Recognition.Buffer)
	stats := &recognizer.Stats{}
	run := func(runCtx context.Context) error {
		source, err := camera.Open(runCtx, &cfg.Camera)
		if err != nil {
			return &recognizer.CameraError{Err: err}
		}
		defer source.Close()

		loop := recognizer.NewLoop(source, a.detector, a.gallery, a.ledger, hub, recognizer.Options{
			Threshold:   cfg.Recognition.Threshold,
			Scale:       cfg.Recognition.Scale,
			JPEGQuality: cfg.Recognition.JPEGQuality,
			MaxFPS:      cfg.Recognition.MaxFPS,
			Stats:       stats,
		}, logger)
		return loop.Run(runCtx)
	}
	supervisor := recognizer.NewSupervisor(ctx, hub, run, stats, logger)

	server := web.NewServer(&cfg.Web, web.Deps{
		Students: a.repo,
		Enroller: a.enroller,
		Reporter: a.reporter,
		Stream:   supervisor,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Stopping the loop first closes open streams, which Shutdown would otherwise wait on.
		var errs []error
		if err := supervisor.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stopping recognition loop: %w", err))
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warn("systemd notify failed", "error", err)
	} else if sent {
		logger.Debug("notified systemd of readiness")
	}
	logger.Info("face attendance ready", "url", fmt.Sprintf("http://%s", server.Addr()), "camera", cfg.Camera.Source)

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("shut down cleanly")
	return nil
}
