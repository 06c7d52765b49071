package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/VincentDePincent/EnderV3KE-integration/internal/filter"
	"github.com/VincentDePincent/EnderV3KE-integration/internal/metrics"
	"github.com/VincentDePincent/EnderV3KE-integration/internal/publish"
	"github.com/VincentDePincent/EnderV3KE-integration/internal/session"
	"github.com/VincentDePincent/EnderV3KE-integration/internal/snapshot"
)

// RunCmd runs the bridge until interrupted.
type RunCmd struct{}

// Run wires config, logging, metrics, the publisher, and the session
// manager, then blocks until SIGINT/SIGTERM.
func (c *RunCmd) Run(globals *Globals) error {
	cfg, err := globals.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	met := metrics.New()
	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           met.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("metrics listener started", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("metrics listener failed", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	var pub publish.Publisher = publish.Nop{}
	if cfg.MQTT.Enabled {
		mq, err := publish.NewMQTT(cfg.MQTT, log)
		if err != nil {
			return err
		}
		pub = mq
	} else {
		log.Info("MQTT publishing disabled")
	}
	defer pub.Close()

	var snap session.Snapshotter
	if cfg.Snapshot.URL != "" {
		snap = snapshot.New(snapshot.Config{
			URL:          cfg.Snapshot.URL,
			DestPath:     cfg.Snapshot.LocalPath,
			MaxBytes:     cfg.Snapshot.MaxBytes,
			AllowedTypes: cfg.Snapshot.AllowedTypes,
		})
	} else {
		log.Info("no snapshot URL configured; image downloads disabled")
	}

	mgr := session.New(session.Config{
		WSURL:            cfg.WSURL,
		PublishInterval:  cfg.Publish.Interval,
		SnapshotInterval: cfg.Snapshot.Interval,
		PublicImagePath:  cfg.Snapshot.PublicPath,
		BackoffMin:       cfg.Backoff.Min,
		BackoffMax:       cfg.Backoff.Max,
	}, filter.New(cfg.Tolerances), pub, snap, met, log)

	log.Info("bridge starting",
		zap.String("ws_url", cfg.WSURL),
		zap.String("mqtt_topic", cfg.MQTT.Topic),
		zap.Duration("publish_interval", cfg.Publish.Interval))

	return mgr.Run(ctx)
}
