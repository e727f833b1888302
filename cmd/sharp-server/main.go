package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	imageprocessor "github.com/frankii91/sharp-web-resizing-images"
	"github.com/frankii91/sharp-web-resizing-images/adapters/imaging"
	"github.com/frankii91/sharp-web-resizing-images/adapters/storage"
	"github.com/frankii91/sharp-web-resizing-images/adapters/vips"
	"github.com/frankii91/sharp-web-resizing-images/config"
	"github.com/frankii91/sharp-web-resizing-images/core"
	"github.com/frankii91/sharp-web-resizing-images/hooks"
	"github.com/frankii91/sharp-web-resizing-images/ledger"
	"github.com/frankii91/sharp-web-resizing-images/transport/httpapi"
)

func main() {
	path := flag.String("config", os.Getenv("SHARP_CONFIG"), "path to the YAML config file")
	debug := flag.Bool("debug", false, "run gin in debug mode")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: hooks.ParseLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)
	log := hooks.NewSlogLogger(logger)

	if err := run(cfg, log, *debug); err != nil {
		logger.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log core.Logger, debug bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var codec core.Codec
	switch cfg.Codec.Driver {
	case "imaging":
		codec = imaging.NewCodec()
	default:
		v := vips.NewCodec(vips.CodecConfig{
			MaxCacheSize: cfg.Codec.MaxCacheSize,
			MaxWorkers:   cfg.Codec.Concurrency,
		})
		defer v.Shutdown()
		codec = v
	}

	mgr, closeStorage, err := buildStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStorage()

	metrics := hooks.NewInMemoryMetrics()
	mgr.SetMetrics(metrics)

	opts := []imageprocessor.Option{
		imageprocessor.WithLogger(log),
		imageprocessor.WithHooks(hooks.NewLoggingHook(log), hooks.NewMetricsHook(metrics)),
	}
	routerOpts := httpapi.Options{Storage: mgr, Metrics: metrics, Logger: log, Debug: debug}
	if cfg.Ledger.Enabled {
		l, err := ledger.Open(cfg.Ledger.DSN)
		if err != nil {
			return err
		}
		defer l.Close()
		opts = append(opts, imageprocessor.WithRecorder(l))
		routerOpts.Ledger = l
	}

	svc, err := imageprocessor.New(cfg, codec, mgr, opts...)
	if err != nil {
		return err
	}
	routerOpts.Service = svc

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.NewRouter(routerOpts),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server.start", "addr", srv.Addr, "codec", cfg.Codec.Driver, "storages", mgr.Kinds())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("server.shutdown", "timeout", cfg.Server.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	processed, failed := svc.Stats()
	log.Info("server.stopped", "processed", processed, "failed", failed)
	return nil
}

// buildStorage registers every destination the configuration enables.
func buildStorage(ctx context.Context, cfg config.Config, log core.Logger) (*storage.Manager, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	local, err := storage.NewLocal(cfg.Result.LocalDir, storage.NewMemoryDirCache())
	if err != nil {
		return nil, closeAll, err
	}
	mgr := storage.NewManager(local)

	if cfg.Result.MountDir != "" {
		var dirs core.DirectoryCache = storage.NewMemoryDirCache()
		if cfg.DirCache.Driver == "redis" {
			rc, err := storage.NewRedisDirCache(ctx, storage.RedisDirCacheConfig{
				Addr: cfg.DirCache.RedisAddr,
				Key:  cfg.DirCache.RedisPrefix,
			})
			if err != nil {
				closeAll()
				return nil, closeAll, err
			}
			closers = append(closers, func() { _ = rc.Close() })
			dirs = rc
		}
		mount, err := storage.NewMount(cfg.Result.MountDir, dirs)
		if err != nil {
			log.Warn("storage.mount.disabled", "dir", cfg.Result.MountDir, "error", err.Error())
		} else {
			mgr.Register(mount)
		}
	}

	if cfg.S3.Bucket != "" {
		client, err := storage.NewAWSClient(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
		if err != nil {
			closeAll()
			return nil, closeAll, err
		}
		s3, err := storage.NewObjectStorage(client)
		if err != nil {
			closeAll()
			return nil, closeAll, err
		}
		mgr.Register(s3)
	}

	if cfg.FTP.Host != "" {
		dialer := storage.NewFTPDialer(storage.FTPConfig{
			Host:     cfg.FTP.Host,
			Port:     cfg.FTP.Port,
			User:     cfg.FTP.User,
			Password: cfg.FTP.Password,
			TLS:      cfg.FTP.TLS,
			Timeout:  cfg.FTP.Timeout,
		})
		ftp, err := storage.NewFTP(dialer, cfg.FTP.BaseDir, log)
		if err != nil {
			closeAll()
			return nil, closeAll, err
		}
		mgr.Register(ftp)
	}
	return mgr, closeAll, nil
}
