package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"file.share/config"
	"file.share/internal/api"
	"file.share/internal/blob"
	"file.share/internal/logging"
	"file.share/internal/service"
	"file.share/internal/store"

	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	}, os.Stdout)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		return err
	}

	set, err := backend.secrets.IsSet(ctx)
	if err != nil {
		return fmt.Errorf("read password state: %w", err)
	}
	if !set {
		log.Warn("no password configured, visit /setup to set one", "url", cfg.Server.BaseURL+"/setup")
	}

	svc := api.Services{
		Upload: service.NewUploadService(backend.files, backend.secrets, blobs, service.UploadConfig{
			MaxFileSize:       cfg.Upload.MaxSize,
			AllowedExtensions: cfg.Upload.AllowedExtensions,
		}, log),
		Download: service.NewDownloadService(backend.files, blobs, log),
		Password: service.NewPasswordService(backend.secrets, log),
		Files:    service.NewFileService(backend.files, backend.secrets, blobs, log),
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.SetupRouter(svc, cfg, log),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	log.Info("server starting",
		"addr", cfg.Addr(),
		"base_url", cfg.Server.BaseURL,
		"store", cfg.Store.Type,
		"blob", cfg.Blob.Type,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// backend bundles the registry and secret store with whatever connection
// they share.
type backend struct {
	files   store.Registry
	secrets store.SecretStore
	closers []io.Closer
}

func (b *backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Store.Type {
	case "memory":
		files, err := store.NewMemoryRegistry("")
		if err != nil {
			return nil, err
		}
		secrets, err := store.NewMemorySecretStore("")
		if err != nil {
			return nil, err
		}
		return &backend{files: files, secrets: secrets, closers: []io.Closer{files, secrets}}, nil

	case "file":
		files, err := store.NewMemoryRegistry(cfg.FilesPath())
		if err != nil {
			return nil, fmt.Errorf("open file registry: %w", err)
		}
		secrets, err := store.NewMemorySecretStore(cfg.PasswordPath())
		if err != nil {
			files.Close()
			return nil, fmt.Errorf("open password file: %w", err)
		}
		return &backend{files: files, secrets: secrets, closers: []io.Closer{files, secrets}}, nil

	case "redis":
		client, err := store.NewRedisClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		files := store.NewRedisRegistry(client)
		secrets := store.NewRedisSecretStore(client)
		return &backend{files: files, secrets: secrets, closers: []io.Closer{files, secrets, client}}, nil

	case "sqlite":
		db, err := store.OpenSQLite(ctx, cfg.Store.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		files := store.NewSQLiteRegistry(db)
		secrets := store.NewSQLiteSecretStore(db)
		return &backend{files: files, secrets: secrets, closers: []io.Closer{files, secrets, db}}, nil
	}

	return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
}

func openBlobs(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.Blob.Type {
	case "disk":
		return blob.NewDiskStore(cfg.Blob.Dir)
	case "s3":
		return blob.NewMinioStore(ctx, blob.MinioConfig{
			Endpoint:  cfg.Blob.S3.Endpoint,
			AccessKey: cfg.Blob.S3.AccessKey,
			SecretKey: cfg.Blob.S3.SecretKey,
			Bucket:    cfg.Blob.S3.Bucket,
		})
	}
	return nil, fmt.Errorf("unknown blob type %q", cfg.Blob.Type)
}
