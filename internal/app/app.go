package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"contact-form/config"
	apiv1 "contact-form/internal/api/v1"
	"contact-form/internal/auth"
	"contact-form/internal/debug"
	"contact-form/internal/httpserver"
	"contact-form/internal/logging"
	"contact-form/internal/submissions"
	"contact-form/internal/ui"
)

const (
	defaultConfigPath  = "config.json"
	defaultLogDir      = "data"
	defaultLogFileName = "contactserver.log"
	defaultReadTimeout = 10 * time.Second
	shutdownGrace      = 15 * time.Second
)

// Options controls how the application boots and where it loads configuration from.
type Options struct {
	ConfigPath  string
	LogDir      string
	LogFile     string
	ReadTimeout time.Duration
	// Debug forces the page's diagnostic timeline on regardless of config.
	Debug bool
}

// Run wires dependencies together and blocks until the provided context is cancelled
// or the HTTP server exits with an error.
func Run(ctx context.Context, opts Options) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	opts = opts.withDefaults()

	logFile, err := configureLogging(filepath.Join(opts.LogDir, opts.LogFile))
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logFile.Close()
	logger := logging.New()

	appCfg, err := loadConfig(opts.ConfigPath, logger)
	if err != nil {
		return err
	}
	if opts.Debug {
		appCfg.Form.Debug = true
	}
	debug.Default.SetLogger(logger)
	debug.SetEnabled(appCfg.Form.Debug)

	srv, err := httpserver.New(httpserver.Config{
		Addr:         appCfg.Server.Addr,
		Port:         appCfg.Server.Port,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: appCfg.Form.Timeout() + opts.ReadTimeout,
		Logger:       logger,
		Handler:      buildRouter(appCfg, opts, logger),
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("graceful shutdown failed: %v", err)
			_ = srv.Close()
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func buildRouter(appCfg config.Config, opts Options, logger logging.Logger) http.Handler {
	store := submissions.NewStore(appCfg.Submissions.Path)
	nonces := auth.NewNonces(time.Duration(appCfg.Nonce.TTLSeconds)*time.Second, appCfg.Form.NonceHeader)

	return apiv1.NewRouter(apiv1.Options{
		Logger:         logger,
		Store:          store,
		Nonces:         nonces,
		Admin:          buildAdmin(appCfg.Admin),
		SubmitPath:     appCfg.Form.Endpoint,
		HoneypotName:   appCfg.Form.Markup.HoneypotName,
		FilesFieldName: appCfg.Form.Markup.FilesFieldName,
		MaxUploadBytes: appCfg.Submissions.MaxUploadBytes,
		UI: ui.Handler(ui.Options{
			Form:   appCfg.Form,
			Nonces: nonces,
			Logger: logger,
		}),
		RuntimeInfo: apiv1.RuntimeInfo{
			Name:        "contact-form",
			Addr:        appCfg.Server.Addr,
			Port:        appCfg.Server.Port,
			ReadTimeout: opts.ReadTimeout.String(),
			DataPath:    store.Path(),
		},
	})
}

// loadConfig falls back to defaults when the config file does not exist.
func loadConfig(path string, logger logging.Logger) (config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		logger.Printf("config %s not found, using defaults", path)
		return config.Default(), nil
	}
	return config.Config{}, err
}

func (o Options) withDefaults() Options {
	if o.ConfigPath == "" {
		o.ConfigPath = defaultConfigPath
	}
	if o.LogDir == "" {
		o.LogDir = defaultLogDir
	}
	if o.LogFile == "" {
		o.LogFile = defaultLogFileName
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = defaultReadTimeout
	}
	return o
}

func buildAdmin(cfg config.AdminConfig) *auth.Admin {
	return auth.NewAdmin(auth.AdminConfig{
		Email:    cfg.Email,
		Password: cfg.Password,
		TokenTTL: time.Duration(cfg.TokenTTLSeconds) * time.Second,
	})
}
