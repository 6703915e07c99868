package cli

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/mchmarny/vascular/pkg/model"
	"github.com/mchmarny/vascular/pkg/report"
	urfave "github.com/urfave/cli/v3"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20
	bytesPerMB                = 1 << 20
)

var (
	//go:embed assets/* templates/*
	embedFS embed.FS

	portFlag = &urfave.IntFlag{
		Name:    "port",
		Usage:   "Port on which the server will listen (default: config server.port)",
		Sources: urfave.EnvVars(envPrefix + "PORT"),
	}

	noBrowserFlag = &urfave.BoolFlag{
		Name:    "no-browser",
		Aliases: []string{"nb"},
		Usage:   "Do not open browser automatically",
	}

	serverCmd = &urfave.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Start local web UI and JSON API",
		Action:  cmdStartServer,
		Flags: []urfave.Flag{
			portFlag,
			noBrowserFlag,
		},
	}
)

// server holds the dependencies of the HTTP handlers.
type server struct {
	db        *sql.DB
	scorer    *scorer
	info      *model.Info
	opts      report.Options
	maxUpload int64
	tmpl      *template.Template
}

func newServer(cfg *appConfig) (*server, error) {
	a, err := cfg.Artifacts()
	if err != nil {
		return nil, err
	}
	s, err := newScorer(cfg, false)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New("").ParseFS(embedFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &server{
		db:        cfg.DB,
		scorer:    s,
		info:      a.Info(),
		opts:      cfg.Config.ReportOptions(),
		maxUpload: cfg.Config.Server.MaxUploadMB * bytesPerMB,
		tmpl:      tmpl,
	}, nil
}

func cmdStartServer(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	srv, err := newServer(cfg)
	if err != nil {
		return err
	}

	port := cmd.Int(portFlag.Name)
	if port == 0 {
		port = cfg.Config.Server.Port
	}
	address := fmt.Sprintf("127.0.0.1:%d", port)

	s := &http.Server{
		Addr:           address,
		Handler:        logRequests(makeRouter(srv)),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	url := fmt.Sprintf("http://%s", address)
	slog.Info("server started", "address", url, "model", srv.info.Kind, "features", len(srv.info.Features))

	if cfg.Config.Server.OpenBrowser && !cmd.Bool(noBrowserFlag.Name) {
		openBrowser(url)
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func makeRouter(s *server) *http.ServeMux {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(embedFS)))
	mux.HandleFunc("GET /favicon.ico", faviconHandler)

	// Views
	mux.HandleFunc("GET /{$}", homeViewHandler(s))
	mux.HandleFunc("POST /predict", predictViewHandler(s))
	mux.HandleFunc("GET /runs/{id}", runViewHandler(s))
	mux.HandleFunc("GET /runs/{id}/roc.png", rocHandler(s))
	mux.HandleFunc("GET /runs/{id}/download", downloadHandler(s))

	// JSON API
	mux.HandleFunc("GET /healthz", healthAPIHandler(s))
	mux.HandleFunc("GET /api/model", modelAPIHandler(s))
	mux.HandleFunc("POST /api/predict", predictAPIHandler(s))
	mux.HandleFunc("GET /api/runs", runsAPIHandler(s))
	mux.HandleFunc("GET /api/runs/{id}", runAPIHandler(s))
	mux.HandleFunc("DELETE /api/runs/{id}", deleteRunAPIHandler(s))

	return mux
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("request",
			slog.Group("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("took", time.Since(start))))
	})
}

func openBrowser(url string) {
	var cmd string
	args := make([]string, 0, 1)

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
	case "linux":
		cmd = "xdg-open"
	default: // windows
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler"}
	}

	args = append(args, url)
	if err := exec.Command(cmd, args...).Start(); err != nil {
		slog.Error("failed to open browser", "error", err)
	}
}
