package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/listado/internal/feed"
	"github.com/lepinkainen/listado/internal/metrics"
	"github.com/lepinkainen/listado/internal/mirror"
	"github.com/lepinkainen/listado/internal/record"
)

// SyncCmd represents the sync command
type SyncCmd struct{}

func (s *SyncCmd) Run(ctx context.Context) error {
	return withApp(nil, func(a *app) error {
		result, err := a.sync.LoadAll(ctx)
		if err != nil {
			return err
		}
		logLoadResult(ctx, "sync", result)
		return nil
	})
}

// ListCmd represents the list command
type ListCmd struct {
	Page     int    `short:"p" help:"Page number, starting at 1" default:"1"`
	PageSize int    `short:"n" help:"Records per page (defaults to listing.pagesize)"`
	Format   string `short:"f" help:"Output format" enum:"table,json,yaml" default:"table"`
}

type listOutput struct {
	Page       int             `json:"page" yaml:"page"`
	PageSize   int             `json:"page_size" yaml:"page_size"`
	TotalPages int             `json:"total_pages" yaml:"total_pages"`
	Total      int             `json:"total" yaml:"total"`
	Records    []record.Record `json:"records" yaml:"records"`
}

func (l *ListCmd) Run(ctx context.Context) error {
	return withApp(nil, func(a *app) error {
		pageSize := l.PageSize
		if pageSize == 0 {
			pageSize = a.settings.PageSize
		}

		result, err := a.sync.LoadAll(ctx)
		if err != nil {
			return err
		}
		if result.Degraded {
			logLoadResult(ctx, "list", result)
		}

		records, err := a.sync.GetPage(ctx, l.Page, pageSize)
		if err != nil {
			return err
		}

		out := listOutput{
			Page:       l.Page,
			PageSize:   pageSize,
			TotalPages: a.sync.TotalPages(pageSize),
			Total:      a.sync.State().RecordCount,
			Records:    records,
		}
		return writeListing(l.Format, out)
	})
}

func writeListing(format string, out listOutput) error {
	switch format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	default:
		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tNOMBRE")
		for _, r := range out.Records {
			_, _ = fmt.Fprintf(w, "%d\t%s\n", r.ID, r.Name)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(stdout, "\nPage %d/%d (%d records)\n", out.Page, max(out.TotalPages, 1), out.Total)
		return err
	}
}

// AddCmd represents the add command
type AddCmd struct {
	ID      int64  `arg:"" help:"Record id"`
	Name    string `arg:"" help:"Record name"`
	Publish string `help:"Also publish the record to this broker destination, e.g. /app/register"`
}

func (c *AddCmd) Run(ctx context.Context) error {
	r := record.Record{ID: c.ID, Name: c.Name}

	return withApp(nil, func(a *app) error {
		// an empty store would otherwise count as valid once it holds r
		result, err := a.sync.LoadAll(ctx)
		if err != nil {
			return err
		}
		if result.Degraded {
			logLoadResult(ctx, "add", result)
		}

		if err := a.sync.AddRecord(ctx, r); err != nil {
			return err
		}
		slog.Info("Record added", "id", r.ID, "name", r.Name, "total", a.sync.State().RecordCount)

		if c.Publish == "" {
			return nil
		}
		return publish(ctx, a, c.Publish, r)
	})
}

var publishTimeout = 30 * time.Second

func publish(ctx context.Context, a *app, destination string, r record.Record) error {
	client := newFeedClient(a, nil)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := client.Run(runCtx, func(context.Context, record.Record) error { return nil }); err != nil {
			slog.Warn("Feed connection ended", "error", err)
		}
	}()
	defer func() { _ = client.Close() }()

	sendCtx, sendCancel := context.WithTimeout(ctx, publishTimeout)
	defer sendCancel()
	if err := client.Send(sendCtx, destination, r); err != nil {
		return fmt.Errorf("failed to publish record %d: %w", r.ID, err)
	}
	slog.Info("Record published", "id", r.ID, "destination", destination)
	return nil
}

// RefreshCmd represents the refresh command
type RefreshCmd struct{}

func (r *RefreshCmd) Run(ctx context.Context) error {
	return withApp(nil, func(a *app) error {
		result, err := a.sync.ForceRefresh(ctx)
		if err != nil {
			return err
		}
		logLoadResult(ctx, "refresh", result)
		return nil
	})
}

// WatchCmd represents the watch command
type WatchCmd struct {
	MetricsAddr string `help:"Serve Prometheus metrics on this address, e.g. :9090"`
}

var newFeedClient = func(a *app, m *metrics.Metrics) feedClient {
	return feed.NewWebSocket(a.settings, feed.WithMetrics(m))
}

type feedClient interface {
	Run(ctx context.Context, handler feed.Handler) error
	Send(ctx context.Context, destination string, body any) error
	Close() error
}

func (w *WatchCmd) Run(ctx context.Context) error {
	m := metrics.New()

	if w.MetricsAddr != "" {
		server := startMetricsServer(w.MetricsAddr, m)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	return withApp(m, func(a *app) error {
		a.sync.OnStateChange(func(st mirror.State) {
			slog.Debug("Mirror state changed", "initialized", st.Initialized, "records", st.RecordCount, "loading", st.Loading)
		})

		result, err := a.sync.LoadAll(ctx)
		if err != nil {
			return err
		}
		logLoadResult(ctx, "watch", result)

		client := newFeedClient(a, m)
		defer func() { _ = client.Close() }()

		slog.Info("Watching for registrations", "url", a.settings.FeedURL, "topic", a.settings.FeedTopic)
		err = client.Run(ctx, func(ctx context.Context, r record.Record) error {
			if err := a.sync.AddRecord(ctx, r); err != nil {
				return err
			}
			slog.Info("Registration received", "id", r.ID, "name", r.Name, "total", a.sync.State().RecordCount)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}

func startMetricsServer(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()
	slog.Info("Serving metrics", "addr", addr, "path", "/metrics")
	return server
}

// BrowseCmd represents the browse command
type BrowseCmd struct {
	PageSize int `short:"n" help:"Initial records per page: 10, 20, 50 or 100 (defaults to listing.pagesize)"`
}

func (b *BrowseCmd) Run(ctx context.Context) error {
	return withApp(nil, func(a *app) error {
		result, err := a.sync.LoadAll(ctx)
		if err != nil {
			return err
		}
		if result.Degraded {
			logLoadResult(ctx, "browse", result)
		}

		pageSize := b.PageSize
		if pageSize == 0 {
			pageSize = a.settings.PageSize
		}
		return runBrowser(ctx, a.sync, pageSize)
	})
}
