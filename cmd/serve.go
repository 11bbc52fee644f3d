package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/pagesmith/internal/components"
	"github.com/conneroisu/pagesmith/internal/di"
	"github.com/conneroisu/pagesmith/internal/scheduler"
	"github.com/conneroisu/pagesmith/internal/server"
	"github.com/conneroisu/pagesmith/internal/watcher"
	"github.com/conneroisu/pagesmith/internal/websocket"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the editor API with live reload",
	Long: `Serve the editor API, the live-update websocket and the metrics
endpoint. Changes to pages, components and styles on disk are pushed to
connected editors. With publish.on_change the site is republished after
every change, and publish.interval republishes on a schedule.

Examples:
  pagesmith serve
  pagesmith serve --port 9000 --on-change
  pagesmith serve --publish-interval 15m`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "port to serve on")
	serveCmd.Flags().String("host", "localhost", "host to bind to")
	serveCmd.Flags().Bool("on-change", false, "republish after every change")
	serveCmd.Flags().Duration("publish-interval", 0, "republish on this interval (0 disables)")

	bindFlags(serveCmd.Flags(), map[string]string{
		"port":             "server.port",
		"host":             "server.host",
		"on-change":        "publish.on_change",
		"publish-interval": "publish.interval",
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	cfg := c.Config()
	logger := c.Logger()
	srv := server.New(server.Options{
		Config:    cfg,
		Pages:     c.Pages(),
		Publisher: c.Publisher(),
		Metrics:   c.Metrics(),
		Logger:    logger,
	})

	events := c.Catalog().Watch()
	defer c.Catalog().UnWatch(events)
	go forwardComponentEvents(events, srv.Broadcast)

	fw, err := watcher.NewFileWatcher(300*time.Millisecond, logger)
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Stop()
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.ExtFilter(".html", ".css"))
	fw.AddHandler(liveReload(c, srv))
	for _, dir := range []string{cfg.PagesPath(), cfg.ComponentsPath(), cfg.StylesPath()} {
		if err := fw.AddPath(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}

	if cfg.Publish.Interval > 0 {
		sched, err := scheduler.New(c.Publisher().PublishAll, logger)
		if err != nil {
			return err
		}
		if _, err := sched.SchedulePublish(cfg.Publish.Interval); err != nil {
			return err
		}
		sched.Start(ctx)
		defer sched.Stop(context.Background())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()
	fmt.Fprintf(cmd.OutOrStdout(), "Editor API on http://%s (metrics at /metrics)\n", srv.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info(shutdownCtx, "shutting down")
	return srv.Shutdown(shutdownCtx)
}

// forwardComponentEvents pushes catalog changes to editors until events
// is closed.
func forwardComponentEvents(events <-chan components.Event, broadcast func(websocket.UpdateMessage)) {
	for ev := range events {
		broadcast(websocket.UpdateMessage{
			Type:      websocket.MessageComponent,
			Target:    ev.ID,
			Content:   string(ev.Type),
			Timestamp: ev.Timestamp,
		})
	}
}

// liveReload tells editors about changed files and republishes when
// publish.on_change is set. A deleted component file drops the component
// from the catalog, which notifies editors through the catalog watcher.
func liveReload(c *di.ServiceContainer, srv *server.Server) watcher.ChangeHandler {
	cfg := c.Config()
	componentsDir := filepath.Clean(cfg.ComponentsPath())
	return func(events []watcher.ChangeEvent) error {
		ctx := context.Background()
		for _, event := range events {
			name := filepath.Base(event.Path)
			msg := websocket.UpdateMessage{Type: websocket.MessageReload, Target: name}
			if filepath.Dir(event.Path) == componentsDir {
				if event.Type == watcher.EventTypeDeleted {
					c.Catalog().Remove(strings.TrimSuffix(name, filepath.Ext(name)))
					continue
				}
				msg.Type = websocket.MessageComponent
			}
			srv.Broadcast(msg)
		}

		if !cfg.Publish.OnChange {
			return nil
		}
		report, err := c.Publisher().Publish(ctx, nil)
		if err != nil {
			return fmt.Errorf("republish: %w", err)
		}
		srv.Broadcast(websocket.UpdateMessage{Type: websocket.MessagePublished, Target: report.Site, Content: report.RunID})
		return nil
	}
}
