package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsync/internal/adapters/driven/metrics/prometheus"
	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
	"github.com/custodia-labs/docsync/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch [document-id...]",
	Short: "Connect and stream document changes",
	Long: `Opens the persistent channel, subscribes to the given documents and
prints connection, health and document changes until interrupted.

Arguments may be bare document ids or channels such as enhancement:42.`,
	RunE: runWatch,
}

var (
	watchMetricsAddr string
	watchAutoRetry   bool
	watchPoll        = time.Second
)

func init() {
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	watchCmd.Flags().BoolVar(&watchAutoRetry, "auto-retry", false, "Retry automatically after recovery is exhausted")
	rootCmd.AddCommand(watchCmd)
}

// channelsFromArgs accepts bare document ids or kind:id channels.
func channelsFromArgs(args []string) ([]domain.Channel, error) {
	out := make([]domain.Channel, 0, len(args))
	for _, arg := range args {
		if !strings.Contains(arg, ":") {
			out = append(out, domain.DocumentChannel(arg))
			continue
		}
		ch, err := domain.ParseChannel(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	channels, err := channelsFromArgs(args)
	if err != nil {
		return err
	}
	_, settings, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics driven.MetricsRecorder
	if watchMetricsAddr != "" {
		rec := prometheus.NewRecorder()
		metrics = rec
		shutdown := serveMetrics(watchMetricsAddr, rec.Handler())
		defer shutdown()
		cmd.Printf("Serving metrics on %s/metrics\n", watchMetricsAddr)
	}

	sess, err := sessionFactory(ctx, settings, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("closing session: %v", err)
		}
	}()

	return watchSession(ctx, cmd, sess, channels)
}

// watchSession drives an already constructed session until ctx ends.
func watchSession(ctx context.Context, cmd *cobra.Command, sess driving.SyncSession, channels []domain.Channel) error {
	st := newStyles(cmd.OutOrStdout())

	changed := make(chan struct{}, 1)
	cancel := sess.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	if err := sess.Refresh(ctx); err != nil {
		cmd.Println(st.Warn(fmt.Sprintf("Could not load documents: %v", err)))
	}
	if err := sess.Start(ctx); err != nil {
		cmd.Println(st.Warn(fmt.Sprintf("Initial connect failed, retrying in background: %v", err)))
	}
	for _, ch := range channels {
		if err := sess.Subscribe(ctx, ch); err != nil && !errors.Is(err, domain.ErrNotConnected) {
			return fmt.Errorf("subscribe %s: %w", ch, err)
		}
	}

	r := &reporter{cmd: cmd, st: st}
	r.report(sess)

	ticker := time.NewTicker(watchPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			cmd.Println(st.Muted("Stopping."))
			return nil
		case <-changed:
		case <-ticker.C:
		}
		r.report(sess)

		if watchAutoRetry && sess.Recovery().Status == domain.RecoveryExhausted {
			cmd.Println(st.Warn("Recovery exhausted, retrying."))
			if err := sess.Retry(ctx); err != nil {
				cmd.Println(st.Bad(fmt.Sprintf("Retry failed: %v", err)))
			}
		}
	}
}

// reporter prints only what changed since the last report.
type reporter struct {
	cmd *cobra.Command
	st  styles

	printed  bool
	phase    domain.ConnectionPhase
	channels string
	healthy  bool
	recovery domain.RecoveryStatus
	docs     map[string]string
}

func (r *reporter) report(sess driving.SyncSession) {
	first := !r.printed
	r.printed = true

	sock := sess.Socket()
	if first || sock.Phase != r.phase {
		line := fmt.Sprintf("%s %s", r.st.Title("Connection:"), r.st.Phase(sock.Phase))
		if sock.LastError != "" && !sock.Connected {
			line += r.st.Muted(" (" + sock.LastError + ")")
		}
		if sock.Reconnecting {
			line += r.st.Muted(fmt.Sprintf(" attempt %d", sock.ReconnectAttempts))
		}
		r.cmd.Println(line)
		r.phase = sock.Phase
	}

	active := sock.ActiveChannels()
	names := make([]string, len(active))
	for i, ch := range active {
		names[i] = ch.String()
	}
	if joined := strings.Join(names, ", "); joined != r.channels {
		r.cmd.Printf("%s %s\n", r.st.Title("Channels:"), joined)
		r.channels = joined
	}

	health := sess.Health()
	if first || health.Healthy != r.healthy {
		r.cmd.Printf("%s %s\n", r.st.Title("Health:"), r.st.Healthy(health.Healthy))
		r.healthy = health.Healthy
	}

	rec := sess.Recovery()
	if rec.Status != r.recovery && !(first && rec.Status == domain.RecoveryIdle) {
		line := fmt.Sprintf("%s %s", r.st.Title("Recovery:"), rec.Status)
		if rec.Attempts > 0 {
			line += fmt.Sprintf(" (%d attempt(s))", rec.Attempts)
		}
		r.cmd.Println(line)
	}
	r.recovery = rec.Status

	r.reportDocuments(sess.Documents())
}

func (r *reporter) reportDocuments(docs []domain.Document) {
	seen := make(map[string]string, len(docs))
	for i := range docs {
		d := docs[i]
		summary := d.Name + "\x00" + string(d.Status)
		seen[d.ID] = summary
		prev, ok := r.docs[d.ID]
		switch {
		case !ok:
			r.cmd.Printf("  + %s %s %s\n", r.st.Muted(d.ID), d.Name, r.st.Status(d.Status))
		case prev != summary:
			r.cmd.Printf("  ~ %s %s %s\n", r.st.Muted(d.ID), d.Name, r.st.Status(d.Status))
		}
	}
	for id := range r.docs {
		if _, ok := seen[id]; !ok {
			r.cmd.Printf("  - %s\n", r.st.Muted(id))
		}
	}
	r.docs = seen
}

// serveMetrics starts a /metrics server and returns its shutdown func.
func serveMetrics(addr string, handler http.Handler) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
