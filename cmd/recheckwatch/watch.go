package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/andygrunwald/go-gerrit"
	"github.com/spf13/cobra"

	"github.com/jihwankim/recheckwatch/pkg/catalog"
	"github.com/jihwankim/recheckwatch/pkg/channels"
	"github.com/jihwankim/recheckwatch/pkg/classify"
	"github.com/jihwankim/recheckwatch/pkg/config"
	"github.com/jihwankim/recheckwatch/pkg/events"
	"github.com/jihwankim/recheckwatch/pkg/logging"
	"github.com/jihwankim/recheckwatch/pkg/metrics"
	"github.com/jihwankim/recheckwatch/pkg/orchestrator"
	"github.com/jihwankim/recheckwatch/pkg/readiness"
	"github.com/jihwankim/recheckwatch/pkg/report"
	"github.com/jihwankim/recheckwatch/pkg/search"
	"github.com/jihwankim/recheckwatch/pkg/shutdown"
)

var watchCmd = &cobra.Command{
	Use:   "watch <configfile>",
	Args:  cobra.ExactArgs(1),
	Short: "Run the watch loop against the given process config file",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().BoolP("foreground", "f", false, "log human-readable text at debug level instead of JSON at info level")
	watchCmd.Flags().BoolP("nocomment", "n", false, "compose and log review comments without posting them")
	watchCmd.Flags().Bool("noirc", false, "disable chat dispatch entirely")
	watchCmd.Flags().String("metrics-addr", ":9122", "address to serve /metrics on")
}

func runWatch(cmd *cobra.Command, args []string) error {
	foreground, _ := cmd.Flags().GetBool("foreground")
	nocomment, _ := cmd.Flags().GetBool("nocomment")
	noirc, _ := cmd.Flags().GetBool("noirc")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}

	format := logging.FormatJSON
	level := logging.LevelInfo
	if foreground {
		format = logging.FormatText
		level = logging.LevelDebug
	}
	log := logging.New(logging.Config{Level: level, Format: format, Output: os.Stdout})

	shutdownCtrl, ctx := shutdown.New(context.Background(), log)
	go shutdownCtrl.Watch(ctx)

	searchClient, err := search.New(search.Config{
		URL:            cfg.DataSource.ESURL,
		IndexFormat:    cfg.DataSource.IndexFormat,
		RequestTimeout: cfg.DataSource.RequestTimeout,
	}, log.WithField("component", "search"))
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	catalogLoader := catalog.New(cfg.Recheckwatch.CatalogDir, log.WithField("component", "catalog"))
	classifier := classify.New(catalogLoader, searchClient, classify.NoTestResultDB{}, log.WithField("component", "classify"))

	readinessGate := readiness.New(searchClient, readiness.Config{
		Retries:          cfg.Readiness.Retries,
		SleepTime:        cfg.Readiness.SleepTime,
		GraceSleep:       cfg.Readiness.GraceSleep,
		IntegrationRegex: compileOptional(cfg.Recheckwatch.IntegrationJobsRegex),
	}, log.WithField("component", "readiness"))

	gatingRegex, err := regexp.Compile(cfg.Recheckwatch.JobsRegex)
	if err != nil {
		return fmt.Errorf("watch: compile jobs_regex: %w", err)
	}

	eventSource, err := events.New(events.Config{
		Host:         cfg.EventSource.Host,
		User:         cfg.EventSource.User,
		CIUsername:   cfg.Recheckwatch.CIUsername,
		PollInterval: cfg.EventSource.PollInterval,
		Query:        readQueryFile(cfg.EventSource.QueryFile, log),
		Filter: events.JobFilter{
			ExcludeRegex:      compileOptional(cfg.Recheckwatch.UnitTestExcludeRegex),
			SkipNonVoting:     cfg.Recheckwatch.SkipNonVoting,
			ExcludedJobsRegex: compileOptional(cfg.Recheckwatch.ExcludedJobsRegex),
			GatingJobsRegex:   gatingRegex,
		},
		ProjectRegex: compileOptional(cfg.Recheckwatch.IncludedProjectsRegex),
	}, http.DefaultClient, log.WithField("component", "events"))
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	gerritClient, err := gerrit.NewClient(cfg.EventSource.Host, http.DefaultClient)
	if err != nil {
		return fmt.Errorf("watch: new gerrit client: %w", err)
	}

	var channelConfig *channels.Config
	if cfg.Chat.ChannelConfig != "" {
		data, err := os.ReadFile(cfg.Chat.ChannelConfig)
		if err != nil {
			return fmt.Errorf("watch: read channel config: %w", err)
		}
		channelConfig, err = channels.Load(data)
		if err != nil {
			return fmt.Errorf("watch: parse channel config: %w", err)
		}
	}

	var chatTransport *report.ChatTransport
	if !noirc && cfg.Chat.Token != "" {
		chatTransport = report.NewChatTransport(cfg.Chat.Token, log.WithField("component", "chat"))
		go func() {
			if err := chatTransport.Run(ctx); err != nil {
				log.Warn("chat transport stopped", "error", err)
			}
		}()
	}

	reporter := report.New(gerritClient.Changes, channelConfig, chatTransport, report.NoBugTracker{}, report.Config{
		NoComment:        nocomment,
		NoChat:           noirc,
		ReportCheckQueue: cfg.Recheckwatch.ReportCheckQueue,
	}, log.WithField("component", "report"))

	m := metrics.New()
	go serveMetrics(metricsAddr, m, log)

	orch := orchestrator.New(eventSource, readinessGate, classifier, reporter, m, log.WithField("component", "orchestrator"))

	log.Info("recheckwatch starting", "version", version, "foreground", foreground)
	if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch: %w", err)
	}
	log.Info("recheckwatch stopped")
	return nil
}

func compileOptional(pattern string) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	return re
}

// readQueryFile reads a newline-delimited Gerrit query-term file. A
// missing or empty path falls back to Source's own default.
func readQueryFile(path string, log *logging.Logger) []string {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn("watch: could not read query file, using default query", "path", path, "error", err)
		return nil
	}
	var terms []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			terms = append(terms, line)
		}
	}
	return terms
}

func serveMetrics(addr string, m *metrics.Metrics, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	log.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics server stopped", "error", err)
	}
}
