package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sliink/capture/internal/analyze"
	"github.com/sliink/capture/internal/api"
	"github.com/sliink/capture/internal/capture"
	"github.com/sliink/capture/internal/config"
	"github.com/sliink/capture/internal/ingest"
	"github.com/sliink/capture/internal/model"
	"github.com/sliink/capture/internal/sink"
	"github.com/sliink/capture/internal/store"
)

var (
	configFile string
	natsURL    string
	bucket     string
	remoteDir  string
	localDir   string
	namespace  string
	logLevel   string

	apiPort int
	apiHost string

	fetchHost   string
	fetchFirst  bool
	scanAll     bool
	tokensOut   string
	reportJSON  bool
)

var cfg = config.New()

func main() {
	rootCmd := &cobra.Command{
		Use:   "capture",
		Short: "Traffic capture service - record proxied HTTP flows and mine them for artifacts",
		Run:   runCapture,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats-url", "", "NATS server URL for the remote object store")
	rootCmd.PersistentFlags().StringVar(&bucket, "bucket", "", "Object store bucket name")
	rootCmd.PersistentFlags().StringVar(&remoteDir, "remote-dir", "", "Directory-backed remote store (development)")
	rootCmd.PersistentFlags().StringVar(&localDir, "local-dir", "downloaded_logs", "Local working directory for fetched records")
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", sink.DefaultNamespace, "Storage namespace prefix")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.Flags().IntVar(&apiPort, "api-port", 8080, "API server port")
	rootCmd.Flags().StringVar(&apiHost, "api-host", "localhost", "API server host")

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download persisted records into local working storage",
		Run:   runFetch,
	}
	fetchCmd.Flags().StringVar(&fetchHost, "host", "", "Fetch a single host partition")

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Correlate inference traffic and extract usage telemetry",
		Run:   runAnalyze,
	}
	analyzeCmd.Flags().BoolVar(&fetchFirst, "fetch", false, "Fetch from the remote store before analyzing")
	analyzeCmd.Flags().BoolVar(&reportJSON, "json", false, "Emit the report as JSON")

	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Extract OAuth token artifacts from captured traffic",
		Run:   runTokens,
	}
	tokensCmd.Flags().BoolVar(&fetchFirst, "fetch", false, "Fetch from the remote store before scanning")
	tokensCmd.Flags().StringVar(&fetchHost, "host", "", "Fetch a single host partition first")
	tokensCmd.Flags().BoolVar(&scanAll, "scan", false, "List every token artifact instead of the latest exchange")
	tokensCmd.Flags().StringVar(&tokensOut, "out", "", "Save full exchange details to a file")

	rootCmd.AddCommand(fetchCmd, analyzeCmd, tokensCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// setup loads .env and the config file, then builds the logger. Environment
// variables fill in any connection settings the flags left empty.
func setup() zerolog.Logger {
	_ = godotenv.Load()

	if configFile != "" {
		if err := cfg.Load(configFile); err != nil {
			fmt.Println("Failed to load configuration:", err)
			os.Exit(1)
		}
	}

	if natsURL == "" {
		natsURL = firstNonEmpty(os.Getenv("CAPTURE_NATS_URL"), cfg.GetString("store.nats_url", ""))
	}
	if bucket == "" {
		bucket = firstNonEmpty(os.Getenv("CAPTURE_BUCKET"), cfg.GetString("store.bucket", "traffic"))
	}
	if remoteDir == "" {
		remoteDir = firstNonEmpty(os.Getenv("CAPTURE_REMOTE_DIR"), cfg.GetString("store.remote_dir", ""))
	}

	level, err := zerolog.ParseLevel(cfg.GetString("log.level", logLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func buildStore(log zerolog.Logger) store.ObjectStore {
	if natsURL != "" {
		st, err := store.NewNATSStore(natsURL, bucket)
		if err != nil {
			log.Fatal().Err(err).Str("url", natsURL).Msg("connecting to object store")
		}
		return st
	}
	if remoteDir != "" {
		st, err := store.NewFSStore(remoteDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", remoteDir).Msg("opening directory store")
		}
		return st
	}
	log.Fatal().Msg("no remote store configured: set --nats-url or --remote-dir")
	return nil
}

func runCapture(cmd *cobra.Command, args []string) {
	log := setup()
	st := buildStore(log)
	defer st.Close()

	objectSink := sink.NewObjectSink(st, namespace, cfg.GetString("capture.source", "capture-proxy"))
	queue := sink.NewQueue(objectSink, sink.QueueOptions{
		Size:           cfg.GetInt("queue.size", 1000),
		Workers:        cfg.GetInt("queue.workers", 4),
		PersistTimeout: cfg.GetDuration("queue.persist_timeout", 0),
		DrainTimeout:   cfg.GetDuration("queue.drain_timeout", 0),
	}, log)

	filter := capture.NewFilter(cfg.GetStringSlice("capture.exclude"))
	handler := capture.NewHandler(filter, capture.NewBuilder(), queue, log)

	if !queue.Start() {
		log.Fatal().Msg("failed to start persistence queue")
	}

	apiServer := api.NewAPI(handler, queue, func() (analyze.Report, error) {
		snap, err := ingest.LoadSnapshot(localDir)
		if err != nil {
			return analyze.Report{}, err
		}
		return analyze.BuildReport(snap.Records, snap.Stats), nil
	}, apiPort, apiHost)

	go func() {
		log.Info().Str("host", apiHost).Int("port", apiPort).Msg("API server starting")
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("API server error")
		}
	}()

	log.Info().Msg("capture service running")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("API server shutdown error")
	}

	if !queue.Stop() {
		log.Warn().Msg("persistence queue did not drain cleanly")
	}
	log.Info().Interface("queue", queue.Status()).Interface("capture", handler.Stats()).Msg("shutdown complete")
}

func runFetch(cmd *cobra.Command, args []string) {
	log := setup()
	st := buildStore(log)
	defer st.Close()

	source := ingest.NewSource(st, localDir, namespace, cfg.GetDuration("ingest.timeout", 0), log)

	stats := runSourceFetch(source, log)
	fmt.Printf("Downloaded %d of %d files (%d failed) across %d partitions to %s\n",
		stats.Fetched, stats.Listed, stats.Failed, stats.Partitions, localDir)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	log := setup()

	if fetchFirst {
		st := buildStore(log)
		source := ingest.NewSource(st, localDir, namespace, cfg.GetDuration("ingest.timeout", 0), log)
		runSourceFetch(source, log)
		st.Close()
	}

	snap, err := ingest.LoadSnapshot(localDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", localDir).Msg("loading snapshot")
	}

	report := analyze.BuildReport(snap.Records, snap.Stats)
	if reportJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("encoding report")
		}
		fmt.Println(string(data))
		return
	}
	report.Render(os.Stdout)
}

func runTokens(cmd *cobra.Command, args []string) {
	log := setup()

	if fetchFirst || fetchHost != "" {
		st := buildStore(log)
		source := ingest.NewSource(st, localDir, namespace, cfg.GetDuration("ingest.timeout", 0), log)
		runSourceFetch(source, log)
		st.Close()
	}

	snap, err := ingest.LoadSnapshot(localDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", localDir).Msg("loading snapshot")
	}

	if scanAll {
		artifacts := analyze.ExtractTokenArtifacts(snap.Records)
		if len(artifacts) == 0 {
			fmt.Println("No token artifacts found")
			fmt.Println("Looking for token-exchange responses carrying both access_token and refresh_token")
			return
		}
		fmt.Printf("Found %d token artifacts:\n", len(artifacts))
		for i, art := range artifacts {
			fmt.Printf("%d. %s access=%s refresh=%s\n", i+1, art.SourceRecordID,
				analyze.Truncate(art.AccessToken), analyze.Truncate(art.RefreshToken))
		}
		return
	}

	latest := analyze.LatestExchange(analyze.TokenExchanges(snap.Records))
	if latest == nil {
		fmt.Println("No token exchange found")
		os.Exit(1)
	}

	printExchange(*latest)

	if tokensOut != "" {
		data, err := json.MarshalIndent(latest, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("encoding exchange")
		}
		if err := os.WriteFile(tokensOut, data, 0o600); err != nil {
			log.Fatal().Err(err).Str("file", tokensOut).Msg("saving exchange details")
		}
		fmt.Println("Details saved to:", tokensOut)
	}
}

// printExchange prints one token exchange with secrets truncated.
func printExchange(ex analyze.TokenExchange) {
	req := ex.Pair.Request
	fmt.Println("Latest token exchange:")
	fmt.Printf("  Request:  %s at %s\n", req.ID, req.Timestamp.Format(time.RFC3339))
	if ex.Pair.Matched() {
		resp := ex.Pair.Response
		fmt.Printf("  Response: %s at %s (status %d)\n", resp.ID, resp.Timestamp.Format(time.RFC3339), resp.StatusCode)
	} else {
		fmt.Println("  Response: none within the matching window")
	}

	if ex.Artifact == nil {
		fmt.Println("  No token artifact extracted")
		return
	}
	art := ex.Artifact
	fmt.Println("  Access token: ", analyze.Truncate(art.AccessToken))
	fmt.Println("  Refresh token:", analyze.Truncate(art.RefreshToken))
	if art.ExpiresIn > 0 {
		fmt.Printf("  Expires in:    %ds\n", art.ExpiresIn)
	}
	if art.Scope != "" {
		fmt.Println("  Scope:        ", art.Scope)
	}
	if art.Organization != "" {
		fmt.Println("  Organization: ", art.Organization)
	}
	if art.Account != "" {
		fmt.Println("  Account:      ", art.Account)
	}
}

// runSourceFetch runs the configured fetch, translating the no-objects
// case into a non-fatal message and mechanism failures into a fatal one.
func runSourceFetch(source *ingest.Source, log zerolog.Logger) model.FetchStats {
	ctx := context.Background()

	var (
		stats model.FetchStats
		err   error
	)
	if fetchHost != "" {
		var path string
		path, stats, err = source.FetchPartition(ctx, fetchHost)
		if err == nil {
			fmt.Println("Downloaded logs to:", path)
		}
	} else {
		stats, err = source.FetchAll(ctx)
	}

	switch {
	case err == nil:
	case errors.Is(err, ingest.ErrNoObjects):
		fmt.Println("No objects to fetch:", err)
		os.Exit(1)
	default:
		log.Fatal().Err(err).Msg("fetch failed")
	}
	return stats
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
