package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/resumegate/internal/logging"
	"github.com/fyrsmithlabs/resumegate/pkg/session"
	"github.com/fyrsmithlabs/resumegate/pkg/session/store"
)

// Store backends selectable with --store.
const (
	storeMemory = "memory"
	storeSQLite = "sqlite"
	storeRedis  = "redis"
)

const redisPrefix = "lessonwiz:"

type runOptions struct {
	*globalOptions

	detailsPath string
	songID      string
	warmupID    string
	gameID      string
	refinements []string
	storeKind   string
	storeDSN    string
	sessionID   string
	rateLimit   float64
	sessionTTL  time.Duration
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{globalOptions: global}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every wizard step in order",
		Long: `Run every wizard step in order and print one JSON line per step.

Without --song, --warmup or --game the first song and the best-ranked
warmup and game are chosen.

Examples:
  # Run with in-memory session state
  lessonwiz run --details details.yaml

  # Persist session state in SQLite and refine the plan twice
  lessonwiz run --details details.yaml --store sqlite --store-dsn ./wizard.db \
    --refine "more singing" --refine "shorter games"

  # Resume an existing session stored in Redis
  lessonwiz run --details details.yaml --store redis \
    --store-dsn redis://localhost:6379/0 --session-id 0f8c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWizard(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.detailsPath, "details", "", "YAML file with lesson details (required)")
	f.StringVar(&opts.songID, "song", "", "song id to select (default: first song)")
	f.StringVar(&opts.warmupID, "warmup", "", "warmup activity id (default: best ranked)")
	f.StringVar(&opts.gameID, "game", "", "game activity id (default: best ranked, none when no games)")
	f.StringArrayVar(&opts.refinements, "refine", nil, "plan change request, repeatable")
	f.StringVar(&opts.storeKind, "store", storeMemory, "session store: memory, sqlite or redis")
	f.StringVar(&opts.storeDSN, "store-dsn", "", "sqlite path or redis URL")
	f.StringVar(&opts.sessionID, "session-id", "", "session id (default: random)")
	f.Float64Var(&opts.rateLimit, "rate-limit", 0, "max upstream requests per second (0 = unlimited)")
	f.DurationVar(&opts.sessionTTL, "session-ttl", 24*time.Hour, "redis key TTL")
	_ = cmd.MarkFlagRequired("details")

	return cmd
}

// stepLine is one JSON line of run output.
type stepLine struct {
	Step  string `json:"step"`
	Live  bool   `json:"live"`
	Cause string `json:"cause,omitempty"`
	Data  any    `json:"data,omitempty"`
}

type stepWriter struct {
	enc *json.Encoder
}

func (w stepWriter) write(step string, live bool, cause error, data any) error {
	line := stepLine{Step: step, Live: live, Data: data}
	if cause != nil {
		line.Cause = cause.Error()
	}
	return w.enc.Encode(line)
}

func emit[T any](w stepWriter, step string, r session.Result[T]) (T, error) {
	return r.Data(), w.write(step, r.IsLive(), r.Cause(), r.Data())
}

func runWizard(ctx context.Context, stdout, stderr io.Writer, opts *runOptions) error {
	details, err := loadDetails(opts.detailsPath)
	if err != nil {
		return err
	}

	logger, err := newClientLogger(opts.logLevel, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	st, err := openStore(ctx, opts.storeKind, opts.storeDSN, opts.sessionTTL)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	var clientOpts []session.Option
	if opts.rateLimit > 0 {
		clientOpts = append(clientOpts, session.WithRateLimit(opts.rateLimit, 1))
	}
	client := session.New(session.Config{
		BaseURL:   opts.gatewayURL,
		SessionID: opts.sessionID,
		Store:     st,
		Logger:    logger.Underlying(),
	}, clientOpts...)

	out := stepWriter{enc: json.NewEncoder(stdout)}

	started, err := client.Start(ctx, details)
	if err != nil {
		_ = out.write(session.ActionStart, false, err, nil)
		return fmt.Errorf("start session: %w", err)
	}
	if err := out.write(session.ActionStart, true, nil, map[string]any{
		"sessionId":        client.SessionID(),
		"prefetchedSongs":  started.PrefetchedSongs,
		"executionContext": started.ExecutionContext,
	}); err != nil {
		return err
	}

	songs, err := emit(out, session.ActionLoadSongs, client.LoadSongs(ctx))
	if err != nil {
		return err
	}
	songID := opts.songID
	if songID == "" && len(songs) > 0 {
		songID = songs[0].ID
	}
	if _, err := emit(out, session.ActionSelectSong, client.SelectSong(ctx, songID)); err != nil {
		return err
	}

	activities, err := emit(out, session.ActionLoadActivities, client.LoadActivities(ctx))
	if err != nil {
		return err
	}
	warmupID, gameID := pickActivities(activities, opts.warmupID, opts.gameID)
	if _, err := emit(out, session.ActionSelectActivities, client.SelectActivities(ctx, warmupID, gameID)); err != nil {
		return err
	}

	if _, err := emit(out, session.ActionLoadPlans, client.LoadLessonPlans(ctx)); err != nil {
		return err
	}
	for _, changes := range opts.refinements {
		if _, err := emit(out, session.ActionRefine, client.RefineLessonPlans(ctx, changes)); err != nil {
			return err
		}
	}
	if _, err := emit(out, session.ActionApprove, client.ApproveLessonPlans(ctx)); err != nil {
		return err
	}
	_, err = emit(out, session.ActionGetDownloads, client.GetDownloads(ctx))
	return err
}

// pickActivities applies explicit choices, else the best-ranked warmup and
// game. A nil game means none.
func pickActivities(activities []session.Activity, warmup, game string) (*string, *string) {
	warmups, games := session.SplitActivities(activities)
	if warmup == "" && len(warmups) > 0 {
		warmup = warmups[0].ID
	}
	if game == "" && len(games) > 0 {
		game = games[0].ID
	}

	var w, g *string
	if warmup != "" {
		w = &warmup
	}
	if game != "" {
		g = &game
	}
	return w, g
}

// loadDetails reads lesson details from a YAML file.
func loadDetails(path string) (session.LessonDetails, error) {
	var details session.LessonDetails
	if path == "" {
		return details, errors.New("--details is required")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return details, fmt.Errorf("failed to read details %s: %w", path, err)
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return details, fmt.Errorf("failed to parse details %s: %w", path, err)
	}
	if err := k.Unmarshal("", &details); err != nil {
		return details, fmt.Errorf("failed to decode details %s: %w", path, err)
	}
	if err := details.Validate(); err != nil {
		return details, err
	}
	return details, nil
}

func newClientLogger(level string, w io.Writer) (*logging.Logger, error) {
	cfg, err := logging.NewConfigFromSettings(level, "console", "lessonwiz")
	if err != nil {
		return nil, err
	}
	return logging.NewLoggerTo(cfg, nil, w)
}

func openStore(ctx context.Context, kind, dsn string, ttl time.Duration) (store.Store, error) {
	switch kind {
	case "", storeMemory:
		return store.NewMemory(), nil
	case storeSQLite:
		if dsn == "" {
			dsn = "lessonwiz.db"
		}
		return store.OpenSQLite(dsn)
	case storeRedis:
		if dsn == "" {
			dsn = "redis://localhost:6379/0"
		}
		return store.OpenRedis(ctx, dsn, redisPrefix, ttl)
	default:
		return nil, fmt.Errorf("unknown store %q (want %s, %s or %s)", kind, storeMemory, storeSQLite, storeRedis)
	}
}
