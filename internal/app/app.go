// Package app assembles the bot runtime from configuration: state storage,
// dialog sets, recognizers, the turn adapter and telemetry. Both binaries
// build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/voicetyped/botkit/config"
	"github.com/voicetyped/botkit/internal/botservice"
	"github.com/voicetyped/botkit/internal/samples"
	"github.com/voicetyped/botkit/internal/telemetry"
	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/dialog"
	"github.com/voicetyped/botkit/pkg/dialog/declarative"
	"github.com/voicetyped/botkit/pkg/events"
	"github.com/voicetyped/botkit/pkg/hooks"
	"github.com/voicetyped/botkit/pkg/recognizer"
	"github.com/voicetyped/botkit/pkg/state"
	"github.com/voicetyped/botkit/pkg/storage"
	"github.com/voicetyped/botkit/pkg/urlvalidation"
)

const defaultSQLitePath = "botkit.db"

// Options holds what the caller provides beyond configuration.
type Options struct {
	Config    *config.BotConfig
	Publisher *events.Publisher
	// DB backs the sql state backend. Without it a SQLite file is used.
	DB storage.DBProvider
	// Recognizers are merged with the sample intent patterns and the
	// configured chat model.
	Recognizers []recognizer.Recognizer
}

// App is an assembled bot runtime.
type App struct {
	Storage      storage.Storage
	Conversation *state.BotState
	User         *state.BotState
	DialogState  *state.Property[*dialog.DialogState]
	Registry     *declarative.Registry
	Adapter      *bot.Adapter
	Bot          *dialog.Runner
	Recorder     *telemetry.Recorder
	// DB is the database behind the sql backend, nil for other backends.
	DB storage.DBProvider

	cfg       *config.BotConfig
	publisher *events.Publisher
	closers   []func() error
}

// New builds the runtime and loads declarative dialogs. A dialog directory
// that fails to load is logged and the code dialogs are served alone.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	a := &App{cfg: cfg, publisher: opts.Publisher}

	if err := a.openStorage(ctx, opts.DB); err != nil {
		return nil, err
	}
	a.Conversation = state.NewConversationState(a.Storage)
	a.User = state.NewUserState(a.Storage)
	a.DialogState = state.NewProperty[*dialog.DialogState](a.Conversation, "DialogState")

	hookOpts := []urlvalidation.Option{}
	if cfg.AllowPrivateHooks {
		hookOpts = append(hookOpts, urlvalidation.AllowPrivateIPs())
	}
	a.Registry = declarative.NewRegistry(
		declarative.NewLoader(cfg.DialogDir),
		a.newDialogSet,
		opts.Publisher,
		declarative.WithHooks(hooks.NewExecutor(opts.Publisher, hookOpts...)),
	)
	if err := a.Registry.Load(ctx); err != nil {
		slog.WarnContext(ctx, "loading declarative dialogs", slog.String("dir", cfg.DialogDir), slog.String("error", err.Error()))
	}

	recognizers := opts.Recognizers
	if cfg.LLMEnabled() {
		llm, err := recognizer.NewOpenAIRecognizer(ctx, recognizer.OpenAIConfig{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
		}, samples.Intents()...)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("chat model recognizer: %w", err), a.Close())
		}
		recognizers = append(recognizers, llm)
	}

	a.Bot = samples.NewRunner(a.Registry.Current, samples.NewDispatcher(recognizers...))
	a.Bot.Start = commandStart(a.Bot.Start)

	rec, err := telemetry.NewRecorder(nil)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	a.Recorder = rec

	a.Adapter = bot.NewAdapter(
		bot.WithPublisher(opts.Publisher),
		bot.WithObserver(rec),
	).Use(state.AutoSave(a.Conversation, a.User))
	return a, nil
}

func (a *App) openStorage(ctx context.Context, db storage.DBProvider) error {
	switch strings.ToLower(a.cfg.StateBackend) {
	case "", config.BackendMemory:
		a.Storage = storage.NewMemoryStorage()
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("connect redis %s: %w", a.cfg.RedisAddr, err)
		}
		a.closers = append(a.closers, client.Close)
		a.Storage = storage.NewRedisStorage(client,
			storage.WithPrefix(a.cfg.RedisPrefix),
			storage.WithTTL(a.cfg.StateTTL))
	case config.BackendSQL:
		if db != nil {
			st := storage.NewGormStorage(db)
			if err := st.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate state table: %w", err)
			}
			a.Storage, a.DB = st, db
			return nil
		}
		path := a.cfg.SQLitePath
		if path == "" {
			path = defaultSQLitePath
		}
		st, err := storage.OpenSQLite(ctx, path)
		if err != nil {
			return err
		}
		a.Storage, a.DB = st, st.Provider()
		a.closers = append(a.closers, func() error {
			sqlDB, err := st.Provider().DB(ctx, false).DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
	default:
		return fmt.Errorf("unknown state backend %q", a.cfg.StateBackend)
	}
	return nil
}

// newDialogSet returns a set holding the code dialogs. Declarative
// dialogs are added on top by the registry.
func (a *App) newDialogSet() *dialog.DialogSet {
	opts := []dialog.SetOption{dialog.WithPublisher(a.publisher)}
	if a.cfg.MaxStackDepth > 0 {
		opts = append(opts, dialog.WithMaxDepth(a.cfg.MaxStackDepth))
	}
	return samples.Register(dialog.NewDialogSet(a.DialogState, opts...))
}

// commandStart begins the dialog named by a "/id" message, which makes
// every dialog reachable without an intent route.
func commandStart(next dialog.StartFunc) dialog.StartFunc {
	return func(ctx context.Context, dc *dialog.DialogContext) (dialog.DialogTurnResult, error) {
		text := dc.TurnContext().Activity().TrimmedText()
		if id, ok := strings.CutPrefix(text, "/"); ok {
			if _, found := dc.Dialogs().Find(id); found {
				return dc.BeginDialog(ctx, id, nil)
			}
		}
		return next(ctx, dc)
	}
}

// Start runs background work until ctx is done: dialog hot reload and the
// telemetry event feed. submit schedules a task; nil runs it on a goroutine.
func (a *App) Start(ctx context.Context, submit func(func()) error) {
	if submit == nil {
		submit = func(fn func()) error {
			go fn()
			return nil
		}
	}

	if a.cfg.HotReload {
		if err := submit(func() {
			if err := a.Registry.Watch(ctx); err != nil {
				slog.WarnContext(ctx, "dialog hot reload stopped", slog.String("error", err.Error()))
			}
		}); err != nil {
			slog.WarnContext(ctx, "starting dialog watcher", slog.String("error", err.Error()))
		}
	}

	if a.publisher != nil {
		ch := a.publisher.Subscribe("telemetry", 256)
		if err := submit(func() {
			defer a.publisher.Unsubscribe("telemetry")
			a.Recorder.Observe(ctx, ch)
		}); err != nil {
			a.publisher.Unsubscribe("telemetry")
			slog.WarnContext(ctx, "starting telemetry feed", slog.String("error", err.Error()))
		}
	}
}

// Service returns the bot service wiring for transports.
func (a *App) Service() botservice.Config {
	return botservice.Config{
		Adapter:      a.Adapter,
		Bot:          a.Bot,
		Conversation: a.Conversation,
		DialogState:  a.DialogState,
		Dialogs:      a.Registry.Current,
	}
}

// Close releases storage connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}
