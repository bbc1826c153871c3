package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/voicetyped/botkit/config"
	"github.com/voicetyped/botkit/internal/app"
	"github.com/voicetyped/botkit/internal/botservice"
	"github.com/voicetyped/botkit/pkg/client"
	"github.com/voicetyped/botkit/pkg/events"
)

// Args are the console flags. Every flag can also be set from the
// environment or a .env file.
type Args struct {
	Server       string `arg:"--server,env:BOTKIT_SERVER" help:"Bot service URL. The bot runs in-process when empty."`
	Channel      string `arg:"--channel,env:BOTKIT_CHANNEL" help:"Channel id." default:"console"`
	Conversation string `arg:"--conversation,env:BOTKIT_CONVERSATION" help:"Conversation id. A new conversation when empty."`
	User         string `arg:"--user,env:BOTKIT_USER" help:"User id." default:"console-user"`

	StateBackend string `arg:"--state,env:STATE_BACKEND" help:"State backend: memory, redis or sql." default:"sql"`
	SQLitePath   string `arg:"--sqlite,env:SQLITE_PATH" help:"SQLite file for the sql backend." default:"botkit-console.db"`
	RedisAddr    string `arg:"--redis,env:REDIS_ADDR" help:"Redis address." default:"localhost:6379"`
	DialogDir    string `arg:"--dialogs,env:DIALOG_DIR" help:"Declarative dialog directory." default:"./dialogs"`
	HotReload    bool   `arg:"--hot-reload,env:DIALOG_HOT_RELOAD" help:"Reload dialogs when files change."`
	LLMAPIKey    string `arg:"--llm-key,env:LLM_API_KEY" help:"API key of the chat-model recognizer."`
	LLMBaseURL   string `arg:"--llm-url,env:LLM_BASE_URL" help:"Base URL of the chat-model API." default:"https://api.openai.com/v1"`
	LLMModel     string `arg:"--llm-model,env:LLM_MODEL" help:"Chat model name." default:"gpt-4o-mini"`

	LogFile string `arg:"--log,env:BOTKIT_LOG_FILE" help:"Log file; logs stay out of the chat." default:"botkit-console.log"`
}

func (Args) Description() string {
	return "Chat with a botkit bot from the terminal. Commands: /stack, /dialogs, /reset, /quit."
}

func init() {
	if os.Getenv("BOTKIT_NO_DOTENV") == "" {
		_ = godotenv.Load()
	}
}

func (a Args) botConfig() *config.BotConfig {
	return &config.BotConfig{
		StateBackend:  a.StateBackend,
		SQLitePath:    a.SQLitePath,
		RedisAddr:     a.RedisAddr,
		RedisPrefix:   "botkit",
		DialogDir:     a.DialogDir,
		HotReload:     a.HotReload,
		MaxStackDepth: 64,
		LLMAPIKey:     a.LLMAPIKey,
		LLMBaseURL:    a.LLMBaseURL,
		LLMModel:      a.LLMModel,
	}
}

func main() {
	var args Args
	arg.MustParse(&args)

	logs := &lumberjack.Logger{
		Filename:   args.LogFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     7,
	}
	defer logs.Close()
	slog.SetDefault(slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var c *client.Client
	if args.Server != "" {
		c = client.New(args.Server)
	} else {
		bot, err := app.New(ctx, app.Options{
			Config:    args.botConfig(),
			Publisher: events.NewLocalPublisher("botkit-console"),
		})
		if err != nil {
			log.Fatalf("building bot: %v", err)
		}
		defer bot.Close()
		bot.Start(ctx, nil)
		c = client.NewFromService(botservice.NewHandler(bot.Service()))
	}

	cv := c.Conversation(args.Channel, args.Conversation, args.User)
	slog.InfoContext(ctx, "console started",
		slog.String("server", args.Server),
		slog.String("conversation_id", cv.Ref().ConversationID))

	if err := run(ctx, os.Stdin, os.Stdout, c, cv); err != nil {
		log.Fatalf("console: %v", err)
	}
}
