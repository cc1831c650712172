// Package config reads command-line flags and the environment (optionally
// seeded from a .env file) into one validated Config.
package config

import (
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	"jarvis/internal/ipc"
)

var LogLevels = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

type Config struct {
	EnvFile  string
	LogLevel string

	Name    string
	Creator string

	Socket     string
	Metrics    string
	Transcript string
	Proxy      string
	Timeout    time.Duration

	Backend string
	Model   string
	BaseURL string

	WhisperModel string
	Language     string
	Threads      int

	Voice       string
	EspeakVoice string
	Duck        bool
	BeepPath    string
	Notify      bool
	Dialing     bool

	BusURL   string
	BusShard string
	HubURL   string

	OpenAIKey     string
	GeminiKey     string
	ElevenLabsKey string
	HFToken       string
}

// QueryKey is the API key of the selected query backend.
func (c Config) QueryKey() string {
	switch c.Backend {
	case "openai":
		return c.OpenAIKey
	case "gemini":
		return c.GeminiKey
	}
	return ""
}

func (c Config) Level() log.Level { return LogLevels[c.LogLevel] }

// Parse reads flags from args (without the program name) and then the
// environment. A missing .env file is not an error.
func Parse(program string, args []string) (Config, error) {
	var c Config

	fs := cli.NewFlagSet(program, cli.ContinueOnError)
	fs.StringVarP(&c.EnvFile, "env", "e", ".env", "Env file path")
	fs.StringVarP(&c.LogLevel, "log", "l", "info", "Log level")
	fs.StringVarP(&c.Name, "name", "n", "Jarvis", "Assistant name, also the wake word")
	fs.StringVar(&c.Creator, "creator", "Tony Stark", "Who the assistant says built it")
	fs.StringVarP(&c.Socket, "socket", "s", ipc.DefaultSocketPath, "Control socket path")
	fs.StringVarP(&c.Metrics, "metrics", "m", "", "Metrics listen address, empty to disable")
	fs.StringVarP(&c.Transcript, "transcript", "t", "", "SQLite transcript path, empty keeps it in memory")
	fs.StringVarP(&c.Proxy, "proxy", "p", "", "Socks proxy address for outbound calls")
	fs.DurationVar(&c.Timeout, "timeout", 30*time.Second, "Timeout of one external service call")
	fs.StringVarP(&c.Backend, "backend", "b", "gemini", "Query backend: gemini, openai or ollama")
	fs.StringVar(&c.Model, "model", "", "Query model, empty for the backend default")
	fs.StringVar(&c.BaseURL, "base-url", "", "Query backend base URL override")
	fs.StringVarP(&c.WhisperModel, "whisper", "w", "third_party/whisper.cpp/models/ggml-medium.bin", "Whisper model path")
	fs.StringVar(&c.Language, "lang", "en", "Recognition language, auto to detect")
	fs.IntVar(&c.Threads, "threads", 0, "Whisper threads, 0 for all cores")
	fs.StringVar(&c.Voice, "voice", "", "ElevenLabs voice id")
	fs.StringVar(&c.EspeakVoice, "espeak-voice", "en", "espeak-ng voice")
	fs.BoolVar(&c.Duck, "duck", true, "Lower other audio while speaking")
	fs.StringVar(&c.BeepPath, "beep", "beep.mp3", "Listening earcon")
	fs.BoolVar(&c.Notify, "notify", true, "Show desktop notifications")
	fs.BoolVar(&c.Dialing, "dial", false, "Hand phone numbers to the system tel: handler")
	fs.StringVar(&c.BusURL, "bus", "", "Smart-home bus hub url, empty to disable")
	fs.StringVar(&c.BusShard, "bus-shard", "JARVIS", "Shard name on the smart-home bus")
	fs.StringVarP(&c.HubURL, "url", "u", "ws://localhost:8092", "Url of hub")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(c.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", c.EnvFile, err)
	}
	c.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	c.GeminiKey = os.Getenv("GEMINI_API_KEY")
	c.ElevenLabsKey = os.Getenv("ELEVENLABS_API_KEY")
	c.HFToken = os.Getenv("HF_API_TOKEN")

	return c, c.Validate()
}

func (c Config) Validate() error {
	if _, ok := LogLevels[c.LogLevel]; !ok {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.Name == "" {
		return errors.New("assistant name must not be empty")
	}
	switch c.Backend {
	case "openai":
		if c.OpenAIKey == "" {
			return errors.New("OPENAI_API_KEY not set")
		}
	case "gemini":
		if c.GeminiKey == "" {
			return errors.New("GEMINI_API_KEY not set")
		}
	case "ollama":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

func NewLogger(w io.Writer, level log.Level) *log.Logger {
	return log.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}
