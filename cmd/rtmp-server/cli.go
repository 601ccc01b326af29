package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/tidewave-oss/rtmp-ingest/internal/config"
)

// version is injected at build time with -ldflags "-X main.version=...".
var version = "dev"

// CLI is the kong command-line schema. Any flag left at its default value does
// not override a value loaded from --config; flags explicitly set by the
// user always win.
type CLI struct {
	Listen        string   `default:":1935" help:"TCP listen address."`
	LogLevel      string   `default:"info" help:"Log level: debug|info|warn|error."`
	LogFormat     string   `default:"console" help:"Log output format: console|json."`
	ChunkSize     uint32   `default:"4096" help:"Initial outbound chunk size."`
	MetricsAddr   string   `help:"Address to serve Prometheus /metrics on (disabled if empty)."`
	Config        string   `help:"Optional YAML config file; CLI flags override its values."`
	HookScript    []string `help:"Hook script in format event_type=script_path (repeatable)."`
	HookWebhook   []string `help:"Hook webhook in format event_type=webhook_url (repeatable)."`
	HookStdio     string   `help:"Structured stdio hook output: json|env (empty disables)."`
	HookTimeout   string   `default:"30s" help:"Timeout for hook execution."`
	HookConc      int      `default:"10" help:"Maximum concurrent hook executions."`
	Version       kong.VersionFlag
}

// resolved is the fully merged configuration (YAML file, then CLI overrides)
// ready to translate into server.Config.
type resolved struct {
	ListenAddr      string
	ChunkSize       uint32
	WindowAckSize   uint32
	LogLevel        string
	LogFormat       string
	MetricsAddr     string
	HookScripts     []string
	HookWebhooks    []string
	HookStdioFormat string
	HookTimeout     string
	HookConcurrency int
}

func parseCLI(args []string) (*resolved, error) {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("rtmp-server"),
		kong.Description("Minimal RTMP ingest server."),
		kong.Vars{"version": version},
	)
	if err != nil {
		return nil, err
	}
	if _, err := parser.Parse(args); err != nil {
		return nil, err
	}

	r := &resolved{
		ListenAddr:      cli.Listen,
		ChunkSize:       cli.ChunkSize,
		WindowAckSize:   2_500_000,
		LogLevel:        cli.LogLevel,
		LogFormat:       cli.LogFormat,
		MetricsAddr:     cli.MetricsAddr,
		HookScripts:     cli.HookScript,
		HookWebhooks:    cli.HookWebhook,
		HookStdioFormat: cli.HookStdio,
		HookTimeout:     cli.HookTimeout,
		HookConcurrency: cli.HookConc,
	}

	if cli.Config != "" {
		f, err := config.Load(cli.Config)
		if err != nil {
			return nil, err
		}
		mergeFile(r, f, cli)
	}

	if err := validate(r); err != nil {
		return nil, err
	}
	return r, nil
}

// mergeFile layers YAML values under whatever the CLI explicitly set. Since
// kong flags always carry at least their declared default, we treat a flag
// as "explicit" when it differs from that default -- so an unset flag lets
// the file's value show through, matching the documented override order.
func mergeFile(r *resolved, f *config.File, cli CLI) {
	if cli.Listen == ":1935" && f.ListenAddr != "" {
		r.ListenAddr = f.ListenAddr
	}
	if cli.ChunkSize == 4096 && f.ChunkSize != 0 {
		r.ChunkSize = f.ChunkSize
	}
	if f.WindowAckSize != 0 {
		r.WindowAckSize = f.WindowAckSize
	}
	if cli.LogLevel == "info" && f.LogLevel != "" {
		r.LogLevel = f.LogLevel
	}
	if cli.LogFormat == "console" && f.LogFormat != "" {
		r.LogFormat = f.LogFormat
	}
	if cli.MetricsAddr == "" && f.MetricsAddr != "" {
		r.MetricsAddr = f.MetricsAddr
	}
	if len(cli.HookScript) == 0 && len(f.Hooks.Scripts) > 0 {
		r.HookScripts = f.Hooks.Scripts
	}
	if len(cli.HookWebhook) == 0 && len(f.Hooks.Webhooks) > 0 {
		r.HookWebhooks = f.Hooks.Webhooks
	}
	if cli.HookStdio == "" && f.Hooks.StdioFormat != "" {
		r.HookStdioFormat = f.Hooks.StdioFormat
	}
	if cli.HookTimeout == "30s" && f.Hooks.Timeout != "" {
		r.HookTimeout = f.Hooks.Timeout
	}
	if cli.HookConc == 10 && f.Hooks.Concurrency != 0 {
		r.HookConcurrency = f.Hooks.Concurrency
	}
}

func validate(r *resolved) error {
	if r.ChunkSize == 0 || r.ChunkSize > 65536 {
		return fmt.Errorf("chunk-size must be between 1 and 65536")
	}
	switch r.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", r.LogLevel)
	}
	switch r.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format %q", r.LogFormat)
	}
	if r.HookStdioFormat != "" && r.HookStdioFormat != "json" && r.HookStdioFormat != "env" {
		return fmt.Errorf("invalid hook stdio format %q, must be json or env", r.HookStdioFormat)
	}
	if r.HookConcurrency < 1 || r.HookConcurrency > 100 {
		return fmt.Errorf("hook-concurrency must be between 1 and 100, got %d", r.HookConcurrency)
	}
	for _, s := range r.HookScripts {
		if err := validateAssignment("hook-script", s); err != nil {
			return err
		}
	}
	for _, w := range r.HookWebhooks {
		if err := validateAssignment("hook-webhook", w); err != nil {
			return err
		}
		parts := strings.SplitN(w, "=", 2)
		if _, err := url.Parse(parts[1]); err != nil {
			return fmt.Errorf("invalid hook-webhook url %q: %w", parts[1], err)
		}
	}
	return nil
}

var validEventTypes = map[string]bool{
	"connection_accept":  true,
	"connection_close":   true,
	"handshake_complete": true,
	"stream_create":      true,
	"stream_delete":      true,
	"publish_start":      true,
	"publish_stop":       true,
	"play_start":         true,
	"play_stop":          true,
	"codec_detected":     true,
}

func validateAssignment(flagName, assignment string) error {
	parts := strings.SplitN(assignment, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid %s format %q, expected event_type=value", flagName, assignment)
	}
	if !validEventTypes[parts[0]] {
		return fmt.Errorf("invalid %s: unknown event type %q", flagName, parts[0])
	}
	return nil
}
