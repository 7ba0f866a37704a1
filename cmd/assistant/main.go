package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aman0603/Conversation-Assistant/internal/appinfo"
	"github.com/aman0603/Conversation-Assistant/internal/automation"
	"github.com/aman0603/Conversation-Assistant/internal/chat"
	"github.com/aman0603/Conversation-Assistant/internal/console"
	"github.com/aman0603/Conversation-Assistant/internal/digest"
	"github.com/aman0603/Conversation-Assistant/internal/gateway"
	"github.com/aman0603/Conversation-Assistant/internal/llm"
	"github.com/aman0603/Conversation-Assistant/internal/relay"
)

func main() {
	args := os.Args[1:]
	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runAssistant(args)
	case "relay-server":
		err = runRelayServer(args)
	case "version":
		fmt.Println(appinfo.Display())
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\nusage: assistant [run|relay-server|version]\n", cmd)
		os.Exit(1)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runAssistant(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "config.json", "path to config.json")
	useRelay := fs.Bool("relay", false, "interpret commands through the relay server")
	relayURL := fs.String("relay-url", "", "relay websocket URL (overrides config)")
	plain := fs.Bool("plain", false, "line-oriented output instead of the TUI")
	dryRun := fs.Bool("dry-run", false, "use a scripted in-memory backend instead of the automation driver")
	fs.Parse(args)

	logf := log.New(os.Stderr, "", log.LstdFlags).Printf

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	completer, err := llm.NewClientFromConfig(*configPath)
	if err != nil {
		// Keyword heuristics still work without a model.
		logf("run: model unavailable, falling back to keyword parsing: %v", err)
		completer = nil
	}

	driver, closeDriver, err := buildDriver(ctx, *configPath, *dryRun, logf)
	if err != nil {
		return err
	}
	defer closeDriver()

	mode := "standalone"
	if *useRelay {
		mode = "relay"
	}
	sess := chat.NewSession(mode)

	var completerIface chat.Completer
	if completer != nil {
		completerIface = completer
	}
	parser := &chat.Parser{Completer: completerIface, Logf: logf}
	executor := &chat.Executor{Driver: driver, Completer: completerIface, Logf: logf}
	pipeline := &chat.Pipeline{Parser: parser, Executor: executor, Session: sess, Logf: logf}

	if *useRelay {
		remote, err := connectRelay(ctx, *configPath, *relayURL, logf)
		if err != nil {
			logf("run: relay unavailable, starting standalone: %v", err)
			sess.Mode = "standalone"
		} else {
			pipeline.Remote = remote
			defer remote.Close()
		}
	}

	monitor := &chat.Monitor{
		Driver:    driver,
		Completer: completerIface,
		Session:   sess,
		Interval:  chat.DefaultPollInterval,
		Logf:      logf,
		Backoff: func(err error) time.Duration {
			if llm.IsLikelyRateLimitError(err) {
				return 30 * time.Second
			}
			return 0
		},
	}

	emailGW := startGateway(ctx, *configPath, pipeline, logf)
	startDigests(ctx, *configPath, pipeline, driver, emailGW, logf)

	return console.Run(ctx, console.Options{
		Pipeline: pipeline,
		Monitor:  monitor,
		Session:  sess,
		In:       os.Stdin,
		Out:      os.Stdout,
		Plain:    *plain,
		Logf:     logf,
	})
}

func buildDriver(ctx context.Context, configPath string, dryRun bool, logf func(string, ...any)) (chat.Driver, func(), error) {
	if dryRun {
		driver := automation.NewScriptedDriver()
		driver.SetChats([]chat.ChatSummary{
			{Name: "Sarah", LastMessage: "see you at 5"},
			{Name: "Work Group", LastMessage: "standup moved to 10"},
		})
		driver.SetMessages("Sarah", []chat.Message{
			{Text: "are we still on for today?", Sender: "Sarah", Direction: chat.DirectionIncoming},
			{Text: "see you at 5", Sender: "Sarah", Direction: chat.DirectionIncoming},
		})
		return driver, func() {}, nil
	}

	cfg, err := automation.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	driver, err := automation.Connect(ctx, cfg, logf)
	if err != nil {
		return nil, nil, fmt.Errorf("connect automation driver: %w", err)
	}
	return driver, func() { _ = driver.Close() }, nil
}

func connectRelay(ctx context.Context, configPath, urlOverride string, logf func(string, ...any)) (*relay.Client, error) {
	cfg, err := relay.LoadRelayConfig(configPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(urlOverride) != "" {
		cfg.URL = strings.TrimSpace(urlOverride)
	}
	secret, err := relay.DecodeSecretBase64(cfg.Secret)
	if err != nil {
		return nil, err
	}
	client, err := relay.NewClient(relay.ClientOptions{
		ServerURL: cfg.URL,
		Secret:    secret,
		ClientID:  cfg.ClientID,
		Name:      cfg.Name,
		Version:   appinfo.Version,
		Logf:      logf,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// startGateway launches the email command channel when configured. The
// returned gateway is nil when the channel is off; digests fall back to
// log-only delivery in that case.
func startGateway(ctx context.Context, configPath string, pipeline *chat.Pipeline, logf func(string, ...any)) *gateway.EmailGateway {
	cfg, err := gateway.LoadGatewayConfig(configPath)
	if err != nil {
		logf("gateway: config unavailable: %v", err)
		return nil
	}
	if !cfg.Enabled {
		return nil
	}
	if err := cfg.Email.Validate(); err != nil {
		logf("gateway: disabled: %v", err)
		return nil
	}
	emailGW := gateway.NewEmailGateway(cfg.Email)
	cg := &gateway.CommandGateway{Email: emailGW, Pipeline: pipeline, Logf: logf}
	go func() {
		if err := cg.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logf("gateway: stopped: %v", err)
		}
	}()
	return emailGW
}

func startDigests(ctx context.Context, configPath string, pipeline *chat.Pipeline, driver chat.Driver, emailGW *gateway.EmailGateway, logf func(string, ...any)) {
	cfg, err := digest.LoadDigestConfig(configPath)
	if err != nil {
		logf("digest: config unavailable: %v", err)
		return
	}
	if !cfg.Enabled {
		return
	}
	file, err := digest.LoadJobs(cfg.JobsPath)
	if err != nil {
		logf("digest: disabled: %v", err)
		return
	}
	loc, err := file.Location()
	if err != nil {
		logf("digest: disabled: %v", err)
		return
	}

	deliver := func(ctx context.Context, job digest.Job, report string) error {
		to := strings.TrimSpace(job.EmailTo)
		if to == "" || emailGW == nil {
			logf("digest: %s\n%s", job.Name, report)
			return nil
		}
		return mailDigest(ctx, emailGW, to, job.Name, report)
	}

	if _, err := digest.Start(ctx, digest.Options{
		Jobs:     file.Jobs,
		Location: loc,
		Runner:   pipeline,
		Driver:   driver,
		Deliver:  deliver,
		Logf:     logf,
	}); err != nil {
		logf("digest: disabled: %v", err)
	}
}

func mailDigest(ctx context.Context, emailGW *gateway.EmailGateway, to, name, report string) error {
	htmlBody, err := gateway.RenderDigestHTML(name, report)
	if err != nil {
		return err
	}
	return emailGW.SendReply(ctx, to, name, htmlBody, gateway.EmailThreadContext{})
}

func runRelayServer(args []string) error {
	fs := flag.NewFlagSet("relay-server", flag.ExitOnError)
	configPath := fs.String("config", "config.json", "path to config.json")
	listen := fs.String("listen", "", "listen address (overrides config)")
	fs.Parse(args)

	logf := log.New(os.Stderr, "", log.LstdFlags).Printf

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := relay.LoadRelayConfig(*configPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*listen) != "" {
		cfg.Listen = strings.TrimSpace(*listen)
	}
	secret, err := relay.DecodeSecretBase64(cfg.Secret)
	if err != nil {
		return err
	}

	completer, err := llm.NewClientFromConfig(*configPath)
	if err != nil {
		return fmt.Errorf("relay server needs a model: %w", err)
	}

	var sessions relay.SessionStore = relay.NoopSessionStore{}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		store, err := relay.NewRedisSessionStore(cfg.RedisURL)
		if err != nil {
			return err
		}
		sessions = store
	}
	defer sessions.Close()

	server, err := relay.NewServer(relay.ServerOptions{
		Secret:            secret,
		Completer:         completer,
		Sessions:          sessions,
		SessionTTLSeconds: cfg.SessionTTLSeconds,
		Logf:              logf,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", server.WSHandler())

	httpServer := &http.Server{Addr: cfg.Listen, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		logf("relay-server: listening on %s", cfg.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
