package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"os/user"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chris/tasky/config"
	"github.com/chris/tasky/internal/agent"
	"github.com/chris/tasky/internal/db"
	"github.com/chris/tasky/internal/discord"
	"github.com/chris/tasky/internal/httpapi"
	"github.com/chris/tasky/internal/scheduler"
	"github.com/chris/tasky/internal/service"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "tasky",
		Short:        "Conversational task scheduling agent",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newChatCommand(), newTickCommand(), newServiceCommand())
	return root
}

func newServeCommand() *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the scheduler and, if configured, the Discord bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(config.Load())
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(cmd.Context(), a, debug)
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "gin debug mode")
	return cmd
}

func serve(ctx context.Context, a *app, debug bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	delivery := &scheduler.Delivery{WebhookURL: a.cfg.DiscordWebhook}
	if a.cfg.DiscordToken != "" {
		bot, err := discord.NewBot(a.cfg.DiscordToken, a.agent, a.db, a.cfg.DefaultLang)
		if err != nil {
			return fmt.Errorf("starting Discord bot: %w", err)
		}
		defer bot.Close()
		delivery.DM = bot
	}

	server := httpapi.New(httpapi.Config{Addr: a.cfg.HTTPAddr, Debug: debug}, a.agent, a.db, a.metrics)
	sched := scheduler.New(a.db, a.cfg.TickInterval, delivery, a.metrics)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx) })
	g.Go(func() error { return sched.Run(ctx) })

	log.Println("tasky is running. Press Ctrl+C to exit.")
	err := g.Wait()
	log.Println("shutting down.")
	return err
}

func newTickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduler pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(config.Load())
			if err != nil {
				return err
			}
			defer a.Close()
			delivery := &scheduler.Delivery{WebhookURL: a.cfg.DiscordWebhook}
			st := scheduler.New(a.db, a.cfg.TickInterval, delivery, a.metrics).Tick(cmd.Context(), time.Now())
			fmt.Printf("materialized %d, initialized %d, disabled %d, failed %d\n",
				st.Materialized, st.Initialized, st.Disabled, st.Failures)
			return nil
		},
	}
}

func newChatCommand() *cobra.Command {
	var lang, model string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the agent from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(config.Load())
			if err != nil {
				return err
			}
			defer a.Close()
			if lang == "" {
				lang = a.cfg.DefaultLang
			}
			return runCLI(cmd.Context(), a, lang, model)
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "reply language (en or id); detected when empty")
	cmd.Flags().StringVar(&model, "model", "", "model override")
	return cmd
}

func runCLI(ctx context.Context, a *app, lang, model string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	name := "local"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	owner, err := a.db.EnsureExternalUser(ctx, "cli:"+name, name)
	if err != nil {
		return fmt.Errorf("resolving CLI user: %w", err)
	}

	scanner := bufio.NewScanner(os.Stdin)

	// Check if stdin is a pipe (non-interactive)
	stat, _ := os.Stdin.Stat()
	isPipe := (stat.Mode() & os.ModeCharDevice) == 0

	if !isPipe {
		fmt.Print("tasky> ")
	}

	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			if !isPipe {
				fmt.Print("tasky> ")
			}
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		reply, err := a.agent.Handle(ctx, agent.Turn{
			Prompt:    input,
			UserID:    owner.ID,
			SessionID: "cli:" + owner.ID,
			Model:     model,
			Lang:      lang,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		} else {
			fmt.Println(renderReply(reply, time.Now()))
		}

		if isPipe {
			break // single exchange in pipe mode
		}
		fmt.Print("tasky> ")
	}
	return scanner.Err()
}

// renderReply formats an agent reply for the terminal.
func renderReply(r *agent.Reply, now time.Time) string {
	if r.RequiresConfirmation {
		return r.AssistantMessage
	}
	var b strings.Builder
	b.WriteString(r.Message)
	if t, ok := r.Data.(*db.Task); ok {
		fmt.Fprintf(&b, ": %s [%s]", t.Title, t.Status)
		if t.DueDate != nil {
			fmt.Fprintf(&b, " due %s", humanize.RelTime(*t.DueDate, now, "ago", "from now"))
		}
	}
	for _, n := range r.Notes {
		b.WriteString("\n  note: " + n)
	}
	return b.String()
}

func newServiceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the background service",
	}
	actions := []struct {
		name, short string
		run         func() error
	}{
		{"install", "Install the binary and register the service", service.Install},
		{"uninstall", "Remove the service and the installed binary", service.Uninstall},
		{"start", "Start the service", service.Start},
		{"stop", "Stop the service", service.Stop},
		{"restart", "Restart the service", service.Restart},
		{"status", "Show service status", service.Status},
		{"logs", "Follow service logs", service.Logs},
	}
	for _, a := range actions {
		run := a.run
		cmd.AddCommand(&cobra.Command{
			Use:   a.name,
			Short: a.short,
			Args:  cobra.NoArgs,
			RunE:  func(*cobra.Command, []string) error { return run() },
		})
	}
	return cmd
}
