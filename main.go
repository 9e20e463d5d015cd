package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"geode/bridge"
	"geode/config"
	"geode/history"
)

const Version = "v0.1.0"

var (
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	toolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	headerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
)

// consoleEvents prints events to the terminal and persists turns to the
// chat history.
type consoleEvents struct {
	hist      *history.Manager
	sessionID string
	done      chan struct{}
}

func (c *consoleEvents) Message(sender, text string) {
	fmt.Println(assistantStyle.Render(sender+":"), text)
	c.hist.AddMessage(c.sessionID, sender, text, history.TypeText)
}

func (c *consoleEvents) ToolCall(description string) {
	fmt.Println(toolStyle.Render("  tool: " + description))
	c.hist.AddMessage(c.sessionID, "System", description, history.TypeToolCall)
}

func (c *consoleEvents) Error(message string) {
	fmt.Println(errorStyle.Render("error:"), message)
	c.hist.AddMessage(c.sessionID, "System", message, history.TypeError)
}

func (c *consoleEvents) Finished() { close(c.done) }

func main() {
	configPath := flag.String("config", "config.json", "path to the configuration file")
	testOnly := flag.Bool("test", false, "probe the vault and provider connections, then exit")
	logLevel := flag.String("log-level", "", "override the configured log level (trace, debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	levelName := cfg.LogLevel
	if *logLevel != "" {
		levelName = *logLevel
	}
	level, err := config.ParseLogLevel(levelName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	})))

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	b, err := bridge.New(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(bridge.FormatUserError(err)))
		os.Exit(1)
	}

	if *testOnly {
		ok, msg := b.TestConnection(ctx)
		fmt.Println(msg)
		if !ok {
			os.Exit(1)
		}
		return
	}

	hist := history.NewManager(cfg.ChatHistoryFile, cfg.MaxChatHistory)
	session := hist.CreateSession("")

	fmt.Println(headerStyle.Render(fmt.Sprintf("Geode %s", Version)))
	fmt.Printf("Provider: %s  Model: %s  Tools: %d\n", b.Provider(), cfg.ModelName, b.Registry().Len())
	fmt.Println("Type a message, or /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print(promptStyle.Render("> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if handled, quit := runCommand(ctx, b, hist, line); handled {
			if quit {
				break
			}
			continue
		}

		hist.AddMessage(session.SessionID, "You", line, history.TypeText)
		ev := &consoleEvents{hist: hist, sessionID: session.SessionID, done: make(chan struct{})}
		go b.SendMessage(ctx, line, ev)
		<-ev.done
	}
}

// runCommand handles slash commands; the second result requests exit.
func runCommand(ctx context.Context, b *bridge.Bridge, hist *history.Manager, line string) (bool, bool) {
	if !strings.HasPrefix(line, "/") {
		return false, false
	}
	switch line {
	case "/quit", "/exit":
		return true, true
	case "/tools":
		for _, name := range b.Registry().Names() {
			fmt.Println("  " + name)
		}
	case "/reload":
		if err := b.ReloadPlugins(ctx); err != nil {
			fmt.Println(errorStyle.Render("reload failed: " + err.Error()))
		} else {
			fmt.Printf("Plugins reloaded. Tools: %d\n", b.Registry().Len())
		}
	case "/history":
		for _, s := range hist.RecentSessions(10) {
			fmt.Printf("  %s  %s (%d messages)\n",
				s.UpdatedAt.Format("2006-01-02 15:04"), s.Title, len(s.Messages))
		}
	case "/test":
		_, msg := b.TestConnection(ctx)
		fmt.Println(msg)
	default:
		fmt.Println("Commands: /tools /reload /history /test /quit")
	}
	return true, false
}
