package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cursordb/pkg/config"
	"cursordb/pkg/database"
	"cursordb/pkg/logging"
	"cursordb/pkg/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type Configuration struct {
	ConfigPath string
	DataDir    string
	LogLevel   string
	PageSize   int
	Light      bool
	NoSplash   bool

	Command string
	Args    []string
}

const usage = `usage: cursordb [flags] [command]

commands:
  browse           page through tables and indexes (default)
  demo             create sample tables and print a few queries
  inspect [table]  print the shape of every index of the table, or of all tables

flags:
`

func main() {
	conf := parseArguments()

	cfg, err := loadConfig(conf)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if conf.Command == "browse" && cfg.Logging.OutputPath == "" {
		// The terminal belongs to the browser.
		cfg.Logging.OutputPath = filepath.Join(cfg.DataDir, "cursordb.log")
	}
	if err := logging.Init(cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	if conf.ConfigPath != "" {
		w, err := config.Watch(conf.ConfigPath, func(c config.Config) {
			logging.SetLevel(c.Logging.Level)
			logging.Info("configuration reloaded", "level", c.Logging.Level)
		})
		if err != nil {
			logging.Warn("config file not watched", "path", conf.ConfigPath, "error", err)
		} else {
			defer w.Close()
		}
	}

	if err := run(conf, cfg); err != nil {
		logging.Error("command failed", "command", conf.Command, "error", err)
		fmt.Fprintf(os.Stderr, "cursordb %s: %v\n", conf.Command, err)
		logging.Close()
		os.Exit(1)
	}
}

// parseArguments processes command-line flags
func parseArguments() Configuration {
	var conf Configuration

	flag.StringVar(&conf.ConfigPath, "config", "", "JSON configuration file, watched for log level changes")
	flag.StringVar(&conf.DataDir, "data", "", "Data directory path (overrides the configuration)")
	flag.StringVar(&conf.LogLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR (overrides the configuration)")
	flag.IntVar(&conf.PageSize, "page-size", ui.DefaultPageSize, "Rows per page in the browser")
	flag.BoolVar(&conf.Light, "light", false, "Use the light color theme")
	flag.BoolVar(&conf.NoSplash, "no-splash", false, "Skip the splash screen")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	conf.Command = "browse"
	if flag.NArg() > 0 {
		conf.Command = flag.Arg(0)
		conf.Args = flag.Args()[1:]
	}
	return conf
}

// loadConfig reads the configuration file, if any, and applies the flag
// overrides on top of it.
func loadConfig(conf Configuration) (config.Config, error) {
	cfg := config.Default()
	if conf.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(conf.ConfigPath); err != nil {
			return cfg, err
		}
	}
	if conf.DataDir != "" {
		cfg.DataDir = conf.DataDir
	}
	if conf.LogLevel != "" {
		cfg.Logging.Level = logging.LogLevel(strings.ToUpper(conf.LogLevel))
	}
	return cfg, cfg.Validate()
}

func run(conf Configuration, cfg config.Config) error {
	switch conf.Command {
	case "browse", "demo", "inspect":
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", conf.Command)
	}

	if conf.Command == "browse" && !conf.NoSplash {
		showSplashScreen(conf.Light)
	}

	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	switch conf.Command {
	case "demo":
		return runDemoMode(db)
	case "inspect":
		return inspectIndexes(db, conf.Args)
	default:
		return startInteractiveMode(db, ui.Options{PageSize: conf.PageSize, Light: conf.Light})
	}
}

// showSplashScreen displays a short welcome banner
func showSplashScreen(light bool) {
	splash := `
╔══════════════════════════════════════════════════╗
║                                                  ║
║                    c u r s o r d b               ║
║                                                  ║
║        scrollable cursors over trie indexes      ║
║                                                  ║
╚══════════════════════════════════════════════════╝
`
	color := lipgloss.Color("#7C3AED")
	if light {
		color = lipgloss.Color("#5A56E0")
	}
	style := lipgloss.NewStyle().
		Foreground(color).
		Bold(true)

	fmt.Println(style.Render(splash))
	time.Sleep(time.Second)
}

// startInteractiveMode launches the Bubble Tea UI
func startInteractiveMode(db *database.Database, opts ui.Options) error {
	model := ui.NewModel(db, opts)
	defer model.Close()

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
