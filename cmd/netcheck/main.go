package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"text/tabwriter"

	"github.com/CZERTAINLY/netcheck/internal/log"
	"github.com/CZERTAINLY/netcheck/internal/model"
	"github.com/CZERTAINLY/netcheck/internal/service"
	"github.com/CZERTAINLY/netcheck/internal/store"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var (
	userConfigPath string // /default/config/path/netcheck on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config

	flagConfigFilePath string   // value of --config flag
	flagVerbose        bool     // value of --verbose flag
	flagTargets        string   // run --targets
	flagDir            string   // run --dir
	flagFormats        []string // run --format
	flagConcurrency    int      // run --concurrency
	flagHistoryLimit   int      // history --limit
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "netcheck")
}

func main() {
	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is netcheck.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	runCmd.Flags().StringVar(&flagTargets, "targets", "", "file with a target per line, overrides config targets")
	runCmd.Flags().StringVar(&flagDir, "dir", "", "report directory, overrides config service.dir")
	runCmd.Flags().StringSliceVar(&flagFormats, "format", nil, "report format (html, bom), can be repeated")
	runCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "number of hosts checked at once")

	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 10, "number of runs to print")

	// never print messages
	rootCmd.SilenceErrors = true

	// parse or create a config, setup logging
	rootCmd.PersistentPreRunE = initNetcheck

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("netcheck failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "netcheck",
	Short:        "Tool checking reachability of hosts and reporting it as HTML",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run command reads the configuration and checks all targets",
	RunE:  doRun,
}

var historyCmd = &cobra.Command{
	Use:   "history [run-uuid]",
	Short: "history prints stored runs or hosts of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  doHistory,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a netcheck",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("netcheck: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:   %s\n", configPath)
		}
		fmt.Printf("netcheck: %s\n", info.Main.Version)
		fmt.Printf("go:       %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:   %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:     %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:    %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func doRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// flags have a precedence over config file
	flags := cmd.Flags()
	if flags.Changed("targets") {
		config.Targets = flagTargets
	}
	if flags.Changed("dir") {
		config.Service.Dir = flagDir
	}
	if flags.Changed("format") {
		for _, f := range flagFormats {
			if f != model.FormatHTML && f != model.FormatBOM {
				return fmt.Errorf("unsupported format %q, expected html or bom", f)
			}
		}
		config.Report.Formats = flagFormats
	}
	if flags.Changed("concurrency") {
		if flagConcurrency < 1 {
			return fmt.Errorf("--concurrency must be positive, got %d", flagConcurrency)
		}
		config.Concurrency = flagConcurrency
	}

	attrs := slog.Group("netcheck",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	supervisor, err := service.NewSupervisor(ctx, config)
	if err != nil {
		return err
	}
	if config.Service.Dir != "" {
		supervisor = supervisor.WithSummary(os.Stdout)
	}

	return supervisor.Do(ctx)
}

func doHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if config.History.Path == "" {
		return fmt.Errorf("history is disabled: set history.path in %s", configPath)
	}

	db, err := store.Open(ctx, config.History.Path)
	if err != nil {
		return fmt.Errorf("opening history %s: %w", config.History.Path, err)
	}
	defer func() {
		_ = db.Close()
	}()

	if len(args) == 0 {
		runs, err := store.Runs(ctx, db, flagHistoryLimit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Println(r.String())
		}
		return nil
	}

	run, hosts, err := store.Get(ctx, db, args[0])
	if err != nil {
		return fmt.Errorf("run %s: %w", args[0], err)
	}
	fmt.Println(run.String())
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "HOST\tPING\tOPEN PORTS\tSTATUS")
	for _, h := range hosts {
		status := model.StatusDown
		if h.Up {
			status = model.StatusUp
		}
		if h.Overridden {
			status += " (override)"
		}
		ping := model.StatusDown
		if h.PingUp {
			ping = model.StatusUp
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%v\t%s\n", h.Host, ping, h.OpenPorts, status)
	}
	return tw.Flush()
}

func initNetcheck(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv("NETCHECKCONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{userConfigPath, "."} {
			path := filepath.Join(d, "netcheck.yaml")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		config = model.DefaultConfig()
		configPath = filepath.Join(userConfigPath, "netcheck.yaml")
		if err := storeConfig(configPath, config); err != nil {
			return err
		}
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		config, err = model.LoadConfig(f)
		if err != nil {
			for _, d := range model.ConfigErrDetails(err) {
				slog.Error("invalid config", d.Attr("detail"))
			}
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	// --verbose has a precedence over config file
	if flagVerbose {
		config.Service.Verbose = true
	}

	// initialize logging
	slog.SetDefault(log.New(os.Stderr, config.Service.Verbose))

	slog.Debug("netcheck run", "configPath", configPath)
	slog.Debug("netcheck run", "config", config)
	return nil
}

func storeConfig(path string, cfg model.Config) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	return enc.Close()
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
