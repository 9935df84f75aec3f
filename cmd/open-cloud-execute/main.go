package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dekkonot/open-cloud-execute/internal/config"
	"github.com/dekkonot/open-cloud-execute/internal/logger"
	"github.com/dekkonot/open-cloud-execute/internal/services"
	"github.com/dekkonot/open-cloud-execute/internal/storage"
	"github.com/dekkonot/open-cloud-execute/internal/telemetry"
	"github.com/dekkonot/open-cloud-execute/internal/tui"
	"github.com/dekkonot/open-cloud-execute/internal/utils"
)

const version = "0.0.0"

const telemetryFlushTimeout = 5 * time.Second

// app carries what every command needs once flags have been parsed.
type app struct {
	cfg     *config.Config
	store   *storage.Store
	service *services.ExecutionService
	stdout  io.Writer
	stderr  io.Writer

	// shutdown flushes telemetry; nil when no exporter is configured.
	shutdown   func(context.Context) error
	tuiOptions []tea.ProgramOption
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{cfg: config.NewConfig(), stdout: stdout, stderr: stderr}
}

func (a *app) rootCmd() *cobra.Command {
	var (
		apiKey        string
		placeID       string
		universeID    string
		versionNumber string
		configDir     string
	)

	rootCmd := &cobra.Command{
		Use:           "open-cloud-execute",
		Short:         "Run Luau scripts on Roblox places through Open Cloud",
		Long:          `open-cloud-execute submits Luau scripts to the Open Cloud execution API, waits for them to finish and prints their logs and return values.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.LoadFromEnvironment()

			flags := cmd.Flags()
			if flags.Changed("api-key") {
				a.cfg.APIKey = apiKey
			}
			if flags.Changed("place") {
				a.cfg.PlaceID = placeID
			}
			if flags.Changed("universe") {
				a.cfg.UniverseID = universeID
			}
			if flags.Changed("place-version") {
				a.cfg.VersionNumber = versionNumber
			}

			if configDir == "" {
				dir, err := storage.DefaultDir()
				if err != nil {
					return err
				}
				configDir = dir
			}
			a.store = storage.NewStore(configDir)

			profile, err := a.store.Load()
			if err != nil {
				logger.Warn("Ignoring stored profile: %v", err)
			}
			a.cfg.ApplyProfile(profile.PlaceID, profile.UniverseID, profile.VersionNumber)

			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if a.cfg.OTLPEndpoint != "" {
				a.shutdown, err = telemetry.Init(cmd.Context(), telemetry.Config{
					ServiceName:    "open-cloud-execute",
					ServiceVersion: version,
					OTLPEndpoint:   a.cfg.OTLPEndpoint,
				})
				if err != nil {
					logger.Warn("Telemetry disabled: %v", err)
				}
			}

			a.service = services.NewExecutionService(a.cfg)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&apiKey, "api-key", "k", "", "Open Cloud API key (default: $OPEN_CLOUD_API_KEY)")
	rootCmd.PersistentFlags().StringVarP(&placeID, "place", "p", "", "Place id (default: stored profile)")
	rootCmd.PersistentFlags().StringVarP(&universeID, "universe", "u", "", "Universe id (default: stored profile)")
	rootCmd.PersistentFlags().StringVar(&versionNumber, "place-version", "", "Place version, empty for the live version")
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "", "", "Directory holding the stored profile")

	rootCmd.AddCommand(
		a.urlCmd(),
		a.createCmd(),
		a.awaitCmd(),
		a.logsCmd(),
		a.runCmd(),
		a.profileCmd(),
	)
	return rootCmd
}

func (a *app) urlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url",
		Short: "Print the task URL for the selected place",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requirePlace(); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, a.service.BuildTaskURL(a.cfg.PlaceID, a.cfg.UniverseID, a.cfg.VersionNumber))
			return nil
		},
	}
}

func (a *app) createCmd() *cobra.Command {
	var scriptFile string
	var timeout float64

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a script and print the created task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requirePlace(); err != nil {
				return err
			}
			script, err := readScript(cmd.InOrStdin(), scriptFile)
			if err != nil {
				return err
			}
			taskURL := a.service.BuildTaskURL(a.cfg.PlaceID, a.cfg.UniverseID, a.cfg.VersionNumber)
			task, err := a.service.CreateTask(cmd.Context(), a.cfg.APIKey, taskURL, script, timeout)
			if err != nil {
				return err
			}
			return a.printJSON(task)
		},
	}
	cmd.Flags().StringVarP(&scriptFile, "file", "f", "-", "Script file, - for stdin")
	cmd.Flags().Float64VarP(&timeout, "timeout", "t", 0, "Script timeout in seconds (default 300)")
	return cmd
}

func (a *app) awaitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "await <task-path>",
		Short: "Wait for a task to finish and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := a.service.AwaitTask(cmd.Context(), a.cfg.APIKey, args[0])
			if err != nil {
				return err
			}
			return a.printJSON(task)
		},
	}
}

func (a *app) logsCmd() *cobra.Command {
	var structured bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "logs <task-path>",
		Short: "Print the logs of a finished task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if structured {
				messages, err := a.service.GetLogsStructured(cmd.Context(), a.cfg.APIKey, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return a.printJSON(messages)
				}
				tui.RenderLogs(a.stdout, messages)
				return nil
			}

			messages, err := a.service.GetLogsFlat(cmd.Context(), a.cfg.APIKey, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return a.printJSON(messages)
			}
			tui.RenderFlatLogs(a.stdout, messages)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&structured, "structured", "s", false, "Fetch typed log lines")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print logs as JSON")
	return cmd
}

func (a *app) runCmd() *cobra.Command {
	var scriptFile string
	var timeout float64
	var useTUI bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit a script, wait for it and print its logs and return values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requirePlace(); err != nil {
				return err
			}
			script, err := readScript(cmd.InOrStdin(), scriptFile)
			if err != nil {
				return err
			}

			req := services.RunRequest{
				APIKey:         a.cfg.APIKey,
				PlaceID:        a.cfg.PlaceID,
				UniverseID:     a.cfg.UniverseID,
				VersionNumber:  a.cfg.VersionNumber,
				Script:         script,
				TimeoutSeconds: timeout,
			}

			var result *services.RunResult
			if useTUI {
				if err := logger.InitFileOnly(); err != nil {
					return err
				}
				result, err = tui.NewTaskMonitor(a.service, a.cfg.PollTimeout, a.tuiOptions...).Run(cmd.Context(), req)
				logger.Close()
				logger.SetOutput(a.stderr)
			} else {
				logger.Info("Uploading Luau execution task...")
				result, err = a.service.Run(cmd.Context(), req, func(e services.RunEvent) {
					if e.Poll == nil && e.Stage == services.StageAwaiting {
						logger.Info("Waiting for the task to finish...")
					}
				})
			}

			if result != nil && result.PathOK {
				a.rememberPlace(result)
			}
			if err != nil {
				return err
			}

			tui.RenderLogs(a.stdout, result.Logs)
			return tui.RenderTaskResult(a.stdout, result.Final)
		},
	}
	cmd.Flags().StringVarP(&scriptFile, "file", "f", "-", "Script file, - for stdin")
	cmd.Flags().Float64VarP(&timeout, "timeout", "t", 0, "Script timeout in seconds (default 300)")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "Show a full screen progress view while waiting")
	return cmd
}

func (a *app) profileCmd() *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change the stored place ids",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := a.store.Load()
			if err != nil {
				return err
			}
			return a.printJSON(profile)
		},
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store the place ids given with --place, --universe and --place-version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			profile, err := a.store.Update(func(p *storage.Profile) {
				if flags.Changed("place") {
					p.PlaceID = a.cfg.PlaceID
				}
				if flags.Changed("universe") {
					p.UniverseID = a.cfg.UniverseID
				}
				if flags.Changed("place-version") {
					p.VersionNumber = a.cfg.VersionNumber
				}
			})
			if err != nil {
				return err
			}
			logger.Info("Saved profile to %s", a.store.Path())
			return a.printJSON(profile)
		},
	}

	profileCmd.AddCommand(showCmd, setCmd)
	return profileCmd
}

func (a *app) requirePlace() error {
	if a.cfg.PlaceID == "" || a.cfg.UniverseID == "" {
		return fmt.Errorf("place and universe ids are required: pass --place and --universe or run 'profile set'")
	}
	return nil
}

// rememberPlace stores the ids of the task that just ran, like the desktop app does.
func (a *app) rememberPlace(result *services.RunResult) {
	_, err := a.store.Update(func(p *storage.Profile) {
		p.UniverseID = result.Path.UniverseID
		p.PlaceID = result.Path.PlaceID
		p.VersionNumber = result.Path.PlaceVersion
	})
	if err != nil {
		logger.Warn("Failed to save place ids: %v", err)
	}
}

// close flushes the spans of the command that just ran, failed or not.
func (a *app) close() error {
	if a.shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
	defer cancel()
	err := a.shutdown(ctx)
	a.shutdown = nil
	return err
}

func (a *app) report(err error) {
	logger.Error("%v", err)
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readScript(stdin io.Reader, file string) (string, error) {
	if file == "" || file == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read script from stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	return string(data), nil
}

func main() {
	logger.Init()
	utils.LoadEnvironment()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := newApp(os.Stdout, os.Stderr)
	err := a.rootCmd().ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil {
		logger.Warn("Failed to flush telemetry: %v", cerr)
	}
	if err != nil {
		a.report(err)
		stop()
		os.Exit(1)
	}
}
