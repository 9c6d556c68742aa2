package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/xperimental/git-seek/internal/adapter"
	"github.com/xperimental/git-seek/internal/config"
	"github.com/xperimental/git-seek/internal/engine"
	"github.com/xperimental/git-seek/internal/preset"
	"github.com/xperimental/git-seek/internal/render"
	"github.com/xperimental/git-seek/internal/repository"
	"github.com/xperimental/git-seek/internal/server"
)

var (
	log = &logrus.Logger{
		Out: os.Stderr,
		Formatter: &logrus.TextFormatter{
			DisableTimestamp: true,
		},
		Hooks: logrus.LevelHooks{},
		Level: logrus.InfoLevel,
	}

	errNoQuery = errors.New("no query provided: use --query, --file, or pipe via stdin")
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalln(err)
	}
}

func newRootCommand() *cobra.Command {
	var (
		flags  config.Flags
		query  string
		file   string
		vars   []string
		format render.Format
	)

	cmd := &cobra.Command{
		Use:           "git-seek",
		Short:         "Run graph queries against a Git repository",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			text, err := loadQuery(cmd.InOrStdin(), query, file)
			if err != nil {
				return err
			}

			a, err := openAdapter(cfg)
			if err != nil {
				return err
			}

			return runQuery(cmd.OutOrStdout(), a, text, parseVars(vars), outputFormat(format, cfg))
		},
	}
	flags.Register(cmd.PersistentFlags())

	cmd.Flags().StringVarP(&query, "query", "q", "", "Inline query.")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to query file.")
	cmd.MarkFlagsMutuallyExclusive("query", "file")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "Query variable as name=value, can be repeated.")
	cmd.Flags().Var(&format, "format", "Output format: raw, json or table.")

	cmd.AddCommand(
		newPresetCommand(&flags),
		newSchemaCommand(),
		newServeCommand(&flags),
	)

	return cmd
}

func newPresetCommand(flags *config.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "List or run preset queries",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*flags)
			if err != nil {
				return err
			}

			registry, err := preset.NewRegistry(cfg.Presets)
			if err != nil {
				return fmt.Errorf("error in preset configuration: %w", err)
			}

			cells := [][]string{}
			for _, p := range registry.All() {
				cells = append(cells, []string{p.Name, p.Description, p.Usage()})
			}
			render.New(log.WithField("component", "render"), cmd.OutOrStdout()).
				Table([]string{"Name", "Description", "Parameters"}, cells)
			return nil
		},
	}

	var (
		params []string
		format render.Format
	)
	run := &cobra.Command{
		Use:   "run NAME",
		Short: "Run a preset query",
		Args:  cobra.ExactArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}

			cfg, err := loadConfig(*flags)
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}

			registry, err := preset.NewRegistry(cfg.Presets)
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			return registry.Names(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*flags)
			if err != nil {
				return err
			}

			registry, err := preset.NewRegistry(cfg.Presets)
			if err != nil {
				return fmt.Errorf("error in preset configuration: %w", err)
			}

			values, err := preset.ParseAssignments(params)
			if err != nil {
				return err
			}

			query, variables, err := registry.Resolve(args[0], values)
			if err != nil {
				return err
			}

			a, err := openAdapter(cfg)
			if err != nil {
				return err
			}

			return runQuery(cmd.OutOrStdout(), a, query, variables, outputFormat(format, cfg))
		},
	}
	run.Flags().StringArrayVar(&params, "param", nil, "Preset parameter as name=value, can be repeated.")
	run.Flags().Var(&format, "format", "Output format: raw, json or table.")

	cmd.AddCommand(list, run)
	return cmd
}

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), adapter.SDL())
			return err
		},
	}
}

func newServeCommand(flags *config.Flags) *cobra.Command {
	var listenAddress string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve queries over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*flags)
			if err != nil {
				return err
			}

			if listenAddress != "" {
				cfg.Server.ListenAddress = listenAddress
			}

			registry, err := preset.NewRegistry(cfg.Presets)
			if err != nil {
				return fmt.Errorf("error in preset configuration: %w", err)
			}

			a, err := openAdapter(cfg)
			if err != nil {
				return err
			}

			srv, err := server.New(log.WithField("component", "server"), cfg.Server, a, registry, adapter.SDL())
			if err != nil {
				return fmt.Errorf("error creating server: %w", err)
			}

			if err := runServer(srv); err != nil {
				return err
			}

			log.Infoln("Shutdown complete.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&listenAddress, "listen-address", "l", "", "Address to listen on (default \":8080\").")

	return cmd
}

func loadConfig(flags config.Flags) (config.Config, error) {
	cfg, err := config.Load(flags)
	if err != nil {
		return config.Config{}, fmt.Errorf("error in configuration: %w", err)
	}
	log.SetLevel(cfg.LogLevel)

	return cfg, nil
}

func openAdapter(cfg config.Config) (*adapter.Adapter, error) {
	repo, err := repository.Open(log.WithField("component", "repository"), cfg.Repository)
	if err != nil {
		return nil, fmt.Errorf("error opening repository: %w", err)
	}

	a, err := adapter.New(log.WithField("component", "adapter"), repo)
	if err != nil {
		return nil, fmt.Errorf("error creating adapter: %w", err)
	}

	return a, nil
}

func outputFormat(flag render.Format, cfg config.Config) render.Format {
	if flag != "" {
		return flag
	}
	return cfg.Format
}

func runQuery(out io.Writer, a *adapter.Adapter, query string, variables map[string]engine.FieldValue, format render.Format) error {
	rows, err := a.Query(query, variables)
	if err != nil {
		return err
	}

	return render.New(log.WithField("component", "render"), out).Render(format, rows)
}

// loadQuery takes the query from the flags, falling back to reading stdin
// when it is not a terminal.
func loadQuery(in io.Reader, query, file string) (string, error) {
	switch {
	case query != "":
		return query, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("can not read query file: %w", err)
		}
		return string(data), nil
	default:
	}

	if isTerminal(in) {
		return "", errNoQuery
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("can not read query from stdin: %w", err)
	}
	return string(data), nil
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// parseVars turns name=value entries into typed variables. Entries without
// "=" are ignored.
func parseVars(entries []string) map[string]engine.FieldValue {
	values := map[string]string{}
	for _, entry := range entries {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			log.Debugf("Ignoring variable without value: %q", entry)
			continue
		}
		values[name] = value
	}

	return preset.TypedVariables(values)
}

func runServer(srv *server.Server) error {
	wg := &sync.WaitGroup{}
	ctx, cancel := initSignalHandler()
	defer cancel()

	if err := srv.Start(ctx, wg); err != nil {
		return fmt.Errorf("error starting server: %w", err)
	}

	log.Infof("Startup complete.")
	wg.Wait()
	return nil
}

func initSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		log.Debugf("Got signal: %v", sig)
		cancel()
		signal.Reset(syscall.SIGTERM, syscall.SIGINT)
	}()

	return ctx, cancel
}
