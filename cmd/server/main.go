package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/THE-REBEL-A4IF-V4U/rebel-song-detect/backend"
	"github.com/THE-REBEL-A4IF-V4U/rebel-song-detect/internal/api"
)

// components is everything a command needs, built once from config.
type components struct {
	config   *backend.Config
	metrics  *backend.Metrics
	scratch  *backend.ScratchDir
	resolver *backend.Resolver
	detector *backend.SongDetector
	probe    *backend.StatusProbe
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var port string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(port)
		},
	}
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "port to listen on (overrides PORT)")

	root := &cobra.Command{
		Use:           "songdetect",
		Short:         "Relay media URLs and uploads to a song recognition API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
		RunE: serveCmd.RunE,
	}
	root.Flags().AddFlagSet(serveCmd.Flags())

	root.AddCommand(serveCmd, newResolveCommand(), newDetectCommand(), newStatusCommand())
	return root
}

func newResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <url>",
		Short: "Resolve a YouTube, TikTok or Facebook url to its media links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := build()
			if err != nil {
				return err
			}

			desc, err := comp.resolver.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			label := color.New(color.FgCyan, color.Bold).SprintFunc()
			fmt.Printf("%s %s\n", label("title:"), deref(desc.Title))
			fmt.Printf("%s %s\n", label("audio:"), deref(desc.Audio))
			fmt.Printf("%s %s\n", label("video:"), deref(desc.Video))
			return nil
		},
	}
}

func newDetectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <file_or_url>",
		Short: "Identify the song in a local audio file or a media url",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := build()
			if err != nil {
				return err
			}

			req := backend.RemoteURL(args[0])
			if _, statErr := os.Stat(args[0]); statErr == nil {
				req = backend.UploadedFile(backend.ExistingFile(args[0]))
			}

			detected, err := comp.detector.Detect(cmd.Context(), req)
			if err != nil {
				return err
			}

			var pretty any
			if err := json.Unmarshal(detected, &pretty); err != nil {
				return err
			}
			out, _ := json.MarshalIndent(pretty, "", "  ")
			color.Green("match result:")
			fmt.Println(string(out))
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that the configured upstreams are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := build()
			if err != nil {
				return err
			}

			services := comp.probe.Check(cmd.Context())
			names := make([]string, 0, len(services))
			for name := range services {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				state := services[name].Status
				switch state {
				case "up":
					state = color.GreenString(state)
				case "down":
					state = color.RedString(state)
				default:
					state = color.YellowString(state)
				}
				fmt.Printf("%-12s %s\n", name, state)
			}
			return nil
		},
	}
}

func serve(port string) error {
	comp, err := build()
	if err != nil {
		return err
	}
	if port == "" {
		port = comp.config.Port
	}
	if comp.config.RecognitionKey == "" {
		backend.Logger.Warn("RECOGNITION_API_KEY is not set; /song-detect will answer 500 until it is configured")
	}

	server := api.NewServer(comp.config, comp.resolver, comp.detector, comp.scratch, comp.probe, comp.metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		backend.Logger.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			backend.Logger.Error("shutdown failed", "error", err)
		}
	}()

	backend.Logger.Info("server listening", "port", port, "upload_dir", comp.scratch.Path())
	return server.Listen(":" + port)
}

// build loads config and wires the backend components.
func build() (*components, error) {
	config, err := backend.LoadConfigWithEnv()
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	backend.InitLogger(config.LogLevel, config.LogFormat)

	metrics := backend.NewMetrics()

	scratch, err := backend.NewScratchDir(config.UploadDir)
	if err != nil {
		return nil, err
	}

	resolver, err := backend.NewResolver(config, nil, metrics)
	if err != nil {
		return nil, err
	}
	acquirer, err := backend.NewAcquirer(config, resolver, scratch, nil, metrics)
	if err != nil {
		return nil, err
	}
	fingerprint, err := backend.NewFingerprintClient(config, nil, metrics)
	if err != nil {
		return nil, err
	}
	probe, err := backend.NewStatusProbe(config, nil)
	if err != nil {
		return nil, err
	}

	return &components{
		config:   config,
		metrics:  metrics,
		scratch:  scratch,
		resolver: resolver,
		detector: backend.NewSongDetector(acquirer, fingerprint),
		probe:    probe,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return color.New(color.Faint).Sprint("(none)")
	}
	return *s
}
