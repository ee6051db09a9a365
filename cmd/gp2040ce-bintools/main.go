package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/gp2040ce/bintools/pkg"
	"github.com/gp2040ce/bintools/pkg/device"
	"github.com/gp2040ce/bintools/pkg/logging"
)

const version = "0.9.0"

var (
	logLevel      string
	layoutName    string
	layoutFile    string
	protoPaths    []string
	protoFiles    []string
	descriptorSet string
	boundsFile    string
	messageName   string

	logger   hclog.Logger
	flushLog = func() error { return nil }
	rootCmd  *cobra.Command
)

func buildTimestamp() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.time" {
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					return t.UTC().Format(time.RFC3339)
				}
			}
		}
	}
	if exePath, err := os.Executable(); err == nil {
		if stat, err := os.Stat(exePath); err == nil {
			return stat.ModTime().UTC().Format(time.RFC3339)
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func printVersion() {
	fmt.Printf("gp2040ce-bintools %s\n", version)
	fmt.Printf("Built: %s\n", buildTimestamp())
}

func init() {
	rootCmd = &cobra.Command{
		Use:   "gp2040ce-bintools",
		Short: "Work with GP2040-CE firmware images and configuration storage",
		Long: `Tools for GP2040-CE binaries: combine firmware with configuration sections,
read and write the configuration stored in flash dumps, convert between
.bin, .uf2 and .hex images, and edit configurations interactively.

Configuration is decoded with the firmware's protobuf schema, given either
as a descriptor set (--descriptor-set) or as .proto sources (-P/--proto-file).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logLevel
			if level == "" {
				level = logging.GetLogLevel()
			}
			logger, flushLog = logging.NewCommandLogger("gp2040ce", level, nil)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.StringVar(&layoutName, "layout", "", "Flash layout name (default $"+pkg.LayoutEnv+" or standard-8k)")
	flags.StringVar(&layoutFile, "layout-file", "", "YAML file with additional flash layouts")
	flags.StringArrayVarP(&protoPaths, "proto-path", "P", nil, "Import path for .proto files (repeatable)")
	flags.StringArrayVar(&protoFiles, "proto-file", nil, "Schema .proto file relative to an import path (default config.proto)")
	flags.StringVar(&descriptorSet, "descriptor-set", "", "Compiled FileDescriptorSet holding the schema")
	flags.StringVar(&boundsFile, "bounds-file", "", "YAML schema settings: root message, version field, max_count bounds")
	flags.StringVar(&messageName, "message", "", "Root configuration message (default Config)")

	rootCmd.AddCommand(
		newConcatenateCmd(),
		newDumpConfigCmd(),
		newDumpFlashCmd(),
		newVisualizeCmd(),
		newSummarizeCmd(),
		newEditCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Args:  cobra.NoArgs,
			Run:   func(*cobra.Command, []string) { printVersion() },
		},
	)
}

// toolkit resolves the global flags.
func toolkit(cmd *cobra.Command) (*pkg.Toolkit, error) {
	return pkg.New(cmd.Context(), pkg.Options{
		Layout:        layoutName,
		LayoutFile:    layoutFile,
		DescriptorSet: descriptorSet,
		ProtoPaths:    protoPaths,
		ProtoFiles:    protoFiles,
		Message:       messageName,
		SettingsFile:  boundsFile,
		Logger:        logger,
	})
}

func openDevice(path string, readOnly bool) (*device.FileDevice, error) {
	opts := []device.Option{device.WithLogger(logger.Named("device"))}
	if readOnly {
		opts = append(opts, device.ReadOnly())
	}
	return device.Open(path, opts...)
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-V") {
		printVersion()
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = flushLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
