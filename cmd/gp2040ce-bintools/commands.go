package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/gp2040ce/bintools/internal/editor"
	"github.com/gp2040ce/bintools/pkg"
	"github.com/gp2040ce/bintools/pkg/device"
	"github.com/gp2040ce/bintools/pkg/layout"
	"github.com/gp2040ce/bintools/pkg/storage"
	"github.com/gp2040ce/bintools/pkg/tree"
	"github.com/gp2040ce/bintools/pkg/uf2"
)

func slotFor(board bool) layout.Slot {
	if board {
		return layout.BoardConfig
	}
	return layout.UserConfig
}

func newConcatenateCmd() *cobra.Command {
	var (
		binBoard, jsonBoard string
		binUser, jsonUser   string
		output, dev         string
		replaceExtra        bool
		backup              bool
	)

	cmd := &cobra.Command{
		Use:   "concatenate [FIRMWARE]",
		Short: "Combine firmware and configuration sections into one image",
		Long: `Combine a compiled GP2040-CE firmware and board and/or user configuration
sections into one image suitable for flashing. Configuration may be given as
binary sections or as JSON. The output format follows the file suffix:
.uf2, .hex, anything else is a flat binary.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (output == "") == (dev == "") {
				return errors.New("exactly one of --new-filename or --device is required")
			}
			tk, err := toolkit(cmd)
			if err != nil {
				return err
			}

			req := pkg.ConcatenateRequest{
				BoardConfig:  firstNonEmpty(binBoard, jsonBoard),
				UserConfig:   firstNonEmpty(binUser, jsonUser),
				ReplaceExtra: replaceExtra,
			}
			if len(args) == 1 {
				req.Firmware = args[0]
			}
			img, err := tk.Concatenate(req)
			if err != nil {
				return err
			}

			if output != "" {
				return tk.WriteImage(output, img, backup)
			}
			d, err := openDevice(dev, false)
			if err != nil {
				return err
			}
			defer d.Close()
			return tk.WriteImageToDevice(cmd.Context(), d, img)
		},
	}

	f := cmd.Flags()
	f.StringVar(&binBoard, "binary-board-config-filename", "", "Binary board config section")
	f.StringVar(&jsonBoard, "json-board-config-filename", "", "Board config as JSON")
	f.StringVar(&binUser, "binary-user-config-filename", "", "Binary user config section")
	f.StringVar(&jsonUser, "json-user-config-filename", "", "User config as JSON")
	f.StringVar(&output, "new-filename", "", "Output image (.uf2, .hex or .bin)")
	f.StringVar(&dev, "device", "", "Flash dump file to write the image into")
	f.BoolVar(&replaceExtra, "replace-extra", false, "Truncate firmware that runs into the configuration area")
	f.BoolVar(&backup, "backup", false, "Keep an existing output file as FILE.old")
	cmd.MarkFlagsMutuallyExclusive("binary-board-config-filename", "json-board-config-filename")
	cmd.MarkFlagsMutuallyExclusive("binary-user-config-filename", "json-user-config-filename")
	cmd.MarkFlagsMutuallyExclusive("new-filename", "device")
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func newDumpConfigCmd() *cobra.Command {
	var (
		dev    string
		board  bool
		backup bool
	)
	cmd := &cobra.Command{
		Use:   "dump-config OUT",
		Short: "Copy a configuration section off a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := toolkit(cmd)
			if err != nil {
				return err
			}
			d, err := openDevice(dev, true)
			if err != nil {
				return err
			}
			defer d.Close()
			return tk.DumpConfig(cmd.Context(), d, slotFor(board), args[0], backup)
		},
	}
	cmd.Flags().StringVar(&dev, "device", "", "Flash dump file to read from")
	cmd.Flags().BoolVar(&board, "board-config", false, "Dump the board config instead of the user config")
	cmd.Flags().BoolVar(&backup, "backup", false, "Keep an existing output file as FILE.old")
	_ = cmd.MarkFlagRequired("device")
	return cmd
}

func newDumpFlashCmd() *cobra.Command {
	var (
		dev    string
		backup bool
	)
	cmd := &cobra.Command{
		Use:   "dump-gp2040ce OUT",
		Short: "Copy the whole firmware and storage region off a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := toolkit(cmd)
			if err != nil {
				return err
			}
			d, err := openDevice(dev, true)
			if err != nil {
				return err
			}
			defer d.Close()
			return tk.DumpFlash(cmd.Context(), d, args[0], backup)
		},
	}
	cmd.Flags().StringVar(&dev, "device", "", "Flash dump file to read from")
	cmd.Flags().BoolVar(&backup, "backup", false, "Keep an existing output file as FILE.old")
	_ = cmd.MarkFlagRequired("device")
	return cmd
}

// configSource holds the flags shared by commands reading one configuration.
type configSource struct {
	filename   string
	dev        string
	board      bool
	wholeBoard bool
}

func (s *configSource) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.filename, "filename", "", "Section, dump, image or JSON file holding the configuration")
	f.StringVar(&s.dev, "device", "", "Flash dump file to read from as a device")
	f.BoolVar(&s.board, "board-config", false, "Use the board config instead of the user config")
	f.BoolVar(&s.wholeBoard, "whole-board", false, "Require the file to be a whole-board dump")
	cmd.MarkFlagsMutuallyExclusive("filename", "device")
	cmd.MarkFlagsOneRequired("filename", "device")
}

// load reads the configuration. For a device source the opened device is
// returned as well; the caller closes it.
func (s *configSource) load(cmd *cobra.Command, tk *pkg.Toolkit, newIfNotFound, readOnly bool) (*storage.SlotResult, *device.FileDevice, error) {
	slot := slotFor(s.board)
	if s.filename != "" {
		res, err := tk.LoadConfig(pkg.LoadRequest{
			Path:          s.filename,
			Slot:          slot,
			WholeBoard:    s.wholeBoard,
			NewIfNotFound: newIfNotFound,
		})
		return res, nil, err
	}

	d, err := openDevice(s.dev, readOnly)
	if err != nil {
		return nil, nil, err
	}
	res, err := tk.LoadDeviceConfig(cmd.Context(), d, slot, newIfNotFound)
	if err != nil {
		d.Close()
		return nil, nil, err
	}
	return res, d, nil
}

func newVisualizeCmd() *cobra.Command {
	var (
		src    configSource
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "visualize-config",
		Short: "Print a stored configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := toolkit(cmd)
			if err != nil {
				return err
			}
			res, d, err := src.load(cmd, tk, false, true)
			if err != nil {
				return err
			}
			if d != nil {
				defer d.Close()
			}

			out, err := tk.Render(res.Config.Message, asJSON)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of protobuf text")
	return cmd
}

func newSummarizeCmd() *cobra.Command {
	var (
		digest string
		verify string
	)
	cmd := &cobra.Command{
		Use:   "summarize-gp2040ce FILE",
		Short: "Describe the parts of a firmware image",
		Long: `Describe the firmware and configuration parts of a .uf2, .hex or .bin
image: addresses, sizes, UF2 block counts, versions and digests.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if verify != "" {
				if err := pkg.VerifyFile(args[0], verify); err != nil {
					return err
				}
				logger.Info("✅ Digest verified", "path", args[0])
			}

			algo, err := uf2.ParseDigestAlgorithm(digest)
			if err != nil {
				return err
			}
			tk, err := toolkit(cmd)
			if err != nil {
				return err
			}
			report, err := tk.Summarize(args[0], algo)
			if err != nil {
				return err
			}
			_, err = report.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&digest, "digest", "blake2b", "Digest algorithm (blake2b, sha256, adler32)")
	cmd.Flags().StringVar(&verify, "verify", "", "Check the file against an algorithm:hex digest first")
	return cmd
}

func newEditCmd() *cobra.Command {
	var (
		src           configSource
		newIfNotFound bool
		backup        bool
	)
	cmd := &cobra.Command{
		Use:   "edit-config",
		Short: "Edit a stored configuration in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("edit-config needs an interactive terminal")
			}
			tk, err := toolkit(cmd)
			if err != nil {
				return err
			}
			res, d, err := src.load(cmd, tk, newIfNotFound, false)
			if err != nil {
				return err
			}

			slot := slotFor(src.board)
			title := src.filename
			save := func(msg protoreflect.Message) error {
				return tk.SaveConfig(src.filename, msg, slot, backup)
			}
			if d != nil {
				defer d.Close()
				title = src.dev + " (device)"
				save = func(msg protoreflect.Message) error {
					return tk.SaveDeviceConfig(cmd.Context(), d, msg, slot)
				}
			}

			model := tree.New(res.Config.Message, tk.Schema, tree.WithLogger(logger.Named("tree")))
			return editor.Run(model, fmt.Sprintf("%s [%s]", title, slot), save)
		},
	}
	src.register(cmd)
	cmd.Flags().BoolVar(&newIfNotFound, "new-if-not-found", false, "Start from an empty configuration when none is stored")
	cmd.Flags().BoolVar(&backup, "backup", false, "Keep the previous file as FILE.old when saving")
	return cmd
}
