package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"imageseq/internal/codec"
)

// errFrameUnavailable reports a selected frame that could not be decoded.
var errFrameUnavailable = errors.New("frame could not be decoded")

func newFrameCommand(ctx *commandContext) *cobra.Command {
	var imports importFlags
	var index int
	var percent float64
	var seconds float64
	var outPath string

	cmd := &cobra.Command{
		Use:   "frame <folder>",
		Short: "Import a folder and write one frame selected by index, percent or time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			imports.apply(cmd, cfg)
			quality, err := codec.ParseQuality(cfg.Export.Quality)
			if err != nil {
				return err
			}
			if !codec.CanEncode(filepath.Ext(outPath)) {
				return fmt.Errorf("output %q: %w", outPath, codec.ErrUnsupportedFormat)
			}

			uploader := newFileUploader(outPath, quality)
			s, err := newSession(ctx, uploader, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			if _, err := s.importFolder(cmd, args[0]); err != nil {
				return err
			}

			flags := cmd.Flags()
			switch {
			case flags.Changed("index"):
				err = s.ctl.SetCurrentFrameIndex(index)
			case flags.Changed("percent"):
				err = s.ctl.SetFrameAtPercent(percent)
			default:
				err = s.ctl.SetFrameForTime(seconds)
			}
			if err != nil {
				return err
			}

			current := s.ctl.CurrentFrameIndex()
			slot := s.ctl.Frames()[current]
			if s.ctl.LoadedFrameIndex() != current {
				return fmt.Errorf("frame %d (%s): %w", current, slot.Identifier, errFrameUnavailable)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "frame %d of %d (%s) -> %v\n",
				current, s.ctl.TotalFrames(), slot.Identifier, s.ctl.Handle())
			return nil
		},
	}
	imports.register(cmd)
	cmd.Flags().IntVar(&index, "index", 0, "Zero-based frame index (wraps past the end)")
	cmd.Flags().Float64Var(&percent, "percent", 0, "Position as a fraction of the sequence (0..1, wraps outside)")
	cmd.Flags().Float64Var(&seconds, "time", 0, "Position in seconds at the configured frame rate")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Where to write the selected frame")
	cmd.MarkFlagsOneRequired("index", "percent", "time")
	cmd.MarkFlagsMutuallyExclusive("index", "percent", "time")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
