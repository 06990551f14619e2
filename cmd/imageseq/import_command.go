package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"imageseq/internal/config"
	"imageseq/internal/sequence"
)

type importFlags struct {
	maxFrames int
	ext       string
	pattern   string
	sync      bool
}

func (f *importFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.maxFrames, "max-frames", 0, "Import at most this many frames (0 = no limit)")
	cmd.Flags().StringVar(&f.ext, "ext", "", "Also import files with this extension (e.g. gif)")
	cmd.Flags().StringVar(&f.pattern, "pattern", "", "Only import files whose names match this glob")
	cmd.Flags().BoolVar(&f.sync, "sync", false, "Import on the calling goroutine instead of a background worker")
}

func (f *importFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("max-frames") {
		cfg.Import.MaxFrames = f.maxFrames
	}
	if f.ext != "" {
		cfg.Import.Extension = f.ext
	}
	if f.pattern != "" {
		cfg.Import.Pattern = f.pattern
	}
	if f.sync {
		cfg.Import.Threaded = false
	}
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import <folder>",
		Short: "Import an image folder and list its frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)

			s, err := newSession(ctx, nil, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			ev, err := s.importFolder(cmd, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, frameTable(s.ctl).render())
			fmt.Fprintln(out, eventStatusLine(ev, shouldColorize(out)))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// importFolder runs an import to completion and turns a failed event into an
// error.
func (s *session) importFolder(cmd *cobra.Command, folder string) (sequence.Event, error) {
	ev, err := s.run(cmd.Context(), sequence.EventImportComplete, func(ctx context.Context) error {
		return s.ctl.StartImport(ctx, folder)
	})
	if err != nil {
		return ev, err
	}
	if !ev.Succeeded {
		return ev, fmt.Errorf("import %s: %w", folder, ev.Err)
	}
	return ev, nil
}

func frameTable(ctl *sequence.Controller) tableSpec {
	slots := ctl.Frames()
	rows := make([][]string, 0, len(slots))
	var totalBytes uint64
	for i, slot := range slots {
		size := "-"
		if info, err := os.Stat(slot.Path); err == nil {
			size = humanize.IBytes(uint64(info.Size()))
			totalBytes += uint64(info.Size())
		}
		state := "pending"
		switch {
		case slot.Failed:
			state = "failed"
		case slot.Loaded():
			state = "decoded"
		}
		rows = append(rows, []string{strconv.Itoa(i), slot.Identifier, size, state})
	}
	return tableSpec{
		headers: []string{"#", "Frame", "Size", "State"},
		rows:    rows,
		aligns:  []columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
		footer: []string{
			"",
			fmt.Sprintf("%dx%d @ %.4g fps", ctl.Width(), ctl.Height(), ctl.FrameRate()),
			humanize.IBytes(totalBytes),
			fmt.Sprintf("%.2fs", ctl.LengthInSeconds()),
		},
	}
}
