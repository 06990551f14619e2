package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"imageseq/internal/codec"
	"imageseq/internal/sequence"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var imports importFlags
	var ext string
	var quality string
	var overwrite bool
	var timestamp string

	cmd := &cobra.Command{
		Use:   "convert <folder> [export-root]",
		Short: "Import a folder and export it to <export-root>/<timestamp>",
		Long: "Import every frame of <folder> and write it back out under a timestamped\n" +
			"directory. The export root defaults to paths.export_dir.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			imports.apply(cmd, cfg)
			if quality != "" {
				if _, err := codec.ParseQuality(quality); err != nil {
					return err
				}
				cfg.Export.Quality = quality
			}
			if overwrite {
				cfg.Export.Overwrite = true
			}
			if imports.sync {
				cfg.Export.Threaded = false
			}
			root := cfg.Paths.ExportDir
			if len(args) == 2 {
				root = args[1]
			}

			s, err := newSession(ctx, nil, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()
			if timestamp != "" {
				s.ctl.SetCreationTimestamp(timestamp)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			importEv, err := s.importFolder(cmd, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, eventStatusLine(importEv, colorize))

			exportEv, err := s.run(cmd.Context(), sequence.EventExportComplete, func(runCtx context.Context) error {
				return s.ctl.StartExport(runCtx, root, ext)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, eventStatusLine(exportEv, colorize))
			if !exportEv.Succeeded {
				return fmt.Errorf("export %s: %w", root, exportEv.Err)
			}
			fmt.Fprintln(out, s.ctl.ExportDir())
			return nil
		},
	}
	imports.register(cmd)
	cmd.Flags().StringVar(&ext, "to", "", "Export format extension (png, jpg, bmp, tiff); defaults to export.extension")
	cmd.Flags().StringVar(&quality, "quality", "", "Export quality (best, high, medium, low, worst)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace files that already exist in the export directory")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "Export directory name instead of the creation timestamp")
	return cmd
}
