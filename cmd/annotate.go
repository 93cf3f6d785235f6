package cmd

import (
	iface "FrameAnnotator/interface"
	"FrameAnnotator/logger"
	"FrameAnnotator/node"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var annotateOutput string

var annotateCmd = &cobra.Command{
	Use:   "annotate <jpeg>...",
	Short: "Feed JPEG files through the node and write the last annotated frame",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runAnnotate(cmd.Context(), args, annotateOutput)
	},
}

func init() {
	annotateCmd.Flags().StringVarP(&annotateOutput, "output", "o", "annotated.jpg", "Path of the annotated JPEG to write")
	rootCmd.AddCommand(annotateCmd)
}

func runAnnotate(ctx context.Context, files []string, output string) error {
	annot, vision, err := buildAnnotator(cfg)
	if err != nil {
		return err
	}
	defer vision.Close()

	n := node.New(node.Config{Name: cfg.Node.Name, Topic: cfg.Node.Topic}, annot)
	return annotateFiles(ctx, n, files, output)
}

// annotateFiles feeds files in order; unreadable or undecodable files are
// logged and skipped.
func annotateFiles(ctx context.Context, n *node.Node, files []string, output string) error {
	log := logger.Log()
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Annotating"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	faces, failed := 0, 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			failed++
			log.Warn("Skipping unreadable file", zap.String("file", path), zap.Error(err))
			_ = bar.Add(1)
			continue
		}
		res, err := n.Input(ctx, iface.Message{ID: filepath.Base(path), Payload: data})
		if err != nil {
			failed++
			log.Warn("Skipping frame", zap.String("file", path), zap.Error(err))
		} else {
			faces += len(res.Faces)
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	msg, err := n.Close(ctx)
	data, ok := msg.Payload.([]byte)
	if !ok {
		if err == nil {
			err = errors.New("no frame produced")
		}
		return fmt.Errorf("no annotated frame: %w", err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	log.Info("Annotated frame written",
		zap.String("output", output),
		zap.Int("frames", len(files)-failed),
		zap.Int("failed", failed),
		zap.Int("faces", faces))
	return nil
}
