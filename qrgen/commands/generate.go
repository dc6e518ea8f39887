package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ftotnem/astar-livesearch/hunt/qr"
	"github.com/Ftotnem/astar-livesearch/shared/models"
)

type generateOptions struct {
	nodes   []string
	colors  []int
	outDir  string
	size    int
	baseURL string
	dryRun  bool
}

// NewGenerateCmd writes one PNG per node and route color.
func NewGenerateCmd() *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a QR code PNG for every node on every route color",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.nodes, "nodes", []string{"A", "B", "C", "D", "E"}, "node ids")
	cmd.Flags().IntSliceVar(&opts.colors, "colors", []int{1, 2, 3, 4}, "route color indexes")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "qrcodes", "output directory")
	cmd.Flags().IntVar(&opts.size, "size", qr.DefaultSize, "image edge in pixels")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "public site URL (defaults to HUNT_PUBLIC_BASE_URL)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print links without writing images")
	return cmd
}

func runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	c, err := codec()
	if err != nil {
		return err
	}
	baseURL := opts.baseURL
	if baseURL == "" {
		baseURL = qrConfig.PublicBaseURL
	}
	if !opts.dryRun {
		if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLOR\tNODE\tFILE\tLINK")
	for _, color := range opts.colors {
		name := strings.ToLower(models.ColorFor(color).Name)
		for _, node := range opts.nodes {
			link, err := qr.LinkFor(c, baseURL, qr.ScanCode{Node: node, Number: color})
			if err != nil {
				return fmt.Errorf("node %s color %d: %w", node, color, err)
			}
			file := filepath.Join(opts.outDir, fmt.Sprintf("%s-%s.png", name, node))
			if !opts.dryRun {
				png, err := qr.Render(link, opts.size)
				if err != nil {
					return err
				}
				if err := os.WriteFile(file, png, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", file, err)
				}
				logger.Debug("wrote qr code", zap.String("file", file))
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", color, node, file, link)
		}
	}
	return tw.Flush()
}
