package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ftotnem/astar-livesearch/hunt/qr"
	"github.com/Ftotnem/astar-livesearch/shared/config"
)

var (
	qrConfig config.QRConfig
	logger   = zap.NewNop()
	verbose  bool
)

// NewRootCmd loads the scan code key material before any subcommand runs.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "qrgen",
		Short: "Print and inspect the QR codes placed on hunt route nodes",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				l, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				logger = l
			}
			cfg, err := config.LoadQRConfig()
			if err != nil {
				return err
			}
			qrConfig = cfg
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
	return root
}

// codec returns nil when no key is configured; links then use plain parameters.
func codec() (*qr.Codec, error) {
	if !qrConfig.Enabled() {
		return nil, nil
	}
	return qr.NewCodec([]byte(qrConfig.QRKey), []byte(qrConfig.QRIV))
}
