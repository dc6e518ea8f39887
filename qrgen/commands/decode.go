package commands

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// NewDecodeCmd prints the node and route number inside a payload or scan URL.
func NewDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <payload|url>",
		Short: "Decode a scan payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := codec()
			if err != nil {
				return err
			}
			if c == nil {
				return errors.New("HUNT_QR_KEY and HUNT_QR_IV must be set to decode payloads")
			}
			sc, err := c.Decode(payloadArg(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "node=%s number=%d\n", sc.Node, sc.Number)
			return nil
		},
	}
}

// payloadArg accepts a bare payload or a full /check-route?data= link.
func payloadArg(arg string) string {
	u, err := url.Parse(arg)
	if err != nil || u.RawQuery == "" {
		return arg
	}
	if data := u.Query().Get("data"); data != "" {
		return data
	}
	return arg
}
