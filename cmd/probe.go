package cmd

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/smazurov/camstream/internal/sink"
	"github.com/spf13/cobra"
)

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var listen string
	var count int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Inspect RTP arriving on a UDP port",
		Long: `Listens on a UDP address, reads RTP packets such as those sent by a udp:// sink ` +
			`and reports payload type, loss and keyframes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := net.ListenPacket("udp", listen)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			report, err := sink.Probe(ctx, conn, count)
			printReport(cmd, conn.LocalAddr().String(), report)
			if err != nil && report.Packets == 0 {
				return fmt.Errorf("no RTP received on %s: %w", conn.LocalAddr(), err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":5600", "UDP address to listen on")
	cmd.Flags().IntVar(&count, "count", 300, "Packets to read before reporting")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Give up after this long")

	return cmd
}

func printReport(cmd *cobra.Command, addr string, r sink.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "listen:       %s\n", addr)
	fmt.Fprintf(out, "packets:      %d (%d invalid)\n", r.Packets, r.Invalid)
	fmt.Fprintf(out, "bytes:        %d\n", r.Bytes)
	fmt.Fprintf(out, "ssrc:         %#08x\n", r.SSRC)
	fmt.Fprintf(out, "payload type: %d\n", r.PayloadType)
	fmt.Fprintf(out, "lost:         %d\n", r.Lost)
	fmt.Fprintf(out, "keyframes:    %d\n", r.Keyframes)
}
