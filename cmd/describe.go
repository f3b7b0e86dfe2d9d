package cmd

import (
	"errors"
	"fmt"

	"github.com/smazurov/camstream/internal/engine"
	"github.com/smazurov/camstream/internal/pipeline"
	"github.com/spf13/cobra"
)

// CreateDescribeCmd creates the describe command.
func CreateDescribeCmd() *cobra.Command {
	var streamsFile string
	var validate bool

	cmd := &cobra.Command{
		Use:   "describe [name]",
		Short: "Print generated pipeline descriptions",
		Long: `Prints the gst-launch description built for each stream in the streams file, ` +
			`or only for the named stream. Nothing is opened or started. With --validate each ` +
			`description is also checked for syntax and known element factories.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			descs, err := loadStreams(streamsFile, name)
			if err != nil {
				return err
			}

			stub := engine.NewStub()
			out := cmd.OutOrStdout()
			failed := 0
			for _, desc := range descs {
				description, err := pipeline.Build(desc.Name, desc)
				if err == nil && validate {
					err = stub.Validate(description)
				}
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s: error: %v\n", desc.Name, err)
					continue
				}
				fmt.Fprintf(out, "%s: %s\n", desc.Name, description)
			}

			if failed > 0 {
				return errors.New("some streams could not be described")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&streamsFile, "streams", "streams.toml", "Path to streams configuration file")
	cmd.Flags().BoolVar(&validate, "validate", false, "Check descriptions against the known element factories")

	return cmd
}
