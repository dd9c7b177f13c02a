// Command chainring converts floor plan drawings between the interchange
// format and the internal drawing and room formats.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &loadOptions{}
	rootCmd := &cobra.Command{
		Use:           "chainring",
		Short:         "Floor plan drawing converter",
		Long:          "chainring imports DXF, drawing, room and roster files and writes the drawing and room formats.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags.
	rootCmd.PersistentFlags().StringSliceVar(&opts.encodings, "encodings", nil, "Candidate text encodings, tried in order (default utf-8,windows-1250,windows-1252)")
	rootCmd.PersistentFlags().StringVar(&opts.parser, "parser", "", "Parser name; detected from the input when empty")
	rootCmd.PersistentFlags().StringVar(&opts.rules, "rules", "", "YAML layer rules file")
	rootCmd.PersistentFlags().StringVar(&opts.roomPrefix, "room-prefix", "", "Prefix for new room ids")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log import progress")

	rootCmd.AddCommand(newConvertCmd(opts))
	rootCmd.AddCommand(newRoomsCmd(opts))
	rootCmd.AddCommand(newStatsCmd(opts))
	rootCmd.AddCommand(newSnapshotCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// newVersionCmd creates the "version" command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print chainring version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chainring %s\n", version)
		},
	}
}
