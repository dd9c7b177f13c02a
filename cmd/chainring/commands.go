package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/chainring/backend/internal/models"
	"github.com/chainring/backend/internal/parser"
)

// loadOptions are the global flags shared by every command that reads a
// drawing.
type loadOptions struct {
	encodings  []string
	parser     string
	rules      string
	roomPrefix string
	verbose    bool
}

// load imports path and applies layer rules and the room prefix.
func (o *loadOptions) load(cmd *cobra.Command, path string) (*models.Drawing, string, error) {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	for _, enc := range o.encodings {
		if !parser.SupportedEncoding(enc) {
			return nil, "", fmt.Errorf("unsupported encoding %q", enc)
		}
	}

	if strings.ContainsFunc(o.roomPrefix, unicode.IsSpace) {
		return nil, "", fmt.Errorf("room prefix %q contains whitespace", o.roomPrefix)
	}

	registry := parser.NewRegistry(
		parser.WithEncodings(o.encodings),
		parser.WithLogger(logger.With("component", "dxf")),
	)
	d, p, err := registry.Import(path, o.parser)
	if err != nil {
		return nil, "", err
	}

	if o.rules != "" {
		rules, err := parser.ParseLayerRules(o.rules)
		if err != nil {
			return nil, "", fmt.Errorf("layer rules: %w", err)
		}
		if n := d.ApplyLayerRules(rules); n > 0 {
			logger.Info("hidden layers dropped", "entities", n)
		}
	}
	if o.roomPrefix != "" {
		d.SetRoomPrefix(o.roomPrefix)
	}
	return d, p.Name(), nil
}

// newConvertCmd creates the "convert" command.
func newConvertCmd(opts *loadOptions) *cobra.Command {
	var xoffset, yoffset, scale float64
	cmd := &cobra.Command{
		Use:   "convert <input> <output" + parser.DrawingExt + ">",
		Short: "Write a drawing in the drawing format",
		Long:  "Convert imports any supported file and writes its entities and rooms in the drawing format. Coordinates are transformed as (c + offset) * scale.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if math.IsNaN(scale) || math.IsInf(scale, 0) {
				return fmt.Errorf("invalid scale %v", scale)
			}
			d, _, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			if xoffset != 0 || yoffset != 0 || scale != 1 {
				d.Rescale(xoffset, yoffset, scale)
			}
			if err := parser.NewWriter().SaveDrawing(args[1], d); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d entities and %d rooms to %s\n", len(d.Entities), d.RoomCount(), args[1])
			return nil
		},
	}
	cmd.Flags().Float64Var(&xoffset, "xoffset", 0, "Offset added to x before scaling")
	cmd.Flags().Float64Var(&yoffset, "yoffset", 0, "Offset added to y before scaling")
	cmd.Flags().Float64Var(&scale, "scale", 1, "Scale factor")
	return cmd
}

// newRoomsCmd creates the "rooms" command.
func newRoomsCmd(opts *loadOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms <input> <output" + parser.RoomsExt + ">",
		Short: "Write the room list in the room format",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			if err := parser.NewWriter().SaveRooms(args[1], d.Rooms()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rooms to %s\n", d.RoomCount(), args[1])
			return nil
		},
	}
}

// newSnapshotCmd creates the "snapshot" command.
func newSnapshotCmd(opts *loadOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot <input> <output>",
		Short: "Write a binary snapshot of a drawing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			f, err := os.Create(args[1])
			if err != nil {
				return err
			}
			if err := parser.EncodeSnapshot(f, d); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
}

// newStatsCmd creates the "stats" command.
func newStatsCmd(opts *loadOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats <input>",
		Short: "Print entity counts, bounds and room count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, parserName, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			stats := d.Stats()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			return printStats(cmd.OutOrStdout(), parserName, stats)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func printStats(out io.Writer, parserName string, s models.DrawingStats) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "format\t%s\n", parserName)
	fmt.Fprintf(tw, "entities\t%d\n", s.Entities)
	for _, k := range models.EntityKinds {
		if n := s.Counts[k]; n > 0 {
			fmt.Fprintf(tw, "  %s\t%d\n", k, n)
		}
	}
	fmt.Fprintf(tw, "rooms\t%d\n", s.Rooms)
	if s.Bounds != nil {
		fmt.Fprintf(tw, "bounds\t%s %s %s %s\n",
			models.FormatFloat(s.Bounds.XMin), models.FormatFloat(s.Bounds.YMin),
			models.FormatFloat(s.Bounds.XMax), models.FormatFloat(s.Bounds.YMax))
	}
	keys := make([]string, 0, len(s.Metadata))
	for k := range s.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\n", k, s.Metadata[k])
	}
	return tw.Flush()
}
