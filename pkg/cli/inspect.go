package cli

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zurustar/flashstage/pkg/app"
	"github.com/zurustar/flashstage/pkg/logger"
	"github.com/zurustar/flashstage/pkg/movie"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "inspect <movie>",
		Short: "Show the properties, symbols and manifest of a movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			// inspectはウィンドウも音も使わない
			c := *cfg
			c.Player.Headless = true
			if cmd.Flags().Changed("root") {
				c.Movie.Root = strings.TrimSpace(root)
			}

			a, err := app.New(args[0], app.Options{
				Config: &c,
				Logger: logger.Component("app"),
			})
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := a.Inspect(cmd.Context())
			if err != nil {
				return err
			}
			writeBundle(cmd.OutOrStdout(), a.ScriptLocator(), a.Manager().BaseManifestPath(), b)

			if _, ok := b.Symbols[c.Movie.Root]; !ok {
				return fmt.Errorf("%w: root %q", movie.ErrUnknownSymbol, c.Movie.Root)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Root symbol expected in the movie")
	return cmd
}

func writeBundle(out io.Writer, locator, base string, b *movie.Bundle) {
	p := b.Properties
	fmt.Fprintf(out, "Movie:    %s\n", locator)
	fmt.Fprintf(out, "Size:     %dx%d\n", p.Width, p.Height)
	fmt.Fprintf(out, "FPS:      %s\n", strconv.FormatFloat(p.FPS, 'g', -1, 64))
	if p.Color != "" {
		fmt.Fprintf(out, "Color:    %s\n", p.Color)
	}
	fmt.Fprintf(out, "Manifest: %d item(s)\n\n", len(p.Manifest))

	names := make([]string, 0, len(b.Symbols))
	for name := range b.Symbols {
		names = append(names, name)
	}
	slices.Sort(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		sym := b.Symbols[name]
		asset := sym.Image
		if sym.SpriteSheet != "" {
			asset = sym.SpriteSheet
			if sym.Animation != "" {
				asset += " (" + sym.Animation + ")"
			}
		}
		rows = append(rows, []string{name, sym.Kind, asset, strconv.Itoa(len(sym.Children))})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Symbol", "Kind", "Asset", "Children"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	))

	if len(p.Manifest) == 0 {
		return
	}
	rows = make([][]string, 0, len(p.Manifest))
	for _, e := range p.Manifest {
		typ := string(e.Type)
		if typ == "" {
			typ = string(movie.AssetOther)
		}
		rows = append(rows, []string{e.ID, typ, e.Src, movie.ResolveSrc(base, e.Src)})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Type", "Src", "Resolved"},
		rows,
		nil,
	))
}
