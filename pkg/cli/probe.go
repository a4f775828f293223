package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/zurustar/flashstage/pkg/sound/probe"
)

func newProbeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <sound file>...",
		Short: "Report format, length, rate and channels of sound files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			rows := make([][]string, 0, len(args))
			for _, path := range args {
				info, err := probeFile(path)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
					rows = append(rows, []string{filepath.Base(path), "?", "-", "-", "-"})
					continue
				}
				rows = append(rows, []string{
					filepath.Base(path),
					info.Format,
					info.Duration.Round(time.Millisecond).String(),
					strconv.Itoa(info.SampleRate),
					strconv.Itoa(info.Channels),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"File", "Format", "Duration", "Rate", "Channels"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			return errors.Join(errs...)
		},
	}
}

func probeFile(path string) (probe.Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return probe.Info{}, err
	}
	return probe.Probe(path, data)
}
