// Command opioidmaps prepares the opioid datasets and renders their charts from the command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/giygas/opioid-maps/describe"
	"github.com/giygas/opioid-maps/interfaces"
	"github.com/giygas/opioid-maps/logging"
	"github.com/giygas/opioid-maps/render"
	"github.com/giygas/opioid-maps/tableparser"
	"github.com/giygas/opioid-maps/tableparser/entities"
	"github.com/giygas/opioid-maps/validation"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// options are the flags shared by every command
type options struct {
	dataDir   string
	catalog   string
	logLevel  string
	extraISO3 []string
	timeout   time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "opioidmaps",
		Short:         "Prepare opioid consumption and EML datasets and render their maps",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			logging.InitConsoleLogger(level)
			return nil
		},
	}

	// .env only provides flag defaults, a missing file is fine
	_ = godotenv.Load()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.dataDir, "data-dir", envOr("DATA_DIR", "data"), "Directory holding the dataset files")
	flags.StringVar(&opts.catalog, "catalog", os.Getenv("CATALOG_FILE"), "JSON dataset catalog (default: built-in datasets)")
	flags.StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "Log level: debug|info|warn|error")
	flags.StringSliceVar(&opts.extraISO3, "extra-iso3", strings.Split(envOr("EXTRA_ISO3", "XKX"), ","), "Codes accepted as countries besides ISO 3166-1")
	flags.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Download timeout")

	rootCmd.AddCommand(
		newDescribeCmd(),
		newPrepareCmd(opts),
		newValidateCmd(opts),
		newBarCmd(opts),
		newMapCmd(opts),
		newFetchCmd(opts),
	)

	return rootCmd
}

func (o *options) validator() interfaces.DataValidator {
	return validation.NewDataValidator(o.extraISO3...)
}

func (o *options) dataset(name string) (entities.Dataset, error) {
	catalog, err := tableparser.LoadCatalog(o.catalog)
	if err != nil {
		return entities.Dataset{}, err
	}
	ds, ok := tableparser.FindDataset(catalog, name)
	if !ok {
		names := make([]string, 0, len(catalog))
		for _, d := range catalog {
			names = append(names, d.Name)
		}
		return entities.Dataset{}, fmt.Errorf("unknown dataset %q (available: %s)", name, strings.Join(names, ", "))
	}
	return ds, nil
}

func (o *options) prepare(ctx context.Context, name string) (*entities.PreparedDataset, error) {
	ds, err := o.dataset(name)
	if err != nil {
		return nil, err
	}
	preparer := tableparser.NewPreparer(o.dataDir, o.validator(),
		tableparser.WithDownloader(tableparser.NewDownloader(o.dataDir, o.timeout), false))
	return preparer.Prepare(ctx, ds)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// createOutput opens path for writing, or returns stdout for "-"
func createOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, f.Close, nil
}

func newDescribeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "describe FILE",
		Short: "Print the column listing and numeric summary of a table file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := tableparser.Load(args[0])
			if err != nil {
				return err
			}
			summary := describe.Summarize(table)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			return printSummary(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

func printSummary(w io.Writer, s entities.Summary) error {
	fmt.Fprintf(w, "RangeIndex: %d entries\n", s.Rows)

	info := tablewriter.NewWriter(w)
	info.SetHeader([]string{"#", "Column", "Non-Null Count", "Dtype"})
	for i, c := range s.Columns {
		info.Append([]string{strconv.Itoa(i), c.Name, fmt.Sprintf("%d non-null", c.NonNull), c.DataType})
	}
	info.Render()

	if len(s.Describe) == 0 {
		return nil
	}

	numeric := tablewriter.NewWriter(w)
	numeric.SetHeader([]string{"", "count", "mean", "std", "min", "25%", "50%", "75%", "max"})
	for _, d := range s.Describe {
		std := "NaN"
		if d.Std != nil {
			std = formatStat(*d.Std)
		}
		numeric.Append([]string{
			d.Column,
			strconv.Itoa(d.Count),
			formatStat(d.Mean),
			std,
			formatStat(d.Min),
			formatStat(d.Q25),
			formatStat(d.Median),
			formatStat(d.Q75),
			formatStat(d.Max),
		})
	}
	numeric.Render()
	return nil
}

func formatStat(v float64) string {
	return fmt.Sprintf("%.6g", v)
}

func newPrepareCmd(opts *options) *cobra.Command {
	var asJSON bool
	var head int

	cmd := &cobra.Command{
		Use:   "prepare DATASET",
		Short: "Run a dataset through binarize, drop and order, and print the records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prepared, err := opts.prepare(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			records := prepared.Records
			if head > 0 && head < len(records) {
				records = records[:head]
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}

			out := cmd.OutOrStdout()
			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"Country", "ISO3", "Metric", "Tier", "Region"})
			for _, r := range records {
				table.Append([]string{
					r.CountryName,
					r.CountryISO,
					strconv.FormatFloat(r.MetricValue, 'g', -1, 64),
					r.TierLabel,
					r.Region,
				})
			}
			table.Render()

			_, err = fmt.Fprintf(out, "%d of %d source rows kept\n", len(prepared.Records), prepared.SourceRows)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the records as JSON")
	cmd.Flags().IntVar(&head, "head", 0, "Print only the first N records")
	return cmd
}

// errQualityIssues makes validate exit non-zero in strict mode
var errQualityIssues = errors.New("data quality issues found")

func newValidateCmd(opts *options) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate DATASET",
		Short: "Prepare a dataset and print its data quality report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prepared, err := opts.prepare(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if err := writeJSON(cmd.OutOrStdout(), prepared.Quality); err != nil {
				return err
			}
			if strict && prepared.Quality.HasIssues() {
				return errQualityIssues
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with an error when the report lists any issue")
	return cmd
}

func newBarCmd(opts *options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "bar DATASET",
		Short: "Render the bar chart of a dataset, PNG or SVG by output extension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prepared, err := opts.prepare(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			format := render.PNG
			if strings.EqualFold(filepath.Ext(output), ".svg") {
				format = render.SVG
			}

			w, closeFn, err := createOutput(cmd, output)
			if err != nil {
				return err
			}
			if err := render.BarChart(w, render.NewBarSpec(prepared), format); err != nil {
				_ = closeFn()
				return err
			}
			return closeFn()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "bar.png", "Output file, - for stdout")
	return cmd
}

func newMapCmd(opts *options) *cobra.Command {
	var output, colorscale string
	var reverse, asJSON bool

	cmd := &cobra.Command{
		Use:   "map DATASET",
		Short: "Render the choropleth of a dataset as an HTML page or plotly JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prepared, err := opts.prepare(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			chOpts := render.ChoroplethOptions{Colorscale: colorscale}
			if cmd.Flags().Changed("reverse") {
				chOpts.Reverse = &reverse
			}

			fig, err := render.NewChoropleth(prepared, chOpts)
			if err != nil {
				return err
			}

			w, closeFn, err := createOutput(cmd, output)
			if err != nil {
				return err
			}
			if asJSON {
				err = writeJSON(w, fig)
			} else {
				err = render.WriteMapPage(w, fig)
			}
			if err != nil {
				_ = closeFn()
				return err
			}
			return closeFn()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "map.html", "Output file, - for stdout")
	cmd.Flags().StringVar(&colorscale, "colorscale", "", "Colour scale: "+strings.Join(render.ColorscaleNames(), "|"))
	cmd.Flags().BoolVar(&reverse, "reverse", false, "Reverse the colour scale")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write the plotly figure JSON instead of a page")
	return cmd
}

func newFetchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [DATASET...]",
		Short: "Download the source files of datasets that declare a source URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := tableparser.LoadCatalog(opts.catalog)
			if err != nil {
				return err
			}

			targets := catalog
			if len(args) > 0 {
				targets = targets[:0:0]
				for _, name := range args {
					ds, err := opts.dataset(name)
					if err != nil {
						return err
					}
					targets = append(targets, ds)
				}
			}

			downloader := tableparser.NewDownloader(opts.dataDir, opts.timeout)
			fetched := 0
			for _, ds := range targets {
				if ds.SourceURL == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: no source URL, skipped\n", ds.Name)
					continue
				}
				path, err := downloader.Download(cmd.Context(), ds.SourceURL, ds.File)
				if err != nil {
					return fmt.Errorf("dataset %s: %w", ds.Name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", ds.Name, path)
				fetched++
			}

			if fetched == 0 && len(args) > 0 {
				return fmt.Errorf("none of the requested datasets declares a source URL")
			}
			return nil
		},
	}
}
