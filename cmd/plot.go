package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vynguyen175/vizion/internal/charts"
	"github.com/vynguyen175/vizion/internal/cleaning"
	"github.com/vynguyen175/vizion/internal/utils"
)

var (
	plotRead    readFlags
	plotColumn  string
	plotX       string
	plotY       string
	plotHeatmap bool
	plotType    string
	plotOutput  string
	plotFormat  string
	plotWidth   int
	plotHeight  int
	plotMissing string
	plotDedupe  bool
)

var plotCmd = &cobra.Command{
	Use:   "plot <file>",
	Short: "Render a quick plot, a two-column comparison or the correlation heatmap",
	Example: `  vizion plot sales.csv --column region --type Bar -o region.png
  vizion plot sales.csv --x units --y sales --type Scatter -o scatter.svg
  vizion plot sales.csv --heatmap -o corr.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		modes := 0
		for _, on := range []bool{plotColumn != "", plotX != "" || plotY != "", plotHeatmap} {
			if on {
				modes++
			}
		}
		if modes != 1 {
			return errors.New("specify exactly one of --column, --x/--y or --heatmap")
		}
		if plotOutput == "" {
			return errors.New("--output is required")
		}
		format := plotFormat
		if format == "" {
			format = strings.TrimPrefix(filepath.Ext(plotOutput), ".")
		}
		imgFormat, err := charts.ParseFormat(format)
		if err != nil {
			return err
		}
		strategy, err := cleaning.ParseStrategy(plotMissing)
		if err != nil {
			return err
		}

		opt, err := plotRead.options()
		if err != nil {
			return err
		}
		f, err := plotRead.read(args[0], opt)
		if err != nil {
			return err
		}
		if strategy != cleaning.None || plotDedupe {
			f, _ = cleaning.Clean(f, cleaning.Options{Missing: strategy, DropDuplicates: plotDedupe})
		}

		var fig *charts.Figure
		switch {
		case plotHeatmap:
			fig, err = charts.Heatmap(f)
		case plotColumn != "":
			t := charts.ChartType(plotType)
			if plotType == "" {
				t = charts.Bar
			}
			if !t.Valid() {
				return fmt.Errorf("unknown chart type %q (use Bar, Pie, Histogram or Line)", plotType)
			}
			fig, err = charts.QuickPlot(f, plotColumn, t)
		default:
			t := charts.CompareType(plotType)
			if plotType == "" {
				t = charts.CompareScatter
			}
			if !t.Valid() {
				return fmt.Errorf("unknown comparison type %q (use Scatter, Line, Bar or Correlation)", plotType)
			}
			fig, err = charts.Compare(f, plotX, plotY, t)
		}
		if err != nil {
			if w, ok := charts.AsWarning(err); ok {
				fmt.Printf("⚠ %s\n", w.Message)
				return nil
			}
			return err
		}
		if fig.Kind == charts.KindMetric && fig.Metric != nil {
			fmt.Printf("%s: %g\n", fig.Metric.Label, fig.Metric.Value)
		}

		width, height := plotWidth, plotHeight
		if cfg != nil {
			if width <= 0 {
				width = cfg.ChartWidth
			}
			if height <= 0 {
				height = cfg.ChartHeight
			}
		}
		err = utils.SafeWrite(plotOutput, func(w io.Writer) error {
			return charts.Render(fig, imgFormat, w, width, height)
		})
		if err != nil {
			if w, ok := charts.AsWarning(err); ok {
				fmt.Printf("⚠ %s\n", w.Message)
				return nil
			}
			return err
		}
		fmt.Printf("✓ Wrote %s\n", plotOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(plotCmd)
	plotRead.register(plotCmd)
	plotCmd.Flags().StringVar(&plotColumn, "column", "", "quick plot of one column")
	plotCmd.Flags().StringVar(&plotX, "x", "", "comparison X column")
	plotCmd.Flags().StringVar(&plotY, "y", "", "comparison Y column")
	plotCmd.Flags().BoolVar(&plotHeatmap, "heatmap", false, "correlation heatmap of the numeric columns")
	plotCmd.Flags().StringVarP(&plotType, "type", "t", "", "chart type: Bar|Pie|Histogram|Line, or Scatter|Line|Bar|Correlation with --x/--y")
	plotCmd.Flags().StringVarP(&plotOutput, "output", "o", "", "image path to write")
	plotCmd.Flags().StringVar(&plotFormat, "format", "", "png | svg (taken from the output extension if omitted)")
	plotCmd.Flags().IntVar(&plotWidth, "width", 0, "image width in pixels (config default if omitted)")
	plotCmd.Flags().IntVar(&plotHeight, "height", 0, "image height in pixels (config default if omitted)")
	plotCmd.Flags().StringVar(&plotMissing, "missing", "none", "clean missing values before plotting")
	plotCmd.Flags().BoolVar(&plotDedupe, "drop-duplicates", false, "drop duplicate rows before plotting")
}
