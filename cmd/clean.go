package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vynguyen175/vizion/internal/cleaning"
	"github.com/vynguyen175/vizion/internal/utils"
)

var (
	cleanRead    readFlags
	cleanMissing string
	cleanDedupe  bool
	cleanOutput  string
)

var cleanCmd = &cobra.Command{
	Use:   "clean <file>",
	Short: "Handle missing values and duplicate rows, writing the cleaned CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, err := cleaning.ParseStrategy(cleanMissing)
		if err != nil {
			return err
		}
		opt, err := cleanRead.options()
		if err != nil {
			return err
		}
		f, err := cleanRead.read(args[0], opt)
		if err != nil {
			return err
		}
		cleaned, res := cleaning.Clean(f, cleaning.Options{Missing: strategy, DropDuplicates: cleanDedupe})

		// Progress goes to stderr when the CSV itself is written to stdout
		msgOut := io.Writer(os.Stdout)
		if cleanOutput == "" || cleanOutput == "-" {
			msgOut = os.Stderr
		}
		fmt.Fprintf(msgOut, "Total missing values: %d\n", res.TotalMissing)
		for _, m := range res.Messages {
			fmt.Fprintf(msgOut, "✓ %s\n", m)
		}
		if cleaned.Equal(f) {
			fmt.Fprintln(msgOut, "⚠ Cleaning did not change the data.")
		}

		if cleanOutput == "" || cleanOutput == "-" {
			return cleaned.WriteCSV(os.Stdout)
		}
		if err := utils.SafeWrite(cleanOutput, cleaned.WriteCSV); err != nil {
			return fmt.Errorf("write cleaned csv: %w", err)
		}
		fmt.Printf("✓ Wrote %d rows × %d columns to %s\n", cleaned.Len(), cleaned.NumCols(), cleanOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanRead.register(cleanCmd)
	cleanCmd.Flags().StringVar(&cleanMissing, "missing", "none", "missing values: none | drop_rows | drop_columns | fill_mean | fill_median | fill_mode")
	cleanCmd.Flags().BoolVar(&cleanDedupe, "drop-duplicates", false, "remove duplicate rows, keeping the first")
	cleanCmd.Flags().StringVarP(&cleanOutput, "output", "o", "", "path for the cleaned CSV (stdout if omitted)")
}
