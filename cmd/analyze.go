package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vynguyen175/vizion/internal/analysis"
	"github.com/vynguyen175/vizion/internal/utils"
)

// readFlags are the parsing flags shared by every command that reads a data file.
type readFlags struct {
	delimiter  string
	decimal    string
	thousands  string
	maxRows    int
	sheetName  string
	sheetIndex int
}

func (rf *readFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&rf.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (sniffed if omitted)")
	cmd.Flags().StringVar(&rf.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (config default if omitted)")
	cmd.Flags().StringVar(&rf.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space'")
	cmd.Flags().IntVar(&rf.maxRows, "max-rows", 0, "maximum rows to process (0 = config default)")
	cmd.Flags().StringVar(&rf.sheetName, "sheet-name", "", "XLSX: sheet name to read")
	cmd.Flags().IntVar(&rf.sheetIndex, "sheet-index", 0, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}

// options layers the flags over the configured parsing defaults.
func (rf *readFlags) options() (analysis.Options, error) {
	opt := analysis.DefaultOptions()
	if cfg != nil {
		opt = cfg.AnalysisOptions()
	}
	if rf.maxRows > 0 {
		opt.MaxRows = rf.maxRows
	}
	if rf.delimiter != "" {
		switch rf.delimiter {
		case ",":
			opt.Delimiter = ','
		case "\t", "tab":
			opt.Delimiter = '\t'
		case ";":
			opt.Delimiter = ';'
		case "|":
			opt.Delimiter = '|'
		default:
			return opt, fmt.Errorf("unsupported --delimiter: %s", rf.delimiter)
		}
	}
	// Locale separators
	switch strings.ToLower(strings.TrimSpace(rf.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", rf.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(rf.thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", rf.thousands)
	}
	return opt, nil
}

// read parses path, choosing the reader by extension.
func (rf *readFlags) read(path string, opt analysis.Options) (*analysis.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	name := filepath.Base(path)
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		return analysis.ReadXLSX(f, info.Size(), name, rf.sheetName, rf.sheetIndex, opt)
	}
	return analysis.ReadCSV(f, name, opt)
}

var (
	anaRead       readFlags
	anaOutputPath string
	anaOutputDir  string
	anaSampleRows int
	anaOutliers   bool
	anaOutlierThr float64
	anaQuiet      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <files...>",
	Short: "Summarize CSV/TSV/XLSX files: statistics, missing values and correlations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		if anaOutputPath != "" && len(files) > 1 {
			return fmt.Errorf("--output takes a single input; use --output-dir for %d files", len(files))
		}
		opt, err := anaRead.options()
		if err != nil {
			return err
		}
		if anaSampleRows >= 0 {
			opt.SampleRows = anaSampleRows
		}
		if cmd.Flags().Changed("outliers") {
			opt.Outliers = anaOutliers
		} else {
			opt.Outliers = true
		}
		if anaOutlierThr > 0 {
			opt.OutlierThreshold = anaOutlierThr
		}

		total := len(files)
		for i, path := range files {
			if !anaQuiet && total > 1 {
				fmt.Printf("[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			f, err := anaRead.read(path, opt)
			if err != nil {
				return err
			}
			md := analysis.Analyze(f, opt).Markdown()

			switch {
			case anaOutputPath != "":
				if err := utils.SafeWriteFile(anaOutputPath, []byte(md)); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				fmt.Printf("✓ Wrote analysis to %s\n", anaOutputPath)
			case anaOutputDir != "":
				out, err := summaryPath(anaOutputDir, path)
				if err != nil {
					return err
				}
				if err := utils.SafeWriteFile(out, []byte(md)); err != nil {
					return fmt.Errorf("write summary: %w", err)
				}
				if !anaQuiet {
					fmt.Printf("✓ Wrote analysis to %s\n", out)
				}
			default:
				fmt.Println(md)
			}
		}
		return nil
	},
}

// expandInputs resolves globs, keeps literal paths that exist and drops duplicates.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// summaryPath picks <dir>/<base>.summary.md, adding __2, __3... to avoid overwriting.
func summaryPath(dir, input string) (string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	base := filepath.Base(input)
	safe := strings.TrimSuffix(base, filepath.Ext(base))
	out := filepath.Join(dir, safe+".summary.md")
	for idx := 2; ; idx++ {
		if _, err := os.Stat(out); os.IsNotExist(err) {
			return out, nil
		}
		out = filepath.Join(dir, fmt.Sprintf("%s__%d.summary.md", safe, idx))
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	anaRead.register(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write analysis (Markdown)")
	analyzeCmd.Flags().StringVar(&anaOutputDir, "output-dir", "", "write one <name>.summary.md per input into this directory")
	analyzeCmd.Flags().IntVar(&anaSampleRows, "sample-rows", 5, "number of sample rows to include (0 disables samples)")
	analyzeCmd.Flags().BoolVar(&anaOutliers, "outliers", true, "compute robust outlier counts (MAD)")
	analyzeCmd.Flags().Float64Var(&anaOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
	analyzeCmd.Flags().BoolVar(&anaQuiet, "quiet", false, "suppress progress and non-essential output")
}
