package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	cfgpkg "github.com/vynguyen175/vizion/internal/config"
	"github.com/vynguyen175/vizion/internal/utils"
)

var initWriteConfig bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database schema and the dataset directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		log, cleanup, err := newLogger(c)
		if err != nil {
			return err
		}
		defer cleanup()

		st, err := openStore(cmd.Context(), c, log)
		if err != nil {
			return err
		}
		defer st.Close()
		fmt.Printf("✓ Database ready: %s\n", c.DatabaseURL)

		if err := utils.EnsureDir(c.DataDir); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		fmt.Printf("✓ Data directory: %s\n", c.DataDir)

		if initWriteConfig {
			path := cfgFile
			if path == "" {
				dir, err := cfgpkg.Dir()
				if err != nil {
					return err
				}
				path = filepath.Join(dir, "config.yaml")
			}
			// Refuse to overwrite an existing config.
			if _, err := os.Stat(path); err == nil {
				fmt.Printf("⚠ Config already exists at %s; leaving it unchanged\n", path)
				return nil
			}
			if err := cfgpkg.Save(c, cfgFile); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote config: %s\n", path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initWriteConfig, "write-config", false, "also write the effective configuration to the config file")
}
