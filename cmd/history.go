package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vynguyen175/vizion/internal/auth"
	"github.com/vynguyen175/vizion/internal/charts"
	"github.com/vynguyen175/vizion/internal/store"
	"github.com/vynguyen175/vizion/internal/utils"
	"github.com/vynguyen175/vizion/internal/workspace"
)

var (
	histEmail string
	histYes   bool
)

// session bundles what the account-scoped commands need.
type session struct {
	store *store.Store
	ws    *workspace.Service
	auth  *auth.Service
	log   *zap.Logger
	close func()
}

func openSession(ctx context.Context) (*session, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	log, cleanup, err := newLogger(c)
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, c, log)
	if err != nil {
		cleanup()
		return nil, err
	}
	return &session{
		store: st,
		ws:    workspace.New(st, c.DataDir, c.AnalysisOptions(), log),
		auth:  auth.New(st, log, auth.WithBcryptCost(c.BcryptCost), auth.WithSessionTTL(c.SessionTTL)),
		log:   log,
		close: func() {
			st.Close()
			cleanup()
		},
	}, nil
}

// user resolves --email to an account.
func (s *session) user(ctx context.Context, email string) (*store.User, error) {
	if email == "" {
		return nil, errors.New("--email is required")
	}
	u, err := s.store.UserByEmail(ctx, auth.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("no user with email %s", email)
	}
	return u, err
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List, show or clear a user's saved analyses",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved analyses, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()
		u, err := s.user(ctx, histEmail)
		if err != nil {
			return err
		}
		list, err := s.ws.History(ctx, u.ID)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("(no saved analyses)")
			return nil
		}
		for _, a := range list {
			fmt.Printf("- %s  %s  %s\n  %s\n", a.ID, a.CreatedAt.Local().Format("2006-01-02 15:04:05"), a.Dataset.Filename, a.Summary)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <analysis-id>",
	Short: "Print a saved analysis and its chart configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()
		u, err := s.user(ctx, histEmail)
		if err != nil {
			return err
		}
		op, err := s.ws.OpenAnalysis(ctx, u.ID, args[0])
		if err != nil {
			if errors.Is(err, workspace.ErrDatasetMissing) || errors.Is(err, store.ErrNotFound) {
				return errors.New(workspace.Message(err))
			}
			return err
		}
		b, err := utils.PrettyJSON(op.Config)
		if err != nil {
			return err
		}
		fmt.Printf("Dataset: %s (%d rows × %d columns)\n", op.Analysis.Dataset.Filename, op.Frame.Len(), op.Frame.NumCols())
		fmt.Printf("Summary: %s\n", op.Analysis.Summary)
		fmt.Printf("Config:\n%s\n", b)
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every saved analysis and dataset of a user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !histYes {
			return errors.New("refusing to clear history without --yes")
		}
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()
		u, err := s.user(ctx, histEmail)
		if err != nil {
			return err
		}
		n, err := s.ws.ClearHistory(ctx, u.ID)
		if err != nil {
			return err
		}
		fmt.Printf("✓ All analysis history deleted (%d analyses)\n", n)
		return nil
	},
}

var (
	importRead  readFlags
	importEmail string
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Upload a file into a user's workspace and save it as an analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()
		u, err := s.user(ctx, importEmail)
		if err != nil {
			return err
		}
		opt, err := importRead.options()
		if err != nil {
			return err
		}
		f, err := importRead.read(args[0], opt)
		if err != nil {
			return err
		}
		ld, err := s.ws.UploadFrame(ctx, u.ID, f)
		if err != nil {
			return err
		}
		a, err := s.ws.SaveAnalysis(ctx, u.ID, ld.Dataset.ID, charts.DefaultConfig(ld.Frame))
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s\n", a.Summary)
		fmt.Printf("✓ Saved analysis %s\n", a.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyClearCmd)
	historyCmd.PersistentFlags().StringVar(&histEmail, "email", "", "account email")
	historyClearCmd.Flags().BoolVar(&histYes, "yes", false, "confirm deletion")

	rootCmd.AddCommand(importCmd)
	importRead.register(importCmd)
	importCmd.Flags().StringVar(&importEmail, "email", "", "account email")
}
