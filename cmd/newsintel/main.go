package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"newsintel/internal/app"
	"newsintel/internal/config"
	"newsintel/internal/domain"
	"newsintel/internal/logging"
	"newsintel/internal/usecase"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var userID, email string

	root := &cobra.Command{
		Use:           "newsintel",
		Short:         "Philippine news search and AI summarization pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&userID, "user", "", "user identity for credential resolution")
	root.PersistentFlags().StringVar(&email, "email", "", "user email for the secondary credential lookup")

	root.AddCommand(newAnalyzeCmd(&userID, &email))
	root.AddCommand(newRotateKeyCmd(&userID, &email))
	return root
}

func newAnalyzeCmd(userID, email *string) *cobra.Command {
	var (
		keyword      string
		date         string
		withBriefing bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Search news by keyword and summarize each article",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

			onUpdate := func(index int, article domain.Article) {
				switch article.Status {
				case domain.StatusAnalyzing:
					fmt.Printf("[%d] analyzing: %s\n", index+1, article.Title)
				case domain.StatusDone:
					fmt.Printf("[%d] %s\n%s\n\n", index+1, article.Title, article.Summary)
				}
			}

			application, err := app.New(cfg, logger, usecase.UpdateFunc(onUpdate))
			if err != nil {
				return err
			}
			defer application.Close()

			var day *time.Time
			if date != "" {
				parsed, err := time.ParseInLocation("2006-01-02", date, cfg.News.Location())
				if err != nil {
					return fmt.Errorf("invalid --date %q (want YYYY-MM-DD): %w", date, err)
				}
				day = &parsed
			}

			sess := application.NewSession(domain.User{ID: *userID, Email: *email})

			run, err := application.Analyze(cmd.Context(), sess, keyword, day)
			if err != nil {
				return err
			}

			if withBriefing {
				briefing, err := application.Brief(cmd.Context(), sess)
				if err != nil {
					return err
				}
				fmt.Printf("--- briefing (%s) ---\n%s\n", run.Model.ModelID, briefing.Text)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&keyword, "keyword", "", "search topic (required)")
	cmd.Flags().StringVar(&date, "date", "", "target day, YYYY-MM-DD in the configured timezone")
	cmd.Flags().BoolVar(&withBriefing, "briefing", false, "synthesize an aggregate briefing after the run")
	_ = cmd.MarkFlagRequired("keyword")
	return cmd
}

func newRotateKeyCmd(userID, email *string) *cobra.Command {
	var newKey string

	cmd := &cobra.Command{
		Use:   "rotate-key",
		Short: "Replace the user's primary AI key in the credential store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

			application, err := app.New(cfg, logger, nil)
			if err != nil {
				return err
			}
			defer application.Close()

			user := domain.User{ID: *userID, Email: *email}
			if err := application.RotateKey(cmd.Context(), user, newKey); err != nil {
				return err
			}

			fmt.Println("key rotated, cached credentials invalidated")
			return nil
		},
	}

	cmd.Flags().StringVar(&newKey, "key", "", "new primary provider API key (required)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
