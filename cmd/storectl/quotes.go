package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"grene-storefront/internal/config"
	"grene-storefront/internal/quotes"
)

func quotesCmd(load func() (config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quotes",
		Short: "Inspect and export stored quote requests",
	}
	cmd.AddCommand(quotesListCmd(load))
	cmd.AddCommand(quotesExportCmd(load))
	return cmd
}

// openQuotes returns the configured repository and a closer for it.
func openQuotes(cfg config.Config) (quotes.Repository, func() error, error) {
	switch cfg.Quotes.Backend {
	case "sqlite":
		st, err := quotes.NewSQLiteStore(cfg.Quotes.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open quote store: %w", err)
		}
		return st, st.Close, nil
	case "", "file":
		return quotes.NewFileStore(cfg.Quotes.Path), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown quotes backend %q", cfg.Quotes.Backend)
	}
}

func loadQuotes(cmd *cobra.Command, load func() (config.Config, error), q string) ([]quotes.Record, error) {
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	repo, closeRepo, err := openQuotes(cfg)
	if err != nil {
		return nil, err
	}
	defer closeRepo()
	list, err := repo.List(cmd.Context(), q)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	return list, nil
}

func quotesListCmd(load func() (config.Config, error)) *cobra.Command {
	var q string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print stored quotes as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := loadQuotes(cmd, load, q)
			if err != nil {
				return err
			}
			out := make([]map[string]any, 0, len(list))
			for _, r := range list {
				out = append(out, flatten(r))
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVarP(&q, "query", "q", "", "substring filter")
	return cmd
}

func quotesExportCmd(load func() (config.Config, error)) *cobra.Command {
	var (
		q   string
		out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored quotes as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := loadQuotes(cmd, load, q)
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			return quotes.WriteCSV(w, list)
		},
	}
	cmd.Flags().StringVarP(&q, "query", "q", "", "substring filter")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

// flatten mirrors the stored JSON shape so YAML output reads the same.
func flatten(r quotes.Record) map[string]any {
	m := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		m[k] = v
	}
	m["id"] = r.ID
	m["createdAt"] = r.CreatedAt
	if len(r.LineItems) > 0 {
		m["lineItems"] = r.LineItems
	}
	return m
}
