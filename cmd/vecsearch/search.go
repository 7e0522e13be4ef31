package main

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hupe1980/vecsearch"
)

type searchOptions struct {
	clusterTopn int
	topn        int
	keywords    string
	json        bool
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query a stored collection",
		Long: `Search embeds the query and returns the nearest documents of the
collection.

Examples:
  vecsearch search "solar cell efficiency"
  vecsearch search --collection pat --topn 5 "battery electrode"
  vecsearch search --keywords lithium --json "battery" | jq '.[0]'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, col, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("cluster-topn") {
				opts.clusterTopn = a.Config.Server.DefaultClusterTopN
			}
			if !cmd.Flags().Changed("topn") {
				opts.topn = a.Config.Server.DefaultTopN
			}

			s, err := a.OpenCollection(cmd.Context(), col)
			if err != nil {
				return err
			}
			defer s.Close()

			query := strings.Join(args, " ")
			hits, err := s.SearchTextFiltered(cmd.Context(), query, opts.keywords, opts.clusterTopn, opts.topn)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			if opts.json {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(hits)
			}
			printHits(cmd, hits)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.clusterTopn, "cluster-topn", 3, "nearest centroids recalled per segment")
	cmd.Flags().IntVarP(&opts.topn, "topn", "n", 10, "maximum number of results")
	cmd.Flags().StringVarP(&opts.keywords, "keywords", "k", "", "only return documents containing every keyword")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output results as JSON")

	return cmd
}

func printHits(cmd *cobra.Command, hits []vecsearch.Hit) {
	out := cmd.OutOrStdout()
	if len(hits) == 0 {
		fmt.Fprintln(out, "no results")
		return
	}

	for i, h := range hits {
		text := ""
		if len(h.Texts) > 0 {
			text = strings.ReplaceAll(h.Texts[0], "\t", " | ")
		}
		if r := []rune(text); len(r) > 120 {
			text = string(r[:117]) + "..."
		}
		fmt.Fprintf(out, "%2d. [%d] %.4f  %s\n", i+1, h.ID, h.Distance, text)
	}
}
