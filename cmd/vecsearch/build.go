package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newTrainCmd(root *rootOptions) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the quantizer of a collection",
		Long: `Train loads a TSV or XLSX document file, embeds a sample of its chunks
and stores the trained quantizer in the collection's pqmodel directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, col, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			records, err := a.LoadRecords(input)
			if err != nil {
				return err
			}
			if _, err := a.Train(cmd.Context(), col, records); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "trained %s from %d chunks in %s\n",
				col.Name, len(records), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "document file (.tsv, .csv or .xlsx)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func newBuildCmd(root *rootOptions) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Train, index and store a collection",
		Long: `Build trains a quantizer on the document file, adds every chunk to a new
index and stores both under the collection's data directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, col, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			s, err := a.Build(cmd.Context(), col, input)
			if err != nil {
				return err
			}
			defer s.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "built %s: %d documents in %s\n",
				col.Name, s.Len(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "document file (.tsv, .csv or .xlsx)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}
