package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPublishCmd(root *rootOptions) *cobra.Command {
	var noPrune bool

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload a collection snapshot and make it current",
		Long: `Publish uploads the stored quantizer and index of a collection to the
configured snapshot store, points CURRENT at it and prunes snapshots beyond
snapshot.keep.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, col, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			syncer, err := a.NewSyncer(cmd.Context(), col.Name)
			if err != nil {
				return err
			}

			m, err := syncer.Publish(cmd.Context(), col.DataDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s snapshot %s (%d files, %d bytes)\n",
				col.Name, m.ID, len(m.Files), m.Size())

			if noPrune {
				return nil
			}
			deleted, err := syncer.Prune(cmd.Context(), a.Config.Snapshot.Keep)
			if err != nil {
				return err
			}
			for _, id := range deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noPrune, "no-prune", false, "keep every older snapshot")

	return cmd
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download a collection snapshot",
		Long:  `Fetch downloads the current snapshot (or the one given by --id) into the collection's data directory.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, col, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			syncer, err := a.NewSyncer(cmd.Context(), col.Name)
			if err != nil {
				return err
			}

			if id == "" {
				if id, err = syncer.Current(cmd.Context()); err != nil {
					return err
				}
			}

			m, err := syncer.FetchID(cmd.Context(), id, col.DataDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fetched %s snapshot %s into %s\n", col.Name, m.ID, col.DataDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "snapshot id (default: current)")

	return cmd
}

func newSnapshotsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List published snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, col, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			syncer, err := a.NewSyncer(cmd.Context(), col.Name)
			if err != nil {
				return err
			}

			ids, err := syncer.List(cmd.Context())
			if err != nil {
				return err
			}
			current, _ := syncer.Current(cmd.Context())

			for _, id := range ids {
				marker := " "
				if id == current {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, id)
			}
			return nil
		},
	}
}

func newPruneCmd(root *rootOptions) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old snapshots",
		Long:  `Prune deletes all but the newest --keep snapshots. The current snapshot is never deleted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, col, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("keep") {
				keep = a.Config.Snapshot.Keep
			}

			syncer, err := a.NewSyncer(cmd.Context(), col.Name)
			if err != nil {
				return err
			}

			deleted, err := syncer.Prune(cmd.Context(), keep)
			if err != nil {
				return err
			}
			for _, id := range deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 3, "number of snapshots to keep")

	return cmd
}
