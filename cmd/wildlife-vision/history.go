package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fpang/wildlife-vision/internal/cli"
	"github.com/fpang/wildlife-vision/internal/history"
)

func newHistoryCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse, export and clear saved classification runs",
	}
	cmd.AddCommand(
		newHistoryListCmd(o),
		newHistoryShowCmd(o),
		newHistoryExportCmd(o),
		newHistoryClearCmd(o),
	)
	return cmd
}

func newHistoryListCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved runs, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := o.openStores(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := st.history.List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "No saved runs.")
				return nil
			}
			for _, id := range ids {
				rec, err := st.history.Load(id)
				if err != nil {
					fmt.Fprintf(out, "%s  (unreadable)\n", id)
					continue
				}
				fmt.Fprintf(out, "%s  %s  %d image(s), %d label(s)\n", id,
					rec.Timestamp.Format("2006-01-02 15:04:05"),
					len(rec.ImageClassifications), rec.ClassCounts.Total())
			}
			return nil
		},
	}
}

func newHistoryShowCmd(o *rootOptions) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "show [record]",
		Short: "Show one run (the newest when no record is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := o.openStores(cmd.Context())
			if err != nil {
				return err
			}
			id, err := recordArg(st.history, args)
			if err != nil {
				return err
			}
			rec, err := st.history.Load(id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if raw {
				data, err := json.MarshalIndent(rec, "", "    ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "Record: %s\n", rec.ID)
			fmt.Fprintf(out, "Saved:  %s\n", rec.Timestamp.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Images: %d\n", len(rec.ImageClassifications))
			fmt.Fprintln(out, "--------------------------------------------")
			cli.WriteBarChart(out, rec.ClassCounts, st.locale.Translate)
			fmt.Fprintln(out, "--------------------------------------------")
			for _, ic := range rec.ImageClassifications {
				label := "-"
				if len(ic.Classes) > 0 {
					label = st.locale.Translate(ic.Classes[0])
				}
				fmt.Fprintf(out, "   %-40s %s\n", ic.Image, label)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "json", false, "Print the stored JSON")
	return cmd
}

func newHistoryExportCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [record]",
		Short: "Export a report for one run (the newest when no record is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := o.openStores(cmd.Context())
			if err != nil {
				return err
			}
			id, err := recordArg(st.history, args)
			if err != nil {
				return err
			}
			name, err := st.reports.Export(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report: %s\n", filepath.Join(st.reports.Dir(), name))
			return nil
		},
	}
}

func newHistoryClearCmd(o *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := o.openStores(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := st.history.List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "No saved runs.")
				return nil
			}
			if !yes && !cli.Confirm(cmd.InOrStdin(), out, fmt.Sprintf("Delete %d saved run(s)? This cannot be undone.", len(ids))) {
				fmt.Fprintln(out, "Aborted. Nothing was deleted.")
				return nil
			}

			n, err := st.history.Clear()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Deleted %d file(s).\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// recordArg returns args[0], or the newest record when args is empty.
func recordArg(h *history.Store, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	id, err := h.Latest()
	if errors.Is(err, history.ErrNotFound) {
		return "", errors.New("no saved runs")
	}
	return id, err
}
