package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fpang/wildlife-vision/internal/cli"
	"github.com/fpang/wildlife-vision/internal/filehandler"
)

var errNoMirror = errors.New("no report bucket configured (set WILDLIFE_REPORT_BUCKET)")

func newReportsCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List, bundle, mirror and clear report files",
	}
	cmd.AddCommand(
		newReportsListCmd(o),
		newReportsClearCmd(o),
		newReportsBundleCmd(o),
		newReportsSyncCmd(o),
		newReportsPullCmd(o),
		newReportsShareCmd(o),
	)
	return cmd
}

func newReportsListCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List report files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := o.openStores(cmd.Context())
			if err != nil {
				return err
			}
			names, err := st.reports.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "No reports.")
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(out, n)
			}
			return nil
		},
	}
}

func newReportsClearCmd(o *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every report file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := o.openStores(cmd.Context())
			if err != nil {
				return err
			}
			names, err := st.reports.List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "No reports.")
				return nil
			}
			if !yes && !cli.Confirm(cmd.InOrStdin(), out, fmt.Sprintf("Delete %d report(s)? This cannot be undone.", len(names))) {
				fmt.Fprintln(out, "Aborted. Nothing was deleted.")
				return nil
			}

			n, err := st.reports.Clear()
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

func newReportsBundleCmd(o *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Pack every report into one zip archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := o.openStores(cmd.Context())
			if err != nil {
				return err
			}
			names, err := st.reports.List()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				return errors.New("no reports to bundle")
			}

			paths := make([]string, len(names))
			for i, n := range names {
				paths[i] = filepath.Join(st.reports.Dir(), n)
			}
			if output == "" {
				output = "reports_" + time.Now().Format("20060102_150405") + ".zip"
			}
			if err := filehandler.WriteZip(output, paths); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bundled %d report(s) into %s\n", len(paths), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive path (default reports_<timestamp>.zip)")
	return cmd
}

func newReportsSyncCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Upload every report to the configured S3 bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := o.openStores(cmd.Context())
			if err != nil {
				return err
			}
			if st.mirror == nil {
				return errNoMirror
			}
			n, err := st.reports.Sync(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d report(s) to s3://%s\n", n, st.mirror.Bucket())
			return err
		},
	}
}

func newReportsPullCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pull <report>",
		Short: "Download a mirrored report into the report directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := o.openStores(cmd.Context())
			if err != nil {
				return err
			}
			if st.mirror == nil {
				return errNoMirror
			}
			path, err := st.mirror.Download(cmd.Context(), args[0], st.reports.Dir())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s\n", path)
			return nil
		},
	}
}

func newReportsShareCmd(o *rootOptions) *cobra.Command {
	var expires time.Duration

	cmd := &cobra.Command{
		Use:   "share <report>",
		Short: "Print a time-limited download link for a mirrored report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := o.openStores(cmd.Context())
			if err != nil {
				return err
			}
			if st.mirror == nil {
				return errNoMirror
			}
			url, err := st.mirror.PresignedURL(cmd.Context(), args[0], expires)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}

	cmd.Flags().DurationVar(&expires, "expires", 24*time.Hour, "Link lifetime")
	return cmd
}
