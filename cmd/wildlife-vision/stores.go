package main

import (
	"context"

	"github.com/fpang/wildlife-vision/internal/history"
	"github.com/fpang/wildlife-vision/internal/report"
	"github.com/fpang/wildlife-vision/internal/s3util"
)

// stores bundles the history store, the report exporter and the optional
// S3 mirror built from the loaded configuration.
type stores struct {
	history *history.Store
	reports *report.Exporter
	mirror  *s3util.ReportMirror
	locale  report.Locale
}

func (o *rootOptions) openStores(ctx context.Context) (*stores, error) {
	cfg := o.cfg
	st := &stores{
		history: history.New(history.Config{Dir: cfg.Store.MetadataDir}),
		locale:  cfg.Report.Locale,
	}

	var mirror report.Mirror
	if cfg.MirrorEnabled() {
		m, err := s3util.NewReportMirror(ctx, cfg.Report.Bucket, cfg.Report.Prefix)
		if err != nil {
			return nil, err
		}
		st.mirror = m
		mirror = m
	}

	st.reports = report.New(report.Config{
		Dir:    cfg.Store.ReportsDir,
		Format: cfg.Report.Format,
		Locale: cfg.Report.Locale,
	}, st.history, mirror)
	return st, nil
}
