package cli

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mchmarny/vascular/pkg/data"
	"github.com/mchmarny/vascular/pkg/metrics"
	"github.com/mchmarny/vascular/pkg/model"
	"github.com/mchmarny/vascular/pkg/report"
	"github.com/mchmarny/vascular/pkg/score"
	"github.com/mchmarny/vascular/pkg/table"
)

const homeRunLimit = 10

type predictionRow struct {
	Row           int
	Class         int
	ClassName     string
	Mismatch      bool
	Confidence    string
	Band          score.Band
	Probabilities []string
	Actual        string
}

type classRow struct {
	Class     int
	Name      string
	Precision string
	Recall    string
	F1        string
	Support   int
	AUC       string
}

type metricsView struct {
	Accuracy  string
	Precision string
	Recall    string
	F1        string
	AUC       string
	Classes   []classRow
	Labels    []int
	Confusion [][]int
}

type homeView struct {
	Version     string
	Commit      string
	BuildDate   string
	Err         string
	Model       *model.Info
	Runs        []*data.RunSummary
	MaxUploadMB int64
}

type runView struct {
	Version  string
	Run      *data.Run
	Preview  *table.Table
	Columns  []string
	Rows     []predictionRow
	Warnings []string
	Metrics  *metricsView
	HasROC   bool
	Formats  []report.Format
}

func formatFloat(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}

func newRunView(run *data.Run, opts report.Options) *runView {
	v := &runView{
		Version: version,
		Run:     run,
		Preview: run.Preview,
		Formats: report.Formats,
	}
	if run.Result == nil || run.Result.Batch == nil {
		return v
	}

	b := run.Result.Batch
	v.Columns = b.Columns()
	v.Warnings = run.Result.Warnings
	for _, p := range b.Predictions {
		row := predictionRow{
			Row:        p.Row + 1,
			Class:      p.Class,
			ClassName:  opts.ClassName(p.Class),
			Mismatch:   p.Mismatch(),
			Confidence: formatFloat(p.Confidence, opts.Precision),
			Band:       opts.Thresholds.Band(score.Round(p.Confidence, opts.Precision)),
		}
		for _, pr := range p.Probabilities {
			row.Probabilities = append(row.Probabilities, formatFloat(pr, opts.Precision))
		}
		if p.Actual != nil {
			row.Actual = strconv.Itoa(*p.Actual)
		}
		v.Rows = append(v.Rows, row)
	}

	if s := run.Result.Summary; s != nil {
		v.Metrics = newMetricsView(s, opts)
		v.HasROC = len(s.ROC) > 0
	}
	return v
}

func newMetricsView(s *metrics.Summary, opts report.Options) *metricsView {
	f := func(v float64) string { return formatFloat(v, opts.Precision) }
	m := &metricsView{
		Accuracy:  f(s.Accuracy),
		Precision: f(s.Precision),
		Recall:    f(s.Recall),
		F1:        f(s.F1),
		Labels:    s.Labels,
		Confusion: s.Confusion,
	}
	if s.AUC != nil {
		m.AUC = f(*s.AUC)
	}
	for _, c := range s.Classes {
		r := classRow{
			Class:     c.Class,
			Name:      opts.ClassName(c.Class),
			Precision: f(c.Precision),
			Recall:    f(c.Recall),
			F1:        f(c.F1),
			Support:   c.Support,
		}
		if c.AUC != nil {
			r.AUC = f(*c.AUC)
		}
		m.Classes = append(m.Classes, r)
	}
	return m
}

func faviconHandler(w http.ResponseWriter, r *http.Request) {
	file, err := embedFS.ReadFile("assets/img/favicon.svg")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if _, err = w.Write(file); err != nil {
		slog.Error("failed to write favicon", "error", err)
	}
}

func render(s *server, w http.ResponseWriter, status int, name string, d any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, d); err != nil {
		slog.Error("template render failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("failed to write page", "template", name, "error", err)
	}
}

func homeViewHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := data.ListRuns(s.db, homeRunLimit)
		if err != nil {
			slog.Error("failed to list runs", "error", err)
		}
		d := &homeView{
			Version:     version,
			Commit:      commit,
			BuildDate:   date,
			Err:         r.URL.Query().Get("err"),
			Model:       s.info,
			Runs:        runs,
			MaxUploadMB: s.maxUpload / bytesPerMB,
		}
		render(s, w, http.StatusOK, "home", d)
	}
}

func predictViewHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := scoreUpload(s, w, r)
		if err != nil {
			msg := err.Error()
			if errorStatus(err) == http.StatusInternalServerError {
				slog.Error("failed to score upload", "error", err)
				msg = "failed to score upload"
			}
			http.Redirect(w, r, "/?err="+url.QueryEscape(msg), http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/runs/"+url.PathEscape(run.ID), http.StatusSeeOther)
	}
}

func getRunOrFail(s *server, w http.ResponseWriter, r *http.Request) (*data.Run, bool) {
	run, err := data.GetRun(s.db, r.PathValue("id"))
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			slog.Error("failed to get run", "error", err)
		}
		http.Error(w, http.StatusText(status), status)
		return nil, false
	}
	return run, true
}

func runViewHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, ok := getRunOrFail(s, w, r)
		if !ok {
			return
		}
		render(s, w, http.StatusOK, "run", newRunView(run, s.opts))
	}
}

func rocHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, ok := getRunOrFail(s, w, r)
		if !ok {
			return
		}

		var buf bytes.Buffer
		if err := report.WriteROC(&buf, run.Result.Summary, s.opts); err != nil {
			if errors.Is(err, report.ErrNoCurves) {
				http.NotFound(w, r)
				return
			}
			slog.Error("failed to render roc plot", "run", run.ID, "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		if _, err := buf.WriteTo(w); err != nil {
			slog.Error("failed to write roc plot", "error", err)
		}
	}
}

func exportBase(source string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if base == "" || base == "." {
		base = "upload"
	}
	return base
}

func exportFileName(source string, f report.Format) string {
	return fmt.Sprintf("%s-predictions.%s", exportBase(source), f)
}

func downloadHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := report.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		run, ok := getRunOrFail(s, w, r)
		if !ok {
			return
		}

		var buf bytes.Buffer
		if err := report.Write(&buf, f, run.Result, s.opts); err != nil {
			slog.Error("failed to export run", "run", run.ID, "format", f, "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", f.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFileName(run.FileName, f)))
		if _, err := buf.WriteTo(w); err != nil {
			slog.Error("failed to write export", "error", err)
		}
	}
}
