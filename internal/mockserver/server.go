// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package mockserver is an in-memory stand-in for the waste transport web
// app. It serves the same JSON endpoints, issues a csrftoken cookie and
// enforces it on POSTs, and detects import conflicts on manifest and waste id.
// It backs the demo-server command and end-to-end tests.
package mockserver

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/latiju/wastectl/internal/importflow"
	"github.com/latiju/wastectl/pkg/wasteapi"
)

// MaxUploadBytes is the import form's file size limit.
const MaxUploadBytes = 5 << 20

// autocompleteLimit caps suggestion lists.
const autocompleteLimit = 20

// Options configures a Server.
type Options struct {
	// CSRFToken is the token issued by the list page; random when empty.
	CSRFToken string
	// Latency delays import and resolve responses so progress is visible.
	Latency time.Duration
	Logger  *logrus.Logger
}

// ImportRecord is one finished import, like the ImportHistory table.
type ImportRecord struct {
	Filename   string
	ImportType wasteapi.ManifestType
	Resolution wasteapi.Resolution
	Total      int
	Imported   int
	Skipped    int
}

// Server is the fake backend. Safe for concurrent use.
type Server struct {
	opts   Options
	log    *logrus.Entry
	router *mux.Router

	mu        sync.Mutex
	manifests []*Manifest
	history   []ImportRecord
	requests  map[string]int
}

// New creates an empty server.
func New(opts Options) *Server {
	if opts.CSRFToken == "" {
		opts.CSRFToken = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	s := &Server{
		opts:     opts,
		log:      logger.WithField("component", "mockserver"),
		requests: make(map[string]int),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter().UseEncodedPath()
	r.Use(s.logRequests)

	base := r.PathPrefix(wasteapi.BasePath).Subrouter()
	base.HandleFunc("/", s.handleList).Methods(http.MethodGet)

	writes := base.NewRoute().Subrouter()
	writes.Use(s.requireCSRF)
	writes.HandleFunc("/import/", s.handleImport).Methods(http.MethodPost)
	writes.HandleFunc("/resolve_conflicts/", s.handleResolve).Methods(http.MethodPost)
	writes.HandleFunc("/delete_manifests/", s.handleDelete).Methods(http.MethodPost)

	base.HandleFunc("/get_all_manifest_ids/", s.handleIDs).Methods(http.MethodGet)
	base.HandleFunc("/export/", s.handleExport).Methods(http.MethodGet)
	base.HandleFunc("/autocomplete/{field}/", s.handleAutocomplete).Methods(http.MethodGet)
	base.HandleFunc("/{type:disposal|reuse}/{manifest}/{waste}", s.handleDetail).Methods(http.MethodGet)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// CSRFToken is the token the list page issues.
func (s *Server) CSRFToken() string { return s.opts.CSRFToken }

// Seed stores manifests as visible.
func (s *Server) Seed(ms ...Manifest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range ms {
		m := ms[i]
		m.Visible = true
		s.manifests = append(s.manifests, &m)
	}
}

// Visible returns copies of the visible manifests in insertion order.
func (s *Server) Visible() []Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Manifest
	for _, m := range s.manifests {
		if m.Visible {
			out = append(out, *m)
		}
	}
	return out
}

// History returns the finished imports.
func (s *Server) History() []ImportRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ImportRecord(nil), s.history...)
}

// Requests counts handled requests for a route path such as "/import/".
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.mu.Lock()
		s.requests[strings.TrimPrefix(r.URL.Path, wasteapi.BasePath)]++
		s.mu.Unlock()

		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"request_id": r.Header.Get(wasteapi.RequestIDHeader),
			"duration":   time.Since(start).Round(time.Millisecond),
		}).Info("request")
	})
}

func (s *Server) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(wasteapi.CSRFCookieName)
		header := r.Header.Get(wasteapi.CSRFHeader)
		if err != nil || header == "" || cookie.Value != header || header != s.opts.CSRFToken {
			writeJSON(w, http.StatusForbidden, map[string]any{"error": "CSRF verification failed"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) delay(r *http.Request) {
	if s.opts.Latency <= 0 {
		return
	}
	select {
	case <-time.After(s.opts.Latency):
	case <-r.Context().Done():
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: wasteapi.CSRFCookieName, Value: s.opts.CSRFToken, Path: "/"})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	visible := len(s.Visible())
	fmt.Fprintf(w, "<html><body><h1>聯單清單</h1><p>%d manifests</p></body></html>", visible)
}

func formErrors(field, msg string) map[string]any {
	return map[string]any{"success": false, "errors": map[string][]string{field: {msg}}}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	s.delay(r)
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeJSON(w, http.StatusOK, formErrors("csv_file", "請選擇一個檔案"))
		return
	}
	file, hdr, err := r.FormFile("csv_file")
	if err != nil {
		writeJSON(w, http.StatusOK, formErrors("csv_file", "請選擇一個檔案"))
		return
	}
	defer file.Close()

	name := strings.ToLower(hdr.Filename)
	if !strings.HasSuffix(name, ".csv") && !strings.HasSuffix(name, ".xlsx") {
		writeJSON(w, http.StatusOK, formErrors("csv_file", "僅支援 CSV 或 XLSX 檔案格式"))
		return
	}
	if hdr.Size > MaxUploadBytes {
		writeJSON(w, http.StatusOK, formErrors("csv_file", "檔案大小不得超過5MB"))
		return
	}
	importType, err := wasteapi.ParseManifestType(r.FormValue("import_type"))
	if err != nil {
		writeJSON(w, http.StatusOK, formErrors("import_type", "選擇有效的選項"))
		return
	}
	resolution := wasteapi.Resolution(r.FormValue("conflict_resolution"))
	if resolution == "" {
		resolution = wasteapi.Ask
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "匯入過程中發生錯誤：" + err.Error()})
		return
	}
	if filepath.Ext(name) == ".xlsx" {
		if raw, err = importflow.SheetToCSV(raw); err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "匯入過程中發生錯誤：" + err.Error()})
			return
		}
	}
	csvData := strings.TrimPrefix(string(raw), "\ufeff")
	rows, err := parseRows(csvData)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "匯入過程中發生錯誤：" + err.Error()})
		return
	}

	s.mu.Lock()
	conflicts := s.conflictsLocked(rows)
	s.mu.Unlock()

	if len(conflicts) > 0 && resolution == wasteapi.Ask {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":             false,
			"conflict":            true,
			"conflicting_records": conflicts,
			"import_data": map[string]any{
				"csv_data":    csvData,
				"import_type": importType,
				"filename":    hdr.Filename,
			},
		})
		return
	}
	writeJSON(w, http.StatusOK, s.process(rows, importType, resolution, hdr.Filename))
}

func (s *Server) findLocked(manifestID, wasteID string) *Manifest {
	for _, m := range s.manifests {
		if m.Visible && m.Key.ManifestID == manifestID && m.Key.WasteID == wasteID {
			return m
		}
	}
	return nil
}

func (s *Server) conflictsLocked(rows []map[string]string) []wasteapi.ConflictRecord {
	var out []wasteapi.ConflictRecord
	for _, row := range rows {
		mid, wid := row[ColManifestID], row[ColWasteID]
		if mid == "" || wid == "" {
			continue
		}
		existing := s.findLocked(mid, wid)
		if existing == nil {
			continue
		}
		newData := make(map[string]string)
		for k, v := range row {
			if v != "" {
				newData[k] = v
			}
		}
		out = append(out, wasteapi.ConflictRecord{
			ManifestID:   mid,
			WasteID:      wid,
			CompanyName:  row[ColCompanyName],
			ReportDate:   row[ColReportDate],
			ExistingData: existing.existingData(),
			NewData:      newData,
		})
	}
	return out
}

// process imports rows. Cancel discards the whole file.
func (s *Server) process(rows []map[string]string, t wasteapi.ManifestType, res wasteapi.Resolution, filename string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(rows)
	imported, skipped := 0, 0
	if res == wasteapi.Cancel {
		skipped = total
	} else {
		for _, row := range rows {
			mid, wid := row[ColManifestID], row[ColWasteID]
			if mid == "" || wid == "" {
				skipped++
				continue
			}
			if existing := s.findLocked(mid, wid); existing != nil {
				if res != wasteapi.Replace {
					skipped++
					continue
				}
				existing.Visible = false
			}
			s.manifests = append(s.manifests, manifestFromRow(t, row))
			imported++
		}
	}
	s.history = append(s.history, ImportRecord{
		Filename: filename, ImportType: t, Resolution: res,
		Total: total, Imported: imported, Skipped: skipped,
	})

	msg := fmt.Sprintf("成功匯入 %d 筆資料，跳過 %d 筆資料", imported, skipped)
	if res == wasteapi.Cancel {
		msg = "已取消匯入"
	}
	return map[string]any{
		"success":  true,
		"message":  msg,
		"imported": imported,
		"skipped":  skipped,
		"total":    total,
	}
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	s.delay(r)
	var body struct {
		CSVData            string `json:"csv_data"`
		ImportType         string `json:"import_type"`
		Filename           string `json:"filename"`
		ConflictResolution string `json:"conflict_resolution"`
		ApplyToAll         bool   `json:"apply_to_all"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "處理衝突解決時發生錯誤：" + err.Error()})
		return
	}
	if body.CSVData == "" || body.ImportType == "" || body.Filename == "" || body.ConflictResolution == "" {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "缺少必要參數"})
		return
	}
	t, err := wasteapi.ParseManifestType(body.ImportType)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "缺少必要參數"})
		return
	}
	res, err := wasteapi.ParseResolution(body.ConflictResolution)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "無效的衝突處理方式"})
		return
	}
	rows, err := parseRows(body.CSVData)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "處理衝突解決時發生錯誤：" + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.process(rows, t, res, body.Filename))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Manifests []struct {
			Type       string `json:"type"`
			ManifestID string `json:"manifestId"`
			WasteID    string `json:"wasteId"`
		} `json:"manifests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "移除過程中發生錯誤：" + err.Error()})
		return
	}
	if len(body.Manifests) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "未提供要移除的聯單"})
		return
	}

	s.mu.Lock()
	deleted := 0
	for _, k := range body.Manifests {
		if k.Type == "" || k.ManifestID == "" || k.WasteID == "" {
			continue
		}
		for _, m := range s.manifests {
			if m.Visible && string(m.Key.Type) == k.Type && m.Key.ManifestID == k.ManifestID && m.Key.WasteID == k.WasteID {
				m.Visible = false
				deleted++
			}
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"deleted_count": deleted,
		"message":       fmt.Sprintf("成功移除 %d 筆聯單", deleted),
	})
}

func queryMap(v url.Values) map[string]string {
	q := make(map[string]string, len(v))
	for k := range v {
		q[k] = strings.TrimSpace(v.Get(k))
	}
	return q
}

func (s *Server) filtered(r *http.Request) []*Manifest {
	q := queryMap(r.URL.Query())
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Manifest
	for _, m := range s.manifests {
		if m.match(q) {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out
}

func (s *Server) handleIDs(w http.ResponseWriter, r *http.Request) {
	ms := s.filtered(r)
	keys := make([]wasteapi.ManifestKey, 0, len(ms))
	for _, m := range ms {
		keys = append(keys, m.Key)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "manifests": keys})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="manifests.csv"`)
	if err := writeExport(w, s.filtered(r)); err != nil {
		s.log.WithError(err).Warn("export failed")
	}
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	field, err := wasteapi.ParseField(mux.Vars(r)["field"])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query().Get("q")

	s.mu.Lock()
	seen := make(map[string]bool)
	var values []string
	for _, m := range s.manifests {
		var v string
		switch field {
		case wasteapi.FieldCompanyName:
			v = m.CompanyName
		case wasteapi.FieldWasteName:
			v = m.WasteName
		case wasteapi.FieldWasteCode:
			v = m.WasteCode
		}
		if v == "" || seen[v] || !contains(v, q) {
			continue
		}
		seen[v] = true
		values = append(values, v)
		if len(values) == autocompleteLimit {
			break
		}
	}
	s.mu.Unlock()

	results := make([]map[string]string, 0, len(values))
	for _, v := range values {
		results = append(results, map[string]string{field.DisplayKey(): v})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

var detailTemplate = template.Must(template.New("detail").Parse(`<div class="ts-box">
  <div class="ts-header is-heavy">{{.Title}}</div>
  <div class="ts-text">事業機構名稱: {{.CompanyName}}</div>
  <table class="ts-table">
    {{range .Rows}}<tr><td>{{index . 0}}</td><td>{{index . 1}}</td></tr>
    {{end}}
  </table>
</div>`))

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mid, err1 := url.PathUnescape(vars["manifest"])
	wid, err2 := url.PathUnescape(vars["waste"])
	if err1 != nil || err2 != nil {
		http.NotFound(w, r)
		return
	}
	key := wasteapi.ManifestKey{Type: wasteapi.ManifestType(vars["type"]), ManifestID: mid, WasteID: wid}

	s.mu.Lock()
	var found *Manifest
	for _, m := range s.manifests {
		if m.Visible && m.Key == key {
			copied := *m
			found = &copied
			break
		}
	}
	s.mu.Unlock()
	if found == nil {
		http.NotFound(w, r)
		return
	}

	title := "清除單 " + mid
	codeLabel, nameLabel := ColWasteCode, ColWasteName
	if key.Type == wasteapi.Reuse {
		title = "再利用單 " + mid
		codeLabel, nameLabel = ColSubstanceCode, ColSubstanceName
	}
	confirmed := "否"
	if found.Confirmed {
		confirmed = "是"
	}
	data := map[string]any{
		"Title":       title,
		"CompanyName": found.CompanyName,
		"Rows": [][2]string{
			{ColWasteID, wid},
			{ColCompanyID, found.CompanyID},
			{ColReportDate, found.ReportDate},
			{codeLabel, found.WasteCode},
			{nameLabel, found.WasteName},
			{ColWeight, found.Weight},
			{ColConfirmed, confirmed},
		},
	}

	var b strings.Builder
	if err := detailTemplate.Execute(&b, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if r.Header.Get(wasteapi.RequestedWithHeader) == "XMLHttpRequest" {
		writeJSON(w, http.StatusOK, map[string]string{"html": b.String()})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><body>%s</body></html>", b.String())
}
