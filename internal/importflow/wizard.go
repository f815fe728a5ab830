// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package importflow is the CSV import wizard state machine.
//
// The wizard never performs I/O against the backend itself. Callers take the
// Ticket returned by BeginUpload or BeginSubmit, run the request, and hand the
// outcome back with the same Ticket. A ticket issued before Close is stale and
// its result is ignored.
package importflow

import (
	"errors"
	"fmt"

	"github.com/latiju/wastectl/internal/clierr"
	"github.com/latiju/wastectl/pkg/wasteapi"
)

// State is a wizard phase.
type State int

const (
	Idle State = iota
	FileSelected
	Uploading
	ConflictPending
	ResolvingConflicts
	Submitting
	Success
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FileSelected:
		return "file-selected"
	case Uploading:
		return "uploading"
	case ConflictPending:
		return "conflict-pending"
	case ResolvingConflicts:
		return "resolving-conflicts"
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Busy reports whether a request is outstanding.
func (s State) Busy() bool { return s == Uploading || s == Submitting }

// ErrWrongState is returned when an operation is not valid in the current state.
var ErrWrongState = errors.New("import wizard: operation not allowed now")

// Generic failure texts used when the server sent none.
const (
	GenericUploadError = "Upload failed, please try again"
	GenericSubmitError = "Conflict resolution failed, please try again"
)

// Ticket identifies one outstanding request.
type Ticket struct {
	gen   int
	state State
}

// Result is the outcome shown on success.
type Result struct {
	Message   string
	Imported  int
	Skipped   int
	Total     int
	Cancelled bool
}

// Nav is the outcome of a navigation step.
type Nav int

const (
	Moved Nav = iota
	AtStart
	ReachedEnd
)

// Decision is the single resolution sent to the server.
type Decision struct {
	Resolution wasteapi.Resolution
	ApplyToAll bool
	// NeedsConfirm is set for cancel: it discards the whole import.
	NeedsConfirm bool
	// Mixed is set when per-record choices disagreed and fell back to skip.
	Mixed bool
}

// CloseCheck tells the caller whether closing needs confirmation.
type CloseCheck int

const (
	CloseNow CloseCheck = iota
	NeedsConfirm
)

// Wizard holds one import session. Not safe for concurrent use.
type Wizard struct {
	limits Limits

	state      State
	gen        int
	file       *File
	importType wasteapi.ManifestType

	session  wasteapi.ImportSession
	records  []wasteapi.ConflictRecord
	choices  []wasteapi.Resolution
	applyAll bool
	cursor   int
	decision *Decision

	result  Result
	failure string
	err     error
}

// New creates an idle wizard.
func New(limits Limits) *Wizard {
	return &Wizard{limits: limits, importType: wasteapi.Disposal}
}

// State is the current phase.
func (w *Wizard) State() State { return w.state }

// Generation changes whenever the wizard is closed.
func (w *Wizard) Generation() int { return w.gen }

// File is the selected upload, nil when none.
func (w *Wizard) File() *File { return w.file }

// ImportType is disposal or reuse.
func (w *Wizard) ImportType() wasteapi.ManifestType { return w.importType }

// SetImportType switches the manifest type before upload. It is refused
// while an uploaded session is held, since that session fixes the type.
func (w *Wizard) SetImportType(t wasteapi.ManifestType) error {
	if w.state.Busy() || w.hasConflicts() || w.session != nil {
		return ErrWrongState
	}
	w.importType = t
	return nil
}

// Result is the stats of a finished import.
func (w *Wizard) Result() Result { return w.result }

// Failure is the message for the Failed state.
func (w *Wizard) Failure() string { return w.failure }

// Err is the error behind the last failure, if there was one.
func (w *Wizard) Err() error { return w.err }

func (w *Wizard) hasConflicts() bool {
	return w.state == ConflictPending || w.state == ResolvingConflicts
}

// SelectFile validates path and moves to FileSelected. On a validation error
// the wizard is Idle with no file and nothing is sent.
func (w *Wizard) SelectFile(path string) error {
	switch w.state {
	case Idle, FileSelected, Failed, Success:
	default:
		return ErrWrongState
	}
	f, err := ValidateFile(path, w.limits)
	w.resetSession()
	if err != nil {
		w.file = nil
		w.state = Idle
		return err
	}
	w.file = f
	w.state = FileSelected
	return nil
}

func (w *Wizard) resetSession() {
	w.session = nil
	w.records = nil
	w.choices = nil
	w.applyAll = false
	w.cursor = 0
	w.decision = nil
	w.result = Result{}
	w.failure = ""
	w.err = nil
}

// BeginUpload moves to Uploading and returns the request to send.
func (w *Wizard) BeginUpload() (Ticket, wasteapi.Upload, error) {
	if w.file == nil || (w.state != FileSelected && w.state != Failed) {
		return Ticket{}, wasteapi.Upload{}, ErrWrongState
	}
	w.resetSession()
	w.state = Uploading
	up := wasteapi.Upload{FileName: w.file.Name, Content: w.file.Content, Type: w.importType}
	return Ticket{gen: w.gen, state: Uploading}, up, nil
}

func (w *Wizard) current(t Ticket) bool {
	return t.gen == w.gen && t.state == w.state
}

// ApplyUploadResult records the upload outcome. It returns false and changes
// nothing when t is stale.
func (w *Wizard) ApplyUploadResult(t Ticket, resp *wasteapi.ImportResponse, err error) bool {
	if t.state != Uploading || !w.current(t) {
		return false
	}
	switch {
	case err != nil:
		w.fail(err, clierr.Message(err, GenericUploadError))
	case resp == nil:
		w.fail(nil, GenericUploadError)
	case resp.Success:
		w.succeed(resp, false)
	case resp.Conflict && len(resp.ConflictingRecords) > 0:
		w.session = resp.ImportData
		w.records = resp.ConflictingRecords
		w.choices = make([]wasteapi.Resolution, len(w.records))
		for i := range w.choices {
			w.choices[i] = wasteapi.Skip
		}
		w.cursor = 0
		w.applyAll = false
		w.state = ConflictPending
	default:
		msg := resp.ErrorText()
		if msg == "" {
			msg = GenericUploadError
		}
		w.fail(nil, msg)
	}
	return true
}

func (w *Wizard) succeed(resp *wasteapi.ImportResponse, cancelled bool) {
	w.result = Result{
		Message:   resp.Message,
		Imported:  resp.Imported,
		Skipped:   resp.Skipped,
		Total:     resp.Total,
		Cancelled: cancelled,
	}
	w.session = nil
	w.records = nil
	w.choices = nil
	w.state = Success
}

func (w *Wizard) fail(err error, msg string) {
	w.err = err
	w.failure = msg
	w.state = Failed
}

// Records are the conflicting rows, in server order.
func (w *Wizard) Records() []wasteapi.ConflictRecord { return w.records }

// Session is the opaque payload echoed back on resolution.
func (w *Wizard) Session() wasteapi.ImportSession { return w.session }

// Cursor is the index of the record on display.
func (w *Wizard) Cursor() int { return w.cursor }

// Choice is the current resolution for record i.
func (w *Wizard) Choice(i int) wasteapi.Resolution {
	if i < 0 || i >= len(w.choices) {
		return ""
	}
	return w.choices[i]
}

// ApplyToAll reports whether one choice covers every record.
func (w *Wizard) ApplyToAll() bool { return w.applyAll }

func (w *Wizard) touch() bool {
	if !w.hasConflicts() {
		return false
	}
	w.state = ResolvingConflicts
	return true
}

// Next moves to the following record, or reports ReachedEnd on the last.
func (w *Wizard) Next() Nav {
	if !w.touch() {
		return AtStart
	}
	if w.cursor >= len(w.records)-1 {
		return ReachedEnd
	}
	w.cursor++
	return Moved
}

// Prev moves to the previous record.
func (w *Wizard) Prev() Nav {
	if !w.touch() || w.cursor == 0 {
		return AtStart
	}
	w.cursor--
	return Moved
}

// SetChoice sets the current record's resolution, or every record's when
// apply-to-all is on.
func (w *Wizard) SetChoice(c wasteapi.Resolution) error {
	if _, err := wasteapi.ParseResolution(string(c)); err != nil {
		return err
	}
	if !w.touch() {
		return ErrWrongState
	}
	if w.applyAll {
		for i := range w.choices {
			w.choices[i] = c
		}
		return nil
	}
	w.choices[w.cursor] = c
	return nil
}

// SetApplyToAll turns the bulk choice on or off. Turning it on copies the
// current record's choice to every record; turning it off keeps the copied
// values so a later SetChoice changes only one row.
func (w *Wizard) SetApplyToAll(on bool) error {
	if !w.touch() {
		return ErrWrongState
	}
	w.applyAll = on
	if on {
		c := w.choices[w.cursor]
		for i := range w.choices {
			w.choices[i] = c
		}
	}
	return nil
}

// Finalize folds the choices into the single resolution the server takes.
// Cancel anywhere wins. Otherwise a bulk or unanimous choice is sent for
// all; disagreeing choices fall back to skip.
func (w *Wizard) Finalize() (Decision, error) {
	if !w.hasConflicts() || len(w.choices) == 0 {
		return Decision{}, ErrWrongState
	}
	for _, c := range w.choices {
		if c == wasteapi.Cancel {
			return Decision{Resolution: wasteapi.Cancel, ApplyToAll: true, NeedsConfirm: true}, nil
		}
	}
	if w.applyAll {
		return Decision{Resolution: w.choices[0], ApplyToAll: true}, nil
	}
	first := w.choices[0]
	for _, c := range w.choices[1:] {
		if c != first {
			return Decision{Resolution: wasteapi.Skip, ApplyToAll: false, Mixed: true}, nil
		}
	}
	return Decision{Resolution: first, ApplyToAll: true}, nil
}

// BeginSubmit moves to Submitting and returns the session to send with d.
func (w *Wizard) BeginSubmit(d Decision) (Ticket, wasteapi.ImportSession, error) {
	if !w.hasConflicts() {
		return Ticket{}, nil, ErrWrongState
	}
	if _, err := wasteapi.ParseResolution(string(d.Resolution)); err != nil {
		return Ticket{}, nil, err
	}
	w.decision = &d
	w.state = Submitting
	return Ticket{gen: w.gen, state: Submitting}, w.session, nil
}

// Decision is the resolution last submitted, nil before BeginSubmit.
func (w *Wizard) Decision() *Decision { return w.decision }

// ApplySubmitResult records the resolution outcome. It returns false and
// changes nothing when t is stale. On failure the session is kept so Retry
// can return to the conflict list.
func (w *Wizard) ApplySubmitResult(t Ticket, resp *wasteapi.ImportResponse, err error) bool {
	if t.state != Submitting || !w.current(t) {
		return false
	}
	switch {
	case err != nil:
		w.fail(err, clierr.Message(err, GenericSubmitError))
	case resp == nil:
		w.fail(nil, GenericSubmitError)
	case resp.Success:
		w.succeed(resp, w.decision != nil && w.decision.Resolution == wasteapi.Cancel)
	default:
		msg := resp.ErrorText()
		if msg == "" {
			msg = GenericSubmitError
		}
		w.fail(nil, msg)
	}
	return true
}

// Retry leaves Failed: back to the conflict list when a session is held,
// otherwise back to the selected file.
func (w *Wizard) Retry() error {
	if w.state != Failed {
		return ErrWrongState
	}
	w.failure = ""
	w.err = nil
	switch {
	case len(w.records) > 0 && w.session != nil:
		w.decision = nil
		w.state = ResolvingConflicts
	case w.file != nil:
		w.state = FileSelected
	default:
		w.state = Idle
	}
	return nil
}

// RequestClose reports whether closing would abandon an outstanding request.
func (w *Wizard) RequestClose() CloseCheck {
	if w.state.Busy() {
		return NeedsConfirm
	}
	return CloseNow
}

// Close discards everything and returns to Idle. Results of requests still
// in flight will be ignored.
func (w *Wizard) Close() {
	w.gen++
	w.resetSession()
	w.file = nil
	w.state = Idle
}
