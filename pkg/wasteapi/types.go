package wasteapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ManifestType is the kind of manifest (聯單).
type ManifestType string

const (
	// Disposal is a 清除單.
	Disposal ManifestType = "disposal"
	// Reuse is a 再利用單.
	Reuse ManifestType = "reuse"
)

// ParseManifestType validates a manifest type string.
func ParseManifestType(s string) (ManifestType, error) {
	switch ManifestType(strings.ToLower(strings.TrimSpace(s))) {
	case Disposal:
		return Disposal, nil
	case Reuse:
		return Reuse, nil
	default:
		return "", fmt.Errorf("unknown manifest type %q (want disposal or reuse)", s)
	}
}

// Resolution is how the server treats a row that collides with a stored manifest.
type Resolution string

const (
	Skip    Resolution = "skip"
	Replace Resolution = "replace"
	Cancel  Resolution = "cancel"
	// Ask makes the server report conflicts instead of resolving them.
	Ask Resolution = "ask"
)

// ParseResolution validates a user-supplied resolution.
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(strings.ToLower(strings.TrimSpace(s))); r {
	case Skip, Replace, Cancel:
		return r, nil
	default:
		return "", fmt.Errorf("unknown resolution %q (want skip, replace or cancel)", s)
	}
}

// ManifestKey uniquely identifies a manifest.
type ManifestKey struct {
	Type       ManifestType `json:"type"`
	ManifestID string       `json:"manifest_id"`
	WasteID    string       `json:"waste_id"`
}

// String returns the pipe-joined form used in logs and selection lists.
func (k ManifestKey) String() string {
	return string(k.Type) + "|" + k.ManifestID + "|" + k.WasteID
}

// deleteKey is the camelCase wire shape delete_manifests expects.
type deleteKey struct {
	Type       ManifestType `json:"type"`
	ManifestID string       `json:"manifestId"`
	WasteID    string       `json:"wasteId"`
}

// ConflictRecord is one uploaded row that collides with a stored manifest.
type ConflictRecord struct {
	ManifestID   string     `json:"manifest_id"`
	WasteID      string     `json:"waste_id"`
	CompanyName  string     `json:"company_name"`
	ReportDate   string     `json:"report_date"`
	ExistingData RecordData `json:"existing_data"`
	NewData      RecordData `json:"new_data"`
}

// RecordData maps a column name to its display value. The server may send
// numbers, booleans, null or lists (a csv row with extra cells carries them
// as a list under "null"); each is decoded to its display string.
type RecordData map[string]string

// UnmarshalJSON implements json.Unmarshaler.
func (d *RecordData) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		*d = nil
		return nil
	}
	out := make(RecordData, len(raw))
	for k, v := range raw {
		s, err := displayValue(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = s
	}
	*d = out
	return nil
}

func displayValue(v json.RawMessage) (string, error) {
	dec := json.NewDecoder(strings.NewReader(string(v)))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return "", err
	}
	return display(x), nil
}

func display(x any) string {
	switch x := x.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			parts = append(parts, display(e))
		}
		return strings.Join(parts, ", ")
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// ImportSession is the opaque import_data payload. It is echoed back
// verbatim when resolving conflicts, so unknown keys must survive.
type ImportSession map[string]json.RawMessage

// Clone returns a shallow copy safe to extend with request fields.
func (s ImportSession) Clone() ImportSession {
	out := make(ImportSession, len(s)+2)
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ImportResponse covers every shape import/ and resolve_conflicts/ return.
type ImportResponse struct {
	Success            bool                `json:"success"`
	Message            string              `json:"message,omitempty"`
	Imported           int                 `json:"imported"`
	Skipped            int                 `json:"skipped"`
	Total              int                 `json:"total"`
	Conflict           bool                `json:"conflict,omitempty"`
	ImportData         ImportSession       `json:"import_data,omitempty"`
	ConflictingRecords []ConflictRecord    `json:"conflicting_records,omitempty"`
	Error              string              `json:"error,omitempty"`
	Errors             map[string][]string `json:"errors,omitempty"`
}

// ErrorText returns the server-supplied failure text, if any.
// Form validation errors are flattened in field order.
func (r *ImportResponse) ErrorText() string {
	if r == nil {
		return ""
	}
	if r.Error != "" {
		return r.Error
	}
	if len(r.Errors) == 0 {
		return ""
	}
	fields := make([]string, 0, len(r.Errors))
	for f := range r.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var parts []string
	for _, f := range fields {
		parts = append(parts, strings.Join(r.Errors[f], " "))
	}
	return strings.Join(parts, "; ")
}

// DeleteResponse is returned by delete_manifests/.
type DeleteResponse struct {
	Success      bool   `json:"success"`
	DeletedCount int    `json:"deleted_count"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
}

type manifestIDsResponse struct {
	Success   bool          `json:"success"`
	Manifests []ManifestKey `json:"manifests"`
	Error     string        `json:"error,omitempty"`
}

type detailResponse struct {
	HTML string `json:"html"`
}

// Field is an autocomplete-capable filter field.
type Field string

const (
	FieldCompanyName Field = "company_name"
	FieldWasteName   Field = "waste_name"
	FieldWasteCode   Field = "waste_code"
)

// Fields lists the autocomplete fields in form order.
var Fields = []Field{FieldCompanyName, FieldWasteName, FieldWasteCode}

// DisplayKey is the suggestion key the server fills for this field.
func (f Field) DisplayKey() string {
	if f == FieldWasteCode {
		return "code"
	}
	return "name"
}

// ParseField validates an autocomplete field name.
func ParseField(s string) (Field, error) {
	for _, f := range Fields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown autocomplete field %q", s)
}

// Suggestion is one autocomplete candidate.
type Suggestion map[string]string

// Display returns the value shown for field, falling back to any value.
func (s Suggestion) Display(field Field) string {
	if v, ok := s[field.DisplayKey()]; ok {
		return v
	}
	for _, v := range s {
		return v
	}
	return ""
}

type autocompleteResponse struct {
	Results []Suggestion `json:"results"`
}

// Filters mirrors the manifest list filter form.
type Filters struct {
	ManifestType        string `yaml:"manifest_type,omitempty" json:"manifest_type,omitempty" validate:"omitempty,oneof=disposal reuse"`
	ManifestID          string `yaml:"manifest_id,omitempty" json:"manifest_id,omitempty"`
	CompanyName         string `yaml:"company_name,omitempty" json:"company_name,omitempty"`
	WasteCode           string `yaml:"waste_code,omitempty" json:"waste_code,omitempty"`
	WasteName           string `yaml:"waste_name,omitempty" json:"waste_name,omitempty"`
	ReportDateFrom      string `yaml:"report_date_from,omitempty" json:"report_date_from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ReportDateTo        string `yaml:"report_date_to,omitempty" json:"report_date_to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ReportedWeightBelow string `yaml:"reported_weight_below,omitempty" json:"reported_weight_below,omitempty" validate:"omitempty,numeric"`
	ReportedWeightAbove string `yaml:"reported_weight_above,omitempty" json:"reported_weight_above,omitempty" validate:"omitempty,numeric"`
	ConfirmationStatus  string `yaml:"confirmation_status,omitempty" json:"confirmation_status,omitempty" validate:"omitempty,oneof=confirmed unconfirmed"`
}

var filterValidator = newFilterValidator()

// newFilterValidator reports fields by their query parameter names.
func newFilterValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		return name
	})
	return v
}

// FilterError names the first filter that failed validation.
type FilterError struct {
	Field string
	Rule  string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("filter %s: must satisfy %s", e.Field, e.Rule)
}

// Validate checks the filter values the way the list form does.
func (f Filters) Validate() error {
	err := filterValidator.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		return &FilterError{Field: fe.Field(), Rule: rule}
	}
	return err
}

// IsEmpty reports whether no filter is set.
func (f Filters) IsEmpty() bool { return len(f.Values()) == 0 }

// Merge returns f with every non-empty field of over applied on top.
func (f Filters) Merge(over Filters) Filters {
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&f.ManifestType, over.ManifestType)
	set(&f.ManifestID, over.ManifestID)
	set(&f.CompanyName, over.CompanyName)
	set(&f.WasteCode, over.WasteCode)
	set(&f.WasteName, over.WasteName)
	set(&f.ReportDateFrom, over.ReportDateFrom)
	set(&f.ReportDateTo, over.ReportDateTo)
	set(&f.ReportedWeightBelow, over.ReportedWeightBelow)
	set(&f.ReportedWeightAbove, over.ReportedWeightAbove)
	set(&f.ConfirmationStatus, over.ConfirmationStatus)
	return f
}

// Values encodes the non-empty filters as query parameters.
func (f Filters) Values() url.Values {
	v := url.Values{}
	add := func(k, val string) {
		if val = strings.TrimSpace(val); val != "" {
			v.Set(k, val)
		}
	}
	add("manifest_type", f.ManifestType)
	add("manifest_id", f.ManifestID)
	add("company_name", f.CompanyName)
	add("waste_code", f.WasteCode)
	add("waste_name", f.WasteName)
	add("report_date_from", f.ReportDateFrom)
	add("report_date_to", f.ReportDateTo)
	add("reported_weight_below", f.ReportedWeightBelow)
	add("reported_weight_above", f.ReportedWeightAbove)
	add("confirmation_status", f.ConfirmationStatus)
	return v
}

// Set assigns an autocomplete field's value.
func (f *Filters) Set(field Field, value string) {
	switch field {
	case FieldCompanyName:
		f.CompanyName = value
	case FieldWasteName:
		f.WasteName = value
	case FieldWasteCode:
		f.WasteCode = value
	}
}

// Get returns an autocomplete field's value.
func (f Filters) Get(field Field) string {
	switch field {
	case FieldCompanyName:
		return f.CompanyName
	case FieldWasteName:
		return f.WasteName
	case FieldWasteCode:
		return f.WasteCode
	}
	return ""
}
