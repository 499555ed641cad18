package schema

import "fmt"

// ValidationSeverity tells blocking issues from advisory ones.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue is one finding. Path locates it inside the document, e.g.
// root.activities[2].ports["Done"].connections[0].
type ValidationIssue struct {
	Path       string             `json:"path"`
	Code       string             `json:"code"`
	Message    string             `json:"message"`
	Severity   ValidationSeverity `json:"severity"`
	ActivityID string             `json:"activity_id,omitempty"`
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("%s %s at %s: %s", i.Severity, i.Code, i.Path, i.Message)
}

// ValidationResult collects the issues of one validation run. A result with
// warnings only is valid.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Add files issue under Errors or Warnings by its severity. An issue without
// severity is an error.
func (r *ValidationResult) Add(issue ValidationIssue) {
	if issue.Severity == SeverityWarning {
		r.Warnings = append(r.Warnings, issue)
		return
	}
	issue.Severity = SeverityError
	r.Errors = append(r.Errors, issue)
}

func (r *ValidationResult) AddError(path, code, message string) {
	r.Add(ValidationIssue{Path: path, Code: code, Message: message})
}

func (r *ValidationResult) AddActivityError(path, activityID, code, message string) {
	r.Add(ValidationIssue{Path: path, Code: code, Message: message, ActivityID: activityID})
}

func (r *ValidationResult) AddWarning(path, code, message string) {
	r.Add(ValidationIssue{Path: path, Code: code, Message: message, Severity: SeverityWarning})
}

func (r *ValidationResult) AddActivityWarning(path, activityID, code, message string) {
	r.Add(ValidationIssue{Path: path, Code: code, Message: message, Severity: SeverityWarning, ActivityID: activityID})
}

// Merge appends the issues of other. A nil other is ignored.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Issues returns errors followed by warnings.
func (r *ValidationResult) Issues() []ValidationIssue {
	out := make([]ValidationIssue, 0, len(r.Errors)+len(r.Warnings))
	return append(append(out, r.Errors...), r.Warnings...)
}

// ToError summarizes an invalid result as a single DesignerError, or returns
// nil when the result is valid. The error carries the shared code of all
// errors, falling back to VALIDATION_ERROR when they differ, and the full
// issue lists in its details.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}
	first := r.Errors[0]
	code, msg := first.Code, first.Message
	for _, e := range r.Errors[1:] {
		if e.Code != code {
			code = ErrCodeValidation
		}
	}
	if n := len(r.Errors); n > 1 {
		msg = fmt.Sprintf("%d validation errors, first: %s", n, first.Message)
	}
	return NewError(code, msg).
		WithActivity(first.ActivityID).
		WithDetails(map[string]any{
			"error_count":   len(r.Errors),
			"warning_count": len(r.Warnings),
			"errors":        r.Errors,
			"warnings":      r.Warnings,
		})
}
