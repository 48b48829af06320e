package archive

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed caller input (tag too short, search token
// too short, nothing to add or remove). The operation performs no mutation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a filename that has no catalog record where one was
// required.
type NotFoundError struct {
	Fname string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no catalog record for %q", e.Fname)
}

// UnparseableTimestampError reports that none of the fallback metadata fields
// yielded a parseable capture time. Fatal for that file's reconciliation: the
// record is left unmodified. Every file is expected to carry at least a
// modify date, so this points at a data-quality problem.
type UnparseableTimestampError struct {
	Candidates []string
}

func (e *UnparseableTimestampError) Error() string {
	return fmt.Sprintf("no parseable timestamp among: %s", strings.Join(e.Candidates, ", "))
}
