package xltemplate

import (
	"errors"
	"fmt"
)

// ErrSheetNotFound indicates a sheet lookup by name or index failed.
var ErrSheetNotFound = errors.New("sheet not found")

// ErrMalformedReference indicates a cell or range reference does not match
// the A1 address grammar.
var ErrMalformedReference = errors.New("malformed reference")

// ErrMissingPart indicates a part declared by a relationship is absent from the package.
var ErrMissingPart = errors.New("missing part")

// SheetNotFoundError reports the sheet key that could not be resolved.
type SheetNotFoundError struct {
	Sheet string
}

func (e *SheetNotFoundError) Error() string {
	return fmt.Sprintf("sheet %s not found", e.Sheet)
}

func (e *SheetNotFoundError) Is(target error) bool {
	return target == ErrSheetNotFound
}

// MalformedReferenceError reports a reference that failed to parse.
type MalformedReferenceError struct {
	Ref string
}

func (e *MalformedReferenceError) Error() string {
	return fmt.Sprintf("malformed reference %q", e.Ref)
}

func (e *MalformedReferenceError) Is(target error) bool {
	return target == ErrMalformedReference
}

// MissingPartError reports a part name that is not present in the archive.
type MissingPartError struct {
	Part string
}

func (e *MissingPartError) Error() string {
	return fmt.Sprintf("missing part %q", e.Part)
}

func (e *MissingPartError) Is(target error) bool {
	return target == ErrMissingPart
}

// SubstitutionError wraps any failure of a single sheet substitution.
// The workbook is left as it was before the call.
type SubstitutionError struct {
	Sheet string
	Err   error
}

func (e *SubstitutionError) Error() string {
	return fmt.Sprintf("substitute sheet %q: %v", e.Sheet, e.Err)
}

func (e *SubstitutionError) Unwrap() error {
	return e.Err
}
