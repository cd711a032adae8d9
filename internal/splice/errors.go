package splice

import "fmt"

// StructureError reports illegal directive nesting or ordering. It is fatal
// for the file: no output is produced.
type StructureError struct {
	Line int
	Msg  string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line+1, e.Msg)
}

// DanglingEndFuncError reports an endfunc directive with no open function,
// or one whose prompt is still empty.
type DanglingEndFuncError struct {
	Line int
}

func (e *DanglingEndFuncError) Error() string {
	return fmt.Sprintf("line %d: endfunc without an open function prompt", e.Line+1)
}

// Unwrap lets callers match every structural failure as a StructureError.
func (e *DanglingEndFuncError) Unwrap() error {
	return &StructureError{Line: e.Line, Msg: "dangling endfunc"}
}

// IllegalDirectiveError reports a directive that cannot appear while a
// system or function prompt is open.
type IllegalDirectiveError struct {
	Line      int
	Mode      ParseMode
	Directive ItemKind
}

func (e *IllegalDirectiveError) Error() string {
	return fmt.Sprintf("line %d: %s directive not allowed inside %s prompt", e.Line+1, e.Directive, e.Mode)
}

func (e *IllegalDirectiveError) Unwrap() error {
	return &StructureError{Line: e.Line, Msg: fmt.Sprintf("%s nested in %s prompt", e.Directive, e.Mode)}
}

// SyntaxError reports a malformed directive, such as a func with no name.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line+1, e.Msg)
}

// IncludeError reports an include file that could not be read.
type IncludeError struct {
	Line int
	Path string
	Err  error
}

func (e *IncludeError) Error() string {
	return fmt.Sprintf("line %d: include %q: %v", e.Line+1, e.Path, e.Err)
}

func (e *IncludeError) Unwrap() error {
	return e.Err
}

// FuncError records a recoverable generation failure for one function.
type FuncError struct {
	Func string
	Err  error
}

func (e FuncError) Error() string {
	return fmt.Sprintf("%s: %v", e.Func, e.Err)
}

func (e FuncError) Unwrap() error {
	return e.Err
}
