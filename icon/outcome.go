package icon

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/leeforge/icons/errors"
)

// Result labels used in logs and metrics.
const (
	ResultSuccess        = "success"
	ResultPartialFailure = "partial_failure"
	ResultFatal          = "fatal"
)

// Outcome is one of *Success, *PartialFailure or *Fatal.
type Outcome interface {
	OK() bool
	Result() string
	Err() error
	outcome()
}

// Success means every variant was written or deliberately skipped and the
// entity attributes were committed.
type Success struct {
	// Written maps size names to stored filenames.
	Written  map[string]string
	Skipped  []string
	IconTime int64
}

// PartialFailure means at least one variant failed. Variants in Written are
// on the blob store; the entity's icontime and crop attributes are untouched.
type PartialFailure struct {
	Written map[string]string
	Skipped []string
	Failed  map[string]error
}

// Fatal means generation did not start or could not be committed.
type Fatal struct {
	Reason error
}

func (*Success) OK() bool       { return true }
func (*Success) Result() string { return ResultSuccess }
func (*Success) Err() error     { return nil }
func (*Success) outcome()       {}

func (*PartialFailure) OK() bool       { return false }
func (*PartialFailure) Result() string { return ResultPartialFailure }
func (*PartialFailure) outcome()       {}

func (*Fatal) OK() bool       { return false }
func (*Fatal) Result() string { return ResultFatal }
func (f *Fatal) Err() error   { return f.Reason }
func (*Fatal) outcome()       {}

// FailedNames returns the failed size names in a stable order.
func (p *PartialFailure) FailedNames() []string {
	names := make([]string, 0, len(p.Failed))
	for name := range p.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *PartialFailure) Err() error {
	names := p.FailedNames()
	err := apperrors.New(apperrors.ErrorTypeProcessing,
		fmt.Sprintf("icon variants failed: %s", strings.Join(names, ", ")))
	for _, name := range names {
		err.WithDetail(name, p.Failed[name].Error())
	}
	return err
}

var (
	_ Outcome = (*Success)(nil)
	_ Outcome = (*PartialFailure)(nil)
	_ Outcome = (*Fatal)(nil)
)
