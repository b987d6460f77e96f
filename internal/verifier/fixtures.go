package verifier

import "context"

// AlwaysTrue is the "AlwaysTrue" test fixture from spec.md §4.2: it
// completes every call with (200, submittedFP).
type AlwaysTrue struct{}

func NewAlwaysTrue(options string) (*AlwaysTrue, error) {
	if options != "" {
		return nil, &OptionsError{Backend: "always-true", Options: options, Err: errUnexpectedOptions}
	}
	return &AlwaysTrue{}, nil
}

func (AlwaysTrue) Verify(_ context.Context, _, _, _, submittedFP string) (Outcome, error) {
	return Outcome{Code: CodeMatch, ObservedFP: submittedFP, HasObserved: submittedFP != ""}, nil
}

func (AlwaysTrue) Description() string        { return "Always reports the submitted fingerprint as correct." }
func (AlwaysTrue) OptionsDescription() string  { return "(no options)" }
func (AlwaysTrue) HTMLDescription() string     { return "<p>Test verifier: always true.</p>" }

// AlwaysFalse is the "AlwaysFalse" test fixture: it completes every call
// with (409, null).
type AlwaysFalse struct{}

func NewAlwaysFalse(options string) (*AlwaysFalse, error) {
	if options != "" {
		return nil, &OptionsError{Backend: "always-false", Options: options, Err: errUnexpectedOptions}
	}
	return &AlwaysFalse{}, nil
}

func (AlwaysFalse) Verify(_ context.Context, _, _, _, _ string) (Outcome, error) {
	return Outcome{Code: CodeConflict}, nil
}

func (AlwaysFalse) Description() string       { return "Always reports the submitted fingerprint as wrong." }
func (AlwaysFalse) OptionsDescription() string { return "(no options)" }
func (AlwaysFalse) HTMLDescription() string    { return "<p>Test verifier: always false.</p>" }

var errUnexpectedOptions = optionsErr("fixture verifiers take no options")

type optionsErr string

func (e optionsErr) Error() string { return string(e) }
