package schema

import (
	"encoding/json"
	"fmt"
)

// Outcome is the tri-state result of a single check.
type Outcome int8

// All outcomes supported. Unknown means the check could not be evaluated.
const (
	Unknown Outcome = iota
	Pass
	Fail
)

// OutcomeOf maps an optional boolean to an Outcome (nil is Unknown).
func OutcomeOf(ok *bool) Outcome {
	switch {
	case ok == nil:
		return Unknown
	case *ok:
		return Pass
	default:
		return Fail
	}
}

// Bool returns the outcome as an optional boolean.
func (o Outcome) Bool() *bool {
	switch o {
	case Pass:
		return boolPtr(true)
	case Fail:
		return boolPtr(false)
	default:
		return nil
	}
}

// Result returns the serialized status for the outcome.
func (o Outcome) Result() ResultStatus {
	switch o {
	case Pass:
		return PassedResult
	case Fail:
		return FailedResult
	default:
		return ErrorResult
	}
}

func (o Outcome) String() string {
	return string(o.Result())
}

// OutcomeFromResult is the inverse of Outcome.Result.
func OutcomeFromResult(r ResultStatus) (Outcome, error) {
	switch r {
	case PassedResult:
		return Pass, nil
	case FailedResult:
		return Fail, nil
	case ErrorResult, ErroneousResult:
		return Unknown, nil
	default:
		return Unknown, fmt.Errorf("unknown result status %q", r)
	}
}

// Check is the smallest outcome unit. It is immutable once created.
type Check struct {
	name       string
	outcome    Outcome
	errorCount *int
}

// NewCheck creates a check. The error count is kept only for failing checks,
// since a count is meaningless for anything else.
func NewCheck(name string, outcome Outcome, errorCount *int) Check {
	c := Check{name: name, outcome: outcome}
	if outcome == Fail && errorCount != nil {
		n := *errorCount
		c.errorCount = &n
	}
	return c
}

// PassedCheck creates a passing check.
func PassedCheck(name string) Check {
	return NewCheck(name, Pass, nil)
}

// FailedCheck creates a failing check with an optional occurrence count.
func FailedCheck(name string, errorCount *int) Check {
	return NewCheck(name, Fail, errorCount)
}

// ErroneousCheck creates a check whose outcome could not be determined.
func ErroneousCheck(name string) Check {
	return NewCheck(name, Unknown, nil)
}

// BoolCheck creates a check from a plain pass/fail boolean.
func BoolCheck(name string, passed bool) Check {
	return NewCheck(name, OutcomeOf(&passed), nil)
}

// Name returns the check name.
func (c Check) Name() string { return c.name }

// Outcome returns the tri-state outcome.
func (c Check) Outcome() Outcome { return c.outcome }

// ErrorCount returns the failure count, nil when unknown or not failing.
func (c Check) ErrorCount() *int {
	if c.errorCount == nil {
		return nil
	}
	n := *c.errorCount
	return &n
}

// IsHappy returns nil for erroneous checks, otherwise whether the check passed.
func (c Check) IsHappy() *bool { return c.outcome.Bool() }

// IsErroneous reports whether the outcome is Unknown.
func (c Check) IsErroneous() bool { return c.outcome == Unknown }

// Result returns the serialized status of the check.
func (c Check) Result() ResultStatus { return c.outcome.Result() }

func (c Check) String() string {
	return c.name + ": " + string(c.Result())
}

type checkJSON struct {
	Name       string       `json:"name"`
	Result     ResultStatus `json:"result"`
	ErrorCount *int         `json:"errorCount,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c Check) MarshalJSON() ([]byte, error) {
	return json.Marshal(checkJSON{Name: c.name, Result: c.Result(), ErrorCount: c.errorCount})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Check) UnmarshalJSON(data []byte) error {
	var raw checkJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	outcome, err := OutcomeFromResult(raw.Result)
	if err != nil {
		return err
	}
	*c = NewCheck(raw.Name, outcome, raw.ErrorCount)
	return nil
}

func boolPtr(b bool) *bool { return &b }
