package policy

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is(), mirroring the teacher SDK's
// sdks/go/errors.go shape.
var (
	// ErrInvalidPolicy means a policy document was rejected at compile
	// time (§7 "InvalidPolicy").
	ErrInvalidPolicy = errors.New("invalid policy")

	// ErrPolicyDenied means a modify-path decision denied after full
	// evaluation (§7 "PolicyException").
	ErrPolicyDenied = errors.New("policy denied")

	// ErrPolicyInfra means an infrastructural failure occurred during
	// compile or enforcement — stats unavailable for onClass, a
	// subquery internal error (§7 "PolicyError").
	ErrPolicyInfra = errors.New("policy infrastructure error")
)

// InvalidPolicyError carries the rejected document's identity and the
// structural reason it was rejected (§7, 400).
type InvalidPolicyError struct {
	DocID  string
	Reason string
	Cause  error
}

func (e *InvalidPolicyError) Error() string {
	if e.DocID != "" {
		return fmt.Sprintf("invalid policy %q: %s", e.DocID, e.Reason)
	}
	return fmt.Sprintf("invalid policy: %s", e.Reason)
}

func (e *InvalidPolicyError) Unwrap() error { return e.Cause }

func (e *InvalidPolicyError) Is(target error) bool { return target == ErrInvalidPolicy }

// DeniedError is returned by the Modify Enforcer when a required policy
// denies, when no applicable policy allows, or when no policy applies and
// the wrapper does not default-allow (§4.7, 403). It carries the first
// non-empty ExMessage among denying policies, falling back to a generic
// message (§4.4 step 9).
type DeniedError struct {
	RuleID  string
	Message string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("policy enforcement prevents modification (rule %s): %s", e.RuleID, e.Message)
}

func (e *DeniedError) Is(target error) bool { return target == ErrPolicyDenied }

// defaultDeniedMessage is used when no denying policy supplied ExMessage
// (§4.4 step 9 "first_non_null(ex_message) ∪ ...").
const defaultDeniedMessage = "Policy enforcement prevents modification."

// NewDeniedError builds a DeniedError, applying the default message
// fallback.
func NewDeniedError(ruleID, exMessage string) *DeniedError {
	msg := exMessage
	if msg == "" {
		msg = defaultDeniedMessage
	}
	return &DeniedError{RuleID: ruleID, Message: msg}
}

// InfraError wraps an infrastructural failure with the operation that
// failed (§7 "PolicyError").
type InfraError struct {
	Op    string
	Cause error
}

func (e *InfraError) Error() string {
	return fmt.Sprintf("policy infrastructure error during %s: %v", e.Op, e.Cause)
}

func (e *InfraError) Unwrap() error { return e.Cause }

func (e *InfraError) Is(target error) bool { return target == ErrPolicyInfra }
