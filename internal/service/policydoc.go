package service

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/graphguard/policycore/internal/domain/policy"
)

// docValidate is package-scoped like the teacher's
// internal/config/validator.go pattern: one *validator.Validate built
// once and reused, since it is safe for concurrent use after setup.
var docValidate = validator.New(validator.WithRequiredStructEnabled())

// ValidatePolicyDocument runs struct-tag validation plus the
// cross-field checks §4.1 step 5 requires before a document is ever
// normalized: it must carry a decision method (f:allow or f:query) or
// some targeting, and action values (if present) must be recognized.
func ValidatePolicyDocument(doc policy.PolicyDocument) error {
	if err := docValidate.Struct(doc); err != nil {
		return &policy.InvalidPolicyError{DocID: doc.ID, Reason: formatFieldErrors(err), Cause: err}
	}

	hasDecision := doc.Allow != nil || doc.Query != nil
	hasTargeting := len(doc.OnSubject) > 0 || len(doc.TargetSubject) > 0 ||
		len(doc.OnProperty) > 0 || len(doc.TargetProperty) > 0 ||
		len(doc.OnClass) > 0 || doc.Default

	if !hasDecision && !hasTargeting {
		return &policy.InvalidPolicyError{
			DocID:  doc.ID,
			Reason: "policy has neither a decision method (f:allow/f:query) nor any targeting (f:onSubject/f:onProperty/f:onClass/f:default)",
		}
	}

	return nil
}

func formatFieldErrors(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		msg := ""
		for i, fe := range verrs {
			if i > 0 {
				msg += "; "
			}
			msg += fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
		}
		return msg
	}
	return err.Error()
}
