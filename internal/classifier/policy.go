package classifier

import "strings"

// Matches compares the model's suggestion against the user's declared
// category, case-insensitively. When they differ the caller pauses the
// submission and lets the user choose; this only computes the boolean.
func Matches(suggested, declared string) bool {
	return strings.EqualFold(suggested, declared)
}

// ShouldPublish decides whether a freshly submitted manifestation may go
// straight to the public feed. Both conditions are required: an identified
// submitter is never auto-published, and neither is a PII-flagged anonymous
// report. The classifier fails closed (hasPII=true) on any failure, so this
// gate defaults to private whenever the analysis is in doubt.
func ShouldPublish(isAnonymous, hasPII bool) bool {
	return isAnonymous && !hasPII
}
