package domain

import "testing"

func TestResultMergeAndHasBlocking(t *testing.T) {
	var res Result
	res.Merge(Result{})
	if res.Violations != nil {
		t.Fatalf("merging empty result should not allocate")
	}
	res.Merge(Result{Violations: []Violation{{Rule: "a", Severity: SeverityWarn}}})
	if res.HasBlocking() {
		t.Fatalf("warnings must not block")
	}
	res.Merge(Result{Violations: []Violation{{Rule: "b", Severity: SeverityBlock}}})
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result")
	}
	if len(res.Violations) != 2 {
		t.Fatalf("expected merged violations, got %d", len(res.Violations))
	}
}

func TestRuleViolationErrorMessage(t *testing.T) {
	err := RuleViolationError{Result: Result{Violations: []Violation{{Rule: "x", Severity: SeverityBlock}}}}
	if err.Error() == "" {
		t.Fatalf("expected error message")
	}
}

func TestRequestKey(t *testing.T) {
	if got := RequestKey(7, "alice"); got != "7/alice" {
		t.Fatalf("unexpected key %q", got)
	}
	// Usernames containing the separator still round to a unique key because
	// the identifier prefix is digits only.
	if RequestKey(7, "a/lice") == RequestKey(71, "lice") {
		t.Fatalf("expected distinct keys for distinct pairs")
	}
}
