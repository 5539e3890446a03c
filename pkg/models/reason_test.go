package models

import (
	"reflect"
	"strings"
	"testing"
)

func TestReasonCodes_AddDedupesInOrder(t *testing.T) {
	var codes ReasonCodes
	codes.Add(ReasonChecksFailed, ReasonFailClosedAbort)
	codes.Add(ReasonChecksFailed, ReasonNoProgressLoop)

	want := []string{ReasonChecksFailed, ReasonFailClosedAbort, ReasonNoProgressLoop}
	if got := codes.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
	if codes.Len() != 3 {
		t.Errorf("Len() = %d, want 3", codes.Len())
	}
	if !codes.Has(ReasonNoProgressLoop) || codes.Has(ReasonTestsNotRun) {
		t.Error("Has() reported wrong membership")
	}
}

func TestReasonCodes_ZeroValue(t *testing.T) {
	var codes ReasonCodes
	if got := codes.List(); got == nil || len(got) != 0 {
		t.Errorf("List() on zero value = %#v, want empty non-nil slice", got)
	}
	if codes.Has(ReasonChecksFailed) {
		t.Error("zero value should have no codes")
	}
}

func TestReasonCodes_Sorted(t *testing.T) {
	var codes ReasonCodes
	codes.Add(ReasonTestsNotRun, ReasonContractMissingChecks)

	want := []string{ReasonContractMissingChecks, ReasonTestsNotRun}
	if got := codes.Sorted(); !reflect.DeepEqual(got, want) {
		t.Errorf("Sorted() = %v, want %v", got, want)
	}
}

func TestReasonCodeFormat(t *testing.T) {
	codes := []string{
		ReasonTestsNotRun, ReasonChecklistDependencyCycle, ReasonChecklistStrictFailed,
		ReasonNoProgressLoop, ReasonMaxIterationsReached, ReasonAuditLogWriteFailed,
		ReasonDirectMemoryWriteForbidden, ReasonChecklistEvidenceMissing,
	}
	for _, code := range codes {
		parts := strings.Split(code, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			t.Errorf("reason code %q is not <category>/<cause>", code)
		}
	}
}
