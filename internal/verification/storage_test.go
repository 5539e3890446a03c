package verification

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ShayCichocki/greengate/pkg/models"
)

func sampleContract() *models.Contract {
	return &models.Contract{
		RunID:  "run-1",
		Checks: []models.Check{{Name: "unit", Command: "go test ./...", PassCondition: models.PassExitCodeZero}},
		ChecklistContract: models.ChecklistContract{
			RunID:             "run-1",
			Items:             []models.ChecklistItem{{ItemID: "unit", Question: "Do tests pass?", Strictness: models.StrictnessNormal, Status: models.ItemUnsatisfied}},
			TerminationPolicy: "strict_gate",
			ReasonCodes:       []string{},
			Version:           "1.0.0",
		},
		Declarations: models.Declarations{
			TrustLevel:     models.TrustLevelTrusted,
			ExecutionAudit: map[string]any{"z": 1, "a": "x"},
		},
		MaxIterations: 3,
		FailurePolicy: models.FailurePolicyFailClosed,
		GateScores:    models.GateScores{"checks_present": {Passed: true, Weight: 0.4}},
		ReasonCodes:   []string{},
	}
}

func TestContractStorage_SaveLoad(t *testing.T) {
	storage := NewContractStorage(filepath.Join(t.TempDir(), "run-1"))
	if storage.Exists() {
		t.Fatal("contract should not exist before Save")
	}

	path, err := storage.Save(sampleContract())
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if path != storage.Path() || !storage.Exists() {
		t.Fatalf("Save() path = %q, Exists() = %v", path, storage.Exists())
	}

	loaded, err := storage.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.RunID != "run-1" || len(loaded.Checks) != 1 || loaded.MaxIterations != 3 {
		t.Errorf("loaded contract = %+v", loaded)
	}
	if loaded.Items()[0].ItemID != "unit" {
		t.Errorf("loaded items = %+v", loaded.Items())
	}
}

func TestMarshalContract_Deterministic(t *testing.T) {
	first, err := MarshalContract(sampleContract())
	if err != nil {
		t.Fatal(err)
	}
	second, err := MarshalContract(sampleContract())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("MarshalContract() output differs between calls")
	}
	if !bytes.Contains(first, []byte(`"a": "x",`)) {
		t.Errorf("map keys should be sorted:\n%s", first)
	}
}

func TestLoadContract_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadContract(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadContract(bad); err == nil {
		t.Error("expected error for malformed JSON")
	}

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`{"run_id":"x","checks":[]}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadContract(empty); !errors.Is(err, models.ErrNoChecks) {
		t.Errorf("LoadContract() error = %v, want ErrNoChecks", err)
	}
}
