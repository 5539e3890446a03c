package verification

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ShayCichocki/greengate/pkg/models"
)

// ContractFile is the file name of a compiled contract inside a run directory.
const ContractFile = "contract.json"

// ContractStorage handles persistence of compiled contracts.
type ContractStorage struct {
	baseDir string
}

// NewContractStorage creates a storage rooted at a run directory.
func NewContractStorage(runDir string) *ContractStorage {
	return &ContractStorage{baseDir: runDir}
}

// Path returns the contract file path.
func (s *ContractStorage) Path() string {
	return filepath.Join(s.baseDir, ContractFile)
}

// Exists checks if a contract has been written.
func (s *ContractStorage) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}

// Save writes the contract and returns its path.
func (s *ContractStorage) Save(contract *models.Contract) (string, error) {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}

	data, err := MarshalContract(contract)
	if err != nil {
		return "", err
	}

	path := s.Path()
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write contract file: %w", err)
	}
	return path, nil
}

// Load reads the contract from the run directory.
func (s *ContractStorage) Load() (*models.Contract, error) {
	return LoadContract(s.Path())
}

// LoadContract reads and validates a contract file.
func LoadContract(path string) (*models.Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contract file: %w", err)
	}
	return ParseContractJSON(data)
}

// ParseContractJSON parses a compiled contract and checks it can be run.
func ParseContractJSON(data []byte) (*models.Contract, error) {
	var contract models.Contract
	if err := json.Unmarshal(data, &contract); err != nil {
		return nil, fmt.Errorf("parse contract JSON: %w", err)
	}
	if err := contract.Validate(); err != nil {
		return nil, fmt.Errorf("invalid contract: %w", err)
	}
	return &contract, nil
}

// MarshalContract serializes a contract deterministically: struct fields in
// declaration order, map keys sorted, trailing newline.
func MarshalContract(contract *models.Contract) ([]byte, error) {
	if contract == nil {
		return nil, errors.New("marshal contract: nil contract")
	}
	data, err := json.MarshalIndent(contract, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal contract: %w", err)
	}
	return append(data, '\n'), nil
}
