package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// StateFileName is the resume state written into the output folder.
const StateFileName = "status.json"

// PatientState records a finished patient.
type PatientState struct {
	// Fingerprint is the xxhash64 digest of the segmentation file
	Fingerprint string    `json:"fingerprint"`
	RunID       string    `json:"run_id"`
	FinishedAt  time.Time `json:"finished_at"`
}

// State is the resume state of a dataset folder.
type State struct {
	// RunID identifies the run that last wrote the state
	RunID     string                  `json:"run_id"`
	UpdatedAt time.Time               `json:"updated_at"`
	Patients  map[string]PatientState `json:"patients"`
}

// Unchanged reports whether patient id finished with the same segmentation
// fingerprint.
func (s State) Unchanged(id, fingerprint string) bool {
	p, ok := s.Patients[id]
	return ok && fingerprint != "" && p.Fingerprint == fingerprint
}

// Record marks patient id as finished by run.
func (s *State) Record(id, fingerprint, run string) {
	if s.Patients == nil {
		s.Patients = make(map[string]PatientState)
	}
	now := time.Now().UTC()
	s.Patients[id] = PatientState{Fingerprint: fingerprint, RunID: run, FinishedAt: now}
	s.RunID = run
	s.UpdatedAt = now
}

// StateStore persists State as JSON in a directory.
type StateStore struct {
	dir string
}

// NewStateStore returns a store writing StateFileName into dir.
func NewStateStore(dir string) *StateStore {
	return &StateStore{dir: dir}
}

// Path returns the full path to the state file.
func (s *StateStore) Path() string {
	return filepath.Join(s.dir, StateFileName)
}

// Load returns the saved state, or an empty state if none exists.
func (s *StateStore) Load() (State, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return State{Patients: map[string]PatientState{}}, nil
		}
		return State{}, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, err
	}
	if state.Patients == nil {
		state.Patients = map[string]PatientState{}
	}
	return state, nil
}

// Save writes the state to a temp file and renames it over the old one.
func (s *StateStore) Save(state State) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path())
}
