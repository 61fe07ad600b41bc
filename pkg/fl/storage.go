package fl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// PersistentStorage keeps round records and the model snapshot log on
// disk as JSON files. Model versions form a monotonic log indexed by
// version number so past global models can be replayed and audited.
type PersistentStorage struct {
	roundsDir string
	modelsDir string
	mu        sync.RWMutex
}

func NewPersistentStorage(roundsDir, modelsDir string) (*PersistentStorage, error) {
	if err := os.MkdirAll(roundsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create rounds directory: %w", err)
	}
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}

	return &PersistentStorage{
		roundsDir: roundsDir,
		modelsDir: modelsDir,
	}, nil
}

func (ps *PersistentStorage) SaveRound(round Round) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	id := sanitizeID(round.RoundID)
	if id == "" {
		return fmt.Errorf("invalid round id: %s", round.RoundID)
	}

	data, err := json.MarshalIndent(round, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal round: %w", err)
	}

	file := filepath.Join(ps.roundsDir, fmt.Sprintf("round_%s.json", id))
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return fmt.Errorf("failed to write round file: %w", err)
	}

	return nil
}

func (ps *PersistentStorage) LoadRound(roundID string) (Round, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	id := sanitizeID(roundID)
	if id == "" {
		return Round{}, fmt.Errorf("invalid round id: %s", roundID)
	}

	data, err := os.ReadFile(filepath.Join(ps.roundsDir, fmt.Sprintf("round_%s.json", id)))
	if err != nil {
		return Round{}, fmt.Errorf("failed to read round file: %w", err)
	}

	var round Round
	if err := json.Unmarshal(data, &round); err != nil {
		return Round{}, fmt.Errorf("failed to unmarshal round: %w", err)
	}

	return round, nil
}

func (ps *PersistentStorage) ListRounds() ([]string, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	entries, err := os.ReadDir(ps.roundsDir)
	if err != nil {
		return nil, err
	}

	var roundIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "round_") && strings.HasSuffix(name, ".json") {
			roundIDs = append(roundIDs, strings.TrimSuffix(strings.TrimPrefix(name, "round_"), ".json"))
		}
	}

	return roundIDs, nil
}

func (ps *PersistentStorage) SaveModel(model Model) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	data, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	file := filepath.Join(ps.modelsDir, fmt.Sprintf("model_v%d.json", model.Version))
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}

	return nil
}

func (ps *PersistentStorage) LoadModel(version uint64) (Model, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(ps.modelsDir, fmt.Sprintf("model_v%d.json", version)))
	if err != nil {
		return Model{}, fmt.Errorf("failed to read model file: %w", err)
	}

	var model Model
	if err := json.Unmarshal(data, &model); err != nil {
		return Model{}, fmt.Errorf("failed to unmarshal model: %w", err)
	}

	return model, nil
}

func (ps *PersistentStorage) ListModels() ([]uint64, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	entries, err := os.ReadDir(ps.modelsDir)
	if err != nil {
		return nil, err
	}

	var versions []uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var version uint64
		if _, err := fmt.Sscanf(entry.Name(), "model_v%d.json", &version); err == nil {
			versions = append(versions, version)
		}
	}

	return versions, nil
}

// LatestVersion returns the highest model version in the log, zero
// when the log is empty.
func (ps *PersistentStorage) LatestVersion() (uint64, error) {
	versions, err := ps.ListModels()
	if err != nil {
		return 0, err
	}

	var latest uint64
	for _, v := range versions {
		if v > latest {
			latest = v
		}
	}

	return latest, nil
}

// sanitizeID strips path separators, traversal sequences and control
// characters so an identifier is safe to embed in a file name.
func sanitizeID(id string) string {
	var out strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			out.WriteRune(r)
		}
	}

	return out.String()
}
