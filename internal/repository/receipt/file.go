package receipt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/venv-bootstrap/internal/config"
	"github.com/oshokin/venv-bootstrap/internal/service/common"
)

// Receipt records the outcome of the last successful bootstrap so a later
// run can skip work that is provably unnecessary.
type Receipt struct {
	// Manager is the environment manager flavor used.
	Manager string `yaml:"manager"`
	// PythonVersion is the interpreter version pinned into the environment.
	PythonVersion string `yaml:"python_version"`
	// RequirementsChecksum is the base64 checksum of the installed manifest.
	RequirementsChecksum string `yaml:"requirements_checksum"`
	// EditablePath is the local package installed in editable mode, if any.
	EditablePath string `yaml:"editable_path,omitempty"`
	// Timestamp is when the bootstrap completed.
	Timestamp time.Time `yaml:"timestamp"`
	// ProvisionedBy identifies who ran the bootstrap.
	ProvisionedBy *common.Actor `yaml:"provisioned_by,omitempty"`
}

// Repository defines persistence operations for the bootstrap receipt.
type Repository interface {
	Load(ctx context.Context) (*Receipt, error)
	Save(ctx context.Context, r *Receipt) error
}

// FileRepository persists the receipt to a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the receipt file.
	path string
	// mu protects concurrent access to the receipt file.
	mu sync.Mutex
}

// ErrNotFound is returned when the receipt file does not exist yet.
var ErrNotFound = errors.New("receipt not found")

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the receipt from disk.
func (r *FileRepository) Load(_ context.Context) (*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read receipt: %w", err)
	}

	var rec Receipt
	if err = yaml.Unmarshal(contents, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}

	return &rec, nil
}

// Save writes the receipt to disk.
func (r *FileRepository) Save(_ context.Context, rec *Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}

	return nil
}
