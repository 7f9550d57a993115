package receipt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/venv-bootstrap/internal/service/common"
)

// TestFileRepositoryRoundtrip saves a receipt and loads it back.
func TestFileRepositoryRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "receipt.yaml")
	repo := NewFileRepository(path)
	ctx := context.Background()

	rec := &Receipt{
		Manager:              "conda",
		PythonVersion:        "3.10",
		RequirementsChecksum: "c29tZS1jaGVja3N1bQ==",
		Timestamp:            time.Unix(1700000000, 0).UTC(),
		ProvisionedBy: &common.Actor{
			Hostname: "build-host",
			Username: "ci",
		},
	}

	require.NoError(t, repo.Save(ctx, rec))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, rec.Manager, loaded.Manager)
	require.Equal(t, rec.RequirementsChecksum, loaded.RequirementsChecksum)
	require.Equal(t, rec.ProvisionedBy, loaded.ProvisionedBy)
	require.True(t, rec.Timestamp.Equal(loaded.Timestamp))
}

// TestFileRepositoryNotFound maps a missing file to ErrNotFound.
func TestFileRepositoryNotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

// TestFileRepositoryCorruptFile surfaces unparsable receipt contents as a
// distinct error, not ErrNotFound.
func TestFileRepositoryCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "receipt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("manager: conda\n\tpython: oops\n"), 0o600))

	_, err := NewFileRepository(path).Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
	require.ErrorContains(t, err, "unmarshal receipt")
}
