package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
)

func writeTempPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rapport.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))
	return path
}

func TestUploadCmd_Inline(t *testing.T) {
	ts := setupTestServices(t)
	ts.ingest.result = &domain.UploadResult{Name: "rapport.pdf", Run: &domain.SyncRun{ID: "run-1", Added: []string{"rapport.pdf"}}}

	out, err := execute(t, "upload", writeTempPDF(t))
	require.NoError(t, err)
	assert.Equal(t, "rapport.pdf", ts.ingest.gotName)
	assert.Equal(t, []byte("%PDF-1.4"), ts.ingest.gotData)
	assert.Contains(t, out, "Added rapport.pdf.")
	assert.Contains(t, out, "Sync run-1 finished")
}

func TestUploadCmd_QueuedAndRenamed(t *testing.T) {
	ts := setupTestServices(t)
	ts.ingest.result = &domain.UploadResult{Name: "autre.pdf", Replaced: true, Queued: true}

	out, err := execute(t, "upload", "--name", "autre.pdf", writeTempPDF(t))
	require.NoError(t, err)
	assert.Equal(t, "autre.pdf", ts.ingest.gotName)
	assert.Contains(t, out, "Replaced autre.pdf.")
	assert.Contains(t, out, "Sync queued for the worker.")
}

func TestUploadCmd_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		setupTestServices(t)
		_, err := execute(t, "upload", filepath.Join(t.TempDir(), "nope.pdf"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read")
	})

	t.Run("rejected", func(t *testing.T) {
		ts := setupTestServices(t)
		ts.ingest.err = domain.ErrUnsupportedType
		_, err := execute(t, "upload", writeTempPDF(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	})
}
