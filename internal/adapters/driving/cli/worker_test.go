package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
)

func TestSyncHandler(t *testing.T) {
	req := domain.SyncRequest{ID: "req-1", Reason: "upload rapport.pdf"}

	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "sync runs", err: nil},
		{name: "sync in progress is settled", err: domain.ErrSyncInProgress},
		{name: "sync failure is returned", err: errors.New("disk"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockSyncEngine{run: &domain.SyncRun{ID: "run-1"}, err: tt.err}

			err := syncHandler(engine)(context.Background(), req)
			assert.Equal(t, 1, engine.syncCalls)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "req-1")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestWorkerCmd_RequiresBroker(t *testing.T) {
	setupTestServices(t)
	_, err := execute(t, "worker")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWorkerCmd_Annotation(t *testing.T) {
	assert.Equal(t, bootstrapWorker, workerCmd.Annotations[bootstrapAnnotation])
}
