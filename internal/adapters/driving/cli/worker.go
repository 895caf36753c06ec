package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/queue/rabbitmq"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driving"
	"github.com/ihssane2002/chatbot-entreprise/internal/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run queued syncs",
	Long: `Consumes sync requests published by uploads and runs them one at a
time. Requires queue.amqp_url (or AMQP_URL).`,
	Args:        cobra.NoArgs,
	RunE:        runWorker,
	Annotations: map[string]string{bootstrapAnnotation: bootstrapWorker},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}
	if s.Sync == nil {
		return errors.New("sync service not configured")
	}
	q := s.Settings.Queue
	if q.AMQPURL == "" {
		return fmt.Errorf("%w: queue.amqp_url is not set", domain.ErrInvalidInput)
	}

	ctx := cmd.Context()
	conn, err := rabbitmq.Dial(ctx, q.AMQPURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	consumer := rabbitmq.NewConsumer(conn, q.Queue, syncHandler(s.Sync))
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	defer consumer.Close()

	cmd.Printf("Worker consuming %s\n", q.Queue)
	select {
	case <-ctx.Done():
		return nil
	case err := <-consumer.Done():
		return err
	}
}

// syncHandler runs one sync per request. A request arriving while a sync is
// running is settled: the running sync lists the corpus after the upload
// was written, or the next one will.
func syncHandler(engine driving.SyncEngine) rabbitmq.Handler {
	return func(ctx context.Context, req domain.SyncRequest) error {
		logger.Info("sync request %s (%s)", req.ID, req.Reason)
		run, err := engine.Sync(ctx)
		if errors.Is(err, domain.ErrSyncInProgress) {
			logger.Info("sync request %s skipped: a sync is already running", req.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("sync request %s: %w", req.ID, err)
		}
		logger.Info("sync request %s done: run %s, %d added, %d changed, %d removed",
			req.ID, run.ID, len(run.Added), len(run.Changed), len(run.Removed))
		return nil
	}
}
