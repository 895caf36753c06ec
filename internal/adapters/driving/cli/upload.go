package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// uploadName overrides the stored file name.
var uploadName string

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Add a PDF report and sync it",
	Long: `Copies a PDF into the report directory, replacing any report with the
same name, then triggers a sync. When a message broker is configured the
sync is queued for the worker instead of running inline.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "name to store the report under (default: file name)")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}
	if s.Ingest == nil {
		return errors.New("ingest service not configured")
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	name := uploadName
	if name == "" {
		name = filepath.Base(path)
	}

	result, err := s.Ingest.Upload(cmd.Context(), name, data)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	if result.Replaced {
		cmd.Printf("Replaced %s.\n", result.Name)
	} else {
		cmd.Printf("Added %s.\n", result.Name)
	}
	switch {
	case result.Queued:
		cmd.Println("Sync queued for the worker.")
	case result.Run != nil:
		printSyncRun(cmd, result.Run)
	}
	return nil
}
