package cli

import (
	"errors"

	"github.com/spf13/cobra"

	httpapi "github.com/ihssane2002/chatbot-entreprise/internal/adapters/driving/http"
)

// serveAddr overrides server.addr.
var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the question, upload and report endpoints:

  POST /api/query            {"question": "...", "history": [...]}
  POST /api/upload-pdf       multipart form, field "pdf"
  GET  /static/rapports/NAME the stored PDF
  GET  /api/reports          stored reports
  GET  /api/sync/status      current and last sync
  GET  /healthz              dependency checks`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}
	if s.Query == nil || s.Ingest == nil {
		return errors.New("query service not configured")
	}

	addr := serveAddr
	if addr == "" {
		addr = s.Settings.Server.Addr
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Query:          s.Query,
		Ingest:         s.Ingest,
		Sync:           s.Sync,
		Corpus:         s.Corpus,
		Reports:        s.Reports,
		VectorIndex:    s.VectorIndex,
		MaxUploadBytes: s.Settings.Server.MaxUploadBytes,
		Warnings:       s.Warnings,
	})

	cmd.Printf("HTTP API listening on %s\n", addr)
	return httpapi.Serve(cmd.Context(), addr, router)
}
