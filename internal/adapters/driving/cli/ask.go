package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
)

var (
	askSession string
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the reports",
	Long: `Retrieves the most relevant chunks and tables and asks the language
model to answer from them. Sources are cited with links to the reports.

Use --session to keep a conversation: earlier turns of the same session
are sent with the question.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "conversation session id")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}
	if s.Query == nil {
		return errors.New("query service not configured")
	}

	result := s.Query.Ask(cmd.Context(), domain.QueryRequest{
		Question:  strings.Join(args, " "),
		SessionID: askSession,
	})

	if askJSON {
		return outputJSON(cmd, result)
	}
	if !result.OK() {
		return errors.New(result.Error)
	}
	cmd.Println(result.Answer)
	return nil
}
