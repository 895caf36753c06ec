// Command chatbot answers questions over a directory of PDF reports.
package main

import (
	"os"

	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
