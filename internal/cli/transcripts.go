package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jobsync/chatgateway/pkg/session"
	"github.com/spf13/cobra"
)

var transcriptsCmd = &cobra.Command{
	Use:   "transcripts <session-id>",
	Short: "Print archived transcripts of an expired session",
	Long: `Print the transcripts the session reaper archived for a session.
Requires session.archive.enabled; archived sessions are never restored.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscripts,
}

func init() {
	rootCmd.AddCommand(transcriptsCmd)
}

func runTranscripts(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	archive, err := session.NewSQLiteArchive(cfg.Session.Archive.Path)
	if err != nil {
		return fmt.Errorf("failed to open transcript archive: %w", err)
	}
	defer archive.Close()

	transcripts, err := archive.Transcripts(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to read transcripts: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(transcripts) == 0 {
		fmt.Fprintf(out, "No transcripts for %s\n", args[0])
		return nil
	}

	for i, t := range transcripts {
		fmt.Fprintf(out, "== Transcript %d: %s .. %s (%d turns)\n",
			i+1, t.CreatedAt.Format(time.RFC3339), t.LastActive.Format(time.RFC3339), len(t.Turns))
		for _, turn := range t.Turns {
			fmt.Fprintf(out, "[%s] %s: %s\n", turn.Timestamp.Format(time.RFC3339), turn.Role, turn.Content)
		}
	}
	return nil
}
