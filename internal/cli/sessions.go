package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbourn/tg-analytics-gateway/internal/session"
)

func newSessionsCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect or purge on-disk Telegram session blobs",
		Long: "Inspect or purge on-disk Telegram session blobs.\n\n" +
			"Purging forces the affected users through the login flow again. " +
			"Stop the gateway first; a running client may rewrite its blob.",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "session directory (default $SESSION_DIR or ./sessions)")

	store := func() *session.Store {
		d := dir
		if d == "" {
			d = envOr("SESSION_DIR", "sessions")
		}
		return session.NewStore(d)
	}
	cmd.AddCommand(newSessionsListCmd(store), newSessionsPurgeCmd(store))
	return cmd
}

func newSessionsListCmd(store func() *session.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List session blobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			blobs, err := store().List()
			if err != nil {
				return err
			}
			return writeBlobs(cmd.OutOrStdout(), blobs)
		},
	}
}

func newSessionsPurgeCmd(store func() *session.Store) *cobra.Command {
	var (
		all       bool
		olderThan time.Duration
	)
	cmd := &cobra.Command{
		Use:   "purge [user_id...]",
		Short: "Remove session blobs for the given users, or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && olderThan == 0 && len(args) == 0 {
				return fmt.Errorf("name at least one user id, or pass --all or --older-than")
			}
			s := store()
			out := cmd.OutOrStdout()

			if all || olderThan > 0 {
				blobs, err := s.List()
				if err != nil {
					return err
				}
				stale := selectStale(blobs, olderThan, time.Now())
				for _, b := range stale {
					if err := s.RemoveBlob(b); err != nil {
						return err
					}
					fmt.Fprintf(out, "removed %s\n", filepath.Base(b.Path))
				}
				fmt.Fprintf(out, "%d session(s) purged\n", len(stale))
				return nil
			}

			for _, id := range args {
				if err := s.Remove(id); err != nil {
					return err
				}
				fmt.Fprintf(out, "removed %s\n", session.FileName(id))
			}
			fmt.Fprintf(out, "%d session(s) purged\n", len(args))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "remove every session blob")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only remove blobs not modified within this duration (e.g. 720h)")
	return cmd
}

// selectStale returns the blobs last modified before now-age. A zero age
// selects everything.
func selectStale(blobs []session.Blob, age time.Duration, now time.Time) []session.Blob {
	out := make([]session.Blob, 0, len(blobs))
	for _, b := range blobs {
		if age > 0 && now.Sub(b.ModTime) < age {
			continue
		}
		out = append(out, b)
	}
	return out
}

func writeBlobs(w io.Writer, blobs []session.Blob) error {
	if len(blobs) == 0 {
		_, err := fmt.Fprintln(w, "no sessions")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
	for _, b := range blobs {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", b.Name, b.Size, b.ModTime.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
