package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soyeahso/sawt/internal/coordinator"
	"github.com/soyeahso/sawt/internal/domain"
)

func newChatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant interactively on stdin",
		Long:  "Each line is one customer message. /reset starts the conversation over, /quit exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := validated()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if sessionID == "" {
				sessionID = coordinator.NewSessionID()
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s\n", sessionID)

			return chatLoop(ctx, a.coord, sessionID, bufio.NewScanner(cmd.InOrStdin()), out)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "resume a conversation by id")
	return cmd
}

// chatLoop feeds scanned lines to the coordinator until EOF, /quit or a
// terminal phase.
func chatLoop(ctx context.Context, coord *coordinator.Coordinator, sessionID string, in *bufio.Scanner, out io.Writer) error {
	fmt.Fprint(out, "> ")
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		switch line {
		case "":
			fmt.Fprint(out, "> ")
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := coord.Reset(ctx, sessionID); err != nil {
				return err
			}
			fmt.Fprintln(out, "(conversation reset)")
			fmt.Fprint(out, "> ")
			continue
		}

		res, err := coord.HandleTurn(ctx, sessionID, line)
		if res == nil {
			return err
		}
		fmt.Fprintln(out, res.Reply)
		if res.Phase != res.Previous {
			fmt.Fprintf(out, "[%s → %s]\n", res.Previous, res.Phase)
		}
		if err != nil && !domain.Recoverable(err) {
			log.Warn().Err(err).Msg("turn failed")
		}
		if res.Phase.Terminal() {
			return nil
		}
		fmt.Fprint(out, "> ")
	}
	return in.Err()
}
