package commands

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cipherchat/internal/domain"
)

// chat <peer>: send stdin lines while polling the relay in the background.
func chatCmd() *cobra.Command {
	var poll time.Duration
	cmd := &cobra.Command{
		Use:   "chat <peer>",
		Short: "Interactive chat with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			acct, err := appCtx.Account(passphrase)
			if err != nil {
				return err
			}
			peer := domain.Username(args[0])
			ctx := cmd.Context()
			out := &syncWriter{w: cmd.OutOrStdout()}

			var wg sync.WaitGroup
			done := make(chan struct{})
			defer wg.Wait()
			defer close(done)
			wg.Add(1)
			go func() {
				defer wg.Done()
				t := time.NewTicker(poll)
				defer t.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-done:
						return
					case <-t.C:
						res, err := appCtx.Messages.Fetch(ctx, acct)
						if err != nil {
							appCtx.Log.Warn("fetch", zap.Error(err))
							continue
						}
						var buf bytes.Buffer
						printFetch(&buf, res, "")
						if buf.Len() > 0 {
							_, _ = out.Write(buf.Bytes())
						}
					}
				}
			}()

			fmt.Fprintf(out, "Chatting with %s. Ctrl-D to quit.\n", peer)
			lines := make(chan string)
			go func() {
				sc := bufio.NewScanner(cmd.InOrStdin())
				defer close(lines)
				for sc.Scan() {
					select {
					case lines <- sc.Text():
					case <-done:
						return
					}
				}
			}()
			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					line = strings.TrimSpace(line)
					if line == "" {
						continue
					}
					if err := appCtx.Messages.Send(ctx, acct, peer, []byte(line)); err != nil {
						fmt.Fprintf(out, "! %v\n", err)
					}
				}
			}
		},
	}
	cmd.Flags().DurationVar(&poll, "poll", 2*time.Second, "fetch interval")
	return cmd
}

// syncWriter serialises writes from the poller and the send loop.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
