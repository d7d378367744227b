package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/orchestra-mcp/realtime/config"
	"github.com/orchestra-mcp/realtime/src/realtime"
	"github.com/orchestra-mcp/realtime/src/transport"
	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func chatCommand(logger *zerolog.Logger) *cobra.Command {
	var (
		token    string
		threadID int64
		endpoint string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join a thread and chat from the terminal",
		Long: `Connects to the relay, joins the thread and prints every inbound frame.
Each stdin line is sent as a message. Lines starting with a slash are helpers:
  /typing on|off   send the typing indicator
  /read <id>       mark a message as read
  /attach <path>   upload a file (the rest of the line is the caption)
  /quit            leave the thread and exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.ClientConfigFromEnv()
			if endpoint == "" {
				endpoint = cfg.Endpoint
			}

			client := realtime.New(cfg, transport.NewDialer(cfg), *logger,
				realtime.WithErrorHandler(func(err error) {
					logger.Warn().Err(err).Msg("frame error")
				}),
			)
			out := cmd.OutOrStdout()
			if err := client.AddEventListener(realtime.EventMessage, func(f types.Frame) error {
				_, err := fmt.Fprintf(out, "[%s] %s\n", f.Type, f.Raw)
				return err
			}); err != nil {
				return err
			}
			client.AddDisconnectListener(func(ev types.CloseEvent) {
				log := logger.Info()
				if !ev.WasClean {
					log = logger.Warn()
				}
				log.Int("code", ev.Code).Bool("clean", ev.WasClean).Str("reason", ev.Reason).Msg("disconnected")
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := client.Connect(ctx, token, endpoint); err != nil {
				return err
			}
			defer client.Disconnect()

			if err := client.JoinThread(threadID); err != nil {
				return err
			}
			defer func() { _ = client.LeaveThread(threadID) }()

			return runChat(ctx, client, threadID, cmd.InOrStdin(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "credential passed as the token query parameter")
	cmd.Flags().Int64Var(&threadID, "thread", 0, "thread to join")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "socket URL (defaults to REALTIME_ENDPOINT)")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("thread")
	return cmd
}

type chatSender interface {
	SendMessage(threadID int64, content string) error
	SendTypingStatus(threadID int64, isTyping bool) error
	MarkMessageAsRead(threadID, messageID int64) error
	UploadAttachment(threadID int64, content string, attachment types.Attachment) error
}

var errQuit = errors.New("quit")

// runChat sends one command per input line until in is exhausted, /quit is
// read or ctx is cancelled.
func runChat(ctx context.Context, c chatSender, threadID int64, in io.Reader, errOut io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
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
			err := handleLine(c, threadID, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintln(errOut, "error:", err)
			}
		}
	}
}

func handleLine(c chatSender, threadID int64, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return c.SendMessage(threadID, line)
	}

	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch verb {
	case "/quit":
		return errQuit
	case "/typing":
		switch rest {
		case "", "on":
			return c.SendTypingStatus(threadID, true)
		case "off":
			return c.SendTypingStatus(threadID, false)
		}
		return fmt.Errorf("usage: /typing on|off")
	case "/read":
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("usage: /read <message id>")
		}
		return c.MarkMessageAsRead(threadID, id)
	case "/attach":
		path, caption, _ := strings.Cut(rest, " ")
		if path == "" {
			return fmt.Errorf("usage: /attach <path> [caption]")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return c.UploadAttachment(threadID, strings.TrimSpace(caption), types.Attachment{
			FileData: data,
			Filename: filepath.Base(path),
		})
	}
	return fmt.Errorf("unknown helper %s", verb)
}
