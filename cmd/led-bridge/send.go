package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"led-bridge/internal/bridge"
	"led-bridge/internal/hostmsg"
	"led-bridge/internal/output"
	"led-bridge/internal/status"
	"led-bridge/pkg/config"
	"led-bridge/pkg/transport"
)

// maxLineSize bounds one newline-delimited host message
const maxLineSize = 4 * 1024 * 1024

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Act as a headless host: forward newline-delimited host messages",
	Long: `send connects to the listener and forwards host messages read from stdin
(or --file), one JSON object per line, exactly as the host page would.
Lines without pixel data are ignored.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return viper.BindPFlag("bridge.default_url", cmd.Flags().Lookup("url"))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		format, err := output.GetFormatFromCmd(cmd)
		if err != nil {
			return err
		}

		input := cmd.InOrStdin()
		if path, _ := cmd.Flags().GetString("file"); path != "" {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open input: %w", err)
			}
			defer f.Close()
			input = f
		}

		timeout, _ := cmd.Flags().GetDuration("connect-timeout")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := runSend(ctx, cfg, transport.NewWebSocketDialer(cfg.Bridge.WebSocketOptions()), input, timeout)
		if err != nil {
			return err
		}

		formatter := output.New(format)
		formatter.SetWriter(cmd.OutOrStdout())
		return formatter.Output(result)
	},
}

func init() {
	sendCmd.Flags().String("url", "", "listener URL (ws:// or wss://)")
	sendCmd.Flags().StringP("file", "f", "", "read host messages from file instead of stdin")
	sendCmd.Flags().Duration("connect-timeout", 10*time.Second, "how long to wait for the listener")
	output.AddFormatFlag(sendCmd)
}

// sendResult summarizes a headless send run
type sendResult struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
	Lines     int    `json:"lines"`
	Frames    uint64 `json:"frames"`
	State     string `json:"state"`
	Status    string `json:"status"`
}

func (r sendResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s: %s (%d lines read, %d frames sent, state %s, session %s)\n",
		r.URL, r.Status, r.Lines, r.Frames, r.State, r.SessionID)
	return err
}

// logPoster stands in for the parent window when running headless
type logPoster struct {
	origin string
}

func (p logPoster) PostMessage(targetOrigin string, data interface{}) error {
	if targetOrigin != p.origin {
		return fmt.Errorf("%w: %s", hostmsg.ErrUntrustedOrigin, targetOrigin)
	}
	log.Info().Str("target_origin", targetOrigin).Interface("data", data).Msg("Host post")
	return nil
}

func runSend(ctx context.Context, cfg *config.Config, dialer transport.Dialer, input io.Reader, timeout time.Duration) (*sendResult, error) {
	if cfg.Bridge.DefaultURL == "" {
		return nil, fmt.Errorf("a listener URL is required (--url)")
	}

	updates := make(chan status.Status, 16)
	board := status.NewBoard(
		status.LogReporter{Logger: log.Logger},
		status.ReporterFunc(func(s status.Status) {
			if s.Style == status.StyleOK && s.Frames > 0 {
				return
			}
			select {
			case updates <- s:
			default:
			}
		}),
	)

	ctrl := bridge.New(bridge.Options{
		Dialer:        dialer,
		Poster:        logPoster{origin: cfg.Bridge.HostOrigin},
		Reporter:      board,
		TrustedOrigin: cfg.Bridge.HostOrigin,
		DefaultURL:    cfg.Bridge.DefaultURL,
		SendTimeout:   cfg.Bridge.WriteTimeout,
	})

	runCtx, cancel := context.WithCancel(ctx)
	runDone := make(chan struct{})
	go func() {
		_ = ctrl.Run(runCtx)
		close(runDone)
	}()
	defer func() {
		cancel()
		<-runDone
	}()

	if err := ctrl.Connect(ctx, ""); err != nil {
		return nil, err
	}
	if err := waitOpen(ctx, updates, timeout); err != nil {
		return nil, err
	}

	lines := 0
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		lines++
		if err := ctrl.HandleHostMessage(ctx, scanner.Bytes()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read host messages: %w", err)
	}

	snap, err := ctrl.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	final := board.Current().Text
	if err := ctrl.Disconnect(ctx); err != nil {
		return nil, err
	}

	return &sendResult{
		URL:       snap.URL,
		SessionID: snap.SessionID,
		Lines:     lines,
		Frames:    snap.Frames,
		State:     snap.State.String(),
		Status:    final,
	}, nil
}

// waitOpen blocks until the connect attempt resolves
func waitOpen(ctx context.Context, updates <-chan status.Status, timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case s := <-updates:
			switch s.Style {
			case status.StyleOK:
				return nil
			case status.StyleError:
				return fmt.Errorf("%s", s.Text)
			}
		case <-deadline:
			return fmt.Errorf("timed out waiting for listener after %s", timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
