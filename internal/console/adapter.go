// Package console is a stdin/stdout transport for running the bot locally
// without a chat service. Each input line is a message from a single user;
// /copy and /download press the menu buttons.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/iconidentify/clipgrab/internal/domain"
	"github.com/iconidentify/clipgrab/internal/service"
)

const (
	// UserID is the identity of the console user.
	UserID = domain.UserID("console")

	prompt = "> "
)

// Handler processes one inbound event.
type Handler func(ctx context.Context, ev service.Event) error

// Adapter implements service.Transport by printing to a writer.
type Adapter struct {
	mu          sync.Mutex
	out         io.Writer
	interactive bool
	saveDir     string
	seq         int
	logger      *slog.Logger
}

// Options configures an Adapter.
type Options struct {
	// Interactive prints a prompt before each line.
	Interactive bool
	// SaveDir, when set, receives a copy of every delivered video.
	SaveDir string
}

// New creates a console adapter writing to out.
func New(out io.Writer, opts Options, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		out:         out,
		interactive: opts.Interactive,
		saveDir:     opts.SaveDir,
		logger:      logger.With("component", "console"),
	}
}

// IsInteractive reports whether f is a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Run reads lines from in and passes them to handle until in is exhausted,
// the user types /quit, or ctx is done.
func (a *Adapter) Run(ctx context.Context, in io.Reader, handle Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	a.printPrompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					if err != nil {
						return fmt.Errorf("read input: %w", err)
					}
				default:
				}
				return nil
			}

			line = strings.TrimSpace(line)
			if line == "/quit" || line == "/exit" {
				return nil
			}
			if line != "" {
				if err := handle(ctx, a.toEvent(line)); err != nil {
					a.logger.Error("failed to handle input", "error", err)
				}
			}
			a.printPrompt()
		}
	}
}

func (a *Adapter) toEvent(line string) service.Event {
	if cmd, ok := strings.CutPrefix(line, "/"); ok {
		for _, b := range service.CaptionMenu {
			if cmd == string(b.Action) {
				a.mu.Lock()
				a.seq++
				id := fmt.Sprintf("console-%d", a.seq)
				a.mu.Unlock()
				return service.ActionEvent{UserID: UserID, Action: b.Action, CallbackID: id}
			}
		}
	}
	return service.TextMessage{UserID: UserID, Text: line}
}

func (a *Adapter) printPrompt() {
	if a.interactive {
		a.write(prompt)
	}
}

func (a *Adapter) write(s string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	io.WriteString(a.out, s)
}

// SendText prints a reply.
func (a *Adapter) SendText(ctx context.Context, chatID int64, text string) error {
	a.write(text + "\n")
	return nil
}

// SendCaption prints a reply followed by the menu as commands.
func (a *Adapter) SendCaption(ctx context.Context, chatID int64, text string, menu []service.MenuButton) error {
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n")
	for _, m := range menu {
		fmt.Fprintf(&b, "  /%s  %s\n", m.Action, m.Label)
	}
	a.write(b.String())
	return nil
}

// SendVideo reports the artifact and, when a save directory is set, keeps
// a copy of it.
func (a *Adapter) SendVideo(ctx context.Context, chatID int64, artifact domain.MediaArtifact) error {
	if a.saveDir == "" {
		a.write(fmt.Sprintf("🎬 video ready (%d bytes)\n", artifact.Size))
		return nil
	}

	dst := filepath.Join(a.saveDir, filepath.Base(artifact.Path))
	if err := copyFile(artifact.Path, dst); err != nil {
		return fmt.Errorf("save video: %w", err)
	}
	a.write(fmt.Sprintf("🎬 video saved to %s (%d bytes)\n", dst, artifact.Size))
	return nil
}

// AckAction prints the notice, if any.
func (a *Adapter) AckAction(ctx context.Context, callbackID, notice string) error {
	if notice != "" {
		a.write(notice + "\n")
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
