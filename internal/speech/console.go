package speech

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"voice-intake/internal/lang"
)

// Console treats each input line as one utterance and writes prompts as text.
type Console struct {
	out io.Writer

	lines chan string
	errs  chan error

	mu     sync.Mutex
	cancel chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// NewConsole starts reading lines from in. Prompts are written to out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{
		out:    out,
		lines:  make(chan string),
		errs:   make(chan error, 1),
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.read(in)
	return c
}

func (c *Console) read(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if c.closed() {
			return
		}
		select {
		case c.lines <- scanner.Text():
		case <-c.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		c.errs <- err
	}
	close(c.lines)
}

// Capture returns the next non-blank line.
func (c *Console) Capture(ctx context.Context) (string, error) {
	if c.closed() {
		return "", ErrInputClosed
	}
	cancel := c.cancelCh()
	select {
	case line, ok := <-c.lines:
		if !ok {
			select {
			case err := <-c.errs:
				return "", fmt.Errorf("%w: %v", ErrInputClosed, err)
			default:
				return "", ErrInputClosed
			}
		}
		text := strings.TrimSpace(line)
		if text == "" {
			return "", ErrNoSpeech
		}
		return text, nil
	case <-cancel:
		return "", ErrCancelled
	case <-c.done:
		return "", ErrInputClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Speak writes the prompt tagged with its speech locale.
func (c *Console) Speak(ctx context.Context, text, language string) error {
	select {
	case <-c.cancelCh():
		return ErrCancelled
	case <-ctx.Done():
		return ErrCancelled
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%s] %s\n", lang.TTSLocale(language), text)
	return err
}

// Cancel aborts the current capture. Later captures proceed normally.
func (c *Console) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	close(c.cancel)
	c.cancel = make(chan struct{})
}

// Close stops the console. Lines read after Close are dropped and the reader
// exits once its next line arrives.
func (c *Console) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *Console) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Console) cancelCh() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel
}

var _ Boundary = (*Console)(nil)
