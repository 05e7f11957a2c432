package rbridge

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// errMark prefixes the R-side error message emitted by the tryCatch
	// wrapper. Everything after it, up to the done marker, is the
	// interpreter's own message.
	errMark = "__geolift_error__:"

	// maxLineBytes bounds a single stdout line. Hex-encoded plot payloads
	// arrive as one long line, so this has to fit an entire PNG.
	maxLineBytes = 32 * 1024 * 1024
)

// Options configures a Session.
type Options struct {
	Binary string   // R binary, default "R"
	Args   []string // extra args appended after the standard set
	Dir    string   // working directory for the R process
	Env    []string // extra environment entries
	Logger *zap.Logger
}

// Session is a persistent R subprocess implementing Executor.
//
// Each call writes the script fragment to a fresh temporary .R file,
// sources it inside tryCatch and waits for a per-call done marker on
// stdout. The temp file is removed before the call returns. Not safe for
// concurrent use.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	stderr *tailBuffer
	log    *zap.Logger

	seq    int
	closed bool
}

// NewSession starts an R process and returns a ready session.
func NewSession(opts Options) (*Session, error) {
	binary := opts.Binary
	if binary == "" {
		binary = "R"
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	args := append([]string{"--vanilla", "--quiet", "--no-echo"}, opts.Args...)
	cmd := exec.Command(binary, args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartup, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartup, err)
	}
	tail := &tailBuffer{limit: 8 * 1024}
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartup, err)
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan string, 64),
		stderr: tail,
		log:    log,
	}
	go s.readLoop(stdout)

	log.Debug("R session started",
		zap.String("binary", binary),
		zap.Strings("args", args))
	return s, nil
}

func (s *Session) readLoop(stdout io.Reader) {
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		s.lines <- sc.Text()
	}
	close(s.lines)
}

// Execute implements Executor.
func (s *Session) Execute(ctx context.Context, script string) error {
	_, err := s.roundTrip(ctx, script)
	return err
}

// Fetch implements Executor. The expression must evaluate to a raw vector;
// it is transferred as hex text and decoded here.
func (s *Session) Fetch(ctx context.Context, expr string) ([]byte, error) {
	script := "cat(as.character((" + expr + ")), sep = \"\")\ncat(\"\\n\")\n"
	out, err := s.roundTrip(ctx, script)
	if err != nil {
		return nil, err
	}
	payload := ""
	for i := len(out) - 1; i >= 0; i-- {
		if strings.TrimSpace(out[i]) != "" {
			payload = strings.TrimSpace(out[i])
			break
		}
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: empty result for %q", ErrBadPayload, expr)
	}
	b, err := hex.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return b, nil
}

// roundTrip runs one script fragment and collects stdout lines produced by
// it, up to the done marker.
func (s *Session) roundTrip(ctx context.Context, script string) ([]string, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	s.seq++
	done := fmt.Sprintf("__geolift_done_%d__", s.seq)

	file, err := os.CreateTemp("", "geolift-*.R")
	if err != nil {
		return nil, err
	}
	name := file.Name()
	defer os.Remove(name)

	if _, err := file.WriteString(script); err != nil {
		file.Close()
		return nil, err
	}
	if err := file.Close(); err != nil {
		return nil, err
	}

	command := sourceCommand(name, done)

	start := time.Now()
	s.log.Debug("executing R script", zap.Int("seq", s.seq), zap.Int("bytes", len(script)))

	if _, err := io.WriteString(s.stdin, command); err != nil {
		s.closed = true
		return nil, fmt.Errorf("%w: %v", ErrSessionClosed, err)
	}

	var out []string
	var errMsg strings.Builder
	inError := false
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				s.closed = true
				return nil, fmt.Errorf("%w: R process exited: %s", ErrSessionClosed, s.stderr.String())
			}
			trimmed := strings.TrimRight(line, "\r\n")
			switch {
			case trimmed == done:
				s.log.Debug("R script finished",
					zap.Int("seq", s.seq),
					zap.Duration("elapsed", time.Since(start)),
					zap.Bool("failed", inError))
				if inError {
					return nil, &EvalError{Message: strings.TrimSpace(errMsg.String())}
				}
				return out, nil
			case strings.HasPrefix(trimmed, errMark):
				inError = true
				errMsg.WriteString(strings.TrimPrefix(trimmed, errMark))
			case inError:
				errMsg.WriteString("\n")
				errMsg.WriteString(trimmed)
			default:
				out = append(out, trimmed)
			}
		case <-ctx.Done():
			// The script may still be running inside R; the session
			// is no longer in a known state.
			s.closed = true
			s.cmd.Process.Kill()
			return nil, ctx.Err()
		}
	}
}

// Close shuts the R process down. The session is unusable afterwards.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	io.WriteString(s.stdin, "quit(save = \"no\")\n")
	s.stdin.Close()
	return s.cmd.Wait()
}

// sourceCommand builds the one-line command sent to R for each call.
// Sourcing the fragment (rather than piping it raw) turns parse errors
// into catchable conditions, so a bad fragment cannot kill the
// non-interactive session.
func sourceCommand(scriptPath, done string) string {
	return fmt.Sprintf(
		"tryCatch(source(%s, local = FALSE, echo = FALSE), error = function(e) cat(%q, conditionMessage(e), \"\\n\", sep = \"\")); cat(%q, \"\\n\", sep = \"\")\n",
		quoteRString(scriptPath), errMark, done)
}

// quoteRString renders a Go string as an R string literal.
func quoteRString(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
