// Package prompt asks the operator for database credentials and for
// confirmation before destructive steps.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Credentials are held in memory only. They redact the password whenever
// they are formatted or logged.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) String() string {
	return fmt.Sprintf("%s:[REDACTED]", c.Username)
}

func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("password", "[REDACTED]"),
	)
}

type CredentialProvider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

type ConfirmationPrompt interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Static answers every confirmation with the same value.
type Static bool

func (s Static) Confirm(context.Context, string) (bool, error) {
	return bool(s), nil
}

// Env reads DB_USER and DB_PASSWORD and falls back to Fallback when either
// is unset.
type Env struct {
	Fallback CredentialProvider
	Getenv   func(string) string
}

func (e Env) Credentials(ctx context.Context) (Credentials, error) {
	getenv := e.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	user, password := getenv("DB_USER"), getenv("DB_PASSWORD")
	if user != "" && password != "" {
		return Credentials{Username: user, Password: password}, nil
	}
	if e.Fallback == nil {
		return Credentials{}, errors.New("DB_USER and DB_PASSWORD are not set and no interactive prompt is available")
	}
	return e.Fallback.Credentials(ctx)
}

// Terminal prompts on an input and output stream. The password is read
// without echo when the input is a terminal.
type Terminal struct {
	Out    io.Writer
	reader *bufio.Reader
	fd     int
	isTTY  bool
}

// NewTerminal prompts on stdin and writes questions to stderr.
func NewTerminal() *Terminal {
	fd := int(os.Stdin.Fd())
	return &Terminal{
		Out:    os.Stderr,
		reader: bufio.NewReader(os.Stdin),
		fd:     fd,
		isTTY:  term.IsTerminal(fd),
	}
}

// NewTerminalFrom prompts on arbitrary streams. Passwords are read as plain
// lines.
func NewTerminalFrom(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{Out: out, reader: bufio.NewReader(in), fd: -1}
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Confirm asks a yes/no question. Only y or yes (any case) is a yes; end of
// input is a no.
func (t *Terminal) Confirm(_ context.Context, question string) (bool, error) {
	fmt.Fprintf(t.Out, "%s (y/n): ", question)
	answer, err := t.readLine()
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(t.Out)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (t *Terminal) Credentials(_ context.Context) (Credentials, error) {
	fmt.Fprintln(t.Out, "Enter your database credentials:")
	fmt.Fprint(t.Out, "Username: ")
	user, err := t.readLine()
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read username: %w", err)
	}

	fmt.Fprint(t.Out, "Password: ")
	var password string
	if t.isTTY {
		b, err := term.ReadPassword(t.fd)
		fmt.Fprintln(t.Out)
		if err != nil {
			return Credentials{}, fmt.Errorf("failed to read password: %w", err)
		}
		password = string(b)
	} else {
		password, err = t.readLine()
		if err != nil {
			return Credentials{}, fmt.Errorf("failed to read password: %w", err)
		}
	}

	user = strings.TrimSpace(user)
	if user == "" {
		return Credentials{}, errors.New("username must not be empty")
	}
	return Credentials{Username: user, Password: password}, nil
}
