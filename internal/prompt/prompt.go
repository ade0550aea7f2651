package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"pbk-go/internal/pbk"
)

// Prompter asks the user questions on an input/output pair.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	// fd is set when in is a terminal, enabling hidden passphrase input.
	fd  int
	tty bool
	yes bool
}

// New creates a Prompter. With yes set, every confirmation is accepted
// without reading input.
func New(in io.Reader, out io.Writer, yes bool) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out, yes: yes}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.tty = true
	}
	return p
}

// IsTerminal reports whether input comes from an interactive terminal.
func (p *Prompter) IsTerminal() bool {
	return p.tty
}

// Confirm asks a y/N question. Anything but "y" or "yes" declines, as does
// end of input.
func (p *Prompter) Confirm(question string) (bool, error) {
	if p.yes {
		return true, nil
	}
	fmt.Fprintf(p.out, "%s [y/N]: ", strings.TrimSpace(question))

	line, err := p.readLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	ans := strings.ToLower(line)
	return ans == "y" || ans == "yes", nil
}

// Confirmer adapts Confirm to the pbk.Confirmer callback.
func (p *Prompter) Confirmer() pbk.Confirmer {
	return p.Confirm
}

// Choose prints a numbered list and returns the zero-based index picked.
// "q" or end of input returns pbk.ErrCancelled; invalid answers are asked again.
func (p *Prompter) Choose(title string, items []string) (int, error) {
	if len(items) == 0 {
		return 0, fmt.Errorf("nothing to choose from")
	}

	fmt.Fprintln(p.out, title)
	for i, item := range items {
		fmt.Fprintf(p.out, "%d. %s\n", i+1, item)
	}

	for {
		fmt.Fprintf(p.out, "Select 1-%d (q to cancel): ", len(items))
		line, err := p.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, pbk.ErrCancelled
			}
			return 0, err
		}
		if strings.EqualFold(line, "q") {
			return 0, pbk.ErrCancelled
		}

		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(items) {
			fmt.Fprintf(p.out, "Invalid choice %q\n", line)
			continue
		}
		return n - 1, nil
	}
}

// Passphrase reads a passphrase, hiding input on a terminal.
func (p *Prompter) Passphrase(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)

	if p.tty {
		b, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(b), nil
	}

	line, err := p.readLine()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return line, nil
}

// NewPassphrase reads a passphrase twice and requires both to match.
func (p *Prompter) NewPassphrase() (string, error) {
	first, err := p.Passphrase("New passphrase")
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	second, err := p.Passphrase("Repeat passphrase")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passphrases do not match")
	}
	return first, nil
}

// readLine returns the next trimmed line. A final line without a newline is
// returned without error; io.EOF is reported only when nothing was read.
func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return line, nil
		}
		return line, err
	}
	return line, nil
}
