package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

func success(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, color.GreenString("✓")+" "+fmt.Sprintf(format, a...))
}

func failure(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, color.RedString("✗")+" "+fmt.Sprintf(format, a...))
}

func warning(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, color.YellowString("!")+" "+fmt.Sprintf(format, a...))
}

func hint(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, color.CyanString("→")+" "+fmt.Sprintf(format, a...))
}

// printPhrase writes the phrase on its own line, framed by rules.
func printPhrase(w io.Writer, title, phrase string) {
	rule := strings.Repeat("─", 60)
	fmt.Fprintln(w)
	fmt.Fprintln(w, color.RedString(rule))
	fmt.Fprintln(w, color.New(color.Bold, color.FgRed).Sprint(title))
	fmt.Fprintln(w, color.New(color.Bold, color.FgYellow).Sprint(phrase))
	fmt.Fprintln(w, color.RedString(rule))
	fmt.Fprintln(w)
}

func readLine(w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	line, err := input.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads without echo when stdin is a terminal.
func readSecret(w io.Writer, in io.Reader, prompt string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(w, prompt)
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}
	return readLine(w, prompt)
}

func confirm(w io.Writer, question string) (bool, error) {
	answer, err := readLine(w, question+" [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
