package admin

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/davkeeper/internal/common"
	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

var ErrEmptyPassword = errors.New("password must not be empty")

// readNewPassword asks for a password twice without echo on a terminal, or
// reads a single line when input is piped.
func (a *App) readNewPassword() (string, error) {
	if !isTerminal(a.stdin) {
		line, err := a.reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("read password: %w", err)
		}
		return nonEmpty(strings.TrimSpace(line))
	}

	first, err := a.prompt("Enter password: ")
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(first)

	second, err := a.prompt("Repeat password: ")
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(second)

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return nonEmpty(strings.TrimSpace(string(first)))
}

func (a *App) prompt(text string) ([]byte, error) {
	fmt.Fprint(a.out, text)
	pw, err := readPassword(a.stdin)
	fmt.Fprintln(a.out)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}

func nonEmpty(pw string) (string, error) {
	if pw == "" {
		return "", ErrEmptyPassword
	}
	return pw, nil
}
