package main

import (
	"bufio"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

var errPasswordMismatch = errors.New("passwords do not match")

// promptPassword reads a password from the terminal at fd without echo,
// asking twice when confirm is set. When fd is not a terminal the first line
// of r is used instead, so passwords can be piped in.
func promptPassword(fd int, r io.Reader, w io.Writer, confirm bool) (string, error) {
	if !isTerminal(fd) {
		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("reading password from stdin: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(w, "Enter password: ")
	pw1, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	defer wipe(pw1)

	if confirm {
		fmt.Fprint(w, "Confirm password: ")
		pw2, err := readPassword(fd)
		fmt.Fprintln(w)
		if err != nil {
			return "", fmt.Errorf("reading password confirmation: %w", err)
		}
		defer wipe(pw2)
		if subtle.ConstantTimeCompare(pw1, pw2) != 1 {
			return "", errPasswordMismatch
		}
	}
	return string(pw1), nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
