// Command hashpw prints the argon2id hash of a password read from the
// terminal, for seeding accounts by hand.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/cerberus/internal/common"
	"github.com/dmitrijs2005/cerberus/internal/server/auth"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errMismatch = errors.New("passwords do not match")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "hashpw:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	def := auth.DefaultHasherConfig()

	fs := pflag.NewFlagSet("hashpw", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	memory := fs.Uint32("memory", def.Memory, "argon2 memory in KiB")
	passes := fs.Uint32("time", def.Time, "argon2 passes")
	threads := fs.Uint8("threads", def.Threads, "argon2 parallelism")
	confirm := fs.Bool("confirm", true, "ask for the password twice")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pw, err := prompt(stderr, "Password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if *confirm {
		again, err := prompt(stderr, "Repeat password: ")
		if err != nil {
			return err
		}
		defer common.WipeByteArray(again)
		if !bytes.Equal(pw, again) {
			return errMismatch
		}
	}

	if err := auth.ValidatePasswordStrength(string(pw)); err != nil {
		return err
	}

	hash, err := auth.NewHasher(auth.HasherConfig{Memory: *memory, Time: *passes, Threads: *threads}).Hash(string(pw))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, hash)
	return err
}

func prompt(w io.Writer, label string) ([]byte, error) {
	if _, err := fmt.Fprint(w, label); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}
