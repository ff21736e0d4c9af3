package cli

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/gpuwatch/gpuwatch/internal/errors"
)

// promptPassword reads an SSH password from the terminal without echo.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "SSH password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read password",
			"Set a per-host password or key_file in the config file instead")
	}
	return string(raw), nil
}
