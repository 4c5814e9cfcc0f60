// Package browser opens URLs in the user's default browser.
package browser

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
)

// ErrUnsupportedPlatform is returned when no opener is known for the OS.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Command returns the opener invocation for goos.
func Command(goos, url string) (name string, args []string, err error) {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	case "darwin":
		return "open", []string{url}, nil
	default:
		return "", nil, ErrUnsupportedPlatform
	}
}

// Open starts the platform opener for url without waiting for it to exit.
func Open(ctx context.Context, url string) error {
	name, args, err := Command(runtime.GOOS, url)
	if err != nil {
		return err
	}
	return exec.CommandContext(ctx, name, args...).Start()
}
