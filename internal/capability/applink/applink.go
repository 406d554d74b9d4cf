// Package applink opens the external app linked to a metric, trying the
// platform package first and the URL scheme second.
package applink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"runtime"

	"github.com/starford/tally/internal/models"
)

// ErrAppNotFound is returned when a metric has a link but nothing opened it.
var ErrAppNotFound = errors.New("app not found")

// ErrUnsupported is returned by openers that cannot launch by package name.
var ErrUnsupported = errors.New("not supported on this platform")

// Opener launches external apps.
type Opener interface {
	OpenPackage(ctx context.Context, pkg string) error
	CanOpenURL(ctx context.Context, rawURL string) bool
	OpenURL(ctx context.Context, rawURL string) error
}

// Launch opens the app linked to metric. A metric without a link is a no-op.
func Launch(ctx context.Context, opener Opener, metric models.MetricConfig) error {
	if !metric.HasLink() {
		return nil
	}
	if metric.LinkPackage != nil && *metric.LinkPackage != "" {
		err := opener.OpenPackage(ctx, *metric.LinkPackage)
		if err == nil {
			return nil
		}
		slog.Debug("applink: package launch failed",
			slog.String("package", *metric.LinkPackage), slog.String("error", err.Error()))
	}
	if metric.LinkScheme != nil && *metric.LinkScheme != "" {
		scheme := *metric.LinkScheme
		if opener.CanOpenURL(ctx, scheme) {
			if err := opener.OpenURL(ctx, scheme); err == nil {
				return nil
			}
		}
	}
	return fmt.Errorf("could not open the app linked to %q: %w", metric.Label, ErrAppNotFound)
}

// CommandOpener opens URLs through the desktop's opener command
// (xdg-open, open or rundll32).
type CommandOpener struct {
	// Run executes a command; nil means exec.CommandContext(...).Run.
	Run func(ctx context.Context, name string, args ...string) error
	// LookPath resolves a command; nil means exec.LookPath.
	LookPath func(file string) (string, error)
	// GOOS overrides runtime.GOOS.
	GOOS string
}

// OpenPackage always fails: desktop platforms have no package launcher.
func (o CommandOpener) OpenPackage(context.Context, string) error {
	return ErrUnsupported
}

// CanOpenURL reports whether rawURL has a scheme and an opener is installed.
func (o CommandOpener) CanOpenURL(_ context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return false
	}
	name, _ := o.command(rawURL)
	_, err = o.lookPath(name)
	return err == nil
}

// OpenURL hands rawURL to the opener command.
func (o CommandOpener) OpenURL(ctx context.Context, rawURL string) error {
	name, args := o.command(rawURL)
	run := o.Run
	if run == nil {
		run = func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		}
	}
	if err := run(ctx, name, args...); err != nil {
		return fmt.Errorf("applink: %s: %w", name, err)
	}
	return nil
}

func (o CommandOpener) command(rawURL string) (string, []string) {
	goos := o.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	switch goos {
	case "darwin":
		return "open", []string{rawURL}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", rawURL}
	default:
		return "xdg-open", []string{rawURL}
	}
}

func (o CommandOpener) lookPath(name string) (string, error) {
	if o.LookPath != nil {
		return o.LookPath(name)
	}
	return exec.LookPath(name)
}
