package cli

import (
	"context"
	"fmt"
	"io"
)

// Migrator applies schema changes.
type Migrator interface {
	Up(ctx context.Context) (int, error)
	Down(ctx context.Context) error
	Status(ctx context.Context) ([]string, error)
}

// Migrate runs one migration action and returns the process exit code.
func Migrate(ctx context.Context, m Migrator, action string, stdout, stderr io.Writer) int {
	switch action {
	case "", "up":
		n, err := m.Up(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "migrate up: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "applied %d migration(s)\n", n)
	case "down":
		if err := m.Down(ctx); err != nil {
			_, _ = fmt.Fprintf(stderr, "migrate down: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(stdout, "rolled back 1 migration")
	case "status":
		lines, err := m.Status(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "migrate status: %v\n", err)
			return 1
		}
		for _, line := range lines {
			_, _ = fmt.Fprintln(stdout, line)
		}
	default:
		_, _ = fmt.Fprintf(stderr, "migrate: unknown action %q (up|down|status)\n", action)
		return 2
	}
	return 0
}
