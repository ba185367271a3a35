package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/illarion/statevault/internal/transport"
)

// List shows the exports stored in the configured transport
func List(ctx context.Context, app *App) {
	defer app.Close()

	objects, err := app.Transport(ctx).List(ctx)
	if err != nil {
		app.Fail(err)
	}

	if len(objects) == 0 {
		fmt.Println("No exports in transport")
		return
	}

	fmt.Println("Exports:")
	for _, o := range objects {
		fmt.Printf("  %s %s (%s, %s)\n", kindIcon(o.Name), o.Name, formatSize(o.Size),
			o.ModifiedAt.Local().Format(time.RFC3339))
	}
}

func kindIcon(name string) string {
	switch {
	case strings.HasSuffix(name, VaultSuffix):
		return "*"
	case strings.HasSuffix(name, ImagesSuffix):
		return "+"
	case strings.HasSuffix(name, ManifestSuffix):
		return "."
	}
	return " "
}

func latestVault(ctx context.Context, t transport.Transport) (string, error) {
	info, err := transport.Latest(ctx, t, VaultSuffix)
	return info.Name, err
}

// formatSize formats bytes into human-readable format
func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.1f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
