package main

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

func formatCount(n uint64) string {
	return printer.Sprintf("%d", n)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return printer.Sprintf("%d B", n)
	}
	value := float64(n)
	suffixes := []string{"KiB", "MiB", "GiB", "TiB"}
	i := -1
	for value >= unit && i < len(suffixes)-1 {
		value /= unit
		i++
	}
	return printer.Sprintf("%.1f %s", value, suffixes[i])
}

func formatSeconds(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(10 * time.Millisecond)
	return d.String()
}

func formatFPS(fps float64) string {
	return printer.Sprintf("%.1f fps", fps)
}

// titleLabel turns identifiers like "cleaning_up" into "Cleaning Up".
func titleLabel(value string) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, "_", " "))
	if value == "" {
		return "Unknown"
	}
	return cases.Title(language.English).String(value)
}
