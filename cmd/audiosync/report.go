package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/RyanBlaney/audiosync/syncpoint"
	"github.com/RyanBlaney/audiosync/syncpoint/config"
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#2E86DE")
	accentColor  = lipgloss.Color("#FFA500")
	mutedColor   = lipgloss.Color("#888888")
	textColor    = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A40000"))

	keyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)

	graphStyle = lipgloss.NewStyle().
			Foreground(primaryColor)

	triggerStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

func printVersion(version string) {
	fmt.Println(titleStyle.Render("audiosync"))
	fmt.Printf("%s %s\n", keyStyle.Render("Version:"), valueStyle.Render(version))
}

func printError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("Error:"), message)
}

// sparkline draws bars in [0, 1] as block characters
func sparkline(bars []float64) string {
	var sb strings.Builder
	top := len(sparkBlocks) - 1
	for _, v := range bars {
		v = min(max(v, 0), 1)
		sb.WriteRune(sparkBlocks[int(v*float64(top)+0.5)])
	}
	return sb.String()
}

// triggerRuler marks the columns holding a trigger
func triggerRuler(result *syncpoint.Result, channel, width int) string {
	ruler := []rune(strings.Repeat(" ", width))
	frames := result.Frames()
	if frames == 0 || width <= 0 {
		return string(ruler)
	}

	for _, trigger := range result.Channels[channel].Triggers {
		col := min(trigger.Frame*width/frames, width-1)
		ruler[col] = '^'
	}
	return string(ruler)
}

func formatTime(d time.Duration) string {
	minutes := int(d / time.Minute)
	seconds := (d % time.Minute).Seconds()
	return fmt.Sprintf("%d:%06.3f", minutes, seconds)
}

func keyValue(key, value string) string {
	return fmt.Sprintf("%s %s", keyStyle.Render(key), valueStyle.Render(value))
}

// renderReport formats one analysed file for the terminal
func renderReport(path string, result *syncpoint.Result, width int) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(path))
	sb.WriteString("\n")
	sb.WriteString(keyValue("Duration:", formatTime(result.Duration)))
	sb.WriteString("  ")
	sb.WriteString(keyValue("Frames:", fmt.Sprintf("%d @ %.1f/s", result.Frames(), result.FrameRate)))
	sb.WriteString("  ")
	sb.WriteString(keyValue("Window:", fmt.Sprintf("%d/%d", result.Settings.ShortWindowSize, result.Settings.WindowSize)))
	sb.WriteString("  ")
	sb.WriteString(keyValue("Cooldown:", fmt.Sprintf("%gs", result.Settings.CooldownDuration)))
	sb.WriteString("\n")

	for ch := range result.Channels {
		stats := result.Stats(ch)

		var body strings.Builder
		body.WriteString(graphStyle.Render(sparkline(result.Bars(ch, width))))
		body.WriteString("\n")
		body.WriteString(triggerStyle.Render(triggerRuler(result, ch, width)))
		body.WriteString("\n")
		body.WriteString(keyValue("Peak:", fmt.Sprintf("%.4g at frame %d", stats.Max, stats.MaxAt)))
		body.WriteString("  ")
		body.WriteString(keyValue("Mean:", fmt.Sprintf("%.4g", stats.Mean)))

		triggers := result.Channels[ch].Triggers
		if len(triggers) == 0 {
			body.WriteString("\n")
			body.WriteString(keyStyle.Render("No sync points detected"))
		}
		for i, trigger := range triggers {
			body.WriteString("\n")
			body.WriteString(fmt.Sprintf("%s %s %s",
				triggerStyle.Render(fmt.Sprintf("#%d", i+1)),
				valueStyle.Render(formatTime(trigger.Time)),
				keyStyle.Render(fmt.Sprintf("frame %d, divergence %.4g", trigger.Frame, trigger.Divergence)),
			))
		}

		sb.WriteString(keyStyle.Render(fmt.Sprintf("Channel %d", ch)))
		sb.WriteString("\n")
		sb.WriteString(boxStyle.Render(body.String()))
		sb.WriteString("\n")
	}

	return sb.String()
}

// fileReport is the JSON summary of one analysed file
type fileReport struct {
	File      string           `json:"file"`
	Duration  time.Duration    `json:"duration"`
	FrameRate float64          `json:"frame_rate"`
	Frames    int              `json:"frames"`
	Settings  config.Settings  `json:"settings"`
	Channels  []channelSummary `json:"channels"`
}

type channelSummary struct {
	Channel  int                   `json:"channel"`
	Stats    syncpoint.SeriesStats `json:"stats"`
	Triggers []syncpoint.Trigger   `json:"triggers"`
}

func newFileReport(path string, result *syncpoint.Result) fileReport {
	report := fileReport{
		File:      path,
		Duration:  result.Duration,
		FrameRate: result.FrameRate,
		Frames:    result.Frames(),
		Settings:  result.Settings,
		Channels:  make([]channelSummary, len(result.Channels)),
	}

	for ch, channel := range result.Channels {
		triggers := channel.Triggers
		if triggers == nil {
			triggers = []syncpoint.Trigger{}
		}
		report.Channels[ch] = channelSummary{
			Channel:  ch,
			Stats:    result.Stats(ch),
			Triggers: triggers,
		}
	}

	return report
}
