package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// Board palette.
var (
	colorBorder = lipgloss.Color("#2a3850")
	colorMuted  = lipgloss.Color("#8a93a3")
	colorHigh   = lipgloss.Color("#e53935")
	colorMedium = lipgloss.Color("#FFC107")
	colorLow    = lipgloss.Color("#8BC34A")
	colorTag    = lipgloss.Color("#2196F3")
)

const columnWidth = 30

var (
	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1).
			Width(columnWidth)
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	tagStyle   = lipgloss.NewStyle().Foreground(colorTag)
	cardStyle  = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(colorBorder).
			Width(columnWidth - 2)
)

// priorityStyle colors a priority badge.
func priorityStyle(p types.Priority) lipgloss.Style {
	switch p {
	case types.PriorityHigh:
		return lipgloss.NewStyle().Foreground(colorHigh).Bold(true)
	case types.PriorityLow:
		return lipgloss.NewStyle().Foreground(colorLow)
	default:
		return lipgloss.NewStyle().Foreground(colorMedium)
	}
}

// renderBoard lays the buckets out side by side, one card per record.
func renderBoard(snap types.Snapshot, tags types.TagRegistry) string {
	cols := make([]string, 0, len(snap.Buckets))
	for _, b := range snap.Buckets {
		cols = append(cols, renderColumn(b, snap.Ordered(b.ID), tags))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func renderColumn(b types.Bucket, records []types.Record, tags types.TagRegistry) string {
	parts := []string{
		titleStyle.Render(fmt.Sprintf("%s (%d)", b.Title, len(records))),
	}
	if b.Description != "" {
		parts = append(parts, mutedStyle.Render(b.Description))
	}
	for _, r := range records {
		parts = append(parts, renderCard(r, tags))
	}
	return columnStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func renderCard(r types.Record, tags types.TagRegistry) string {
	lines := []string{
		titleStyle.Render(r.Name) + " " + priorityStyle(r.Priority).Render(string(r.Priority)),
		mutedStyle.Render(r.Phone),
		strings.Join(r.Products, ", "),
	}
	if r.Value != "" {
		lines = append(lines, r.Value)
	}
	if r.DemoDate != "" {
		lines = append(lines, mutedStyle.Render("demo "+r.DemoDate))
	}
	if len(r.Tags) > 0 {
		labels := make([]string, len(r.Tags))
		for i, id := range r.Tags {
			t, _ := tags.Resolve(id)
			labels[i] = "#" + t.Label
		}
		lines = append(lines, tagStyle.Render(strings.Join(labels, " ")))
	}
	lines = append(lines, mutedStyle.Render(shortID(r.ID)))
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// shortID abbreviates a record id for display.
func shortID(id string) string {
	if len(id) <= 13 {
		return id
	}
	return id[:13]
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError(fmt.Errorf("marshal JSON: %w", err))
	}
	fmt.Fprintln(w, string(out))
	return nil
}

// writeRecord prints a record in human-readable form.
func writeRecord(w io.Writer, bucketID string, r types.Record, tags types.TagRegistry) {
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "%-14s %s\n", label+":", value)
		}
	}
	field("ID", r.ID)
	field("Name", r.Name)
	field("Phone", r.Phone)
	field("Bucket", bucketID)
	field("Priority", string(r.Priority))
	field("Products", strings.Join(r.Products, ", "))
	field("Value", r.Value)
	field("Payment plan", r.PaymentPlan)
	field("Last contact", r.LastContact)
	field("Demo date", r.DemoDate)
	field("Delivery date", r.DeliveryDate)
	if len(r.Tags) > 0 {
		labels := make([]string, len(r.Tags))
		for i, id := range r.Tags {
			t, _ := tags.Resolve(id)
			labels[i] = t.Label
		}
		field("Tags", strings.Join(labels, ", "))
	}
	field("Notes", r.Notes)
	field("Created", r.CreatedAt.Format("2006-01-02 15:04:05"))
	field("Updated", r.UpdatedAt.Format("2006-01-02 15:04:05"))
}
