package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"model-artefact-registry/internal/adapters/primary/http/dto"
	"model-artefact-registry/internal/core/domain"
)

func outputRecord(w io.Writer, m *domain.ModelRecord, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(dto.ToModelRecordResponse(m))
	}

	fmt.Fprintf(w, "ID:           %s\n", m.ModelID)
	fmt.Fprintf(w, "Name:         %s\n", m.Name)
	if m.Description != nil {
		fmt.Fprintf(w, "Description:  %s\n", *m.Description)
	}
	if m.Tags != nil {
		fmt.Fprintf(w, "Tags:         %s\n", formatTags(m.Tags))
	}
	fmt.Fprintf(w, "Created:      %s\n", m.CreatedAt.Format(dto.TimeFormat))
	fmt.Fprintf(w, "Updated:      %s\n", m.LastUpdatedAt.Format(dto.TimeFormat))
	fmt.Fprintf(w, "Version:      %d\n", m.Version)
	return nil
}

func outputRecords(w io.Writer, models []*domain.ModelRecord, asJSON bool) error {
	if asJSON {
		items := make([]dto.ModelRecordResponse, 0, len(models))
		for _, m := range models {
			items = append(items, dto.ToModelRecordResponse(m))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(models) == 0 {
		fmt.Fprintln(w, "No models found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTAGS\tUPDATED")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			m.ModelID,
			m.Name,
			formatTags(m.Tags),
			m.LastUpdatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	return tw.Flush()
}

// formatTags renders tags as k=v pairs in key order.
func formatTags(t domain.Tags) string {
	if len(t) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, t[k]))
	}
	return strings.Join(pairs, ",")
}
