package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/fretlog/internal/models"
)

func (h *handlers) overview(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	exercises, err := h.ds.Overview(ctx)
	if err != nil {
		return nil, err
	}

	inactive, err := h.ds.Inactive(ctx)
	if err != nil {
		h.log.Warn("overview: inactive query failed", "error", err)
	}

	var total int64
	for _, ex := range exercises {
		total += ex.Stats.TotalSec
	}

	summary := map[string]any{
		"exercises":          exercises,
		"total_practice_sec": total,
		"total_practice":     models.FormatClock(total),
		"inactive":           inactive,
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
