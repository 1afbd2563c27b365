package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// catalogEntry is the exercise catalog shape served to MCP clients.
type catalogEntry struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	TopAngle    float64       `json:"top_angle"`
	BottomAngle float64       `json:"bottom_angle"`
	Hysteresis  float64       `json:"hysteresis"`
	Rules       []catalogRule `json:"rules"`
}

type catalogRule struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Phases      []string `json:"phases,omitempty"`
	MessageCode string   `json:"message_code"`
}

// catalog flattens the registry into the wire shape.
func (h *handlers) catalog() []catalogEntry {
	profiles := h.registry.List()
	out := make([]catalogEntry, len(profiles))
	for i, p := range profiles {
		entry := catalogEntry{
			ID:          p.ID,
			Name:        p.Name,
			TopAngle:    p.Thresholds.TopAngle,
			BottomAngle: p.Thresholds.BottomAngle,
			Hysteresis:  p.Thresholds.Hysteresis,
		}
		for _, r := range p.Rules {
			cr := catalogRule{ID: string(r.ID), Kind: string(r.Kind), MessageCode: r.MessageCode}
			for _, ph := range r.Phases {
				cr.Phases = append(cr.Phases, string(ph))
			}
			entry.Rules = append(entry.Rules, cr)
		}
		out[i] = entry
	}
	return out
}

func (h *handlers) recentSessions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -14)

	sessions, err := h.ds.QuerySessions(ctx, start, end, "")
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(sessions)
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

func (h *handlers) exerciseCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(h.catalog())
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
