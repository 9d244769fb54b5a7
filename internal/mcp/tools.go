package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/fretlog/internal/models"
)

var errUnknownExercise = errors.New("unknown exercise")

// defaultTimeRange returns start/end, defaulting to the last days days.
func defaultTimeRange(startStr, endStr string, days int) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -days)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.ParseInLocation("2006-01-02", s, time.Local)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List every exercise in folder order with its folder, link, note, personal record (highest BPM), session count, total time, average BPM, last played date and whether it is inactive."),
	mcp.WithString("folder", mcp.Description("Only list exercises in this folder (case-insensitive)")),
)

var toolGetExerciseStats = mcp.NewTool("get_exercise_stats",
	mcp.WithDescription("Statistics for one exercise: sessions, total practice time, average BPM, personal record, last played and inactivity."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise ID or name")),
)

var toolGetExerciseChart = mcp.NewTool("get_exercise_chart",
	mcp.WithDescription("BPM progress for one exercise: one point per day with the highest BPM played that day, oldest first. Days without a BPM are left out."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise ID or name")),
)

var toolGetDailySummary = mcp.NewTool("get_daily_summary",
	mcp.WithDescription("Total practice time and every session of one calendar day."),
	mcp.WithString("date", mcp.Description("Day (YYYY-MM-DD). Defaults to today.")),
)

var toolGetInactiveExercises = mcp.NewTool("get_inactive_exercises",
	mcp.WithDescription("Exercises not practiced for at least the configured number of days, including those never practiced."),
)

var toolGetPracticeHistory = mcp.NewTool("get_practice_history",
	mcp.WithDescription("Practice sessions grouped by day, most recent first, with per-day totals."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("exercise", mcp.Description("Only include sessions of this exercise (ID or name)")),
)

// --- Result shapes ---

type historyEntry struct {
	Exercise    string `json:"exercise"`
	Duration    string `json:"duration"`
	DurationSec int64  `json:"duration_sec"`
	BPM         *int   `json:"bpm,omitempty"`
}

type historyDay struct {
	Date     string         `json:"date"`
	Total    string         `json:"total"`
	TotalSec int64          `json:"total_sec"`
	Entries  []historyEntry `json:"entries"`
}

// toHistoryDay renders a day with exercise names. A non-nil only keeps that
// exercise's entries and recomputes the total.
func toHistoryDay(d models.DailySummary, names map[uuid.UUID]string, only *uuid.UUID) historyDay {
	out := historyDay{Date: d.Date.Format("2006-01-02"), Entries: []historyEntry{}}
	for _, e := range d.Entries {
		if only != nil && e.ExerciseID != *only {
			continue
		}
		name, ok := names[e.ExerciseID]
		if !ok {
			name = e.ExerciseID.String()
		}
		out.Entries = append(out.Entries, historyEntry{
			Exercise:    name,
			Duration:    models.FormatClock(e.DurationSec),
			DurationSec: e.DurationSec,
			BPM:         e.BPM,
		})
		out.TotalSec += e.DurationSec
	}
	out.Total = models.FormatClock(out.TotalSec)
	return out
}

func exerciseNames(list []models.ExerciseOverview) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(list))
	for _, ex := range list {
		names[ex.ID] = ex.Name
	}
	return names
}

// resolveExercise finds an exercise by ID, exact name, or a unique partial
// name match.
func resolveExercise(list []models.ExerciseOverview, ref string) (models.ExerciseOverview, error) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		for _, ex := range list {
			if ex.ID == id {
				return ex, nil
			}
		}
		return models.ExerciseOverview{}, fmt.Errorf("%w: %s", errUnknownExercise, ref)
	}

	var partial []models.ExerciseOverview
	for _, ex := range list {
		if strings.EqualFold(ex.Name, ref) {
			return ex, nil
		}
		if strings.Contains(strings.ToLower(ex.Name), strings.ToLower(ref)) {
			partial = append(partial, ex)
		}
	}
	switch len(partial) {
	case 1:
		return partial[0], nil
	case 0:
		return models.ExerciseOverview{}, fmt.Errorf("%w: %q", errUnknownExercise, ref)
	}
	matches := make([]string, len(partial))
	for i, ex := range partial {
		matches[i] = ex.Name
	}
	return models.ExerciseOverview{}, fmt.Errorf("%q is ambiguous: %s", ref, strings.Join(matches, ", "))
}

func jsonResult(v any) *mcp.CallToolResult {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed")
	}
	return result
}

// --- Tool handlers ---

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := h.ds.Overview(ctx)
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	folder := strings.TrimSpace(req.GetString("folder", ""))
	out := []models.ExerciseOverview{}
	for _, ex := range list {
		if folder == "" || strings.EqualFold(ex.FolderName, folder) {
			out = append(out, ex)
		}
	}
	return jsonResult(out), nil
}

// lookup resolves the required exercise argument.
func (h *handlers) lookup(ctx context.Context, req mcp.CallToolRequest) (models.ExerciseOverview, *mcp.CallToolResult) {
	ref, err := req.RequireString("exercise")
	if err != nil {
		return models.ExerciseOverview{}, mcp.NewToolResultError("exercise parameter is required")
	}
	list, err := h.ds.Overview(ctx)
	if err != nil {
		h.log.Error("mcp exercise lookup", "error", err)
		return models.ExerciseOverview{}, mcp.NewToolResultError("query failed: " + err.Error())
	}
	ex, err := resolveExercise(list, ref)
	if err != nil {
		return models.ExerciseOverview{}, mcp.NewToolResultError(err.Error())
	}
	return ex, nil
}

func (h *handlers) getExerciseStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ex, res := h.lookup(ctx, req)
	if res != nil {
		return res, nil
	}
	stats, err := h.ds.ExerciseStats(ctx, ex.ID)
	if err != nil {
		h.log.Error("mcp get_exercise_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(map[string]any{
		"exercise":   ex.Name,
		"folder":     ex.FolderName,
		"stats":      stats,
		"total_time": models.FormatClock(stats.TotalSec),
	}), nil
}

func (h *handlers) getExerciseChart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ex, res := h.lookup(ctx, req)
	if res != nil {
		return res, nil
	}
	points, err := h.ds.Chart(ctx, ex.ID)
	if err != nil {
		h.log.Error("mcp get_exercise_chart", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if points == nil {
		points = []models.ChartPoint{}
	}
	return jsonResult(map[string]any{"exercise": ex.Name, "points": points}), nil
}

func (h *handlers) getDailySummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	day := time.Now()
	if s := req.GetString("date", ""); s != "" {
		t, err := parseFlexTime(s)
		if err != nil {
			return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
		}
		day = t
	}

	sum, err := h.ds.DailySummary(ctx, day)
	if err != nil {
		h.log.Error("mcp get_daily_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	list, err := h.ds.Overview(ctx)
	if err != nil {
		h.log.Error("mcp get_daily_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(toHistoryDay(sum, exerciseNames(list), nil)), nil
}

func (h *handlers) getInactiveExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := h.ds.Inactive(ctx)
	if err != nil {
		h.log.Error("mcp get_inactive_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if out == nil {
		out = []models.Exercise{}
	}
	return jsonResult(out), nil
}

func (h *handlers) getPracticeHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 30)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	list, err := h.ds.Overview(ctx)
	if err != nil {
		h.log.Error("mcp get_practice_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	var only *uuid.UUID
	if ref := req.GetString("exercise", ""); ref != "" {
		ex, err := resolveExercise(list, ref)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		only = &ex.ID
	}

	days, err := h.ds.History(ctx)
	if err != nil {
		h.log.Error("mcp get_practice_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	names := exerciseNames(list)
	// Days come back in the server's zone; compare calendar dates.
	from, to := start.Format("2006-01-02"), end.Format("2006-01-02")
	out := []historyDay{}
	for _, d := range days {
		if day := d.Date.Format("2006-01-02"); day < from || day > to {
			continue
		}
		hd := toHistoryDay(d, names, only)
		if len(hd.Entries) > 0 {
			out = append(out, hd)
		}
	}
	return jsonResult(out), nil
}
