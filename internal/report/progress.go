// Package report renders a user's progress log as an xlsx workbook.
package report

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-learn/internal/learning"
)

const (
	ProgressSheet = "Progress"
	SummarySheet  = "Summary"

	pageSize = 100
)

// Source lists progress records. learning.Store satisfies it.
type Source interface {
	ListProgress(ctx context.Context, f learning.ProgressFilter) (learning.Page[learning.ProgressRecord], error)
}

var progressHeader = []any{"ID", "Entity Type", "Entity ID", "Status", "Score", "Updated At"}

// Summary aggregates the exported records.
type Summary struct {
	Records      int
	Completed    int
	Attempts     int
	AverageScore float64 // mean score of quiz attempts, 0 without attempts
}

// CollectProgress pages through every record of userID, newest first.
func CollectProgress(ctx context.Context, src Source, userID string) ([]learning.ProgressRecord, error) {
	var out []learning.ProgressRecord
	for page := 1; ; page++ {
		p, err := src.ListProgress(ctx, learning.ProgressFilter{
			ListParams: learning.ListParams{Page: page, PageSize: pageSize},
			UserID:     userID,
		})
		if err != nil {
			return nil, fmt.Errorf("listing progress page %d: %w", page, err)
		}
		out = append(out, p.Items...)
		if len(p.Items) < p.PageSize || len(out) >= p.Total {
			return out, nil
		}
	}
}

// Summarize computes totals over records.
func Summarize(records []learning.ProgressRecord) Summary {
	s := Summary{Records: len(records)}
	var sum float64
	for _, r := range records {
		if r.Completed {
			s.Completed++
		}
		if r.ActivityID != nil && r.Score != nil {
			s.Attempts++
			sum += *r.Score
		}
	}
	if s.Attempts > 0 {
		s.AverageScore = sum / float64(s.Attempts)
	}
	return s
}

func status(r learning.ProgressRecord) string {
	switch {
	case r.Completed:
		return learning.StatusCompleted
	case r.IsUnlockSentinel():
		return "unlocked"
	default:
		return learning.StatusInProgress
	}
}

// WriteProgress exports every progress record of userID to w as xlsx and
// returns the number of records written.
func WriteProgress(ctx context.Context, w io.Writer, src Source, userID string) (int, error) {
	records, err := CollectProgress(ctx, src, userID)
	if err != nil {
		return 0, err
	}

	f, err := Workbook(userID, records)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("writing workbook: %w", err)
	}
	return len(records), nil
}

// Workbook builds the progress workbook for records.
func Workbook(userID string, records []learning.ProgressRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ProgressSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming sheet: %w", err)
	}
	if err := fillProgress(f, records); err != nil {
		f.Close()
		return nil, err
	}
	if err := fillSummary(f, userID, Summarize(records)); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func fillProgress(f *excelize.File, records []learning.ProgressRecord) error {
	if err := f.SetSheetRow(ProgressSheet, "A1", &progressHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetCellStyle(ProgressSheet, "A1", "F1", bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	if err := f.SetColWidth(ProgressSheet, "B", "F", 16); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		kind, id := "", ""
		if target, ok := r.Target(); ok {
			kind, id = string(target.Kind), strconv.FormatInt(target.ID, 10)
		}
		score := ""
		if r.Score != nil {
			score = strconv.FormatFloat(*r.Score, 'f', 2, 64)
		}
		row := []any{r.ID, kind, id, status(r), score, r.UpdatedAt.UTC().Format(time.RFC3339)}
		if err := f.SetSheetRow(ProgressSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return nil
}

func fillSummary(f *excelize.File, userID string, s Summary) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}
	rows := [][]any{
		{"User", userID},
		{"Records", s.Records},
		{"Completed", s.Completed},
		{"Quiz Attempts", s.Attempts},
		{"Average Score", strconv.FormatFloat(s.AverageScore, 'f', 2, 64)},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("writing summary row %d: %w", i+1, err)
		}
	}
	return nil
}
