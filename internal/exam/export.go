package exam

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const resultSheet = "Results"

// WriteXLSX writes the scored attempt as a spreadsheet: one row per question
// followed by a score summary.
func (r Result) WriteXLSX(w io.Writer, title string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := []any{"#", "Question", "Your answer", "Correct answer", "Result", "Explanation"}
	if err := f.SetSheetRow(resultSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	if err := f.SetCellStyle(resultSheet, "A1", "F1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, qr := range r.Questions {
		outcome := "incorrect"
		if qr.Correct {
			outcome = "correct"
		}
		row := []any{
			i + 1,
			qr.Question.Question,
			option(qr.Question.Options, qr.Selected),
			option(qr.Question.Options, qr.Question.CorrectAnswerIndex),
			outcome,
			qr.Question.Explanation,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(resultSheet, cell, &row); err != nil {
			return fmt.Errorf("write question %d: %w", i+1, err)
		}
	}

	summary, err := excelize.CoordinatesToCellName(1, len(r.Questions)+3)
	if err != nil {
		return err
	}
	footer := []any{"Score", title, fmt.Sprintf("%d/%d", r.Score, r.Total), fmt.Sprintf("%.0f%%", r.Percent())}
	if err := f.SetSheetRow(resultSheet, summary, &footer); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if err := f.SetColWidth(resultSheet, "B", "B", 60); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func option(options []string, i int) string {
	if i < 0 || i >= len(options) {
		return ""
	}
	return options[i]
}
