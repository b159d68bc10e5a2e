package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"courtbook/internal/domain"
	"courtbook/internal/models"
)

// Exporter writes slot bookings for a date range into an XLSX file that
// branch managers hand to the front desk.
type Exporter struct {
	repo domain.Repository
	path string
	log  zerolog.Logger
}

func NewExporter(repo domain.Repository, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{
		repo: repo,
		path: path,
		log:  logger.With().Str("component", "export").Logger(),
	}
}

// ExportRange создает Excel файл со слотами за период [from, to)
func (e *Exporter) ExportRange(ctx context.Context, from, to time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	slots, err := e.repo.GetSlotsByDateRange(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("error getting slots: %v", err)
	}

	coaches := e.repo.GetCoaches()
	coachNames := make(map[int64]string, len(coaches))
	for _, c := range coaches {
		coachNames[c.ID] = c.Name
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Schedule"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		from.Format(models.DateFormat), to.Format(models.DateFormat)))

	headers := []string{"Date", "Weekday", "Coach", "Start", "End", "Status", "Player", "Court", "Reference"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	row := 3
	for i := range slots {
		s := &slots[i]
		if s.Status == models.SlotStatusCancelled {
			continue
		}
		values := []interface{}{
			s.Date.Format(models.DateFormat),
			s.Weekday.String(),
			coachNames[s.CoachID],
			s.StartTime,
			s.EndTime,
			s.Status,
			s.PlayerID,
			s.Court,
			s.Reference,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
		row++
	}

	_ = f.SetColWidth(sheetName, "A", "C", 18)
	_ = f.SetColWidth(sheetName, "D", "I", 14)
	_ = f.MergeCell(sheetName, "A1", "I1")

	style, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", style)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("schedule_%s_to_%s.xlsx",
		from.Format(models.DateFormat), to.Format(models.DateFormat))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.log.Info().Str("file_path", filePath).Msg("Excel file created")
	return filePath, nil
}
