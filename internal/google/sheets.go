package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"courtbook/internal/models"
)

const slotsSheet = "Slots"

// SheetsService mirrors the slot schedule into a Google spreadsheet that
// the academy staff reads. It is a best-effort mirror: the database stays
// the source of truth.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	rowCache      map[int64]int
	cacheMu       sync.RWMutex
}

func NewSheetsService(credentialsFile, spreadsheetID string) (*SheetsService, error) {
	ctx := context.Background()

	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	client := config.Client(ctx)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	service := &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[int64]int),
	}

	// Warm up cache in background
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := service.WarmUpCache(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "sheets cache warmup failed: %v\n", err)
		}
	}()

	return service, nil
}

// TestConnection проверяет подключение к таблице
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, slotsSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// GetServiceAccountEmail возвращает email сервисного аккаунта
func (s *SheetsService) GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}

	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}

	return creds.ClientEmail, nil
}

// WarmUpCache populates the row index cache by reading the entire ID column.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, slotsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		var id int64
		switch v := row[0].(type) {
		case float64:
			id = int64(v)
		case string:
			fmt.Sscanf(v, "%d", &id)
		}
		if id > 0 {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

func slotRow(slot *models.Slot) []interface{} {
	return []interface{}{
		slot.ID,
		slot.CoachID,
		slot.Date.Format(models.DateFormat),
		slot.Weekday.String(),
		slot.StartTime,
		slot.EndTime,
		slot.Status,
		slot.PlayerID,
		slot.Court,
		slot.Reference,
		slot.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

// UpsertSlotRow rewrites the slot's row, appending when it is not mirrored yet.
func (s *SheetsService) UpsertSlotRow(ctx context.Context, slot *models.Slot) error {
	rowNum, err := s.FindSlotRow(ctx, slot.ID)
	if err != nil {
		return err
	}

	valueRange := &sheets.ValueRange{Values: [][]interface{}{slotRow(slot)}}

	if rowNum == 0 {
		resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, slotsSheet+"!A:A", valueRange).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("append slot row: %v", err)
		}
		if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
			var row int
			if _, err := fmt.Sscanf(afterBang(resp.Updates.UpdatedRange), "A%d", &row); err == nil {
				s.setCachedRow(slot.ID, row)
			}
		}
		return nil
	}

	rangeData := fmt.Sprintf("%s!A%d:K%d", slotsSheet, rowNum, rowNum)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update slot row: %v", err)
	}
	return nil
}

// UpdateSlotStatus rewrites just the status cell.
func (s *SheetsService) UpdateSlotStatus(ctx context.Context, slotID int64, status string) error {
	rowNum, err := s.FindSlotRow(ctx, slotID)
	if err != nil {
		return err
	}
	if rowNum == 0 {
		return fmt.Errorf("slot %d not found in sheet", slotID)
	}

	rangeData := fmt.Sprintf("%s!G%d", slotsSheet, rowNum)
	valueRange := &sheets.ValueRange{Values: [][]interface{}{{status}}}
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update slot status: %v", err)
	}
	return nil
}

// ReplaceScheduleRange clears the sheet and rewrites all slots in [from, to),
// grouped by coach then date.
func (s *SheetsService) ReplaceScheduleRange(ctx context.Context, from, to time.Time, slots []models.Slot, coaches []models.Coach) error {
	coachNames := make(map[int64]string, len(coaches))
	for _, c := range coaches {
		coachNames[c.ID] = c.Name
	}

	sort.Slice(slots, func(i, j int) bool {
		if slots[i].CoachID != slots[j].CoachID {
			return slots[i].CoachID < slots[j].CoachID
		}
		if !slots[i].Date.Equal(slots[j].Date) {
			return slots[i].Date.Before(slots[j].Date)
		}
		return slots[i].StartTime < slots[j].StartTime
	})

	values := [][]interface{}{
		{"ID", "Coach ID", "Date", "Weekday", "Start", "End", "Status", "Player", "Court", "Reference", "Updated", "Coach"},
	}
	for i := range slots {
		row := slotRow(&slots[i])
		row = append(row, coachNames[slots[i].CoachID])
		values = append(values, row)
	}

	if _, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, slotsSheet+"!A:L", &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("clear slots sheet: %v", err)
	}

	rangeData := fmt.Sprintf("%s!A1:L%d", slotsSheet, len(values))
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("rewrite slots sheet: %v", err)
	}

	s.ClearCache()
	return nil
}

// FindSlotRow returns the 1-based row of a slot, 0 when absent.
func (s *SheetsService) FindSlotRow(ctx context.Context, slotID int64) (int, error) {
	if row, ok := s.getCachedRow(slotID); ok {
		return row, nil
	}

	if err := s.WarmUpCache(ctx); err != nil {
		return 0, err
	}

	if row, ok := s.getCachedRow(slotID); ok {
		return row, nil
	}
	return 0, nil
}

func (s *SheetsService) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)
}

func afterBang(rangeRef string) string {
	for i := len(rangeRef) - 1; i >= 0; i-- {
		if rangeRef[i] == '!' {
			return rangeRef[i+1:]
		}
	}
	return rangeRef
}
