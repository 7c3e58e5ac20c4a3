// Package sheets mirrors daily profit rollups into a Google Sheet the
// pharmacy owner can share with their accountant.
package sheets

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/karimdiab/saydaly/internal/domain/models"
)

const (
	dateLayout   = "2006-01-02"
	rollupsRange = "Rollups!A:F"
)

// Exporter is implemented by sinks able to receive daily rollup rows.
type Exporter interface {
	AppendDailyReport(ctx context.Context, pharmacyID string, report models.DailyReport) error
}

// GoogleSheetExporter appends rollup rows through the official Sheets API.
type GoogleSheetExporter struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetExporter builds a Sheets-backed exporter.
func NewGoogleSheetExporter(ctx context.Context, credentialsPath, spreadsheetID string, logger *zap.Logger) (*GoogleSheetExporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(credentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetExporter{
		service:       service,
		spreadsheetID: spreadsheetID,
		logger:        logger,
	}, nil
}

// AppendDailyReport appends one rollup row to the rollups range.
func (e *GoogleSheetExporter) AppendDailyReport(ctx context.Context, pharmacyID string, report models.DailyReport) error {
	payload := &sheetsapi.ValueRange{Values: [][]interface{}{{
		report.Date.Format(dateLayout),
		pharmacyID,
		report.Income,
		report.Expenses,
		report.Withdrawals,
		report.Profit,
	}}}

	call := e.service.Spreadsheets.Values.Append(e.spreadsheetID, rollupsRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append rollup row: %w", err)
	}

	e.logger.Debug("rollup row appended to sheet",
		zap.String("pharmacy_id", pharmacyID),
		zap.String("date", report.Date.Format(dateLayout)))
	return nil
}
