package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/formbox/formbox/config"
)

// Appender mirrors one flat row of strings to an external spreadsheet.
type Appender interface {
	Append(ctx context.Context, row []string) error
}

type Client struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewClient builds a Google Sheets client from a service account key file.
// Rows are appended after the last non-empty row of the first sheet.
func NewClient(ctx context.Context, cfg config.Config) (*Client, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(cfg.SheetCredentials),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets.new_service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: cfg.SheetID}, nil
}

func (c *Client) Append(ctx context.Context, row []string) error {
	values := make([]any, len(row))
	for i, cell := range row {
		values[i] = cell
	}

	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, "A1", &sheets.ValueRange{Values: [][]any{values}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets.append: %w", err)
	}
	return nil
}
