package sheets

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// GoogleClient implements Client against the Google Sheets API using a
// service-account credentials file.
type GoogleClient struct {
	svc           *sheetsapi.Service
	spreadsheetID string

	mu      sync.Mutex
	ensured map[string]bool
}

// NewGoogleClient authorizes against the Sheets API and probes the
// spreadsheet once so that a misconfigured deployment fails at startup
// rather than on the first operation.
func NewGoogleClient(ctx context.Context, credentialsFile, spreadsheetID string) (*GoogleClient, error) {
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	if _, err := svc.Spreadsheets.Get(spreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return nil, fmt.Errorf("sheets: open spreadsheet %s: %w", spreadsheetID, err)
	}
	return &GoogleClient{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		ensured:       make(map[string]bool),
	}, nil
}

// Worksheet resolves a worksheet by title, creating it and writing the
// header row when it does not exist yet. Creation is checked once per title
// per process.
func (c *GoogleClient) Worksheet(ctx context.Context, title string, headers []string) (Worksheet, error) {
	c.mu.Lock()
	done := c.ensured[title]
	c.mu.Unlock()

	if !done {
		if err := c.ensure(ctx, title, headers); err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.ensured[title] = true
		c.mu.Unlock()
	}
	return &googleWorksheet{svc: c.svc, spreadsheetID: c.spreadsheetID, title: title}, nil
}

func (c *GoogleClient) ensure(ctx context.Context, title string, headers []string) error {
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: list worksheets: %w", err)
	}
	exists := false
	for _, sh := range meta.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			exists = true
			break
		}
	}
	if !exists {
		req := &sheetsapi.BatchUpdateSpreadsheetRequest{
			Requests: []*sheetsapi.Request{{
				AddSheet: &sheetsapi.AddSheetRequest{
					Properties: &sheetsapi.SheetProperties{Title: title},
				},
			}},
		}
		if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("sheets: create worksheet %s: %w", title, err)
		}
	}
	if len(headers) == 0 {
		return nil
	}

	head, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, title+"!1:1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: read header of %s: %w", title, err)
	}
	if len(head.Values) == 0 || len(head.Values[0]) == 0 {
		vr := &sheetsapi.ValueRange{Values: [][]any{toAnyRow(headers)}}
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, title+"!A1", vr).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("sheets: write header of %s: %w", title, err)
		}
	}
	return nil
}

type googleWorksheet struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	title         string
}

func (w *googleWorksheet) Rows(ctx context.Context) ([][]string, error) {
	resp, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, w.title).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(resp.Values))
	for i, r := range resp.Values {
		rows[i] = toStringRow(r)
	}
	return rows, nil
}

func (w *googleWorksheet) Col(ctx context.Context, index int) ([]string, error) {
	letter := columnLetter(index)
	rng := fmt.Sprintf("%s!%s:%s", w.title, letter, letter)
	resp, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(resp.Values))
	for i, r := range resp.Values {
		if len(r) > 0 {
			out[i] = fmt.Sprint(r[0])
		}
	}
	return out, nil
}

func (w *googleWorksheet) Append(ctx context.Context, row []string) error {
	vr := &sheetsapi.ValueRange{Values: [][]any{toAnyRow(row)}}
	_, err := w.svc.Spreadsheets.Values.Append(w.spreadsheetID, w.title, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return err
}

func (w *googleWorksheet) UpdateRow(ctx context.Context, index int, row []string) error {
	vr := &sheetsapi.ValueRange{Values: [][]any{toAnyRow(row)}}
	rng := fmt.Sprintf("%s!A%d", w.title, index)
	_, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	return err
}

func toAnyRow(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

func toStringRow(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func columnLetter(index int) string {
	s := ""
	for index > 0 {
		index--
		s = string(rune('A'+index%26)) + s
		index /= 26
	}
	return s
}
