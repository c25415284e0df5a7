package sheets

// google.go implements core.SheetClient on the Google Sheets API v4.
//
// Data row i (zero-based) lives on sheet row i+2: row 1 is the header.
// Worksheets are addressed by index; titles and numeric sheet ids are looked
// up once and cached until a call against them fails.
//
// Writes use USER_ENTERED so prices land as numbers. Any cell that is not a
// plain decimal is sent with a leading apostrophe, which Sheets strips and
// which keeps the text from being read as a formula, date or number.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/JonMunkholm/shopsheet/internal/core"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Scope is the OAuth scope needed for reading and writing sheets.
const Scope = sheets.SpreadsheetsScope

type worksheet struct {
	spreadsheetID string
	title         string
	sheetID       int64
}

// Google is a core.SheetClient backed by the Sheets API. It is safe for
// concurrent use.
type Google struct {
	svc *sheets.Service

	mu    sync.Mutex
	cache map[core.SheetRef]worksheet
}

// NewGoogle creates a client. Pass option.WithCredentialsFile or
// option.WithCredentialsJSON for service-account auth.
func NewGoogle(ctx context.Context, opts ...option.ClientOption) (*Google, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Google{svc: svc, cache: make(map[core.SheetRef]worksheet)}, nil
}

// FetchRows returns every row of the worksheet, header first, as displayed
// in the sheet.
func (g *Google) FetchRows(ctx context.Context, ref core.SheetRef) ([][]string, error) {
	ws, err := g.worksheet(ctx, ref)
	if err != nil {
		return nil, err
	}

	resp, err := g.svc.Spreadsheets.Values.Get(ws.spreadsheetID, quoteTitle(ws.title)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		g.forget(ref)
		return nil, classify("fetch rows", err)
	}

	rows := make([][]string, len(resp.Values))
	for i, r := range resp.Values {
		row := make([]string, len(r))
		for j, cell := range r {
			row[j] = fmt.Sprint(cell)
		}
		rows[i] = row
	}
	slog.DebugContext(ctx, "sheet rows fetched", "spreadsheet", ws.spreadsheetID, "worksheet", ws.title, "rows", len(rows))
	return rows, nil
}

// AppendRow adds a row after the last data row.
func (g *Google) AppendRow(ctx context.Context, ref core.SheetRef, values []string) (core.AppendResult, error) {
	ws, err := g.worksheet(ctx, ref)
	if err != nil {
		return core.AppendResult{}, err
	}

	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(values)}}
	resp, err := g.svc.Spreadsheets.Values.Append(ws.spreadsheetID, quoteTitle(ws.title), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		g.forget(ref)
		return core.AppendResult{}, classify("append row", err)
	}
	if resp.Updates == nil {
		return core.AppendResult{}, fmt.Errorf("append row: %w: response has no updated range", core.ErrConnectivity)
	}

	idx, err := dataIndexFromRange(resp.Updates.UpdatedRange)
	if err != nil {
		return core.AppendResult{}, fmt.Errorf("append row: %w", err)
	}
	return core.AppendResult{RowIndex: idx}, nil
}

// UpdateRow overwrites data row index starting at column A.
func (g *Google) UpdateRow(ctx context.Context, ref core.SheetRef, index int, values []string) error {
	if index < 0 {
		return fmt.Errorf("update row: negative index %d", index)
	}
	ws, err := g.worksheet(ctx, ref)
	if err != nil {
		return err
	}

	rng := fmt.Sprintf("%s!A%d", quoteTitle(ws.title), index+2)
	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(values)}}
	_, err = g.svc.Spreadsheets.Values.Update(ws.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		g.forget(ref)
		return classify("update row", err)
	}
	return nil
}

// DeleteRow removes data row index; rows below move up.
func (g *Google) DeleteRow(ctx context.Context, ref core.SheetRef, index int) error {
	if index < 0 {
		return fmt.Errorf("delete row: negative index %d", index)
	}
	ws, err := g.worksheet(ctx, ref)
	if err != nil {
		return err
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:         ws.sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(index + 1),
					EndIndex:        int64(index + 2),
					ForceSendFields: []string{"SheetId"},
				},
			},
		}},
	}
	_, err = g.svc.Spreadsheets.BatchUpdate(ws.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		g.forget(ref)
		return classify("delete row", err)
	}
	return nil
}

func (g *Google) worksheet(ctx context.Context, ref core.SheetRef) (worksheet, error) {
	g.mu.Lock()
	ws, ok := g.cache[ref]
	g.mu.Unlock()
	if ok {
		return ws, nil
	}

	id, err := SpreadsheetID(ref.URL)
	if err != nil {
		return worksheet{}, err
	}

	ss, err := g.svc.Spreadsheets.Get(id).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return worksheet{}, classify("open spreadsheet", err)
	}
	if ref.Worksheet < 0 || ref.Worksheet >= len(ss.Sheets) {
		return worksheet{}, fmt.Errorf("%w: worksheet %d requested, spreadsheet has %d",
			ErrInvalidRef, ref.Worksheet, len(ss.Sheets))
	}
	props := ss.Sheets[ref.Worksheet].Properties
	if props == nil {
		return worksheet{}, fmt.Errorf("%w: worksheet %d has no properties", ErrInvalidRef, ref.Worksheet)
	}

	ws = worksheet{spreadsheetID: id, title: props.Title, sheetID: props.SheetId}
	g.mu.Lock()
	g.cache[ref] = ws
	g.mu.Unlock()
	return ws, nil
}

func (g *Google) forget(ref core.SheetRef) {
	g.mu.Lock()
	delete(g.cache, ref)
	g.mu.Unlock()
}

// classify wraps API errors in core's failure categories.
func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w: %s", op, core.ErrAuth, gerr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w: spreadsheet not found or not shared with this account", op, core.ErrAuth)
		default:
			return fmt.Errorf("%s: %w: %s (HTTP %d)", op, core.ErrConnectivity, gerr.Message, gerr.Code)
		}
	}
	if strings.Contains(err.Error(), "oauth2") {
		return fmt.Errorf("%s: %w: %w", op, core.ErrAuth, err)
	}
	return fmt.Errorf("%s: %w: %w", op, core.ErrConnectivity, err)
}

func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// plainDecimal matches numbers Sheets stores without loss: no leading zeros,
// no exponent, at most 15 digits.
var plainDecimal = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?$`)

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = userEntered(v)
	}
	return cells
}

func userEntered(v string) string {
	if v == "" {
		return v
	}
	if plainDecimal.MatchString(v) && len(strings.Trim(strings.Replace(v, ".", "", 1), "-")) <= 15 {
		return v
	}
	return "'" + v
}

// dataIndexFromRange turns an A1 range like "'Products'!A5:J5" into the
// zero-based data row index (3).
func dataIndexFromRange(rng string) (int, error) {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		rng = rng[i+1:]
	}
	if i := strings.Index(rng, ":"); i >= 0 {
		rng = rng[:i]
	}
	digits := strings.TrimLeft(rng, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz$")
	row, err := strconv.Atoi(strings.TrimPrefix(digits, "$"))
	if err != nil || row < 2 {
		return 0, fmt.Errorf("unexpected updated range %q", rng)
	}
	return row - 2, nil
}
