package scanning

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// dateFormats are tried in order when the model did not return YYYY-MM-DD
var dateFormats = []string{
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// rawReceipt mirrors ReceiptData with pointers so missing fields can be told apart from zero values
type rawReceipt struct {
	Merchant *string        `json:"merchant"`
	Date     *string        `json:"date"`
	Total    *float64       `json:"total"`
	Items    *[]rawLineItem `json:"items"`
}

type rawLineItem struct {
	Item     *string  `json:"item"`
	Quantity *float64 `json:"quantity"`
	Price    *float64 `json:"price"`
}

// stripCodeFences removes a surrounding markdown code block if the model added one
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// parseReceiptJSON strictly parses a structuring response into ReceiptData
func parseReceiptJSON(text string) (*ReceiptData, error) {
	text = stripCodeFences(text)
	if text == "" {
		return nil, errors.New("empty response")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()

	var raw rawReceipt
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected content after JSON object")
	}

	switch {
	case raw.Merchant == nil:
		return nil, errors.New(`missing required field "merchant"`)
	case raw.Date == nil:
		return nil, errors.New(`missing required field "date"`)
	case raw.Total == nil:
		return nil, errors.New(`missing required field "total"`)
	case raw.Items == nil:
		return nil, errors.New(`missing required field "items"`)
	}

	data := &ReceiptData{
		Merchant:  strings.TrimSpace(*raw.Merchant),
		Date:      normalizeDate(*raw.Date),
		Total:     *raw.Total,
		LineItems: make([]LineItem, 0, len(*raw.Items)),
	}

	for i, item := range *raw.Items {
		switch {
		case item.Item == nil:
			return nil, fmt.Errorf(`item %d: missing required field "item"`, i)
		case item.Quantity == nil:
			return nil, fmt.Errorf(`item %d: missing required field "quantity"`, i)
		case item.Price == nil:
			return nil, fmt.Errorf(`item %d: missing required field "price"`, i)
		}
		data.LineItems = append(data.LineItems, LineItem{
			Item:     strings.TrimSpace(*item.Item),
			Quantity: *item.Quantity,
			Price:    *item.Price,
		})
	}

	return data, nil
}

// normalizeDate converts recognizable dates to YYYY-MM-DD and leaves anything else untouched
func normalizeDate(date string) string {
	date = strings.TrimSpace(date)
	if d, err := time.Parse("2006-01-02", date); err == nil {
		return d.Format("2006-01-02")
	}
	for _, format := range dateFormats {
		if d, err := time.Parse(format, date); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return date
}
