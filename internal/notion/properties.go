package notion

import (
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/zombor/receipt-pipeline/internal/scanning"
)

// MaxRichTextLength is the longest text Notion accepts in a single rich text object
const MaxRichTextLength = 2000

// Property names in the target database
const (
	PropTitle    = "Title"
	PropMerchant = "Merchant"
	PropDate     = "Date"
	PropTotal    = "Total"
	PropItems    = "Items"
)

// truncate cuts s to at most max characters
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func textValue(s string) []notionapi.RichText {
	return []notionapi.RichText{{Text: &notionapi.Text{Content: truncate(s, MaxRichTextLength)}}}
}

// FlattenLineItems renders the items one per line as "quantity x item @ price",
// truncated to MaxRichTextLength characters
func FlattenLineItems(items []scanning.LineItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%g x %s @ %.2f", item.Quantity, item.Item, item.Price))
	}
	return truncate(strings.Join(lines, "\n"), MaxRichTextLength)
}

// pageTitle synthesizes the page title from merchant and date
func pageTitle(record *scanning.ReceiptData) string {
	switch {
	case record.Merchant != "" && record.Date != "":
		return record.Merchant + " - " + record.Date
	case record.Merchant != "":
		return record.Merchant
	case record.Date != "":
		return "Receipt - " + record.Date
	default:
		return "Receipt"
	}
}

// buildProperties maps a receipt onto the database property schema
func buildProperties(record *scanning.ReceiptData) notionapi.Properties {
	props := notionapi.Properties{
		PropTitle:    notionapi.TitleProperty{Title: textValue(pageTitle(record))},
		PropMerchant: notionapi.RichTextProperty{RichText: textValue(record.Merchant)},
		PropTotal:    notionapi.NumberProperty{Number: record.Total},
		PropItems: notionapi.RichTextProperty{RichText: []notionapi.RichText{
			{Text: &notionapi.Text{Content: FlattenLineItems(record.LineItems)}},
		}},
	}

	// Notion rejects date properties that are not ISO 8601
	if d, err := time.Parse("2006-01-02", record.Date); err == nil {
		start := notionapi.Date(d)
		props[PropDate] = notionapi.DateProperty{Date: &notionapi.DateObject{Start: &start}}
	}
	return props
}
