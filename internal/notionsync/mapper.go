package notionsync

import (
	"time"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the Notion transactions database.
const (
	PropDescription     = "Description"
	PropDate            = "Date"
	PropAmount          = "Amount"
	PropAvailableCredit = "Available Credit"
	PropCategory        = "Category"
	PropSubcategory     = "Subcategory"
	PropSubscription    = "Subscription"
	PropFingerprint     = "Fingerprint"
	PropUser            = "User"
	PropDocumentID      = "Document ID"
)

// TransactionToNotionProperties converts a transaction to page properties.
// Absent values are left out rather than written as zero.
func TransactionToNotionProperties(userID string, tx domain.Transaction) notionapi.Properties {
	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: richText(tx.ActivityDescription),
		},
		PropFingerprint: notionapi.RichTextProperty{
			RichText: richText(tx.Fingerprint),
		},
		PropUser: notionapi.RichTextProperty{
			RichText: richText(userID),
		},
		PropSubscription: notionapi.CheckboxProperty{
			Checkbox: tx.IsSubscription,
		},
	}

	if tx.TransactionDate != nil {
		d := notionapi.Date(tx.TransactionDate.In(time.UTC))
		props[PropDate] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &d},
		}
	}

	if tx.AmountSpent.Valid {
		props[PropAmount] = notionapi.NumberProperty{
			Number: tx.AmountSpent.Decimal.InexactFloat64(),
		}
	}

	// Balance reconstructed from the opening available credit.
	if tx.AvailableCredit.Valid {
		props[PropAvailableCredit] = notionapi.NumberProperty{
			Number: tx.AvailableCredit.Decimal.InexactFloat64(),
		}
	}

	if tx.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Category},
		}
	}

	if tx.SubCategory != "" {
		props[PropSubcategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.SubCategory},
		}
	}

	if tx.DocumentID != "" {
		props[PropDocumentID] = notionapi.RichTextProperty{
			RichText: richText(tx.DocumentID),
		}
	}

	return props
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

// extractFingerprint returns the Fingerprint property of page, or "".
func extractFingerprint(page notionapi.Page) string {
	if prop, ok := page.Properties[PropFingerprint]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok {
			if len(rt.RichText) > 0 {
				return rt.RichText[0].PlainText
			}
		}
	}
	return ""
}
