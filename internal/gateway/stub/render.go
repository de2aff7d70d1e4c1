package stub

import (
	"encoding/xml"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/billingportal/internal/gateway/domain"
)

// RenderPDF lays out a one page rendition of the document.
func RenderPDF(doc domain.Document) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, documentTitle(doc.DocumentType), props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Number: "+doc.DocumentNumber, props.Text{Top: 0}),
			text.New("Date: "+doc.Date, props.Text{Top: 5}),
			text.New("Status: "+doc.Status, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Customer", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(doc.CustomerID, props.Text{Top: 5, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(8, "Total", props.Text{Style: fontstyle.Bold, Size: 11}),
		text.NewCol(4, gatewayAmount(doc), props.Text{Style: fontstyle.Bold, Size: 11, Align: align.Right}),
	)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pdf: %w", err)
	}
	return out.GetBytes(), nil
}

type xmlDocument struct {
	XMLName        xml.Name `xml:"document"`
	ID             string   `xml:"id,attr"`
	DocumentType   string   `xml:"type"`
	DocumentNumber string   `xml:"number"`
	Date           string   `xml:"date"`
	Amount         string   `xml:"amount"`
	Status         string   `xml:"status"`
	CustomerID     string   `xml:"customer_id"`
}

func RenderXML(doc domain.Document) ([]byte, error) {
	body, err := xml.MarshalIndent(xmlDocument{
		ID:             doc.ID,
		DocumentType:   doc.DocumentType,
		DocumentNumber: doc.DocumentNumber,
		Date:           doc.Date,
		Amount:         domain.AmountText(doc.Amount),
		Status:         doc.Status,
		CustomerID:     doc.CustomerID,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal xml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func gatewayAmount(doc domain.Document) string {
	if amount := domain.AmountText(doc.Amount); amount != "" {
		return amount
	}
	return "-"
}

func documentTitle(documentType string) string {
	switch documentType {
	case "credit_note":
		return "Credit note"
	case "debit_note":
		return "Debit note"
	case "":
		return "Document"
	default:
		return "Invoice"
	}
}
