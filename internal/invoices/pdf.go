package invoices

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/odyssey-erp/odyssey-b2b/internal/retailers"
	"github.com/odyssey-erp/odyssey-b2b/web"
)

// Renderer converts HTML into PDF.
type Renderer interface {
	RenderHTML(ctx context.Context, html []byte) ([]byte, error)
}

// Document is the data passed to the invoice template.
type Document struct {
	Issuer   string
	Invoice  Invoice
	Retailer retailers.Retailer
}

// Printer renders invoices to HTML.
type Printer struct {
	tmpl *template.Template
}

// NewPrinter parses the embedded invoice template. Amounts are formatted for tag.
func NewPrinter(tag language.Tag) (*Printer, error) {
	p := message.NewPrinter(tag)
	funcs := template.FuncMap{
		"money": func(v float64) string {
			return p.Sprint(number.Decimal(v, number.Scale(2)))
		},
		"qty": func(v int) string {
			return p.Sprint(number.Decimal(v))
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("January 2, 2006")
		},
	}
	tmpl, err := template.New("invoice.html").Funcs(funcs).ParseFS(web.Templates, "templates/invoice.html")
	if err != nil {
		return nil, fmt.Errorf("parse invoice template: %w", err)
	}
	return &Printer{tmpl: tmpl}, nil
}

// HTML renders doc.
func (p *Printer) HTML(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("render invoice html: %w", err)
	}
	return buf.Bytes(), nil
}
