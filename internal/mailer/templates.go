package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"sort"
	"strings"
	texttemplate "text/template"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Template names.
const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplateOwnerAlert        = "owner_alert"
)

// Shop identifies the sender in rendered mail.
type Shop struct {
	Name       string
	URL        string
	OwnerEmail string
}

type templateData struct {
	Shop     Shop
	Order    *domain.Order
	Shipping *domain.Address
}

var funcs = map[string]any{
	"money": FormatMoney,
	"attrs": formatAttributes,
}

// Renderer turns orders into messages.
type Renderer struct {
	html *htmltemplate.Template
	text *texttemplate.Template
	shop Shop
}

// NewRenderer parses the embedded templates.
func NewRenderer(shop Shop) (*Renderer, error) {
	html, err := htmltemplate.New("mail").Funcs(funcs).ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	text, err := texttemplate.New("mail").Funcs(funcs).ParseFS(templateFS, "templates/*.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	return &Renderer{html: html, text: text, shop: shop}, nil
}

// OrderConfirmation renders the customer's receipt.
func (r *Renderer) OrderConfirmation(o *domain.Order) (*Message, error) {
	data := templateData{Shop: r.shop, Order: o, Shipping: o.ShippingAddress()}

	html, err := r.renderHTML("order_confirmation.html", data)
	if err != nil {
		return nil, err
	}
	text, err := r.renderText("order_confirmation.txt", data)
	if err != nil {
		return nil, err
	}
	return &Message{
		To:       o.CustomerEmail,
		ReplyTo:  r.shop.OwnerEmail,
		Subject:  fmt.Sprintf("%s: order %s confirmed", r.shop.Name, shortID(o.ID)),
		HTML:     html,
		Text:     text,
		Template: TemplateOrderConfirmation,
	}, nil
}

// OwnerAlert renders the shop owner's new-order notice.
func (r *Renderer) OwnerAlert(o *domain.Order) (*Message, error) {
	html, err := r.renderHTML("owner_alert.html", templateData{Shop: r.shop, Order: o})
	if err != nil {
		return nil, err
	}
	return &Message{
		To:       r.shop.OwnerEmail,
		ReplyTo:  o.CustomerEmail,
		Subject:  fmt.Sprintf("New order %s (%s)", shortID(o.ID), FormatMoney(o.TotalAmount, o.Currency)),
		HTML:     html,
		Template: TemplateOwnerAlert,
	}, nil
}

func (r *Renderer) renderHTML(name string, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := r.html.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (r *Renderer) renderText(name string, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := r.text.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// FormatMoney renders minor units as "12.50 CAD".
func FormatMoney(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign, amount = "-", -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, currency)
}

func formatAttributes(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, domain.VariationAttribute{Key: k, Value: attrs[k]}.Display())
	}
	return strings.Join(parts, ", ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}
