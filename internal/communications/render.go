package communications

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/odyssey-erp/odyssey-b2b/internal/retailers"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

// Fields are the values available to message templates.
type Fields struct {
	RetailerName string
	RetailerCode string
	Balance      string
	CreditLimit  string
}

// FieldsFor builds template values for a retailer.
func FieldsFor(r retailers.Retailer) Fields {
	return Fields{
		RetailerName: r.Name,
		RetailerCode: r.Code,
		Balance:      strconv.FormatFloat(r.Balance, 'f', 2, 64),
		CreditLimit:  strconv.FormatFloat(r.CreditLimit, 'f', 2, 64),
	}
}

// Content is a parsed subject and body pair.
type Content struct {
	subject *template.Template
	body    *template.Template
}

// Parse compiles subject and body. Unknown fields fail at parse time through a
// dry run against sample values.
func Parse(subject, body string) (Content, error) {
	if strings.TrimSpace(body) == "" {
		return Content{}, fmt.Errorf("%w: body is required", shared.ErrValidation)
	}
	subj, err := template.New("subject").Option("missingkey=error").Parse(subject)
	if err != nil {
		return Content{}, fmt.Errorf("%w: subject: %v", shared.ErrValidation, err)
	}
	b, err := template.New("body").Option("missingkey=error").Parse(body)
	if err != nil {
		return Content{}, fmt.Errorf("%w: body: %v", shared.ErrValidation, err)
	}
	c := Content{subject: subj, body: b}
	if _, _, err := c.Render(Fields{}); err != nil {
		return Content{}, err
	}
	return c, nil
}

// Render executes the templates for one recipient.
func (c Content) Render(f Fields) (string, string, error) {
	var subj, body bytes.Buffer
	if err := c.subject.Execute(&subj, f); err != nil {
		return "", "", fmt.Errorf("%w: subject: %v", shared.ErrValidation, err)
	}
	if err := c.body.Execute(&body, f); err != nil {
		return "", "", fmt.Errorf("%w: body: %v", shared.ErrValidation, err)
	}
	return strings.TrimSpace(subj.String()), body.String(), nil
}

// RecipientFor returns the address used on channel, or "" when the retailer has none.
func RecipientFor(r retailers.Retailer, ch Channel) string {
	switch ch {
	case ChannelEmail:
		return r.Email
	case ChannelSMS:
		return r.Phone
	case ChannelPush:
		return r.Code
	default:
		return strconv.FormatInt(r.ID, 10)
	}
}

func uniqueChannels(in []Channel) []Channel {
	seen := make(map[Channel]struct{}, len(in))
	out := make([]Channel, 0, len(in))
	for _, ch := range in {
		if _, ok := seen[ch]; ok {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	return out
}
