package forms

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractHTMLFields lists the inputs of an HTML form with their visible labels.
// The result is a hint for the model, which sees only plain text otherwise.
func ExtractHTMLFields(htmlBody string) ([]Field, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	labels := map[string]string{}
	doc.Find("label[for]").Each(func(_ int, sel *goquery.Selection) {
		if id, ok := sel.Attr("for"); ok {
			labels[id] = normalizeSpace(sel.Text())
		}
	})

	var fields []Field
	doc.Find("input, select, textarea").Each(func(_ int, sel *goquery.Selection) {
		inputType := strings.ToLower(sel.AttrOr("type", "text"))
		switch inputType {
		case "hidden", "submit", "button", "reset", "image":
			return
		}

		id := sel.AttrOr("id", "")
		name := sel.AttrOr("name", id)
		label := labels[id]
		if label == "" {
			label = normalizeSpace(sel.Closest("label").Text())
		}
		if label == "" {
			label = sel.AttrOr("aria-label", sel.AttrOr("placeholder", name))
		}
		if label == "" && name == "" {
			return
		}

		f := Field{
			ID:          firstNonEmpty(name, id, label),
			Label:       label,
			Type:        inputType,
			Required:    sel.AttrOr("required", "-") != "-" || sel.AttrOr("aria-required", "") == "true",
			Placeholder: sel.AttrOr("placeholder", ""),
		}
		switch goquery.NodeName(sel) {
		case "select":
			f.Type = "select"
			sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
				if v := normalizeSpace(opt.Text()); v != "" {
					f.Options = append(f.Options, v)
				}
			})
		case "textarea":
			f.Type = "textarea"
		}
		if legend := normalizeSpace(sel.Closest("fieldset").Find("legend").First().Text()); legend != "" {
			f.Section = legend
		}
		fields = append(fields, f)
	})

	// Radio groups share a name; keep one field per group.
	seen := map[string]bool{}
	out := fields[:0]
	for _, f := range fields {
		if f.Type == "radio" || f.Type == "checkbox" {
			if seen[f.ID] {
				continue
			}
			seen[f.ID] = true
		}
		out = append(out, f)
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
