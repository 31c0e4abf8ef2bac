package notion

import "strconv"

// ValueKind tags a decoded property value.
type ValueKind int

const (
	KindUnknown ValueKind = iota
	KindStatus
	KindSelect
	KindMultiSelect
	KindTitle
	KindRichText
	KindNumber
	KindCheckbox
)

// Value is a decoded Notion property. Scalar kinds carry Text; multi-select
// carries List. Unknown property shapes decode to KindUnknown and are never
// treated as a match by predicate evaluation.
type Value struct {
	Kind ValueKind
	Text string
	List []string
}

// DecodeValue turns a raw property object (as unmarshaled from webhook or
// API JSON) into a Value. Numbers and checkboxes stringify so predicate
// comparison stays uniform.
func DecodeValue(raw any) Value {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Value{Kind: KindUnknown}
	}
	typ, _ := obj["type"].(string)
	switch typ {
	case "status":
		if name := nestedName(obj["status"]); name != "" {
			return Value{Kind: KindStatus, Text: name}
		}
		return Value{Kind: KindUnknown}
	case "select":
		if name := nestedName(obj["select"]); name != "" {
			return Value{Kind: KindSelect, Text: name}
		}
		return Value{Kind: KindUnknown}
	case "multi_select":
		items, ok := obj["multi_select"].([]any)
		if !ok {
			return Value{Kind: KindUnknown}
		}
		names := make([]string, 0, len(items))
		for _, it := range items {
			names = append(names, nestedName(it))
		}
		return Value{Kind: KindMultiSelect, List: names}
	case "title":
		items, ok := obj["title"].([]any)
		if !ok {
			return Value{Kind: KindUnknown}
		}
		return Value{Kind: KindTitle, Text: joinPlainText(items)}
	case "rich_text", "text":
		items, ok := obj["rich_text"].([]any)
		if !ok {
			return Value{Kind: KindUnknown}
		}
		return Value{Kind: KindRichText, Text: joinPlainText(items)}
	case "number":
		n, ok := obj["number"].(float64)
		if !ok {
			return Value{Kind: KindUnknown}
		}
		return Value{Kind: KindNumber, Text: strconv.FormatFloat(n, 'f', -1, 64)}
	case "checkbox":
		b, ok := obj["checkbox"].(bool)
		if !ok {
			return Value{Kind: KindUnknown}
		}
		return Value{Kind: KindCheckbox, Text: strconv.FormatBool(b)}
	default:
		return Value{Kind: KindUnknown}
	}
}

func nestedName(raw any) string {
	obj, ok := raw.(map[string]any)
	if !ok {
		return ""
	}
	name, _ := obj["name"].(string)
	return name
}

// joinPlainText concatenates the plain text of title / rich_text fragments,
// falling back to text.content when plain_text is absent (webhook payloads
// sometimes omit it).
func joinPlainText(items []any) string {
	var out string
	for _, it := range items {
		frag, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if pt, _ := frag["plain_text"].(string); pt != "" {
			out += pt
			continue
		}
		if txt, ok := frag["text"].(map[string]any); ok {
			if content, _ := txt["content"].(string); content != "" {
				out += content
			}
		}
	}
	return out
}
