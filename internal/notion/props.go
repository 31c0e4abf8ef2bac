package notion

import "strings"

// Read helpers over a page/webhook property map (property name -> raw
// property object). They return zero values rather than errors; callers
// decide whether an absent field is a skip or a configuration problem.

// Title returns the plain text of the first title property in the map.
func Title(props map[string]any) string {
	for _, raw := range props {
		v := DecodeValue(raw)
		if v.Kind == KindTitle {
			return v.Text
		}
	}
	return ""
}

// PlainText reads a rich_text (or legacy text) property as trimmed plain text.
func PlainText(props map[string]any, name string) string {
	v := DecodeValue(props[name])
	if v.Kind != KindRichText {
		return ""
	}
	return strings.TrimSpace(v.Text)
}

// TitleText reads a named title property as trimmed plain text.
func TitleText(props map[string]any, name string) string {
	v := DecodeValue(props[name])
	if v.Kind != KindTitle {
		return ""
	}
	return strings.TrimSpace(v.Text)
}

// Checkbox reads a checkbox property; absent or malformed reads as false.
func Checkbox(props map[string]any, name string) bool {
	v := DecodeValue(props[name])
	return v.Kind == KindCheckbox && v.Text == "true"
}

// CheckboxByKey matches a checkbox property by property id or name. Page
// objects key properties by name but config may reference them by id.
func CheckboxByKey(props map[string]any, key string) bool {
	if key == "" {
		return false
	}
	for name, raw := range props {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if typ, _ := obj["type"].(string); typ != "checkbox" {
			continue
		}
		id, _ := obj["id"].(string)
		if id == key || name == key {
			b, _ := obj["checkbox"].(bool)
			return b
		}
	}
	return false
}

// SelectName reads the selected option name of a select property.
func SelectName(props map[string]any, name string) string {
	v := DecodeValue(props[name])
	if v.Kind != KindSelect {
		return ""
	}
	return v.Text
}

// StatusName reads the current option name of a status property.
func StatusName(props map[string]any, name string) string {
	v := DecodeValue(props[name])
	if v.Kind != KindStatus {
		return ""
	}
	return v.Text
}

// FirstRelationID returns the first related page id of a relation property,
// or "" when the property is missing, not a relation, or empty.
func FirstRelationID(props map[string]any, name string) string {
	obj, ok := props[name].(map[string]any)
	if !ok {
		return ""
	}
	if typ, _ := obj["type"].(string); typ != "relation" {
		return ""
	}
	rels, ok := obj["relation"].([]any)
	if !ok || len(rels) == 0 {
		return ""
	}
	first, ok := rels[0].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := first["id"].(string)
	return id
}

// PropertyID returns the property id recorded on a named property object.
func PropertyID(props map[string]any, name string) string {
	obj, ok := props[name].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := obj["id"].(string)
	return id
}

// Write-side property builders. Each returns the JSON shape the Notion API
// expects for the given property type.

func TitleProp(text string) map[string]any {
	return map[string]any{
		"title": []any{map[string]any{"text": map[string]any{"content": text}}},
	}
}

func RichTextProp(text string) map[string]any {
	return map[string]any{
		"rich_text": []any{map[string]any{"text": map[string]any{"content": text}}},
	}
}

func RelationProp(ids ...string) map[string]any {
	rels := make([]any, 0, len(ids))
	for _, id := range ids {
		rels = append(rels, map[string]any{"id": id})
	}
	return map[string]any{"relation": rels}
}

func MultiSelectProp(names []string) map[string]any {
	opts := make([]any, 0, len(names))
	for _, name := range names {
		opts = append(opts, map[string]any{"name": name})
	}
	return map[string]any{"multi_select": opts}
}

func NumberProp(n float64) map[string]any {
	return map[string]any{"number": n}
}

func DateProp(iso string) map[string]any {
	return map[string]any{"date": map[string]any{"start": iso}}
}

// URLProp returns an explicit null when the url is empty so an existing
// value can be cleared.
func URLProp(url string) map[string]any {
	if url == "" {
		return map[string]any{"url": nil}
	}
	return map[string]any{"url": url}
}
