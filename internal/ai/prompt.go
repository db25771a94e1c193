package ai

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// PropertyContext is the listing information rendered into the system prompt.
type PropertyContext struct {
	Name    string
	Address string
	Details []byte
}

// BuildSystemPrompt produces the full system instruction for a guest-facing
// reply, embedding whatever property information is on record.
func BuildSystemPrompt(property *PropertyContext) string {
	info := "No property information is on record."
	if property != nil {
		info = FormatPropertyContext(property)
	}
	return fmt.Sprintf(`You are an AI assistant for a short-term rental property. Your job is to help guests with their questions about the property, local area, and their stay.

%s

INSTRUCTIONS:
- Be helpful, friendly, and professional
- Only answer questions you're confident about based on the property information provided
- If you're not sure about something, say "Let me check with the host and get back to you"
- Keep responses concise but informative
- Use a warm, welcoming tone
- For emergencies, always direct guests to call the local emergency number or the emergency contact
- Don't make up information not provided in the property details

RESPONSE FORMAT:
Provide a helpful response to the guest's question. Be natural and conversational.`, info)
}

// FormatPropertyContext flattens the listing record into prompt text. Details
// is free-form JSON, so nested objects and lists render as indented sections
// rather than a fixed template.
func FormatPropertyContext(property *PropertyContext) string {
	var b strings.Builder
	b.WriteString("PROPERTY INFORMATION:\n")
	b.WriteString("Property: " + property.Name + "\n")
	if property.Address != "" {
		b.WriteString("Address: " + property.Address + "\n")
	}

	if len(property.Details) > 0 {
		var details map[string]any
		if err := json.Unmarshal(property.Details, &details); err == nil {
			keys := make([]string, 0, len(details))
			for k := range details {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				b.WriteString("\n" + sectionHeading(k) + ":\n")
				writeDetailValue(&b, details[k], 0)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func sectionHeading(key string) string {
	cleaned := strings.NewReplacer("_", " ", "-", " ").Replace(key)
	return strings.ToUpper(cleaned)
}

func writeDetailValue(b *strings.Builder, v any, depth int) {
	indent := strings.Repeat("  ", depth)
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := val[k]
			switch child.(type) {
			case map[string]any, []any:
				b.WriteString(fmt.Sprintf("%s%s:\n", indent, labelFor(k)))
				writeDetailValue(b, child, depth+1)
			default:
				b.WriteString(fmt.Sprintf("%s%s: %v\n", indent, labelFor(k), child))
			}
		}
	case []any:
		for _, item := range val {
			switch item.(type) {
			case map[string]any, []any:
				b.WriteString(indent + "-\n")
				writeDetailValue(b, item, depth+1)
			default:
				b.WriteString(fmt.Sprintf("%s- %v\n", indent, item))
			}
		}
	default:
		b.WriteString(fmt.Sprintf("%s%v\n", indent, val))
	}
}

func labelFor(key string) string {
	cleaned := strings.NewReplacer("_", " ", "-", " ").Replace(key)
	if cleaned == "" {
		return cleaned
	}
	return strings.ToUpper(cleaned[:1]) + cleaned[1:]
}
