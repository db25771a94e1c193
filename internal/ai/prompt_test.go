package ai

import (
	"strings"
	"testing"
)

func TestBuildSystemPromptWithoutProperty(t *testing.T) {
	prompt := BuildSystemPrompt(nil)
	if !strings.Contains(prompt, "No property information is on record.") {
		t.Fatalf("missing placeholder: %s", prompt)
	}
	if !strings.Contains(prompt, "Let me check with the host") {
		t.Fatal("prompt must instruct the hedge phrase")
	}
}

func TestFormatPropertyContext(t *testing.T) {
	details := []byte(`{
		"wifi": {"network": "Loft_Guest", "password": "Welcome1"},
		"check_in": {"time": "3:00 PM"},
		"amenities": ["Washer", "Smart TV"]
	}`)
	out := FormatPropertyContext(&PropertyContext{
		Name:    "Sunny Loft",
		Address: "123 Main St",
		Details: details,
	})

	for _, want := range []string{
		"Property: Sunny Loft",
		"Address: 123 Main St",
		"WIFI:",
		"Network: Loft_Guest",
		"CHECK IN:",
		"AMENITIES:",
		"- Washer",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatPropertyContextBadDetails(t *testing.T) {
	out := FormatPropertyContext(&PropertyContext{Name: "Loft", Details: []byte("{not json")})
	if !strings.Contains(out, "Property: Loft") {
		t.Fatalf("name must survive bad details: %s", out)
	}
}
