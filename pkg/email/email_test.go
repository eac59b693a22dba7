package email

import "testing"

func TestValid(t *testing.T) {
	valid := []string{"jane@example.com", "a.b+c@sub.domain.org"}
	for _, s := range valid {
		if !Valid(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}

	invalid := []string{"", "plain", "no@tld", "two@@example.com", "spaces in@example.com"}
	for _, s := range invalid {
		if Valid(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestParseAddress(t *testing.T) {
	t.Run("name with address", func(t *testing.T) {
		name, addr := ParseAddress("Jane Doe <jane@example.com>")
		if name != "Jane Doe" || addr != "jane@example.com" {
			t.Fatalf("got name=%q addr=%q", name, addr)
		}
	})

	t.Run("bare address", func(t *testing.T) {
		name, addr := ParseAddress("  jane@example.com  ")
		if name != "" || addr != "jane@example.com" {
			t.Fatalf("got name=%q addr=%q", name, addr)
		}
	})

	t.Run("unclosed bracket treated as bare", func(t *testing.T) {
		name, addr := ParseAddress("Jane <jane@example.com")
		if name != "" || addr != "Jane <jane@example.com" {
			t.Fatalf("got name=%q addr=%q", name, addr)
		}
	})
}
