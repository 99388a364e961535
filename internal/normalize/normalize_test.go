package normalize

import "testing"

func TestEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Ana@Example.ORG", "ana@example.org"},
		{"trims whitespace", "  ana@example.org \n", "ana@example.org"},
		{"keeps plus addressing", "ana+libros@example.org", "ana+libros@example.org"},
		{"keeps dots", "a.na@example.org", "a.na@example.org"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Email(tt.input); got != tt.want {
				t.Errorf("Email(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"strips accents", "García Márquez", "garcia marquez"},
		{"lowercases", "BORGES", "borges"},
		{"collapses whitespace", "  El   Aleph \t", "el aleph"},
		{"already normalized", "cien anos de soledad", "cien anos de soledad"},
		{"tilde n folds", "Años", "anos"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.input); got != tt.want {
				t.Errorf("Key(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestKey_AccentedAndPlainCollide(t *testing.T) {
	if Key("Márquez") != Key("Marquez") {
		t.Error("accented and plain forms should produce the same key")
	}
}
