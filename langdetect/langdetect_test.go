package langdetect

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"The student is doing very well in mathematics this semester.", "en"},
		{"El estudiante está progresando mucho en matemáticas este semestre.", "es"},
		{"L'élève fait de grands progrès en mathématiques ce semestre.", "fr"},
		{"", "auto"},
		{"   ", "auto"},
	}

	for _, tt := range tests {
		code, _ := Detect(tt.text)
		if code != tt.want {
			t.Errorf("Detect(%.30q) = %s, want %s", tt.text, code, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	for _, code := range Supported() {
		if err := Validate(code); err != nil {
			t.Errorf("Validate(%q): %v", code, err)
		}
	}
	if err := Validate("xx-bogus!"); err == nil {
		t.Error("expected error for malformed code")
	}
	if err := Validate("ja"); err == nil {
		t.Error("expected error for unsupported code")
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("es"); got != "Spanish" {
		t.Errorf("DisplayName(es) = %q", got)
	}
	if got := DisplayName("zh"); got != "Chinese" {
		t.Errorf("DisplayName(zh) = %q", got)
	}
}
