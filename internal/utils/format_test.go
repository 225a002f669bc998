package utils

import "testing"

func TestValidateEmail(t *testing.T) {
	cases := map[string]bool{
		"ana@example.org":       true,
		"first.last+tag@a.co":   true,
		"ana@example":           false,
		"ana.example.org":       false,
		"ana@@example.org":      false,
		"":                      false,
		"ana silva@example.org": false,
	}
	for in, want := range cases {
		if got := ValidateEmail(in); got != want {
			t.Errorf("ValidateEmail(%q) = %v, want %v", in, got, want)
		}
	}
	if got := NormalizeEmail("  Ana@Example.ORG "); got != "ana@example.org" {
		t.Errorf("NormalizeEmail: got %q", got)
	}
}

func TestCPF(t *testing.T) {
	if got := NormalizeCPF("529.982.247-25"); got != "52998224725" {
		t.Fatalf("NormalizeCPF: got %q", got)
	}
	if got := FormatCPF("52998224725"); got != "529.982.247-25" {
		t.Fatalf("FormatCPF: got %q", got)
	}
	if got := FormatCPF(FormatCPF("52998224725")); got != "529.982.247-25" {
		t.Fatalf("FormatCPF must be stable on formatted input, got %q", got)
	}
	if got := FormatCPF("1234"); got != "1234" {
		t.Fatalf("short CPF must be returned unchanged, got %q", got)
	}

	valid := []string{"52998224725", "529.982.247-25", "11144477735"}
	for _, c := range valid {
		if !ValidateCPF(c) {
			t.Errorf("expected %q to be valid", c)
		}
	}
	invalid := []string{
		"52998224724",  // wrong second digit
		"52998224715",  // wrong first digit
		"5299822472",   // 10 digits
		"529982247250", // 12 digits
		"11111111111",  // repeated digit
		"",
	}
	for _, c := range invalid {
		if ValidateCPF(c) {
			t.Errorf("expected %q to be invalid", c)
		}
	}
}

func TestFormatFileSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 Bytes"},
		{1, "1 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1024*1024 - 1, "1024 KB"},
		{1024 * 1024, "1 MB"},
		{5 * 1024 * 1024 * 1024, "5 GB"},
		{1234567, "1.18 MB"},
	}
	for _, c := range cases {
		if got := FormatFileSize(c.in); got != c.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}
