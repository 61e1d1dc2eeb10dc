package respond

import (
	"strings"
	"testing"
)

func TestFormatNoResults(t *testing.T) {
	got := Format("hospitals on mars", nil)
	if got != NoResultsMessage {
		t.Errorf("Format() = %q, want %q", got, NoResultsMessage)
	}
	if NoResultsMessage != "I couldn't find any hospitals matching your query. Could you please provide more details or specify a city?" {
		t.Errorf("clarification message changed: %q", NoResultsMessage)
	}
}

func TestFormatConfirmation(t *testing.T) {
	results := []Hospital{{Name: "fortis hospital", Address: "sector 62, noida", City: "noida"}}

	got := Format("Is Fortis Hospital in my network?", results)
	want := "Yes, Fortis Hospital in Noida is part of your network. It's located at sector 62, noida."
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
	if !strings.HasPrefix(got, "Yes, Fortis Hospital in Noida is part of your network.") {
		t.Errorf("confirmation prefix missing: %q", got)
	}
}

func TestFormatConfirmationUsesFirstResultOnly(t *testing.T) {
	results := []Hospital{
		{Name: "apollo hospital", Address: "greams road", City: "chennai"},
		{Name: "fortis malar", Address: "adyar", City: "chennai"},
	}

	got := Format("please verify apollo", results)
	if strings.Contains(got, "Fortis") {
		t.Errorf("confirmation should mention only the first result: %q", got)
	}
}

func TestFormatSingle(t *testing.T) {
	results := []Hospital{{Name: "manipal hospital", Address: "old airport road", City: "bengaluru"}}

	got := Format("manipal in bengaluru", results)
	want := "I found Manipal Hospital in Bengaluru, located at old airport road."
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestFormatMultiple(t *testing.T) {
	results := []Hospital{
		{Name: "apollo hospital", Address: "greams road", City: "chennai"},
		{Name: "fortis malar", Address: "adyar", City: "chennai"},
		{Name: "miot hospitals", Address: "manapakkam", City: "chennai"},
	}

	got := Format("hospitals around chennai", results)

	if !strings.HasPrefix(got, "Here are 3 hospitals around Chennai:") {
		t.Fatalf("unexpected header: %q", got)
	}

	want := "Here are 3 hospitals around Chennai:\n\n" +
		"1. Apollo Hospital, located at greams road, Chennai.\n" +
		"2. Fortis Malar, located at adyar, Chennai.\n" +
		"3. Miot Hospitals, located at manapakkam, Chennai."
	if got != want {
		t.Errorf("Format() =\n%s\nwant\n%s", got, want)
	}

	lines := strings.Split(got, "\n")
	if len(lines) != 5 {
		t.Errorf("got %d lines, want header, blank line and three results", len(lines))
	}
}

func TestFormatMultipleWithoutCity(t *testing.T) {
	results := []Hospital{
		{Name: "a clinic", Address: "x"},
		{Name: "b clinic", Address: "y"},
	}

	got := Format("clinics near me", results)
	if !strings.HasPrefix(got, "Here are 2 hospitals around your area:") {
		t.Errorf("unexpected header: %q", got)
	}
}

func TestFormatDeterministic(t *testing.T) {
	results := []Hospital{
		{Name: "apollo hospital", Address: "greams road", City: "chennai"},
		{Name: "fortis malar", Address: "adyar", City: "chennai"},
	}

	first := Format("hospitals near chennai", results)
	for i := 0; i < 10; i++ {
		if got := Format("hospitals near chennai", results); got != first {
			t.Fatalf("run %d: %q != %q", i, got, first)
		}
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"apollo hospital", "Apollo Hospital"},
		{"NEW DELHI", "New Delhi"},
		{"st. john's", "St. John'S"},
		{"sector-62 noida", "Sector-62 Noida"},
		{"ab日cd", "Ab日Cd"},
		{"ÜRÜN clinic", "Ürün Clinic"},
		{"दिल्ली apollo", "दिल्ली Apollo"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := TitleCase(tt.in); got != tt.want {
				t.Errorf("TitleCase(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
