package sentiment

import (
	"testing"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		text string
		sign int
	}{
		{
			name: "positive",
			text: "I love this team, you are all great!",
			sign: 1,
		},
		{
			name: "negative",
			text: "This is terrible, I hate it.",
			sign: -1,
		},
		{
			name: "empty",
			text: "",
			sign: 0,
		},
		{
			name: "whitespace only",
			text: " \n\t ",
			sign: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.text)
			switch {
			case tt.sign > 0 && got <= 0:
				t.Errorf("Score(%q) = %v, want positive", tt.text, got)
			case tt.sign < 0 && got >= 0:
				t.Errorf("Score(%q) = %v, want negative", tt.text, got)
			case tt.sign == 0 && got != 0:
				t.Errorf("Score(%q) = %v, want 0", tt.text, got)
			}
		})
	}
}

func TestScoreRange(t *testing.T) {
	texts := []string{
		"I absolutely love love love this!!!",
		"worst disaster ever, completely awful",
		"the report is due on Friday",
	}

	for _, text := range texts {
		if got := Score(text); got < -1 || got > 1 {
			t.Errorf("Score(%q) = %v, outside [-1, 1]", text, got)
		}
	}
}
