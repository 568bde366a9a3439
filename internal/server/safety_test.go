package server

import "testing"

func TestCrisisDetectorFlagsKnownPhrases(t *testing.T) {
	detector := NewCrisisDetector()

	flagged := []string{
		"I just want to end my life",
		"sometimes I think about suicide",
		"I feel suicidal tonight",
		"I want to KILL MYSELF",
		"honestly i'm done with life",
		"there is no reason to live anymore",
		"I keep thinking about self-harm",
		"I keep thinking about self harm",
		"i want to hurt myself again",
		"I can't go on like this",
	}
	for _, text := range flagged {
		if !detector.Flags(text) {
			t.Fatalf("expected crisis flag for %q", text)
		}
	}
}

func TestCrisisDetectorIgnoresOrdinaryText(t *testing.T) {
	detector := NewCrisisDetector()

	clean := []string{
		"",
		"   ",
		"today was a pretty good day at work",
		"I was angry at my boss but we talked it through",
		"the movie was to die for", // close but not a tracked phrase
		"I killed it at the gym today",
	}
	for _, text := range clean {
		if detector.Flags(text) {
			t.Fatalf("did not expect crisis flag for %q", text)
		}
	}
}

func TestIsGibberish(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", true},
		{"whitespace only", "   \n\t ", true},
		{"normal sentence", "today I felt really happy about my presentation", false},
		{"keyboard mash", "asdfgh qwrtpsd zxcvbn dfghjk", true},
		{"digit runs", "123456 98765 43210", true},
		{"symbol noise", "!!!??? ###$$$ %%%^^^", true},
		{"repeated characters", "aaaaaaaa bbbbbbbb cccccccc", true},
		{"mixed mostly real", "I scored 10 points today and felt proud of it", false},
		{"short tokens pass", "ok so it was a day", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isGibberish(tc.text); got != tc.want {
				t.Fatalf("isGibberish(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestIsSuspiciousWord(t *testing.T) {
	suspicious := []string{"x9z8q7", "!!!abc", "aaaaaaab", "zxcvb", "cafés"}
	for _, word := range suspicious {
		if !isSuspiciousWord(word) {
			t.Fatalf("expected %q to be suspicious", word)
		}
	}

	fine := []string{"happy", "day", "presentation", "a", "it"}
	for _, word := range fine {
		if isSuspiciousWord(word) {
			t.Fatalf("did not expect %q to be suspicious", word)
		}
	}
}
