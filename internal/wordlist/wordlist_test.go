package wordlist_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/lexivox/internal/wordlist"
)

const fruit = `
group: fruit
words:
  - id: apple
    english: " apple "
    description: a round fruit that grows on trees
    translation: Apfel
  - id: banana
    english: banana
    description: a long yellow fruit
    group: tropical
`

const tools = `
words:
  - id: hammer
    english: hammer
    description: you hit nails with it
    group: tools
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadFromReader(t *testing.T) {
	t.Parallel()
	words, err := wordlist.LoadFromReader(strings.NewReader(fruit), "fruit.yaml")
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("got %d words, want 2", len(words))
	}
	apple := words[0]
	if apple.Target != "apple" || apple.Prompt != "a round fruit that grows on trees" ||
		apple.Translation != "Apfel" || apple.GroupID != "fruit" {
		t.Errorf("apple = %+v", apple)
	}
	if words[1].GroupID != "tropical" {
		t.Errorf("banana group = %q, want tropical", words[1].GroupID)
	}
}

func TestLoadFromReader_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, input, want string
	}{
		{"empty", "", "is empty"},
		{"no words", "group: x\n", "no words"},
		{"unknown field", "words:\n  - id: a\n    english: a\n    colour: red\n", "decode"},
		{"missing id", "words:\n  - english: a\n", "id is required"},
		{"missing english", "words:\n  - id: a\n", "english is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := wordlist.LoadFromReader(strings.NewReader(tt.input), "test.yaml")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	paths := []string{writeFile(t, dir, "fruit.yaml", fruit), writeFile(t, dir, "tools.yaml", tools)}

	all, err := wordlist.Load(paths, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[2].ID != "hammer" {
		t.Errorf("all = %+v", all)
	}
	if got := wordlist.Groups(all); strings.Join(got, ",") != "fruit,tropical,tools" {
		t.Errorf("Groups = %v", got)
	}

	toolsOnly, err := wordlist.Load(paths, "Tools")
	if err != nil {
		t.Fatal(err)
	}
	if len(toolsOnly) != 1 || toolsOnly[0].ID != "hammer" {
		t.Errorf("group filter = %+v", toolsOnly)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "fruit.yaml", fruit)

	if _, err := wordlist.Load(nil, ""); err == nil {
		t.Error("no files: expected error")
	}
	if _, err := wordlist.Load([]string{filepath.Join(dir, "missing.yaml")}, ""); err == nil {
		t.Error("missing file: expected error")
	}
	_, err := wordlist.Load([]string{p, p}, "")
	if err == nil || !strings.Contains(err.Error(), `duplicate word id "apple"`) {
		t.Errorf("duplicate: err = %v", err)
	}
}
