// Package wordlist loads vocabulary from YAML files.
//
// A word list file holds an optional default group and a list of words:
//
//	group: fruit
//	words:
//	  - id: apple
//	    english: apple
//	    description: a round fruit that grows on trees
//	    translation: Apfel
//
// Words without their own group inherit the file's group.
package wordlist

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/lexivox/pkg/types"
)

// File is the on-disk layout of a word list.
type File struct {
	Group string       `yaml:"group"`
	Words []types.Word `yaml:"words"`
}

// Load reads every file in paths and returns the words of group, in file
// order. An empty group returns all words. Word IDs must be unique across
// files.
func Load(paths []string, group string) ([]types.Word, error) {
	if len(paths) == 0 {
		return nil, errors.New("wordlist: no files configured")
	}
	var all []types.Word
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("wordlist: open %q: %w", p, err)
		}
		words, err := LoadFromReader(f, p)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		all = append(all, words...)
	}
	if err := checkUnique(all); err != nil {
		return nil, err
	}
	return Filter(all, group), nil
}

// LoadFromReader decodes one word list from r. source names r in errors.
func LoadFromReader(r io.Reader, source string) ([]types.Word, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("wordlist: read %s: %w", source, err)
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("wordlist: %s is empty", source)
		}
		return nil, fmt.Errorf("wordlist: decode %s: %w", source, err)
	}

	var errs []error
	for i := range f.Words {
		w := &f.Words[i]
		w.ID = strings.TrimSpace(w.ID)
		w.Target = strings.TrimSpace(w.Target)
		if w.GroupID == "" {
			w.GroupID = f.Group
		}
		if w.ID == "" {
			errs = append(errs, fmt.Errorf("words[%d]: id is required", i))
		}
		if w.Target == "" {
			errs = append(errs, fmt.Errorf("words[%d]: english is required", i))
		}
	}
	if len(f.Words) == 0 {
		errs = append(errs, errors.New("no words"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("wordlist: %s: %w", source, err)
	}
	return f.Words, nil
}

// Filter returns the words of group. An empty group returns words unchanged.
func Filter(words []types.Word, group string) []types.Word {
	if group == "" {
		return words
	}
	var out []types.Word
	for _, w := range words {
		if strings.EqualFold(w.GroupID, group) {
			out = append(out, w)
		}
	}
	return out
}

// Groups returns the distinct groups of words in first-seen order.
func Groups(words []types.Word) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range words {
		if w.GroupID == "" || seen[w.GroupID] {
			continue
		}
		seen[w.GroupID] = true
		out = append(out, w.GroupID)
	}
	return out
}

func checkUnique(words []types.Word) error {
	seen := make(map[string]bool, len(words))
	var errs []error
	for _, w := range words {
		if seen[w.ID] {
			errs = append(errs, fmt.Errorf("wordlist: duplicate word id %q", w.ID))
		}
		seen[w.ID] = true
	}
	return errors.Join(errs...)
}
