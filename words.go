package main

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// WordBank is the fixed pool of candidate words for a game.
type WordBank []string

func defaultWordBank() WordBank {
	return WordBank{
		"apple", "bridge", "candle", "dragon", "ember", "forest", "galaxy",
		"harbor", "island", "jungle", "kitten", "lantern", "meteor", "nebula",
		"orange", "planet", "quartz", "rocket", "sunrise", "thunder", "violet",
		"whisper", "xylophone", "yonder", "zephyr",
	}
}

// loadWordBank reads a newline-delimited word list, skipping blank lines and
// duplicates.
func loadWordBank(path string) (WordBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var bank WordBank
	seen := make(map[string]bool)
	for _, line := range strings.Split(string(data), "\n") {
		word := strings.ToLower(strings.TrimSpace(line))
		if word == "" || seen[word] {
			continue
		}
		seen[word] = true
		bank = append(bank, word)
	}

	if len(bank) == 0 {
		return nil, fmt.Errorf("word bank %q contains no words", path)
	}

	return bank, nil
}

// choose picks a uniformly random word from the bank. Whenever a different
// candidate exists, the pick is guaranteed to differ from previous.
func (b WordBank) choose(previous string) string {
	if len(b) == 0 {
		return ""
	}
	if len(b) == 1 {
		return b[0]
	}

	candidates := make([]string, 0, len(b))
	for _, word := range b {
		if word != previous {
			candidates = append(candidates, word)
		}
	}
	if len(candidates) == 0 {
		// The bank is nothing but copies of previous.
		return b[0]
	}

	return candidates[rand.Intn(len(candidates))]
}
