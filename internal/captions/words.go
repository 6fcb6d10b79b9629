// Package captions turns word-level transcripts into per-second captions and
// burns them onto a video.
package captions

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
)

// Word is one transcribed word with its start time in seconds.
type Word struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end,omitempty"`
}

// Group holds the words whose start falls within one whole second.
type Group struct {
	Second int
	Text   string
}

// Cue is a caption shown from Start until End.
type Cue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// GroupWordsBySecond buckets words by floor(start) and joins each bucket with
// single spaces. Groups come back in ascending second order; words keep their
// input order within a group. Blank words are dropped.
func GroupWordsBySecond(words []Word) []Group {
	buckets := make(map[int][]string)
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" || w.Start < 0 || math.IsNaN(w.Start) {
			continue
		}
		second := int(math.Floor(w.Start))
		buckets[second] = append(buckets[second], text)
	}

	groups := make([]Group, 0, len(buckets))
	for second, texts := range buckets {
		groups = append(groups, Group{Second: second, Text: strings.Join(texts, " ")})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Second < groups[j].Second })
	return groups
}

// BuildCues turns groups into cues. A cue stays on screen until the next
// group begins; the last one runs to total. With total <= 0 the last cue gets
// one second.
func BuildCues(groups []Group, total float64) []Cue {
	cues := make([]Cue, 0, len(groups))
	for i, g := range groups {
		start := float64(g.Second)
		end := total
		if i+1 < len(groups) {
			end = float64(groups[i+1].Second)
		} else if end <= start {
			end = start + 1
		}
		cues = append(cues, Cue{Start: start, End: end, Text: g.Text})
	}
	return cues
}

// transcriptFile covers the JSON shapes LoadWords accepts: a bare word array,
// a verbose transcription with top-level words, or one with per-segment words.
type transcriptFile struct {
	Words    []Word `json:"words"`
	Segments []struct {
		Words []Word `json:"words"`
	} `json:"segments"`
}

// LoadWords reads word timings from a JSON transcript.
func LoadWords(path string) ([]Word, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read words: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errors.New("words file is empty")
	}

	if strings.HasPrefix(trimmed, "[") {
		var words []Word
		if err := json.Unmarshal(data, &words); err != nil {
			return nil, fmt.Errorf("parse words: %w", err)
		}
		return words, nil
	}

	var file transcriptFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse words: %w", err)
	}
	if len(file.Words) > 0 {
		return file.Words, nil
	}
	var words []Word
	for _, seg := range file.Segments {
		words = append(words, seg.Words...)
	}
	if len(words) == 0 {
		return nil, errors.New("transcript contains no word timings")
	}
	return words, nil
}
