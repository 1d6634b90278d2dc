// Package results encodes a run's new tender records into the JSON artifact
// shared with operators and reads it back.
package results

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/tenderwatch/internal/tender"
)

// ContentType is the media type of the encoded artifact.
const ContentType = "application/json; charset=utf-8"

type phraseMarker struct {
	Phrase string `json:"phrase"`
}

type resultsBlock struct {
	Results []tender.Record `json:"results"`
}

// Encode renders the batch as an array alternating {"phrase"} markers and
// {"results"} blocks, indented with four spaces.
func Encode(batch tender.Batch) ([]byte, error) {
	entries := make([]any, 0, len(batch)*2)
	for _, group := range batch {
		entries = append(entries, phraseMarker{Phrase: group.Phrase}, resultsBlock{Results: group.Records})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(entries); err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses an artifact produced by Encode.
func Decode(data []byte) (tender.Batch, error) {
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}

	var batch tender.Batch
	for i, entry := range entries {
		if raw, ok := entry["phrase"]; ok {
			var phrase string
			if err := json.Unmarshal(raw, &phrase); err != nil {
				return nil, fmt.Errorf("decode phrase at %d: %w", i, err)
			}
			batch = append(batch, tender.PhraseResults{Phrase: phrase})
			continue
		}
		raw, ok := entry["results"]
		if !ok {
			return nil, fmt.Errorf("entry %d is neither a phrase nor a results block", i)
		}
		if len(batch) == 0 {
			return nil, fmt.Errorf("results block at %d has no preceding phrase", i)
		}
		var records []tender.Record
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("decode results at %d: %w", i, err)
		}
		last := &batch[len(batch)-1]
		last.Records = append(last.Records, records...)
	}
	return batch, nil
}
