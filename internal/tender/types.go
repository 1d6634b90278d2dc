// Package tender defines the records, collaborators and deduplication rules
// shared by the scraping pipeline.
package tender

import (
	"errors"
	"strings"
)

// ErrEmptyIdentifier marks a result row whose identifier cell is blank.
var ErrEmptyIdentifier = errors.New("empty procedure identifier")

// Row is the raw text of one rendered result row: the first three columns of
// the portal's result table.
type Row struct {
	Title      string
	Identifier string
	Mode       string
}

// Record is one tender listing that has not been reported before.
type Record struct {
	Title      string `json:"Nazwa Zamówienia"`
	Identifier string `json:"Identyfikator Postępowania"`
	Mode       string `json:"Tryb Postępowania"`
	Link       string `json:"Link"`
}

// PhraseResults groups the new records matched by a single search phrase.
type PhraseResults struct {
	Phrase  string
	Records []Record
}

// Batch is the ordered set of new records found during one run.
type Batch []PhraseResults

// Empty reports whether the batch carries no records.
func (b Batch) Empty() bool {
	return b.Count() == 0
}

// Count returns the number of records across all phrases.
func (b Batch) Count() int {
	n := 0
	for _, group := range b {
		n += len(group.Records)
	}
	return n
}

// Identifiers returns every record identifier in discovery order.
func (b Batch) Identifiers() []string {
	ids := make([]string, 0, b.Count())
	for _, group := range b {
		for _, rec := range group.Records {
			ids = append(ids, rec.Identifier)
		}
	}
	return ids
}

// IDSet is the set of procedure identifiers already reported.
type IDSet map[string]struct{}

// NewIDSet builds a set from the given identifiers.
func NewIDSet(ids ...string) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id, ignoring blanks.
func (s IDSet) Add(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	s[id] = struct{}{}
}
