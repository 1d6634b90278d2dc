package tender

import (
	"strings"

	"go.uber.org/zap"
)

// Collector filters scraped rows against known identifiers and accumulates
// the unseen ones per phrase.
type Collector struct {
	known      IDSet
	reported   IDSet
	linkPrefix string
	batch      Batch
	logger     *zap.Logger
}

// NewCollector returns a collector that drops any identifier in known.
func NewCollector(known IDSet, linkPrefix string, logger *zap.Logger) *Collector {
	if known == nil {
		known = IDSet{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		known:      known,
		reported:   IDSet{},
		linkPrefix: linkPrefix,
		logger:     logger,
	}
}

// Add filters rows scraped for phrase and returns how many were kept and skipped.
func (c *Collector) Add(phrase string, rows []Row) (int, int) {
	var (
		records []Record
		skipped int
	)
	for i, row := range rows {
		id := strings.TrimSpace(row.Identifier)
		if id == "" {
			c.logger.Error("An error occurred while processing row data",
				zap.String("phrase", phrase),
				zap.Int("row", i),
				zap.Error(ErrEmptyIdentifier),
			)
			skipped++
			continue
		}
		if c.known.Has(id) {
			c.logger.Info("Skipping - identifier already known", zap.String("id", id))
			skipped++
			continue
		}
		if c.reported.Has(id) {
			c.logger.Info("Skipping - identifier already reported in this run",
				zap.String("id", id),
				zap.String("phrase", phrase),
			)
			skipped++
			continue
		}
		link := Link(c.linkPrefix, id)
		c.logger.Info("Creating link for ID", zap.String("id", id), zap.String("link", link))
		records = append(records, Record{
			Title:      strings.TrimSpace(row.Title),
			Identifier: id,
			Mode:       strings.TrimSpace(row.Mode),
			Link:       link,
		})
		c.reported.Add(id)
	}
	if len(records) > 0 {
		c.batch = append(c.batch, PhraseResults{Phrase: phrase, Records: records})
		c.logger.Info("Added results for phrase", zap.String("phrase", phrase), zap.Int("count", len(records)))
	}
	return len(records), skipped
}

// Batch returns the records collected so far.
func (c *Collector) Batch() Batch {
	return c.batch
}

// Link builds the detail URL for a procedure identifier.
func Link(prefix, id string) string {
	return prefix + id
}
