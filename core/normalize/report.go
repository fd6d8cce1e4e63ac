package normalize

import (
	"github.com/FocuswithJustin/worship-direct/core/errors"
)

// Skip records one input record that was left out of the index.
type Skip struct {
	Record string      `json:"record"`
	Kind   errors.Kind `json:"kind"`
	Reason string      `json:"reason"`
}

// Report summarizes one normalization. It is metadata about the run and not
// part of the index.
type Report struct {
	Format     Format `json:"format"`
	Examined   int    `json:"examined"`
	Inserted   int    `json:"inserted"`
	Duplicates int    `json:"duplicates"` // inserts that replaced an earlier record
	Skips      []Skip `json:"skips,omitempty"`
}

// Skipped returns the number of records left out.
func (r *Report) Skipped() int { return len(r.Skips) }

// CountByKind tallies skips per error kind.
func (r *Report) CountByKind() map[errors.Kind]int {
	counts := make(map[errors.Kind]int)
	for _, s := range r.Skips {
		counts[s.Kind]++
	}
	return counts
}

// Err joins every skip into one error, or returns nil when nothing was skipped.
// Each joined error matches its kind's sentinel with errors.Is.
func (r *Report) Err() error {
	if len(r.Skips) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Skips))
	for _, s := range r.Skips {
		errs = append(errs, errors.NewRecord(s.Kind, s.Record, s.Reason))
	}
	return errors.Join(errs...)
}

// Merge adds the counts and skips of other to r, for chunked runs.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	if r.Format == "" {
		r.Format = other.Format
	}
	r.Examined += other.Examined
	r.Inserted += other.Inserted
	r.Duplicates += other.Duplicates
	r.Skips = append(r.Skips, other.Skips...)
}

func (r *Report) skip(record string, kind errors.Kind, reason string) {
	r.Skips = append(r.Skips, Skip{Record: record, Kind: kind, Reason: reason})
}

// skipErr records a skip for err, keeping its kind and the most specific message.
func (r *Report) skipErr(record string, err error) {
	kind := errors.KindOf(err)
	if kind == "" {
		kind = errors.KindRecordMalformed
	}
	reason := err.Error()
	var re *errors.RecordError
	var pe *errors.ParseError
	switch {
	case errors.As(err, &re):
		reason = re.Reason
	case errors.As(err, &pe):
		reason = pe.Message
	}
	r.skip(record, kind, reason)
}
