package models

// Outcome is what happened to one item of a batch
type Outcome string

const (
	// OutcomeUpdated means the file was rewritten
	OutcomeUpdated Outcome = "updated"
	// OutcomeCreated means a new file was written
	OutcomeCreated Outcome = "created"
	// OutcomeUnchanged means the file already had the wanted content
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeSkipped means the input was missing and nothing was attempted
	OutcomeSkipped Outcome = "skipped"
	// OutcomeValid means the item passed validation without changes
	OutcomeValid Outcome = "valid"
	// OutcomeInvalid means the item was processed but failed validation
	OutcomeInvalid Outcome = "invalid"
	// OutcomeFailed means reading, transforming or writing the item failed
	OutcomeFailed Outcome = "failed"
)

// ItemResult reports one app of a batch run
type ItemResult struct {
	App     string
	Outcome Outcome
	// Detail is a short human-readable reason, e.g. "no neo-manifest.json"
	Detail   string
	Err      error
	Problems []string
}

// Reporter receives each item as soon as it is processed
type Reporter func(ItemResult)

// Summary tallies the outcomes of a batch run
type Summary struct {
	Updated   int
	Created   int
	Unchanged int
	Skipped   int
	Valid     int
	Invalid   int
	Failed    int
}

// Add counts one outcome
func (s *Summary) Add(o Outcome) {
	switch o {
	case OutcomeUpdated:
		s.Updated++
	case OutcomeCreated:
		s.Created++
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeValid:
		s.Valid++
	case OutcomeInvalid:
		s.Invalid++
	case OutcomeFailed:
		s.Failed++
	}
}

// Total is the number of items counted
func (s Summary) Total() int {
	return s.Updated + s.Created + s.Unchanged + s.Skipped + s.Valid + s.Invalid + s.Failed
}

// NormalizeOptions controls a manifest normalization run
type NormalizeOptions struct {
	Schema        SchemaVersion
	CreateMissing bool
	Validate      bool
	// UpdatedAt overrides the configured updatedAt stamp when set
	UpdatedAt string
}

// CreateOptions controls manifest creation
type CreateOptions struct {
	Schema SchemaVersion
	// Force overwrites an existing manifest
	Force bool
}

// RegistrySyncSummary tallies a registry sync run
type RegistrySyncSummary struct {
	Apps     int
	Inserted int
	Updated  int
	Failed   int
	Skipped  int
	Errors   []ItemResult
}
