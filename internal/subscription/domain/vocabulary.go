package domain

import "strings"

// Vocabulary maps vendor status strings onto lifecycle states.
type Vocabulary struct {
	Overdue  []string `mapstructure:"overdue"`
	Inactive []string `mapstructure:"inactive"`
	Canceled string   `mapstructure:"canceled"`
}

func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Overdue:  []string{"pastdue", "overdue", "unpaid", "delinquent"},
		Inactive: []string{"inactive", "paused", "suspended"},
		Canceled: "canceled",
	}
}

// WithDefaults fills empty sets from DefaultVocabulary.
func (v Vocabulary) WithDefaults() Vocabulary {
	defaults := DefaultVocabulary()
	if len(v.Overdue) == 0 {
		v.Overdue = defaults.Overdue
	}
	if len(v.Inactive) == 0 {
		v.Inactive = defaults.Inactive
	}
	if strings.TrimSpace(v.Canceled) == "" {
		v.Canceled = defaults.Canceled
	}
	return v
}

func (v Vocabulary) IsOverdue(status string) bool {
	return containsFold(v.Overdue, status)
}

func (v Vocabulary) IsInactive(status string) bool {
	return containsFold(v.Inactive, status)
}

func (v Vocabulary) IsCanceled(status string) bool {
	status = normalizeStatus(status)
	return status != "" && status == normalizeStatus(v.Canceled)
}

func containsFold(set []string, status string) bool {
	status = normalizeStatus(status)
	if status == "" {
		return false
	}
	for _, candidate := range set {
		if normalizeStatus(candidate) == status {
			return true
		}
	}
	return false
}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}
