package core

// Severity is the severity assigned to signals produced by a rule
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists the accepted severities in display order
var Severities = []string{
	string(SeverityLow),
	string(SeverityMedium),
	string(SeverityHigh),
	string(SeverityCritical),
}

// String returns the string representation
func (s Severity) String() string {
	return string(s)
}

// IsValid checks if the severity is one of the accepted values
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// QueryLanguage is the language a rule query is written in
type QueryLanguage string

const (
	LanguageKuery  QueryLanguage = "kuery"
	LanguageLucene QueryLanguage = "lucene"
)

// Languages lists the accepted query languages
var Languages = []string{string(LanguageKuery), string(LanguageLucene)}

// RuleType distinguishes inline-query rules from saved-query rules
type RuleType string

const (
	RuleTypeQuery      RuleType = "query"
	RuleTypeSavedQuery RuleType = "saved_query"
)

// RuleTypes lists the accepted rule types
var RuleTypes = []string{string(RuleTypeQuery), string(RuleTypeSavedQuery)}

const (
	// MaxErrorMessageLength caps error text returned to API clients
	MaxErrorMessageLength = 500

	// ThreatFrameworkMitre is the framework name used for MITRE ATT&CK annotations
	ThreatFrameworkMitre = "MITRE ATT&CK"
)
