package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"ruleguard/core"
)

// DefaultRuleCacheSize is the rule_id index size used when none is configured
const DefaultRuleCacheSize = 1024

const ruleColumns = `id, rule_id, name, description, enabled, immutable, type, severity, risk_score,
	query, language, saved_id, filters, index_patterns, output_index, rule_from, rule_to, interval,
	max_signals, meta, tags, rule_references, false_positives, threats, timeline_id, timeline_title,
	version, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// queryRower is satisfied by *sql.DB and *sql.Tx
type queryRower interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

// SQLiteRuleStorage handles rule persistence in SQLite
type SQLiteRuleStorage struct {
	sqlite *SQLite
	// ruleIDs maps rule_id to id so lookups by rule_id skip the index scan
	ruleIDs *lru.Cache[string, string]
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewSQLiteRuleStorage creates a new SQLite rule storage handler. A
// non-positive cacheSize selects DefaultRuleCacheSize.
func NewSQLiteRuleStorage(sqlite *SQLite, cacheSize int, logger *zap.SugaredLogger) (*SQLiteRuleStorage, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultRuleCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule_id cache: %w", err)
	}
	return &SQLiteRuleStorage{
		sqlite:  sqlite,
		ruleIDs: cache,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// GetRule retrieves a single rule by id
func (srs *SQLiteRuleStorage) GetRule(id string) (*core.Rule, error) {
	return srs.getRule(srs.sqlite.ReadDB, "id", id)
}

// GetRuleByRuleID retrieves a single rule by its rule_id
func (srs *SQLiteRuleStorage) GetRuleByRuleID(ruleID string) (*core.Rule, error) {
	if id, ok := srs.ruleIDs.Get(ruleID); ok {
		rule, err := srs.GetRule(id)
		if err == nil && rule.RuleID == ruleID {
			return rule, nil
		}
		if err != nil && !errors.Is(err, ErrRuleNotFound) {
			return nil, err
		}
		srs.ruleIDs.Remove(ruleID)
	}
	return srs.getRule(srs.sqlite.ReadDB, "rule_id", ruleID)
}

func (srs *SQLiteRuleStorage) getRule(db queryRower, column, value string) (*core.Rule, error) {
	// column is one of two constants, never caller input
	query := "SELECT " + ruleColumns + " FROM rules WHERE " + column + " = ?"
	rule, err := scanRule(db.QueryRow(query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	srs.ruleIDs.Add(rule.RuleID, rule.ID)
	return rule, nil
}

// ListRules retrieves rules with pagination, newest first
func (srs *SQLiteRuleStorage) ListRules(limit, offset int) ([]core.Rule, error) {
	query := "SELECT " + ruleColumns + " FROM rules ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	rows, err := srs.sqlite.ReadDB.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	rules := make([]core.Rule, 0, limit)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}

// GetRuleCount returns total rule count
func (srs *SQLiteRuleStorage) GetRuleCount() (int64, error) {
	var count int64
	if err := srs.sqlite.ReadDB.QueryRow("SELECT COUNT(*) FROM rules").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rules: %w", err)
	}
	return count, nil
}

// CreateRule inserts a new rule. Both id and rule_id must be unused.
func (srs *SQLiteRuleStorage) CreateRule(rule *core.Rule) error {
	var existing int
	err := srs.sqlite.ReadDB.QueryRow("SELECT COUNT(*) FROM rules WHERE id = ? OR rule_id = ?", rule.ID, rule.RuleID).Scan(&existing)
	if err != nil {
		return fmt.Errorf("failed to check existing rule: %w", err)
	}
	if existing > 0 {
		return fmt.Errorf("%w: rule_id %s", ErrDuplicateRule, rule.RuleID)
	}

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = srs.now()
	}
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = rule.CreatedAt
	}

	args, err := ruleArgs(rule)
	if err != nil {
		return err
	}
	query := "INSERT INTO rules (" + ruleColumns + ") VALUES (" + strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ") + ")"
	if _, err := srs.sqlite.WriteDB.Exec(query, args...); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: rule_id %s", ErrDuplicateRule, rule.RuleID)
		}
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	srs.ruleIDs.Add(rule.RuleID, rule.ID)
	srs.logger.Infow("Created rule", "id", rule.ID, "rule_id", rule.RuleID)
	return nil
}

// UpdateRule resolves the rule named by the update's id or rule_id, merges
// the fields present in the update and stores the result. Absent fields keep
// their stored values.
func (srs *SQLiteRuleStorage) UpdateRule(update *core.RuleUpdate) (*core.Rule, error) {
	field, value := update.Identifier()
	if field == "" {
		return nil, ErrInvalidIdentifier
	}

	var updated *core.Rule
	err := srs.sqlite.WithTransaction(func(tx *sql.Tx) error {
		rule, err := srs.getRule(tx, field, value)
		if err != nil {
			return err
		}

		rule.ApplyUpdate(update)
		rule.UpdatedAt = srs.now()

		args, err := ruleArgs(rule)
		if err != nil {
			return err
		}
		// every column but id, rule_id and created_at is rewritten
		query := `UPDATE rules SET name = ?, description = ?, enabled = ?, immutable = ?, type = ?,
			severity = ?, risk_score = ?, query = ?, language = ?, saved_id = ?, filters = ?,
			index_patterns = ?, output_index = ?, rule_from = ?, rule_to = ?, interval = ?,
			max_signals = ?, meta = ?, tags = ?, rule_references = ?, false_positives = ?,
			threats = ?, timeline_id = ?, timeline_title = ?, version = ?, updated_at = ?
			WHERE id = ?`
		updateArgs := append(append([]interface{}{}, args[2:len(args)-2]...), args[len(args)-1], rule.ID)
		if _, err := tx.Exec(query, updateArgs...); err != nil {
			return fmt.Errorf("failed to update rule: %w", err)
		}
		updated = rule
		return nil
	})
	if err != nil {
		return nil, err
	}

	srs.logger.Infow("Updated rule", "id", updated.ID, "rule_id", updated.RuleID, "fields", update.Fields())
	return updated, nil
}

// DeleteRule deletes the rule with the given id
func (srs *SQLiteRuleStorage) DeleteRule(id string) error {
	var ruleID string
	err := srs.sqlite.WithTransaction(func(tx *sql.Tx) error {
		if err := tx.QueryRow("SELECT rule_id FROM rules WHERE id = ?", id).Scan(&ruleID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRuleNotFound
			}
			return fmt.Errorf("failed to look up rule: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM rules WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete rule: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	srs.ruleIDs.Remove(ruleID)
	srs.logger.Infow("Deleted rule", "id", id, "rule_id", ruleID)
	return nil
}

// ruleArgs returns the column values of rule in ruleColumns order
func ruleArgs(rule *core.Rule) ([]interface{}, error) {
	encoded := make(map[string]interface{}, 7)
	for name, v := range map[string]interface{}{
		"filters":         rule.Filters,
		"index":           rule.Index,
		"meta":            rule.Meta,
		"tags":            rule.Tags,
		"references":      rule.References,
		"false_positives": rule.FalsePositives,
		"threats":         rule.Threats,
	} {
		s, err := encodeJSON(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", name, err)
		}
		encoded[name] = s
	}

	return []interface{}{
		rule.ID,
		rule.RuleID,
		rule.Name,
		rule.Description,
		rule.Enabled,
		rule.Immutable,
		rule.Type,
		rule.Severity,
		rule.RiskScore,
		nullIfEmpty(rule.Query),
		nullIfEmpty(rule.Language),
		nullIfEmpty(rule.SavedID),
		encoded["filters"],
		encoded["index"],
		nullIfEmpty(rule.OutputIndex),
		rule.From,
		rule.To,
		rule.Interval,
		rule.MaxSignals,
		encoded["meta"],
		encoded["tags"],
		encoded["references"],
		encoded["false_positives"],
		encoded["threats"],
		nullIfEmpty(rule.TimelineID),
		nullIfEmpty(rule.TimelineTitle),
		rule.Version,
		rule.CreatedAt.UTC().Format(time.RFC3339Nano),
		rule.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func scanRule(row rowScanner) (*core.Rule, error) {
	var rule core.Rule
	var query, language, savedID, outputIndex, timelineID, timelineTitle sql.NullString
	var filters, index, meta, tags, references, falsePositives, threats sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&rule.ID,
		&rule.RuleID,
		&rule.Name,
		&rule.Description,
		&rule.Enabled,
		&rule.Immutable,
		&rule.Type,
		&rule.Severity,
		&rule.RiskScore,
		&query,
		&language,
		&savedID,
		&filters,
		&index,
		&outputIndex,
		&rule.From,
		&rule.To,
		&rule.Interval,
		&rule.MaxSignals,
		&meta,
		&tags,
		&references,
		&falsePositives,
		&threats,
		&timelineID,
		&timelineTitle,
		&rule.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Query = query.String
	rule.Language = language.String
	rule.SavedID = savedID.String
	rule.OutputIndex = outputIndex.String
	rule.TimelineID = timelineID.String
	rule.TimelineTitle = timelineTitle.String

	rule.Filters = []interface{}{}
	rule.Index = []string{}
	rule.Tags = []string{}
	rule.References = []string{}
	rule.FalsePositives = []string{}
	rule.Threats = []core.Threat{}
	for _, col := range []struct {
		name string
		raw  sql.NullString
		dst  interface{}
	}{
		{"filters", filters, &rule.Filters},
		{"index", index, &rule.Index},
		{"meta", meta, &rule.Meta},
		{"tags", tags, &rule.Tags},
		{"references", references, &rule.References},
		{"false_positives", falsePositives, &rule.FalsePositives},
		{"threats", threats, &rule.Threats},
	} {
		if err := decodeJSON(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", col.name, err)
		}
	}

	if rule.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if rule.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &rule, nil
}

func encodeJSON(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return string(data), nil
}

// decodeJSON leaves dst untouched for NULL columns
func decodeJSON(raw sql.NullString, dst interface{}) error {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), dst)
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
