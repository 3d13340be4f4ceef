package introspect

import (
	"regexp"

	"github.com/halvorsen/subsetdb/internal/schema"
)

// sensitivityRule matches a column name against a pattern and assigns a
// default tag when no config override is present. Patterns are tried in
// order; the first match wins.
type sensitivityRule struct {
	pattern    *regexp.Regexp
	tag        schema.SensitivityTag
	fakeMethod string
}

// defaultSensitivityRules is the built-in column-name heuristic (spec §4.6
// "default tagging"). Config-declared anonymize.fields/anonymize.null_fields
// always take precedence over these defaults; see ApplyAnonymizeConfig.
var defaultSensitivityRules = []sensitivityRule{
	{regexp.MustCompile(`(?i)^(password|passwd|pwd|password_hash|secret|api_key|access_token|refresh_token)$`), schema.SensitivityNullOut, ""},
	{regexp.MustCompile(`(?i)(^|_)email(_address)?$`), schema.SensitivityFake, "email"},
	{regexp.MustCompile(`(?i)(^|_)(phone|phone_number|mobile)$`), schema.SensitivityFake, "phone_number"},
	{regexp.MustCompile(`(?i)(^|_)ssn$`), schema.SensitivityFake, "ssn"},
	{regexp.MustCompile(`(?i)(^|_)(first_name|given_name)$`), schema.SensitivityFake, "first_name"},
	{regexp.MustCompile(`(?i)(^|_)(last_name|surname)$`), schema.SensitivityFake, "last_name"},
	{regexp.MustCompile(`(?i)(^|_)full_name$`), schema.SensitivityFake, "name"},
	{regexp.MustCompile(`(?i)(^|_)ip(_address)?$`), schema.SensitivityFake, "ipv4_address"},
	{regexp.MustCompile(`(?i)(^|_)(address|street|street_address)$`), schema.SensitivityFake, "street_address"},
	{regexp.MustCompile(`(?i)(^|_)(credit_card|card_number|cc_number)$`), schema.SensitivityNullOut, ""},
}

// applySensitivityDefaults tags each column of t that matches a default rule
// and has no tag set yet. Config overrides applied later (by the caller
// wiring anonymize.Config into the graph) may replace these defaults.
func applySensitivityDefaults(t *schema.Table) {
	for i := range t.Columns {
		col := &t.Columns[i]
		if col.Tag != schema.SensitivityNone {
			continue
		}
		for _, rule := range defaultSensitivityRules {
			if rule.pattern.MatchString(col.Name) {
				col.Tag = rule.tag
				col.FakeMethod = rule.fakeMethod
				break
			}
		}
	}
}

// ApplyAnonymizeConfig overrides sensitivity tags on g's tables using
// explicit config.AnonymizeConfig entries (fields -> FAKE(method),
// null_fields -> NULL_OUT), taking precedence over the default rules
// applied during Build.
func ApplyAnonymizeConfig(g *schema.Graph, fields map[string]string, nullFields []string) error {
	for qualifiedCol, method := range fields {
		table, col, err := splitQualifiedColumn(qualifiedCol)
		if err != nil {
			return err
		}
		t, ok := g.Table(table)
		if !ok {
			continue
		}
		c, ok := t.Column(col)
		if !ok {
			continue
		}
		c.Tag = schema.SensitivityFake
		c.FakeMethod = method
	}
	for _, qualifiedCol := range nullFields {
		table, col, err := splitQualifiedColumn(qualifiedCol)
		if err != nil {
			return err
		}
		t, ok := g.Table(table)
		if !ok {
			continue
		}
		c, ok := t.Column(col)
		if !ok {
			continue
		}
		c.Tag = schema.SensitivityNullOut
		c.FakeMethod = ""
	}
	return nil
}

func splitQualifiedColumn(s string) (table, col string, err error) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[:i], s[i+1:], nil
		}
	}
	return "", "", &qualifiedColumnError{s}
}

type qualifiedColumnError struct{ value string }

func (e *qualifiedColumnError) Error() string {
	return "expected \"table.column\", got " + e.value
}
