package dbtsource

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func TestValidateClean(t *testing.T) {
	src, err := Parse(strings.NewReader(carsYAML))
	require.NoError(t, err)

	issues := Validate(src)
	assert.Empty(t, issues)
	assert.False(t, HasErrors(issues))
}

func TestValidateFindsProblems(t *testing.T) {
	src := &Source{
		Name:            "cars",
		Schema:          "",
		Delimiter:       "||",
		NullValue:       "NA",
		SourceDelimiter: ",",
		Quote:           ",",
		Tables: []*Table{
			{
				Name: "vehicles",
				Columns: []Column{
					{Name: "id", DataType: "integer", KaggleColumnName: "ID"},
					{Name: "id", DataType: "", KaggleColumnName: "ID"},
				},
			},
			{Name: "vehicles", KaggleFileName: "v.csv"},
		},
	}

	issues := Validate(src)
	require.True(t, HasErrors(issues))

	assert.True(t, hasIssue(issues, SeverityError, "schema", "must not be empty"))
	assert.True(t, hasIssue(issues, SeverityError, "meta.delimiter", "single character"))
	assert.True(t, hasIssue(issues, SeverityError, "meta.quote", "must differ"))
	assert.True(t, hasIssue(issues, SeverityError, "tables[vehicles].meta.kaggle_file_name", "must not be empty"))
	assert.True(t, hasIssue(issues, SeverityError, "tables[vehicles].columns[1].name", "duplicate"))
	assert.True(t, hasIssue(issues, SeverityError, "tables[vehicles].columns[1].data_type", "must not be empty"))
	assert.True(t, hasIssue(issues, SeverityError, "tables[vehicles].columns[1].meta.kaggle_column_name", "mapped twice"))
	assert.True(t, hasIssue(issues, SeverityError, "tables[vehicles].name", "duplicate table"))
	assert.True(t, hasIssue(issues, SeverityError, "tables[vehicles].columns", "no columns"))
}

func TestIssueError(t *testing.T) {
	iss := Issue{Severity: SeverityWarning, Path: "tables", Message: "source declares no tables"}
	assert.Equal(t, "warning at tables: source declares no tables", iss.Error())
}
