// Package inline substitutes bound parameter values back into a
// parameterized query string, producing a self-contained SQL string
// equivalent to what was executed.
//
// The output is a display and copy-paste aid for auditing and sharing. It
// is not safe to re-execute against untrusted input: values were already
// safely bound during the real execution, so no injection defense is
// applied here.
package inline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"sitelens/internal/template"
)

// Inline replaces every @name parameter reference in sql with a literal
// rendering of its bound value. Names are substituted longest-first so a
// parameter named "url1" is never partially matched inside "@url10".
func Inline(sql string, params map[string]interface{}) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		sql = strings.ReplaceAll(sql, "@"+name, Literal(params[name]))
	}
	return sql
}

// Literal renders a single bound value as a SQL literal: quoted and escaped
// for strings and timestamps, NULL for absent values, bare tokens for
// everything else.
func Literal(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + template.EscapeString(val) + "'"
	case time.Time:
		return "TIMESTAMP('" + template.FormatTimestamp(val) + "')"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	default:
		return fmt.Sprintf("%v", val)
	}
}
