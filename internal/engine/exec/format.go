package exec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// FormatResultSet renders a SELECT's rows as the fixed-width table the
// teacher's own REPL prints for query output (spec §6.3): one header row
// plus one row per result, NULL rendered literally.
func FormatResultSet(rs *ResultSet) string {
	if rs == nil || rs.Cols == nil {
		return ""
	}
	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetHeader(rs.Cols)
	table.SetAutoFormatHeaders(false)
	for _, row := range rs.Rows {
		cells := make([]string, len(rs.Cols))
		for i, c := range rs.Cols {
			cells[i] = formatCell(row[c])
		}
		table.Append(cells)
	}
	table.Render()
	return sb.String()
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// FormatStatus renders a non-SELECT statement's outcome the way the
// teacher's REPL reports DDL/DML results.
func FormatStatus(rs *ResultSet) string {
	if rs.Status.OK() {
		if rs.RowsAffected > 0 {
			return fmt.Sprintf("Query OK, %d rows affected", rs.RowsAffected)
		}
		return "Query OK"
	}
	return fmt.Sprintf("Error: %s", rs.Status)
}
