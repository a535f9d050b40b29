package correction

import (
	"fmt"
	"strings"
)

// BuildContext serializes the question and candidate history into the prompt
// context shared by the judge and every repair strategy. from and to bound
// which candidates are included (half-open range over session indices);
// repair reasons are shown for any included candidate that has one.
func BuildContext(s *Session, from, to int) string {
	var history strings.Builder
	for i := from; i < to && i < s.Len(); i++ {
		fmt.Fprintf(&history, "SQL: %q,", s.Candidates[i].SQL)
		if out := s.Outcomes[i]; out != nil {
			if out.Valid {
				fmt.Fprintf(&history, "execution result: %q,", out.Preview)
			} else {
				fmt.Fprintf(&history, "execution error: %q,", out.Err)
			}
		}
		if reason := s.Reasons[i]; reason != "" {
			fmt.Fprintf(&history, "repair reason: %q", reason)
		}
		history.WriteString("\n")
	}

	q := s.Question
	tableInfo := fmt.Sprintf(
		"Sqlite SQL tables, with their properties:\n%s\n"+
			"Foreign key information of Sqlite SQL tables, used for table joins:\n%s\n"+
			"The meaning of every column:\n%s\n",
		q.Schema, q.ForeignKey, q.Explanation)

	var b strings.Builder
	fmt.Fprintf(&b, "User question:\n%q\n", q.Question)
	fmt.Fprintf(&b, "Current SQL queries and their execution results:\n%s\n", history.String())
	fmt.Fprintf(&b, "Database structure information:\n%s\n", tableInfo)
	fmt.Fprintf(&b, "Field explanations and enumerated values:\n%s\n", q.Explanation)
	fmt.Fprintf(&b, "Sample data for relevant columns:\n%s\n", q.Data)
	if q.Evidence != "" {
		fmt.Fprintf(&b, "Domain knowledge related to the question:\n%s\n", q.Evidence)
	}
	return b.String()
}
