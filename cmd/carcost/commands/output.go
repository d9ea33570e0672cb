package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	apphttp "carcost/internal/http"
)

// table writes tab-aligned rows to the command's output.
type table struct {
	tw *tabwriter.Writer
}

func newTable(out io.Writer, header ...string) *table {
	t := &table{tw: tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)}
	t.row(header...)
	return t
}

func (t *table) row(cols ...string) {
	fmt.Fprintln(t.tw, strings.Join(cols, "\t"))
}

func (t *table) flush() error {
	return t.tw.Flush()
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return id, nil
}

// dateFlag reads an optional date flag; it returns nil when the flag is empty.
func dateFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	v, err := cmd.Flags().GetString(name)
	if err != nil || v == "" {
		return nil, err
	}
	t, err := apphttp.ParseDate(v)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &t, nil
}

func formatDate(t time.Time) string {
	return t.Format(apphttp.DateLayout)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
