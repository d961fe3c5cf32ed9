package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/mtreglia-gpsw/quik-tracy/context"
)

// Load parses every source as a delimited table with a header row and
// concatenates them into a single relation. Each row is stamped with the
// index and name of the source it came from.
func Load(ctx context.Context, sources []Source) (*Table, error) {
	if len(sources) == 0 {
		return nil, ctx.Oops().Code(CodeMalformedInput).Errorf("no sources to load")
	}

	table := &Table{}
	seen := make(map[string]struct{})

	for i, src := range sources {
		header, records, err := readCSV(src.Path)
		if err != nil {
			return nil, ctx.Oops().
				With("path", src.Path).
				Code(CodeMalformedInput).
				Wrapf(err, "cannot parse %s as a table", src.Path)
		}
		if len(records) == 0 {
			return nil, ctx.Oops().
				With("path", src.Path).
				Code(CodeEmptySource).
				Errorf("%s has no data rows", src.Path)
		}

		for _, col := range header {
			if _, ok := seen[col]; !ok {
				seen[col] = struct{}{}
				table.Columns = append(table.Columns, col)
			}
		}

		name := src.Name()
		for _, rec := range records {
			values := make(map[string]string, len(header))
			for j, col := range header {
				if j < len(rec) {
					values[col] = rec[j]
				}
			}
			table.Rows = append(table.Rows, Row{
				SourceIndex: i,
				SourceName:  name,
				Values:      values,
			})
		}

		ctx.Logger.V(3).Infof("loaded %s: %d rows, %d columns", src.Path, len(records), len(header))
	}

	return table, nil
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, fmt.Errorf("missing header row")
		}
		return nil, nil, err
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return header, records, nil
}
