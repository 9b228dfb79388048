package ctl

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
	"github.com/pkg/errors"

	"github.com/featurebasedb/edp/columnar"
	"github.com/featurebasedb/edp/config"
	"github.com/featurebasedb/edp/merge"
	"github.com/featurebasedb/edp/objstore"
)

const (
	FormatTable = "table"
	FormatCSV   = "csv"

	nullValue = "NULL"
)

// InspectCommand prints the schema, row count, merged staging objects and
// rows of an accumulated parquet object.
type InspectCommand struct {
	*CmdIO

	// Path is a local file or an s3:// URL. Empty means
	// TargetBucket/TargetKey.
	Path         string
	TargetBucket string
	TargetKey    string

	// Limit caps the rows printed; 0 prints all of them.
	Limit    int
	Format   string
	LogLevel string
	AWS      AWSOptions

	// Store reads s3:// paths. When nil an S3 client is created.
	Store objstore.ObjectStore
}

// NewInspectCommand returns a new instance of InspectCommand.
func NewInspectCommand(stdin io.Reader, stdout, stderr io.Writer) *InspectCommand {
	d := config.Defaults()
	return &InspectCommand{
		CmdIO:        NewCmdIO(stdin, stdout, stderr),
		TargetBucket: d.TargetBucket,
		TargetKey:    d.TargetKey,
		Limit:        10,
		Format:       FormatTable,
		AWS:          AWSOptions{Region: d.Region},
	}
}

func (cmd *InspectCommand) Run(ctx context.Context) error {
	if err := cmd.setLogLevel(cmd.LogLevel); err != nil {
		return err
	}
	if cmd.Format != FormatTable && cmd.Format != FormatCSV {
		return errors.Errorf("unknown format %q", cmd.Format)
	}
	if cmd.Limit < 0 {
		return errors.New("limit must not be negative")
	}

	path := cmd.Path
	if path == "" {
		path = objstore.URL(cmd.TargetBucket, cmd.TargetKey)
	}
	if _, _, isS3, _ := objstore.ParseURL(path); isS3 && cmd.Store == nil {
		sess, err := cmd.AWS.session(cmd.Logger())
		if err != nil {
			return err
		}
		cmd.Store = objstore.NewS3Store(s3.New(sess))
	}

	data, err := objstore.ReadFileOrURL(ctx, path, cmd.Store)
	if err != nil {
		return err
	}
	t, err := columnar.DecodeParquet(ctx, data)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	merged, err := merge.MergedKeys(t)
	if err != nil {
		return err
	}

	// keep stdout pure CSV so it can be piped
	info := cmd.Stdout
	if cmd.Format == FormatCSV {
		info = cmd.Stderr
	}
	fmt.Fprintf(info, "Name: %s\n", path)
	fmt.Fprintln(info, "Schema:")
	for i, c := range t.Schema {
		fmt.Fprintf(info, "%d. %s (%s)\n", i, c.Name, c.Type)
	}
	fmt.Fprintf(info, "Number of rows: %d\n", t.NumRows())
	fmt.Fprintf(info, "Merged staging objects: %d\n", len(merged))
	for _, k := range merged {
		fmt.Fprintf(info, "  %s\n", k)
	}

	return cmd.writeRows(t)
}

func (cmd *InspectCommand) writeRows(t *columnar.Table) error {
	n := t.NumRows()
	if cmd.Limit > 0 && n > cmd.Limit {
		n = cmd.Limit
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.Stdout)
	// Don't uppercase the header values.
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, t.NumCols())
	for i, c := range t.Schema {
		header[i] = c.Name
	}
	tw.AppendHeader(header)
	for r := 0; r < n; r++ {
		row := make(table.Row, t.NumCols())
		for c := range row {
			if t.Value(r, c) == nil {
				row[c] = nullValue
				continue
			}
			row[c] = t.Format(r, c)
		}
		tw.AppendRow(row)
	}

	if cmd.Format == FormatCSV {
		tw.RenderCSV()
		return nil
	}
	tw.Render()
	if n < t.NumRows() {
		fmt.Fprintf(cmd.Stdout, "(%d of %d rows)\n", n, t.NumRows())
	}
	return nil
}
