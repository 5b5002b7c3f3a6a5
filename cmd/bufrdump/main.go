// Command bufrdump decodes every BUFR message in a file (or URL) and writes
// one line per report with position, precipitation and quality flags.
//
// Usage:
//
//	bufrdump [flags] <file-or-url>
//
// Examples:
//
//	bufrdump Z__C_RJTD_20200214000000_OBS_AMDS_Rjp_N2_bufr4.bin
//	bufrdump -o - --json obs.bufr
//	bufrdump --table local.yaml --all obs.bufr
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/geal-ai/bufr"
)

var (
	rootCmd = &cobra.Command{
		Use:   "bufrdump [flags] <file-or-url>",
		Short: "Decode BUFR observation messages to text",
		Long: "bufrdump decodes every BUFR message in a file and writes latitude, longitude,\n" +
			"two precipitation amounts and their quality flags for each report.\n" +
			"Missing observations are written as -9999.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0])
		},
	}

	tableFiles []string
	outputPath string
	asJSON     bool
	dumpAll    bool
	workers    int
	verbose    bool
)

func init() {
	f := rootCmd.Flags()
	f.StringArrayVar(&tableFiles, "table", nil, "local table YAML file loaded over the built-in tables (repeatable)")
	f.StringVarP(&outputPath, "output", "o", "./OUTPUT.TXT", "output file, - for stdout")
	f.BoolVar(&asJSON, "json", false, "write JSON instead of text")
	f.BoolVar(&dumpAll, "all", false, "write every decoded value (implies --json)")
	f.IntVar(&workers, "workers", 0, "concurrent decodes (0 = number of CPUs)")
	f.BoolVarP(&verbose, "verbose", "v", false, "log per-message details")
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logrus.Fatal(err)
	}
}

func run(ctx context.Context, input string) error {
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	tables, err := loadTables(tableFiles)
	if err != nil {
		return err
	}
	msgs, err := readInput(ctx, input)
	if err != nil {
		if len(msgs) == 0 {
			return err
		}
		logrus.WithError(err).WithField("messages", len(msgs)).Warn("input ended early, decoding the messages read so far")
	}
	logrus.WithField("messages", len(msgs)).Debug("read input")

	results := bufr.DecodeBatch(ctx, msgs, tables, bufr.BatchOptions{
		Workers: workers,
		Logger:  logrus.StandardLogger(),
	})

	w, closeOut, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	switch {
	case dumpAll:
		err = writeAll(w, results)
	case asJSON:
		err = writeJSON(w, results, bufr.StationColumns)
	default:
		err = writeText(w, results)
	}
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logrus.WithFields(logrus.Fields{"messages": len(results), "failed": failed}).Info("done")
	return nil
}

// loadTables returns the built-in tables overridden by each local table file
// in order.
func loadTables(files []string) (*bufr.Tables, error) {
	tables, err := bufr.DefaultTables()
	if err != nil {
		return nil, err
	}
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		err = tables.LoadYAML(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		logrus.WithField("file", name).Debug("loaded local table")
	}
	return tables, nil
}

func readInput(ctx context.Context, input string) ([][]byte, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		tctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		return bufr.NewClient().FetchMessages(tctx, input)
	}
	f, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("can't open file %q: %w", input, err)
	}
	defer f.Close()
	return bufr.ReadMessages(f)
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "-" {
		bw := bufio.NewWriter(os.Stdout)
		return bw, bw.Flush, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("can't open the output file: %w", err)
	}
	bw := bufio.NewWriter(f)
	return bw, func() error {
		if err := bw.Flush(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}, nil
}

// writeText writes "lat lon precip1 qc1 precip2 qc2" per subset of every
// message that decoded, including the decoded part of partial messages.
func writeText(w io.Writer, results []bufr.Result) error {
	for _, r := range results {
		if r.Dataset == nil {
			continue
		}
		for _, row := range bufr.Project(r.Dataset, bufr.ReferenceColumns) {
			_, err := fmt.Fprintf(w, "%f %f %f %d %f %d\n",
				row.Float(0), row.Float(1), row.Float(2), row.Int(3), row.Float(4), row.Int(5))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// jsonField is one projected column.
type jsonField struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// jsonReport is one subset in JSON output.
type jsonReport struct {
	Message int         `json:"message"`
	Subset  int         `json:"subset"`
	Fields  []jsonField `json:"fields,omitempty"`
	Values  []jsonCode  `json:"values,omitempty"`
}

// jsonCode lists every occurrence of one descriptor in a subset.
type jsonCode struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Unit   string `json:"unit,omitempty"`
	Values []any  `json:"values"`
}

type jsonMessage struct {
	Message int          `json:"message"`
	Error   string       `json:"error,omitempty"`
	Time    string       `json:"time,omitempty"`
	Centre  int          `json:"centre"`
	Reports []jsonReport `json:"reports"`
}

func writeJSON(w io.Writer, results []bufr.Result, cols []bufr.Column) error {
	out := make([]jsonMessage, 0, len(results))
	for _, r := range results {
		jm := newJSONMessage(r)
		if r.Dataset != nil {
			for si, row := range bufr.Project(r.Dataset, cols) {
				rep := jsonReport{Message: r.Index + 1, Subset: si + 1}
				for ci, col := range cols {
					rep.Fields = append(rep.Fields, jsonField{Name: col.Name, Value: sentinelScalar(row.Values[ci], row.Found[ci])})
				}
				jm.Reports = append(jm.Reports, rep)
			}
		}
		out = append(out, jm)
	}
	return emitJSON(w, out)
}

func writeAll(w io.Writer, results []bufr.Result) error {
	out := make([]jsonMessage, 0, len(results))
	for _, r := range results {
		jm := newJSONMessage(r)
		if r.Dataset != nil {
			for si := range r.Dataset.Subsets {
				rep := jsonReport{Message: r.Index + 1, Subset: si + 1}
				idx := r.Dataset.Subset(si).Index()
				for el := idx.Front(); el != nil; el = el.Next() {
					entry := el.Value[0].Descriptor.Entry
					jc := jsonCode{Code: el.Key.String(), Name: entry.Name, Unit: entry.Unit}
					for _, v := range el.Value {
						jc.Values = append(jc.Values, scalar(v))
					}
					rep.Values = append(rep.Values, jc)
				}
				jm.Reports = append(jm.Reports, rep)
			}
		}
		out = append(out, jm)
	}
	return emitJSON(w, out)
}

func newJSONMessage(r bufr.Result) jsonMessage {
	jm := jsonMessage{Message: r.Index + 1, Reports: []jsonReport{}}
	if r.Err != nil {
		jm.Error = r.Err.Error()
	}
	if r.Dataset != nil {
		jm.Time = r.Dataset.Identification.Time().Format(time.RFC3339)
		jm.Centre = r.Dataset.Identification.Centre
	}
	return jm
}

// scalar returns v as a JSON-ready value; missing becomes null.
func scalar(v bufr.Value) any {
	switch v.Kind() {
	case bufr.KindInt:
		n, _ := v.Int()
		return n
	case bufr.KindFloat:
		f, _ := v.Float()
		return f
	case bufr.KindString:
		s, _ := v.Text()
		return s
	default:
		return nil
	}
}

// sentinelScalar is scalar with -9999 for missing or absent values.
func sentinelScalar(v bufr.Value, found bool) any {
	if !found || v.IsMissing() {
		return bufr.MissingSentinel
	}
	return scalar(v)
}

func emitJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
