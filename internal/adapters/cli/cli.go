package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"ap-reconciler/internal/app"
)

// Runner drives matching from the command line. All output goes to Out so
// tests can capture it.
type Runner struct {
	svc app.ApplicationService
	Out io.Writer
}

func NewRunner(svc app.ApplicationService) *Runner {
	return &Runner{svc: svc, Out: os.Stdout}
}

// Run executes one batch invocation. Invoice ids come either from -invoice
// flags or from a newline-delimited file via -file.
func (r *Runner) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	invoiceID := fs.Int("invoice", 0, "single invoice id to process")
	file := fs.String("file", "", "path to a newline-delimited file of invoice ids")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var ids []int
	switch {
	case *invoiceID > 0:
		ids = []int{*invoiceID}
	case *file != "":
		var err error
		ids, err = readIDs(*file)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("either -invoice or -file is required")
	}

	result, err := r.svc.ProcessBatch(ctx, ids)
	if err != nil {
		return err
	}

	for _, res := range result.Results {
		fmt.Fprintf(r.Out, "invoice %d: %s (confidence %.2f, %d issue(s))\n",
			res.InvoiceID, res.Status, res.Confidence, len(res.Issues))
	}
	for _, f := range result.Failures {
		fmt.Fprintf(r.Out, "invoice %d: FAILED: %s\n", f.InvoiceID, f.Error)
	}
	fmt.Fprintf(r.Out, "processed %d, failed %d\n", result.Processed, result.Failed)
	return nil
}

func readIDs(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open id file: %w", err)
	}
	defer f.Close()

	var ids []int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("invalid invoice id %q in %s", line, path)
		}
		ids = append(ids, id)
	}
	return ids, scanner.Err()
}
