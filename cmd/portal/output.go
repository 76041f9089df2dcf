package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/aussiebroadwan/portal/pkg/apiclient"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes rows as aligned columns.
func table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// printError explains err in terms of what the user can do about it.
func printError(w io.Writer, err error) {
	var (
		verr   *service.ValidationError
		netErr *apiclient.NetworkError
	)

	switch {
	case sessionExpired(err):
		fmt.Fprintln(w, "Your session has expired. Please log in again with `portal login`.")
	case errors.Is(err, service.ErrInvalidCredentials):
		fmt.Fprintln(w, "Invalid username or password.")
	case errors.As(err, &verr):
		fmt.Fprintln(w, "Please correct the following:")
		fields := make([]string, 0, len(verr.Fields))
		for f := range verr.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Fprintf(w, "  %s: %s\n", f, strings.Join(verr.Fields[f], "; "))
		}
	case errors.As(err, &netErr):
		fmt.Fprintf(w, "Could not reach the portal: %v\n", netErr.Err)
	default:
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}
