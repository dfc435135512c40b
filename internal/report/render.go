package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cess-pro/Domain-Relation/internal/policy"
)

// WriteJSON writes the report as indented JSON
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteText writes the report as aligned tables
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Domains analysed:\t%d\n", r.Domains)
	fmt.Fprintf(tw, "Essential global edges:\t%d\n\n", r.EssentialEdges)

	if len(r.Density) > 0 {
		fmt.Fprintln(tw, "MODE\tEDGES\tRELATIVE DENSITY")
		for _, row := range r.Density {
			fmt.Fprintf(tw, "%s\t%d\t%.4f\n", row.Mode, row.Edges, row.RelativeDensity)
		}
		fmt.Fprintln(tw)
	}

	if len(r.TopZones) > 0 {
		fmt.Fprintln(tw, "ZONE\tDEPENDENTS (critical)")
		for _, row := range r.TopZones {
			fmt.Fprintf(tw, "%s\t%d\n", row.Zone, row.Dependents)
		}
		fmt.Fprintln(tw)
	}

	fmt.Fprintln(tw, "MODE\tNON-EMPTY\tFRACTION\tAVG SIZE\tMAX DEPTH < 4\tFRACTION")
	for _, row := range r.Extra {
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.2f\t%d\t%.4f\n",
			row.Mode, row.NonEmpty, row.NonEmptyFraction, row.AvgNonEmptySize, row.Shallow, row.ShallowFraction)
	}
	fmt.Fprintln(tw)

	if len(r.RankBuckets) > 0 {
		fmt.Fprintf(tw, "RANKS\tDOMAINS\t%s\n", modeHeader("MEAN "))
		for _, row := range r.RankBuckets {
			fmt.Fprintf(tw, "%d-%d\t%d\t%s\n", row.FirstRank, row.LastRank, row.Domains, modeValues(row.MeanExtra))
		}
		fmt.Fprintln(tw)
	}

	if len(r.Suffixes) > 0 {
		fmt.Fprintf(tw, "SUFFIX\tDOMAINS\t%s\t%s\n", modeHeader("MEAN "), modeHeader("NON-EMPTY "))
		for _, row := range r.Suffixes {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", row.Suffix, row.Domains,
				modeValues(row.MeanExtra), modeValues(row.NonEmptyFraction))
		}
	}

	return tw.Flush()
}

func modeHeader(prefix string) string {
	cols := make([]string, 0, len(policy.Relaxed))
	for _, m := range policy.Relaxed {
		cols = append(cols, prefix+strings.ToUpper(m.String()))
	}
	return strings.Join(cols, "\t")
}

func modeValues(values map[string]float64) string {
	cols := make([]string, 0, len(policy.Relaxed))
	for _, m := range policy.Relaxed {
		cols = append(cols, fmt.Sprintf("%.3f", values[m.String()]))
	}
	return strings.Join(cols, "\t")
}
