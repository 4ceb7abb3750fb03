package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/complexome/prophet/pkg/models"
	"github.com/complexome/prophet/pkg/profile"
)

// readProfileTable parses a wide elution-profile TSV: a header row followed
// by one row per protein/condition/replicate with fraction intensities in
// the remaining columns. Rows are grouped by condition.
func readProfileTable(path string) (map[string][]profile.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening profile table: %w", err)
	}
	defer f.Close()

	rows := make(map[string][]profile.Row)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if lineNo == 1 || line == "" {
			continue // header
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			return nil, models.NewDataError("short row",
				"line %d: expected protein, condition, replicate and at least one fraction, got %d columns", lineNo, len(fields))
		}
		replicate, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, models.NewDataError("bad replicate", "line %d: replicate %q is not an integer", lineNo, fields[2])
		}
		intensity := make([]float64, len(fields)-3)
		for i, cell := range fields[3:] {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, models.NewDataError("bad intensity", "line %d: fraction %d value %q is not numeric", lineNo, i+1, cell)
			}
			intensity[i] = v
		}
		condition := fields[1]
		rows[condition] = append(rows[condition], profile.Row{
			ProteinID: fields[0],
			Condition: condition,
			Replicate: replicate,
			Intensity: intensity,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading profile table: %w", err)
	}
	if len(rows) == 0 {
		return nil, models.NewDataError("empty table", "%s contains no profile rows", path)
	}
	return rows, nil
}

// labeledPair is one reference interaction label.
type labeledPair struct {
	Pair  models.PairKey
	Label string
}

// readLabelTable parses the reference-pair TSV: protein_a, protein_b, label.
func readLabelTable(path string) ([]labeledPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening label table: %w", err)
	}
	defer f.Close()

	var labels []labeledPair
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if lineNo == 1 || line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, models.NewDataError("short row",
				"line %d: expected protein_a, protein_b, label", lineNo)
		}
		labels = append(labels, labeledPair{
			Pair:  models.NewPairKey(fields[0], fields[1]),
			Label: fields[2],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading label table: %w", err)
	}
	if len(labels) == 0 {
		return nil, models.NewDataError("empty table", "%s contains no label rows", path)
	}
	return labels, nil
}

// writeComplexTable writes the complex-call TSV, conditions in sorted order.
func writeComplexTable(path string, complexes map[string][]*models.ComplexCandidate) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating complex table: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "complex_id\tcondition\tmembers\tsize\tcohesion\tconfidence\tstoichiometry")

	conditions := make([]string, 0, len(complexes))
	for c := range complexes {
		conditions = append(conditions, c)
	}
	sort.Strings(conditions)

	for _, condition := range conditions {
		for _, c := range complexes[condition] {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4f\t%s\t%s\n",
				c.ID, c.Condition, strings.Join(c.Members, ";"), c.Size(),
				c.Cohesion, c.Confidence, formatStoichiometry(c))
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing complex table: %w", err)
	}
	return f.Close()
}

func formatStoichiometry(c *models.ComplexCandidate) string {
	if len(c.Stoichiometry) == 0 {
		return ""
	}
	parts := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		parts = append(parts, fmt.Sprintf("%s:%.2f", m, c.Stoichiometry[m]))
	}
	return strings.Join(parts, ";")
}

// writeDifferentialTable writes the differential-call TSV.
func writeDifferentialTable(path string, calls []*models.DifferentialCall) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating differential table: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "complex_id\tcondition_a\tcondition_b\tjaccard\tlog2_fc\tp_value\tadj_p_value\tdirection\texclusive\texclusive_to\tbayes_prob\tmatched_id")
	for _, c := range calls {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.4f\t%.6g\t%.6g\t%s\t%t\t%s\t%.4f\t%s\n",
			c.ComplexID, c.ConditionA, c.ConditionB, c.Jaccard, c.Log2FC,
			c.PValue, c.AdjPValue, c.Direction, c.Exclusive, c.ExclusiveTo,
			c.BayesProb, c.MatchedID)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing differential table: %w", err)
	}
	return f.Close()
}
