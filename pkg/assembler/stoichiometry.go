package assembler

import "github.com/complexome/prophet/pkg/models"

// AttachStoichiometry estimates relative subunit stoichiometry for each
// candidate from apex intensities: every member's apex is divided by the
// smallest positive apex in the complex, so the least abundant subunit
// anchors at 1. Members without a positive apex get 0.
func AttachStoichiometry(candidates []*models.ComplexCandidate, apex map[string]float64) {
	for _, c := range candidates {
		minApex := 0.0
		for _, member := range c.Members {
			v := apex[member]
			if v > 0 && (minApex == 0 || v < minApex) {
				minApex = v
			}
		}
		if minApex == 0 {
			continue
		}
		c.Stoichiometry = make(map[string]float64, len(c.Members))
		for _, member := range c.Members {
			v := apex[member]
			if v <= 0 {
				c.Stoichiometry[member] = 0
				continue
			}
			c.Stoichiometry[member] = v / minApex
		}
	}
}
