package scoring

import (
	"fmt"
	"strings"

	"github.com/crossinsure/crossinsure/pkg/model"
)

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

func companyDetails(matches []*model.Match) string {
	orgs := model.Organizations(matches)
	switch {
	case len(orgs) > 1:
		return fmt.Sprintf(" WARNING: Similar claims detected across %d different insurance companies (%s). This is a major fraud indicator.",
			len(orgs), strings.Join(orgs, ", "))
	case len(orgs) == 1:
		return fmt.Sprintf(" Similar claim(s) found at %s.", orgs[0])
	}
	return ""
}

// Explain renders the adjuster-facing summary of an assessment
func Explain(score float64, level model.RiskLevel, matches []*model.Match) string {
	details := companyDetails(matches)

	switch level {
	case model.RiskLevelLow:
		if len(matches) == 0 {
			return "Claim shows low fraud risk. No similar historical incidents found across any insurance company. Standard verification procedures recommended."
		}
		return "Claim shows low fraud risk. No significant matches to historical incidents." + details + " Recommend approval with standard processing."

	case model.RiskLevelMedium:
		return fmt.Sprintf("Claim shows medium fraud risk (%s). Found %d similar historical incident(s).%s Recommend standard verification procedures.",
			percent(score), len(matches), details)

	case model.RiskLevelHigh:
		return fmt.Sprintf("Claim shows high fraud risk (%s). Significant similarity to %d historical incident(s).%s Recommend detailed investigation and verification.",
			percent(score), len(matches), details)

	default:
		return fmt.Sprintf("Claim shows CRITICAL fraud risk (%s). Multiple matches to historical incidents.%s Recommend immediate investigation and potential fraud referral.",
			percent(score), details)
	}
}

// RiskFactors lists the concrete observations behind an assessment
func RiskFactors(matches []*model.Match, severity float64) []string {
	if len(matches) == 0 {
		return []string{"No similar historical incidents found"}
	}

	best := matches[0]
	org := best.Organization
	if org == "" {
		org = "Unknown Company"
	}

	factors := []string{
		fmt.Sprintf("High similarity (%s) to claim at %s - Image: %s", percent(best.Overall), org, percent(best.Scores.Image)),
	}
	if best.Scores.Temporal > 0.8 {
		factors = append(factors, fmt.Sprintf("Similar incident timing detected (match at %s)", org))
	}
	if best.Scores.Spatial > 0.8 {
		factors = append(factors, fmt.Sprintf("Similar location detected (match at %s)", org))
	}

	if orgs := model.Organizations(matches); len(orgs) > 1 {
		factors = append(factors, fmt.Sprintf("CRITICAL: Similar claims found at %d different companies: %s",
			len(orgs), strings.Join(orgs, ", ")))
	}
	if len(matches) > 2 {
		factors = append(factors, fmt.Sprintf("Multiple (%d) similar historical incidents found", len(matches)))
	}
	if severity < 0.3 {
		factors = append(factors, "Low damage severity but high similarity pattern")
	}
	return factors
}
