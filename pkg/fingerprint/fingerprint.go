// Package fingerprint derives the anonymized location, timing and severity
// signatures stored for every incident.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/crossinsure/crossinsure/pkg/model"
)

// Length is the number of hex characters kept from each digest
const Length = 16

var severityKeywords = []string{
	"total loss",
	"critical",
	"severe",
	"major",
	"extensive",
	"destroyed",
	"crushed",
	"fire",
	"explosion",
	"collision",
}

func digest(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:Length]
}

// Spatial returns the location signature of a zone. Equal zones always yield equal signatures.
func Spatial(zone model.LocationZone) string {
	return digest(string(zone))
}

// Temporal returns the timing signature of an incident. The incident date is
// generalized to weekday, month, 4-hour bucket and day of month. The window
// bounds are accepted for callers but do not contribute to the signature.
func Temporal(incidentDate, windowStart, windowEnd time.Time) string {
	pattern := fmt.Sprintf("%s_%s_%dh_%dd",
		incidentDate.Weekday().String(),
		incidentDate.Month().String(),
		incidentDate.Hour()/4*4,
		incidentDate.Day(),
	)
	return digest(pattern)
}

// Severity estimates incident severity in [0,1] from description length,
// number of attached images and damage keywords.
func Severity(description string, imageCount int) float64 {
	lengthFactor := math.Min(float64(utf8.RuneCountInString(description))/1000.0, 0.3)
	imageFactor := math.Min(float64(imageCount)/10.0, 0.3)

	lower := strings.ToLower(description)
	hits := 0
	for _, kw := range severityKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	keywordFactor := math.Min(float64(hits)/5.0, 0.4)

	return math.Min(lengthFactor+imageFactor+keywordFactor, 1.0)
}

// SeverityLabel buckets a severity score for display
func SeverityLabel(score float64) string {
	switch {
	case score < 0.3:
		return "low"
	case score < 0.6:
		return "moderate"
	default:
		return "high"
	}
}
