// Package ordonnance implements the deterministic text heuristics that turn
// raw OCR or PDF text into a structured prescription record: line
// classification, field extraction, confidence scoring, canonical
// normalization and the frontend shape transform.
package ordonnance

import (
	"regexp"
	"strings"
)

// Tag is the semantic bucket a classified line belongs to.
type Tag string

const (
	TagPrescriber       Tag = "prescripteur"
	TagDatePrescription Tag = "date_prescription"
	TagPatient          Tag = "patient"
	TagMedication       Tag = "medicaments"
	TagOther            Tag = "informations_complementaires"
)

var frenchMonths = []string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

var (
	pairedPhoneRe  = regexp.MustCompile(`\d{2}\s\d{2}\s\d{2}\s\d{2}\s\d{2}`)
	tenDigitsRe    = regexp.MustCompile(`\d{10}`)
	leDateLineRe   = regexp.MustCompile(`(?i)^le\s+\d{1,2}\s+\S+\s+\d{4}$`)
	slashDateLine  = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
	wordDateLineRe = regexp.MustCompile(`(?i)^\d{1,2}\s+\S+\s+\d{4}$`)
	gramTokenRe    = regexp.MustCompile(`\d+m?g\b`)
	upperRunRe     = regexp.MustCompile(`^[A-ZÀÁÂÃÄÅÆÇÈÉÊËÌÍÎÏÐÑÒÓÔÕÖØÙÚÛÜÝÞ][A-ZÀÁÂÃÄÅÆÇÈÉÊËÌÍÎÏÐÑÒÓÔÕÖØÙÚÛÜÝÞ\s]+`)
	capsWordRe     = regexp.MustCompile(`[A-Z]{3,}`)
)

var prescriberMarkers = []string{
	"médecin", "généraliste", "docteur", "dr.", "dr ",
	"@", "tel", "tél", "rue", "avenue", "boulevard", "phone",
}

var patientMarkers = []string{
	"m. ", "mme ", "melle ", "né ", "née ", "né(e)", "née(e)",
}

var posologyMarkers = []string{
	"fois", "jour", "mg", " g ", "sachet", "comprimé", "comp", "cp",
	"ml", "matin", "soir", "midi",
}

var knownDrugNames = []string{
	"doliprane", "paracétamol", "amoxicilline", "ibuprofène", "aspirine",
}

// classifyRule pairs a tag with its match predicate. Rules are evaluated in
// order and the first match wins.
type classifyRule struct {
	tag   Tag
	match func(line, lower string) bool
}

var classifyRules = []classifyRule{
	{TagPrescriber, isPrescriberLine},
	{TagDatePrescription, isPrescriptionDateLine},
	{TagPatient, isPatientLine},
	{TagMedication, isMedicationLine},
}

func isPrescriberLine(_, lower string) bool {
	for _, m := range prescriberMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	if strings.Contains(lower, "né") {
		return false
	}
	return pairedPhoneRe.MatchString(lower) || tenDigitsRe.MatchString(lower)
}

func isPrescriptionDateLine(_, lower string) bool {
	if strings.Contains(lower, "le ") && strings.Contains(lower, "202") {
		return true
	}
	if leDateLineRe.MatchString(lower) || slashDateLine.MatchString(lower) || wordDateLineRe.MatchString(lower) {
		return true
	}
	if strings.HasPrefix(lower, "le ") {
		for _, month := range frenchMonths {
			if strings.Contains(lower, month) {
				return true
			}
		}
	}
	return false
}

func isPatientLine(_, lower string) bool {
	for _, m := range patientMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return strings.HasPrefix(lower, "m.") ||
		strings.HasPrefix(lower, "mme") ||
		strings.HasPrefix(lower, "melle")
}

func isMedicationLine(line, lower string) bool {
	for _, m := range posologyMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	if gramTokenRe.MatchString(lower) {
		return true
	}
	if upperRunRe.MatchString(line) || capsWordRe.MatchString(line) {
		return true
	}
	for _, drug := range knownDrugNames {
		if strings.Contains(lower, drug) {
			return true
		}
	}
	return false
}

// Classify tags a single line. Pure and deterministic.
func Classify(line string) Tag {
	lower := strings.ToLower(line)
	for _, rule := range classifyRules {
		if rule.match(line, lower) {
			return rule.tag
		}
	}
	return TagOther
}

// StructureText groups the lines of raw text into five headed sections and
// concatenates them. The result is an input hint for the structuring call
// downstream, never an authoritative parse. Empty input passes through.
func StructureText(text string) string {
	if text == "" {
		return text
	}

	sections := map[Tag][]string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		tag := Classify(line)
		sections[tag] = append(sections[tag], line)
	}

	var b strings.Builder
	appendSection := func(header string, lines []string, trailing string) {
		if len(lines) == 0 {
			return
		}
		b.WriteString(header + ":\n")
		b.WriteString(strings.Join(lines, "\n") + trailing)
	}
	appendSection("PRESCRIPTEUR", sections[TagPrescriber], "\n\n")
	appendSection("DATE_PRESCRIPTION", sections[TagDatePrescription], "\n\n")
	appendSection("PATIENT", sections[TagPatient], "\n\n")
	appendSection("MEDICAMENTS", sections[TagMedication], "\n\n")
	appendSection("INFORMATIONS_COMPLEMENTAIRES", sections[TagOther], "\n")

	return strings.TrimSpace(b.String())
}
