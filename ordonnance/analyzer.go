package ordonnance

import (
	"math"
	"regexp"
	"strings"

	"github.com/medicalia/ordonnances-api/ordonnance/entities"
)

var doctorMarkers = []string{"dr ", "docteur", "médecin", "prescripteur", "dr.", "doct."}

var specialityMarkers = []string{
	"spécialité", "specialite", "spécialiste en", "médecin généraliste", "généraliste",
}

var patientNameMarkers = []string{
	"identification du patient",
	"patient:",
	"patient :",
	"nom:",
	"nom :",
	"nom du patient",
	"m.",
	"mme",
	"melle",
	"monsieur",
	"madame",
}

var instructionMarkers = []string{
	"instructions", "observations", "remarques", "note", "précautions", "conseils",
}

var (
	leadingPunctRe = regexp.MustCompile(`^[:\-.,;]\s*`)
	civilityRe     = regexp.MustCompile(`(?i)^(m\.|mme|melle|monsieur|madame|mademoiselle)\s*`)
	nomLabelRe     = regexp.MustCompile(`(?i)^nom\s*:?\s*`)
	rppsRe         = regexp.MustCompile(`\b(\d{11})\b`)

	birthDateRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:né|née|naissance|né le|née le)\s*:?\s*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{4})`),
		regexp.MustCompile(`(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{4})`),
	}

	medicationIndicatorRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\d+\s*(mg|ml|g|µg|mcg)\b`),
		regexp.MustCompile(`(?i)comprimé`),
		regexp.MustCompile(`(?i)gélule`),
		regexp.MustCompile(`(?i)cp\b`),
		regexp.MustCompile(`(?i)fois\s+par\s+jour`),
		regexp.MustCompile(`(?i)\d+\s*(fois|fois/jour)`),
		regexp.MustCompile(`(?i)matin|midi|soir`),
		regexp.MustCompile(`(?i)jour|jours|semaine|semaines|mois`),
	}

	capitalizedWordRe = regexp.MustCompile(`^[A-ZÀÁÂÃÄÅÆÇÈÉÊËÌÍÎÏÐÑÒÓÔÕÖØÙÚÛÜÝÞ][a-zàáâãäåæçèéêëìíîïðñòóôõöøùúûüýþ]+`)
	allCapsWordRe     = regexp.MustCompile(`^[A-ZÀÁÂÃÄÅÆÇÈÉÊËÌÍÎÏÐÑÒÓÔÕÖØÙÚÛÜÝÞ]{2,}$`)
	startsWithDigitRe = regexp.MustCompile(`^\d`)
	unitWordRe        = regexp.MustCompile(`(?i)(mg|ml|g|comprimé|gélule)`)

	dosageRe = regexp.MustCompile(`(?i)(\d+\s*(?:mg|ml|g|µg|mcg|comprimé|gélule|cp)\b)`)

	posologieRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+\s*fois\s*par\s*jour)`),
		regexp.MustCompile(`(?i)(\d+\s*fois/jour)`),
		regexp.MustCompile(`(?i)(matin|midi|soir)`),
		regexp.MustCompile(`(?i)(\d+\s*fois)`),
		regexp.MustCompile(`(?i)(avant|après)\s*(?:les\s*)?repas`),
	}

	durationRe = regexp.MustCompile(`(?i)(\d+)\s*(jour|jours|semaine|semaines|mois)`)

	appointmentRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:rdv|rendez-vous|consultation)\s*:?\s*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{4})`),
		regexp.MustCompile(`(?i)(?:rdv|rendez-vous|consultation)\s*:?\s*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{4})\s*(?:à|@)?\s*(\d{1,2}[:h]\d{2})`),
	}

	issueDateRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:date|le)\s*:?\s*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{4})`),
		regexp.MustCompile(`(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{4})`),
	}
)

// extractDoctorName scans lines for the first doctor marker and keeps up to
// three tokens of whatever follows it.
func extractDoctorName(lines []string) string {
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, marker := range doctorMarkers {
			idx := strings.Index(lower, marker)
			if idx == -1 {
				continue
			}
			extracted := strings.TrimSpace(line[idx+len(marker):])
			extracted = strings.TrimSpace(leadingPunctRe.ReplaceAllString(extracted, ""))
			words := strings.Fields(extracted)
			if len(words) >= 1 {
				if len(words) > 3 {
					words = words[:3]
				}
				return strings.Join(words, " ")
			}
		}
	}
	return ""
}

func extractSpeciality(lines []string) string {
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, marker := range specialityMarkers {
			idx := strings.Index(lower, marker)
			if idx == -1 {
				continue
			}
			spec := strings.TrimSpace(line[idx+len(marker):])
			spec = leadingPunctRe.ReplaceAllString(spec, "")
			if spec != "" {
				return spec
			}
		}
	}
	return ""
}

// extractPatientName falls through to the next line when the marker leaves
// nothing on its own line, then strips civility and label prefixes.
func extractPatientName(lines []string) string {
	for i, line := range lines {
		lower := strings.ToLower(line)
		for _, marker := range patientNameMarkers {
			idx := strings.Index(lower, marker)
			if idx == -1 {
				continue
			}
			extracted := strings.TrimSpace(line[idx+len(marker):])
			if extracted == "" && i+1 < len(lines) {
				extracted = lines[i+1]
			}
			extracted = civilityRe.ReplaceAllString(extracted, "")
			extracted = nomLabelRe.ReplaceAllString(extracted, "")
			extracted = strings.TrimSpace(extracted)
			if len(extracted) > 1 {
				return extracted
			}
		}
	}
	return ""
}

func extractBirthDate(text string) string {
	for _, re := range birthDateRes {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// extractMedicamentName finds the first capitalized or all-caps token in the
// line and extends it with up to three following tokens, stopping at a digit
// or a dosage unit token.
func extractMedicamentName(words []string) string {
	for j, word := range words {
		if !capitalizedWordRe.MatchString(word) && !allCapsWordRe.MatchString(word) {
			continue
		}
		nameWords := []string{word}
		for k := j + 1; k < len(words) && k < j+4; k++ {
			if startsWithDigitRe.MatchString(words[k]) || unitWordRe.MatchString(words[k]) {
				break
			}
			nameWords = append(nameWords, words[k])
		}
		return strings.TrimSpace(strings.Join(nameWords, " "))
	}
	return ""
}

func extractPrescriptions(lines []string) []entities.PrescriptionEntry {
	prescription := []entities.PrescriptionEntry{}
	for _, line := range lines {
		indicated := false
		for _, re := range medicationIndicatorRes {
			if re.MatchString(line) {
				indicated = true
				break
			}
		}
		if !indicated {
			continue
		}

		entry := entities.PrescriptionEntry{
			Medicament: extractMedicamentName(strings.Fields(line)),
		}
		if m := dosageRe.FindStringSubmatch(line); m != nil {
			entry.Dosage = strings.TrimSpace(m[1])
		}
		for _, re := range posologieRes {
			if m := re.FindStringSubmatch(line); m != nil {
				if m[1] != "" {
					entry.Posologie = m[1]
				} else {
					entry.Posologie = m[0]
				}
				break
			}
		}
		if m := durationRe.FindStringSubmatch(line); m != nil {
			entry.Duration = m[1] + " " + m[2]
		}

		// A line only counts when it produced a name or a dosage.
		if entry.Medicament != "" || entry.Dosage != "" {
			prescription = append(prescription, entry)
		}
	}
	return prescription
}

// extractInstructions joins everything from the first instruction-section
// marker to the end of the text.
func extractInstructions(lines []string) string {
	for i, line := range lines {
		lower := strings.ToLower(line)
		for _, marker := range instructionMarkers {
			if strings.Contains(lower, marker) {
				return strings.TrimSpace(strings.Join(lines[i:], " "))
			}
		}
	}
	return ""
}

func extractAppointments(text string) []string {
	appointments := []string{}
	for _, re := range appointmentRes {
		for _, m := range re.FindAllString(text, -1) {
			appointments = append(appointments, strings.TrimSpace(m))
		}
	}
	return appointments
}

// extractIssueDate collects every date-like match and keeps the last one.
// The heuristic assumes the most recent mention is the issue date.
func extractIssueDate(text string) string {
	var allDates []string
	for _, re := range issueDateRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if m[1] != "" {
				allDates = append(allDates, m[1])
			} else {
				allDates = append(allDates, m[0])
			}
		}
	}
	if len(allDates) == 0 {
		return ""
	}
	return allDates[len(allDates)-1]
}

// AnalyzeText extracts a structured ordonnance from raw OCR or PDF text.
// It is a total function: every input, including the empty string, yields a
// fully shaped result.
func AnalyzeText(rawText string) entities.Extracted {
	result := entities.Extracted{
		Prescription: []entities.PrescriptionEntry{},
		Appointments: []string{},
	}
	if strings.TrimSpace(rawText) == "" {
		return result
	}

	text := strings.TrimSpace(rawText)
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	result.Doctor = entities.Doctor{
		Name:       extractDoctorName(lines),
		Speciality: extractSpeciality(lines),
		RPPS:       extractRPPS(text),
	}
	result.Patient = entities.Patient{
		Name:      extractPatientName(lines),
		BirthDate: extractBirthDate(text),
	}
	result.Prescription = extractPrescriptions(lines)
	result.AdditionalInstructions = extractInstructions(lines)
	result.Appointments = extractAppointments(text)
	result.IssueDate = extractIssueDate(text)
	result.ConfidenceScore = scoreConfidence(result)

	return result
}

func extractRPPS(text string) string {
	if m := rppsRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// scoreConfidence counts the six tracked field groups, adds a bonus for more
// than one prescription and another when doctor, patient and at least one
// prescription are all present, then clamps to 1 and rounds to 2 decimals.
func scoreConfidence(e entities.Extracted) float64 {
	found := 0
	if e.Doctor.Name != "" {
		found++
	}
	if e.Patient.Name != "" || e.Patient.BirthDate != "" {
		found++
	}
	if len(e.Prescription) > 0 {
		found++
	}
	if e.AdditionalInstructions != "" {
		found++
	}
	if len(e.Appointments) > 0 {
		found++
	}
	if e.IssueDate != "" {
		found++
	}

	score := float64(found) / 6.0
	if len(e.Prescription) > 1 {
		score += 0.1
	}
	if e.Doctor.Name != "" && e.Patient.Name != "" && len(e.Prescription) > 0 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return math.Round(score*100) / 100
}
