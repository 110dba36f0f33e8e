package ordonnance

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/medicalia/ordonnances-api/ordonnance/entities"
)

// SourceOCR is the fixed source tag every canonical ordonnance carries.
const SourceOCR = "OCR"

// DefaultAppointmentTitle replaces appointment titles that clean down to
// nothing.
const DefaultAppointmentTitle = "Rendez-vous médical"

// Shape identifies which historical input format a structured document uses.
// Detection runs once up front and routes the document through the matching
// adapter.
type Shape int

const (
	// ShapeUnknown covers empty or unrecognizable documents.
	ShapeUnknown Shape = iota
	// ShapeCanonical is output of a previous normalization pass.
	ShapeCanonical
	// ShapeStructured is the nested doctor/patient/prescription format
	// produced by the extractor and the AI structuring call.
	ShapeStructured
	// ShapeLegacyFlat is the older flat format with doctorName/patientName
	// keys and a medications or medicaments array.
	ShapeLegacyFlat
)

var (
	titleStopWords = []string{
		"rendez-vous", "rdv", "rdv:", "rendez vous",
		"chez", "à", "le", "la", "les", "pour", "avec",
		"docteur", "dr", "pr", "professeur", "médecin",
	}
	titleStopRes = compileStopWords(titleStopWords)

	multiSpaceRe   = regexp.MustCompile(`\s+`)
	doctorTitleRe  = regexp.MustCompile(`(?i)^(docteur|dr\.?|pr\.?|professeur)(\s+|$)`)
	dmyRe          = regexp.MustCompile(`(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4})`)
	hourMinuteRe   = regexp.MustCompile(`(\d{1,2})[:h](\d{2})?`)
	leadingFloatRe = regexp.MustCompile(`^[+-]?\d*\.?\d+`)
)

func compileStopWords(words []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		res[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return res
}

// CleanAppointmentTitle strips stop words as whole words, collapses
// whitespace, caps the length at 50 characters and capitalizes the first
// letter only. Returns "" when nothing remains. The default title is
// already clean and passes through unchanged.
func CleanAppointmentTitle(title string) string {
	cleaned := strings.TrimSpace(title)
	if cleaned == "" {
		return ""
	}
	if cleaned == DefaultAppointmentTitle {
		return cleaned
	}

	for _, re := range titleStopRes {
		cleaned = strings.TrimSpace(re.ReplaceAllString(cleaned, ""))
	}
	cleaned = strings.TrimSpace(multiSpaceRe.ReplaceAllString(cleaned, " "))

	if len([]rune(cleaned)) > 50 {
		cleaned = string([]rune(cleaned)[:47]) + "..."
	}

	return capitalizeFirst(cleaned)
}

func capitalizeFirst(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// NormalizeDoctorName strips leading practitioner titles (at most twice),
// capitalizes each space-separated word and prefixes "Dr ". Returns nil when
// nothing remains. Only spaces split words, so hyphenated and apostrophe
// names keep a single capital ("Jean-pierre", "D'arcy").
func NormalizeDoctorName(name string) *string {
	cleaned := strings.TrimSpace(name)
	cleaned = doctorTitleRe.ReplaceAllString(cleaned, "")
	cleaned = doctorTitleRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(multiSpaceRe.ReplaceAllString(cleaned, " "))
	if cleaned == "" {
		return nil
	}
	words := strings.Split(cleaned, " ")
	for i, w := range words {
		words[i] = capitalizeFirst(w)
	}
	result := "Dr " + strings.Join(words, " ")
	return &result
}

// ParseDateTimeISO builds "YYYY-MM-DDTHH:MM:00+01:00" from a DD/MM/YYYY
// style date (separators / - .) and an optional HH:MM or HHhMM time taken
// from timeStr, or embedded in dateStr. Time defaults to 09:00. A dateStr
// that already looks like an ISO datetime passes through unchanged; any
// other unparseable date yields nil.
func ParseDateTimeISO(dateStr, timeStr string) *string {
	if dateStr == "" {
		return nil
	}

	m := dmyRe.FindStringSubmatch(dateStr)
	if m == nil {
		if strings.Contains(dateStr, "T") || strings.Contains(dateStr, "Z") {
			return &dateStr
		}
		return nil
	}
	day, month, year := m[1], m[2], m[3]

	hours, minutes := "09", "00"
	timeSource := timeStr
	if timeSource == "" {
		timeSource = dateStr
	}
	if tm := hourMinuteRe.FindStringSubmatch(timeSource); tm != nil {
		hours = padTwo(tm[1])
		if tm[2] != "" {
			minutes = tm[2]
		}
	}

	iso := year + "-" + padTwo(month) + "-" + padTwo(day) + "T" + hours + ":" + minutes + ":00+01:00"
	return &iso
}

func padTwo(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return math.Round(v*100) / 100
}

// confidenceFromAny accepts a number or a numeric string; anything else is 0.
func confidenceFromAny(v any) float64 {
	switch c := v.(type) {
	case float64:
		return clampConfidence(c)
	case int:
		return clampConfidence(float64(c))
	case string:
		if m := leadingFloatRe.FindString(strings.TrimSpace(c)); m != "" {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				return clampConfidence(f)
			}
		}
	}
	return 0
}

// map accessors: every lookup is total, absent or wrongly typed values fall
// through to the zero value.

func mapChild(doc map[string]any, key string) map[string]any {
	if doc == nil {
		return nil
	}
	if child, ok := doc[key].(map[string]any); ok {
		return child
	}
	return nil
}

func listChild(doc map[string]any, key string) ([]any, bool) {
	if doc == nil {
		return nil, false
	}
	l, ok := doc[key].([]any)
	return l, ok
}

func firstString(doc map[string]any, keys ...string) string {
	if doc == nil {
		return ""
	}
	for _, key := range keys {
		if s, ok := doc[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// DetectShape classifies a structured document into one of the known
// historical formats.
func DetectShape(doc map[string]any) Shape {
	if len(doc) == 0 {
		return ShapeUnknown
	}
	if src, _ := doc["source"].(string); src == SourceOCR {
		if _, hasRaw := doc["rawText"]; hasRaw {
			if _, hasApts := doc["appointments"]; hasApts {
				return ShapeCanonical
			}
		}
	}
	if mapChild(doc, "doctor") != nil || mapChild(doc, "patient") != nil {
		return ShapeStructured
	}
	if _, ok := listChild(doc, "prescription"); ok {
		return ShapeStructured
	}
	if _, ok := listChild(doc, "medications"); ok {
		return ShapeLegacyFlat
	}
	if _, ok := listChild(doc, "medicaments"); ok {
		return ShapeLegacyFlat
	}
	if firstString(doc, "doctorName", "patientName") != "" {
		return ShapeLegacyFlat
	}
	return ShapeUnknown
}

func adaptPrescriptionList(items []any) []entities.PrescriptionEntry {
	prescription := make([]entities.PrescriptionEntry, 0, len(items))
	for _, item := range items {
		p, _ := item.(map[string]any)
		prescription = append(prescription, entities.PrescriptionEntry{
			Medicament: firstString(p, "medicament", "name", "nom"),
			Dosage:     firstString(p, "dosage"),
			Posologie:  firstString(p, "posologie", "frequency", "frequence"),
			Duration:   firstString(p, "duration", "duree"),
		})
	}
	return prescription
}

// adaptRdv builds the canonical appointment from a raw rdv or legacy
// appointment object, running the three cleanup passes.
func adaptRdv(data map[string]any) *entities.RDV {
	if data == nil {
		return nil
	}

	title := CleanAppointmentTitle(firstString(data, "appointmentTitle", "title", "motif"))
	if title == "" {
		title = DefaultAppointmentTitle
	}

	rdv := &entities.RDV{
		AppointmentTitle: title,
		DoctorName:       NormalizeDoctorName(firstString(data, "doctorName", "doctor", "medecin")),
		DatetimeISO: ParseDateTimeISO(
			firstString(data, "datetimeISO", "datetime", "date"),
			firstString(data, "time", "heure"),
		),
	}
	if loc := strings.TrimSpace(firstString(data, "location", "lieu", "adresse", "address")); loc != "" {
		rdv.Location = &loc
	}
	if note := strings.TrimSpace(firstString(data, "note", "notes")); note != "" {
		rdv.Note = &note
	}
	return rdv
}

// passthroughRdv keeps an already-canonical appointment intact, only filling
// the title default.
func passthroughRdv(data map[string]any) *entities.RDV {
	if data == nil {
		return nil
	}
	rdv := &entities.RDV{AppointmentTitle: firstString(data, "appointmentTitle")}
	if rdv.AppointmentTitle == "" {
		rdv.AppointmentTitle = DefaultAppointmentTitle
	}
	if s := firstString(data, "doctorName"); s != "" {
		rdv.DoctorName = &s
	}
	if s := firstString(data, "datetimeISO"); s != "" {
		rdv.DatetimeISO = &s
	}
	if s := firstString(data, "location"); s != "" {
		rdv.Location = &s
	}
	if s := firstString(data, "note"); s != "" {
		rdv.Note = &s
	}
	return rdv
}

func resolveRdv(doc map[string]any, passthrough bool) *entities.RDV {
	adapt := adaptRdv
	if passthrough {
		adapt = passthroughRdv
	}
	if rdvData := mapChild(doc, "rdv"); rdvData != nil {
		return adapt(rdvData)
	}
	if apts, ok := listChild(doc, "appointments"); ok && len(apts) > 0 {
		if first, ok := apts[0].(map[string]any); ok {
			return adapt(first)
		}
	}
	return nil
}

// Normalize maps a structured document of any known shape onto the
// canonical ordonnance. Every output field is always defined and
// already-canonical input passes through unchanged.
func Normalize(doc map[string]any, rawText string) entities.Canonical {
	shape := DetectShape(doc)

	out := entities.Canonical{
		Prescription: []entities.PrescriptionEntry{},
		Appointments: []entities.RDV{},
		Source:       SourceOCR,
		RawText:      rawText,
	}

	switch shape {
	case ShapeStructured, ShapeCanonical:
		doctor := mapChild(doc, "doctor")
		out.Doctor = entities.Doctor{
			Name:       firstString(doctor, "name"),
			Speciality: firstString(doctor, "speciality"),
			RPPS:       firstString(doctor, "rpps"),
		}
		patient := mapChild(doc, "patient")
		out.Patient = entities.Patient{
			Name:      firstString(patient, "name"),
			BirthDate: firstString(patient, "birthDate"),
		}
		if items, ok := listChild(doc, "prescription"); ok {
			out.Prescription = adaptPrescriptionList(items)
		} else if items, ok := listChild(doc, "medications"); ok {
			out.Prescription = adaptPrescriptionList(items)
		} else if items, ok := listChild(doc, "medicaments"); ok {
			out.Prescription = adaptPrescriptionList(items)
		}
	case ShapeLegacyFlat:
		out.Doctor = entities.Doctor{
			Name:       firstString(doc, "doctorName"),
			Speciality: firstString(doc, "speciality"),
			RPPS:       firstString(doc, "rpps"),
		}
		out.Patient = entities.Patient{
			Name:      firstString(doc, "patientName"),
			BirthDate: firstString(doc, "birthDate"),
		}
		if items, ok := listChild(doc, "medications"); ok {
			out.Prescription = adaptPrescriptionList(items)
		} else if items, ok := listChild(doc, "medicaments"); ok {
			out.Prescription = adaptPrescriptionList(items)
		}
	}

	// Flat fallbacks tolerated on every shape.
	if out.Doctor.Name == "" {
		out.Doctor.Name = firstString(doc, "doctorName")
	}
	if out.Doctor.Speciality == "" {
		out.Doctor.Speciality = firstString(doc, "speciality")
	}
	if out.Doctor.RPPS == "" {
		out.Doctor.RPPS = firstString(doc, "rpps")
	}
	if out.Patient.Name == "" {
		out.Patient.Name = firstString(doc, "patientName")
	}
	if out.Patient.BirthDate == "" {
		out.Patient.BirthDate = firstString(doc, "birthDate")
	}

	out.AdditionalInstructions = firstString(doc, "additionalInstructions", "instructions", "observations")
	out.IssueDate = firstString(doc, "issueDate", "date", "datePrescription")
	if doc != nil {
		out.ConfidenceScore = confidenceFromAny(doc["confidenceScore"])
	}

	out.Rdv = resolveRdv(doc, shape == ShapeCanonical)
	if out.Rdv != nil {
		out.Appointments = []entities.RDV{*out.Rdv}
	}

	if shape == ShapeCanonical {
		if raw := firstString(doc, "rawText"); rawText == "" && raw != "" {
			out.RawText = raw
		}
	}

	return out
}

// NormalizeExtracted lifts the deterministic extractor output into the
// canonical shape without a JSON round trip. Extractor appointments are raw
// strings, never structured, so rdv stays nil.
func NormalizeExtracted(e entities.Extracted, rawText string) entities.Canonical {
	prescription := e.Prescription
	if prescription == nil {
		prescription = []entities.PrescriptionEntry{}
	}
	return entities.Canonical{
		Doctor:                 e.Doctor,
		Patient:                e.Patient,
		Prescription:           prescription,
		AdditionalInstructions: e.AdditionalInstructions,
		Rdv:                    nil,
		Appointments:           []entities.RDV{},
		IssueDate:              e.IssueDate,
		ConfidenceScore:        clampConfidence(e.ConfidenceScore),
		Source:                 SourceOCR,
		RawText:                rawText,
	}
}
