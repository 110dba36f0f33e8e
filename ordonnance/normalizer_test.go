package ordonnance

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/medicalia/ordonnances-api/ordonnance/entities"
)

func decodeDoc(t *testing.T, raw string) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("invalid test document: %v", err)
	}
	return doc
}

func assertCanonicalShape(t *testing.T, c entities.Canonical) {
	t.Helper()
	if c.Prescription == nil {
		t.Error("Prescription must never be nil")
	}
	if c.Appointments == nil {
		t.Error("Appointments must never be nil")
	}
	if c.Source != SourceOCR {
		t.Errorf("source = %q, want %q", c.Source, SourceOCR)
	}
	if c.ConfidenceScore < 0 || c.ConfidenceScore > 1 {
		t.Errorf("confidence %v out of range", c.ConfidenceScore)
	}
}

func TestNormalizeShapeInvariance(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty object", `{}`},
		{"structured", `{"doctor":{"name":"Martin"},"patient":{"name":"Durand"},"prescription":[{"medicament":"Doliprane","dosage":"500mg"}]}`},
		{"legacy medications", `{"doctorName":"Martin","patientName":"Durand","medications":[{"name":"Doliprane","frequency":"matin"}]}`},
		{"legacy medicaments", `{"medicaments":[{"nom":"Doliprane","frequence":"2 fois","duree":"5 jours"}]}`},
		{"garbage values", `{"doctor":12,"patient":null,"prescription":"nope","confidenceScore":"abc"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Normalize(decodeDoc(t, tt.doc), "raw")
			assertCanonicalShape(t, c)
			if c.RawText != "raw" {
				t.Errorf("rawText = %q, want %q", c.RawText, "raw")
			}
		})
	}
}

func TestNormalizeFieldFallbacks(t *testing.T) {
	c := Normalize(decodeDoc(t, `{"medicaments":[{"nom":"Doliprane","frequence":"2 fois","duree":"5 jours"}],"doctorName":"Dupont","instructions":"a jeun","datePrescription":"01/02/2024"}`), "")

	if c.Doctor.Name != "Dupont" {
		t.Errorf("doctor name = %q, want %q", c.Doctor.Name, "Dupont")
	}
	if len(c.Prescription) != 1 {
		t.Fatalf("prescription count = %d, want 1", len(c.Prescription))
	}
	p := c.Prescription[0]
	if p.Medicament != "Doliprane" || p.Posologie != "2 fois" || p.Duration != "5 jours" {
		t.Errorf("alternate key spellings not resolved: %+v", p)
	}
	if c.AdditionalInstructions != "a jeun" {
		t.Errorf("instructions = %q, want %q", c.AdditionalInstructions, "a jeun")
	}
	if c.IssueDate != "01/02/2024" {
		t.Errorf("issueDate = %q, want %q", c.IssueDate, "01/02/2024")
	}
}

func TestNormalizeFlatFieldFallbacksOnEveryShape(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"structured without nested fields", `{"doctor":{"name":"Martin"},"patient":{"name":"Durand"},"speciality":"cardiologue","rpps":"10101010101","birthDate":"02/03/1985"}`},
		{"flat only", `{"doctorName":"Martin","patientName":"Durand","speciality":"cardiologue","rpps":"10101010101","birthDate":"02/03/1985","medications":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Normalize(decodeDoc(t, tt.doc), "")

			if c.Doctor.Speciality != "cardiologue" {
				t.Errorf("speciality = %q, want flat fallback", c.Doctor.Speciality)
			}
			if c.Doctor.RPPS != "10101010101" {
				t.Errorf("rpps = %q, want flat fallback", c.Doctor.RPPS)
			}
			if c.Patient.BirthDate != "02/03/1985" {
				t.Errorf("birthDate = %q, want flat fallback", c.Patient.BirthDate)
			}
		})
	}

	// Nested values still win over the flat spellings.
	c := Normalize(decodeDoc(t, `{"doctor":{"name":"Martin","speciality":"généraliste","rpps":"222"},"patient":{"name":"Durand","birthDate":"01/01/1990"},"speciality":"cardiologue","rpps":"111","birthDate":"02/03/1985"}`), "")
	if c.Doctor.Speciality != "généraliste" || c.Doctor.RPPS != "222" || c.Patient.BirthDate != "01/01/1990" {
		t.Errorf("nested fields overridden by flat ones: %+v %+v", c.Doctor, c.Patient)
	}
}

func TestNormalizeStructuredAcceptsMedicationArrays(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"medications next to doctor object", `{"doctor":{"name":"Martin"},"medications":[{"name":"Doliprane","dosage":"500mg"}]}`},
		{"medicaments next to doctor object", `{"doctor":{"name":"Martin"},"medicaments":[{"nom":"Doliprane","dosage":"500mg"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Normalize(decodeDoc(t, tt.doc), "")

			if len(c.Prescription) != 1 {
				t.Fatalf("prescription count = %d, want 1", len(c.Prescription))
			}
			if c.Prescription[0].Medicament != "Doliprane" || c.Prescription[0].Dosage != "500mg" {
				t.Errorf("prescription entry = %+v", c.Prescription[0])
			}
		})
	}
}

func TestNormalizeIdempotence(t *testing.T) {
	docs := []string{
		`{}`,
		`{"doctor":{"name":"Martin","speciality":"généraliste","rpps":"12345678901"},"patient":{"name":"Durand","birthDate":"01/01/1990"},"prescription":[{"medicament":"Doliprane","dosage":"500mg","posologie":"matin","duration":"5 jours"}],"rdv":{"appointmentTitle":"Échographie cardiaque","doctorName":"Dr Petit","date":"12/02/2024","heure":"14h30","location":"Hôpital Nord"},"issueDate":"11/02/2024","confidenceScore":0.83}`,
		`{"medications":[{"name":"Doliprane"}],"doctorName":"Martin"}`,
	}

	for _, doc := range docs {
		once := Normalize(decodeDoc(t, doc), "raw")

		encoded, err := json.Marshal(once)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		twice := Normalize(decodeDoc(t, string(encoded)), "raw")

		if !reflect.DeepEqual(once, twice) {
			t.Errorf("normalization not idempotent for %s:\nonce:  %+v\ntwice: %+v", doc, once, twice)
		}
	}
}

func TestNormalizeRdvFromLegacyAppointments(t *testing.T) {
	c := Normalize(decodeDoc(t, `{"appointments":[{"title":"RDV cardiologie","doctor":"docteur Petit","date":"03/03/2024"}]}`), "")

	if c.Rdv == nil {
		t.Fatal("expected rdv from legacy appointments array")
	}
	if c.Rdv.AppointmentTitle != "Cardiologie" {
		t.Errorf("title = %q, want %q", c.Rdv.AppointmentTitle, "Cardiologie")
	}
	if c.Rdv.DoctorName == nil || *c.Rdv.DoctorName != "Dr Petit" {
		t.Errorf("doctorName = %v, want Dr Petit", c.Rdv.DoctorName)
	}
	if c.Rdv.DatetimeISO == nil || *c.Rdv.DatetimeISO != "2024-03-03T09:00:00+01:00" {
		t.Errorf("datetimeISO = %v, want 2024-03-03T09:00:00+01:00", c.Rdv.DatetimeISO)
	}
	if len(c.Appointments) != 1 {
		t.Errorf("appointments length = %d, want 1", len(c.Appointments))
	}
}

func TestNormalizeConfidence(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want float64
	}{
		{"number", `{"confidenceScore":0.456}`, 0.46},
		{"above one", `{"confidenceScore":7}`, 1},
		{"negative", `{"confidenceScore":-2}`, 0},
		{"numeric string", `{"confidenceScore":"0.8"}`, 0.8},
		{"garbage string", `{"confidenceScore":"high"}`, 0},
		{"absent", `{}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Normalize(decodeDoc(t, tt.doc), "")
			if c.ConfidenceScore != tt.want {
				t.Errorf("confidence = %v, want %v", c.ConfidenceScore, tt.want)
			}
		})
	}
}

func TestCleanAppointmentTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"strips stop words", "RDV chez le docteur pour cardiologie", "Cardiologie"},
		{"word boundary only", "rdvmatic express", "Rdvmatic express"},
		{"empty after cleaning", "rdv chez le docteur", ""},
		{"capitalize first lowercase rest", "ÉCHOGRAPHIE RENALE", "Échographie renale"},
		{"default passes through", DefaultAppointmentTitle, DefaultAppointmentTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanAppointmentTitle(tt.title); got != tt.want {
				t.Errorf("CleanAppointmentTitle(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestCleanAppointmentTitleTruncation(t *testing.T) {
	long := "Consultation " + strings.Repeat("x", 60)
	got := CleanAppointmentTitle(long)

	if len([]rune(got)) != 50 {
		t.Errorf("truncated length = %d, want 50", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated title %q should end with ellipsis", got)
	}
}

func TestNormalizeDoctorName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		nilOK bool
	}{
		{"plain name", "martin", "Dr Martin", false},
		{"strips one title", "Docteur Martin", "Dr Martin", false},
		{"strips two titles", "Dr Pr Martin Dupont", "Dr Martin Dupont", false},
		{"uppercase input", "MARTIN DUPONT", "Dr Martin Dupont", false},
		{"hyphenated keeps one capital", "JEAN-PIERRE MARTIN", "Dr Jean-pierre Martin", false},
		{"apostrophe keeps one capital", "D'ARCY", "Dr D'arcy", false},
		{"empty", "", "", true},
		{"title only", "docteur ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDoctorName(tt.input)
			if tt.nilOK {
				if got != nil {
					t.Errorf("NormalizeDoctorName(%q) = %q, want nil", tt.input, *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("NormalizeDoctorName(%q) = %v, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDateTimeISO(t *testing.T) {
	tests := []struct {
		name    string
		dateStr string
		timeStr string
		want    string
		wantNil bool
	}{
		{"date and time", "12/02/2024", "14h", "2024-02-12T14:00:00+01:00", false},
		{"date and full time", "12/02/2024", "14h30", "2024-02-12T14:30:00+01:00", false},
		{"date only defaults to nine", "03/03/2024", "", "2024-03-03T09:00:00+01:00", false},
		{"time embedded in date", "12/02/2024 à 15:45", "", "2024-02-12T15:45:00+01:00", false},
		{"dash separators", "5-6-2024", "", "2024-06-05T09:00:00+01:00", false},
		{"iso passthrough", "2024-02-12T14:00:00+01:00", "", "2024-02-12T14:00:00+01:00", false},
		{"empty", "", "", "", true},
		{"no date pattern", "mardi prochain", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDateTimeISO(tt.dateStr, tt.timeStr)
			if tt.wantNil {
				if got != nil {
					t.Errorf("ParseDateTimeISO(%q, %q) = %q, want nil", tt.dateStr, tt.timeStr, *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("ParseDateTimeISO(%q, %q) = %v, want %q", tt.dateStr, tt.timeStr, got, tt.want)
			}
		})
	}
}

func TestDetectShape(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want Shape
	}{
		{"empty", `{}`, ShapeUnknown},
		{"structured", `{"doctor":{"name":"x"}}`, ShapeStructured},
		{"prescription array", `{"prescription":[]}`, ShapeStructured},
		{"legacy medications", `{"medications":[]}`, ShapeLegacyFlat},
		{"legacy flat names", `{"doctorName":"x"}`, ShapeLegacyFlat},
		{"canonical", `{"source":"OCR","rawText":"x","appointments":[],"doctor":{"name":""}}`, ShapeCanonical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectShape(decodeDoc(t, tt.doc)); got != tt.want {
				t.Errorf("DetectShape = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeExtractedShape(t *testing.T) {
	c := NormalizeExtracted(AnalyzeText("Dr Martin\nDoliprane 500mg matin"), "Dr Martin\nDoliprane 500mg matin")
	assertCanonicalShape(t, c)

	if c.Rdv != nil {
		t.Error("extractor output never yields a structured rdv")
	}
	if c.Doctor.Name != "Martin" {
		t.Errorf("doctor name = %q, want Martin", c.Doctor.Name)
	}
}
