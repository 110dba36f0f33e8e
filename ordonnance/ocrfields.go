package ordonnance

import (
	"regexp"
	"strings"

	"github.com/medicalia/ordonnances-api/ordonnance/entities"
)

// NotProvided marks a field the handwritten OCR mapping could not fill.
const NotProvided = "Non renseigné"

// UnidentifiedMedication names a medication line with a dosage but no
// readable name.
const UnidentifiedMedication = "Médicament non identifié"

var civilityNameRe = regexp.MustCompile(`(?i)^(m\.|mme|melle|monsieur|madame)\s+([A-ZÀÁÂÃÄÅÆÇÈÉÊËÌÍÎÏÐÑÒÓÔÕÖØÙÚÛÜÝÞ][a-zàáâãäåæçèéêëìíîïðñòóôõöøùúûüýþ\s-]+)`)

// OCRFields is the deterministic mapping of handwritten OCR text onto the
// stored-record fields.
type OCRFields struct {
	PatientName string
	DoctorName  string
	Medications []entities.Medication
}

// MapOCRFields derives stored-record fields from raw OCR text. Unlike
// AnalyzeText it substitutes readable placeholders for missing names so the
// record stays presentable.
func MapOCRFields(ocrText string) OCRFields {
	extracted := AnalyzeText(ocrText)

	patientName := extracted.Patient.Name
	if patientName == "" {
		for _, line := range strings.Split(strings.TrimSpace(ocrText), "\n") {
			if m := civilityNameRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
				patientName = strings.TrimSpace(m[2])
				break
			}
		}
	}
	if patientName == "" {
		patientName = NotProvided
	}

	doctorName := extracted.Doctor.Name
	if doctorName == "" {
		doctorName = NotProvided
	}

	medications := make([]entities.Medication, 0, len(extracted.Prescription))
	for _, p := range extracted.Prescription {
		name := p.Medicament
		if name == "" {
			name = UnidentifiedMedication
		}
		medications = append(medications, entities.Medication{
			Name:      name,
			Dosage:    p.Dosage,
			Frequency: p.Posologie,
			Duration:  p.Duration,
		})
	}

	return OCRFields{
		PatientName: patientName,
		DoctorName:  doctorName,
		Medications: medications,
	}
}
