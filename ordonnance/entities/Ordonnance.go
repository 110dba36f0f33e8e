package entities

// Doctor identifies the prescribing practitioner. RPPS is the French
// 11-digit practitioner identifier and may be empty when not found.
type Doctor struct {
	Name       string `json:"name"`
	Speciality string `json:"speciality"`
	RPPS       string `json:"rpps"`
}

type Patient struct {
	Name      string `json:"name"`
	BirthDate string `json:"birthDate"`
}

// PrescriptionEntry is one medication line as extracted from the text.
// Entries keep first-appearance order and are never deduplicated.
type PrescriptionEntry struct {
	Medicament string `json:"medicament"`
	Dosage     string `json:"dosage"`
	Posologie  string `json:"posologie"`
	Duration   string `json:"duration"`
}

// Extracted is the output of the deterministic text analysis. Every field
// is always present, even for empty input.
type Extracted struct {
	Doctor                 Doctor              `json:"doctor"`
	Patient                Patient             `json:"patient"`
	Prescription           []PrescriptionEntry `json:"prescription"`
	AdditionalInstructions string              `json:"additionalInstructions"`
	Appointments           []string            `json:"appointments"`
	IssueDate              string              `json:"issueDate"`
	ConfidenceScore        float64             `json:"confidenceScore"`
}
