package entities

const (
	StatusARecuperer   = "a_recuperer"
	StatusRdvAPlanifer = "rdv_a_planifier"

	TypeMedicament = "MEDICAMENT"
	TypeRendezVous = "RENDEZ_VOUS"

	SourcePDF          = "pdf"
	SourceOCRManuscrit = "ocr_manuscrit"
)

// Medication is the simplified shape kept on stored records
// (posologie becomes frequency).
type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
}

// Stored is the process-lifetime ordonnance record. Only Status and IsRdv
// are ever mutated after creation.
type Stored struct {
	ID           string       `json:"id"`
	Source       string       `json:"source"`
	RawText      string       `json:"rawText"`
	DoctorName   *string      `json:"doctorName"`
	PatientName  *string      `json:"patientName"`
	Medications  []Medication `json:"medications"`
	Appointments []RDV        `json:"appointments"`
	Rdv          *RDV         `json:"rdv"`
	Status       string       `json:"status"`
	CreatedAt    string       `json:"createdAt"`
	Type         *string      `json:"type"`
	IsRdv        bool         `json:"isRdv,omitempty"`
}
