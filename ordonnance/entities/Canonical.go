package entities

// RDV is the single canonical appointment attached to an ordonnance.
// DoctorName here is the practitioner to see, not the prescriber.
type RDV struct {
	AppointmentTitle string  `json:"appointmentTitle"`
	DoctorName       *string `json:"doctorName"`
	DatetimeISO      *string `json:"datetimeISO"`
	Location         *string `json:"location"`
	Note             *string `json:"note"`
}

// Canonical is the schema-stable ordonnance every ingestion path converges
// to. All fields are always defined: empty string or null, never absent.
type Canonical struct {
	Doctor                 Doctor              `json:"doctor"`
	Patient                Patient             `json:"patient"`
	Prescription           []PrescriptionEntry `json:"prescription"`
	AdditionalInstructions string              `json:"additionalInstructions"`
	Rdv                    *RDV                `json:"rdv"`
	Appointments           []RDV               `json:"appointments"`
	IssueDate              string              `json:"issueDate"`
	ConfidenceScore        float64             `json:"confidenceScore"`
	Source                 string              `json:"source"`
	RawText                string              `json:"rawText"`
}
