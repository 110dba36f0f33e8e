package entities

// FrontendMedicament mirrors PrescriptionEntry with the rename the mobile
// client expects (medicament -> name).
type FrontendMedicament struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Posologie string `json:"posologie"`
	Duration  string `json:"duration"`
}

// FrontendAppointment carries empty strings instead of nulls because the
// mobile display layer cannot render null.
type FrontendAppointment struct {
	AppointmentTitle string `json:"appointmentTitle"`
	DoctorName       string `json:"doctorName"`
	DatetimeISO      string `json:"datetimeISO"`
	Location         string `json:"location"`
}

// OCRMeta records how the OCR result was obtained. ScoreOCR is a rough
// quality proxy based on text length, not a probability.
type OCRMeta struct {
	UsedPreprocess bool    `json:"usedPreprocess"`
	Fallback       bool    `json:"fallback"`
	ScoreOCR       float64 `json:"scoreOCR"`
}

type Frontend struct {
	Doctor                 Doctor                `json:"doctor"`
	Patient                Patient               `json:"patient"`
	Medicaments            []FrontendMedicament  `json:"medicaments"`
	AdditionalInstructions string                `json:"additionalInstructions"`
	Appointments           []FrontendAppointment `json:"appointments"`
	IssueDate              string                `json:"issueDate"`
	ConfidenceScore        float64               `json:"confidenceScore"`
	Source                 string                `json:"source"`
	RawText                string                `json:"rawText"`
	Meta                   *OCRMeta              `json:"meta,omitempty"`
}
