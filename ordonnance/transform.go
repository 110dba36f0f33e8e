package ordonnance

import (
	"strings"

	"github.com/medicalia/ordonnances-api/ordonnance/entities"
)

// TransformForFrontend renames the canonical ordonnance into the shape the
// mobile client consumes: prescription becomes medicaments, each entry's
// medicament key becomes name, entries that are blank after trimming are
// dropped and appointment fields fall back to empty strings instead of
// nulls.
func TransformForFrontend(c entities.Canonical) entities.Frontend {
	medicaments := make([]entities.FrontendMedicament, 0, len(c.Prescription))
	for _, p := range c.Prescription {
		m := entities.FrontendMedicament{
			Name:      p.Medicament,
			Dosage:    p.Dosage,
			Posologie: p.Posologie,
			Duration:  p.Duration,
		}
		if isBlankMedicament(m) {
			continue
		}
		medicaments = append(medicaments, m)
	}

	appointments := make([]entities.FrontendAppointment, 0, len(c.Appointments))
	for _, apt := range c.Appointments {
		appointments = append(appointments, entities.FrontendAppointment{
			AppointmentTitle: orDefault(apt.AppointmentTitle, DefaultAppointmentTitle),
			DoctorName:       deref(apt.DoctorName),
			DatetimeISO:      deref(apt.DatetimeISO),
			Location:         deref(apt.Location),
		})
	}

	return entities.Frontend{
		Doctor:                 c.Doctor,
		Patient:                c.Patient,
		Medicaments:            medicaments,
		AdditionalInstructions: c.AdditionalInstructions,
		Appointments:           appointments,
		IssueDate:              c.IssueDate,
		ConfidenceScore:        c.ConfidenceScore,
		Source:                 c.Source,
		RawText:                c.RawText,
	}
}

func isBlankMedicament(m entities.FrontendMedicament) bool {
	return strings.TrimSpace(m.Name) == "" &&
		strings.TrimSpace(m.Dosage) == "" &&
		strings.TrimSpace(m.Posologie) == "" &&
		strings.TrimSpace(m.Duration) == ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
