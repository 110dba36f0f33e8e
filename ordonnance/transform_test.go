package ordonnance

import (
	"testing"

	"github.com/medicalia/ordonnances-api/ordonnance/entities"
)

func TestTransformForFrontend(t *testing.T) {
	doctorName := "Dr Petit"
	datetime := "2024-03-03T09:00:00+01:00"
	c := entities.Canonical{
		Doctor:  entities.Doctor{Name: "Martin"},
		Patient: entities.Patient{Name: "Durand"},
		Prescription: []entities.PrescriptionEntry{
			{Medicament: "Doliprane", Dosage: "500mg", Posologie: "matin", Duration: "5 jours"},
			{Medicament: "", Dosage: "", Posologie: "", Duration: ""},
			{Medicament: "  ", Dosage: " ", Posologie: "", Duration: ""},
		},
		Rdv: &entities.RDV{
			AppointmentTitle: "Cardiologie",
			DoctorName:       &doctorName,
			DatetimeISO:      &datetime,
		},
		Appointments: []entities.RDV{{
			AppointmentTitle: "Cardiologie",
			DoctorName:       &doctorName,
			DatetimeISO:      &datetime,
		}},
		IssueDate:       "01/02/2024",
		ConfidenceScore: 0.83,
		Source:          SourceOCR,
		RawText:         "raw",
	}

	f := TransformForFrontend(c)

	if len(f.Medicaments) != 1 {
		t.Fatalf("medicaments count = %d, want 1 (blank entries dropped)", len(f.Medicaments))
	}
	if f.Medicaments[0].Name != "Doliprane" {
		t.Errorf("medicament name = %q, want Doliprane", f.Medicaments[0].Name)
	}
	if len(f.Appointments) != 1 {
		t.Fatalf("appointments count = %d, want 1", len(f.Appointments))
	}
	apt := f.Appointments[0]
	if apt.DoctorName != "Dr Petit" || apt.DatetimeISO != datetime {
		t.Errorf("appointment fields not carried over: %+v", apt)
	}
	// Nullable fields become empty strings, never nulls.
	if apt.Location != "" {
		t.Errorf("location = %q, want empty string", apt.Location)
	}
	if f.Source != SourceOCR || f.RawText != "raw" || f.ConfidenceScore != 0.83 {
		t.Errorf("passthrough fields altered: %+v", f)
	}
}

func TestTransformForFrontendEmptyCanonical(t *testing.T) {
	f := TransformForFrontend(NormalizeExtracted(AnalyzeText(""), ""))

	if f.Medicaments == nil || len(f.Medicaments) != 0 {
		t.Errorf("medicaments = %v, want empty non-nil slice", f.Medicaments)
	}
	if f.Appointments == nil || len(f.Appointments) != 0 {
		t.Errorf("appointments = %v, want empty non-nil slice", f.Appointments)
	}
}

func TestTransformAppointmentTitleDefault(t *testing.T) {
	c := entities.Canonical{
		Prescription: []entities.PrescriptionEntry{},
		Appointments: []entities.RDV{{AppointmentTitle: ""}},
		Source:       SourceOCR,
	}

	f := TransformForFrontend(c)
	if f.Appointments[0].AppointmentTitle != DefaultAppointmentTitle {
		t.Errorf("title = %q, want default", f.Appointments[0].AppointmentTitle)
	}
}
