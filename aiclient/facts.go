package aiclient

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// frenchUpper uppercases patient names with French casing rules.
var frenchUpper = cases.Upper(language.French)

// Validation codes for the summary request body.
const (
	CodeBodyMissing        = "BODY_MISSING"
	CodePersonalMissing    = "PERSONAL_MISSING"
	CodeOrdonnancesMissing = "ORDONNANCES_MISSING"
)

// FallbackUnavailable is the summary of last resort.
const FallbackUnavailable = "Aucune information médicale disponible."

// SummaryPersonal carries the declared identity block of a summary request.
// Age is untyped because clients send it as a number or a string.
type SummaryPersonal struct {
	Nom       string   `json:"nom"`
	Prenom    string   `json:"prenom"`
	Age       any      `json:"age"`
	Allergies []string `json:"allergies"`
}

// SummaryMedicament accepts both canonical and legacy field names for the
// same medication. Pickers below resolve the aliases.
type SummaryMedicament struct {
	Medicament string `json:"medicament"`
	Nom        string `json:"nom"`
	Dosage     string `json:"dosage"`
	Posologie  string `json:"posologie"`
	Frequence  string `json:"frequence"`
	Duration   string `json:"duration"`
	Duree      string `json:"duree"`
}

// SummaryAction is a pending or scheduled act attached to a prescription.
type SummaryAction struct {
	Type        string  `json:"type"`
	Label       string  `json:"label"`
	ScheduledAt *string `json:"scheduledAt"`
}

// SummaryDoctor identifies the prescriber of one prescription.
type SummaryDoctor struct {
	Nom        string `json:"nom"`
	Prenom     string `json:"prenom"`
	Profession string `json:"profession"`
}

// SummaryOrdonnance is one prescription in a summary request.
type SummaryOrdonnance struct {
	ID          string              `json:"id"`
	Category    string              `json:"category"`
	Type        string              `json:"type"`
	Date        string              `json:"date"`
	Medecin     *SummaryDoctor      `json:"medecin"`
	Medicaments []SummaryMedicament `json:"medicaments"`
	Actions     []SummaryAction     `json:"actions"`
}

// SummaryRequest is the body of a medical summary call.
type SummaryRequest struct {
	Personal    *SummaryPersonal    `json:"personal"`
	Ordonnances []SummaryOrdonnance `json:"ordonnances"`
}

// Validate returns a validation code, or the empty string when the request
// is usable. A null ordonnances array counts as missing.
func (r *SummaryRequest) Validate() string {
	if r == nil {
		return CodeBodyMissing
	}
	if r.Personal == nil {
		return CodePersonalMissing
	}
	if r.Ordonnances == nil {
		return CodeOrdonnancesMissing
	}
	return ""
}

func (m SummaryMedicament) name() string {
	if m.Medicament != "" {
		return m.Medicament
	}
	return m.Nom
}

func (m SummaryMedicament) posologie() string {
	if m.Posologie != "" {
		return m.Posologie
	}
	return m.Frequence
}

func (m SummaryMedicament) duration() string {
	if m.Duration != "" {
		return m.Duration
	}
	return m.Duree
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

// cleanActionLabel keeps only the part of an action label after the word
// ORDONNANCE and caps it at 280 characters.
func cleanActionLabel(label string) string {
	cleaned := label
	if idx := strings.Index(cleaned, "ORDONNANCE"); idx != -1 {
		cleaned = strings.TrimSpace(cleaned[idx+len("ORDONNANCE"):])
	}
	runes := []rune(cleaned)
	if len(runes) > 280 {
		cleaned = string(runes[:280]) + "..."
	}
	return cleaned
}

// BuildFactsText turns a summary request into the consolidated facts block
// handed to the model. It states facts only, in a fixed section layout.
func BuildFactsText(personal *SummaryPersonal, ordonnances []SummaryOrdonnance) string {
	allergies := "Aucune"
	if len(personal.Allergies) > 0 {
		allergies = strings.Join(personal.Allergies, ", ")
	}

	age := "?"
	if personal.Age != nil {
		age = fmt.Sprint(personal.Age)
	}

	var blocks []string
	for _, o := range ordonnances {
		category := o.Category
		if category == "" {
			category = o.Type
		}

		var meds []string
		for _, m := range o.Medicaments {
			meds = append(meds, fmt.Sprintf("%s %s %s %s", orUnknown(m.name()), m.Dosage, m.posologie(), m.duration()))
		}
		medLine := "Aucun"
		if len(meds) > 0 {
			medLine = strings.Join(meds, " | ")
		}

		var actions []string
		for _, a := range o.Actions {
			actionType := a.Type
			if actionType == "" {
				actionType = "autre"
			}
			scheduled := "null"
			if a.ScheduledAt != nil {
				scheduled = *a.ScheduledAt
			}
			actions = append(actions, fmt.Sprintf("%s - %s - scheduledAt=%s", actionType, cleanActionLabel(a.Label), scheduled))
		}
		actionLine := "Aucune"
		if len(actions) > 0 {
			actionLine = strings.Join(actions, " | ")
		}

		var doctor string
		if o.Medecin != nil {
			doctor = fmt.Sprintf("%s %s %s", o.Medecin.Prenom, o.Medecin.Nom, o.Medecin.Profession)
		} else {
			doctor = "  "
		}

		blocks = append(blocks, fmt.Sprintf(`
- Ordonnance %s (%s) date=%s
  Medecin: %s
  Medicaments: %s
  Actions: %s
`, o.ID, orUnknown(category), orUnknown(o.Date), doctor, medLine, actionLine))
	}

	facts := fmt.Sprintf(`
IDENTITE:
- Nom: %s
- Prenom: %s
- Age: %s

ALERTES:
- Allergies: %s

ORDONNANCES:
%s
`, orUnknown(personal.Nom), orUnknown(personal.Prenom), age, allergies, strings.Join(blocks, "\n"))

	return strings.TrimSpace(facts)
}

// FallbackSummary writes a deterministic summary used when the model is
// unreachable or answers with nothing usable.
func FallbackSummary(personal *SummaryPersonal, ordonnances []SummaryOrdonnance) string {
	var parts []string

	if personal.Nom != "" || personal.Prenom != "" {
		var nameParts []string
		for _, p := range []string{personal.Prenom, personal.Nom} {
			if p != "" {
				nameParts = append(nameParts, p)
			}
		}
		parts = append(parts, frenchUpper.String(strings.Join(nameParts, " "))+" a")
	} else {
		parts = append(parts, "Le patient a")
	}

	var meds []string
	for _, o := range ordonnances {
		for _, m := range o.Medicaments {
			name := m.name()
			if name == "" {
				continue
			}
			if m.Dosage != "" {
				name += " " + m.Dosage
			}
			meds = append(meds, name)
		}
	}
	if len(meds) > 0 {
		parts = append(parts, fmt.Sprintf("une ordonnance de %s.", strings.Join(meds, " et ")))
	}

	var actions []string
	for _, o := range ordonnances {
		for _, a := range o.Actions {
			if a.Label == "" {
				continue
			}
			if a.ScheduledAt != nil {
				actions = append(actions, fmt.Sprintf("Une imagerie est planifiée (%s)", strings.ToLower(a.Label)))
			} else {
				actions = append(actions, fmt.Sprintf("Une action est à faire (%s)", strings.ToLower(a.Label)))
			}
		}
	}
	if len(actions) > 0 {
		parts = append(parts, strings.Join(actions, ". ")+".")
	}

	if len(personal.Allergies) > 0 {
		parts = append(parts, fmt.Sprintf("Allergie renseignée : %s.", strings.Join(personal.Allergies, ", ")))
	}

	summary := strings.Join(parts, " ")
	if summary == "" {
		return FallbackUnavailable
	}
	return summary
}
