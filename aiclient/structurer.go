package aiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const structuringPrompt = `Tu es un assistant médical expert en ordonnances françaises.
Retourne UNIQUEMENT un JSON valide respectant EXACTEMENT ce schéma :

{
  "doctor": {
    "name": "",
    "speciality": "",
    "rpps": ""
  },
  "patient": {
    "name": "",
    "birthDate": ""
  },
  "prescription": [
    {
      "medicament": "",
      "dosage": "",
      "posologie": "",
      "duration": ""
    }
  ],
  "additionalInstructions": "",
  "rdv": {
    "appointmentTitle": "",
    "doctorName": null,
    "datetimeISO": null,
    "location": null,
    "note": null
  },
  "issueDate": "",
  "confidenceScore": 0.0,
  "source": "OCR"
}

Règles strictes:
- Ne jamais inventer d'information
- Laisser les champs vides ("") ou null si inconnus
- Extraire chaque médicament individuellement
- Pour rdv (un seul rendez-vous par ordonnance):
  * appointmentTitle: acte/motif principal NETTOYÉ (ex: "Échographie T2", "Consultation cardiologie", "Prise de sang").
    - Retirer les mots inutiles: "rendez-vous", "RDV", "chez", "à", "le", "pour", etc.
    - Garder court (max ~50 caractères)
    - Majuscules/minuscules correctes (première lettre majuscule)
    - Si rien trouvé: laisser vide (sera "Rendez-vous médical" en fallback)
  * doctorName: nom du praticien si présent dans le texte (ex: "Dr Martin", "Docteur Dupont", "Pr. Bernard").
    - Normaliser: "Dr <Nom>" si un nom est trouvé (retirer "Docteur", "Pr", "Professeur" et garder juste le nom avec "Dr")
    - Si aucun nom de praticien trouvé: null (NE PAS utiliser le nom du docteur prescripteur)
    - Ne pas inventer
  * datetimeISO: date + heure au format ISO 8601 (ex: "2024-01-15T14:30:00+01:00").
    - Parser date + heure si présentes
    - Si seule la date est présente: mettre heure à 09:00 (ex: "2024-01-15T09:00:00+01:00")
    - Si aucune date: null (le frontend demandera à l'utilisateur de compléter)
  * location: cabinet/hôpital/adresse si détecté (ex: "Cabinet médical", "Hôpital Pitié-Salpêtrière", "15 Rue de la Paix, 75001 Paris").
    - Si absent: null
  * note: informations complémentaires optionnelles (pas affichées par défaut).
    - Si absent: null
- Calculer confidenceScore entre 0 et 1 selon la clarté du texte
- Retourner UNIQUEMENT le JSON, sans texte supplémentaire`

// structuredSchema is the minimum shape a model answer must have before it
// is trusted over the deterministic analyzer: a doctor object, a patient
// object and a prescription array.
var structuredSchema = jsonschema.MustCompileString("structured.json", `{
	"type": "object",
	"required": ["doctor", "patient", "prescription"],
	"properties": {
		"doctor": {"type": "object"},
		"patient": {"type": "object"},
		"prescription": {"type": "array"}
	}
}`)

// ErrInvalidShape reports that the model answered with JSON that does not
// carry the required doctor, patient and prescription fields.
var ErrInvalidShape = errors.New("structured document has invalid shape")

// ValidStructuredShape checks a decoded document against the minimum
// structured shape.
func ValidStructuredShape(doc any) bool {
	return structuredSchema.Validate(doc) == nil
}

// Structure asks the model to turn raw OCR text into the canonical document.
// Any failure, including malformed or mis-shaped JSON, is returned as an
// error so the caller can run the deterministic analyzer instead.
func (c *Client) Structure(ctx context.Context, text string) (map[string]any, error) {
	answer, err := c.complete(ctx, chatRequest{
		Model:       StructuringModel,
		Temperature: Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: structuringPrompt},
			{Role: "user", Content: text},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(answer), &doc); err != nil {
		return nil, fmt.Errorf("parsing structured answer: %w", err)
	}
	if !ValidStructuredShape(doc) {
		return nil, ErrInvalidShape
	}
	return doc, nil
}
