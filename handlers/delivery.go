package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/medicalia/ordonnances-api/logging"
	"github.com/medicalia/ordonnances-api/store"
)

// validationError pairs a machine code with its human message.
type validationError struct {
	code    string
	message string
}

// validateCreateDeliveryBody checks the create request field by field so
// the client gets the precise code of the first failing field.
func validateCreateDeliveryBody(body map[string]interface{}) *validationError {
	if body == nil {
		return &validationError{"BODY_MISSING", "Le body de la requête est manquant"}
	}
	if s, ok := body["ordonnanceId"].(string); !ok || strings.TrimSpace(s) == "" {
		return &validationError{"ORDONNANCE_ID_MISSING", "ordonnanceId est requis et doit être une chaîne non vide"}
	}
	if s, ok := body["pharmacyId"].(string); !ok || strings.TrimSpace(s) == "" {
		return &validationError{"PHARMACY_ID_MISSING", "pharmacyId est requis et doit être une chaîne non vide"}
	}
	if s, ok := body["deliveryAddress"].(string); !ok || strings.TrimSpace(s) == "" {
		return &validationError{"DELIVERY_ADDRESS_MISSING", "deliveryAddress est requis et doit être une chaîne non vide"}
	}
	if v, present := body["deliveryNote"]; present && v != nil {
		if _, ok := v.(string); !ok {
			return &validationError{"INVALID_DELIVERY_NOTE", "deliveryNote doit être une chaîne ou null"}
		}
	}
	if v, present := body["patientPhone"]; present && v != nil {
		if _, ok := v.(string); !ok {
			return &validationError{"INVALID_PATIENT_PHONE", "patientPhone doit être une chaîne ou null"}
		}
	}
	if v, present := body["timeWindow"]; present && v != nil {
		if _, ok := v.(string); !ok {
			return &validationError{"INVALID_TIME_WINDOW", "timeWindow doit être une chaîne ou null"}
		}
	}
	return nil
}

// optionalTrimmed returns a trimmed optional field, nil when absent or
// blank.
func optionalTrimmed(body map[string]interface{}, key string) *string {
	s, ok := body[key].(string)
	if !ok {
		return nil
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func trimmedString(body map[string]interface{}, key string) string {
	s, _ := body[key].(string)
	return strings.TrimSpace(s)
}

// notifyPharmacy is the pharmacy notification hook. Log-only until a real
// messaging channel is wired.
func notifyPharmacy(order store.DeliveryOrder) {
	logging.Info("Notify pharmacy", "orderId", order.ID,
		"pharmacyId", order.PharmacyID, "status", order.Status)
}

// notifyCourierPool is the courier dispatch hook, log-only as well.
func notifyCourierPool(order store.DeliveryOrder) {
	logging.Info("Notify courier pool", "orderId", order.ID,
		"pharmacyId", order.PharmacyID, "deliveryAddress", order.DeliveryAddress,
		"status", order.Status)
}

// CreateDeliveryOrder opens a PENDING delivery order routing one ordonnance
// to a pharmacy. The response carries routing data only, never medical
// content.
func (h *Handler) CreateDeliveryOrder(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		body = nil
	}
	if verr := validateCreateDeliveryBody(body); verr != nil {
		respondNotOK(w, http.StatusBadRequest, verr.code, verr.message)
		return
	}

	order := h.deliveries.Create(store.NewDeliveryOrderInput{
		OrdonnanceID:    trimmedString(body, "ordonnanceId"),
		PharmacyID:      trimmedString(body, "pharmacyId"),
		DeliveryAddress: trimmedString(body, "deliveryAddress"),
		DeliveryNote:    optionalTrimmed(body, "deliveryNote"),
		PatientPhone:    optionalTrimmed(body, "patientPhone"),
		TimeWindow:      optionalTrimmed(body, "timeWindow"),
	})
	logging.Info("Delivery order created", "orderId", order.ID, "pharmacyId", order.PharmacyID)

	notifyPharmacy(order)

	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"order": order,
	})
}

// GetDeliveryOrder reads one delivery order by id.
func (h *Handler) GetDeliveryOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		respondNotOK(w, http.StatusBadRequest, "INVALID_ORDER_ID", "ID de commande invalide")
		return
	}

	order, ok := h.deliveries.Get(orderID)
	if !ok {
		respondNotOK(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Commande non trouvée")
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"order": order,
	})
}

// ListDeliveryOrders lists the delivery orders of one ordonnance.
func (h *Handler) ListDeliveryOrders(w http.ResponseWriter, r *http.Request) {
	ordonnanceID := strings.TrimSpace(r.URL.Query().Get("ordonnanceId"))
	if ordonnanceID == "" {
		respondNotOK(w, http.StatusBadRequest, "ORDONNANCE_ID_MISSING", "Le paramètre ordonnanceId est requis")
		return
	}

	orders := h.deliveries.ListByOrdonnance(ordonnanceID)
	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"orders": orders,
		"count":  len(orders),
	})
}

// UpdateDeliveryStatus moves an order along its lifecycle. Reaching
// ACCEPTED dispatches the courier pool.
func (h *Handler) UpdateDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		respondNotOK(w, http.StatusBadRequest, "INVALID_ORDER_ID", "ID de commande invalide")
		return
	}

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		respondNotOK(w, http.StatusBadRequest, "BODY_MISSING", "Le body de la requête est manquant")
		return
	}
	status, ok := body["status"].(string)
	if !ok || status == "" {
		respondNotOK(w, http.StatusBadRequest, "STATUS_MISSING", "status est requis et doit être une chaîne")
		return
	}
	if !store.IsValidDeliveryStatus(status) {
		respondNotOK(w, http.StatusBadRequest, "INVALID_STATUS",
			"status doit être l'un des suivants: "+strings.Join(store.ValidDeliveryStatuses, ", "))
		return
	}

	order, found := h.deliveries.UpdateStatus(orderID, status)
	if !found {
		respondNotOK(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Commande non trouvée")
		return
	}
	logging.Info("Delivery order status updated", "orderId", order.ID, "status", order.Status)

	if order.Status == store.DeliveryStatusAccepted {
		notifyCourierPool(order)
	}

	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"order": order,
	})
}
