package api

import (
	"net/http"
	"strings"

	"github.com/hackgods/clinic-booking/internal/catalog"
)

func listDoctorsHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := svc.ListDoctors(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		if dept := r.URL.Query().Get("department"); dept != "" {
			var matched []catalog.Doctor
			for _, d := range doctors {
				if strings.EqualFold(d.Department, dept) {
					matched = append(matched, d)
				}
			}
			doctors = matched
		}
		writeJSON(w, http.StatusOK, nonNil(doctors))
	}
}

func createDoctorHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DoctorRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		d, err := svc.CreateDoctor(r.Context(), catalog.Doctor{Name: req.Name, Department: req.Department})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	}
}

func getDoctorHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		d, err := svc.GetDoctor(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func deleteDoctorHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.DeleteDoctor(r.Context(), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func updateDoctorHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var patch catalog.DoctorPatch
		if !decodeJSON(w, r, &patch) {
			return
		}

		d, err := svc.UpdateDoctor(r.Context(), id, patch)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func listTreatmentsHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		treatments, err := svc.ListTreatments(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(treatments))
	}
}

func createTreatmentHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TreatmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		t, err := svc.CreateTreatment(r.Context(), catalog.Treatment{
			Name:            req.Name,
			DurationMinutes: req.DurationMinutes,
			Price:           req.Price,
			Description:     req.Description,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	}
}

func getTreatmentHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		t, err := svc.GetTreatment(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func deleteTreatmentHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.DeleteTreatment(r.Context(), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func updateTreatmentHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var patch catalog.TreatmentPatch
		if !decodeJSON(w, r, &patch) {
			return
		}

		t, err := svc.UpdateTreatment(r.Context(), id, patch)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func listCapacitySlotsHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := svc.ListCapacitySlots(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(slots))
	}
}

func createCapacitySlotHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CapacitySlotRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		slot, err := svc.CreateCapacitySlot(r.Context(), catalog.CapacitySlot{
			Start:       req.StartTime,
			End:         req.EndTime,
			MaxCapacity: req.MaxCapacity,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, slot)
	}
}

func updateCapacitySlotHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var patch catalog.CapacitySlotPatch
		if !decodeJSON(w, r, &patch) {
			return
		}

		slot, err := svc.UpdateCapacitySlot(r.Context(), id, patch)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, slot)
	}
}

func deleteCapacitySlotHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.DeleteCapacitySlot(r.Context(), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
