package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
	"github.com/yndnr/fieldstore-go/internal/infra/buildinfo"
)

// handleVersion handles GET /v1/version.
func (h *Handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, buildinfo.Get())
}

// handleStatus handles GET /v1/status.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	families := make(map[domain.Family]FamilyStatus, 2)
	for _, f := range []domain.Family{domain.FamilyUsers, domain.FamilyOrders} {
		meta, err := h.store.Meta(r.Context(), f)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		st := FamilyStatus{Version: meta.Version, ChangeLogLen: len(meta.ChangeLog)}
		if n := len(meta.ChangeLog); n > 0 {
			st.LastChange = meta.ChangeLog[n-1]
		}
		families[f] = st
	}

	lsm, vlog := h.store.Size()
	h.writeJSON(w, r, http.StatusOK, StatusResponse{
		Status:      "running",
		Time:        h.clock.NowISO(),
		Timezone:    h.clock.Location().String(),
		Families:    families,
		Persistence: h.store.ProbePersistence(),
		Storage:     StorageSize{LSM: lsm, ValueLog: vlog},
		Build:       buildinfo.Get(),
	})
}

// handleMetaHistory handles GET /v1/meta/{family}.
func (h *Handler) handleMetaHistory(w http.ResponseWriter, r *http.Request) {
	family := domain.Family(r.PathValue("family"))
	if family != domain.FamilyUsers && family != domain.FamilyOrders {
		h.handleServiceError(w, r, domain.ErrInvalidArgument.WithDetailsf("unknown family %q", family))
		return
	}

	history, err := h.store.MetaHistory(r.Context(), family)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	resp := MetaHistoryResponse{Family: family, History: history}
	if n := len(history); n > 0 {
		resp.Version = history[n-1].Version
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// handleSweep handles POST /v1/sweep. An empty body sweeps every order.
func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.handleServiceError(w, r, domain.ErrInvalidArgument.WithDetails("invalid request body"))
		return
	}

	result, err := h.sweeper.SweepExpirations(r.Context(), req.Codes)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, result)
}
