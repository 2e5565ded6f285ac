package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"eolos-node/internal/db"
	"eolos-node/internal/utils"
)

const maxEmissionsLimit = 100

type handlers struct {
	deps Deps
	out  utils.Responder
}

type identityView struct {
	Name           string `json:"name"`
	ManufacturerID string `json:"manufacturer_id"`
	TxPower        int8   `json:"tx_power"`
}

type emissionView struct {
	Kind    string    `json:"kind"`
	Counter uint8     `json:"counter"`
	Value   float64   `json:"value"`
	Mode    string    `json:"mode"`
	At      time.Time `json:"at"`
}

type statusView struct {
	Identity      identityView  `json:"identity"`
	Mode          string        `json:"mode"`
	Advertising   bool          `json:"advertising"`
	Frame         string        `json:"frame,omitempty"`
	DroppedEvents uint64        `json:"dropped_events"`
	LastEmission  *emissionView `json:"last_emission,omitempty"`
}

// handleHealthz reports 503 while the journal, when configured, does not
// answer. Radio state does not affect health: a connected peer stops
// advertising on purpose.
func (h *handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.deps.Journal != nil {
		if err := h.deps.Journal.Ping(r.Context()); err != nil {
			h.out.Error(w, http.StatusServiceUnavailable, "journal unreachable", err)
			return
		}
	}
	h.out.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	n := h.deps.Node
	id := n.Identity()
	v := statusView{
		Identity: identityView{
			Name:           id.Name,
			ManufacturerID: "0x" + utils.Hex4(id.ManufacturerID),
			TxPower:        id.TxPower,
		},
		Mode:          n.Mode().String(),
		Advertising:   n.IsAdvertising(),
		DroppedEvents: n.Dropped(),
	}
	if f, ok := n.Frame(); ok {
		v.Frame = utils.BytesToHex(f[:])
	}
	if h.deps.Last != nil {
		if e, ok := h.deps.Last.Last(); ok {
			v.LastEmission = &emissionView{
				Kind:    e.Kind.String(),
				Counter: e.Counter,
				Value:   e.Value,
				Mode:    e.Mode.String(),
				At:      e.At,
			}
		}
	}
	h.out.JSON(w, http.StatusOK, v)
}

func (h *handlers) handleEmissions(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			h.out.Error(w, http.StatusBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = min(n, maxEmissionsLimit)
	}

	entries, err := h.deps.Journal.Recent(r.Context(), limit)
	if err != nil {
		h.out.Error(w, http.StatusInternalServerError, "failed to read journal", err)
		return
	}
	if entries == nil {
		entries = []db.Entry{}
	}
	h.out.JSON(w, http.StatusOK, map[string]any{"emissions": entries})
}
