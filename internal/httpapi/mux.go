package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"eolos-node/internal/adv"
	"eolos-node/internal/db"
	"eolos-node/internal/emitter"
	"eolos-node/internal/publisher"
	"eolos-node/internal/utils"
)

// Node is the emitter state the endpoints report.
type Node interface {
	Identity() emitter.Identity
	Mode() emitter.Mode
	IsAdvertising() bool
	Frame() (adv.Frame, bool)
	Dropped() uint64
}

// LastEmission is satisfied by *publisher.Publisher.
type LastEmission interface {
	Last() (publisher.Emission, bool)
}

// Journal is satisfied by *db.Journal.
type Journal interface {
	Ping(ctx context.Context) error
	Recent(ctx context.Context, limit int) ([]db.Entry, error)
}

// Deps are the collaborators of the mux. Journal and Logger may be nil.
type Deps struct {
	Node    Node
	Last    LastEmission
	Journal Journal
	Logger  *slog.Logger
}

func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()
	h := &handlers{deps: d, out: utils.NewResponder(d.Logger)}
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /status", h.handleStatus)
	if d.Journal != nil {
		mux.HandleFunc("GET /emissions", h.handleEmissions)
	}
	return mux
}
