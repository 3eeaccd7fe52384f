// Package gshttp provides a reference "outer transport" (§9) over
// plain HTTP: it disseminates pending queries and accepts responses on
// behalf of a [gsregistry.Registry], using gorilla/mux for routing the
// way the teacher's debug HTTP server does.
package gshttp

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"
	"github.com/gordian-engine/grandpa-accountable-safety/gsdriver"
	"github.com/gordian-engine/grandpa-accountable-safety/gsregistry"
)

// Server wires a Registry to a mux.Router. It owns no network socket
// itself; callers embed Router in their own http.Server (or httptest
// server), matching how the teacher's setDebugRoutes attaches to a
// caller-owned router rather than opening its own listener.
type Server struct {
	log *slog.Logger
	reg *gsregistry.Registry

	Router *mux.Router
}

// NewServer builds a Server with routes already registered.
func NewServer(log *slog.Logger, reg *gsregistry.Registry) *Server {
	s := &Server{
		log:    log,
		reg:    reg,
		Router: mux.NewRouter(),
	}
	s.setRoutes()
	return s
}

func (s *Server) setRoutes() {
	s.Router.HandleFunc("/instances", s.handleOpen).Methods("POST")
	s.Router.HandleFunc("/instances", s.handleActiveInstances).Methods("GET")
	s.Router.HandleFunc("/instances/{id}", s.handleState).Methods("GET")
	s.Router.HandleFunc("/instances/{id}/queries", s.handlePendingQueries).Methods("GET")
	s.Router.HandleFunc("/instances/{id}/responses", s.handleSubmitResponse).Methods("POST")
	s.Router.HandleFunc("/instances/{id}/abort", s.handleAbort).Methods("POST")
}

type openRequest struct {
	BlockEarlier  blockRoundRefJSON `json:"block_earlier"`
	CommitEarlier commitJSON        `json:"commit_earlier"`
	BlockLater    blockRoundRefJSON `json:"block_later"`
	CommitLater   commitJSON        `json:"commit_later"`
}

type blockRoundRefJSON struct {
	Block uint64 `json:"block"`
	Round uint64 `json:"round"`
}

type voteJSON struct {
	Voter  string `json:"voter"`
	Target uint64 `json:"target"`
	Kind   uint8  `json:"kind"`
	Round  uint64 `json:"round"`
}

type commitJSON struct {
	Round      uint64     `json:"round"`
	Block      uint64     `json:"block"`
	Precommits []voteJSON `json:"precommits"`
}

func (h *Server) handleOpen(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()

	b, err := io.ReadAll(req.Body)
	if err != nil {
		h.log.Warn("Failed to read request body", "route", "open", "err", err)
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var or openRequest
	if err := json.Unmarshal(b, &or); err != nil {
		http.Error(w, "malformed request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	precommitsEarlier, err := decodeVotes(or.CommitEarlier.Precommits)
	if err != nil {
		http.Error(w, "malformed commit_earlier: "+err.Error(), http.StatusBadRequest)
		return
	}
	precommitsLater, err := decodeVotes(or.CommitLater.Precommits)
	if err != nil {
		http.Error(w, "malformed commit_later: "+err.Error(), http.StatusBadRequest)
		return
	}

	in := gsdriver.OpenInput{
		Ancestry: gsconsensus.AncestryFunc(func(a, b gsconsensus.BlockNumber) bool { return a <= b }),
		BlockEarlier: gsdriver.BlockRoundRef{
			Block: gsconsensus.BlockNumber(or.BlockEarlier.Block),
			Round: gsconsensus.RoundNumber(or.BlockEarlier.Round),
		},
		CommitEarlier: gsconsensus.Commit{
			Round:      gsconsensus.RoundNumber(or.CommitEarlier.Round),
			Block:      gsconsensus.BlockNumber(or.CommitEarlier.Block),
			Precommits: precommitsEarlier,
		},
		BlockLater: gsdriver.BlockRoundRef{
			Block: gsconsensus.BlockNumber(or.BlockLater.Block),
			Round: gsconsensus.RoundNumber(or.BlockLater.Round),
		},
		CommitLater: gsconsensus.Commit{
			Round:      gsconsensus.RoundNumber(or.CommitLater.Round),
			Block:      gsconsensus.BlockNumber(or.CommitLater.Block),
			Precommits: precommitsLater,
		},
	}

	voters := make(map[gsconsensus.VoterID]uint64)
	for _, v := range precommitsEarlier {
		voters[v.Voter] = 1
	}
	for _, v := range precommitsLater {
		voters[v.Voter] = 1
	}
	vs, err := gsconsensus.NewVoterSet(voters)
	if err != nil {
		http.Error(w, "failed to build voter set: "+err.Error(), http.StatusBadRequest)
		return
	}
	in.VoterSet = vs

	id, err := h.reg.Open(in, time.Now())
	if err != nil {
		h.log.Warn("Rejected open request", "err", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, h.log, map[string]uint64{"instance": uint64(id)})
}

func (h *Server) handleActiveInstances(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, h.log, h.reg.ActiveInstances())
}

func (h *Server) handleState(w http.ResponseWriter, req *http.Request) {
	id, err := instanceIDFromVars(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap, err := h.reg.State(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, h.log, snap)
}

func (h *Server) handlePendingQueries(w http.ResponseWriter, req *http.Request) {
	id, err := instanceIDFromVars(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	queries, err := h.reg.PendingQueries(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, h.log, queries)
}

type submitResponseRequest struct {
	Responder string     `json:"responder"`
	Round     uint64     `json:"round"`
	Votes     []voteJSON `json:"votes"`
}

func (h *Server) handleSubmitResponse(w http.ResponseWriter, req *http.Request) {
	id, err := instanceIDFromVars(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	defer req.Body.Close()
	b, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var sr submitResponseRequest
	if err := json.Unmarshal(b, &sr); err != nil {
		http.Error(w, "malformed request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	responder, err := decodeVoterID(sr.Responder)
	if err != nil {
		http.Error(w, "malformed responder: "+err.Error(), http.StatusBadRequest)
		return
	}
	payload, err := decodeVotes(sr.Votes)
	if err != nil {
		http.Error(w, "malformed votes: "+err.Error(), http.StatusBadRequest)
		return
	}

	err = h.reg.SubmitResponse(id, responder, gsconsensus.RoundNumber(sr.Round), payload, time.Now())
	if err != nil {
		h.log.Info("Rejected submitted response", "instance", id, "responder", responder, "err", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Server) handleAbort(w http.ResponseWriter, req *http.Request) {
	id, err := instanceIDFromVars(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.reg.Abort(id, time.Now()); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func instanceIDFromVars(req *http.Request) (gsdriver.InstanceID, error) {
	raw := mux.Vars(req)["id"]
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed instance id %q: %w", raw, err)
	}
	return gsdriver.InstanceID(n), nil
}

func decodeVoterID(s string) (gsconsensus.VoterID, error) {
	var id gsconsensus.VoterID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("voter id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

func decodeVotes(in []voteJSON) ([]gsconsensus.Vote, error) {
	out := make([]gsconsensus.Vote, len(in))
	for i, v := range in {
		voter, err := decodeVoterID(v.Voter)
		if err != nil {
			return nil, fmt.Errorf("vote %d: %w", i, err)
		}
		out[i] = gsconsensus.Vote{
			Voter:  voter,
			Target: gsconsensus.BlockNumber(v.Target),
			Kind:   gsconsensus.VoteKind(v.Kind),
			Round:  gsconsensus.RoundNumber(v.Round),
		}
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Failed to encode response", "err", err)
	}
}
