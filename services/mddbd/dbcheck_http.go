package main

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"
)

// dbCheckRequest is the wire form of the command surface: either a single
// collection ({ "collection": "..." }) or a whole-database run when
// collection is empty.
type dbCheckRequest struct {
	Collection string `json:"collection"`
	// MinID/MaxID are document IDs, not raw bbolt keys; handleDbCheck builds
	// the full doc|<collection>|<id> key internally via kDoc.
	MinID             string `json:"minId"`
	MaxID             string `json:"maxId"`
	MaxCount          *int64 `json:"maxCount"`
	MaxSize           *int64 `json:"maxSize"`
	MaxCountPerSecond *int64 `json:"maxCountPerSecond"`
}

type dbCheckResponse struct {
	OK         bool   `json:"ok"`
	Collections int   `json:"collections,omitempty"`
	Error      string `json:"error,omitempty"`
}

// handleDbCheck is the synchronous front half of spec.md §7: the FCV check,
// then planning, both happen before responding (no authorization check is
// made here; the route's only other gate is guardWrite's access-mode
// check); only once planning
// succeeds does it launch the executor and return without waiting on it.
func (s *Server) handleDbCheck(w http.ResponseWriter, r *http.Request) {
	if err := CheckFCV(); err != nil {
		dbCheckBad(w, err)
		return
	}

	var req dbCheckRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			dbCheckBad(w, err)
			return
		}
	}

	var run Run
	err := s.DB.View(func(tx *bolt.Tx) error {
		var err error
		if req.Collection == "" {
			run, err = PlanAll(tx, "")
			return err
		}
		single := SingleCollectionRequest{
			Collection:        req.Collection,
			MaxCount:          req.MaxCount,
			MaxSize:           req.MaxSize,
			MaxCountPerSecond: req.MaxCountPerSecond,
		}
		if req.MinID != "" {
			k := RealKey(kDoc(req.Collection, req.MinID))
			single.MinKey = &k
		}
		if req.MaxID != "" {
			k := RealKey(kDoc(req.Collection, req.MaxID))
			single.MaxKey = &k
		}
		run, err = PlanSingle(tx, "", single)
		return err
	})
	if err != nil {
		dbCheckBad(w, err)
		return
	}

	s.DbCheck.Launch(run)

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(dbCheckResponse{OK: true, Collections: len(run.Collections)})
}

// handleDbCheckStop interrupts the in-flight run, if any, mirroring
// spec.md §4.6's stop command.
func (s *Server) handleDbCheckStop(w http.ResponseWriter, r *http.Request) {
	s.DbCheck.Interrupt()
	_ = json.NewEncoder(w).Encode(dbCheckResponse{OK: true})
}

func dbCheckBad(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, ErrNamespaceNotFound) || errors.Is(err, ErrDatabaseNotFound) {
		status = http.StatusNotFound
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dbCheckResponse{OK: false, Error: err.Error()})
}
