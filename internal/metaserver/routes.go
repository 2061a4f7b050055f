package metaserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dreamware/pvfsmeta/internal/distribution"
	"github.com/dreamware/pvfsmeta/internal/errs"
	"github.com/dreamware/pvfsmeta/internal/keyval"
	"github.com/dreamware/pvfsmeta/internal/lockmgr"
	"github.com/dreamware/pvfsmeta/internal/sidcache"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	mux.HandleFunc("/locks/acquire", s.handleLockAcquire)
	mux.HandleFunc("/locks/revise", s.handleLockRevise)
	mux.HandleFunc("/locks/progress", s.handleLockProgress)

	mux.HandleFunc("/keyval/read", s.handleKeyvalRead)
	mux.HandleFunc("/keyval/write", s.handleKeyvalWrite)
	mux.HandleFunc("/keyval/iterate", s.handleKeyvalIterate)

	mux.HandleFunc("/servers/add", s.handleServerAdd)
	mux.HandleFunc("/servers/select", s.handleServerSelect)
	mux.HandleFunc("/servers/addr", s.handleServerAddr)

	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.Warnw("encoding response", "error", err)
	}
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.Of(err) {
	case errs.NotFound:
		status = http.StatusNotFound
	case errs.Exists, errs.BadArg, errs.BadRange:
		status = http.StatusBadRequest
	case errs.BufferTooSmall:
		status = http.StatusRequestEntityTooLarge
	case errs.Busy:
		status = http.StatusServiceUnavailable
	case errs.AuthFailed:
		status = http.StatusUnauthorized
	}
	if status == http.StatusInternalServerError {
		s.Log.Errorw("request failed", "error", err)
	}
	s.writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}

type lockAcquireRequest struct {
	FSID                uint32 `json:"fs_id"`
	OID                 [16]byte `json:"oid"`
	Write               bool   `json:"write"`
	Kind                string `json:"kind"`
	ContinueReqID       int64  `json:"continue_req_id"`
	StripeSize          int64  `json:"stripe_size"`
	ServerCount         int    `json:"server_count"`
	ServerRank          int    `json:"server_rank"`
	FileReqOffset       int64  `json:"file_req_offset"`
	FinalAbsoluteOffset int64  `json:"final_absolute_offset"`
	AggregateSize       int64  `json:"aggregate_size"`
}

func parseAcquireKind(s string) (lockmgr.AcquireKind, bool) {
	switch s {
	case "new_block":
		return lockmgr.NewBlock, true
	case "new_nonblock":
		return lockmgr.NewNonblock, true
	case "continue_block":
		return lockmgr.ContinueBlock, true
	case "continue_nonblock":
		return lockmgr.ContinueNonblock, true
	default:
		return 0, false
	}
}

func (s *Server) handleLockAcquire(w http.ResponseWriter, r *http.Request) {
	var req lockAcquireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, errs.New(errs.BadArg, "bad json: %v", err))
		return
	}
	kind, ok := parseAcquireKind(req.Kind)
	if !ok {
		s.writeErr(w, errs.New(errs.BadArg, "bad kind %q", req.Kind))
		return
	}
	dir := lockmgr.Read
	if req.Write {
		dir = lockmgr.Write
	}
	dist := distribution.RoundRobin{StripeSize: req.StripeSize, ServerCount: req.ServerCount, ServerRank: req.ServerRank}

	out, err := s.Locks.Acquire(
		lockmgr.ObjectRef{FSID: req.FSID, OID: req.OID},
		dir, kind, req.ContinueReqID, dist,
		req.FileReqOffset, req.FinalAbsoluteOffset, req.AggregateSize,
		nil,
	)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

type lockReviseRequest struct {
	FSID        uint32 `json:"fs_id"`
	OID         [16]byte `json:"oid"`
	ReqID       int64  `json:"req_id"`
	ReleaseAll  bool   `json:"release_all"`
	FinalOffset int64  `json:"final_offset"`
}

func (s *Server) handleLockRevise(w http.ResponseWriter, r *http.Request) {
	var req lockReviseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, errs.New(errs.BadArg, "bad json: %v", err))
		return
	}
	out, err := s.Locks.Revise(
		lockmgr.ObjectRef{FSID: req.FSID, OID: req.OID},
		lockmgr.ReviseMode{ReleaseAll: req.ReleaseAll, FinalOffset: req.FinalOffset},
		req.ReqID,
	)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

type lockProgressRequest struct {
	FSID uint32   `json:"fs_id"`
	OID  [16]byte `json:"oid"`
}

func (s *Server) handleLockProgress(w http.ResponseWriter, r *http.Request) {
	var req lockProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, errs.New(errs.BadArg, "bad json: %v", err))
		return
	}
	s.Locks.ProgressQueue(lockmgr.ObjectRef{FSID: req.FSID, OID: req.OID})
	w.WriteHeader(http.StatusNoContent)
}

type keyvalReadRequest struct {
	OID     [16]byte `json:"oid"`
	Type    byte     `json:"type"`
	Key     []byte   `json:"key"`
	BufSize int      `json:"buf_size"`
}

func (s *Server) handleKeyvalRead(w http.ResponseWriter, r *http.Request) {
	var req keyvalReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, errs.New(errs.BadArg, "bad json: %v", err))
		return
	}
	val, err := s.Keyvals.Read(keyval.OID(req.OID), keyval.EntryType(req.Type), req.Key, req.BufSize)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Value []byte `json:"value"`
	}{Value: val})
}

type keyvalWriteRequest struct {
	OID   [16]byte `json:"oid"`
	Type  byte     `json:"type"`
	Key   []byte   `json:"key"`
	Value []byte   `json:"value"`
	Flags uint32   `json:"flags"`
}

func (s *Server) handleKeyvalWrite(w http.ResponseWriter, r *http.Request) {
	var req keyvalWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, errs.New(errs.BadArg, "bad json: %v", err))
		return
	}
	err := s.Keyvals.Write(keyval.OID(req.OID), keyval.EntryType(req.Type), req.Key, req.Value, keyval.Flags(req.Flags))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type keyvalIterateRequest struct {
	OID      [16]byte `json:"oid"`
	Type     byte     `json:"type"`
	Position uint64   `json:"position"`
	Count    int      `json:"count"`
}

func (s *Server) handleKeyvalIterate(w http.ResponseWriter, r *http.Request) {
	var req keyvalIterateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, errs.New(errs.BadArg, "bad json: %v", err))
		return
	}
	keys, vals, next, more, err := s.Keyvals.Iterate(keyval.OID(req.OID), keyval.EntryType(req.Type), req.Position, req.Count)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Keys   [][]byte `json:"keys"`
		Values [][]byte `json:"values"`
		Next   uint64   `json:"next"`
		More   bool     `json:"more"`
	}{Keys: keys, Values: vals, Next: next, More: more})
}

func (s *Server) handleServerAdd(w http.ResponseWriter, r *http.Request) {
	var rec sidcache.ServerRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.writeErr(w, errs.New(errs.BadArg, "bad json: %v", err))
		return
	}
	s.Servers.Add(rec)
	w.WriteHeader(http.StatusNoContent)
}

type selectRequest struct {
	Policy sidcache.Policy `json:"policy"`
	WantN  int             `json:"want_n"`
}

func (s *Server) handleServerSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, errs.New(errs.BadArg, "bad json: %v", err))
		return
	}
	sids, copies := sidcache.SelectServers(s.Servers, req.Policy, req.WantN)
	s.writeJSON(w, http.StatusOK, struct {
		SIDs    []sidcache.SID `json:"sids"`
		Copies  int            `json:"copies"`
	}{SIDs: sids, Copies: copies})
}

func (s *Server) handleServerAddr(w http.ResponseWriter, r *http.Request) {
	resolved := s.Resolved()
	if resolved == nil {
		s.writeErr(w, errs.New(errs.Internal, "no transport resolver configured"))
		return
	}
	var req struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, errs.New(errs.BadArg, "bad json: %v", err))
		return
	}
	sid, err := sidcache.ParseSID(req.SID)
	if err != nil {
		s.writeErr(w, errs.New(errs.BadArg, "bad sid: %v", err))
		return
	}
	addr, err := resolved.GetAddr(r.Context(), sid)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.writeErr(w, errs.New(errs.CancelledByCaller, "cancelled"))
			return
		}
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		BMIAddr uint64 `json:"bmi_addr"`
	}{BMIAddr: addr})
}
