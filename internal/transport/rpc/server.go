package rpc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dreamware/lazyssp/internal/transport"
)

type regionBuf struct {
	mu  sync.Mutex
	buf []byte
}

// Server hosts one peer's Info/Rows/Cache regions behind an HTTP API,
// routing the one-sided memory operations of transport.Transport to the
// appropriate region buffer.
type Server struct {
	log *zap.Logger

	info  regionBuf
	rows  regionBuf
	cache regionBuf

	notifyMu sync.Mutex
	notified map[uint64]bool

	// barrier state is only exercised when this server is the designated
	// rendezvous peer (rank 0); every peer, including rank 0 itself, calls
	// into it to implement the collective Barrier operation.
	barrierMu    sync.Mutex
	barrierCond  *sync.Cond
	barrierCount int
	barrierGen   int
	peerCount    int

	router *mux.Router
}

// NewServer allocates a Server for one peer with the given region sizes (in
// bytes) and total peer count (needed only for the barrier rendezvous).
func NewServer(infoSize, rowsSize, cacheSize, peerCount int, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		log:       log,
		info:      regionBuf{buf: make([]byte, infoSize)},
		rows:      regionBuf{buf: make([]byte, rowsSize)},
		cache:     regionBuf{buf: make([]byte, cacheSize)},
		notified:  make(map[uint64]bool),
		peerCount: peerCount,
	}
	s.barrierCond = sync.NewCond(&s.barrierMu)
	s.router = mux.NewRouter()
	s.routes()
	return s
}

// Handler returns the http.Handler to serve.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) region(r transport.RegionID) *regionBuf {
	switch r {
	case transport.RegionInfo:
		return &s.info
	case transport.RegionRows:
		return &s.rows
	case transport.RegionCache:
		return &s.cache
	default:
		return nil
	}
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	s.router.HandleFunc("/region/read", s.handleRead).Methods(http.MethodPost)
	s.router.HandleFunc("/region/write", s.handleWrite).Methods(http.MethodPost)
	s.router.HandleFunc("/region/cas", s.handleCAS).Methods(http.MethodPost)
	s.router.HandleFunc("/region/fetch_add", s.handleFetchAdd).Methods(http.MethodPost)
	s.router.HandleFunc("/region/atomic_swap", s.handleAtomicSwap).Methods(http.MethodPost)
	s.router.HandleFunc("/notify/test", s.handleNotifyTest).Methods(http.MethodPost)
	s.router.HandleFunc("/notify/reset", s.handleNotifyReset).Methods(http.MethodPost)
	s.router.HandleFunc("/notify/wait", s.handleNotifyWait).Methods(http.MethodPost)
	s.router.HandleFunc("/barrier/arrive", s.handleBarrierArrive).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, err error, code int) {
	http.Error(w, err.Error(), code)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	var req readRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, err, http.StatusBadRequest)
		return
	}
	rb := s.region(req.Region)
	if rb == nil {
		httpError(w, errUnknownRegion, http.StatusBadRequest)
		return
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if req.Offset < 0 || req.Offset+req.Length > len(rb.buf) {
		httpError(w, errOutOfBounds, http.StatusBadRequest)
		return
	}
	out := make([]byte, req.Length)
	copy(out, rb.buf[req.Offset:req.Offset+req.Length])
	writeJSON(w, readResponse{Data: out})
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, err, http.StatusBadRequest)
		return
	}
	rb := s.region(req.Region)
	if rb == nil {
		httpError(w, errUnknownRegion, http.StatusBadRequest)
		return
	}
	rb.mu.Lock()
	if req.Offset < 0 || req.Offset+len(req.Data) > len(rb.buf) {
		rb.mu.Unlock()
		httpError(w, errOutOfBounds, http.StatusBadRequest)
		return
	}
	copy(rb.buf[req.Offset:req.Offset+len(req.Data)], req.Data)
	rb.mu.Unlock()

	if req.Notify {
		s.notifyMu.Lock()
		s.notified[req.NotifyID] = true
		s.notifyMu.Unlock()
	}
	writeJSON(w, struct{}{})
}

// casLocal, fetchAddLocal and atomicSwapLocal hold the region-locking logic
// shared between the HTTP handlers (remote callers) and Peer's same-rank
// fast path (local callers), so the two never drift apart.

func (s *Server) casLocal(region transport.RegionID, offset int, oldVal, newVal uint32) (uint32, bool, error) {
	rb := s.region(region)
	if rb == nil {
		return 0, false, errUnknownRegion
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if offset < 0 || offset+4 > len(rb.buf) {
		return 0, false, errOutOfBounds
	}
	cur := binary.LittleEndian.Uint32(rb.buf[offset : offset+4])
	if cur != oldVal {
		return cur, false, nil
	}
	binary.LittleEndian.PutUint32(rb.buf[offset:offset+4], newVal)
	return cur, true, nil
}

func (s *Server) fetchAddLocal(region transport.RegionID, offset int, delta int32) (uint32, error) {
	rb := s.region(region)
	if rb == nil {
		return 0, errUnknownRegion
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if offset < 0 || offset+4 > len(rb.buf) {
		return 0, errOutOfBounds
	}
	before := binary.LittleEndian.Uint32(rb.buf[offset : offset+4])
	binary.LittleEndian.PutUint32(rb.buf[offset:offset+4], uint32(int32(before)+delta))
	return before, nil
}

func (s *Server) atomicSwapLocal(region transport.RegionID, offset int, newVal uint64) (uint64, error) {
	rb := s.region(region)
	if rb == nil {
		return 0, errUnknownRegion
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if offset < 0 || offset+8 > len(rb.buf) {
		return 0, errOutOfBounds
	}
	before := binary.LittleEndian.Uint64(rb.buf[offset : offset+8])
	binary.LittleEndian.PutUint64(rb.buf[offset:offset+8], newVal)
	return before, nil
}

func (s *Server) handleCAS(w http.ResponseWriter, r *http.Request) {
	var req casRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, err, http.StatusBadRequest)
		return
	}
	observed, swapped, err := s.casLocal(req.Region, req.Offset, req.Old, req.New)
	if err != nil {
		httpError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, casResponse{Observed: observed, Swapped: swapped})
}

func (s *Server) handleFetchAdd(w http.ResponseWriter, r *http.Request) {
	var req fetchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, err, http.StatusBadRequest)
		return
	}
	before, err := s.fetchAddLocal(req.Region, req.Offset, req.Delta)
	if err != nil {
		httpError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, fetchAddResponse{Before: before})
}

func (s *Server) handleAtomicSwap(w http.ResponseWriter, r *http.Request) {
	var req atomicSwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, err, http.StatusBadRequest)
		return
	}
	before, err := s.atomicSwapLocal(req.Region, req.Offset, req.New)
	if err != nil {
		httpError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, atomicSwapResponse{Before: before})
}

func (s *Server) handleNotifyTest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NotifyID uint64 `json:"notify_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, err, http.StatusBadRequest)
		return
	}
	s.notifyMu.Lock()
	set := s.notified[req.NotifyID]
	s.notifyMu.Unlock()
	writeJSON(w, notifyTestResponse{Set: set})
}

func (s *Server) handleNotifyReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NotifyID uint64 `json:"notify_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, err, http.StatusBadRequest)
		return
	}
	s.notifyMu.Lock()
	delete(s.notified, req.NotifyID)
	s.notifyMu.Unlock()
	writeJSON(w, struct{}{})
}

func (s *Server) handleNotifyWait(w http.ResponseWriter, r *http.Request) {
	var req notifyWaitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, err, http.StatusBadRequest)
		return
	}
	deadline := time.Now().Add(time.Duration(req.TimeoutsMS) * time.Millisecond)
	for {
		s.notifyMu.Lock()
		set := s.notified[req.NotifyID]
		s.notifyMu.Unlock()
		if set {
			writeJSON(w, struct{}{})
			return
		}
		if time.Now().After(deadline) {
			httpError(w, transport.ErrTimeout, http.StatusRequestTimeout)
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// arriveLocal implements the rendezvous side of Barrier: every peer
// (including the rendezvous peer's own owner) arrives here once; once
// peerCount arrivals are seen, all pending arrivals for that generation
// return.
func (s *Server) arriveLocal(ctx context.Context) error {
	s.barrierMu.Lock()
	gen := s.barrierGen
	s.barrierCount++
	if s.barrierCount == s.peerCount {
		s.barrierCount = 0
		s.barrierGen++
		s.barrierCond.Broadcast()
		s.barrierMu.Unlock()
		return nil
	}
	for gen == s.barrierGen {
		s.barrierCond.Wait()
	}
	s.barrierMu.Unlock()
	return ctx.Err()
}

func (s *Server) handleBarrierArrive(w http.ResponseWriter, r *http.Request) {
	var req barrierArriveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, err, http.StatusBadRequest)
		return
	}
	_ = req.Rank
	if err := s.arriveLocal(r.Context()); err != nil {
		httpError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, struct{}{})
}
