// Package backendtest provides an in-process fake of the parked-cars API for
// tests. Routes are served with gorilla/mux, like the real backend, and every
// call is counted per route.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/gorilla/mux"

	"manualsmap/internal/domain/entities"
)

// Route names used by Calls and Fail.
const (
	RouteToken          = "token"
	RouteMapKitToken    = "mapkit-token"
	RouteCars           = "cars"
	RouteCarSchema      = "car-schema"
	RouteSubmitCar      = "submit-car"
	RouteMapBlocks      = "mapblocks"
	RouteBlockCars      = "block-cars"
	RouteImageSignature = "image-signature"
)

// Failure is a canned error answer for a route.
type Failure struct {
	StatusCode int
	Message    string
}

// Server is a fake backend. Its setters are safe to call while requests are
// in flight.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	calls      map[string]int
	failures   map[string]Failure
	token      string
	blocks     []entities.MapBlock
	blockCars  map[int][]entities.CarSummary
	cars       []entities.Car
	schema     json.RawMessage
	submitted  []entities.CarSubmission
	queries    []map[string]string
	signParams []map[string]string
}

// NewServer starts a fake backend. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		calls:     make(map[string]int),
		failures:  make(map[string]Failure),
		token:     "test-token",
		blockCars: make(map[int][]entities.CarSummary),
	}

	r := mux.NewRouter()
	r.HandleFunc("/token", s.handleToken(RouteToken)).Methods(http.MethodGet)
	r.HandleFunc("/mapkit/token", s.handleToken(RouteMapKitToken)).Methods(http.MethodGet)
	r.HandleFunc("/cars", s.handleCars).Methods(http.MethodGet)
	r.HandleFunc("/cars", s.handleSubmitCar).Methods(http.MethodPost)
	r.HandleFunc("/cars/schema", s.handleCarSchema).Methods(http.MethodGet)
	r.HandleFunc("/mapblocks", s.handleMapBlocks).Methods(http.MethodGet)
	r.HandleFunc("/mapblocks/{id:[0-9]+}/cars", s.handleBlockCars).Methods(http.MethodGet)
	r.HandleFunc("/images/signature", s.handleImageSignature).Methods(http.MethodPost)

	s.Server = httptest.NewServer(r)
	return s
}

// SetToken sets the token served by both token routes.
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// SetBlocks sets the blocks returned by /mapblocks.
func (s *Server) SetBlocks(blocks ...entities.MapBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = blocks
}

// SetBlockCars sets the cars returned for one block.
func (s *Server) SetBlockCars(blockID int, cars ...entities.CarSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockCars[blockID] = cars
}

// SetCars sets the cars returned by GET /cars.
func (s *Server) SetCars(cars ...entities.Car) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cars = cars
}

// SetSchema makes GET /cars/schema serve doc. Without one the route answers 404.
func (s *Server) SetSchema(doc []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema = doc
}

// Fail makes route answer with the given failure until Recover is called.
func (s *Server) Fail(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = Failure{StatusCode: status, Message: message}
}

// Recover clears a failure set with Fail.
func (s *Server) Recover(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

// Calls returns how many requests a route has received.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Submitted returns the car submissions received so far.
func (s *Server) Submitted() []entities.CarSubmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.CarSubmission(nil), s.submitted...)
}

// MapBlockQueries returns the query parameters of every /mapblocks request.
func (s *Server) MapBlockQueries() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]string(nil), s.queries...)
}

// SignedParameters returns the parameters of every signature request.
func (s *Server) SignedParameters() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]string(nil), s.signParams...)
}

// begin counts the call and writes a canned failure if one is set. It reports
// whether the handler should continue.
func (s *Server) begin(w http.ResponseWriter, route string) bool {
	s.mu.Lock()
	s.calls[route]++
	failure, failing := s.failures[route]
	s.mu.Unlock()

	if failing {
		writeJSON(w, failure.StatusCode, map[string]string{"err": failure.Message})
		return false
	}
	return true
}

func (s *Server) handleToken(route string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.begin(w, route) {
			return
		}
		s.mu.Lock()
		token := s.token
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func (s *Server) handleCars(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, RouteCars) {
		return
	}
	s.mu.Lock()
	cars := append([]entities.Car{}, s.cars...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"cars": cars})
}

func (s *Server) handleCarSchema(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, RouteCarSchema) {
		return
	}
	s.mu.Lock()
	doc := s.schema
	s.mu.Unlock()
	if doc == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"err": "no schema published"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (s *Server) handleSubmitCar(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, RouteSubmitCar) {
		return
	}
	var car entities.CarSubmission
	if err := json.NewDecoder(r.Body).Decode(&car); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"err": err.Error()})
		return
	}
	s.mu.Lock()
	s.submitted = append(s.submitted, car)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"license_hash": "hash-" + car.LicenseState + car.LicensePlate})
}

func (s *Server) handleMapBlocks(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, RouteMapBlocks) {
		return
	}
	query := make(map[string]string)
	for key := range r.URL.Query() {
		query[key] = r.URL.Query().Get(key)
	}
	s.mu.Lock()
	s.queries = append(s.queries, query)
	blocks := append([]entities.MapBlock{}, s.blocks...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"mapBlocks": blocks})
}

func (s *Server) handleBlockCars(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, RouteBlockCars) {
		return
	}
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"err": "invalid map block id"})
		return
	}
	s.mu.Lock()
	cars := append([]entities.CarSummary{}, s.blockCars[id]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"cars": cars})
}

func (s *Server) handleImageSignature(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, RouteImageSignature) {
		return
	}
	var req struct {
		Parameters map[string]string `json:"parameters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"err": err.Error()})
		return
	}
	s.mu.Lock()
	s.signParams = append(s.signParams, req.Parameters)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"signature": "signed-" + strconv.Itoa(len(req.Parameters))})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
