// Package fakebackend is an in-process stand-in for the scheduling backend,
// used by tests. It checks bearer tokens the way the real backend does and
// counts every call so tests can assert on network traffic.
package fakebackend

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"clinician-console/internal/model"
)

const Secret = "fakebackend-secret"

var ErrBadToken = errors.New("invalid token")

// Route names used by Calls, Fail and Hold.
const (
	Me           = "GET /doctors/me"
	List         = "GET /api/v1/doctors/appointments"
	Cancel       = "DELETE /api/v1/doctors/appointments/{id}"
	Specialize   = "PUT /api/v1/doctors/me"
	WorkingHours = "PUT /api/v1/doctors/me/working-hours"
	requestIDHdr = "X-Request-ID"
)

type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

func MakeToken(uid string) string {
	c := Claims{
		UserID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(Secret))
	if err != nil {
		panic(err)
	}
	return tok
}

func ParseToken(raw string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return []byte(Secret), nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrBadToken
	}
	return c, nil
}

type Server struct {
	*httptest.Server

	mu           sync.Mutex
	profile      model.DoctorProfile
	appointments []model.Appointment
	calls        map[string]int
	fail         map[string]int
	holds        map[string]chan struct{}
	lastHours    []model.WorkingHour
	requestIDs   []string
}

// New starts a server closed at test cleanup.
func New(t testing.TB, p model.DoctorProfile) *Server {
	s := &Server{
		profile: p,
		calls:   make(map[string]int),
		fail:    make(map[string]int),
		holds:   make(map[string]chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(Me, s.auth(Me, s.me))
	mux.HandleFunc(List, s.auth(List, s.list))
	mux.HandleFunc(Cancel, s.auth(Cancel, s.cancel))
	mux.HandleFunc(Specialize, s.auth(Specialize, s.specialize))
	mux.HandleFunc(WorkingHours, s.auth(WorkingHours, s.workingHours))
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) SetAppointments(list []model.Appointment) {
	s.mu.Lock()
	s.appointments = append([]model.Appointment(nil), list...)
	s.mu.Unlock()
}

func (s *Server) Appointments() []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Appointment(nil), s.appointments...)
}

func (s *Server) Profile() model.DoctorProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

func (s *Server) LastWorkingHours() []model.WorkingHour {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.WorkingHour(nil), s.lastHours...)
}

func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) RequestIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requestIDs...)
}

// Fail makes route answer code until Fail(route, 0).
func (s *Server) Fail(route string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code == 0 {
		delete(s.fail, route)
		return
	}
	s.fail[route] = code
}

// Hold parks requests to route until release is called.
func (s *Server) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[route] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, route)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Server) auth(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[route]++
		s.requestIDs = append(s.requestIDs, r.Header.Get(requestIDHdr))
		code := s.fail[route]
		hold := s.holds[route]
		s.mu.Unlock()

		if hold != nil {
			<-hold
		}

		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			http.Error(w, "no token", http.StatusUnauthorized)
			return
		}
		if _, err := ParseToken(raw); err != nil {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		if code != 0 {
			http.Error(w, http.StatusText(code), code)
			return
		}
		next(w, r)
	}
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Profile())
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Appointments())
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.appointments {
		if a.ID == id {
			s.appointments = append(s.appointments[:i], s.appointments[i+1:]...)
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}

func (s *Server) specialize(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Specialization string `json:"specialization"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.profile.Specialization = body.Specialization
	p := s.profile
	s.mu.Unlock()
	writeJSON(w, p)
}

func (s *Server) workingHours(w http.ResponseWriter, r *http.Request) {
	var hours []model.WorkingHour
	if err := json.NewDecoder(r.Body).Decode(&hours); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.profile.WorkingHours = hours
	s.lastHours = hours
	p := s.profile
	s.mu.Unlock()
	writeJSON(w, p)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
