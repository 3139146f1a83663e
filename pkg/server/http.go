package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"k8s.io/klog/v2"
)

// maxRequestBytes bounds the size of an HTTP request body.
const maxRequestBytes = 16 << 20

// Router returns the HTTP API:
//
//	GET  /healthz
//	GET  /v1/outputs
//	POST /v1/outputs/{output}/compute
//	POST /v1/outputs/{output}/scan
//
// compute and scan take a JSON body with "inputs" and "sequences".
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok\n")
	}).Methods("GET")

	r.HandleFunc("/v1/outputs", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, s.Outputs())
	}).Methods("GET")

	r.HandleFunc("/v1/outputs/{output}/compute", func(w http.ResponseWriter, r *http.Request) {
		s.serveCompute(w, r, false)
	}).Methods("POST")

	r.HandleFunc("/v1/outputs/{output}/scan", func(w http.ResponseWriter, r *http.Request) {
		s.serveCompute(w, r, true)
	}).Methods("POST")

	return r
}

func (s *Server) serveCompute(w http.ResponseWriter, r *http.Request, scan bool) {
	ctx := r.Context()
	log := klog.FromContext(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		http.Error(w, "reading request body", http.StatusBadRequest)
		return
	}

	req := &Request{}
	if len(body) != 0 {
		req, err = decodeRequest(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	req.Output = mux.Vars(r)["output"]
	req.Scan = scan

	response, err := s.Handle(ctx, req)
	if err != nil {
		code := httpStatus(err)
		if code == http.StatusInternalServerError {
			log.Error(err, "computing output", "output", req.Output)
			http.Error(w, "internal server error", code)
			return
		}
		http.Error(w, err.Error(), code)
		return
	}
	jsonResponse(w, http.StatusOK, response)
}

func jsonResponse(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}
