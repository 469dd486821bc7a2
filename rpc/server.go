package rpc

import (
	"net/http"

	"github.com/pacedotdev/oto/otohttp"
)

// Register mounts the services on server. A nil service is skipped.
func Register(server *otohttp.Server, scripts Scripts, expressions Expressions, macros Macros) {
	if scripts != nil {
		h := &scriptsServer{server: server, scripts: scripts}
		server.Register("Scripts", "Compile", h.handleCompile)
		server.Register("Scripts", "Execute", h.handleExecute)
		server.Register("Scripts", "Evict", h.handleEvict)
	}
	if expressions != nil {
		h := &expressionsServer{server: server, expressions: expressions}
		server.Register("Expressions", "Evaluate", h.handleEvaluate)
	}
	if macros != nil {
		h := &macrosServer{server: server, macros: macros}
		server.Register("Macros", "Expand", h.handleExpand)
	}
}

type scriptsServer struct {
	server  *otohttp.Server
	scripts Scripts
}

func (s *scriptsServer) handleCompile(w http.ResponseWriter, r *http.Request) {
	var request CompileRequest
	if err := otohttp.Decode(r, &request); err != nil {
		s.server.OnErr(w, r, err)
		return
	}
	response, err := s.scripts.Compile(r.Context(), request)
	if err != nil {
		s.server.OnErr(w, r, err)
		return
	}
	if err := otohttp.Encode(w, r, http.StatusOK, response); err != nil {
		s.server.OnErr(w, r, err)
		return
	}
}

func (s *scriptsServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	var request ExecuteRequest
	if err := otohttp.Decode(r, &request); err != nil {
		s.server.OnErr(w, r, err)
		return
	}
	response, err := s.scripts.Execute(r.Context(), request)
	if err != nil {
		s.server.OnErr(w, r, err)
		return
	}
	if err := otohttp.Encode(w, r, http.StatusOK, response); err != nil {
		s.server.OnErr(w, r, err)
		return
	}
}

func (s *scriptsServer) handleEvict(w http.ResponseWriter, r *http.Request) {
	var request EvictRequest
	if err := otohttp.Decode(r, &request); err != nil {
		s.server.OnErr(w, r, err)
		return
	}
	response, err := s.scripts.Evict(r.Context(), request)
	if err != nil {
		s.server.OnErr(w, r, err)
		return
	}
	if err := otohttp.Encode(w, r, http.StatusOK, response); err != nil {
		s.server.OnErr(w, r, err)
		return
	}
}

type expressionsServer struct {
	server      *otohttp.Server
	expressions Expressions
}

func (s *expressionsServer) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var request EvaluateRequest
	if err := otohttp.Decode(r, &request); err != nil {
		s.server.OnErr(w, r, err)
		return
	}
	response, err := s.expressions.Evaluate(r.Context(), request)
	if err != nil {
		s.server.OnErr(w, r, err)
		return
	}
	if err := otohttp.Encode(w, r, http.StatusOK, response); err != nil {
		s.server.OnErr(w, r, err)
		return
	}
}

type macrosServer struct {
	server *otohttp.Server
	macros Macros
}

func (s *macrosServer) handleExpand(w http.ResponseWriter, r *http.Request) {
	var request ExpandRequest
	if err := otohttp.Decode(r, &request); err != nil {
		s.server.OnErr(w, r, err)
		return
	}
	response, err := s.macros.Expand(r.Context(), request)
	if err != nil {
		s.server.OnErr(w, r, err)
		return
	}
	if err := otohttp.Encode(w, r, http.StatusOK, response); err != nil {
		s.server.OnErr(w, r, err)
		return
	}
}
