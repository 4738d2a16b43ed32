// Copyright 2015 The Cockroach Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package restapi exposes a registry.Registry over HTTP, mirroring
// server/api.go's apiV2Server: a gorilla/mux router, a flat table of
// {endpoint, handler} route definitions registered in one pass, and a
// writeJsonResponse-style helper wrapping every response body. Every
// error surfaced by the registry is mapped to a status code and JSON
// envelope via kvxerror.StatusOf/HTTPStatus, per spec.md §7.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/kvindex/kvindex/keyval"
	"github.com/kvindex/kvindex/kvxerror"
	"github.com/kvindex/kvindex/log"
	"github.com/kvindex/kvindex/payload"
	"github.com/kvindex/kvindex/plan"
	"github.com/kvindex/kvindex/query"
	"github.com/kvindex/kvindex/registry"
)

const (
	apiV1Path     = "/api/v1/"
	checkEndpoint = "/check"
)

// Server serves registry.Registry over HTTP, per spec.md §13's
// contract-level REST gateway.
type Server struct {
	reg    *registry.Registry
	router *mux.Router
}

// NewServer builds a Server backed by reg with all routes registered.
func NewServer(reg *registry.Registry) *Server {
	s := &Server{reg: reg, router: mux.NewRouter()}
	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	routes := []struct {
		path    string
		methods []string
		handler http.HandlerFunc
	}{
		{checkEndpoint, []string{http.MethodGet}, s.check},
		{apiV1Path + "db/{db}/namespaces/{ns}", []string{http.MethodGet}, s.namespaceStat},
		{apiV1Path + "db/{db}/namespaces/{ns}/items", []string{http.MethodPost}, s.insertItem},
		{apiV1Path + "db/{db}/namespaces/{ns}/items", []string{http.MethodGet}, s.listItems},
		{apiV1Path + "db/{db}/namespaces/{ns}/items/{id}", []string{http.MethodPut}, s.updateItem},
		{apiV1Path + "db/{db}/namespaces/{ns}/items/{id}", []string{http.MethodDelete}, s.deleteItem},
		{apiV1Path + "db/{db}/query", []string{http.MethodPost}, s.query},
	}
	for _, rt := range routes {
		s.router.HandleFunc(rt.path, rt.handler).Methods(rt.methods...)
	}
}

// writeJSONResponse mirrors server/api.go's writeJsonResponse.
func writeJSONResponse(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	res, err := json.Marshal(payload)
	if err != nil {
		log.Errorf(context.Background(), "marshaling response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(code)
	if _, err := w.Write(res); err != nil {
		log.Errorf(context.Background(), "writing response: %v", err)
	}
}

type successEnvelope struct {
	Success      bool              `json:"success"`
	Items        []json.RawMessage `json:"items,omitempty"`
	TotalItems   int               `json:"total_items"`
	Aggregations []aggregationJSON `json:"aggregations,omitempty"`
}

// aggregationJSON is the wire shape of one plan.AggregationResult.
type aggregationJSON struct {
	Field    string        `json:"field"`
	Type     string        `json:"type"`
	Value    *float64      `json:"value,omitempty"`
	Facets   []facetJSON   `json:"facets,omitempty"`
	Distinct []interface{} `json:"distincts,omitempty"`
}

type facetJSON struct {
	Value interface{} `json:"value"`
	Count int         `json:"count"`
}

func aggKindName(k query.AggKind) string {
	switch k {
	case query.AggMin:
		return "min"
	case query.AggMax:
		return "max"
	case query.AggSum:
		return "sum"
	case query.AggAvg:
		return "avg"
	case query.AggFacet:
		return "facet"
	case query.AggDistinct:
		return "distinct"
	default:
		return "unknown"
	}
}

func keyvalJSON(v keyval.Value) interface{} {
	switch v.Type() {
	case keyval.Int32, keyval.Int64:
		return v.Int64()
	case keyval.Double:
		return v.Double()
	case keyval.String:
		return v.Str()
	default:
		return nil
	}
}

func aggregationsJSON(aggs []plan.AggregationResult) []aggregationJSON {
	if len(aggs) == 0 {
		return nil
	}
	out := make([]aggregationJSON, 0, len(aggs))
	for _, a := range aggs {
		aj := aggregationJSON{Field: a.Field, Type: aggKindName(a.Kind)}
		switch a.Kind {
		case query.AggMin, query.AggMax, query.AggSum, query.AggAvg:
			v := a.Value
			aj.Value = &v
		case query.AggFacet:
			aj.Facets = make([]facetJSON, 0, len(a.Facets))
			for _, f := range a.Facets {
				aj.Facets = append(aj.Facets, facetJSON{Value: keyvalJSON(f.Value), Count: f.Count})
			}
		case query.AggDistinct:
			aj.Distinct = make([]interface{}, 0, len(a.Distinct))
			for _, v := range a.Distinct {
				aj.Distinct = append(aj.Distinct, keyvalJSON(v))
			}
		}
		out = append(out, aj)
	}
	return out
}

type errorEnvelope struct {
	Success      bool   `json:"success"`
	ResponseCode int    `json:"response_code"`
	Description  string `json:"description"`
}

// writeError maps err onto the {success:false, response_code,
// description} envelope of spec.md §7.
func writeError(w http.ResponseWriter, err error) {
	status := kvxerror.StatusOf(err)
	writeJSONResponse(w, kvxerror.HTTPStatus(status.Code), errorEnvelope{
		Success:      false,
		ResponseCode: int(status.Code),
		Description:  status.Message,
	})
}

func writeItems(w http.ResponseWriter, items []json.RawMessage, total int, aggs ...plan.AggregationResult) {
	writeJSONResponse(w, http.StatusOK, successEnvelope{
		Success:      true,
		Items:        items,
		TotalItems:   total,
		Aggregations: aggregationsJSON(aggs),
	})
}

func itemJSON(it *payload.Item) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := it.GetJSON(&buf); err != nil {
		return nil, kvxerror.Wrap(err, kvxerror.Internal, "encoding item")
	}
	return json.RawMessage(buf.Bytes()), nil
}

func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) namespaceStat(w http.ResponseWriter, r *http.Request) {
	ns := mux.Vars(r)["ns"]
	stat, err := s.reg.Stat(ns)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, stat)
}

func (s *Server) insertItem(w http.ResponseWriter, r *http.Request) {
	ns := mux.Vars(r)["ns"]
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, kvxerror.Paramsf("reading request body: %v", err))
		return
	}

	item, err := s.reg.NewItem(ns)
	if err != nil {
		writeError(w, err)
		return
	}
	var tail []byte
	if err := item.FromJSON(body, &tail, false, nil); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.reg.Insert(ns, item); err != nil {
		writeError(w, err)
		return
	}

	rawItem, err := itemJSON(item)
	if err != nil {
		writeError(w, err)
		return
	}
	writeItems(w, []json.RawMessage{rawItem}, 1)
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ns := vars["ns"]
	rowID, err := strconv.Atoi(vars["id"])
	if err != nil {
		writeError(w, kvxerror.Paramsf("invalid item id %q", vars["id"]))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, kvxerror.Paramsf("reading request body: %v", err))
		return
	}
	item, err := s.reg.NewItem(ns)
	if err != nil {
		writeError(w, err)
		return
	}
	var tail []byte
	if err := item.FromJSON(body, &tail, false, nil); err != nil {
		writeError(w, err)
		return
	}
	item.SetID(rowID)
	if _, err := s.reg.Update(ns, item); err != nil {
		writeError(w, err)
		return
	}

	rawItem, err := itemJSON(item)
	if err != nil {
		writeError(w, err)
		return
	}
	writeItems(w, []json.RawMessage{rawItem}, 1)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ns := vars["ns"]
	rowID, err := strconv.Atoi(vars["id"])
	if err != nil {
		writeError(w, kvxerror.Paramsf("invalid item id %q", vars["id"]))
		return
	}
	item, err := s.reg.NewItem(ns)
	if err != nil {
		writeError(w, err)
		return
	}
	item.SetID(rowID)
	if err := s.reg.Delete(ns, item); err != nil {
		writeError(w, err)
		return
	}
	writeItems(w, nil, 0)
}

// listItems runs the "q" query parameter, if present, as a WHERE-only
// SQL fragment ("SELECT * FROM ns WHERE ..."); with no "q" it lists
// every live row in the namespace.
func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	ns := mux.Vars(r)["ns"]
	q := r.URL.Query().Get("q")

	if q == "" {
		n, err := s.reg.Namespace(ns)
		if err != nil {
			writeError(w, err)
			return
		}
		var items []json.RawMessage
		err = n.ForEach(func(rowID int, it *payload.Item) error {
			raw, err := itemJSON(it)
			if err != nil {
				return err
			}
			items = append(items, raw)
			return nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeItems(w, items, len(items))
		return
	}

	result, err := s.reg.SelectSQL("SELECT * FROM " + ns + " WHERE " + q)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeSelectResult(w, ns, result)
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, kvxerror.Paramsf("reading request body: %v", err))
		return
	}
	result, err := s.reg.SelectJSON(body)
	if err != nil {
		writeError(w, err)
		return
	}

	var doc struct {
		Namespace string `json:"namespace"`
	}
	if jerr := json.Unmarshal(body, &doc); jerr != nil {
		writeError(w, kvxerror.ParseJSONf("query document missing namespace: %v", jerr))
		return
	}
	s.writeSelectResult(w, doc.Namespace, result)
}

// writeSelectResult materializes result's row ids into JSON items and
// writes the {items, total_items} envelope, per spec.md §7.
func (s *Server) writeSelectResult(w http.ResponseWriter, ns string, result *plan.Result) {
	n, err := s.reg.Namespace(ns)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]json.RawMessage, 0, len(result.RowIDs))
	for _, rowID := range result.RowIDs {
		v, ok := n.Payload(rowID)
		if !ok {
			continue
		}
		it := &payload.Item{Value: v, TypeVersion: int(n.Version())}
		it.SetID(rowID)
		raw, err := itemJSON(it)
		if err != nil {
			writeError(w, err)
			return
		}
		items = append(items, raw)
	}
	writeItems(w, items, result.TotalCount, result.Aggregations...)
}
