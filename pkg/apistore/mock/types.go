package mock

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/Ratio1/apistore_sdk_go/internal/apibody"
	"github.com/Ratio1/apistore_sdk_go/pkg/apistore"
)

// TypeDef describes an emulated resource type. The mock serves
// schemas/<name>, the collection at CollectionPath (the name by default) and
// items at CollectionPath/<id>.
type TypeDef struct {
	Name string
	// Fields becomes the schema's resourceFields.
	Fields         map[string]any
	BaseType       string
	CollectionPath string
}

type typeTable struct {
	def     TypeDef
	order   []string
	records map[string]map[string]any
}

// AddType registers an emulated resource type with initial records. Records
// without an id get a generated one. Registering a type again replaces it.
func (m *Mock) AddType(def TypeDef, records ...map[string]any) {
	def.Name = apistore.NormalizeType(def.Name)
	if def.CollectionPath == "" {
		def.CollectionPath = def.Name
	}
	def.CollectionPath = strings.Trim(def.CollectionPath, "/")
	tbl := &typeTable{def: def, records: make(map[string]map[string]any, len(records))}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		data, _ := apibody.Clone(rec).(map[string]any)
		if data == nil {
			continue
		}
		id := idOf(data)
		if id == "" {
			id = m.newID()
			data["id"] = id
		}
		if _, dup := tbl.records[id]; !dup {
			tbl.order = append(tbl.order, id)
		}
		tbl.records[id] = data
	}
	m.types[def.Name] = tbl
}

// Records returns the stored records of an emulated type in insertion order.
func (m *Mock) Records(typeName string) []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	tbl := m.types[apistore.NormalizeType(typeName)]
	if tbl == nil {
		return nil
	}
	out := make([]map[string]any, 0, len(tbl.order))
	for _, id := range tbl.order {
		out = append(out, tbl.render(id))
	}
	return out
}

func (m *Mock) serveType(method, path string, body []byte) *Response {
	bare, rawQuery, _ := strings.Cut(path, "?")
	query, _ := url.ParseQuery(rawQuery)
	segs := strings.Split(bare, "/")

	m.mu.Lock()
	defer m.mu.Unlock()

	if segs[0] == "schemas" {
		if method != http.MethodGet {
			return methodNotAllowed(method, path)
		}
		switch len(segs) {
		case 1:
			return m.schemaList()
		case 2:
			name, _ := url.PathUnescape(segs[1])
			if tbl := m.types[apistore.NormalizeType(name)]; tbl != nil {
				return &Response{Status: http.StatusOK, Body: tbl.schema()}
			}
		}
		return nil
	}

	tbl := m.tableFor(bare)
	if tbl == nil {
		return nil
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(bare, tbl.def.CollectionPath), "/")
	if rest == "" {
		switch method {
		case http.MethodGet:
			return &Response{Status: http.StatusOK, Body: tbl.collection(query, m.pageSize)}
		case http.MethodPost:
			return tbl.create(body, m.newID)
		default:
			return methodNotAllowed(method, path)
		}
	}
	if strings.Contains(rest, "/") {
		return nil
	}
	id, _ := url.PathUnescape(rest)
	if _, ok := tbl.records[id]; !ok {
		return nil
	}
	switch method {
	case http.MethodGet:
		return &Response{Status: http.StatusOK, Body: tbl.render(id)}
	case http.MethodPut, http.MethodPatch:
		return tbl.update(id, body, method == http.MethodPatch)
	case http.MethodDelete:
		delete(tbl.records, id)
		for i, existing := range tbl.order {
			if existing == id {
				tbl.order = append(tbl.order[:i:i], tbl.order[i+1:]...)
				break
			}
		}
		return &Response{Status: http.StatusNoContent}
	default:
		return methodNotAllowed(method, path)
	}
}

// tableFor requires m.mu.
func (m *Mock) tableFor(path string) *typeTable {
	var best *typeTable
	for _, tbl := range m.types {
		cp := tbl.def.CollectionPath
		if path != cp && !strings.HasPrefix(path, cp+"/") {
			continue
		}
		if best == nil || len(cp) > len(best.def.CollectionPath) {
			best = tbl
		}
	}
	return best
}

func (m *Mock) schemaList() *Response {
	names := make([]string, 0, len(m.types))
	for name := range m.types {
		names = append(names, name)
	}
	sort.Strings(names)
	data := make([]any, 0, len(names))
	for _, name := range names {
		data = append(data, m.types[name].schema())
	}
	return &Response{Status: http.StatusOK, Body: map[string]any{
		"type":         "collection",
		"resourceType": "schema",
		"links":        map[string]any{"self": "schemas"},
		"data":         data,
	}}
}

func (t *typeTable) selfLink(id string) string {
	return t.def.CollectionPath + "/" + url.PathEscape(id)
}

func (t *typeTable) schema() map[string]any {
	fields := t.def.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	return map[string]any{
		"type": "schema",
		"id":   t.def.Name,
		"links": map[string]any{
			"self":       "schemas/" + url.PathEscape(t.def.Name),
			"collection": t.def.CollectionPath,
		},
		"collectionMethods": []any{http.MethodGet, http.MethodPost},
		"resourceMethods":   []any{http.MethodGet, http.MethodPut, http.MethodDelete},
		"resourceFields":    apibody.Clone(fields),
	}
}

func (t *typeTable) render(id string) map[string]any {
	out, _ := apibody.Clone(t.records[id]).(map[string]any)
	out["type"] = t.def.Name
	out["id"] = id
	if t.def.BaseType != "" {
		out["baseType"] = t.def.BaseType
	}
	self := t.selfLink(id)
	links := map[string]any{}
	if existing, ok := out["links"].(map[string]any); ok {
		links = existing
	}
	links["self"] = self
	out["links"] = links
	out["actions"] = map[string]any{"remove": self}
	return out
}

// collection renders one page. limit and marker page through the records;
// sort and order sort them; include is ignored; any other parameter filters
// on field equality.
func (t *typeTable) collection(q url.Values, maxPage int) map[string]any {
	ids := make([]string, 0, len(t.order))
	for _, id := range t.order {
		if matches(t.records[id], q) {
			ids = append(ids, id)
		}
	}
	if key := q.Get("sort"); key != "" {
		desc := strings.EqualFold(q.Get("order"), "desc")
		sort.SliceStable(ids, func(i, j int) bool {
			a := fmt.Sprint(t.records[ids[i]][key])
			b := fmt.Sprint(t.records[ids[j]][key])
			if desc {
				return a > b
			}
			return a < b
		})
	}

	limit := atoiDefault(q.Get("limit"), maxPage)
	if limit == 0 || limit > maxPage {
		limit = maxPage
	}
	start := atoiDefault(q.Get("marker"), 0)
	if start > len(ids) {
		start = len(ids)
	}
	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}

	data := make([]any, 0, end-start)
	for _, id := range ids[start:end] {
		data = append(data, t.render(id))
	}
	self := t.def.CollectionPath
	if len(q) > 0 {
		self += "?" + q.Encode()
	}
	out := map[string]any{
		"type":         "collection",
		"resourceType": t.def.Name,
		"links":        map[string]any{"self": self},
		"actions":      map[string]any{"create": t.def.CollectionPath},
		"data":         data,
	}
	pagination := map[string]any{"first": t.def.CollectionPath}
	if end < len(ids) {
		next := url.Values{}
		for k, v := range q {
			next[k] = append([]string(nil), v...)
		}
		next.Set("marker", fmt.Sprint(end))
		pagination["next"] = t.def.CollectionPath + "?" + next.Encode()
	}
	out["pagination"] = pagination
	return out
}

var reservedQuery = map[string]struct{}{
	"limit": {}, "marker": {}, "sort": {}, "order": {}, "include": {},
}

func matches(rec map[string]any, q url.Values) bool {
	for k, values := range q {
		if _, skip := reservedQuery[k]; skip {
			continue
		}
		got := fmt.Sprint(rec[k])
		found := false
		for _, v := range values {
			if got == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (t *typeTable) create(body []byte, newID func() string) *Response {
	data, err := decodeRecord(body)
	if err != nil {
		return badRequest(err)
	}
	id := idOf(data)
	if id == "" {
		id = newID()
	}
	if _, dup := t.records[id]; dup {
		return &Response{
			Status: http.StatusConflict,
			Body:   errorBody(http.StatusConflict, "Conflict", fmt.Sprintf("%s %s already exists", t.def.Name, id)),
		}
	}
	data["id"] = id
	t.records[id] = data
	t.order = append(t.order, id)
	return &Response{Status: http.StatusCreated, Body: t.render(id)}
}

func (t *typeTable) update(id string, body []byte, partial bool) *Response {
	data, err := decodeRecord(body)
	if err != nil {
		return badRequest(err)
	}
	if partial {
		merged := t.records[id]
		for k, v := range data {
			merged[k] = v
		}
		data = merged
	}
	data["id"] = id
	t.records[id] = data
	return &Response{Status: http.StatusOK, Body: t.render(id)}
}

func decodeRecord(body []byte) (map[string]any, error) {
	var data map[string]any
	if err := apibody.DecodeInto(body, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = make(map[string]any)
	}
	for _, k := range []string{"type", "links", "actions", "baseType"} {
		delete(data, k)
	}
	return data, nil
}

func idOf(rec map[string]any) string {
	switch id := rec["id"].(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}

func badRequest(err error) *Response {
	return &Response{
		Status: http.StatusBadRequest,
		Body:   errorBody(http.StatusBadRequest, "InvalidBodyContent", err.Error()),
	}
}

func methodNotAllowed(method, path string) *Response {
	return &Response{
		Status: http.StatusMethodNotAllowed,
		Body:   errorBody(http.StatusMethodNotAllowed, "MethodNotAllowed", fmt.Sprintf("%s not allowed on %s", method, path)),
	}
}
