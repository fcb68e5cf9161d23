package cloudfront

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // mirrors the scheme under test
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type fakeDistribution struct {
	config  distributionConfigXML
	etag    string
	status  string
	domain  string
	created time.Time
}

// fakeCDN is an in-memory CloudFront-compatible API for tests. Like the storage fake, it authorizes every
// request by recomputing the signature itself, so a signing bug in the client fails loudly.
type fakeCDN struct {
	accessKey string
	secret    string

	mu            sync.Mutex
	distributions map[string]*fakeDistribution
	invalidations map[string]map[string]*invalidationXML
	distSeq       int
	etagSeq       int
	invSeq        int
	pageSize      int

	calls []string
}

func newFakeCDN(accessKey, secret string) *fakeCDN {
	return &fakeCDN{
		accessKey:     accessKey,
		secret:        secret,
		distributions: make(map[string]*fakeDistribution),
		invalidations: make(map[string]map[string]*invalidationXML),
		pageSize:      100,
	}
}

func (f *fakeCDN) start() *httptest.Server {
	return httptest.NewServer(f)
}

func (f *fakeCDN) setPageSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSize = n
}

func (f *fakeCDN) callCount(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

func (f *fakeCDN) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)

	if !f.authorize(r) {
		f.writeError(w, http.StatusForbidden, "SignatureDoesNotMatch", "signature mismatch")
		return
	}

	rest, ok := strings.CutPrefix(r.URL.Path, "/"+apiVersion+"/distribution")
	if !ok {
		f.writeError(w, http.StatusNotFound, "NoSuchResource", "unknown api path")
		return
	}

	// rest is "", "/{id}", "/{id}/config", "/{id}/invalidation", or "/{id}/invalidation/{iid}"
	seg := strings.Split(strings.TrimPrefix(rest, "/"), "/")
	switch {
	case rest == "":
		f.serveDistributionRoot(w, r)
	case len(seg) == 1:
		f.serveDistribution(w, r, seg[0])
	case len(seg) == 2 && seg[1] == "config":
		f.serveDistributionConfig(w, r, seg[0])
	case len(seg) == 2 && seg[1] == "invalidation":
		f.serveInvalidationRoot(w, r, seg[0])
	case len(seg) == 3 && seg[1] == "invalidation":
		f.serveInvalidation(w, seg[0], seg[2])
	default:
		f.writeError(w, http.StatusNotFound, "NoSuchResource", "unknown api path")
	}
}

// authorize recomputes the Date-header HMAC from the raw request.
func (f *fakeCDN) authorize(r *http.Request) bool {
	date := r.Header.Get("Date")
	if date == "" {
		return false
	}
	mac := hmac.New(sha1.New, []byte(f.secret))
	mac.Write([]byte(date))
	want := "AWS " + f.accessKey + ":" + base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return r.Header.Get("Authorization") == want
}

/*
	Distribution handlers
*/

func (f *fakeCDN) serveDistributionRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		var config distributionConfigXML
		if xml.Unmarshal(body, &config) != nil || config.Origin.DNSName == "" {
			f.writeError(w, http.StatusBadRequest, "MalformedInput", "bad distribution config")
			return
		}
		if config.CallerReference == "" {
			f.writeError(w, http.StatusBadRequest, "MissingInput", "caller reference is required")
			return
		}
		if !strings.Contains(string(body), xmlNamespace) {
			f.writeError(w, http.StatusBadRequest, "MalformedInput", "missing schema namespace")
			return
		}

		f.distSeq++
		id := fmt.Sprintf("DIST%03d", f.distSeq)
		dist := &fakeDistribution{
			config:  config,
			etag:    f.nextETag(),
			status:  "InProgress",
			domain:  strings.ToLower(id) + ".cdn.example.net",
			created: time.Now().UTC().Truncate(time.Second),
		}
		f.distributions[id] = dist
		w.Header().Set("ETag", dist.etag)
		f.writeXML(w, http.StatusCreated, f.distributionBody(id, dist))

	case http.MethodGet:
		f.serveDistributionList(w, r)

	default:
		f.writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "not allowed")
	}
}

func (f *fakeCDN) serveDistribution(w http.ResponseWriter, r *http.Request, id string) {
	dist, ok := f.distributions[id]
	if !ok {
		f.writeError(w, http.StatusNotFound, "NoSuchDistribution", "no such distribution")
		return
	}

	switch r.Method {
	case http.MethodGet:
		w.Header().Set("ETag", dist.etag)
		f.writeXML(w, http.StatusOK, f.distributionBody(id, dist))

	case http.MethodDelete:
		if r.Header.Get("If-Match") == "" {
			f.writeError(w, http.StatusBadRequest, "InvalidIfMatchVersion", "if-match is required")
			return
		}
		if r.Header.Get("If-Match") != dist.etag {
			f.writeError(w, http.StatusPreconditionFailed, "PreconditionFailed", "etag does not match")
			return
		}
		if dist.config.Enabled {
			f.writeError(w, http.StatusConflict, "DistributionNotDisabled", "distribution must be disabled")
			return
		}
		delete(f.distributions, id)
		w.WriteHeader(http.StatusNoContent)

	default:
		f.writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "not allowed")
	}
}

func (f *fakeCDN) serveDistributionConfig(w http.ResponseWriter, r *http.Request, id string) {
	dist, ok := f.distributions[id]
	if !ok {
		f.writeError(w, http.StatusNotFound, "NoSuchDistribution", "no such distribution")
		return
	}

	switch r.Method {
	case http.MethodGet:
		w.Header().Set("ETag", dist.etag)
		f.writeXML(w, http.StatusOK, dist.config)

	case http.MethodPut:
		if r.Header.Get("If-Match") == "" {
			f.writeError(w, http.StatusBadRequest, "InvalidIfMatchVersion", "if-match is required")
			return
		}
		if r.Header.Get("If-Match") != dist.etag {
			f.writeError(w, http.StatusPreconditionFailed, "PreconditionFailed", "etag does not match")
			return
		}
		body, _ := io.ReadAll(r.Body)
		var config distributionConfigXML
		if xml.Unmarshal(body, &config) != nil || config.Origin.DNSName == "" {
			f.writeError(w, http.StatusBadRequest, "MalformedInput", "bad distribution config")
			return
		}
		dist.config = config
		dist.etag = f.nextETag()
		dist.status = "InProgress"
		w.Header().Set("ETag", dist.etag)
		f.writeXML(w, http.StatusOK, f.distributionBody(id, dist))

	default:
		f.writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "not allowed")
	}
}

func (f *fakeCDN) serveDistributionList(w http.ResponseWriter, r *http.Request) {
	marker, maxItems := f.pageParams(r)

	var ids []string
	for id := range f.distributions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := distributionListXML{Marker: marker, MaxItems: maxItems}
	for _, id := range ids {
		if marker != "" && id <= marker {
			continue
		}
		if len(result.Summaries) >= maxItems {
			result.IsTruncated = true
			break
		}
		dist := f.distributions[id]
		result.Summaries = append(result.Summaries, distributionSummaryXML{
			ID:               id,
			Status:           dist.status,
			LastModifiedTime: dist.created,
			DomainName:       dist.domain,
			Origin:           dist.config.Origin,
			CNAMEs:           dist.config.CNAMEs,
			Comment:          dist.config.Comment,
			Enabled:          dist.config.Enabled,
		})
	}
	if result.IsTruncated && len(result.Summaries) > 0 {
		result.NextMarker = result.Summaries[len(result.Summaries)-1].ID
	}
	f.writeXML(w, http.StatusOK, result)
}

/*
	Invalidation handlers
*/

func (f *fakeCDN) serveInvalidationRoot(w http.ResponseWriter, r *http.Request, distID string) {
	if _, ok := f.distributions[distID]; !ok {
		f.writeError(w, http.StatusNotFound, "NoSuchDistribution", "no such distribution")
		return
	}

	switch r.Method {
	case http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		var batch invalidationBatchXML
		if xml.Unmarshal(body, &batch) != nil || len(batch.Paths) == 0 || batch.CallerReference == "" {
			f.writeError(w, http.StatusBadRequest, "MalformedInput", "bad invalidation batch")
			return
		}
		f.invSeq++
		id := fmt.Sprintf("INV%03d", f.invSeq)
		inv := &invalidationXML{
			ID:         id,
			Status:     "InProgress",
			CreateTime: time.Now().UTC().Truncate(time.Second),
			Batch:      batch,
		}
		if f.invalidations[distID] == nil {
			f.invalidations[distID] = make(map[string]*invalidationXML)
		}
		f.invalidations[distID][id] = inv
		f.writeXML(w, http.StatusCreated, inv)

	case http.MethodGet:
		marker, maxItems := f.pageParams(r)
		var ids []string
		for id := range f.invalidations[distID] {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		result := invalidationListXML{Marker: marker, MaxItems: maxItems}
		for _, id := range ids {
			if marker != "" && id <= marker {
				continue
			}
			if len(result.Summaries) >= maxItems {
				result.IsTruncated = true
				break
			}
			result.Summaries = append(result.Summaries, invalidationSummaryXML{
				ID:     id,
				Status: f.invalidations[distID][id].Status,
			})
		}
		if result.IsTruncated && len(result.Summaries) > 0 {
			result.NextMarker = result.Summaries[len(result.Summaries)-1].ID
		}
		f.writeXML(w, http.StatusOK, result)

	default:
		f.writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "not allowed")
	}
}

func (f *fakeCDN) serveInvalidation(w http.ResponseWriter, distID, id string) {
	inv, ok := f.invalidations[distID][id]
	if !ok {
		f.writeError(w, http.StatusNotFound, "NoSuchInvalidation", "no such invalidation")
		return
	}
	f.writeXML(w, http.StatusOK, inv)
}

/*
	Response helpers
*/

func (f *fakeCDN) nextETag() string {
	f.etagSeq++
	return "E" + strconv.Itoa(f.etagSeq)
}

func (f *fakeCDN) distributionBody(id string, dist *fakeDistribution) distributionXML {
	return distributionXML{
		ID:               id,
		Status:           dist.status,
		LastModifiedTime: dist.created,
		DomainName:       dist.domain,
		Config:           dist.config,
	}
}

func (f *fakeCDN) pageParams(r *http.Request) (string, int) {
	q := r.URL.Query()
	maxItems := f.pageSize
	if mi, err := strconv.Atoi(q.Get("MaxItems")); err == nil && mi > 0 && mi < maxItems {
		maxItems = mi
	}
	return q.Get("Marker"), maxItems
}

func (f *fakeCDN) writeXML(w http.ResponseWriter, status int, v any) {
	body, err := xml.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (f *fakeCDN) writeError(w http.ResponseWriter, status int, code, message string) {
	f.writeXML(w, status, cfErrorResponse{
		Type:      "Sender",
		Code:      code,
		Message:   message,
		RequestID: "fake-request-id",
	})
}
