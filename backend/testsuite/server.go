package testsuite

import (
	"crypto/md5" //nolint:gosec // provider-style ETags
	"encoding/hex"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type storedObject struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

// Server is an in-memory object service speaking just enough of the S3 REST dialect for a
// conformance run: put, get, head, delete, and paged listing on a single bucket. It never checks
// signatures, and it deliberately omits NextMarker from truncated listings the way some providers
// do, so clients must resume from the last returned key.
type Server struct {
	bucket string

	mu       sync.Mutex
	objects  map[string]*storedObject
	pageSize int
}

// NewServer returns a Server holding the named bucket, empty.
func NewServer(bucket string) *Server {
	return &Server{
		bucket:   bucket,
		objects:  make(map[string]*storedObject),
		pageSize: 1000,
	}
}

// Start serves the fake over a local listener. The caller closes it.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s)
}

// SetPageSize caps listing pages at n keys so a small object count still exercises pagination.
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// Len returns the number of stored objects.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, key := splitPath(r.URL.Path)
	switch {
	case bucket == "" && r.Method == http.MethodHead:
		// service-level reachability answer
		w.WriteHeader(http.StatusOK)
	case bucket != s.bucket:
		s.writeError(w, http.StatusNotFound, "NoSuchBucket", "no such bucket", "/"+bucket)
	case key == "" && r.Method == http.MethodGet:
		s.serveList(w, r)
	case key == "":
		s.writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "not allowed", "/"+bucket)
	default:
		s.serveObject(w, r, key)
	}
}

/*
	Handlers
*/

func (s *Server) serveList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prefix, marker := q.Get("prefix"), q.Get("marker")
	maxKeys := s.pageSize
	if mk, err := strconv.Atoi(q.Get("max-keys")); err == nil && mk > 0 && mk < maxKeys {
		maxKeys = mk
	}

	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) && (marker == "" || k > marker) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	result := listBucketResult{Name: s.bucket, Prefix: prefix, Marker: marker, MaxKeys: maxKeys}
	for _, k := range keys {
		if len(result.Contents) >= maxKeys {
			result.IsTruncated = true
			break
		}
		obj := s.objects[k]
		result.Contents = append(result.Contents, listEntry{
			Key:          k,
			LastModified: obj.lastModified.UTC().Truncate(time.Second),
			ETag:         etagOf(obj.data),
			Size:         int64(len(obj.data)),
			StorageClass: "STANDARD",
		})
	}
	s.writeXML(w, http.StatusOK, result)
}

func (s *Server) serveObject(w http.ResponseWriter, r *http.Request, key string) {
	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		s.objects[key] = &storedObject{
			data:         data,
			contentType:  r.Header.Get("Content-Type"),
			lastModified: time.Now(),
		}
		w.Header().Set("ETag", etagOf(data))
		w.WriteHeader(http.StatusOK)

	case http.MethodGet, http.MethodHead:
		obj, ok := s.objects[key]
		if !ok {
			s.writeError(w, http.StatusNotFound, "NoSuchKey", "no such key", "/"+s.bucket+"/"+key)
			return
		}
		h := w.Header()
		h.Set("ETag", etagOf(obj.data))
		h.Set("Last-Modified", obj.lastModified.UTC().Format(http.TimeFormat))
		h.Set("Content-Length", strconv.Itoa(len(obj.data)))
		if obj.contentType != "" {
			h.Set("Content-Type", obj.contentType)
		}
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(obj.data)
		}

	case http.MethodDelete:
		delete(s.objects, key)
		w.WriteHeader(http.StatusNoContent)

	default:
		s.writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "not allowed", "/"+s.bucket+"/"+key)
	}
}

/*
	Wire shapes and helpers
*/

type listBucketResult struct {
	XMLName     xml.Name    `xml:"ListBucketResult"`
	Name        string      `xml:"Name"`
	Prefix      string      `xml:"Prefix"`
	Marker      string      `xml:"Marker"`
	MaxKeys     int         `xml:"MaxKeys"`
	IsTruncated bool        `xml:"IsTruncated"`
	Contents    []listEntry `xml:"Contents"`
}

type listEntry struct {
	Key          string    `xml:"Key"`
	LastModified time.Time `xml:"LastModified"`
	ETag         string    `xml:"ETag"`
	Size         int64     `xml:"Size"`
	StorageClass string    `xml:"StorageClass"`
}

type errorResponse struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource"`
	RequestID string   `xml:"RequestId"`
}

func (s *Server) writeXML(w http.ResponseWriter, status int, v any) {
	body, err := xml.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message, resource string) {
	s.writeXML(w, status, errorResponse{Code: code, Message: message, Resource: resource, RequestID: "testsuite-request-id"})
}

func etagOf(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // provider-style ETags
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func splitPath(p string) (bucket, key string) {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "", ""
	}
	if i := strings.Index(p, "/"); i >= 0 {
		return p[:i], p[i+1:]
	}
	return p, ""
}
