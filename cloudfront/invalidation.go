package cloudfront

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidalfs/objstore/utils"
)

// Invalidation is one batch of object paths being purged from a distribution's edge caches.
type Invalidation struct {
	ID              string
	Status          string
	CreateTime      time.Time
	Paths           []string
	CallerReference string
}

// InvalidationSummary is one entry of an invalidation listing.
type InvalidationSummary struct {
	ID     string
	Status string
}

// ListInvalidationsOptions controls one listing call, like ListDistributionsOptions.
type ListInvalidationsOptions struct {
	Marker   string
	MaxItems int
}

// InvalidationList is the result of ListInvalidations.
type InvalidationList struct {
	Marker      string
	NextMarker  string
	IsTruncated bool
	Summaries   []InvalidationSummary
}

/*
	Wire shapes
*/

type invalidationBatchXML struct {
	XMLName         xml.Name `xml:"InvalidationBatch"`
	XMLNS           string   `xml:"xmlns,attr,omitempty"`
	Paths           []string `xml:"Path"`
	CallerReference string   `xml:"CallerReference"`
}

type invalidationXML struct {
	XMLName    xml.Name             `xml:"Invalidation"`
	ID         string               `xml:"Id"`
	Status     string               `xml:"Status"`
	CreateTime time.Time            `xml:"CreateTime"`
	Batch      invalidationBatchXML `xml:"InvalidationBatch"`
}

type invalidationSummaryXML struct {
	ID     string `xml:"Id"`
	Status string `xml:"Status"`
}

type invalidationListXML struct {
	XMLName     xml.Name                 `xml:"InvalidationList"`
	Marker      string                   `xml:"Marker"`
	NextMarker  string                   `xml:"NextMarker"`
	MaxItems    int                      `xml:"MaxItems"`
	IsTruncated bool                     `xml:"IsTruncated"`
	Summaries   []invalidationSummaryXML `xml:"InvalidationSummary"`
}

/*
	Operations
*/

// CreateInvalidation purges paths from the distribution's edge caches. Paths are object keys and get their
// leading slash added when missing; at least one is required. An empty callerReference is filled with a
// unique value.
func (c *Client) CreateInvalidation(ctx context.Context, distributionID string, paths []string, callerReference string) (*Invalidation, error) {
	if distributionID == "" {
		return nil, errors.New("distribution id is required")
	}
	if len(paths) == 0 {
		return nil, errors.New("at least one path is required")
	}
	if callerReference == "" {
		callerReference = strconv.FormatInt(time.Now().UnixNano(), 10)
	}

	batch := invalidationBatchXML{XMLNS: xmlNamespace, CallerReference: callerReference}
	for _, p := range paths {
		batch.Paths = append(batch.Paths, utils.EnsureLeadingSlash(p))
	}
	body, err := xml.Marshal(batch)
	if err != nil {
		return nil, err
	}

	var raw invalidationXML
	_, err = c.doXML(ctx, http.MethodPost, "/distribution/"+distributionID+"/invalidation",
		nil, "", body, &raw, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return invalidationFromWire(raw), nil
}

// GetInvalidation returns the invalidation with the given id on the distribution.
func (c *Client) GetInvalidation(ctx context.Context, distributionID, id string) (*Invalidation, error) {
	if distributionID == "" {
		return nil, errors.New("distribution id is required")
	}
	if id == "" {
		return nil, errors.New("invalidation id is required")
	}

	var raw invalidationXML
	_, err := c.doXML(ctx, http.MethodGet, "/distribution/"+distributionID+"/invalidation/"+id,
		nil, "", nil, &raw, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return invalidationFromWire(raw), nil
}

// ListInvalidations lists the distribution's invalidations, newest first, with the same single-page versus
// follow-everything behavior as ListDistributions.
func (c *Client) ListInvalidations(ctx context.Context, distributionID string, opts ListInvalidationsOptions) (*InvalidationList, error) {
	if distributionID == "" {
		return nil, errors.New("distribution id is required")
	}
	if opts.MaxItems > 0 {
		return c.listInvalidationsPage(ctx, distributionID, opts.Marker, opts.MaxItems)
	}

	out := &InvalidationList{Marker: opts.Marker}
	marker := opts.Marker
	for {
		page, err := c.listInvalidationsPage(ctx, distributionID, marker, autoListPageSize)
		if err != nil {
			return nil, err
		}
		out.Summaries = append(out.Summaries, page.Summaries...)
		if !page.IsTruncated || page.NextMarker == "" {
			return out, nil
		}
		marker = page.NextMarker
	}
}

/*
	Private helpers
*/

func (c *Client) listInvalidationsPage(ctx context.Context, distributionID, marker string, maxItems int) (*InvalidationList, error) {
	query := url.Values{}
	if marker != "" {
		query.Set("Marker", marker)
	}
	query.Set("MaxItems", strconv.Itoa(maxItems))

	var raw invalidationListXML
	if _, err := c.doXML(ctx, http.MethodGet, "/distribution/"+distributionID+"/invalidation",
		query, "", nil, &raw, http.StatusOK); err != nil {
		return nil, err
	}

	out := &InvalidationList{
		Marker:      raw.Marker,
		NextMarker:  raw.NextMarker,
		IsTruncated: raw.IsTruncated,
		Summaries:   make([]InvalidationSummary, 0, len(raw.Summaries)),
	}
	for _, s := range raw.Summaries {
		out.Summaries = append(out.Summaries, InvalidationSummary{ID: s.ID, Status: s.Status})
	}
	if out.IsTruncated && out.NextMarker == "" && len(raw.Summaries) > 0 {
		out.NextMarker = raw.Summaries[len(raw.Summaries)-1].ID
	}
	return out, nil
}

func invalidationFromWire(raw invalidationXML) *Invalidation {
	return &Invalidation{
		ID:              raw.ID,
		Status:          raw.Status,
		CreateTime:      raw.CreateTime,
		Paths:           raw.Batch.Paths,
		CallerReference: raw.Batch.CallerReference,
	}
}
