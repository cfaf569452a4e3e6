package marketplace

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	documentsPageSize = 50
	// MaxDownloadBatch is the largest number of documents one download
	// request may name.
	MaxDownloadBatch = 50
)

// Document is an entry of the seller document list.
type Document struct {
	ServiceName  string   `json:"serviceName"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Extensions   []string `json:"extensions"`
	CreationTime string   `json:"creationTime"`
	Viewed       bool     `json:"viewed"`
}

// Archive is one downloaded bundle: a zip holding one nested zip per
// requested document.
type Archive struct {
	FileName  string
	Extension string
	Data      []byte
}

// ListDocuments lists documents of category created between begin and end,
// walking offset pages until a short page.
func (c *Client) ListDocuments(ctx context.Context, acct Account, category string, begin, end time.Time) ([]Document, error) {
	var all []Document
	for offset := 0; ; offset += documentsPageSize {
		var page struct {
			Data struct {
				Documents []Document `json:"documents"`
			} `json:"data"`
		}
		err := c.do(ctx, call{
			group:    GroupDocuments,
			endpoint: "documents_list",
			account:  acct,
			method:   http.MethodGet,
			url:      join(c.opts.DocumentsURL, "/api/v1/documents/list"),
			query: map[string]string{
				"beginTime": begin.Format(time.DateOnly),
				"endTime":   end.Format(time.DateOnly),
				"category":  category,
				"limit":     strconv.Itoa(documentsPageSize),
				"offset":    strconv.Itoa(offset),
			},
		}, &page)
		if err != nil {
			return all, err
		}
		all = append(all, page.Data.Documents...)
		if len(page.Data.Documents) < documentsPageSize {
			return all, nil
		}
	}
}

type downloadParam struct {
	Extension   string `json:"extension"`
	ServiceName string `json:"serviceName"`
}

// DownloadDocuments fetches the xlsx form of each named document, at most
// MaxDownloadBatch per request, and returns the decoded archives in request
// order.
func (c *Client) DownloadDocuments(ctx context.Context, acct Account, serviceNames []string) ([]Archive, error) {
	var out []Archive
	for start := 0; start < len(serviceNames); start += MaxDownloadBatch {
		end := min(start+MaxDownloadBatch, len(serviceNames))

		params := make([]downloadParam, 0, end-start)
		for _, sn := range serviceNames[start:end] {
			params = append(params, downloadParam{Extension: "xlsx", ServiceName: sn})
		}
		var resp struct {
			Data struct {
				FileName  string `json:"fileName"`
				Extension string `json:"extension"`
				Document  string `json:"document"`
			} `json:"data"`
		}
		err := c.do(ctx, call{
			group:    GroupDownloads,
			endpoint: "documents_download",
			account:  acct,
			method:   http.MethodPost,
			url:      join(c.opts.DocumentsURL, "/api/v1/documents/download/all"),
			body:     map[string]any{"params": params},
		}, &resp)
		if err != nil {
			return out, err
		}
		data, err := base64.StdEncoding.DecodeString(resp.Data.Document)
		if err != nil {
			return out, fmt.Errorf("marketplace: documents_download for %s: base64: %w", acct.Name, err)
		}
		out = append(out, Archive{FileName: resp.Data.FileName, Extension: resp.Data.Extension, Data: data})
	}
	return out, nil
}
