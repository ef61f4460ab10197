package coze

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxDatasetNameLen is the upstream limit on dataset names.
const MaxDatasetNameLen = 100

// MaxUploadBytes caps document uploads; the document body travels base64
// inline in the JSON request, so large files are rejected locally.
const MaxUploadBytes = 10 * 1024 * 1024

// Default chunking for uploaded documents.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

// ListDatasetsInput are the query parameters for dataset listing.
type ListDatasetsInput struct {
	SpaceID    string
	Name       string
	FormatType *int
	PageNum    int
	PageSize   int
	// AccurateCounts triggers the best-effort per-record detail fetch to
	// reconcile document counts between the list view and the detail view.
	AccurateCounts bool
}

// ListDatasets fetches one page of knowledge bases and normalizes whichever
// envelope shape comes back.
func (c *Client) ListDatasets(ctx context.Context, in ListDatasetsInput) (*DatasetPage, error) {
	if in.SpaceID == "" {
		return nil, &Error{Kind: KindBadRequest, Message: "space_id is required"}
	}
	if in.PageNum < 0 {
		return nil, &Error{Kind: KindBadRequest, Message: "page_num must be >= 1"}
	}
	if in.PageNum == 0 {
		in.PageNum = 1
	}
	if in.PageSize < 0 || in.PageSize > 300 {
		return nil, &Error{Kind: KindBadRequest, Message: "page_size must be in 1..=300"}
	}

	params := map[string]any{
		"space_id": in.SpaceID,
		"page_num": in.PageNum,
	}
	if in.Name != "" {
		params["name"] = in.Name
	}
	if in.FormatType != nil {
		params["format_type"] = *in.FormatType
	}
	if in.PageSize > 0 {
		params["page_size"] = in.PageSize
	}

	resp, err := c.Execute(ctx, Request{
		Endpoint: endpointListDatasets,
		Method:   http.MethodGet,
		Params:   params,
	})
	if err != nil {
		return nil, err
	}

	body := resp.Object()
	if code, ok := asInt(body, "code"); ok && code != 0 {
		return nil, upstreamError(code, asString(body, "msg", "message"))
	}

	page := normalizeDatasetPage(body)
	if in.AccurateCounts {
		c.refineDocumentCounts(ctx, page.Datasets)
	}
	return &page, nil
}

// refineDocumentCounts reconciles the list-view document count against the
// per-record detail view, bounded to the first 50 records. Detail fetch
// failures are ignored and the list-view value stands.
func (c *Client) refineDocumentCounts(ctx context.Context, datasets []KnowledgeBase) {
	limit := min(len(datasets), 50)
	for i := range limit {
		detail, err := c.GetDataset(ctx, datasets[i].DatasetID)
		if err != nil {
			c.logger.Debug("dataset detail fetch skipped", "dataset_id", datasets[i].DatasetID, "error", err)
			continue
		}
		if files, ok := asArray(detail, "file_list"); ok {
			datasets[i].DocumentCount = int64(len(files))
		} else if count, ok := asInt(detail, "doc_count", "document_count", "file_count"); ok {
			datasets[i].DocumentCount = count
		}
	}
}

// GetDataset fetches the detail view of one knowledge base, unwrapped from
// its data envelope.
func (c *Client) GetDataset(ctx context.Context, datasetID string) (Object, error) {
	resp, err := c.Execute(ctx, Request{
		Endpoint: endpointDatasetDetail,
		Method:   http.MethodGet,
		Params:   map[string]any{"dataset_id": datasetID},
	})
	if err != nil {
		return nil, err
	}
	return unwrapData(resp.Object()), nil
}

// CreateDatasetInput are the parameters for dataset creation. FormatType 0
// is a text dataset, 2 an image dataset; the platform accepts nothing else.
type CreateDatasetInput struct {
	Name        string
	SpaceID     string
	FormatType  int
	Description string
	FileID      string
}

// CreateDatasetResult reports the created dataset.
type CreateDatasetResult struct {
	DatasetID string `json:"dataset_id"`
}

// ValidateCreateDataset applies the local constraints checked before any
// network call.
func ValidateCreateDataset(in CreateDatasetInput) error {
	if in.Name == "" {
		return &Error{Kind: KindBadRequest, Message: "name is required"}
	}
	if utf8.RuneCountInString(in.Name) > MaxDatasetNameLen {
		return &Error{Kind: KindBadRequest, Message: fmt.Sprintf("name exceeds %d characters", MaxDatasetNameLen)}
	}
	if in.FormatType != 0 && in.FormatType != 2 {
		return &Error{Kind: KindBadRequest, Message: "format_type must be 0 (text) or 2 (image)"}
	}
	if in.SpaceID == "" {
		return &Error{Kind: KindBadRequest, Message: "space_id is required"}
	}
	return nil
}

// CreateDataset creates a knowledge base via the v1 datasets API.
func (c *Client) CreateDataset(ctx context.Context, in CreateDatasetInput) (*CreateDatasetResult, error) {
	if err := ValidateCreateDataset(in); err != nil {
		return nil, err
	}

	body := map[string]any{
		"name":        in.Name,
		"space_id":    in.SpaceID,
		"format_type": in.FormatType,
	}
	if in.Description != "" {
		body["description"] = in.Description
	}
	if in.FileID != "" {
		body["file_id"] = in.FileID
	}

	resp, err := c.Execute(ctx, Request{
		Endpoint: endpointCreateDataset,
		Method:   http.MethodPost,
		Body:     body,
	})
	if err != nil {
		return nil, err
	}

	parsed := resp.Object()
	if code, ok := asInt(parsed, "code"); ok && code != 0 {
		return nil, upstreamError(code, asString(parsed, "msg", "message"))
	}
	data := unwrapData(parsed)
	return &CreateDatasetResult{DatasetID: asString(data, "dataset_id", "id")}, nil
}

// UploadDocumentInput describes one local file upload.
type UploadDocumentInput struct {
	DatasetID    string
	FilePath     string
	DocumentName string
	ChunkSize    int
	ChunkOverlap int
}

// UploadDocumentResult reports the created document ids.
type UploadDocumentResult struct {
	DatasetID   string   `json:"dataset_id"`
	DocumentIDs []string `json:"document_ids"`
	FileName    string   `json:"file_name"`
	FileSize    int64    `json:"file_size"`
}

// UploadDocument reads a local file, base64-encodes it and registers it as a
// document in the given knowledge base. Empty files and files over
// MaxUploadBytes are rejected before any network call.
func (c *Client) UploadDocument(ctx context.Context, in UploadDocumentInput) (*UploadDocumentResult, error) {
	if in.DatasetID == "" {
		return nil, &Error{Kind: KindBadRequest, Message: "dataset_id is required"}
	}
	if in.FilePath == "" {
		return nil, &Error{Kind: KindBadRequest, Message: "file_path is required"}
	}

	info, err := os.Stat(in.FilePath)
	if err != nil {
		return nil, &Error{Kind: KindBadRequest, Message: fmt.Sprintf("cannot read file: %v", err)}
	}
	if info.Size() == 0 {
		return nil, &Error{Kind: KindBadRequest, Message: "file is empty"}
	}
	if info.Size() > MaxUploadBytes {
		return nil, &Error{Kind: KindBadRequest, Message: fmt.Sprintf("file exceeds %d bytes", MaxUploadBytes)}
	}

	content, err := os.ReadFile(in.FilePath)
	if err != nil {
		return nil, &Error{Kind: KindBadRequest, Message: fmt.Sprintf("cannot read file: %v", err)}
	}

	name := in.DocumentName
	if name == "" {
		name = filepath.Base(in.FilePath)
	}
	fileType := strings.TrimPrefix(filepath.Ext(in.FilePath), ".")
	if fileType == "" {
		fileType = "txt"
	}
	chunkSize := in.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunkOverlap := in.ChunkOverlap
	if chunkOverlap <= 0 {
		chunkOverlap = DefaultChunkOverlap
	}

	body := map[string]any{
		"dataset_id": in.DatasetID,
		"document_bases": []map[string]any{{
			"name": name,
			"source_info": map[string]any{
				"file_base64": base64.StdEncoding.EncodeToString(content),
				"file_type":   fileType,
			},
		}},
		"chunk_strategy": map[string]any{
			"chunk_type":    1,
			"max_tokens":    chunkSize,
			"chunk_overlap": chunkOverlap,
			"separator":     "\n",
		},
	}

	resp, err := c.Execute(ctx, Request{
		Endpoint: endpointCreateDocument,
		Method:   http.MethodPost,
		Body:     body,
	})
	if err != nil {
		return nil, err
	}

	parsed := resp.Object()
	if code, ok := asInt(parsed, "code"); ok && code != 0 {
		return nil, upstreamError(code, asString(parsed, "msg", "message"))
	}

	result := &UploadDocumentResult{
		DatasetID: in.DatasetID,
		FileName:  name,
		FileSize:  info.Size(),
	}
	data := unwrapData(parsed)
	if ids := asStringSlice(data, "document_ids"); ids != nil {
		result.DocumentIDs = ids
	} else if infos, ok := asArray(data, "document_infos"); ok {
		for _, item := range infos {
			if obj, ok := item.(map[string]any); ok {
				if id := asString(obj, "document_id", "id"); id != "" {
					result.DocumentIDs = append(result.DocumentIDs, id)
				}
			}
		}
	}
	return result, nil
}
