package mcp

import (
	"context"

	"github.com/cozekit/cozemcp/internal/coze"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ListKnowledgeBasesInput defines the input schema for list_knowledge_bases.
type ListKnowledgeBasesInput struct {
	SpaceID        string `json:"space_id,omitempty" jsonschema:"Workspace id to list knowledge bases from. Falls back to the server's configured default space."`
	Name           string `json:"name,omitempty" jsonschema:"Filter by knowledge base name (fuzzy match)."`
	FormatType     *int   `json:"format_type,omitempty" jsonschema:"Filter by content type: 0 for text, 2 for image."`
	PageNum        int    `json:"page_num,omitempty" jsonschema:"Page number, starting at 1."`
	PageSize       int    `json:"page_size,omitempty" jsonschema:"Records per page, 1 to 300."`
	AccurateCounts bool   `json:"accurate_counts,omitempty" jsonschema:"Reconcile document counts against the per-record detail view (up to 50 extra requests). Defaults to false."`
	Detailed       bool   `json:"detailed,omitempty" jsonschema:"Return every known field per knowledge base instead of the five-field summary. Defaults to false."`
}

// knowledgeBaseSummary is the compact per-record projection list callers get
// unless they ask for the detailed view.
type knowledgeBaseSummary struct {
	DatasetID     string `json:"dataset_id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	DocumentCount int64  `json:"document_count"`
	CreatedAt     int64  `json:"created_at"`
}

type knowledgeBaseSummaryPage struct {
	Datasets []knowledgeBaseSummary `json:"datasets"`
	Total    int                    `json:"total"`
}

// registerListKnowledgeBases registers the knowledge base listing tool.
func (s *Server) registerListKnowledgeBases() error {
	return addTool(s, "list_knowledge_bases",
		"List the knowledge bases (datasets) in a Coze workspace, with name and format filtering.",
		func(ctx context.Context, req *mcp.CallToolRequest, in ListKnowledgeBasesInput) (*mcp.CallToolResult, any, error) {
			spaceID := s.resolveSpaceID(in.SpaceID)
			if spaceID == "" {
				return toolErrorf("space_id is required (no default space configured)"), nil, nil
			}
			page, err := s.client.ListDatasets(ctx, coze.ListDatasetsInput{
				SpaceID:        spaceID,
				Name:           in.Name,
				FormatType:     in.FormatType,
				PageNum:        in.PageNum,
				PageSize:       in.PageSize,
				AccurateCounts: in.AccurateCounts,
			})
			if err != nil {
				return toolError(err), nil, nil
			}
			names := make([]string, 0, len(page.Datasets))
			for _, ds := range page.Datasets {
				names = append(names, ds.Name)
			}
			summary := summarizeNames("knowledge bases", names, page.Total)
			if in.Detailed {
				return toolResultWithSummary(summary, page), nil, nil
			}
			compact := knowledgeBaseSummaryPage{
				Datasets: make([]knowledgeBaseSummary, 0, len(page.Datasets)),
				Total:    page.Total,
			}
			for _, ds := range page.Datasets {
				compact.Datasets = append(compact.Datasets, knowledgeBaseSummary{
					DatasetID:     ds.DatasetID,
					Name:          ds.Name,
					Description:   ds.Description,
					DocumentCount: ds.DocumentCount,
					CreatedAt:     ds.CreatedAt,
				})
			}
			return toolResultWithSummary(summary, compact), nil, nil
		})
}

// CreateDatasetInput defines the input schema for create_dataset.
type CreateDatasetInput struct {
	Name        string `json:"name" jsonschema:"Knowledge base name, at most 100 characters."`
	FormatType  *int   `json:"format_type" jsonschema:"Content type: 0 for text, 2 for image."`
	SpaceID     string `json:"space_id,omitempty" jsonschema:"Workspace id to create the knowledge base in. Falls back to the server's configured default space."`
	Description string `json:"description,omitempty" jsonschema:"Optional description."`
	FileID      string `json:"file_id,omitempty" jsonschema:"Optional icon file id."`
}

// registerCreateDataset registers the knowledge base creation tool.
func (s *Server) registerCreateDataset() error {
	return addTool(s, "create_dataset",
		"Create a new knowledge base (dataset) in a Coze workspace.",
		func(ctx context.Context, req *mcp.CallToolRequest, in CreateDatasetInput) (*mcp.CallToolResult, any, error) {
			if in.FormatType == nil {
				return toolErrorf("format_type is required (0 for text, 2 for image)"), nil, nil
			}
			result, err := s.client.CreateDataset(ctx, coze.CreateDatasetInput{
				Name:        in.Name,
				SpaceID:     s.resolveSpaceID(in.SpaceID),
				FormatType:  *in.FormatType,
				Description: in.Description,
				FileID:      in.FileID,
			})
			if err != nil {
				return toolError(err), nil, nil
			}
			return toolResult(result), nil, nil
		})
}

// UploadDocumentInput defines the input schema for
// upload_document_to_knowledge_base.
type UploadDocumentInput struct {
	DatasetID    string `json:"dataset_id" jsonschema:"Knowledge base id to upload into."`
	FilePath     string `json:"file_path" jsonschema:"Path to a local file readable by the server. At most 10 MiB."`
	DocumentName string `json:"document_name,omitempty" jsonschema:"Display name for the document. Defaults to the file name."`
	ChunkSize    int    `json:"chunk_size,omitempty" jsonschema:"Maximum tokens per chunk. Defaults to 800."`
	ChunkOverlap int    `json:"chunk_overlap,omitempty" jsonschema:"Token overlap between chunks. Defaults to 100."`
}

// registerUploadDocument registers the document upload tool.
func (s *Server) registerUploadDocument() error {
	return addTool(s, "upload_document_to_knowledge_base",
		"Upload a local file as a document into a Coze knowledge base. The file is read server-side, base64-encoded and chunked upstream.",
		func(ctx context.Context, req *mcp.CallToolRequest, in UploadDocumentInput) (*mcp.CallToolResult, any, error) {
			result, err := s.client.UploadDocument(ctx, coze.UploadDocumentInput{
				DatasetID:    in.DatasetID,
				FilePath:     in.FilePath,
				DocumentName: in.DocumentName,
				ChunkSize:    in.ChunkSize,
				ChunkOverlap: in.ChunkOverlap,
			})
			if err != nil {
				return toolError(err), nil, nil
			}
			return toolResult(result), nil, nil
		})
}
