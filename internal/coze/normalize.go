package coze

import (
	"encoding/json"
)

// listItemKeys and totalKeys are tried in fixed priority order. The upstream
// API has shipped multiple historical envelopes for the same list endpoints
// (nested under data.datasets, under data.dataset_list with total_count, and
// top-level datasets/total), so no single shape is authoritative.
var (
	listItemKeys = []string{"datasets", "dataset_list", "list", "items"}
	totalKeys    = []string{"total", "total_count"}
)

// ExtractList pulls a (items, total) pair out of an arbitrary list envelope.
// When no count key is present the array length stands in; when no array key
// is present the result is empty with total 0 — a shape mismatch never fails
// the calling operation.
func ExtractList(data Object) ([]Object, int) {
	raw, _ := asArray(data, listItemKeys...)
	items := make([]Object, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]any); ok {
			items = append(items, obj)
		}
	}
	total := int(asIntDefault(data, int64(len(items)), totalKeys...))
	return items, total
}

// KnowledgeBase is the canonical dataset record. Fields absent upstream stay
// zero; upstream fields we don't model land in Extra instead of being
// dropped.
type KnowledgeBase struct {
	DatasetID     string `json:"dataset_id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	CreatedAt     int64  `json:"created_at"`
	DocumentCount int64  `json:"document_count"`

	UpdateTime           int64          `json:"update_time,omitempty"`
	Status               int64          `json:"status,omitempty"`
	FormatType           int64          `json:"format_type,omitempty"`
	SliceCount           int64          `json:"slice_count,omitempty"`
	SpaceID              string         `json:"space_id,omitempty"`
	DatasetType          int64          `json:"dataset_type,omitempty"`
	CanEdit              bool           `json:"can_edit,omitempty"`
	IconURL              string         `json:"icon_url,omitempty"`
	IconURI              string         `json:"icon_uri,omitempty"`
	AvatarURL            string         `json:"avatar_url,omitempty"`
	CreatorID            string         `json:"creator_id,omitempty"`
	CreatorName          string         `json:"creator_name,omitempty"`
	HitCount             int64          `json:"hit_count,omitempty"`
	AllFileSize          int64          `json:"all_file_size,omitempty"`
	BotUsedCount         int64          `json:"bot_used_count,omitempty"`
	FileList             []string       `json:"file_list,omitempty"`
	FailedFileList       []string       `json:"failed_file_list,omitempty"`
	ProcessingFileList   []string       `json:"processing_file_list,omitempty"`
	ProcessingFileIDList []string       `json:"processing_file_id_list,omitempty"`
	ChunkStrategy        map[string]any `json:"chunk_strategy,omitempty"`
	StorageConfig        map[string]any `json:"storage_config,omitempty"`
	ProjectID            string         `json:"project_id,omitempty"`

	// Extra preserves unknown upstream fields for forward compatibility.
	Extra map[string]any `json:"extra,omitempty"`
}

// knownDatasetKeys covers every upstream key DecodeKnowledgeBase maps to a
// struct field, including the historical aliases.
var knownDatasetKeys = map[string]bool{
	"dataset_id": true, "id": true,
	"name": true, "description": true,
	"create_time": true, "created_at": true,
	"doc_count": true, "document_count": true, "file_count": true,
	"update_time": true, "status": true, "format_type": true,
	"slice_count": true, "space_id": true, "dataset_type": true,
	"can_edit": true, "icon_url": true, "icon_uri": true,
	"avatar_url": true, "creator_id": true, "creator_name": true,
	"hit_count": true, "all_file_size": true, "bot_used_count": true,
	"file_list": true, "failed_file_list": true,
	"processing_file_list": true, "processing_file_id_list": true,
	"chunk_strategy": true, "storage_config": true, "project_id": true,
}

// DecodeKnowledgeBase applies per-field tolerant extraction to one dataset
// object. Each field accepts the aliases the platform has used historically;
// numeric fields accept numbers or numeric strings (all_file_size in
// particular can overflow 53-bit float precision and arrives as a string).
func DecodeKnowledgeBase(obj Object) KnowledgeBase {
	kb := KnowledgeBase{
		DatasetID:     asString(obj, "dataset_id", "id"),
		Name:          asString(obj, "name"),
		Description:   asString(obj, "description"),
		CreatedAt:     asIntDefault(obj, 0, "create_time", "created_at"),
		DocumentCount: asIntDefault(obj, 0, "doc_count", "document_count", "file_count"),

		UpdateTime:           asIntDefault(obj, 0, "update_time"),
		Status:               asIntDefault(obj, 0, "status"),
		FormatType:           asIntDefault(obj, 0, "format_type"),
		SliceCount:           asIntDefault(obj, 0, "slice_count"),
		SpaceID:              asString(obj, "space_id"),
		DatasetType:          asIntDefault(obj, 0, "dataset_type"),
		IconURL:              asString(obj, "icon_url"),
		IconURI:              asString(obj, "icon_uri"),
		AvatarURL:            asString(obj, "avatar_url"),
		CreatorID:            asString(obj, "creator_id"),
		CreatorName:          asString(obj, "creator_name"),
		HitCount:             asIntDefault(obj, 0, "hit_count"),
		AllFileSize:          asIntDefault(obj, 0, "all_file_size"),
		BotUsedCount:         asIntDefault(obj, 0, "bot_used_count"),
		FileList:             asStringSlice(obj, "file_list"),
		FailedFileList:       asStringSlice(obj, "failed_file_list"),
		ProcessingFileList:   asStringSlice(obj, "processing_file_list"),
		ProcessingFileIDList: asStringSlice(obj, "processing_file_id_list"),
		ProjectID:            asString(obj, "project_id"),
	}
	if b, ok := asBool(obj, "can_edit"); ok {
		kb.CanEdit = b
	}
	if m, ok := asObject(obj, "chunk_strategy"); ok {
		kb.ChunkStrategy = m
	}
	if m, ok := asObject(obj, "storage_config"); ok {
		kb.StorageConfig = m
	}
	if kb.DocumentCount < 0 {
		kb.DocumentCount = 0
	}
	for k, v := range obj {
		if knownDatasetKeys[k] {
			continue
		}
		if kb.Extra == nil {
			kb.Extra = make(map[string]any)
		}
		kb.Extra[k] = v
	}
	return kb
}

// UnmarshalJSON routes through DecodeKnowledgeBase so a serialized record
// round-trips through the same tolerant extraction as raw upstream JSON.
func (kb *KnowledgeBase) UnmarshalJSON(data []byte) error {
	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	// "extra" is our own serialization artifact, not an upstream field.
	if extra, ok := asObject(obj, "extra"); ok {
		delete(obj, "extra")
		*kb = DecodeKnowledgeBase(obj)
		if kb.Extra == nil {
			kb.Extra = extra
		} else {
			for k, v := range extra {
				kb.Extra[k] = v
			}
		}
		return nil
	}
	*kb = DecodeKnowledgeBase(obj)
	return nil
}

// DatasetPage is the normalized result of a dataset listing.
type DatasetPage struct {
	Datasets []KnowledgeBase `json:"datasets"`
	Total    int             `json:"total"`
}

// normalizeDatasetPage handles any of the known list envelopes: the payload
// may or may not nest under "data", and the array/count keys vary.
func normalizeDatasetPage(body Object) DatasetPage {
	data := unwrapData(body)
	items, total := ExtractList(data)
	page := DatasetPage{Datasets: make([]KnowledgeBase, 0, len(items)), Total: total}
	for _, item := range items {
		page.Datasets = append(page.Datasets, DecodeKnowledgeBase(item))
	}
	return page
}
