package coze

// Upstream REST paths. Fixed and versioned; the mix of /v1, /v3 and
// /open_api generations is the platform's, not ours.
const (
	endpointListBots          = "/v1/bots"
	endpointListConversations = "/v1/conversations"
	endpointListDatasets      = "/v1/datasets"
	endpointCreateDataset     = "/v1/datasets"
	endpointDatasetDetail     = "/open_api/knowledge/dataset"
	endpointCreateDocument    = "/open_api/knowledge/document/create"
	endpointChat              = "/v3/chat"
	endpointChatRetrieve      = "/v3/chat/retrieve"
	// endpointChatMessages needs the conversation id spliced into the path.
	endpointChatMessagesFmt = "/v3/chat/conversations/%s/messages"
)
