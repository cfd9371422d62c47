// Package prompts holds every LLM prompt template and user-facing message
// in one place, keeping model instructions and human communication apart.
package prompts

import (
	"fmt"
	"strings"
)

// LLM prompt templates.
const (
	queryDecompose = `You are a query retrieval optimizer for vector store semantic search. Decompose the following query into simpler, smaller sub-queries better suited for vector store search. Decide yourself how many sub-queries are optimal for retrieval. Each sub-query should be on a new line for correct parsing using split('\n'). User Query: %s`

	qaSummarize = `You are a helpful summarization assistant. Create a comprehensive summary of the retrieved information that directly addresses the user's query. Focus on relevant information and maintain accuracy.

User Query: %s

Retrieved Information:
%s`

	mapSummarizeCluster = "Summarize the following cluster of documents in a concise and informative manner.\n\n%s"

	reduceSummaries = "Summarize the following sub-summaries resulted following the map-reduce summarisation pattern, in a concise and informative manner.\n\n%s"

	approvalDecision = `The user was asked to revise machine-generated retrieval sub-queries and replied with the feedback above. Decide what the user wants. Respond with a JSON object {"action": "..."} where action is exactly "regenerate_queries" if the user disapproves and wants new sub-queries, or "proceed_to_retrieval" if the user approves the sub-queries as they are.`

	route = `You are a reading assistant that helps users chat with information from a knowledge base containing their uploaded documents.
You have two sub-agents: QAAgent (DEFAULT) and DiscoveryAgent (SPECIAL CASES ONLY).

**QAAgent (DEFAULT)** - Use for ALL regular questions and information requests:
- Any question seeking specific information from the documents
- Questions asking "what", "how", "why", "when", "where" about content
- Requests to explain concepts, summarize specific topics, or find information
- Examples: "What does this say about X?", "Explain Y", "How many Z are mentioned?"

**DiscoveryAgent (SPECIAL CASES ONLY)** - Use ONLY when user explicitly requests exploration:
- User explicitly asks for: "overview", "explore", "discover", "main themes", "main ideas", "key ideas", "overall summary"
- User wants high-level exploration without specific questions
- Examples: "Give me an overview", "What are the main themes?", "Explore the documents"

IMPORTANT: Default to QAAgent unless the user explicitly uses exploration keywords.
Most queries should go to QAAgent - it handles all regular information requests.

Respond with a JSON object {"destination": "qa"} or {"destination": "discovery"}.

User query: %s`
)

// QueryDecompose builds the sub-query decomposition prompt.
func QueryDecompose(userQuery string) string {
	return fmt.Sprintf(queryDecompose, userQuery)
}

// QASummarize builds the retrieval summarization prompt.
func QASummarize(userQuery string, docs []string) string {
	return fmt.Sprintf(qaSummarize, userQuery, strings.Join(docs, "\n\n"))
}

// MapSummarizeCluster builds the per-cluster summarization prompt with
// "doc i:" labels.
func MapSummarizeCluster(docs []string) string {
	var sb strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&sb, "doc %d:\n%s \n", i+1, doc)
	}
	return fmt.Sprintf(mapSummarizeCluster, strings.TrimSuffix(sb.String(), "\n"))
}

// ReduceSummaries builds the final overview prompt with "map-summary i:"
// labels.
func ReduceSummaries(summaries []string) string {
	var sb strings.Builder
	for i, s := range summaries {
		fmt.Fprintf(&sb, "map-summary %d:\n%s \n", i+1, s)
	}
	return fmt.Sprintf(reduceSummaries, strings.TrimSuffix(sb.String(), "\n"))
}

// ApprovalDecision is the structured-output instruction interpreting
// approval feedback.
func ApprovalDecision() string {
	return approvalDecision
}

// Route builds the QA/discovery routing prompt.
func Route(userQuery string) string {
	return fmt.Sprintf(route, userQuery)
}

// User-facing messages.
const (
	// MsgAskFeedback asks the user to revise generated sub-queries.
	MsgAskFeedback = "Please revise the generated subqueries, please state explicitly if approve or disapprove these results!"

	// MsgEmptyKnowledgeBase short-circuits discovery over an empty index.
	MsgEmptyKnowledgeBase = "The knowledge base is empty. Ingest some documents first, then ask for an overview."

	// MsgMapRetrieving announces sampling and clustering.
	MsgMapRetrieving = "Retrieving and clustering document content..."

	// MsgReduceSynthesizing announces the final overview call.
	MsgReduceSynthesizing = "Synthesizing final overview from cluster summaries..."

	// MsgFlushing announces a knowledge base flush.
	MsgFlushing = "Flushing knowledge base..."

	// MsgUploadFiles asks for files to ingest.
	MsgUploadFiles = "Please upload your files to help out reading!"
)

// MsgApprovalTimeout tells the user their revision window elapsed.
func MsgApprovalTimeout(window string) string {
	return fmt.Sprintf("You haven't revised the generated subqueries in the following %s, we're using them as they are!", window)
}

// MsgForcedProceed tells the user the revision loop hit its bound.
func MsgForcedProceed(revisions int) string {
	return fmt.Sprintf("Reached the limit of %d subquery revisions, proceeding with the current subqueries.", revisions)
}

// MsgMapGenerating announces per-cluster summarization.
func MsgMapGenerating(nClusters int) string {
	return fmt.Sprintf("Generating summaries for %d clusters...", nClusters)
}

// MsgRetrieverQuerying announces the retrieval queries.
func MsgRetrieverQuerying(nQueries int) string {
	return fmt.Sprintf("Querying knowledge base with %d optimized queries...", nQueries)
}

// MsgRetrieverRetrieved reports retrieval results.
func MsgRetrieverRetrieved(nDocs int) string {
	return fmt.Sprintf("✓ Retrieved %d relevant document chunks.", nDocs)
}

// MsgSummarizerSynthesizing announces the QA summary call.
func MsgSummarizerSynthesizing(nDocs int) string {
	return fmt.Sprintf("Synthesizing answer from %d retrieved documents...", nDocs)
}

// MsgIngestProcessing reports how many files are being ingested.
func MsgIngestProcessing(nFiles int) string {
	return fmt.Sprintf("Processing %d file(s)...", nFiles)
}

// MsgIngestParsing reports the file currently being parsed.
func MsgIngestParsing(fileName string) string {
	return fmt.Sprintf("Parsing %s...", fileName)
}

// MsgIngestChunks reports chunks flowing into the store.
func MsgIngestChunks(nChunks int, fileName string) string {
	return fmt.Sprintf("Ingesting %d chunks from %s...", nChunks, fileName)
}

// MsgIngestSuccess reports a finished ingestion.
func MsgIngestSuccess(fileNames []string, totalChunks int) string {
	return fmt.Sprintf("✓ Files uploaded: %s. Knowledge base now contains %d document chunks. What do you want to know?",
		strings.Join(fileNames, ", "), totalChunks)
}
