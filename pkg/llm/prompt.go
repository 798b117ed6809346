package llm

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/folio/pkg/vector"
)

// SystemPrompt instructs the model to answer strictly from the supplied
// context and to cite the sources it used.
const SystemPrompt = "You are a helpful assistant that answers questions based on provided context from documents. \n\n" +
	"Instructions:\n" +
	"1. Answer the question based ONLY on the provided context\n" +
	"2. If the context doesn't contain relevant information, say \"I couldn't find relevant information in the provided documents.\"\n" +
	"3. Cite which sources you used in your answer\n" +
	"4. Be concise but comprehensive\n" +
	"5. If the question is ambiguous, ask for clarification"

// EmptyContextAnswer is the canned answer generators return when invoked
// with no sources at all.
const EmptyContextAnswer = "I couldn't find any relevant information in the documents to answer your question."

const contextTemplate = "Context from documents:\n\n%s\n\n---\n\nQuestion: %s\n\n" +
	"Please provide a comprehensive answer based on the context above. " +
	"If you reference specific information, indicate which source it came from."

// BuildContext formats retrieved chunks into labeled source blocks. Source
// and chunk numbering are 1-based to read naturally in citations.
func BuildContext(sources []vector.SearchResult) string {
	parts := make([]string, 0, len(sources))
	for i, src := range sources {
		parts = append(parts, fmt.Sprintf("[Source %d: %s, chunk %d]\n%s",
			i+1, src.Filename, src.ChunkIndex+1, src.Content))
	}

	return strings.Join(parts, "\n\n")
}

// BuildPrompt renders the full user prompt from the question and the
// formatted context.
func BuildPrompt(question, context string) string {
	return fmt.Sprintf(contextTemplate, context, question)
}

// NoResultsAnswer is the canned answer for a question whose retrieval
// returned nothing usable.
func NoResultsAnswer(question string) string {
	return fmt.Sprintf("I couldn't find relevant information in the provided documents to answer your question: '%s'\n\n"+
		"This could mean:\n"+
		"1. The topic isn't covered in the uploaded documents\n"+
		"2. The question may need to be rephrased\n"+
		"3. More relevant documents may need to be uploaded", question)
}
