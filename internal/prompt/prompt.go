// Package prompt holds the model instructions used by each pipeline stage.
// Every template asks for a single JSON object so answers can be parsed
// with llm.DecodeJSON or llm.ObjectPairs.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// System is the system message sent with every stage request
const System = "You are a helpful assistant designed to output JSON."

const decompose = `Split the text below into atomic claims.

Rules:
1. Each claim states exactly one fact and stays under 15 words.
2. Each claim must stand alone: replace pronouns such as "he", "she", "it" or "this" with the full name they refer to.
3. Every sentence of the text yields at least one claim.
4. Answer with a JSON object holding one key, "claims", whose value is a list of strings.

Example
Text: Mary is a five-year old girl, she likes playing piano and she doesn't like cookies.
Answer:
{"claims": ["Mary is a five-year old girl.", "Mary likes playing piano.", "Mary doesn't like cookies."]}

Text: {{doc}}
Answer:
`

const restore = `For every claim below, copy the exact part of the text it came from.

Rules:
1. Values are copied character for character from the text, including spaces and punctuation.
2. Spans follow the order of the claims and, joined together, rebuild the whole text.
3. Answer with a JSON object whose keys are the claims and whose values are the copied spans.

Example
Text: Mary is a five-year old girl, she likes playing piano and she doesn't like cookies.
Claims: ["Mary is a five-year old girl.", "Mary likes playing piano.", "Mary doesn't like cookies."]
Answer:
{"Mary is a five-year old girl.": "Mary is a five-year old girl,", "Mary likes playing piano.": " she likes playing piano", "Mary doesn't like cookies.": " and she doesn't like cookies."}

Text: {{doc}}
Claims: {{claims}}
Answer:
`

const checkworthy = `Decide for each statement whether it makes a factual claim that evidence could confirm or contradict.

A statement is NOT checkworthy when it is an opinion, a matter of taste, or refers to someone only as "he", "she" or "it".
A statement that is factual but wrong is still checkworthy.

Answer with a JSON object whose keys are the statements, copied exactly, and whose values start with "Yes" or "No" followed by a short reason in parentheses.

Example
Statements:
1. Gary Smith is a professor of economics.
2. He works at MBZUAI.
3. Pizza tastes better than burgers.
Answer:
{"Gary Smith is a professor of economics.": "Yes (States a checkable job title.)", "He works at MBZUAI.": "No (Unclear who 'he' is.)", "Pizza tastes better than burgers.": "No (Matter of taste.)"}

Statements:
{{statements}}
Answer:
`

const queries = `Write the fewest search questions needed to check each claim below.

Rules:
1. Questions are specific and can be answered by a web search.
2. At most {{max}} questions per claim.
3. Answer with a JSON object whose keys are the claim labels ("claim_1", "claim_2", ...) and whose values are lists of questions.

Example
claim_1: The Stanford Prison Experiment was conducted in the basement of Encina Hall.
claim_2: The Havel-Hakimi algorithm is named after Vaclav Havel and Samih Hakimi.
Answer:
{"claim_1": ["Where was the Stanford Prison Experiment conducted?"], "claim_2": ["Who is the Havel-Hakimi algorithm named after?"]}

{{claims}}
Answer:
`

const verify = `Judge each numbered piece of evidence against the claim.

For every evidence decide whether it SUPPORTS the claim, REFUTES it, or is IRRELEVANT to it, and explain why in one or two sentences.
Judge each evidence on its own; different evidences may disagree.

Answer with a JSON object with keys "evidence_1", "evidence_2" and so on, one per evidence. Each value is an object with "reasoning" and "relationship".

Example
Claim: Copper reacts with ferrous sulfate.
[Evidence 1]: Copper cannot displace iron from ferrous sulphate solution, so no reaction occurs.
[Evidence 2]: Apple Inc. is headquartered in Cupertino.
Answer:
{"evidence_1": {"reasoning": "States that no reaction occurs, contradicting the claim.", "relationship": "REFUTES"}, "evidence_2": {"reasoning": "About a company, unrelated to the chemistry.", "relationship": "IRRELEVANT"}}

Claim: {{claim}}
{{evidence}}
Answer:
`

// Decompose asks for the atomic claims of doc
func Decompose(doc string) string {
	return strings.NewReplacer("{{doc}}", doc).Replace(decompose)
}

// Restore asks for the source span of each claim
func Restore(doc string, claims []string) string {
	return strings.NewReplacer(
		"{{doc}}", doc,
		"{{claims}}", jsonList(claims),
	).Replace(restore)
}

// Checkworthy asks for a Yes/No verdict per statement
func Checkworthy(statements []string) string {
	var sb strings.Builder
	for i, s := range statements {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, s)
	}
	return strings.NewReplacer("{{statements}}", strings.TrimRight(sb.String(), "\n")).Replace(checkworthy)
}

// ClaimLabel is the key used for the i-th claim (zero-based) in Queries
func ClaimLabel(i int) string {
	return fmt.Sprintf("claim_%d", i+1)
}

// Queries asks for search questions for every claim in one request
func Queries(claims []string, maxPerClaim int) string {
	var sb strings.Builder
	for i, c := range claims {
		fmt.Fprintf(&sb, "%s: %s\n", ClaimLabel(i), c)
	}
	return strings.NewReplacer(
		"{{max}}", fmt.Sprint(maxPerClaim),
		"{{claims}}", strings.TrimRight(sb.String(), "\n"),
	).Replace(queries)
}

// EvidenceKey is the key of the i-th evidence (zero-based) in a verify answer
func EvidenceKey(i int) string {
	return fmt.Sprintf("evidence_%d", i+1)
}

// Verify asks for one verdict per evidence text
func Verify(claim string, evidences []string) string {
	var sb strings.Builder
	for i, e := range evidences {
		fmt.Fprintf(&sb, "[Evidence %d]: %s\n", i+1, e)
	}
	return strings.NewReplacer(
		"{{claim}}", claim,
		"{{evidence}}", strings.TrimRight(sb.String(), "\n"),
	).Replace(verify)
}

func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return string(b)
}
